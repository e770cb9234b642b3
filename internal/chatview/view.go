// ABOUTME: Chat view model: one open conversation with input, timeline and audio
// ABOUTME: Serializes open/switch/close and guards Send against re-entry

package chatview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/2389/vox-gateway/internal/apiclient"
)

var (
	ErrBusy       = errors.New("a message is already being sent")
	ErrEmptyInput = errors.New("message is empty")
	ErrNoAgent    = errors.New("no agent selected")
	ErrClosed     = errors.New("view is closed")
)

// Input methods reported with each message.
const (
	InputText  = "text"
	InputVoice = "voice"
)

// View is the state behind a chat screen.
type View struct {
	backend  Backend
	timeline *Timeline
	player   *Player
	capture  *Capture
	logger   *slog.Logger

	// ctx bounds listeners; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	// ops serializes Open, Switch, Close and the tail of Send.
	ops sync.Mutex

	mu             sync.Mutex
	agentID        string
	conversationID string
	listener       *Listener
	gen            int
	input          string
	inputMethod    string
	voiceReplies   bool
	busy           bool
	closed         bool
	notices        []string
}

// NewView creates a view. mic may be nil when voice input is unavailable.
func NewView(backend Backend, audio AudioFactory, mic Microphone, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		backend:     backend,
		timeline:    NewTimeline(),
		player:      NewPlayer(audio, logger),
		logger:      logger.With("component", "chatview"),
		ctx:         ctx,
		cancel:      cancel,
		inputMethod: InputText,
	}
	if mic != nil {
		v.capture = NewCapture(mic, backend, v.setTranscript, v.notify, logger)
	}
	return v
}

// Open shows conversationID of agentID, or a fresh conversation when
// conversationID is empty. History is loaded before live updates start.
func (v *View) Open(ctx context.Context, agentID, conversationID string) error {
	v.ops.Lock()
	defer v.ops.Unlock()
	return v.open(ctx, agentID, conversationID)
}

// Switch leaves the current conversation, silencing audio, and opens another.
func (v *View) Switch(ctx context.Context, agentID, conversationID string) error {
	v.ops.Lock()
	defer v.ops.Unlock()
	return v.open(ctx, agentID, conversationID)
}

// open must be called with v.ops held. The previous conversation is left
// first, so a failed open shows nothing live.
func (v *View) open(ctx context.Context, agentID, conversationID string) error {
	if agentID == "" && conversationID == "" {
		return ErrNoAgent
	}
	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return ErrClosed
	}
	v.leave()

	var history []apiclient.Message
	if conversationID != "" {
		var err error
		history, err = v.backend.History(ctx, conversationID)
		if err != nil {
			return fmt.Errorf("loading history: %w", err)
		}
	}

	v.mu.Lock()
	v.gen++
	v.agentID = agentID
	v.conversationID = conversationID
	v.timeline.Reset(history)
	v.mu.Unlock()

	if conversationID == "" {
		return nil
	}
	return v.listen(conversationID)
}

// leave closes the listener and pauses audio. v.ops must be held.
func (v *View) leave() {
	v.mu.Lock()
	l := v.listener
	v.listener = nil
	v.mu.Unlock()
	if l != nil {
		l.Close()
	}
	v.player.PauseAll()
}

// listen opens the live update listener. v.ops must be held.
func (v *View) listen(conversationID string) error {
	l, err := OpenListener(v.ctx, v.backend, conversationID, v.timeline, v.player, v.logger)
	if err != nil {
		v.notify("Live updates are unavailable; new messages appear after you send.")
		return fmt.Errorf("opening live updates: %w", err)
	}
	v.mu.Lock()
	v.listener = l
	v.mu.Unlock()
	return nil
}

// Send submits the input as one turn. It fails with ErrBusy while a turn is
// in flight. The returned messages are merged into the timeline, which
// ignores whichever copy the listener already delivered.
func (v *View) Send(ctx context.Context) (*apiclient.SubmitResult, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrClosed
	}
	if v.busy {
		v.mu.Unlock()
		return nil, ErrBusy
	}
	text := strings.TrimSpace(v.input)
	if text == "" {
		v.mu.Unlock()
		return nil, ErrEmptyInput
	}
	if v.agentID == "" && v.conversationID == "" {
		v.mu.Unlock()
		return nil, ErrNoAgent
	}
	req := &apiclient.SubmitRequest{
		ConversationID: v.conversationID,
		AgentID:        v.agentID,
		Message:        text,
		InputMethod:    v.inputMethod,
		Voice:          v.voiceReplies,
	}
	gen := v.gen
	v.busy = true
	v.mu.Unlock()

	res, err := v.backend.Submit(ctx, req)

	v.ops.Lock()
	defer v.ops.Unlock()

	v.mu.Lock()
	v.busy = false
	if err != nil {
		v.mu.Unlock()
		v.notify(sendFailureNotice(err))
		v.logger.Warn("send failed", "agent_id", req.AgentID, "conversation_id", req.ConversationID, "error", err)
		return nil, err
	}
	if v.gen != gen {
		// The user moved to another conversation, or closed the view, while waiting.
		v.mu.Unlock()
		return res, nil
	}
	if strings.TrimSpace(v.input) == text {
		v.input = ""
		v.inputMethod = InputText
	}
	adopt := v.conversationID == ""
	if adopt {
		v.conversationID = res.Conversation.ID
		v.agentID = res.Conversation.AgentID
	}
	added := v.timeline.Add(res.UserMessage, res.AssistantMessage)
	v.mu.Unlock()

	autoplay(v.player, added)

	if adopt {
		if err := v.listen(res.Conversation.ID); err != nil {
			v.logger.Warn("live updates unavailable", "conversation_id", res.Conversation.ID, "error", err)
		}
	}
	return res, nil
}

func sendFailureNotice(err error) string {
	switch {
	case apiclient.IsStatus(err, http.StatusConflict):
		return "Still working on your previous message."
	case apiclient.IsStatus(err, http.StatusUnauthorized):
		return "Your session has expired. Please log in again."
	default:
		return "Message could not be sent. Please try again."
	}
}

// StartRecording begins voice input.
func (v *View) StartRecording(ctx context.Context) error {
	if v.capture == nil {
		v.notify("Voice input is not supported here.")
		return ErrUnsupported
	}
	return v.capture.Start(ctx)
}

// StopRecording ends voice input and places the transcript in the input.
func (v *View) StopRecording(ctx context.Context) (string, error) {
	if v.capture == nil {
		return "", ErrNotRecording
	}
	return v.capture.Stop(ctx)
}

// Recording reports whether voice input is active.
func (v *View) Recording() bool {
	return v.capture != nil && v.capture.Recording()
}

func (v *View) setTranscript(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.input = text
	v.inputMethod = InputVoice
}

func (v *View) notify(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, msg)
}

// SetInput replaces the input text, as typed by the user.
func (v *View) SetInput(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.input = text
	v.inputMethod = InputText
}

// Input returns the input text.
func (v *View) Input() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.input
}

// SetVoiceReplies asks for spoken replies on subsequent turns.
func (v *View) SetVoiceReplies(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.voiceReplies = on
}

// Busy reports whether a turn is in flight.
func (v *View) Busy() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.busy
}

// ConversationID returns the open conversation, "" before the first message.
func (v *View) ConversationID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conversationID
}

// AgentID returns the selected agent.
func (v *View) AgentID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.agentID
}

// Messages returns the timeline.
func (v *View) Messages() []apiclient.Message {
	return v.timeline.Messages()
}

// Notices returns and clears pending notices.
func (v *View) Notices() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.notices
	v.notices = nil
	return out
}

// Player exposes playback controls.
func (v *View) Player() *Player {
	return v.player
}

// Close stops the listener and releases audio. A Send still in flight
// returns its result without touching the view; later calls fail with ErrClosed.
func (v *View) Close() {
	v.ops.Lock()
	defer v.ops.Unlock()
	v.mu.Lock()
	v.closed = true
	v.gen++
	v.mu.Unlock()
	v.leave()
	v.cancel()
	v.player.Close()
	if v.capture != nil {
		v.capture.Cancel()
	}
}
