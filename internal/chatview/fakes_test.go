// ABOUTME: In-memory fakes for the chat view tests
// ABOUTME: Backend, live feed, audio handles and microphone with observable calls

package chatview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2389/vox-gateway/internal/apiclient"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func msg(id, role string, offset time.Duration) apiclient.Message {
	return apiclient.Message{
		ID:             id,
		ConversationID: "conv-1",
		Role:           role,
		Content:        "content of " + id,
		CreatedAt:      base.Add(offset),
	}
}

type fakeFeed struct {
	ch     chan apiclient.Message
	once   sync.Once
	closed chan struct{}
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{ch: make(chan apiclient.Message, 16), closed: make(chan struct{})}
}

func (f *fakeFeed) Messages() <-chan apiclient.Message { return f.ch }

func (f *fakeFeed) Close() {
	f.once.Do(func() {
		close(f.closed)
		close(f.ch)
	})
}

// push delivers m unless the feed is closed.
func (f *fakeFeed) push(m apiclient.Message) {
	select {
	case <-f.closed:
	default:
		f.ch <- m
	}
}

type fakeBackend struct {
	mu            sync.Mutex
	history       map[string][]apiclient.Message
	feeds         map[string][]*fakeFeed
	subscribeErr  error
	submit        func(req *apiclient.SubmitRequest) (*apiclient.SubmitResult, error)
	submitted     []*apiclient.SubmitRequest
	transcript    string
	transcribeErr error
	audio         []byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		history: make(map[string][]apiclient.Message),
		feeds:   make(map[string][]*fakeFeed),
	}
}

func (b *fakeBackend) History(ctx context.Context, id string) ([]apiclient.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.history[id]
	if !ok {
		return nil, &apiclient.Error{StatusCode: 404, Message: "conversation not found"}
	}
	return h, nil
}

func (b *fakeBackend) Submit(ctx context.Context, req *apiclient.SubmitRequest) (*apiclient.SubmitResult, error) {
	b.mu.Lock()
	b.submitted = append(b.submitted, req)
	fn := b.submit
	b.mu.Unlock()
	if fn == nil {
		return nil, errors.New("no submit configured")
	}
	return fn(req)
}

func (b *fakeBackend) Subscribe(ctx context.Context, id string) (Feed, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	f := newFakeFeed()
	b.feeds[id] = append(b.feeds[id], f)
	return f, nil
}

func (b *fakeBackend) Transcribe(ctx context.Context, audio []byte, filename string) (*apiclient.Transcript, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = audio
	if b.transcribeErr != nil {
		return nil, b.transcribeErr
	}
	return &apiclient.Transcript{Text: b.transcript, Confidence: 0.95}, nil
}

// feed returns the most recent subscription for id.
func (b *fakeBackend) feed(id string) *fakeFeed {
	b.mu.Lock()
	defer b.mu.Unlock()
	fs := b.feeds[id]
	if len(fs) == 0 {
		return nil
	}
	return fs[len(fs)-1]
}

func (b *fakeBackend) submissions() []*apiclient.SubmitRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*apiclient.SubmitRequest(nil), b.submitted...)
}

// fakeAudio records what happens to every handle it opens.
type fakeAudio struct {
	mu      sync.Mutex
	handles map[string]*fakeHandle
	openErr error
	playErr error
	opened  int
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{handles: make(map[string]*fakeHandle)}
}

func (a *fakeAudio) factory(url string, done func(error)) (AudioHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.openErr != nil {
		return nil, a.openErr
	}
	a.opened++
	h := &fakeHandle{url: url, done: done, audio: a}
	a.handles[url] = h
	return h, nil
}

func (a *fakeAudio) handle(url string) *fakeHandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handles[url]
}

// playingCount is the number of handles currently playing.
func (a *fakeAudio) playingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, h := range a.handles {
		if h.isPlaying() {
			n++
		}
	}
	return n
}

type fakeHandle struct {
	url   string
	done  func(error)
	audio *fakeAudio

	mu      sync.Mutex
	playing bool
	plays   int
	pauses  int
	rewinds int
	closed  bool
}

func (h *fakeHandle) Play() error {
	h.audio.mu.Lock()
	err := h.audio.playErr
	h.audio.mu.Unlock()
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = true
	h.plays++
	return nil
}

func (h *fakeHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
	h.pauses++
}

func (h *fakeHandle) Rewind() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rewinds++
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.playing = false
	return nil
}

func (h *fakeHandle) isPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *fakeHandle) counts() (plays, pauses, rewinds int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.plays, h.pauses, h.rewinds
}

// finish simulates the end of playback, with err on failure.
func (h *fakeHandle) finish(err error) {
	h.mu.Lock()
	h.playing = false
	h.mu.Unlock()
	h.done(err)
}

type fakeMic struct {
	mu      sync.Mutex
	openErr error
	opens   int
	last    *fakeRecording
}

func (m *fakeMic) Open(ctx context.Context) (Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opens++
	m.last = &fakeRecording{ch: make(chan []byte, 8)}
	return m.last, nil
}

func (m *fakeMic) recording() *fakeRecording {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

type fakeRecording struct {
	ch     chan []byte
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func (r *fakeRecording) Chunks() <-chan []byte { return r.ch }

func (r *fakeRecording) Close() error {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.ch)
	})
	return nil
}

func (r *fakeRecording) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func voiceURL(id string) string {
	return fmt.Sprintf("http://gw.test/media/voice/conv-1/%s.mp3", id)
}
