// ABOUTME: Live update listener: merges streamed messages into the timeline
// ABOUTME: Auto-plays newly arrived assistant replies that carry audio

package chatview

import (
	"context"
	"log/slog"
	"sync"

	"github.com/2389/vox-gateway/internal/apiclient"
)

// Feed is an open live update subscription. Messages is closed after Close.
type Feed interface {
	Messages() <-chan apiclient.Message
	Close()
}

// Backend is the gateway as seen by the chat view.
type Backend interface {
	History(ctx context.Context, conversationID string) ([]apiclient.Message, error)
	Submit(ctx context.Context, req *apiclient.SubmitRequest) (*apiclient.SubmitResult, error)
	Subscribe(ctx context.Context, conversationID string) (Feed, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (*apiclient.Transcript, error)
}

// remote adapts *apiclient.Client to Backend.
type remote struct {
	*apiclient.Client
}

// Remote returns a Backend backed by the gateway client.
func Remote(c *apiclient.Client) Backend {
	return remote{c}
}

func (r remote) Subscribe(ctx context.Context, conversationID string) (Feed, error) {
	sub, err := r.Client.Subscribe(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Listener follows one conversation until closed.
type Listener struct {
	conversationID string
	feed           Feed
	done           chan struct{}
	once           sync.Once
}

// OpenListener subscribes to conversationID and starts merging its
// messages into tl. The listener lives until Close or until ctx ends.
func OpenListener(ctx context.Context, backend Backend, conversationID string, tl *Timeline, player *Player, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	feed, err := backend.Subscribe(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	l := &Listener{
		conversationID: conversationID,
		feed:           feed,
		done:           make(chan struct{}),
	}
	logger = logger.With("component", "listener", "conversation_id", conversationID)

	go func() {
		defer close(l.done)
		for msg := range feed.Messages() {
			if msg.ConversationID != "" && msg.ConversationID != conversationID {
				continue
			}
			autoplay(player, tl.Add(msg))
		}
		logger.Debug("live updates ended")
	}()
	return l, nil
}

// ConversationID returns the followed conversation.
func (l *Listener) ConversationID() string {
	return l.conversationID
}

// Close releases the subscription and waits for the merge loop to exit.
func (l *Listener) Close() {
	l.once.Do(l.feed.Close)
	<-l.done
}

// autoplay starts the newest assistant reply with audio among added.
func autoplay(player *Player, added []apiclient.Message) {
	if player == nil {
		return
	}
	for i := len(added) - 1; i >= 0; i-- {
		m := added[i]
		if m.Role == apiclient.RoleAssistant && m.VoiceURL != "" {
			player.Play(m.ID, m.VoiceURL)
			return
		}
	}
}
