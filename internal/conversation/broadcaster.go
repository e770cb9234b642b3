// ABOUTME: In-memory fan-out of persisted messages to live update subscribers
// ABOUTME: Subscriptions are scoped handles released by Close or context cancellation

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/vox-gateway/internal/metrics"
	"github.com/2389/vox-gateway/internal/store"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// Subscription is a live feed of messages persisted to one conversation.
// Messages are delivered at least once per publish; consumers de-duplicate
// by message ID. The channel is closed when the subscription ends.
type Subscription struct {
	id             string
	conversationID string
	ch             chan *store.Message
	b              *EventBroadcaster
	once           sync.Once
}

// Messages returns the delivery channel.
func (s *Subscription) Messages() <-chan *store.Message {
	return s.ch
}

// ConversationID returns the conversation this subscription follows.
func (s *Subscription) ConversationID() string {
	return s.conversationID
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.unsubscribe(s.conversationID, s.id)
	})
}

// EventBroadcaster provides in-memory pub/sub for persisted messages.
// Subscribers register for a conversation ID and receive messages as they
// are persisted, independently of the request that produced them.
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *store.Message // conversationID -> subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewEventBroadcaster creates a broadcaster. Pass nil logger for default.
func NewEventBroadcaster(logger *slog.Logger) *EventBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBroadcaster{
		subscribers: make(map[string]map[string]chan *store.Message),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers for messages on a conversation. The subscription is
// released when ctx is cancelled or Close is called, whichever comes first.
func (b *EventBroadcaster) Subscribe(ctx context.Context, conversationID string) *Subscription {
	sub := &Subscription{
		id:             uuid.New().String(),
		conversationID: conversationID,
		ch:             make(chan *store.Message, subscriberBufferSize),
		b:              b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub
	}
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[string]chan *store.Message)
	}
	b.subscribers[conversationID][sub.id] = sub.ch
	b.mu.Unlock()

	metrics.LiveSubscribers.Inc()
	b.logger.Debug("subscriber added",
		"conversation_id", conversationID,
		"sub_id", sub.id)

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub
}

// Publish sends a message to all subscribers of its conversation.
// Non-blocking: messages are dropped for subscribers whose channels are full.
func (b *EventBroadcaster) Publish(msg *store.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// Sends happen under the read lock so unsubscribe cannot close a channel
	// mid-send; they never block.
	for subID, ch := range b.subscribers[msg.ConversationID] {
		select {
		case ch <- msg:
		default:
			metrics.LiveUpdatesDropped.Inc()
			b.logger.Debug("dropped message for slow subscriber",
				"conversation_id", msg.ConversationID,
				"sub_id", subID,
				"message_id", msg.ID)
		}
	}
}

// SubscriberCount returns the number of open subscriptions for a conversation.
func (b *EventBroadcaster) SubscriberCount(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[conversationID])
}

// unsubscribe removes a subscription and closes its channel.
func (b *EventBroadcaster) unsubscribe(conversationID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[conversationID]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	metrics.LiveSubscribers.Dec()

	if len(subs) == 0 {
		delete(b.subscribers, conversationID)
	}

	b.logger.Debug("subscriber removed",
		"conversation_id", conversationID,
		"sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for convID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
			metrics.LiveSubscribers.Dec()
		}
		delete(b.subscribers, convID)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
