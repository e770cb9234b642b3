// ABOUTME: Live update subscription over the gateway's SSE stream
// ABOUTME: Parses event/data frames and delivers decoded messages on a channel

package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Event is one parsed Server-Sent Event.
type Event struct {
	Type string
	Data string
}

// maxEventBytes bounds a single SSE line.
const maxEventBytes = 1 << 20

// readEvents parses an SSE stream and calls fn for every complete event.
// Comment lines are skipped. It returns when the stream ends, fn fails or
// ctx is done.
func readEvents(ctx context.Context, body io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventBytes)

	var eventType string
	var dataLines []string

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if len(dataLines) > 0 {
				if eventType == "" {
					eventType = "message"
				}
				if err := fn(Event{Type: eventType, Data: strings.Join(dataLines, "\n")}); err != nil {
					return err
				}
			}
			eventType = ""
			dataLines = nil
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading SSE stream: %w", err)
	}
	return nil
}

// Subscription is a live feed of one conversation's new messages. Close
// must be called to release the connection.
type Subscription struct {
	conversationID string
	messages       chan Message
	cancel         context.CancelFunc
	done           chan struct{}

	mu  sync.Mutex
	err error
}

// ConversationID returns the conversation this subscription follows.
func (s *Subscription) ConversationID() string {
	return s.conversationID
}

// Messages returns the feed. It is closed when the subscription ends.
func (s *Subscription) Messages() <-chan Message {
	return s.messages
}

// Err returns why the stream ended, or nil if it was closed or is still open.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription and waits for its reader to stop. It is safe
// to call more than once.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Subscribe opens the live update stream of a conversation. The stream stays
// open until Close is called or ctx ends.
func (c *Client) Subscribe(ctx context.Context, conversationID string) (*Subscription, error) {
	sctx, cancel := context.WithCancel(ctx)

	path := "/api/conversations/" + url.PathEscape(conversationID) + "/stream"
	req, err := c.newRequest(sctx, http.MethodGet, path, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, handleErrorResponse(resp)
	}

	sub := &Subscription{
		conversationID: conversationID,
		messages:       make(chan Message, 16),
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	go sub.run(sctx, resp.Body, c)
	return sub, nil
}

func (s *Subscription) run(ctx context.Context, body io.ReadCloser, c *Client) {
	defer close(s.done)
	defer close(s.messages)
	defer body.Close()

	err := readEvents(ctx, body, func(ev Event) error {
		if ev.Type != "message" {
			return nil
		}
		var msg Message
		if err := json.Unmarshal([]byte(ev.Data), &msg); err != nil {
			c.logger.Warn("skipping malformed stream event", "conversation_id", s.conversationID, "error", err)
			return nil
		}
		select {
		case s.messages <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil && ctx.Err() == nil {
		c.logger.Debug("stream ended", "conversation_id", s.conversationID, "error", err)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
}
