// ABOUTME: Tests for SSE parsing and the live update subscription
// ABOUTME: Streams are served by httptest handlers that flush events on demand

package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		"event: ready",
		`data: {"conversation_id":"conv-1"}`,
		"",
		": ping",
		"",
		"event: message",
		`data: {"id":"m-1",`,
		`data: "role":"user"}`,
		"",
		`data: no-event-name`,
		"",
		"event: dangling",
		"",
	}, "\n")

	var got []Event
	err := readEvents(context.Background(), strings.NewReader(stream), func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Event{Type: "ready", Data: `{"conversation_id":"conv-1"}`}, got[0])
	assert.Equal(t, Event{Type: "message", Data: "{\"id\":\"m-1\",\n\"role\":\"user\"}"}, got[1])
	assert.Equal(t, Event{Type: "message", Data: "no-event-name"}, got[2])
}

func TestReadEvents_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := readEvents(context.Background(), strings.NewReader("data: a\n\ndata: b\n\n"), func(Event) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

// streamServer serves one conversation stream and forwards whatever is sent
// on events to the connected client.
func streamServer(t *testing.T, events <-chan string) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/conversations/{id}/stream", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "conv-1" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
			return
		}
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: ready\ndata: {}\n\n")
		flusher.Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				fmt.Fprint(w, ev)
				flusher.Flush()
			}
		}
	})
	c, _ := newServer(t, mux)
	c.SetToken("tok-1")
	return c
}

func nextMessage(t *testing.T, sub *Subscription) Message {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestSubscribe_DeliversMessages(t *testing.T) {
	events := make(chan string, 4)
	c := streamServer(t, events)

	sub, err := c.Subscribe(t.Context(), "conv-1")
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, "conv-1", sub.ConversationID())

	events <- "event: message\ndata: {\"id\":\"m-1\",\"role\":\"user\",\"content\":\"hi\"}\n\n"
	events <- ": ping\n\n"
	events <- "event: message\ndata: not json\n\n"
	events <- "event: message\ndata: {\"id\":\"m-2\",\"role\":\"assistant\",\"voice_url\":\"http://gw/a.mp3\"}\n\n"

	assert.Equal(t, "m-1", nextMessage(t, sub).ID)
	second := nextMessage(t, sub)
	assert.Equal(t, "m-2", second.ID)
	assert.Equal(t, "http://gw/a.mp3", second.VoiceURL)
}

func TestSubscribe_CloseReleasesStream(t *testing.T) {
	events := make(chan string)
	c := streamServer(t, events)

	sub, err := c.Subscribe(t.Context(), "conv-1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		sub.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	_, ok := <-sub.Messages()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
	sub.Close()
}

func TestSubscribe_ContextCancelEndsFeed(t *testing.T) {
	events := make(chan string)
	c := streamServer(t, events)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := c.Subscribe(ctx, "conv-1")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-sub.Messages():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("feed not closed after cancel")
	}
	sub.Close()
}

func TestSubscribe_ServerEndRecordsNoError(t *testing.T) {
	events := make(chan string)
	c := streamServer(t, events)

	sub, err := c.Subscribe(t.Context(), "conv-1")
	require.NoError(t, err)
	defer sub.Close()
	close(events)

	select {
	case _, ok := <-sub.Messages():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("feed not closed after server ended the stream")
	}
	assert.NoError(t, sub.Err())
}

func TestSubscribe_NotFound(t *testing.T) {
	c := streamServer(t, make(chan string))

	_, err := c.Subscribe(t.Context(), "conv-missing")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}
