// ABOUTME: Tests for the gateway HTTP client against an httptest server
// ABOUTME: Covers auth headers, idempotency keys, error mapping and audio upload

package apiclient

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newServer(t *testing.T, mux *http.ServeMux) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", nil), srv
}

func TestLogin_StoresToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "hunter2hunter2" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":      "tok-1",
			"expires_at": "2026-01-02T03:04:05Z",
			"user":       map[string]string{"id": "user-1", "email": body["email"], "name": "Ada"},
		})
	})
	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]string{"id": "user-1", "email": "ada@example.com", "name": "Ada"})
	})
	c, _ := newServer(t, mux)

	_, err := c.Login(t.Context(), "ada@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Contains(t, err.Error(), "invalid email or password")
	assert.Empty(t, c.Token())

	sess, err := c.Login(t.Context(), "ada@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sess.Token)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), sess.ExpiresAt)
	assert.Equal(t, "tok-1", c.Token())

	me, err := c.Me(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.Name)
}

func TestSubmit_SendsIdempotencyKey(t *testing.T) {
	var mu sync.Mutex
	var keys []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		mu.Unlock()

		var req SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, map[string]any{
			"conversation": map[string]string{"id": "conv-1", "agent_id": req.AgentID, "title": req.Message},
			"created":      true,
			"user_message": map[string]string{"id": "m-1", "role": "user", "content": req.Message},
			"assistant_message": map[string]any{
				"id": "m-2", "role": "assistant", "content": "Sure.",
				"voice_url": "http://gw/media/voice/conv-1/1.mp3",
				"metadata":  map[string]string{"kind": "agent_type", "value": "general_assistant"},
			},
		})
	})
	c, _ := newServer(t, mux)
	c.SetToken("tok-1")

	res, err := c.Submit(t.Context(), &SubmitRequest{AgentID: "agent-1", Message: "hi", Voice: true})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "conv-1", res.Conversation.ID)
	assert.Equal(t, "http://gw/media/voice/conv-1/1.mp3", res.AssistantMessage.VoiceURL)
	assert.False(t, res.AssistantMessage.IsFallback())

	_, err = c.Submit(t.Context(), &SubmitRequest{AgentID: "agent-1", Message: "again", IdempotencyKey: "fixed"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, keys, 2)
	assert.Len(t, keys[0], 36, "generated keys are UUIDs")
	assert.Equal(t, "fixed", keys[1])
}

func TestErrors_NonJSONBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/agents", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	mux.HandleFunc("GET /api/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	c, _ := newServer(t, mux)

	_, err := c.ListAgents(t.Context())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadGateway))
	assert.Contains(t, err.Error(), "upstream exploded")

	_, err = c.ListConversations(t.Context())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusConflict))
	assert.Contains(t, err.Error(), "Conflict")
	assert.False(t, IsStatus(err, http.StatusNotFound))
}

func TestHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "conv-1" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"conversation_id": "conv-1",
			"messages": []map[string]string{
				{"id": "m-1", "role": "user", "content": "hi", "created_at": "2026-01-01T10:00:00Z"},
				{"id": "m-2", "role": "assistant", "content": "hello", "created_at": "2026-01-01T10:00:01.5Z"},
			},
		})
	})
	c, _ := newServer(t, mux)

	msgs, err := c.History(t.Context(), "conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.True(t, msgs[1].CreatedAt.After(msgs[0].CreatedAt))

	_, err = c.History(t.Context(), "conv-2")
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestTranscribe_UploadsMultipart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/voice/transcribe", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "recording.webm", header.Filename)
		assert.Equal(t, []byte("pcm-bytes"), data)
		writeJSON(w, http.StatusOK, map[string]any{"text": "hello there", "confidence": 0.95})
	})
	c, _ := newServer(t, mux)

	tr, err := c.Transcribe(t.Context(), []byte("pcm-bytes"), "")
	require.NoError(t, err)
	assert.Equal(t, "hello there", tr.Text)
	assert.InDelta(t, 0.95, tr.Confidence, 0.0001)
}
