// ABOUTME: Chat handlers: submit a turn, browse conversations and stream live updates
// ABOUTME: POST /api/chat is de-duplicated by the Idempotency-Key header

package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/vox-gateway/internal/conversation"
	"github.com/2389/vox-gateway/internal/metrics"
)

// sseHeartbeat keeps idle streams alive through proxies.
const sseHeartbeat = 25 * time.Second

var errDuplicateRequest = errors.New("duplicate request")

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	AgentID        string `json:"agent_id,omitempty"`
	Message        string `json:"message"`
	InputMethod    string `json:"input_method,omitempty"`
	Voice          bool   `json:"voice,omitempty"`
}

// ChatResponse is the result of one turn.
type ChatResponse struct {
	Conversation     ConversationResponse `json:"conversation"`
	Created          bool                 `json:"created"`
	UserMessage      MessageResponse      `json:"user_message"`
	AssistantMessage MessageResponse      `json:"assistant_message"`
}

// handleChat handles POST /api/chat.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	sess := session(r)

	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendError(w, r, err)
		return
	}

	var claimed string
	if key := r.Header.Get("Idempotency-Key"); key != "" && g.svc.Dedupe != nil {
		claimed = sess.UserID + ":" + key
		if !g.svc.Dedupe.Claim(claimed) {
			metrics.DuplicateRequests.Inc()
			g.sendError(w, r, errDuplicateRequest)
			return
		}
	}

	res, err := g.submit(r, &req)
	if err != nil {
		// A failed turn may be retried with the same key.
		if claimed != "" {
			g.svc.Dedupe.Release(claimed)
		}
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, res)
}

func (g *Gateway) submit(r *http.Request, req *ChatRequest) (*ChatResponse, error) {
	input := conversation.InputText
	if req.InputMethod == string(conversation.InputVoice) {
		input = conversation.InputVoice
	}
	res, err := g.svc.Conversation.Submit(r.Context(), session(r), &conversation.SubmitRequest{
		ConversationID: req.ConversationID,
		AgentID:        req.AgentID,
		Text:           req.Message,
		InputMethod:    input,
		Speak:          req.Voice,
	})
	if err != nil {
		return nil, err
	}
	return &ChatResponse{
		Conversation:     toConversationResponse(res.Conversation),
		Created:          res.Created,
		UserMessage:      g.toMessageResponse(res.UserMessage),
		AssistantMessage: g.toMessageResponse(res.AssistantMessage),
	}, nil
}

// handleListConversations handles GET /api/conversations?limit=N.
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	list, err := g.svc.Conversation.ListConversations(r.Context(), session(r), limit)
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	out := make([]ConversationResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toConversationResponse(c))
	}
	g.sendJSON(w, http.StatusOK, out)
}

// handleGetConversation handles GET /api/conversations/{id}.
func (g *Gateway) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	c, err := g.svc.Conversation.GetConversation(r.Context(), session(r), chi.URLParam(r, "id"))
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, toConversationResponse(c))
}

// handleDeleteConversation handles DELETE /api/conversations/{id}.
func (g *Gateway) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := g.svc.Conversation.DeleteConversation(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		g.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConversationMessagesResponse is the JSON response for GET /api/conversations/{id}/messages.
type ConversationMessagesResponse struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []MessageResponse `json:"messages"`
}

// handleMessages handles GET /api/conversations/{id}/messages.
func (g *Gateway) handleMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msgs, err := g.svc.Conversation.History(r.Context(), session(r), id)
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	out := ConversationMessagesResponse{ConversationID: id, Messages: make([]MessageResponse, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, g.toMessageResponse(m))
	}
	g.sendJSON(w, http.StatusOK, out)
}

// handleStream handles GET /api/conversations/{id}/stream. Every message
// persisted to the conversation is sent as an SSE "message" event until the
// client disconnects.
func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	id := chi.URLParam(r, "id")
	sub, err := g.svc.Conversation.Subscribe(r.Context(), session(r), id)
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := g.writeSSEEvent(w, "ready", map[string]string{"conversation_id": id}); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := g.writeSSEEvent(w, "message", g.toMessageResponse(msg)); err != nil {
				g.logger.Debug("stream write failed", "conversation_id", id, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
