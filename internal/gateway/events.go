// ABOUTME: Wire forms of conversations and messages, SSE framing and markdown rendering
// ABOUTME: Shared by the chat handlers and the live update stream

package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/2389/vox-gateway/internal/store"
)

// ConversationResponse is the JSON form of a conversation.
type ConversationResponse struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toConversationResponse(c *store.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        c.ID,
		AgentID:   c.AgentID,
		Title:     c.Title,
		CreatedAt: formatTime(c.CreatedAt),
		UpdatedAt: formatTime(c.UpdatedAt),
	}
}

// MessageResponse is the JSON form of a message. ContentHTML is the
// markdown rendering of assistant content.
type MessageResponse struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           string      `json:"role"`
	Content        string      `json:"content"`
	ContentHTML    string      `json:"content_html,omitempty"`
	VoiceURL       string      `json:"voice_url,omitempty"`
	Metadata       *store.Meta `json:"metadata,omitempty"`
	CreatedAt      string      `json:"created_at"`
}

func (g *Gateway) toMessageResponse(m *store.Message) MessageResponse {
	resp := MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Content:        m.Content,
		VoiceURL:       m.VoiceURL,
		CreatedAt:      formatTime(m.CreatedAt),
	}
	if m.Meta.Kind != store.MetaNone {
		meta := m.Meta
		resp.Metadata = &meta
	}
	if m.Role == store.RoleAssistant {
		resp.ContentHTML = g.renderMarkdown(m.Content)
	}
	return resp
}

// newMarkdown returns a renderer that escapes raw HTML in message text.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
}

func (g *Gateway) renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := g.markdown.Convert([]byte(src), &buf); err != nil {
		g.logger.Warn("failed to convert markdown", "error", err)
		return ""
	}
	return buf.String()
}

// formatSSEEvent formats an SSE event as a string with the standard format:
// event: <eventType>\ndata: <data>\n\n
func formatSSEEvent(eventType, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return err
	}
	_, err = fmt.Fprint(w, formatSSEEvent(event, string(dataJSON)))
	return err
}
