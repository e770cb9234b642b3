// ABOUTME: Wire types for the vox-gateway HTTP API as seen by clients
// ABOUTME: Mirrors the gateway's JSON responses; timestamps decode from RFC 3339

package apiclient

import "time"

// Roles carried by Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User is an account.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// Agent is an agent profile.
type Agent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Type         string    `json:"type"`
	Prompt       string    `json:"prompt"`
	Capabilities []string  `json:"capabilities"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Conversation is a thread between the user and one agent.
type Conversation struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Meta is message metadata. Kind is "fallback", "agent_type" or empty.
type Meta struct {
	Kind  string `json:"kind,omitempty"`
	Value string `json:"value,omitempty"`
}

// Message is one entry of a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ContentHTML    string    `json:"content_html,omitempty"`
	VoiceURL       string    `json:"voice_url,omitempty"`
	Metadata       *Meta     `json:"metadata,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsFallback reports whether the message is a canned reply.
func (m Message) IsFallback() bool {
	return m.Metadata != nil && m.Metadata.Kind == "fallback"
}

// SubmitRequest is one user message. IdempotencyKey is generated when empty.
type SubmitRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	AgentID        string `json:"agent_id,omitempty"`
	Message        string `json:"message"`
	InputMethod    string `json:"input_method,omitempty"`
	Voice          bool   `json:"voice,omitempty"`
	IdempotencyKey string `json:"-"`
}

// SubmitResult is the outcome of one chat turn.
type SubmitResult struct {
	Conversation     Conversation `json:"conversation"`
	Created          bool         `json:"created"`
	UserMessage      Message      `json:"user_message"`
	AssistantMessage Message      `json:"assistant_message"`
}

// Transcript is recognized speech.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}
