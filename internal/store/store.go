// ABOUTME: Store interfaces and data types for vox-gateway persistence
// ABOUTME: Defines users, agents, conversations, messages, integrations and interaction logs

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique key (email, user+provider) is already taken
var ErrDuplicate = errors.New("already exists")

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// MetaKind tags the variant held by Meta.
type MetaKind string

const (
	MetaNone      MetaKind = ""
	MetaFallback  MetaKind = "fallback"
	MetaAgentType MetaKind = "agent_type"
)

// Meta is the per-message metadata. It is a closed variant: a fallback reply
// carries the failure reason in Value, a generated reply carries the agent type.
type Meta struct {
	Kind  MetaKind `json:"kind,omitempty"`
	Value string   `json:"value,omitempty"`
}

// FallbackMeta marks a canned reply produced because generation failed.
func FallbackMeta(reason string) Meta {
	return Meta{Kind: MetaFallback, Value: reason}
}

// AgentTypeMeta marks a reply produced by an agent of the given type.
func AgentTypeMeta(agentType string) Meta {
	return Meta{Kind: MetaAgentType, Value: agentType}
}

// IsFallback reports whether the message is a fallback reply.
func (m Meta) IsFallback() bool {
	return m.Kind == MetaFallback
}

// User is an account that owns agents, conversations and integrations.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string // bcrypt
	CreatedAt    time.Time
}

// DefaultAgentType is used when an agent is created without a type.
const DefaultAgentType = "general_assistant"

// Agent is a configured assistant persona owned by one user.
type Agent struct {
	ID           string
	UserID       string
	Name         string
	Description  string
	Type         string
	Prompt       string // personality / behavior prompt passed to the workflow
	Capabilities []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Conversation is an ordered thread of messages between a user and one agent.
type Conversation struct {
	ID        string
	UserID    string
	AgentID   string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one immutable entry in a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	VoiceURL       string // empty when no audio was produced
	Meta           Meta
	CreatedAt      time.Time
}

// Integration records a user's connection to a third-party provider.
// Token fields are opaque to everything except the integrations package.
type Integration struct {
	UserID       string
	Provider     string
	Name         string
	Connected    bool
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	UpdatedAt    time.Time
}

// InteractionLog is an analytics row written after each chat turn.
type InteractionLog struct {
	ID             string
	UserID         string
	AgentID        string
	ConversationID string
	Action         string
	Query          string
	Response       string
	Success        bool
	Fallback       bool
	ProcessingTime time.Duration
	TokensUsed     int
	CreatedAt      time.Time
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CountUsers(ctx context.Context) (int, error)
}

// AgentStore persists agent profiles.
type AgentStore interface {
	CreateAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	ListAgents(ctx context.Context, userID string) ([]*Agent, error)
	UpdateAgent(ctx context.Context, agent *Agent) error
	DeleteAgent(ctx context.Context, id string) error
}

// ChatStore persists conversations and their messages.
type ChatStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]*Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	// InsertMessage appends a message and bumps the conversation's updated_at
	// to the message's creation time in the same transaction.
	InsertMessage(ctx context.Context, msg *Message) error
	// ListMessages returns the most recent messages in insertion order (oldest first).
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
}

// IntegrationStore persists provider connections.
type IntegrationStore interface {
	UpsertIntegration(ctx context.Context, in *Integration) error
	GetIntegration(ctx context.Context, userID, provider string) (*Integration, error)
	ListIntegrations(ctx context.Context, userID string) ([]*Integration, error)
}

// LogStore persists interaction analytics.
type LogStore interface {
	SaveInteractionLog(ctx context.Context, entry *InteractionLog) error
	ListInteractionLogs(ctx context.Context, userID string, limit int) ([]*InteractionLog, error)
}

// Store is the full persistence surface used by the gateway.
type Store interface {
	UserStore
	AgentStore
	ChatStore
	IntegrationStore
	LogStore

	// Ping checks that the backing database is reachable
	Ping(ctx context.Context) error
	// Close releases any resources held by the store
	Close() error
}
