// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	users         map[string]*User         // keyed by user ID
	agents        map[string]*Agent        // keyed by agent ID
	conversations map[string]*Conversation // keyed by conversation ID
	messages      map[string][]*Message    // keyed by conversation ID, insertion order
	integrations  map[string]*Integration  // keyed by "userID:provider"
	logs          []*InteractionLog

	// Failure injection for tests exercising error paths.
	InsertMessageErr error
	SaveLogErr       error
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:         make(map[string]*User),
		agents:        make(map[string]*Agent),
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
		integrations:  make(map[string]*Integration),
	}
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicate
		}
	}
	u := *user
	u.Email = strings.ToLower(u.Email)
	m.users[u.ID] = &u
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *u
	return &result, nil
}

// GetUserByEmail retrieves a user by email.
func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			result := *u
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

// CountUsers returns the number of users.
func (m *MockStore) CountUsers(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// CreateAgent stores a new agent.
func (m *MockStore) CreateAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[agent.ID]; ok {
		return ErrDuplicate
	}
	if agent.Type == "" {
		agent.Type = DefaultAgentType
	}
	m.agents[agent.ID] = copyAgent(agent)
	return nil
}

// GetAgent retrieves an agent by ID.
func (m *MockStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAgent(a), nil
}

// ListAgents returns a user's agents, oldest first.
func (m *MockStore) ListAgents(ctx context.Context, userID string) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Agent
	for _, a := range m.agents {
		if a.UserID == userID {
			out = append(out, copyAgent(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateAgent replaces an existing agent.
func (m *MockStore) UpdateAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.agents[agent.ID]
	if !ok {
		return fmt.Errorf("agent: %w", ErrNotFound)
	}
	a := copyAgent(agent)
	a.UserID = existing.UserID
	a.CreatedAt = existing.CreatedAt
	m.agents[a.ID] = a
	return nil
}

// DeleteAgent removes an agent and cascades to its conversations.
func (m *MockStore) DeleteAgent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[id]; !ok {
		return fmt.Errorf("agent: %w", ErrNotFound)
	}
	delete(m.agents, id)
	for cid, c := range m.conversations {
		if c.AgentID == id {
			delete(m.conversations, cid)
			delete(m.messages, cid)
		}
	}
	return nil
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[conv.ID]; ok {
		return ErrDuplicate
	}
	c := *conv
	m.conversations[c.ID] = &c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// ListConversations returns a user's conversations, most recently active first.
func (m *MockStore) ListConversations(ctx context.Context, userID string, limit int) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Conversation
	for _, c := range m.conversations {
		if c.UserID == userID {
			result := *c
			out = append(out, &result)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteConversation removes a conversation and its messages.
func (m *MockStore) DeleteConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return fmt.Errorf("conversation: %w", ErrNotFound)
	}
	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

// InsertMessage appends a message and bumps the conversation's updated_at.
func (m *MockStore) InsertMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertMessageErr != nil {
		return m.InsertMessageErr
	}
	c, ok := m.conversations[msg.ConversationID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", msg.ConversationID, ErrNotFound)
	}
	for _, existing := range m.messages[msg.ConversationID] {
		if existing.ID == msg.ID {
			return ErrDuplicate
		}
	}
	saved := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &saved)
	c.UpdatedAt = msg.CreatedAt
	return nil
}

// ListMessages returns the most recent messages oldest first.
func (m *MockStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*Message, len(msgs))
	for i, msg := range msgs {
		result := *msg
		out[i] = &result
	}
	return out, nil
}

// UpsertIntegration inserts or replaces the record for (user, provider).
func (m *MockStore) UpsertIntegration(ctx context.Context, in *Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := *in
	m.integrations[in.UserID+":"+in.Provider] = &saved
	return nil
}

// GetIntegration retrieves the record for (user, provider).
func (m *MockStore) GetIntegration(ctx context.Context, userID, provider string) (*Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	in, ok := m.integrations[userID+":"+provider]
	if !ok {
		return nil, ErrNotFound
	}
	result := *in
	return &result, nil
}

// ListIntegrations returns a user's records ordered by provider.
func (m *MockStore) ListIntegrations(ctx context.Context, userID string) ([]*Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Integration
	for _, in := range m.integrations {
		if in.UserID == userID {
			result := *in
			out = append(out, &result)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

// SaveInteractionLog records a chat turn.
func (m *MockStore) SaveInteractionLog(ctx context.Context, entry *InteractionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveLogErr != nil {
		return m.SaveLogErr
	}
	saved := *entry
	m.logs = append(m.logs, &saved)
	return nil
}

// ListInteractionLogs returns a user's logs, newest first.
func (m *MockStore) ListInteractionLogs(ctx context.Context, userID string, limit int) ([]*InteractionLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*InteractionLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].UserID != userID {
			continue
		}
		result := *m.logs[i]
		out = append(out, &result)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Ping always succeeds.
func (m *MockStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

func copyAgent(a *Agent) *Agent {
	c := *a
	c.Capabilities = append([]string(nil), a.Capabilities...)
	return &c
}
