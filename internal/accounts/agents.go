// ABOUTME: Agent profile management scoped to the owning user
// ABOUTME: Validates names and capability tags, and hides other users' agents as not found

package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/vox-gateway/internal/auth"
	"github.com/2389/vox-gateway/internal/store"
)

var (
	ErrAgentNameRequired = errors.New("agent name is required")
	ErrAgentNameTooLong  = errors.New("agent name is too long")
	ErrAgentNotFound     = errors.New("agent not found")
	ErrInvalidCapability = errors.New("invalid capability tag")
)

// maxNameLength bounds agent display names, in runes.
const maxNameLength = 80

// AgentStore defines what the agent service needs from storage
type AgentStore interface {
	CreateAgent(ctx context.Context, agent *store.Agent) error
	GetAgent(ctx context.Context, id string) (*store.Agent, error)
	ListAgents(ctx context.Context, userID string) ([]*store.Agent, error)
	UpdateAgent(ctx context.Context, agent *store.Agent) error
	DeleteAgent(ctx context.Context, id string) error
}

// AgentInput carries the editable fields of an agent. Nil pointers leave a
// field unchanged on update.
type AgentInput struct {
	Name         *string
	Description  *string
	Type         *string
	Prompt       *string
	Capabilities []string
	Active       *bool
}

// Agents manages agent profiles.
type Agents struct {
	store  AgentStore
	logger *slog.Logger
}

// NewAgents creates an agent service.
func NewAgents(s AgentStore, logger *slog.Logger) *Agents {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agents{store: s, logger: logger.With("component", "agents")}
}

// List returns the session user's agents.
func (a *Agents) List(ctx context.Context, sess *auth.Session) ([]*store.Agent, error) {
	if sess == nil {
		return nil, auth.ErrInvalidToken
	}
	return a.store.ListAgents(ctx, sess.UserID)
}

// Get returns one agent owned by the session user.
func (a *Agents) Get(ctx context.Context, sess *auth.Session, id string) (*store.Agent, error) {
	if sess == nil {
		return nil, auth.ErrInvalidToken
	}
	agent, err := a.store.GetAgent(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && agent.UserID != sess.UserID) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading agent: %w", err)
	}
	return agent, nil
}

// Create adds an agent. New agents are active unless Active says otherwise.
func (a *Agents) Create(ctx context.Context, sess *auth.Session, in *AgentInput) (*store.Agent, error) {
	if sess == nil {
		return nil, auth.ErrInvalidToken
	}
	now := time.Now()
	agent := &store.Agent{
		ID:        uuid.New().String(),
		UserID:    sess.UserID,
		Type:      store.DefaultAgentType,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := apply(agent, in); err != nil {
		return nil, err
	}
	if agent.Name == "" {
		return nil, ErrAgentNameRequired
	}
	if err := a.store.CreateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	a.logger.Info("agent created", "agent_id", agent.ID, "user_id", sess.UserID)
	return agent, nil
}

// Update edits an agent owned by the session user.
func (a *Agents) Update(ctx context.Context, sess *auth.Session, id string, in *AgentInput) (*store.Agent, error) {
	agent, err := a.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if err := apply(agent, in); err != nil {
		return nil, err
	}
	if agent.Name == "" {
		return nil, ErrAgentNameRequired
	}
	agent.UpdatedAt = time.Now()
	if err := a.store.UpdateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("updating agent: %w", err)
	}
	a.logger.Info("agent updated", "agent_id", agent.ID)
	return agent, nil
}

// Delete removes an agent and, through the store, its conversations.
func (a *Agents) Delete(ctx context.Context, sess *auth.Session, id string) error {
	if _, err := a.Get(ctx, sess, id); err != nil {
		return err
	}
	if err := a.store.DeleteAgent(ctx, id); err != nil {
		return fmt.Errorf("deleting agent: %w", err)
	}
	a.logger.Info("agent deleted", "agent_id", id)
	return nil
}

func apply(agent *store.Agent, in *AgentInput) error {
	if in == nil {
		return nil
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len([]rune(name)) > maxNameLength {
			return fmt.Errorf("%w: limit is %d characters", ErrAgentNameTooLong, maxNameLength)
		}
		agent.Name = name
	}
	if in.Description != nil {
		agent.Description = strings.TrimSpace(*in.Description)
	}
	if in.Type != nil {
		agent.Type = strings.TrimSpace(*in.Type)
		if agent.Type == "" {
			agent.Type = store.DefaultAgentType
		}
	}
	if in.Prompt != nil {
		agent.Prompt = *in.Prompt
	}
	if in.Capabilities != nil {
		caps, err := normalizeCapabilities(in.Capabilities)
		if err != nil {
			return err
		}
		agent.Capabilities = caps
	}
	if in.Active != nil {
		agent.Active = *in.Active
	}
	return nil
}

// normalizeCapabilities trims, lowercases and de-duplicates tags, keeping
// first-seen order. Tags may contain letters, digits, '_' and '-'.
func normalizeCapabilities(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		for _, r := range t {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
				return nil, fmt.Errorf("%w: %q", ErrInvalidCapability, t)
			}
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out, nil
}
