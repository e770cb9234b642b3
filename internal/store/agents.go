// ABOUTME: Agent profile persistence for SQLiteStore
// ABOUTME: Capabilities are stored as a JSON array column

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const agentColumns = `id, user_id, name, description, type, prompt, capabilities, is_active, created_at, updated_at`

// CreateAgent inserts a new agent profile.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *Agent) error {
	caps, err := encodeCapabilities(agent.Capabilities)
	if err != nil {
		return err
	}
	if agent.Type == "" {
		agent.Type = DefaultAgentType
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (`+agentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		agent.ID,
		agent.UserID,
		agent.Name,
		agent.Description,
		agent.Type,
		agent.Prompt,
		caps,
		boolInt(agent.Active),
		formatTime(agent.CreatedAt),
		formatTime(agent.UpdatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("owner %s: %w", agent.UserID, ErrNotFound)
		}
		return fmt.Errorf("inserting agent: %w", err)
	}

	s.logger.Debug("created agent", "id", agent.ID, "user_id", agent.UserID)
	return nil
}

// GetAgent retrieves an agent by ID.
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

// ListAgents returns a user's agents, oldest first.
func (s *SQLiteStore) ListAgents(ctx context.Context, userID string) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agents: %w", err)
	}
	return agents, nil
}

// UpdateAgent overwrites the editable fields of an agent.
func (s *SQLiteStore) UpdateAgent(ctx context.Context, agent *Agent) error {
	caps, err := encodeCapabilities(agent.Capabilities)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE agents
		SET name = ?, description = ?, type = ?, prompt = ?, capabilities = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`,
		agent.Name,
		agent.Description,
		agent.Type,
		agent.Prompt,
		caps,
		boolInt(agent.Active),
		formatTime(agent.UpdatedAt),
		agent.ID,
	)
	if err != nil {
		return fmt.Errorf("updating agent: %w", err)
	}
	return requireAffected(result, "agent")
}

// DeleteAgent removes an agent along with its conversations.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting agent: %w", err)
	}
	return requireAffected(result, "agent")
}

func scanAgent(row rowScanner) (*Agent, error) {
	var a Agent
	var caps, createdAt, updatedAt string
	var active int

	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Description, &a.Type, &a.Prompt,
		&caps, &active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying agent: %w", err)
	}

	a.Active = active != 0
	if err := json.Unmarshal([]byte(caps), &a.Capabilities); err != nil {
		return nil, fmt.Errorf("decoding capabilities: %w", err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &a, nil
}

func encodeCapabilities(caps []string) (string, error) {
	if caps == nil {
		caps = []string{}
	}
	b, err := json.Marshal(caps)
	if err != nil {
		return "", fmt.Errorf("encoding capabilities: %w", err)
	}
	return string(b), nil
}

// requireAffected maps a zero-row UPDATE/DELETE to ErrNotFound.
func requireAffected(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
