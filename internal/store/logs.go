// ABOUTME: Interaction log persistence for SQLiteStore
// ABOUTME: One row per chat turn with timing and token estimates

package store

import (
	"context"
	"fmt"
	"time"
)

// SaveInteractionLog records a chat turn.
func (s *SQLiteStore) SaveInteractionLog(ctx context.Context, entry *InteractionLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interaction_logs (id, user_id, agent_id, conversation_id, action, query, response,
			success, fallback, processing_time_ms, tokens_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.UserID,
		entry.AgentID,
		nullString(entry.ConversationID),
		entry.Action,
		entry.Query,
		entry.Response,
		boolInt(entry.Success),
		boolInt(entry.Fallback),
		entry.ProcessingTime.Milliseconds(),
		entry.TokensUsed,
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting interaction log: %w", err)
	}
	return nil
}

// ListInteractionLogs returns a user's most recent interaction logs, newest first.
func (s *SQLiteStore) ListInteractionLogs(ctx context.Context, userID string, limit int) ([]*InteractionLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, agent_id, COALESCE(conversation_id, ''), action, query, response,
			success, fallback, processing_time_ms, tokens_used, created_at
		FROM interaction_logs
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying interaction logs: %w", err)
	}
	defer rows.Close()

	var out []*InteractionLog
	for rows.Next() {
		var e InteractionLog
		var success, fallback int
		var ms int64
		var createdAt string
		if err := rows.Scan(&e.ID, &e.UserID, &e.AgentID, &e.ConversationID, &e.Action,
			&e.Query, &e.Response, &success, &fallback, &ms, &e.TokensUsed, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning interaction log: %w", err)
		}
		e.Success = success != 0
		e.Fallback = fallback != 0
		e.ProcessingTime = time.Duration(ms) * time.Millisecond
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interaction logs: %w", err)
	}
	return out, nil
}
