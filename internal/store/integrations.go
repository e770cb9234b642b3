// ABOUTME: Integration connection persistence for SQLiteStore
// ABOUTME: One row per (user, provider), written with upsert semantics

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertIntegration inserts or replaces the record for (user, provider).
func (s *SQLiteStore) UpsertIntegration(ctx context.Context, in *Integration) error {
	var expiry any
	if !in.Expiry.IsZero() {
		expiry = formatTime(in.Expiry)
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO integrations (user_id, provider, name, connected, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			name = excluded.name,
			connected = excluded.connected,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at
	`,
		in.UserID,
		in.Provider,
		in.Name,
		boolInt(in.Connected),
		nullString(in.AccessToken),
		nullString(in.RefreshToken),
		nullString(in.TokenType),
		expiry,
		formatTime(in.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("user %s: %w", in.UserID, ErrNotFound)
		}
		return fmt.Errorf("upserting integration: %w", err)
	}

	s.logger.Debug("upserted integration", "user_id", in.UserID, "provider", in.Provider, "connected", in.Connected)
	return nil
}

// GetIntegration retrieves the record for (user, provider).
func (s *SQLiteStore) GetIntegration(ctx context.Context, userID, provider string) (*Integration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, provider, name, connected, access_token, refresh_token, token_type, expiry, updated_at
		FROM integrations WHERE user_id = ? AND provider = ?
	`, userID, provider)
	return scanIntegration(row)
}

// ListIntegrations returns all stored records for a user ordered by provider.
func (s *SQLiteStore) ListIntegrations(ctx context.Context, userID string) ([]*Integration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, provider, name, connected, access_token, refresh_token, token_type, expiry, updated_at
		FROM integrations WHERE user_id = ?
		ORDER BY provider
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	defer rows.Close()

	var out []*Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating integrations: %w", err)
	}
	return out, nil
}

func scanIntegration(row rowScanner) (*Integration, error) {
	var in Integration
	var connected int
	var access, refresh, tokenType, expiry sql.NullString
	var updatedAt string

	err := row.Scan(&in.UserID, &in.Provider, &in.Name, &connected,
		&access, &refresh, &tokenType, &expiry, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying integration: %w", err)
	}

	in.Connected = connected != 0
	in.AccessToken = access.String
	in.RefreshToken = refresh.String
	in.TokenType = tokenType.String
	if expiry.Valid {
		if in.Expiry, err = parseTime(expiry.String); err != nil {
			return nil, fmt.Errorf("parsing expiry: %w", err)
		}
	}
	if in.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &in, nil
}
