// ABOUTME: Authenticated session carried through request handlers
// ABOUTME: Provides WithSession/FromContext for handing the session to domain services

package auth

import (
	"context"
)

// Session is the authenticated identity for one request. Handlers pull it
// from the request context once and pass it explicitly to domain services.
type Session struct {
	UserID string
	Email  string
	Name   string
}

// sessionKey is the key type for storing Session in context.Context.
type sessionKey struct{}

// WithSession returns a new context with the Session attached.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext retrieves the Session from the context, returning nil if not present.
func FromContext(ctx context.Context) *Session {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	if !ok {
		return nil
	}
	return s
}
