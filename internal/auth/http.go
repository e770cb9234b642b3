// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts the bearer token, resolves the user, and attaches a Session to the context

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/2389/vox-gateway/internal/store"
)

// UserLookup resolves a verified user ID to an account.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// requestToken reads the bearer token, falling back to the access_token query
// parameter for EventSource clients that cannot set headers.
func requestToken(r *http.Request) (string, string) {
	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" && r.Header.Get("Authorization") == "" {
		if q := r.URL.Query().Get("access_token"); q != "" {
			return q, ""
		}
	}
	return token, errMsg
}

// HTTPAuthMiddleware creates an HTTP middleware that validates JWT session
// tokens and attaches the resulting Session to the request context.
func HTTPAuthMiddleware(users UserLookup, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := requestToken(r)
			if errMsg != "" {
				writeUnauthorized(w, errMsg)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, ErrExpiredToken) {
					msg = "token expired"
				}
				writeUnauthorized(w, msg)
				return
			}

			user, err := users.GetUser(r.Context(), userID)
			if err != nil {
				writeUnauthorized(w, "user not found")
				return
			}

			sess := &Session{UserID: user.ID, Email: user.Email, Name: user.Name}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, `{"error":"`+msg+`"}`, http.StatusUnauthorized)
}
