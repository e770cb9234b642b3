// Package auth provides authentication for vox-gateway.
//
// # Sessions
//
// Users log in with email and password (bcrypt hashes, see HashPassword and
// CheckPassword) and receive an HS256 JWT whose "sub" claim is the user ID.
// HTTPAuthMiddleware verifies the token, loads the user and attaches a
// *Session to the request context. Handlers read it once with FromContext
// and pass it explicitly to domain services; nothing below the HTTP layer
// reads identity from the context.
//
// # OAuth State
//
// Integration consent flows carry a signed state token produced by
// GenerateState. It is bound to a user and a provider and carries a
// "purpose" claim, so it cannot be used as a session token and a session
// token cannot complete a consent flow.
package auth
