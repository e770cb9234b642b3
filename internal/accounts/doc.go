// Package accounts manages users and the agent profiles they own.
//
// Service handles signup, login and profile lookup. Passwords are stored as
// bcrypt hashes and sessions are HS256 JWTs issued by auth.JWTVerifier.
// Signup is gated by the allow_signup setting, except for the first account.
//
// Agents handles agent CRUD. Every call takes the caller's *auth.Session and
// agents owned by other users are reported as ErrAgentNotFound.
package accounts
