// ABOUTME: Shared JSON helpers, error mapping, and account and agent handlers
// ABOUTME: Every error leaves as {"error": "..."} with a status chosen by statusFor

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/vox-gateway/internal/accounts"
	"github.com/2389/vox-gateway/internal/auth"
	"github.com/2389/vox-gateway/internal/conversation"
	"github.com/2389/vox-gateway/internal/integrations"
	"github.com/2389/vox-gateway/internal/store"
)

// maxJSONBody bounds request bodies for JSON endpoints.
const maxJSONBody = 1 << 20

// errInvalidJSON is returned for bodies that do not decode.
var errInvalidJSON = errors.New("invalid JSON body")

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendJSON writes v as a JSON response.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("writing response failed", "error", err)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v); err != nil {
		return errInvalidJSON
	}
	return nil
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidJSON),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, accounts.ErrInvalidEmail),
		errors.Is(err, accounts.ErrNameRequired),
		errors.Is(err, accounts.ErrAgentNameRequired),
		errors.Is(err, accounts.ErrAgentNameTooLong),
		errors.Is(err, accounts.ErrInvalidCapability),
		errors.Is(err, integrations.ErrNotConnected),
		errors.Is(err, integrations.ErrNotConfigured),
		errors.Is(err, integrations.ErrMissingCode),
		errors.Is(err, integrations.ErrInvalidDraft),
		errors.Is(err, integrations.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, accounts.ErrSignupDisabled):
		return http.StatusForbidden
	case errors.Is(err, accounts.ErrAgentNotFound),
		errors.Is(err, integrations.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, accounts.ErrEmailTaken),
		errors.Is(err, errDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, integrations.ErrUnavailable):
		return http.StatusBadGateway
	}

	switch conversation.KindOf(err) {
	case conversation.KindValidation:
		return http.StatusBadRequest
	case conversation.KindAuthRequired:
		return http.StatusUnauthorized
	case conversation.KindNotFound:
		return http.StatusNotFound
	case conversation.KindBusy:
		return http.StatusConflict
	case conversation.KindUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// sendError maps err to a status and writes it. Internal errors are logged
// and hidden from the client.
func (g *Gateway) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		g.sendJSONError(w, status, "internal error")
		return
	}
	g.sendJSONError(w, status, err.Error())
}

// session returns the authenticated session attached by the auth middleware.
func session(r *http.Request) *auth.Session {
	return auth.FromContext(r.Context())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// UserResponse is the JSON form of an account.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func toUserResponse(u *store.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: formatTime(u.CreatedAt)}
}

// TokenResponse is returned by login and signup.
type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// CredentialsRequest is the body for login and signup.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// handleLogin handles POST /api/auth/login.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendError(w, r, err)
		return
	}
	tok, err := g.svc.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, TokenResponse{
		Token:     tok.Token,
		ExpiresAt: formatTime(tok.ExpiresAt),
		User:      toUserResponse(tok.User),
	})
}

// handleSignup handles POST /api/auth/signup.
func (g *Gateway) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendError(w, r, err)
		return
	}
	tok, err := g.svc.Accounts.Signup(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusCreated, TokenResponse{
		Token:     tok.Token,
		ExpiresAt: formatTime(tok.ExpiresAt),
		User:      toUserResponse(tok.User),
	})
}

// handleMe handles GET /api/me.
func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := g.svc.Accounts.Me(r.Context(), session(r))
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, toUserResponse(user))
}

// AgentResponse is the JSON form of an agent profile.
type AgentResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	Prompt       string   `json:"prompt"`
	Capabilities []string `json:"capabilities"`
	Active       bool     `json:"active"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func toAgentResponse(a *store.Agent) AgentResponse {
	caps := a.Capabilities
	if caps == nil {
		caps = []string{}
	}
	return AgentResponse{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		Type:         a.Type,
		Prompt:       a.Prompt,
		Capabilities: caps,
		Active:       a.Active,
		CreatedAt:    formatTime(a.CreatedAt),
		UpdatedAt:    formatTime(a.UpdatedAt),
	}
}

// AgentRequest is the body for creating or updating an agent. Omitted
// fields are left unchanged on update.
type AgentRequest struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Type         *string  `json:"type"`
	Prompt       *string  `json:"prompt"`
	Capabilities []string `json:"capabilities"`
	Active       *bool    `json:"active"`
}

func (a *AgentRequest) input() *accounts.AgentInput {
	return &accounts.AgentInput{
		Name:         a.Name,
		Description:  a.Description,
		Type:         a.Type,
		Prompt:       a.Prompt,
		Capabilities: a.Capabilities,
		Active:       a.Active,
	}
}

// handleListAgents handles GET /api/agents.
func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request) {
	list, err := g.svc.Agents.List(r.Context(), session(r))
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	out := make([]AgentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAgentResponse(a))
	}
	g.sendJSON(w, http.StatusOK, out)
}

// handleCreateAgent handles POST /api/agents.
func (g *Gateway) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req AgentRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendError(w, r, err)
		return
	}
	a, err := g.svc.Agents.Create(r.Context(), session(r), req.input())
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusCreated, toAgentResponse(a))
}

// handleGetAgent handles GET /api/agents/{id}.
func (g *Gateway) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := g.svc.Agents.Get(r.Context(), session(r), chi.URLParam(r, "id"))
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, toAgentResponse(a))
}

// handleUpdateAgent handles PUT /api/agents/{id}.
func (g *Gateway) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var req AgentRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendError(w, r, err)
		return
	}
	a, err := g.svc.Agents.Update(r.Context(), session(r), chi.URLParam(r, "id"), req.input())
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, toAgentResponse(a))
}

// handleDeleteAgent handles DELETE /api/agents/{id}.
func (g *Gateway) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := g.svc.Agents.Delete(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		g.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
