// ABOUTME: Integration handlers: list, connect, disconnect, OAuth callback, Google reads and writes
// ABOUTME: The callback answers with a small page that notifies the opener window

package gateway

import (
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/vox-gateway/internal/integrations"
)

// IntegrationResponse is the JSON form of one provider's status.
type IntegrationResponse struct {
	Provider  string `json:"provider"`
	Name      string `json:"name"`
	OAuth     bool   `json:"oauth"`
	Connected bool   `json:"connected"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ConnectResponse tells the browser whether to open a consent popup.
type ConnectResponse struct {
	AuthURL   string `json:"auth_url,omitempty"`
	Connected bool   `json:"connected"`
}

// handleListIntegrations handles GET /api/integrations.
func (g *Gateway) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	list, err := g.svc.Integrations.List(r.Context(), session(r).UserID)
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	out := make([]IntegrationResponse, 0, len(list))
	for _, st := range list {
		resp := IntegrationResponse{Provider: st.Provider, Name: st.Name, OAuth: st.OAuth, Connected: st.Connected}
		if !st.UpdatedAt.IsZero() {
			resp.UpdatedAt = formatTime(st.UpdatedAt)
		}
		out = append(out, resp)
	}
	g.sendJSON(w, http.StatusOK, out)
}

// handleConnectIntegration handles POST /api/integrations/{provider}/connect.
func (g *Gateway) handleConnectIntegration(w http.ResponseWriter, r *http.Request) {
	res, err := g.svc.Integrations.Connect(r.Context(), session(r).UserID, chi.URLParam(r, "provider"))
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, ConnectResponse{AuthURL: res.AuthURL, Connected: res.Connected})
}

// handleDisconnectIntegration handles POST /api/integrations/{provider}/disconnect.
func (g *Gateway) handleDisconnectIntegration(w http.ResponseWriter, r *http.Request) {
	if err := g.svc.Integrations.Disconnect(r.Context(), session(r).UserID, chi.URLParam(r, "provider")); err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, ConnectResponse{Connected: false})
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<body>
<script>
if (window.opener) {
  window.opener.postMessage({{.}}, "*");
}
window.close();
</script>
<p>{{if .error}}Connection failed: {{.error}}{{else}}Connected. You can close this window.{{end}}</p>
</body>
</html>
`))

// handleIntegrationCallback handles GET /api/integrations/{provider}/callback.
func (g *Gateway) handleIntegrationCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	q := r.URL.Query()

	payload := map[string]string{"type": "oauth_success", "provider": provider}
	status := http.StatusOK

	if e := q.Get("error"); e != "" {
		payload = map[string]string{"type": "oauth_error", "provider": provider, "error": e}
	} else if _, err := g.svc.Integrations.Callback(r.Context(), provider, q.Get("code"), q.Get("state")); err != nil {
		g.logger.Warn("oauth callback failed", "provider", provider, "error", err)
		status = statusFor(err)
		payload = map[string]string{"type": "oauth_error", "provider": provider, "error": err.Error()}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := callbackPage.Execute(w, payload); err != nil {
		g.logger.Error("rendering callback page", "error", err)
	}
}

// handleGmailMessages handles GET /api/integrations/gmail/messages?max=N.
func (g *Gateway) handleGmailMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("max"))
	emails, err := g.svc.Integrations.RecentEmails(r.Context(), session(r).UserID, limit)
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"emails": emails})
}

// handleCalendarEvents handles GET /api/integrations/google_calendar/events?days=N.
func (g *Gateway) handleCalendarEvents(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if days, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && days > 0 {
		window = time.Duration(days) * 24 * time.Hour
	}
	events, err := g.svc.Integrations.UpcomingEvents(r.Context(), session(r).UserID, window)
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"events": events})
}

// handleSendEmail handles POST /api/integrations/gmail/send.
func (g *Gateway) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var draft integrations.EmailDraft
	if err := decodeJSON(r, &draft); err != nil {
		g.sendError(w, r, err)
		return
	}
	sent, err := g.svc.Integrations.SendEmail(r.Context(), session(r).UserID, draft)
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, sent)
}

// handleCreateEvent handles POST /api/integrations/google_calendar/events.
func (g *Gateway) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var draft integrations.EventDraft
	if err := decodeJSON(r, &draft); err != nil {
		g.sendError(w, r, err)
		return
	}
	ev, err := g.svc.Integrations.CreateEvent(r.Context(), session(r).UserID, draft)
	if err != nil {
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusCreated, ev)
}
