// ABOUTME: HTTP route table for the gateway
// ABOUTME: chi router with request IDs, recovery, CORS, metrics and JWT auth on /api

package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/vox-gateway/internal/auth"
	"github.com/2389/vox-gateway/internal/metrics"
)

// routes builds the root handler.
func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()

	// Metrics first so every request is counted
	r.Use(metrics.Middleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   g.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints - no auth required
	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)

	if g.config.Metrics.Enabled {
		r.Handle(g.config.Metrics.Path, promhttp.Handler())
	}

	if g.svc.Media != nil {
		prefix := g.config.Media.URLPrefix
		r.Handle(prefix+"/*", g.svc.Media.Handler(prefix))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", g.handleLogin)
		r.Post("/auth/signup", g.handleSignup)

		// The browser lands here from Google, without a bearer token
		r.Get("/integrations/{provider}/callback", g.handleIntegrationCallback)

		r.Group(func(r chi.Router) {
			r.Use(auth.HTTPAuthMiddleware(g.svc.Store, g.svc.Verifier))

			r.Get("/me", g.handleMe)

			r.Get("/agents", g.handleListAgents)
			r.Post("/agents", g.handleCreateAgent)
			r.Get("/agents/{id}", g.handleGetAgent)
			r.Put("/agents/{id}", g.handleUpdateAgent)
			r.Delete("/agents/{id}", g.handleDeleteAgent)

			r.Post("/chat", g.handleChat)
			r.Get("/conversations", g.handleListConversations)
			r.Get("/conversations/{id}", g.handleGetConversation)
			r.Delete("/conversations/{id}", g.handleDeleteConversation)
			r.Get("/conversations/{id}/messages", g.handleMessages)
			r.Get("/conversations/{id}/stream", g.handleStream)

			r.Post("/voice/transcribe", g.handleTranscribe)

			r.Get("/integrations", g.handleListIntegrations)
			r.Get("/integrations/gmail/messages", g.handleGmailMessages)
			r.Post("/integrations/gmail/send", g.handleSendEmail)
			r.Get("/integrations/google_calendar/events", g.handleCalendarEvents)
			r.Post("/integrations/google_calendar/events", g.handleCreateEvent)
			r.Post("/integrations/{provider}/connect", g.handleConnectIntegration)
			r.Post("/integrations/{provider}/disconnect", g.handleDisconnectIntegration)
		})
	})

	return r
}
