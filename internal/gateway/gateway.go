// ABOUTME: Gateway orchestrator that wires the store, services and HTTP server
// ABOUTME: Manages startup, health endpoints and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/vox-gateway/internal/accounts"
	"github.com/2389/vox-gateway/internal/auth"
	"github.com/2389/vox-gateway/internal/config"
	"github.com/2389/vox-gateway/internal/conversation"
	"github.com/2389/vox-gateway/internal/dedupe"
	"github.com/2389/vox-gateway/internal/integrations"
	"github.com/2389/vox-gateway/internal/media"
	"github.com/2389/vox-gateway/internal/speech"
	"github.com/2389/vox-gateway/internal/store"
	"github.com/2389/vox-gateway/internal/workflow"
)

// Services are the domain services the HTTP layer dispatches to. Transcriber
// and Media may be nil when speech is disabled.
type Services struct {
	Store        store.Store
	Verifier     *auth.JWTVerifier
	Accounts     *accounts.Service
	Agents       *accounts.Agents
	Conversation *conversation.Service
	Integrations *integrations.Service
	Transcriber  speech.Transcriber
	Media        *media.Store
	Dedupe       *dedupe.Cache
}

// Gateway owns the HTTP server and every long-lived component behind it.
type Gateway struct {
	config     *config.Config
	svc        Services
	markdown   goldmark.Markdown
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore opens the SQLite database, expanding a leading ~/ in the path.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if strings.HasPrefix(dbPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[2:])
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

// New creates a Gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	svc := Services{
		Store:    s,
		Verifier: verifier,
		Accounts: accounts.NewService(s, verifier, cfg.Auth.TokenTTL, cfg.Auth.AllowSignup, logger),
		Agents:   accounts.NewAgents(s, logger),
		Integrations: integrations.NewService(s, verifier, integrations.Options{
			ClientID:     cfg.Integrations.Google.ClientID,
			ClientSecret: cfg.Integrations.Google.ClientSecret,
			PublicURL:    cfg.Server.PublicURL,
		}, logger),
		Dedupe: dedupe.New(cfg.Chat.IdempotencyTTL, cfg.Chat.IdempotencyMax),
	}

	convCfg := conversation.Config{
		Store:           s,
		Generator:       workflow.NewClient(cfg.Workflow.WebhookURL, cfg.Workflow.APIKey, logger),
		Logger:          logger,
		WorkflowTimeout: cfg.Workflow.Timeout,
		SpeechTimeout:   cfg.Speech.Timeout,
		TitleLength:     cfg.Chat.TitleLength,
	}
	if cfg.Speech.Enabled {
		speechClient := speech.NewClient(speech.Config{
			BaseURL:    cfg.Speech.BaseURL,
			APIKey:     cfg.Speech.APIKey,
			VoiceID:    cfg.Speech.VoiceID,
			ModelID:    cfg.Speech.ModelID,
			STTModelID: cfg.Speech.STTModelID,
		}, logger)
		mediaStore, err := media.NewStore(cfg.Media.Dir, cfg.Server.PublicURL, cfg.Media.URLPrefix, logger)
		if err != nil {
			svc.Dedupe.Close()
			s.Close()
			return nil, err
		}
		convCfg.Synthesizer = speechClient
		convCfg.Media = mediaStore
		svc.Transcriber = speechClient
		svc.Media = mediaStore
		logger.Info("speech enabled", "voice_id", cfg.Speech.VoiceID, "media_dir", cfg.Media.Dir)
	} else {
		logger.Warn("speech disabled - replies will be text only")
	}
	svc.Conversation = conversation.New(convCfg)

	if !cfg.Integrations.Google.Enabled() {
		logger.Warn("google oauth not configured - gmail and calendar cannot be connected")
	}

	gw := newGateway(cfg, svc, logger)
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return gw, nil
}

// newGateway builds the HTTP handler over already constructed services.
func newGateway(cfg *config.Config, svc Services, logger *slog.Logger) *Gateway {
	gw := &Gateway{
		config:   cfg,
		svc:      svc,
		markdown: newMarkdown(),
		logger:   logger.With("component", "gateway"),
	}
	gw.handler = gw.routes()
	return gw
}

// Handler returns the root HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts down.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}
	g.logger.Info("starting gateway",
		"http_addr", ln.Addr().String(),
		"public_url", g.config.Server.PublicURL)

	errCh := make(chan error, 1)
	go func() {
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
		close(errCh)
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case err, ok := <-errCh:
		if ok {
			g.logger.Error("server error", "error", err)
			serverErr = err
		}
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the run context is already done.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases every component.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if g.httpServer != nil {
		errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	}
	if g.svc.Conversation != nil {
		g.svc.Conversation.Broadcaster().Close()
	}
	if g.svc.Dedupe != nil {
		g.svc.Dedupe.Close()
	}
	if g.svc.Store != nil {
		errs = appendCloseError(errs, "store close", g.svc.Store.Close())
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := g.svc.Store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
