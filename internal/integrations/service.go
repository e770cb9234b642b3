// ABOUTME: Integration service: connect, OAuth callback, disconnect and listing
// ABOUTME: Google tokens come from golang.org/x/oauth2 and are stored per (user, provider)

package integrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/2389/vox-gateway/internal/store"
)

var (
	ErrUnknownProvider = errors.New("unknown integration provider")
	ErrNotConfigured   = errors.New("integration provider is not configured")
	ErrNotConnected    = errors.New("integration is not connected")
	ErrInvalidState    = errors.New("invalid oauth state")
	ErrMissingCode     = errors.New("missing authorization code")
	// ErrUnavailable wraps failures talking to the provider's API.
	ErrUnavailable = errors.New("integration provider unavailable")
)

// DefaultStateTTL bounds how long a consent screen may stay open.
const DefaultStateTTL = 10 * time.Minute

// Store defines what the integration service needs from storage
type Store interface {
	UpsertIntegration(ctx context.Context, in *store.Integration) error
	GetIntegration(ctx context.Context, userID, provider string) (*store.Integration, error)
	ListIntegrations(ctx context.Context, userID string) ([]*store.Integration, error)
}

// StateSigner issues and checks the OAuth state parameter, binding a consent
// round trip to one user and provider.
type StateSigner interface {
	GenerateState(userID, provider string, expiresIn time.Duration) (string, error)
	VerifyState(state, provider string) (userID string, err error)
}

// Options configures the Google OAuth client.
type Options struct {
	ClientID     string
	ClientSecret string
	// PublicURL is the externally reachable gateway base URL, used to build
	// the redirect URI {PublicURL}/api/integrations/{provider}/callback.
	PublicURL string
	StateTTL  time.Duration

	// Endpoint overrides google.Endpoint. Tests point it at a local server.
	Endpoint oauth2.Endpoint
	// APIEndpoints overrides the Google API base URL per provider.
	APIEndpoints map[string]string
	// HTTPClient is used for token exchange and refresh.
	HTTPClient *http.Client
}

// Service manages a user's third-party connections.
type Service struct {
	store    Store
	signer   StateSigner
	opts     Options
	logger   *slog.Logger
	mu       sync.Mutex
	configs  map[string]*oauth2.Config
	now      func() time.Time
	endpoint oauth2.Endpoint
}

// NewService creates an integration service. Google providers are usable
// only when ClientID and ClientSecret are set.
func NewService(s Store, signer StateSigner, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StateTTL <= 0 {
		opts.StateTTL = DefaultStateTTL
	}
	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &Service{
		store:    s,
		signer:   signer,
		opts:     opts,
		logger:   logger.With("component", "integrations"),
		configs:  make(map[string]*oauth2.Config),
		now:      time.Now,
		endpoint: endpoint,
	}
}

// Status is the connection state of one provider for one user.
type Status struct {
	Provider  string
	Name      string
	OAuth     bool
	Connected bool
	UpdatedAt time.Time
}

// List returns every known provider merged with the user's stored records.
func (s *Service) List(ctx context.Context, userID string) ([]Status, error) {
	records, err := s.store.ListIntegrations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing integrations: %w", err)
	}
	byProvider := make(map[string]*store.Integration, len(records))
	for _, r := range records {
		byProvider[r.Provider] = r
	}

	out := make([]Status, 0, len(providers))
	for _, p := range providers {
		st := Status{Provider: p.ID, Name: p.Name, OAuth: p.OAuth()}
		if r, ok := byProvider[p.ID]; ok {
			st.Connected = r.Connected
			st.UpdatedAt = r.UpdatedAt
		}
		out = append(out, st)
	}
	return out, nil
}

// ConnectResult tells the caller what happens next. AuthURL is set for OAuth
// providers; the browser must visit it to finish connecting.
type ConnectResult struct {
	AuthURL   string
	Connected bool
}

// Connect starts connecting a provider.
func (s *Service) Connect(ctx context.Context, userID, providerID string) (*ConnectResult, error) {
	p, ok := Lookup(providerID)
	if !ok {
		return nil, ErrUnknownProvider
	}

	if !p.OAuth() {
		if err := s.store.UpsertIntegration(ctx, &store.Integration{
			UserID:    userID,
			Provider:  p.ID,
			Name:      p.Name,
			Connected: true,
			UpdatedAt: s.now(),
		}); err != nil {
			return nil, fmt.Errorf("saving integration: %w", err)
		}
		s.logger.Info("integration connected", "user_id", userID, "provider", p.ID)
		return &ConnectResult{Connected: true}, nil
	}

	conf, err := s.oauthConfig(p)
	if err != nil {
		return nil, err
	}
	state, err := s.signer.GenerateState(userID, p.ID, s.opts.StateTTL)
	if err != nil {
		return nil, fmt.Errorf("signing state: %w", err)
	}
	return &ConnectResult{
		AuthURL: conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce),
	}, nil
}

// Callback finishes an OAuth round trip: it verifies state, exchanges the
// code and stores the tokens. The returned record has the user it belongs to.
func (s *Service) Callback(ctx context.Context, providerID, code, state string) (*store.Integration, error) {
	p, ok := Lookup(providerID)
	if !ok || !p.OAuth() {
		return nil, ErrUnknownProvider
	}
	userID, err := s.signer.VerifyState(state, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if code == "" {
		return nil, ErrMissingCode
	}
	conf, err := s.oauthConfig(p)
	if err != nil {
		return nil, err
	}

	tok, err := conf.Exchange(s.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchanging code: %v", ErrUnavailable, err)
	}

	rec := &store.Integration{
		UserID:       userID,
		Provider:     p.ID,
		Name:         p.Name,
		Connected:    true,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		UpdatedAt:    s.now(),
	}
	if err := s.store.UpsertIntegration(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving integration: %w", err)
	}
	s.logger.Info("integration connected", "user_id", userID, "provider", p.ID)
	return rec, nil
}

// Disconnect clears stored tokens and marks the provider disconnected.
func (s *Service) Disconnect(ctx context.Context, userID, providerID string) error {
	p, ok := Lookup(providerID)
	if !ok {
		return ErrUnknownProvider
	}
	if err := s.store.UpsertIntegration(ctx, &store.Integration{
		UserID:    userID,
		Provider:  p.ID,
		Name:      p.Name,
		Connected: false,
		UpdatedAt: s.now(),
	}); err != nil {
		return fmt.Errorf("saving integration: %w", err)
	}
	s.logger.Info("integration disconnected", "user_id", userID, "provider", p.ID)
	return nil
}

func (s *Service) oauthConfig(p Provider) (*oauth2.Config, error) {
	if s.opts.ClientID == "" || s.opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, p.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if conf, ok := s.configs[p.ID]; ok {
		return conf, nil
	}
	conf := &oauth2.Config{
		ClientID:     s.opts.ClientID,
		ClientSecret: s.opts.ClientSecret,
		RedirectURL:  strings.TrimSuffix(s.opts.PublicURL, "/") + "/api/integrations/" + p.ID + "/callback",
		Scopes:       p.Scopes,
		Endpoint:     s.endpoint,
	}
	s.configs[p.ID] = conf
	return conf, nil
}

// clientContext carries the configured HTTP client to x/oauth2.
func (s *Service) clientContext(ctx context.Context) context.Context {
	if s.opts.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.opts.HTTPClient)
}

// connectedToken loads a connected record and its token.
func (s *Service) connectedToken(ctx context.Context, userID string, p Provider) (*store.Integration, *oauth2.Token, error) {
	rec, err := s.store.GetIntegration(ctx, userID, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrNotConnected
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading integration: %w", err)
	}
	if !rec.Connected || (rec.AccessToken == "" && rec.RefreshToken == "") {
		return nil, nil, ErrNotConnected
	}
	return rec, &oauth2.Token{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		TokenType:    rec.TokenType,
		Expiry:       rec.Expiry,
	}, nil
}

// savingTokenSource persists tokens the oauth2 library refreshes.
type savingTokenSource struct {
	base oauth2.TokenSource
	save func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (ts *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.base.Token()
	if err != nil {
		return nil, err
	}
	ts.mu.Lock()
	changed := tok.AccessToken != ts.last
	ts.last = tok.AccessToken
	ts.mu.Unlock()
	if changed {
		ts.save(tok)
	}
	return tok, nil
}

// authorizedClient returns an HTTP client that signs requests with the user's
// token and writes refreshed tokens back to the store.
func (s *Service) authorizedClient(ctx context.Context, userID string, p Provider) (*http.Client, error) {
	conf, err := s.oauthConfig(p)
	if err != nil {
		return nil, err
	}
	rec, tok, err := s.connectedToken(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	cctx := s.clientContext(ctx)
	src := &savingTokenSource{
		base: conf.TokenSource(cctx, tok),
		last: tok.AccessToken,
		save: func(fresh *oauth2.Token) {
			updated := *rec
			updated.AccessToken = fresh.AccessToken
			if fresh.RefreshToken != "" {
				updated.RefreshToken = fresh.RefreshToken
			}
			updated.TokenType = fresh.TokenType
			updated.Expiry = fresh.Expiry
			updated.UpdatedAt = s.now()
			if err := s.store.UpsertIntegration(context.WithoutCancel(ctx), &updated); err != nil {
				s.logger.Warn("saving refreshed token failed", "user_id", userID, "provider", p.ID, "error", err)
				return
			}
			s.logger.Debug("refreshed token saved", "user_id", userID, "provider", p.ID)
		},
	}
	return oauth2.NewClient(cctx, src), nil
}
