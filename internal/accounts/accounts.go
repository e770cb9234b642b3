// ABOUTME: Account service: signup, login and profile lookup
// ABOUTME: Hashes passwords with bcrypt and issues JWT session tokens

package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/vox-gateway/internal/auth"
	"github.com/2389/vox-gateway/internal/store"
)

var (
	ErrSignupDisabled = errors.New("signup is disabled")
	ErrEmailTaken     = errors.New("email already registered")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrNameRequired   = errors.New("name is required")
)

// UserStore defines what the account service needs from storage
type UserStore interface {
	CreateUser(ctx context.Context, user *store.User) error
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Generate(userID string, expiresIn time.Duration) (string, error)
}

// Service manages user accounts.
type Service struct {
	users       UserStore
	tokens      TokenIssuer
	tokenTTL    time.Duration
	allowSignup bool
	logger      *slog.Logger
}

// NewService creates an account service.
func NewService(users UserStore, tokens TokenIssuer, tokenTTL time.Duration, allowSignup bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:       users,
		tokens:      tokens,
		tokenTTL:    tokenTTL,
		allowSignup: allowSignup,
		logger:      logger.With("component", "accounts"),
	}
}

// Token is a signed session token for a user.
type Token struct {
	Token     string
	ExpiresAt time.Time
	User      *store.User
}

// Register creates an account without the signup gate. Used by the CLI.
func (s *Service) Register(ctx context.Context, email, name, password string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Signup registers a new account and logs it in. The very first account may
// always sign up so a fresh install can be bootstrapped from the browser.
func (s *Service) Signup(ctx context.Context, email, name, password string) (*Token, error) {
	if !s.allowSignup {
		n, err := s.users.CountUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting users: %w", err)
		}
		if n > 0 {
			return nil, ErrSignupDisabled
		}
	}
	user, err := s.Register(ctx, email, name, password)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login checks credentials and returns a session token. Unknown emails and
// wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, auth.ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		s.logger.Debug("login rejected", "user_id", user.ID)
		return nil, err
	}
	return s.issue(user)
}

// Me returns the account behind a session.
func (s *Service) Me(ctx context.Context, sess *auth.Session) (*store.User, error) {
	if sess == nil {
		return nil, auth.ErrInvalidToken
	}
	return s.users.GetUser(ctx, sess.UserID)
}

func (s *Service) issue(user *store.User) (*Token, error) {
	token, err := s.tokens.Generate(user.ID, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}
	return &Token{
		Token:     token,
		ExpiresAt: time.Now().Add(s.tokenTTL),
		User:      user,
	}, nil
}
