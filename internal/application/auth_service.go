package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/gateway"
	"github.com/bnema/taskflow-cli/internal/ports"
)

type Authenticator interface {
	Login(ctx context.Context, req domain.LoginRequest) (domain.Tokens, error)
	Register(ctx context.Context, req domain.Registration) (domain.User, error)
}

type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error)
}

type SessionManager interface {
	SetTokens(ctx context.Context, accessToken string, refreshToken string) error
	Clear(ctx context.Context) error
	RefreshToken() string
	IsAuthenticated() bool
	ExpiringWithin(skew time.Duration) bool
	Snapshot() domain.Session
}

// CacheClearer drops cached reads that belong to the previous user.
type CacheClearer interface {
	Clear()
}

type AuthService struct {
	auth      Authenticator
	refresher TokenRefresher
	session   SessionManager
	cache     CacheClearer
	clock     ports.Clock
	logger    *slog.Logger
}

func NewAuthService(auth Authenticator, refresher TokenRefresher, session SessionManager, cache CacheClearer, clock ports.Clock, logger *slog.Logger) *AuthService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &AuthService{
		auth:      auth,
		refresher: refresher,
		session:   session,
		cache:     cache,
		clock:     clock,
		logger:    logger,
	}
}

func (s *AuthService) Login(ctx context.Context, cmd LoginCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	tokens, err := s.auth.Login(ctx, cmd)
	if err != nil {
		return err
	}

	s.clearCache()
	if err := s.session.SetTokens(ctx, tokens.AccessToken, tokens.RefreshToken); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	s.logger.InfoContext(ctx, "logged in")
	return nil
}

// Register creates the account without logging in.
func (s *AuthService) Register(ctx context.Context, cmd RegisterCommand) (domain.User, error) {
	if err := cmd.Validate(); err != nil {
		return domain.User{}, err
	}

	user, err := s.auth.Register(ctx, cmd)
	if err != nil {
		return domain.User{}, err
	}

	s.logger.InfoContext(ctx, "registered", "user_id", user.ID)
	return user, nil
}

// Logout forgets the session and every cached read. The cache is cleared
// even when the persisted session cannot be deleted.
func (s *AuthService) Logout(ctx context.Context) error {
	s.clearCache()
	if err := s.session.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	s.logger.InfoContext(ctx, "logged out")
	return nil
}

// Refresh exchanges the stored refresh token. A rejected refresh token ends
// the session.
func (s *AuthService) Refresh(ctx context.Context) error {
	refreshToken := s.session.RefreshToken()

	tokens, err := s.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		if !errors.Is(err, gateway.ErrUnauthenticated) {
			return fmt.Errorf("refresh session: %w", err)
		}

		s.logger.WarnContext(ctx, "refresh token rejected, clearing session")
		s.clearCache()
		if clearErr := s.session.Clear(ctx); clearErr != nil {
			return fmt.Errorf("refresh session and clear rejected session: %w", errors.Join(err, clearErr))
		}
		return fmt.Errorf("refresh session: %w", err)
	}

	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	if err := s.session.SetTokens(ctx, tokens.AccessToken, tokens.RefreshToken); err != nil {
		return fmt.Errorf("store refreshed session: %w", err)
	}

	s.logger.DebugContext(ctx, "session refreshed")
	return nil
}

// EnsureFresh refreshes the session when the access token expires within
// RefreshSkew. It reports whether a refresh was attempted.
func (s *AuthService) EnsureFresh(ctx context.Context) (bool, error) {
	if !s.session.IsAuthenticated() || !s.session.ExpiringWithin(RefreshSkew) {
		return false, nil
	}
	if s.session.RefreshToken() == "" {
		return false, nil
	}

	return true, s.Refresh(ctx)
}

func (s *AuthService) Status() SessionStatus {
	current := s.session.Snapshot()

	status := SessionStatus{
		Authenticated: current.IsAuthenticated(),
		ExpiresAt:     current.ExpiresAt,
	}
	if status.Authenticated && !current.ExpiresAt.IsZero() {
		status.Expired = !current.ExpiresAt.After(s.clock.Now())
	}
	return status
}

func (s *AuthService) clearCache() {
	if s.cache != nil {
		s.cache.Clear()
	}
}
