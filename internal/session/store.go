package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/ports"
	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenType = "bearer"

var ErrEmptyAccessToken = errors.New("access token is empty")

// Store owns the in-memory session and mirrors every change to the
// configured CredentialStore. It is the only writer of session state.
type Store struct {
	mu          sync.RWMutex
	current     domain.Session
	credentials ports.CredentialStore
	clock       ports.Clock
}

func NewStore(credentials ports.CredentialStore, clock ports.Clock) *Store {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Store{credentials: credentials, clock: clock}
}

// Load restores a persisted session. A missing session is not an error.
func (s *Store) Load(ctx context.Context) error {
	if s.credentials == nil {
		return nil
	}

	loaded, err := s.credentials.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}
	if !loaded.IsAuthenticated() {
		return nil
	}
	if loaded.ExpiresAt.IsZero() {
		loaded.ExpiresAt = tokenExpiry(loaded.AccessToken)
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	return nil
}

// SetTokens replaces both tokens. The in-memory session is updated even when
// persisting it fails; the persistence error is still returned.
func (s *Store) SetTokens(ctx context.Context, accessToken string, refreshToken string) error {
	if accessToken == "" {
		return ErrEmptyAccessToken
	}

	next := domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    defaultTokenType,
		ExpiresAt:    tokenExpiry(accessToken),
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	if s.credentials == nil {
		return nil
	}
	if err := s.credentials.Save(ctx, next); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	return nil
}

// Clear drops the session from memory first so a failed delete never leaves
// the user authenticated.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = domain.Session{}
	s.mu.Unlock()

	if s.credentials == nil {
		return nil
	}
	if err := s.credentials.Delete(ctx); err != nil {
		return fmt.Errorf("delete persisted session: %w", err)
	}

	return nil
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.AccessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.RefreshToken
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.IsAuthenticated()
}

func (s *Store) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) ExpiringWithin(skew time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.ExpiringWithin(s.clock.Now(), skew)
}

// tokenExpiry reads the exp claim without verifying the signature; the
// service is the only party able to verify it.
func tokenExpiry(accessToken string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time.UTC()
}
