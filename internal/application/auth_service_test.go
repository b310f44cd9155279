package application

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bnema/taskflow-cli/internal/api"
	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/fakeapi"
	"github.com/bnema/taskflow-cli/internal/gateway"
	"github.com/bnema/taskflow-cli/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type countingCache struct {
	clears int
}

func (c *countingCache) Clear() {
	c.clears++
}

type memoryCredentials struct {
	saved     *domain.Session
	deleteErr error
}

func (m *memoryCredentials) Load(context.Context) (domain.Session, error) {
	if m.saved == nil {
		return domain.Session{}, domain.ErrNoSession
	}
	return *m.saved, nil
}

func (m *memoryCredentials) Save(_ context.Context, current domain.Session) error {
	m.saved = &current
	return nil
}

func (m *memoryCredentials) Delete(context.Context) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.saved = nil
	return nil
}

type authHarness struct {
	server      *fakeapi.Server
	gateway     *gateway.Gateway
	session     *session.Store
	credentials *memoryCredentials
	cache       *countingCache
	service     *AuthService
}

func newAuthHarness(t *testing.T, opts ...fakeapi.Option) authHarness {
	t.Helper()

	server := fakeapi.New(opts...)
	httpServer := server.Start()
	t.Cleanup(httpServer.Close)

	credentials := &memoryCredentials{}
	store := session.NewStore(credentials, nil)
	gw, err := gateway.New(gateway.Config{BaseURL: fakeapi.BaseURL(httpServer), Tokens: store})
	require.NoError(t, err)

	cache := &countingCache{}
	service := NewAuthService(api.NewClient(gw), gw, store, cache, nil, nil)

	return authHarness{server: server, gateway: gw, session: store, credentials: credentials, cache: cache, service: service}
}

func TestLoginStoresSessionAndClearsCache(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	h.server.SeedUser("ada@example.com", "correct-horse")

	err := h.service.Login(context.Background(), LoginCommand{Email: "ada@example.com", Password: "correct-horse"})

	require.NoError(t, err)
	assert.True(t, h.session.IsAuthenticated())
	require.NotNil(t, h.credentials.saved)
	assert.NotEmpty(t, h.credentials.saved.RefreshToken)
	assert.Equal(t, 1, h.cache.clears)
	assert.True(t, h.service.Status().Authenticated)
}

func TestLoginRejectedLeavesSessionEmpty(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	h.server.SeedUser("ada@example.com", "correct-horse")

	err := h.service.Login(context.Background(), LoginCommand{Email: "ada@example.com", Password: "wrong-horse"})

	require.ErrorIs(t, err, gateway.ErrUnauthenticated)
	assert.False(t, h.session.IsAuthenticated())
	assert.Zero(t, h.cache.clears)
}

func TestLoginValidatesLocally(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)

	err := h.service.Login(context.Background(), LoginCommand{Email: "not-an-address", Password: "x"})

	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Zero(t, h.server.Hits(http.MethodPost, "/auth/login"))
}

func TestRegisterDoesNotLogIn(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)

	user, err := h.service.Register(context.Background(), RegisterCommand{Email: "ada@example.com", Password: "correct-horse"})

	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.False(t, h.session.IsAuthenticated())
}

func TestLogoutClearsSessionAndCache(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	h.server.SeedUser("ada@example.com", "correct-horse")
	tokens := h.server.IssueTokens("ada@example.com")
	require.NoError(t, h.session.SetTokens(context.Background(), tokens.AccessToken, tokens.RefreshToken))

	require.NoError(t, h.service.Logout(context.Background()))

	assert.False(t, h.session.IsAuthenticated())
	assert.Nil(t, h.credentials.saved)
	assert.Equal(t, 1, h.cache.clears)
}

func TestLogoutReportsDeleteFailureButForgetsInMemory(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	h.credentials.deleteErr = errors.New("disk full")
	require.NoError(t, h.session.SetTokens(context.Background(), "access", "refresh"))

	err := h.service.Logout(context.Background())

	require.Error(t, err)
	assert.False(t, h.session.IsAuthenticated())
	assert.Equal(t, 1, h.cache.clears)
}

func TestRefreshReplacesTokens(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	h.server.SeedUser("ada@example.com", "correct-horse")
	tokens := h.server.IssueTokens("ada@example.com")
	require.NoError(t, h.session.SetTokens(context.Background(), "stale-access", tokens.RefreshToken))

	require.NoError(t, h.service.Refresh(context.Background()))

	assert.NotEqual(t, "stale-access", h.session.Snapshot().AccessToken)
	assert.Equal(t, 1, h.server.Hits(http.MethodPost, "/auth/refresh"))
}

func TestRefreshRejectionClearsSession(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	require.NoError(t, h.session.SetTokens(context.Background(), "access", "forged-refresh"))

	err := h.service.Refresh(context.Background())

	require.ErrorIs(t, err, gateway.ErrUnauthenticated)
	assert.False(t, h.session.IsAuthenticated())
	assert.Nil(t, h.credentials.saved)
}

func TestRefreshServerFailureKeepsSession(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	require.NoError(t, h.session.SetTokens(context.Background(), "access", "refresh"))
	h.server.FailNext(http.MethodPost, "/auth/refresh", http.StatusBadGateway, "upstream down")

	err := h.service.Refresh(context.Background())

	require.ErrorIs(t, err, gateway.ErrServer)
	assert.True(t, h.session.IsAuthenticated())
}

func TestEnsureFreshOnlyRefreshesNearExpiry(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, fakeapi.WithAccessTTL(30*time.Second))
	h.server.SeedUser("ada@example.com", "correct-horse")
	tokens := h.server.IssueTokens("ada@example.com")

	refreshed, err := h.service.EnsureFresh(context.Background())
	require.NoError(t, err)
	assert.False(t, refreshed, "no session, nothing to refresh")

	require.NoError(t, h.session.SetTokens(context.Background(), tokens.AccessToken, tokens.RefreshToken))
	refreshed, err = h.service.EnsureFresh(context.Background())
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 1, h.server.Hits(http.MethodPost, "/auth/refresh"))
}

func TestEnsureFreshSkipsLongLivedToken(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	h.server.SeedUser("ada@example.com", "correct-horse")
	tokens := h.server.IssueTokens("ada@example.com")
	require.NoError(t, h.session.SetTokens(context.Background(), tokens.AccessToken, tokens.RefreshToken))

	refreshed, err := h.service.EnsureFresh(context.Background())

	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Zero(t, h.server.Hits(http.MethodPost, "/auth/refresh"))
}

func TestStatusReportsExpiry(t *testing.T) {
	t.Parallel()

	expiresAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store := &stubSession{current: domain.Session{AccessToken: "a", ExpiresAt: expiresAt}}
	service := NewAuthService(nil, nil, store, nil, fixedClock{now: expiresAt.Add(time.Second)}, nil)

	status := service.Status()

	assert.True(t, status.Authenticated)
	assert.True(t, status.Expired)
	assert.Equal(t, expiresAt, status.ExpiresAt)
}

type stubSession struct {
	current domain.Session
}

func (s *stubSession) SetTokens(context.Context, string, string) error { return nil }
func (s *stubSession) Clear(context.Context) error                    { return nil }
func (s *stubSession) RefreshToken() string                           { return s.current.RefreshToken }
func (s *stubSession) IsAuthenticated() bool                          { return s.current.IsAuthenticated() }
func (s *stubSession) ExpiringWithin(time.Duration) bool              { return false }
func (s *stubSession) Snapshot() domain.Session                       { return s.current }
