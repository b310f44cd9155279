// Package fakeapi is an in-memory implementation of the task service HTTP
// API used by tests and local demos.
package fakeapi

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	BasePath           = "/api/v1"
	defaultAccessTTL   = 30 * time.Minute
	defaultRefreshTTL  = 7 * 24 * time.Hour
	minPasswordLength  = 8
	naiveTimestampForm = "2006-01-02T15:04:05.000000"
)

type user struct {
	id           int64
	email        string
	fullName     *string
	passwordHash []byte
	active       bool
	createdAt    time.Time
}

type failure struct {
	status int
	detail string
}

type Server struct {
	mu         sync.Mutex
	engine     *gin.Engine
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	hashCost   int
	now        func() time.Time

	users      map[string]*user
	usersByID  map[int64]*user
	tasks      map[domain.TaskID]*domain.Task
	nextUserID int64
	nextTaskID domain.TaskID

	hits     map[string]int
	failures map[string][]failure
}

type Option func(*Server)

func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func New(opts ...Option) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		secret:     []byte("fakeapi-signing-key"),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		hashCost:   bcrypt.MinCost,
		now:        func() time.Time { return time.Now().UTC() },
		users:      make(map[string]*user),
		usersByID:  make(map[int64]*user),
		tasks:      make(map[domain.TaskID]*domain.Task),
		hits:       make(map[string]int),
		failures:   make(map[string][]failure),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.track())
	s.registerRoutes(s.engine.Group(BasePath))

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves the API on a loopback listener. The caller closes it.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s.engine)
}

// BaseURL is the API root for a server started with Start.
func BaseURL(server *httptest.Server) string {
	return server.URL + BasePath
}

// FailNext makes the next request to method and route (relative to
// BasePath, in gin syntax such as "/tasks/:id") fail with status.
func (s *Server) FailNext(method string, route string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := routeKey(method, BasePath+route)
	s.failures[key] = append(s.failures[key], failure{status: status, detail: detail})
}

// Hits reports how many requests reached method and route.
func (s *Server) Hits(method string, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hits[routeKey(method, BasePath+route)]
}

// SeedUser registers a user directly and returns it.
func (s *Server) SeedUser(email string, password string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.createUserLocked(email, password, nil)
	if err != nil {
		panic(err)
	}
	return created.toDomain()
}

// SeedTask stores a task owned by the user with email.
func (s *Server) SeedTask(email string, create domain.TaskCreate) domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.users[email]
	if !ok {
		panic("fakeapi: unknown user " + email)
	}
	return s.createTaskLocked(owner.id, create)
}

// IssueTokens signs a token pair for a seeded user.
func (s *Server) IssueTokens(email string) domain.Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.users[email]
	if !ok {
		panic("fakeapi: unknown user " + email)
	}
	tokens, err := s.issueTokensLocked(owner.id)
	if err != nil {
		panic(err)
	}
	return tokens
}

func (s *Server) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Server) track() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := routeKey(c.Request.Method, c.FullPath())

		s.mu.Lock()
		s.hits[key]++
		var injected *failure
		if queued := s.failures[key]; len(queued) > 0 {
			injected = &queued[0]
			s.failures[key] = queued[1:]
		}
		s.mu.Unlock()

		if injected != nil {
			abortDetail(c, injected.status, injected.detail)
			return
		}
		c.Next()
	}
}

func routeKey(method string, route string) string {
	return method + " " + route
}

func (u *user) toDomain() domain.User {
	return domain.User{
		ID:        u.id,
		Email:     u.email,
		FullName:  u.fullName,
		IsActive:  u.active,
		CreatedAt: domain.NewTimestamp(u.createdAt),
	}
}
