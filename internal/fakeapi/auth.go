package fakeapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	userIDContextKey = "fakeapi.user_id"
)

var errEmailTaken = errors.New("email already registered")

type tokenClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

type registerBody struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID        int64   `json:"id"`
	Email     string  `json:"email"`
	FullName  *string `json:"full_name"`
	IsActive  bool    `json:"is_active"`
	CreatedAt string  `json:"created_at"`
}

func (s *Server) register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortFields(c, fieldError{loc: []any{"body"}, msg: "invalid JSON", kind: "value_error.jsondecode"})
		return
	}

	var problems []fieldError
	if !strings.Contains(body.Email, "@") {
		problems = append(problems, fieldError{loc: []any{"body", "email"}, msg: "value is not a valid email address", kind: "value_error.email"})
	}
	if len(body.Password) < minPasswordLength {
		problems = append(problems, fieldError{loc: []any{"body", "password"}, msg: fmt.Sprintf("ensure this value has at least %d characters", minPasswordLength), kind: "value_error.any_str.min_length"})
	}
	if len(problems) > 0 {
		abortFields(c, problems...)
		return
	}

	s.mu.Lock()
	created, err := s.createUserLocked(body.Email, body.Password, body.FullName)
	s.mu.Unlock()
	if errors.Is(err, errEmailTaken) {
		abortDetail(c, http.StatusConflict, "Email already registered")
		return
	}
	if err != nil {
		abortDetail(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	c.JSON(http.StatusCreated, userResponse{
		ID:        created.id,
		Email:     created.email,
		FullName:  created.fullName,
		IsActive:  created.active,
		CreatedAt: created.createdAt.Format(naiveTimestampForm),
	})
}

func (s *Server) login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortFields(c, fieldError{loc: []any{"body"}, msg: "invalid JSON", kind: "value_error.jsondecode"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.users[strings.ToLower(strings.TrimSpace(body.Email))]
	if !ok || bcrypt.CompareHashAndPassword(account.passwordHash, []byte(body.Password)) != nil {
		abortUnauthorized(c, "Incorrect email or password")
		return
	}
	if !account.active {
		abortUnauthorized(c, "User account is disabled")
		return
	}

	tokens, err := s.issueTokensLocked(account.id)
	if err != nil {
		abortDetail(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (s *Server) refresh(c *gin.Context) {
	var body refreshBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortFields(c, fieldError{loc: []any{"body"}, msg: "invalid JSON", kind: "value_error.jsondecode"})
		return
	}

	claims, err := s.parseToken(body.RefreshToken)
	if err != nil {
		abortUnauthorized(c, "Invalid refresh token")
		return
	}
	if claims.Type != tokenTypeRefresh {
		abortDetail(c, http.StatusBadRequest, "Invalid token type")
		return
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		abortUnauthorized(c, "Invalid token payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.usersByID[userID]
	if !ok || !account.active {
		abortUnauthorized(c, "User not found or inactive")
		return
	}

	tokens, err := s.issueTokensLocked(account.id)
	if err != nil {
		abortDetail(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// requireUser mirrors the HTTP bearer dependency: a missing header is a
// 403, a bad token a 401.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abortDetail(c, http.StatusForbidden, "Not authenticated")
			return
		}

		claims, err := s.parseToken(token)
		if err != nil {
			abortUnauthorized(c, "Could not validate credentials")
			return
		}
		if claims.Type != tokenTypeAccess {
			abortUnauthorized(c, "Invalid token type")
			return
		}
		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			abortUnauthorized(c, "Invalid token payload")
			return
		}

		s.mu.Lock()
		account, ok := s.usersByID[userID]
		s.mu.Unlock()
		if !ok {
			abortUnauthorized(c, "User not found")
			return
		}
		if !account.active {
			abortUnauthorized(c, "Inactive user")
			return
		}

		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

func (s *Server) createUserLocked(email string, password string, fullName *string) (*user, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if _, exists := s.users[normalized]; exists {
		return nil, errEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	s.nextUserID++
	created := &user{
		id:           s.nextUserID,
		email:        normalized,
		fullName:     fullName,
		passwordHash: hash,
		active:       true,
		createdAt:    s.now(),
	}
	s.users[normalized] = created
	s.usersByID[created.id] = created
	return created, nil
}

func (s *Server) issueTokensLocked(userID int64) (domain.Tokens, error) {
	now := s.now()
	access, err := s.signToken(userID, tokenTypeAccess, now, s.accessTTL)
	if err != nil {
		return domain.Tokens{}, err
	}
	refresh, err := s.signToken(userID, tokenTypeRefresh, now, s.refreshTTL)
	if err != nil {
		return domain.Tokens{}, err
	}

	return domain.Tokens{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func (s *Server) signToken(userID int64, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := tokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        strconv.FormatInt(now.UnixNano(), 36),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parseToken(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(userIDContextKey)
}
