package domain

import (
	"fmt"
	"strings"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt Timestamp `json:"created_at"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validateCredentials(r.Email, r.Password)
}

type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

func (r Registration) Validate() error {
	return validateCredentials(r.Email, r.Password)
}

func validateCredentials(email, password string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidCredentials)
	}
	if !strings.Contains(trimmed, "@") {
		return fmt.Errorf("%w: email %q is not an address", ErrInvalidCredentials, email)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidCredentials)
	}
	return nil
}
