package application

import (
	"time"

	"github.com/bnema/taskflow-cli/internal/domain"
)

// RefreshSkew is how close to expiry an access token may get before
// EnsureFresh exchanges it.
const RefreshSkew = time.Minute

type SessionStatus struct {
	Authenticated bool
	ExpiresAt     time.Time
	Expired       bool
}

type LoginCommand = domain.LoginRequest

type RegisterCommand = domain.Registration
