package ports

import (
	"context"

	"github.com/bnema/taskflow-cli/internal/domain"
)

// CredentialStore persists the session between runs. Load returns
// domain.ErrNoSession when nothing has been saved.
type CredentialStore interface {
	Load(ctx context.Context) (domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
	Delete(ctx context.Context) error
}
