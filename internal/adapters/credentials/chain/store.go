package chain

import (
	"context"
	"errors"
	"fmt"

	passstore "github.com/bnema/taskflow-cli/internal/adapters/credentials/pass"
	tomlstore "github.com/bnema/taskflow-cli/internal/adapters/credentials/toml"
	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/ports"
	"github.com/spf13/viper"
)

type Store struct {
	primary  ports.CredentialStore
	fallback ports.CredentialStore
}

var _ ports.CredentialStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary credential store is nil")
	errNilFallbackStore = errors.New("fallback credential store is nil")
)

func NewStore(primary ports.CredentialStore, fallback ports.CredentialStore) *Store {
	store, err := NewStoreChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.CredentialStore, fallback ports.CredentialStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func NewPassFirstWithFileFallback(cfg *viper.Viper, passEntry string) (*Store, error) {
	fileStore, err := tomlstore.NewStore(cfg)
	if err != nil {
		return nil, err
	}

	return NewStoreChecked(passstore.NewStore(passEntry), fileStore)
}

func (s *Store) Save(ctx context.Context, session domain.Session) error {
	err := s.primary.Save(ctx, session)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Save(ctx, session)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend save failed: %w; fallback backend save failed: %w", err, fallbackErr)
}

func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	session, err := s.primary.Load(ctx)
	if err == nil {
		return session, nil
	}
	if shouldSkipFallback(err) {
		return domain.Session{}, err
	}

	fallbackSession, fallbackErr := s.fallback.Load(ctx)
	if fallbackErr == nil {
		return fallbackSession, nil
	}
	if errors.Is(err, domain.ErrNoSession) && errors.Is(fallbackErr, domain.ErrNoSession) {
		return domain.Session{}, domain.ErrNoSession
	}

	return domain.Session{}, fmt.Errorf("primary backend load failed: %w; fallback backend load failed: %w", err, fallbackErr)
}

// Delete clears both backends so a session saved to the fallback cannot be
// restored after logout.
func (s *Store) Delete(ctx context.Context) error {
	err := s.primary.Delete(ctx)
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Delete(ctx)
	if err != nil && fallbackErr != nil {
		return fmt.Errorf("primary backend delete failed: %w; fallback backend delete failed: %w", err, fallbackErr)
	}
	if fallbackErr != nil {
		return fmt.Errorf("fallback backend delete failed: %w", fallbackErr)
	}
	if err != nil && !errors.Is(err, passstore.ErrUnavailable) {
		return fmt.Errorf("primary backend delete failed: %w", err)
	}

	return nil
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
