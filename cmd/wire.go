package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	chainstore "github.com/bnema/taskflow-cli/internal/adapters/credentials/chain"
	passstore "github.com/bnema/taskflow-cli/internal/adapters/credentials/pass"
	tomlstore "github.com/bnema/taskflow-cli/internal/adapters/credentials/toml"
	"github.com/bnema/taskflow-cli/internal/api"
	"github.com/bnema/taskflow-cli/internal/application"
	"github.com/bnema/taskflow-cli/internal/config"
	"github.com/bnema/taskflow-cli/internal/gateway"
	"github.com/bnema/taskflow-cli/internal/mutation"
	"github.com/bnema/taskflow-cli/internal/ports"
	"github.com/bnema/taskflow-cli/internal/querycache"
	"github.com/bnema/taskflow-cli/internal/session"
	"github.com/bnema/taskflow-cli/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
)

var errSessionExpired = errors.New("session expired or invalid, run `tf auth login`")

type app struct {
	cfg       config.Config
	logger    *slog.Logger
	session   *session.Store
	cache     *querycache.Cache
	metrics   *prometheus.Registry
	auth      *application.AuthService
	queries   *application.TaskQueries
	mutations *mutation.Coordinator
	now       func() time.Time
}

func wireApp(stderr io.Writer) (*app, error) {
	v := viper.New()
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log, stderr)

	credentials, err := newCredentialStore(cfg.Session.Backend, v)
	if err != nil {
		return nil, fmt.Errorf("wire credential store: %w", err)
	}

	store := session.NewStore(credentials, ports.SystemClock{})
	if err := store.Load(context.Background()); err != nil {
		logger.Warn("ignoring unreadable stored session", "error", err)
	}

	gw, err := gateway.New(gateway.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		Tokens:    store,
		Logger:    logger,
		UserAgent: version.UserAgent(),
	})
	if err != nil {
		return nil, fmt.Errorf("wire gateway: %w", err)
	}

	registry := prometheus.NewRegistry()
	cache, err := querycache.New(querycache.Options{
		StaleTimes:    cfg.Cache.StaleTimes(),
		EvictionGrace: cfg.Cache.EvictionGrace,
		Logger:        logger,
		Registerer:    registry,
	})
	if err != nil {
		return nil, fmt.Errorf("wire query cache: %w", err)
	}

	client := api.NewClient(gw)

	return &app{
		cfg:       cfg,
		logger:    logger,
		session:   store,
		cache:     cache,
		metrics:   registry,
		auth:      application.NewAuthService(client, gw, store, cache, ports.SystemClock{}, logger),
		queries:   application.NewTaskQueries(client, cache),
		mutations: mutation.NewCoordinator(client, cache, logger),
		now:       time.Now,
	}, nil
}

func newCredentialStore(backend config.SessionBackend, v *viper.Viper) (ports.CredentialStore, error) {
	switch backend {
	case config.SessionBackendFile:
		return tomlstore.NewStore(v)
	case config.SessionBackendPass:
		return passstore.NewStore(passstore.DefaultEntry), nil
	default:
		return chainstore.NewPassFirstWithFileFallback(v, passstore.DefaultEntry)
	}
}

func newLogger(cfg config.LogConfig, output io.Writer) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(output, opts))
	}
	return slog.New(slog.NewTextHandler(output, opts))
}

// close stops the cache and logs its counters at debug level.
func (a *app) close() {
	a.cache.Close()

	if !a.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	families, err := a.metrics.Gather()
	if err != nil {
		a.logger.Debug("gather cache metrics failed", "error", err)
		return
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value := metric.GetCounter().GetValue() + metric.GetGauge().GetValue()
			a.logger.Debug("cache metric", "name", family.GetName(), "value", value)
		}
	}
}

// ensureSession refreshes a nearly expired session before an authenticated
// command. A failed refresh is reported but does not stop the command.
func (a *app) ensureSession(ctx context.Context, stderr io.Writer) {
	refreshed, err := a.auth.EnsureFresh(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "warning: could not refresh session: %v\n", err)
		return
	}
	if refreshed {
		a.logger.Debug("session refreshed before command")
	}
}

// userError rewrites authentication failures into the re-login hint.
func userError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gateway.ErrUnauthenticated) {
		return fmt.Errorf("%w: %w", errSessionExpired, err)
	}
	return err
}
