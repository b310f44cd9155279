// Package config loads tf settings from ~/.taskflow/config.toml and TF_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/taskflow-cli/internal/querycache"
	"github.com/spf13/viper"
)

const (
	configDir  = ".taskflow"
	configName = "config"
	configType = "toml"
	envPrefix  = "TF"

	KeyAPIBaseURL         = "api.base_url"
	KeyAPITimeout         = "api.timeout"
	KeySessionPath        = "session.path"
	KeySessionBackend     = "session.backend"
	KeyTasksStaleTime     = "cache.tasks_stale_time"
	KeyAnalyticsStaleTime = "cache.analytics_stale_time"
	KeyEvictionGrace      = "cache.eviction_grace"
	KeyLogLevel           = "log.level"
	KeyLogFormat          = "log.format"

	DefaultAPIBaseURL = "http://localhost:8000/api/v1"
	DefaultAPITimeout = 30 * time.Second
)

var ErrInvalidConfig = errors.New("invalid config")

type SessionBackend string

const (
	SessionBackendChain SessionBackend = "chain"
	SessionBackendFile  SessionBackend = "file"
	SessionBackendPass  SessionBackend = "pass"
)

type Config struct {
	API     APIConfig
	Session SessionConfig
	Cache   CacheConfig
	Log     LogConfig
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type SessionConfig struct {
	// Path is empty when the file backend should use its default location.
	Path    string
	Backend SessionBackend
}

type CacheConfig struct {
	TasksStaleTime     time.Duration
	AnalyticsStaleTime time.Duration
	EvictionGrace      time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the config file (when present) into v, applies defaults and
// TF_ environment overrides, and validates the result.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(filepath.Join(homeDir, configDir))
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		API: APIConfig{
			BaseURL: strings.TrimSpace(v.GetString(KeyAPIBaseURL)),
			Timeout: v.GetDuration(KeyAPITimeout),
		},
		Session: SessionConfig{
			Path:    strings.TrimSpace(v.GetString(KeySessionPath)),
			Backend: SessionBackend(strings.ToLower(strings.TrimSpace(v.GetString(KeySessionBackend)))),
		},
		Cache: CacheConfig{
			TasksStaleTime:     v.GetDuration(KeyTasksStaleTime),
			AnalyticsStaleTime: v.GetDuration(KeyAnalyticsStaleTime),
			EvictionGrace:      v.GetDuration(KeyEvictionGrace),
		},
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIBaseURL, DefaultAPIBaseURL)
	v.SetDefault(KeyAPITimeout, DefaultAPITimeout)
	v.SetDefault(KeySessionPath, "")
	v.SetDefault(KeySessionBackend, string(SessionBackendChain))
	v.SetDefault(KeyTasksStaleTime, time.Duration(0))
	v.SetDefault(KeyAnalyticsStaleTime, querycache.DefaultAnalyticsStaleFor)
	v.SetDefault(KeyEvictionGrace, querycache.DefaultEvictionGrace)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
}

func (c Config) Validate() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL, got %q", ErrInvalidConfig, KeyAPIBaseURL, c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeyAPITimeout)
	}

	switch c.Session.Backend {
	case SessionBackendChain, SessionBackendFile, SessionBackendPass:
	default:
		return fmt.Errorf("%w: %s must be chain, file or pass, got %q", ErrInvalidConfig, KeySessionBackend, c.Session.Backend)
	}

	if c.Cache.TasksStaleTime < 0 || c.Cache.AnalyticsStaleTime < 0 {
		return fmt.Errorf("%w: cache stale times cannot be negative", ErrInvalidConfig)
	}
	if c.Cache.EvictionGrace < 0 {
		return fmt.Errorf("%w: %s cannot be negative", ErrInvalidConfig, KeyEvictionGrace)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %s must be debug, info, warn or error, got %q", ErrInvalidConfig, KeyLogLevel, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %s must be text or json, got %q", ErrInvalidConfig, KeyLogFormat, c.Log.Format)
	}

	return nil
}

// StaleTimes maps the configured freshness windows onto cache kinds.
func (c CacheConfig) StaleTimes() map[querycache.Kind]time.Duration {
	return map[querycache.Kind]time.Duration{
		querycache.KindTasks:     c.TasksStaleTime,
		querycache.KindTask:      c.TasksStaleTime,
		querycache.KindAnalytics: c.AnalyticsStaleTime,
	}
}
