// Package config loads ratelimitd configuration from a YAML file and
// RATELIMIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ryhazerus/ratelimit"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Limit   LimitConfig   `yaml:"limit"`
	Store   StoreConfig   `yaml:"store"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LimitConfig describes the sliding window enforced on every request.
type LimitConfig struct {
	MaxRequests int64   `yaml:"max_requests"`
	Window      float64 `yaml:"window"`
	Unit        string  `yaml:"unit"`
	Prefix      string  `yaml:"prefix"`
	FailOpen    bool    `yaml:"fail_open"`
	// TrustProxyHeaders keys clients by X-Forwarded-For / X-Real-IP. Enable
	// only behind a reverse proxy that sets them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

// StoreConfig selects and configures the counter backend.
type StoreConfig struct {
	Type          string `yaml:"type"`
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Limit: LimitConfig{
			MaxRequests: 10,
			Window:      1,
			Unit:        "m",
			Prefix:      ratelimit.DefaultPrefix,
		},
		Store: StoreConfig{
			Type:       "memory",
			SQLitePath: "ratelimit.db",
			RedisAddr:  "localhost:6379",
		},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090", Path: "/metrics"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load loads configuration from file and environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := loadFromEnvironment(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromEnvironment(cfg *Config) error {
	if v := os.Getenv("RATELIMIT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("RATELIMIT_MAX_REQUESTS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("RATELIMIT_MAX_REQUESTS: %w", err)
		}
		cfg.Limit.MaxRequests = n
	}
	if v := os.Getenv("RATELIMIT_WINDOW"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATELIMIT_WINDOW: %w", err)
		}
		cfg.Limit.Window = f
	}
	if v := os.Getenv("RATELIMIT_UNIT"); v != "" {
		cfg.Limit.Unit = v
	}
	if v := os.Getenv("RATELIMIT_PREFIX"); v != "" {
		cfg.Limit.Prefix = v
	}
	if v := os.Getenv("RATELIMIT_FAIL_OPEN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RATELIMIT_FAIL_OPEN: %w", err)
		}
		cfg.Limit.FailOpen = b
	}
	if v := os.Getenv("RATELIMIT_TRUST_PROXY_HEADERS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RATELIMIT_TRUST_PROXY_HEADERS: %w", err)
		}
		cfg.Limit.TrustProxyHeaders = b
	}
	if v := os.Getenv("RATELIMIT_STORE"); v != "" {
		cfg.Store.Type = v
	}
	if v := os.Getenv("RATELIMIT_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("RATELIMIT_REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("RATELIMIT_REDIS_PASSWORD"); v != "" {
		cfg.Store.RedisPassword = v
	}
	if v := os.Getenv("RATELIMIT_METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RATELIMIT_METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = b
	}
	if v := os.Getenv("RATELIMIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RATELIMIT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// Validate checks the configuration for consistency. Limit errors wrap
// ratelimit.ErrConfiguration.
func (c *Config) Validate() error {
	if _, err := c.Window(); err != nil {
		return err
	}
	if c.Limit.Prefix == "" {
		return errors.New("limit.prefix must not be empty")
	}

	switch c.Store.Type {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite store")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return errors.New("store.redis_addr is required for the redis store")
		}
	default:
		return fmt.Errorf("unsupported store type: %q", c.Store.Type)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /: %q", c.Metrics.Path)
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format: %q", c.Logging.Format)
	}
	return nil
}

// Window builds the sliding window described by the limit section.
func (c *Config) Window() (*ratelimit.SlidingWindow, error) {
	unit, err := ratelimit.ParseUnit(c.Limit.Unit)
	if err != nil {
		return nil, err
	}
	return ratelimit.NewSlidingWindow(c.Limit.MaxRequests, c.Limit.Window, unit)
}

// SlogLevel parses the configured level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unsupported log level: %q", l.Level)
	}
	return level, nil
}

// NewLogger builds a logger writing to stderr in the configured format.
func (l LoggingConfig) NewLogger() (*slog.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
}
