package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ryhazerus/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(10), cfg.Limit.MaxRequests)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, ratelimit.DefaultPrefix, cfg.Limit.Prefix)
	assert.False(t, cfg.Limit.TrustProxyHeaders)

	w, err := cfg.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, w.Size())
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
limit:
  max_requests: 5
  window: 10
  unit: s
  prefix: "myapp"
  fail_open: true
  trust_proxy_headers: true
store:
  type: redis
  redis_addr: "redis:6379"
  redis_db: 2
metrics:
  enabled: false
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, int64(5), cfg.Limit.MaxRequests)
	assert.Equal(t, "myapp", cfg.Limit.Prefix)
	assert.True(t, cfg.Limit.FailOpen)
	assert.True(t, cfg.Limit.TrustProxyHeaders)
	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, 2, cfg.Store.RedisDB)
	assert.False(t, cfg.Metrics.Enabled)

	level, err := cfg.Logging.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	w, err := cfg.Window()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, w.Size())
	assert.Equal(t, int64(5), w.MaxRequests())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
limit:
  max_requests: 5
store:
  type: memory
`)
	t.Setenv("RATELIMIT_MAX_REQUESTS", "50")
	t.Setenv("RATELIMIT_WINDOW", "2")
	t.Setenv("RATELIMIT_UNIT", "h")
	t.Setenv("RATELIMIT_STORE", "sqlite")
	t.Setenv("RATELIMIT_SQLITE_PATH", "/tmp/counters.db")
	t.Setenv("RATELIMIT_FAIL_OPEN", "true")
	t.Setenv("RATELIMIT_TRUST_PROXY_HEADERS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(50), cfg.Limit.MaxRequests)
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, "/tmp/counters.db", cfg.Store.SQLitePath)
	assert.True(t, cfg.Limit.FailOpen)
	assert.True(t, cfg.Limit.TrustProxyHeaders)

	w, err := cfg.Window()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, w.Size())
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	t.Setenv("RATELIMIT_MAX_REQUESTS", "lots")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "limit: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_LimitErrorsAreConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max requests", func(c *Config) { c.Limit.MaxRequests = 0 }},
		{"negative window", func(c *Config) { c.Limit.Window = -1 }},
		{"unknown unit", func(c *Config) { c.Limit.Unit = "weeks" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ratelimit.ErrConfiguration)
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty prefix", func(c *Config) { c.Limit.Prefix = "" }},
		{"unknown store", func(c *Config) { c.Store.Type = "memcached" }},
		{"sqlite without path", func(c *Config) { c.Store.Type = "sqlite"; c.Store.SQLitePath = "" }},
		{"redis without addr", func(c *Config) { c.Store.Type = "redis"; c.Store.RedisAddr = "" }},
		{"relative metrics path", func(c *Config) { c.Metrics.Path = "metrics" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		logger, err := LoggingConfig{Level: "warn", Format: format}.NewLogger()
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}
