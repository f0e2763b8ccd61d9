package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, "https://gnews.io/api/v4", cfg.GNews.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.GNews.Timeout)
	assert.Equal(t, 3, cfg.GNews.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.GNews.InitialBackoff)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gnews-mcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
log_level: debug
gnews:
  timeout: 5s
  max_retries: 1
telemetry:
  otlp_endpoint: localhost:4318
`), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("GNEWS_BASE_URL", "http://localhost:1234")
	t.Setenv("GNEWS_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "http://localhost:1234", cfg.GNews.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.GNews.Timeout)
	assert.Equal(t, 1, cfg.GNews.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.GNews.InitialBackoff)
	assert.Equal(t, "localhost:4318", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "from-env", cfg.APIKey)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoad_APIKeyNotReadFromFile(t *testing.T) {
	t.Setenv("GNEWS_API_KEY", "")
	path := filepath.Join(t.TempDir(), "gnews-mcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apikey: secret\nAPIKey: secret\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.APIKey)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"port zero":        func(c *Config) { c.Port = 0 },
		"port too large":   func(c *Config) { c.Port = 70000 },
		"bad level":        func(c *Config) { c.LogLevel = "LOUD" },
		"empty base url":   func(c *Config) { c.GNews.BaseURL = "" },
		"zero timeout":     func(c *Config) { c.GNews.Timeout = 0 },
		"negative retries": func(c *Config) { c.GNews.MaxRetries = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"Warning": slog.LevelWarn,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		lvl, err := Config{LogLevel: in}.Level()
		require.NoError(t, err, in)
		assert.Equal(t, want, lvl, in)
	}
}

func TestAddr_IPv6(t *testing.T) {
	cfg := Default()
	cfg.Host = "::1"
	assert.Equal(t, "[::1]:8000", cfg.Addr())
}
