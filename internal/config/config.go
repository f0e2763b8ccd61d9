// Package config provides gnews-mcp server configuration.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	appconfig "github.com/RobinCoderZhao/gnews-mcp/pkg/config"

	"github.com/RobinCoderZhao/gnews-mcp/internal/gnews"
	"github.com/RobinCoderZhao/gnews-mcp/pkg/scraper"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "gnews-mcp.yaml"

// Config is the main configuration for the server.
type Config struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	GNews gnews.Config    `yaml:"gnews"`
	Docs  scraper.Options `yaml:"docs"`

	Telemetry TelemetryConfig `yaml:"telemetry"`

	// APIKey is the static key used by the stdio transport and the one-shot
	// commands. It is only read from the environment.
	APIKey string `yaml:"-" env:"GNEWS_API_KEY"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
}

// Default returns a Config with the documented defaults.
func Default() Config {
	return Config{
		Host:      "0.0.0.0",
		Port:      8000,
		LogLevel:  "INFO",
		GNews:     gnews.DefaultConfig(),
		Docs:      scraper.DefaultOptions(),
		Telemetry: TelemetryConfig{ServiceName: "gnews-mcp"},
	}
}

// Load applies the config file at path (DefaultPath when empty; a missing
// file is ignored) and then the environment over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	if err := appconfig.LoadOrDefault(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.GNews.BaseURL == "" {
		return fmt.Errorf("gnews base url is empty")
	}
	if c.GNews.Timeout <= 0 {
		return fmt.Errorf("gnews timeout must be positive, got %s", c.GNews.Timeout)
	}
	if c.GNews.MaxRetries < 0 {
		return fmt.Errorf("gnews max retries must not be negative, got %d", c.GNews.MaxRetries)
	}
	return nil
}

// Level parses LogLevel (DEBUG, INFO, WARN/WARNING, ERROR; any case).
func (c Config) Level() (slog.Level, error) {
	s := strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if s == "WARNING" {
		s = "WARN"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return lvl, nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
