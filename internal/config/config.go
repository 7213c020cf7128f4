// Package config loads session-vault settings from a YAML file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/iksnae/session-vault/internal"
)

const (
	// DefaultConfigFileName is looked up in every config path
	DefaultConfigFileName = "session-vault"
	// EnvPrefix prefixes every environment override, e.g. SESSION_VAULT_SERVER_PORT
	EnvPrefix = "SESSION_VAULT"
	// HomeEnv overrides the data directory
	HomeEnv = "SESSION_VAULT_HOME"

	// DefaultMaxContentBytes bounds original_content accepted over HTTP
	DefaultMaxContentBytes = 50 * 1024 * 1024
)

// Config is the complete application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Content  ContentConfig  `mapstructure:"content"`
	Client   ClientConfig   `mapstructure:"client"`
}

// DatabaseConfig holds store settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
	// ForceFallback disables the FTS5 index even when the engine supports it
	ForceFallback bool `mapstructure:"force_fallback"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	MaxContentBytes int             `mapstructure:"max_content_bytes"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RateLimitConfig configures the per-client token bucket
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig selects log level and encoder
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// ContentConfig points at optional extraction rule overrides
type ContentConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

// ClientConfig is used by commands that talk to a running server
type ClientConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// DataDir returns the directory holding the database and config file.
// $SESSION_VAULT_HOME wins over ~/.session-vault.
func DataDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".session-vault"
	}
	return filepath.Join(home, ".session-vault")
}

// New returns a viper instance with defaults and environment binding set up.
// Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", filepath.Join(DataDir(), "sessions.db"))
	v.SetDefault("database.force_fallback", false)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.max_content_bytes", DefaultMaxContentBytes)
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests_per_second", 10.0)
	v.SetDefault("server.rate_limit.burst", 20)

	// Logging defaults
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")

	v.SetDefault("content.rules_file", "")
	v.SetDefault("client.base_url", "http://127.0.0.1:3000")
}

// Load reads cfgFile, or searches the default locations when it is empty,
// and returns the validated configuration. A missing default file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(DataDir())
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return &internal.ValidationError{Field: "database.path", Message: "must not be empty"}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return &internal.ValidationError{Field: "server.port", Message: fmt.Sprintf("%d is out of range", c.Server.Port)}
	}
	if c.Server.MaxContentBytes <= 0 {
		return &internal.ValidationError{Field: "server.max_content_bytes", Message: "must be positive"}
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RequestsPerSecond <= 0 || c.Server.RateLimit.Burst <= 0) {
		return &internal.ValidationError{Field: "server.rate_limit", Message: "requests_per_second and burst must be positive"}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &internal.ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return &internal.ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	return nil
}

// ExampleConfig returns a commented config file with the default values
func ExampleConfig() string {
	return `# session-vault configuration
database:
  path: ` + filepath.Join(DataDir(), "sessions.db") + `
  force_fallback: false      # skip FTS5 even when available

server:
  host: 127.0.0.1
  port: 3000
  max_content_bytes: 52428800
  rate_limit:
    enabled: true
    requests_per_second: 10
    burst: 20

logging:
  level: warn                # debug, info, warn, error
  format: console            # console or json

content:
  rules_file: ""             # YAML overrides for topic and decision rules

client:
  base_url: http://127.0.0.1:3000
`
}
