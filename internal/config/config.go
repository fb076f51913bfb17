// Package config loads service configuration from an optional config.toml,
// an environment overlay, and CERTIFY_ environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/certify/pkg/database"
	"github.com/JaimeStill/certify/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvCertifyEnv             = "CERTIFY_ENV"
	EnvCertifyShutdownTimeout = "CERTIFY_SHUTDOWN_TIMEOUT"
	EnvCertifyVersion         = "CERTIFY_VERSION"
	EnvCertifyLogLevel        = "CERTIFY_LOG_LEVEL"
	EnvCertifyLogFormat       = "CERTIFY_LOG_FORMAT"
)

var databaseEnv = &database.Env{
	URL:             "CERTIFY_DATABASE_URL",
	Host:            "CERTIFY_DB_HOST",
	Port:            "CERTIFY_DB_PORT",
	Name:            "CERTIFY_DB_NAME",
	User:            "CERTIFY_DB_USER",
	Password:        "CERTIFY_DB_PASSWORD",
	SSLMode:         "CERTIFY_DB_SSL_MODE",
	MaxOpenConns:    "CERTIFY_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "CERTIFY_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "CERTIFY_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "CERTIFY_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Container:        "CERTIFY_STORAGE_CONTAINER",
	ConnectionString: "CERTIFY_STORAGE_CONNECTION_STRING",
	Prefix:           "CERTIFY_STORAGE_PREFIX",
}

// Config is the root configuration for the certification service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	API             APIConfig       `toml:"api"`
	Job             JobConfig       `toml:"job"`
	LogLevel        string          `toml:"log_level"`
	LogFormat       string          `toml:"log_format"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the CERTIFY_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvCertifyEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Level returns LogLevel as a slog.Level. Validation guarantees it parses.
func (c *Config) Level() slog.Level {
	var l slog.Level
	l.UnmarshalText([]byte(c.LogLevel))
	return l
}

// StorageEnabled reports whether certificate documents are stored in blob
// storage. Without a connection string certificates are only logged.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Enabled()
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	if overlay.LogLevel != "" {
		c.LogLevel = overlay.LogLevel
	}
	if overlay.LogFormat != "" {
		c.LogFormat = overlay.LogFormat
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Job.Merge(&overlay.Job)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Job.Finalize(); err != nil {
		return fmt.Errorf("job: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvCertifyShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvCertifyVersion); v != "" {
		c.Version = v
	}
	if v := os.Getenv(EnvCertifyLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvCertifyLogFormat); v != "" {
		c.LogFormat = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format: %q", c.LogFormat)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvCertifyEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
