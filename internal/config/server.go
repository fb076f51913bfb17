package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "CERTIFY_SERVER_HOST"
	EnvServerPort              = "CERTIFY_SERVER_PORT"
	EnvServerReadTimeout       = "CERTIFY_SERVER_READ_TIMEOUT"
	EnvServerReadHeaderTimeout = "CERTIFY_SERVER_READ_HEADER_TIMEOUT"
	EnvServerWriteTimeout      = "CERTIFY_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout       = "CERTIFY_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout   = "CERTIFY_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP server parameters. Timeouts are Go duration
// strings.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadTimeout       string `toml:"read_timeout"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	IdleTimeout       string `toml:"idle_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration {
	return parseDuration(c.ReadTimeout)
}

func (c *ServerConfig) ReadHeaderTimeoutDuration() time.Duration {
	return parseDuration(c.ReadHeaderTimeout)
}

func (c *ServerConfig) WriteTimeoutDuration() time.Duration {
	return parseDuration(c.WriteTimeout)
}

func (c *ServerConfig) IdleTimeoutDuration() time.Duration {
	return parseDuration(c.IdleTimeout)
}

// ShutdownTimeoutDuration bounds the graceful drain of open requests.
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return parseDuration(c.ShutdownTimeout)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	for _, f := range c.fields(overlay) {
		if *f.src != "" {
			*f.dst = *f.src
		}
	}
}

func (c *ServerConfig) loadDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	defaults := map[*string]string{
		&c.Host:              "0.0.0.0",
		&c.ReadTimeout:       "30s",
		&c.ReadHeaderTimeout: "10s",
		&c.WriteTimeout:      "2m",
		&c.IdleTimeout:       "2m",
		&c.ShutdownTimeout:   "30s",
	}
	for dst, v := range defaults {
		if *dst == "" {
			*dst = v
		}
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	env := map[*string]string{
		&c.Host:              EnvServerHost,
		&c.ReadTimeout:       EnvServerReadTimeout,
		&c.ReadHeaderTimeout: EnvServerReadHeaderTimeout,
		&c.WriteTimeout:      EnvServerWriteTimeout,
		&c.IdleTimeout:       EnvServerIdleTimeout,
		&c.ShutdownTimeout:   EnvServerShutdownTimeout,
	}
	for dst, name := range env {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	durations := []struct {
		name  string
		value string
	}{
		{"read_timeout", c.ReadTimeout},
		{"read_header_timeout", c.ReadHeaderTimeout},
		{"write_timeout", c.WriteTimeout},
		{"idle_timeout", c.IdleTimeout},
		{"shutdown_timeout", c.ShutdownTimeout},
	}
	for _, d := range durations {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}
	return nil
}

type stringField struct {
	dst, src *string
}

func (c *ServerConfig) fields(o *ServerConfig) []stringField {
	return []stringField{
		{&c.Host, &o.Host},
		{&c.ReadTimeout, &o.ReadTimeout},
		{&c.ReadHeaderTimeout, &o.ReadHeaderTimeout},
		{&c.WriteTimeout, &o.WriteTimeout},
		{&c.IdleTimeout, &o.IdleTimeout},
		{&c.ShutdownTimeout, &o.ShutdownTimeout},
	}
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
