package storage

import (
	"fmt"
	"os"
	"path"
	"strings"
)

const (
	defaultContainer = "certify"
	defaultPrefix    = "certificates"
)

// Config locates the blob container holding certificate documents. Storage
// is disabled while ConnectionString is empty.
type Config struct {
	Container        string `toml:"container"`
	ConnectionString string `toml:"connection_string"`
	Prefix           string `toml:"prefix"`
}

// Env names the variables overriding each field.
type Env struct {
	Container        string
	ConnectionString string
	Prefix           string
}

// Enabled reports whether a connection string is configured.
func (c *Config) Enabled() bool {
	return c.ConnectionString != ""
}

// Finalize applies env overrides, then defaults and validation when storage
// is enabled. A disabled config is left as is.
func (c *Config) Finalize(env *Env) error {
	if env != nil {
		c.loadEnv(env)
	}
	if !c.Enabled() {
		return nil
	}

	if c.Container == "" {
		c.Container = defaultContainer
	}
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	c.Prefix = strings.Trim(path.Clean("/"+c.Prefix), "/")

	if strings.ContainsAny(c.Container, "/ ") {
		return fmt.Errorf("invalid container %q", c.Container)
	}
	return nil
}

// Merge overwrites the fields overlay sets.
func (c *Config) Merge(overlay *Config) {
	for dst, src := range c.fields(overlay) {
		if *src != "" {
			*dst = *src
		}
	}
}

func (c *Config) loadEnv(env *Env) {
	names := map[*string]string{
		&c.Container:        env.Container,
		&c.ConnectionString: env.ConnectionString,
		&c.Prefix:           env.Prefix,
	}
	for dst, name := range names {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

func (c *Config) fields(o *Config) map[*string]*string {
	return map[*string]*string{
		&c.Container:        &o.Container,
		&c.ConnectionString: &o.ConnectionString,
		&c.Prefix:           &o.Prefix,
	}
}
