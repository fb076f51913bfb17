package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvJobInterval          = "CERTIFY_JOB_INTERVAL"
	EnvJobRunOnStart        = "CERTIFY_JOB_RUN_ON_START"
	EnvJobTimezone          = "CERTIFY_JOB_TIMEZONE"
	EnvJobNotificationRate  = "CERTIFY_JOB_NOTIFICATION_RATE"
	EnvJobNotificationBurst = "CERTIFY_JOB_NOTIFICATION_BURST"
)

// JobConfig holds the reconciliation schedule and the calendar used for
// date arithmetic and notification rendering.
type JobConfig struct {
	Interval          string  `toml:"interval"`
	RunOnStart        *bool   `toml:"run_on_start"`
	Timezone          string  `toml:"timezone"`
	NotificationRate  float64 `toml:"notification_rate"`
	NotificationBurst int     `toml:"notification_burst"`
}

// IntervalDuration returns Interval as a time.Duration.
func (c *JobConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.Interval)
	return d
}

// ShouldRunOnStart reports whether the first pass starts immediately.
func (c *JobConfig) ShouldRunOnStart() bool {
	return c.RunOnStart != nil && *c.RunOnStart
}

// Location returns the configured time zone. Validation guarantees it loads.
func (c *JobConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *JobConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *JobConfig) Merge(overlay *JobConfig) {
	if overlay.Interval != "" {
		c.Interval = overlay.Interval
	}
	if overlay.RunOnStart != nil {
		c.RunOnStart = overlay.RunOnStart
	}
	if overlay.Timezone != "" {
		c.Timezone = overlay.Timezone
	}
	if overlay.NotificationRate != 0 {
		c.NotificationRate = overlay.NotificationRate
	}
	if overlay.NotificationBurst != 0 {
		c.NotificationBurst = overlay.NotificationBurst
	}
}

func (c *JobConfig) loadDefaults() {
	if c.Interval == "" {
		c.Interval = "5m"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.NotificationBurst == 0 {
		c.NotificationBurst = 1
	}
}

func (c *JobConfig) loadEnv() {
	if v := os.Getenv(EnvJobInterval); v != "" {
		c.Interval = v
	}
	if v := os.Getenv(EnvJobRunOnStart); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.RunOnStart = &b
		}
	}
	if v := os.Getenv(EnvJobTimezone); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv(EnvJobNotificationRate); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			c.NotificationRate = r
		}
	}
	if v := os.Getenv(EnvJobNotificationBurst); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NotificationBurst = n
		}
	}
}

func (c *JobConfig) validate() error {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	if c.NotificationRate < 0 {
		return fmt.Errorf("notification_rate must not be negative")
	}
	if c.NotificationBurst < 1 {
		return fmt.Errorf("notification_burst must be at least 1")
	}
	return nil
}
