// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, metrics) that domain systems require.
package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/JaimeStill/certify/internal/config"
	"github.com/JaimeStill/certify/pkg/database"
	"github.com/JaimeStill/certify/pkg/lifecycle"
	"github.com/JaimeStill/certify/pkg/metrics"
	"github.com/JaimeStill/certify/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// Storage is nil when no blob storage is configured.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   *storage.Blobs
	Metrics   *metrics.System
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := NewLogger(os.Stderr, cfg)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	var store *storage.Blobs
	if cfg.Storage.Enabled() {
		store, err = storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Metrics:   metrics.New("certify", cfg.Version),
	}, nil
}

// NewLogger builds the root logger with the configured level and format.
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// Database and storage hooks are registered for startup and shutdown coordination.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}
	return nil
}
