package api

import (
	"time"

	"github.com/JaimeStill/certify/internal/config"
	"github.com/JaimeStill/certify/internal/infrastructure"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/pagination"
)

// Runtime extends Infrastructure with the store and API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Store      store.Store
	Pagination pagination.Config
	Job        config.JobConfig
	Now        func() time.Time
}

// NewRuntime creates an API runtime with a module-scoped logger. A nil
// clock uses time.Now.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure, s store.Store, now func() time.Time) *Runtime {
	if now == nil {
		now = time.Now
	}
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Metrics:   infra.Metrics,
		},
		Store:      s,
		Pagination: cfg.API.Pagination,
		Job:        cfg.Job,
		Now:        now,
	}
}
