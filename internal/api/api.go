// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/certify/internal/config"
	"github.com/JaimeStill/certify/pkg/middleware"
	"github.com/JaimeStill/certify/pkg/module"
)

// NewModule creates the API module serving the domain handlers under the
// configured base path.
func NewModule(cfg *config.Config, runtime *Runtime, domain *Domain) (*module.Module, error) {
	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, runtime); err != nil {
		return nil, err
	}

	m, err := module.New(cfg.API.BasePath, mux)
	if err != nil {
		return nil, err
	}
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(runtime.Metrics.Instrument)

	return m, nil
}
