package api

import (
	"net/http"

	"github.com/JaimeStill/certify/internal/certificates"
	"github.com/JaimeStill/certify/internal/job"
	"github.com/JaimeStill/certify/internal/sources"
	"github.com/JaimeStill/certify/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain, runtime *Runtime) error {
	groups := []routes.Group{
		domain.Certifications.Handler().Routes(),
		sources.NewHandler(domain.Sources, runtime.Logger).Routes(),
		domain.Assignments.Handler().Routes(),
		domain.Periods.Handler().Routes(),
		job.NewHandler(domain.Job, runtime.Logger).Routes(),
	}
	if domain.Documents != nil {
		groups = append(groups, certificates.NewHandler(runtime.Store, domain.Documents, runtime.Logger).Routes())
	}

	if err := routes.Register(mux, groups...); err != nil {
		return err
	}

	for _, pattern := range routes.Patterns(groups...) {
		runtime.Logger.Debug("route registered", "pattern", pattern)
	}
	return nil
}
