package main

import (
	"encoding/json"
	"net/http"

	"github.com/JaimeStill/certify/internal/infrastructure"
	"github.com/JaimeStill/certify/pkg/module"
)

func buildRouter(infra *infrastructure.Infrastructure, modules ...*module.Module) (*module.Router, error) {
	router := module.NewRouter()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, "ok")
	})

	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			respond(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		if err := infra.Database.Ping(r.Context()); err != nil {
			infra.Logger.Warn("readiness check failed", "error", err)
			respond(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		respond(w, http.StatusOK, "ready")
	})

	router.Handle("GET /metrics", infra.Metrics.Handler())

	for _, m := range modules {
		if err := router.Mount(m); err != nil {
			return nil, err
		}
	}
	return router, nil
}

func respond(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"status": msg})
}
