package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/certify/internal/api"
	"github.com/JaimeStill/certify/internal/config"
	"github.com/JaimeStill/certify/internal/infrastructure"
	"github.com/JaimeStill/certify/internal/job"
	"github.com/JaimeStill/certify/internal/store/postgres"
)

// Server runs the HTTP API and the reconciliation scheduler.
type Server struct {
	cfg    *config.Config
	infra  *infrastructure.Infrastructure
	domain *api.Domain
	http   *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	runtime := api.NewRuntime(cfg, infra, postgres.New(infra.Database.Connection()), nil)
	domain, err := api.NewDomain(runtime)
	if err != nil {
		return nil, err
	}

	apiModule, err := api.NewModule(cfg, runtime, domain)
	if err != nil {
		return nil, err
	}

	router, err := buildRouter(infra, apiModule)
	if err != nil {
		return nil, err
	}

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"storage", cfg.StorageEnabled(),
	)

	return &Server{
		cfg:    cfg,
		infra:  infra,
		domain: domain,
		http:   newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

// Run starts the infrastructure and serves until ctx is cancelled. The
// scheduler starts once every subsystem is ready; a failed startup stops
// the server.
func (s *Server) Run(ctx context.Context) error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}
	defer s.shutdown()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.http.Run(ctx)
	})

	g.Go(func() error {
		if err := s.infra.Lifecycle.WaitForStartup(); err != nil {
			return fmt.Errorf("startup failed: %w", err)
		}
		s.infra.Logger.Info("all subsystems ready")

		scheduler := job.NewScheduler(
			s.domain.Job,
			s.cfg.Job.IntervalDuration(),
			s.cfg.Job.ShouldRunOnStart(),
			s.infra.Logger,
		)
		return scheduler.Run(ctx)
	})

	return g.Wait()
}

// RunOnce starts the infrastructure, runs a single reconciliation pass,
// and shuts down.
func (s *Server) RunOnce(ctx context.Context) (job.Report, error) {
	if err := s.infra.Start(); err != nil {
		return job.Report{}, err
	}
	defer s.shutdown()

	if err := s.infra.Lifecycle.WaitForStartup(); err != nil {
		return job.Report{}, fmt.Errorf("startup failed: %w", err)
	}
	return s.domain.Job.Run(ctx)
}

func (s *Server) shutdown() {
	s.infra.Logger.Info("initiating shutdown")
	if err := s.infra.Lifecycle.Shutdown(s.cfg.ShutdownTimeoutDuration()); err != nil {
		s.infra.Logger.Error("shutdown failed", "error", err)
		return
	}
	s.infra.Logger.Info("service stopped")
}
