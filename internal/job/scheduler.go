package job

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs the job on a fixed interval.
type Scheduler struct {
	job        *Job
	interval   time.Duration
	runOnStart bool
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler. When runOnStart is set the first pass
// starts immediately instead of after one interval.
func NewScheduler(j *Job, interval time.Duration, runOnStart bool, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		job:        j,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger.With("system", "scheduler"),
	}
}

// Run blocks until ctx is cancelled. Passes that overlap a running pass
// are skipped. Run always returns nil so it can share an errgroup with the
// HTTP server without stopping it.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "run_on_start", s.runOnStart)

	if s.runOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.job.Run(ctx); err != nil {
		if IsRunning(err) {
			s.logger.Warn("skipping pass, previous pass still running")
			return
		}
		if ctx.Err() == nil {
			s.logger.Error("reconciliation pass aborted", "error", err)
		}
	}
}
