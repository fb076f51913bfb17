// Package job runs the scheduled reconciliation pass: source reconciliation,
// program sync, notifications, recertification, and certificate issuance,
// always in that order.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JaimeStill/certify/internal/certificates"
	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/external"
	"github.com/JaimeStill/certify/internal/notifications"
	"github.com/JaimeStill/certify/internal/periods"
	"github.com/JaimeStill/certify/internal/store"
)

// ErrRunning is returned when a pass is requested while another is running.
var ErrRunning = fmt.Errorf("%w: reconciliation already running", certification.ErrConflict)

// Step names, in execution order.
const (
	StepSources         = "fix_assignments"
	StepPrograms        = "sync_programs"
	StepNotifications   = "trigger_notifications"
	StepRecertification = "process_recertifications"
	StepCertificates    = "issue_certificates"
)

// Reconciler reconciles the assignments of every source type.
type Reconciler interface {
	FixAll(ctx context.Context, scope store.Scope) (bool, error)
}

// Notifier delivers due notifications.
type Notifier interface {
	Trigger(ctx context.Context, scope store.Scope) (notifications.Result, error)
}

// Recertifier creates due recertification periods.
type Recertifier interface {
	ProcessRecertifications(ctx context.Context, scope store.Scope) (periods.Result, error)
}

// Issuer issues pending certificates.
type Issuer interface {
	IssuePending(ctx context.Context, scope store.Scope) (certificates.Result, error)
}

// Deps are the systems a pass drives.
type Deps struct {
	Sources       Reconciler
	Programs      external.Programs
	Notifications Notifier
	Periods       Recertifier
	Certificates  Issuer
}

// StepReport is the outcome of one step.
type StepReport struct {
	Name     string        `json:"name"`
	Result   any           `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the step returned an error or panicked.
func (s StepReport) Failed() bool {
	return s.Error != ""
}

// Report is the outcome of a pass.
type Report struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Steps      []StepReport `json:"steps"`
}

// Failed reports whether any step failed.
func (r Report) Failed() bool {
	for _, s := range r.Steps {
		if s.Failed() {
			return true
		}
	}
	return false
}

type step struct {
	name string
	run  func(ctx context.Context) (any, error)
}

// Job runs reconciliation passes. At most one pass runs at a time.
type Job struct {
	steps   []step
	metrics *stepMetrics
	logger  *slog.Logger
	now     func() time.Time
	running sync.Mutex
}

// New creates a Job over deps. Metrics are registered with reg when it is
// not nil.
func New(deps Deps, logger *slog.Logger, reg prometheus.Registerer) (*Job, error) {
	m, err := newStepMetrics(reg)
	if err != nil {
		return nil, err
	}

	all := store.Scope{}
	j := &Job{
		metrics: m,
		logger:  logger.With("system", "job"),
		now:     time.Now,
	}
	j.steps = []step{
		{StepSources, func(ctx context.Context) (any, error) {
			changed, err := deps.Sources.FixAll(ctx, all)
			return map[string]bool{"changed": changed}, err
		}},
		{StepPrograms, func(ctx context.Context) (any, error) {
			return nil, deps.Programs.Sync(ctx, nil, nil)
		}},
		{StepNotifications, func(ctx context.Context) (any, error) {
			return deps.Notifications.Trigger(ctx, all)
		}},
		{StepRecertification, func(ctx context.Context) (any, error) {
			return deps.Periods.ProcessRecertifications(ctx, all)
		}},
		{StepCertificates, func(ctx context.Context) (any, error) {
			return deps.Certificates.IssuePending(ctx, all)
		}},
	}
	return j, nil
}

// Run executes one pass. A failing step is logged and does not stop the
// steps after it. Run returns ErrRunning when another pass holds the job.
func (j *Job) Run(ctx context.Context) (Report, error) {
	if !j.running.TryLock() {
		return Report{}, ErrRunning
	}
	defer j.running.Unlock()

	report := Report{StartedAt: j.now()}
	j.logger.InfoContext(ctx, "reconciliation started")

	for _, s := range j.steps {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = j.now()
			return report, err
		}
		report.Steps = append(report.Steps, j.runStep(ctx, s))
	}

	report.FinishedAt = j.now()
	j.metrics.finish(report)

	if report.Failed() {
		j.logger.WarnContext(ctx, "reconciliation finished with failures", "duration", report.FinishedAt.Sub(report.StartedAt))
	} else {
		j.logger.InfoContext(ctx, "reconciliation finished", "duration", report.FinishedAt.Sub(report.StartedAt))
	}
	return report, nil
}

func (j *Job) runStep(ctx context.Context, s step) (sr StepReport) {
	sr.Name = s.name
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			sr.Error = fmt.Sprintf("panic: %v", p)
		}
		sr.Duration = time.Since(start)
		j.metrics.observe(sr)
		if sr.Failed() {
			j.logger.ErrorContext(ctx, "reconciliation step failed", "step", s.name, "error", sr.Error)
		} else {
			j.logger.DebugContext(ctx, "reconciliation step finished", "step", s.name, "duration", sr.Duration)
		}
	}()

	result, err := s.run(ctx)
	sr.Result = result
	if err != nil {
		sr.Error = err.Error()
	}
	return sr
}

// IsRunning reports whether err is ErrRunning.
func IsRunning(err error) bool {
	return errors.Is(err, ErrRunning)
}
