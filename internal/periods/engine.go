// Package periods implements the period lifecycle: first period creation,
// certification on program completion, recertification, date overrides,
// revocation, and deletion.
package periods

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/events"
	"github.com/JaimeStill/certify/internal/external"
	"github.com/JaimeStill/certify/internal/store"
)

// Engine owns period state transitions. Every mutation runs in one store
// transaction that locks the assignment before its periods.
type Engine struct {
	store    store.Store
	programs external.Programs
	certs    external.Certificates
	events   events.Emitter
	logger   *slog.Logger
	now      func() time.Time
	loc      *time.Location
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the calendar used for date arithmetic. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// New creates an Engine.
func New(
	s store.Store,
	programs external.Programs,
	certs external.Certificates,
	emitter events.Emitter,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:    s,
		programs: programs,
		certs:    certs,
		events:   emitter,
		logger:   logger.With("system", "periods"),
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the current time of the engine clock.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Location returns the calendar used for date arithmetic.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// PlanFirst computes and validates the window of a first period opening now.
func (e *Engine) PlanFirst(c certification.Certification, o certification.WindowOverrides) (certification.Window, error) {
	return c.Settings.FirstWindow(e.now(), o, e.loc)
}

// CreateFirst inserts the first period of a new assignment within tx. The
// first reset policy is applied before the period is written.
func (e *Engine) CreateFirst(ctx context.Context, tx store.Tx, c certification.Certification, a certification.Assignment, w certification.Window) (*certification.Period, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	p := certification.Period{
		ID:              uuid.New(),
		CertificationID: c.ID,
		UserID:          a.UserID,
		ProgramID:       c.ProgramID1,
		TimeWindowStart: w.Start,
		TimeWindowDue:   w.Due,
		TimeWindowEnd:   w.End,
		First:           true,
		Recertifiable:   c.Settings.RecertifyFirst(),
		CreatedAt:       e.now(),
	}

	if err := e.reset(ctx, p, c.Settings.ResetType1); err != nil {
		return nil, err
	}

	if err := tx.InsertPeriod(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (e *Engine) reset(ctx context.Context, p certification.Period, reset certification.ResetType) error {
	if reset == certification.ResetNone {
		return nil
	}
	if err := e.programs.ApplyReset(ctx, p, reset); err != nil {
		return fmt.Errorf("apply %s reset to program %d: %w", reset, p.ProgramID, err)
	}
	return nil
}

// locked is a period read under the locks of its assignment and itself.
type locked struct {
	certification certification.Certification
	assignment    certification.Assignment
	period        certification.Period
}

func (e *Engine) lock(ctx context.Context, tx store.Tx, periodID uuid.UUID) (*locked, error) {
	p, err := tx.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}

	a, err := tx.FindAssignment(ctx, p.CertificationID, p.UserID)
	if err != nil {
		return nil, err
	}
	if a, err = tx.LockAssignment(ctx, a.ID); err != nil {
		return nil, err
	}
	if p, err = tx.LockPeriod(ctx, periodID); err != nil {
		return nil, err
	}

	c, err := tx.GetCertification(ctx, p.CertificationID)
	if err != nil {
		return nil, err
	}

	return &locked{certification: *c, assignment: *a, period: *p}, nil
}

func (e *Engine) emit(ctx context.Context, kind events.Kind, a certification.Assignment, periodID *uuid.UUID, snap *certification.Snapshot) {
	e.events.Emit(ctx, events.Event{
		Kind:            kind,
		CertificationID: a.CertificationID,
		UserID:          a.UserID,
		AssignmentID:    a.ID,
		PeriodID:        periodID,
		Snapshot:        snap,
		At:              e.now(),
	})
}
