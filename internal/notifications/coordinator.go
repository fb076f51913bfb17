// Package notifications decides which lifecycle notifications are due,
// renders them, hands them to the messenger, and records each send so it is
// delivered at most once.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/external"
	"github.com/JaimeStill/certify/internal/store"
)

// Coordinator triggers notifications. Delivery is throttled by a token
// bucket shared across kinds.
type Coordinator struct {
	store     store.Store
	messenger external.Messenger
	limiter   *rate.Limiter
	logger    *slog.Logger
	now       func() time.Time
	loc       *time.Location
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLocation sets the location dates are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) { c.loc = loc }
}

// WithRate limits deliveries to perSecond with the given burst.
// A non-positive perSecond disables throttling.
func WithRate(perSecond float64, burst int) Option {
	return func(c *Coordinator) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// New creates a Coordinator.
func New(s store.Store, messenger external.Messenger, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     s,
		messenger: messenger,
		limiter:   rate.NewLimiter(rate.Inf, 0),
		logger:    logger.With("system", "notifications"),
		now:       time.Now,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result summarises a trigger pass.
type Result struct {
	Sent   map[certification.NotificationKind]int `json:"sent"`
	Failed int                                    `json:"failed"`
}

// Trigger delivers every due notification of every kind within scope.
// Delivery failures are logged and retried on the next pass.
func (c *Coordinator) Trigger(ctx context.Context, scope store.Scope) (Result, error) {
	r := Result{Sent: make(map[certification.NotificationKind]int)}

	var errs []error
	for _, kind := range certification.NotificationKinds {
		sent, failed, err := c.trigger(ctx, kind, scope)
		r.Sent[kind] += sent
		r.Failed += failed
		if err != nil {
			if ctx.Err() != nil {
				return r, err
			}
			errs = append(errs, err)
		}
	}
	return r, errors.Join(errs...)
}

func (c *Coordinator) trigger(ctx context.Context, kind certification.NotificationKind, scope store.Scope) (sent, failed int, err error) {
	now := c.now()

	candidates, err := c.store.NotificationCandidates(ctx, kind, scope, now)
	if err != nil {
		return 0, 0, fmt.Errorf("%s candidates: %w", kind, err)
	}

	for _, cand := range candidates {
		if !certification.NotificationDue(kind, cand.Certification, cand.Assignment, cand.Period, now) {
			continue
		}

		if err := c.deliver(ctx, c.store, kind, cand); err != nil {
			if ctx.Err() != nil {
				return sent, failed, ctx.Err()
			}
			failed++
			c.logger.WarnContext(ctx, "notification failed",
				"kind", kind,
				"certification_id", cand.Certification.ID,
				"user_id", cand.Assignment.UserID,
				"error", err,
			)
			continue
		}
		sent++
	}

	if sent > 0 {
		c.logger.InfoContext(ctx, "notifications sent", "kind", kind, "count", sent)
	}
	return sent, failed, nil
}

// deliver renders and sends a candidate, then records the send through q.
func (c *Coordinator) deliver(ctx context.Context, q store.Queries, kind certification.NotificationKind, cand certification.NotificationCandidate) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	msg := c.render(kind, cand)
	if err := c.messenger.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s notification: %w", kind, err)
	}

	send := certification.NotificationSend{
		Kind:         kind,
		UserID:       cand.Assignment.UserID,
		AssignmentID: cand.Assignment.ID,
		TimeSent:     c.now(),
	}
	if cand.Period != nil {
		send.PeriodID = &cand.Period.ID
	}

	err := q.InsertNotificationSend(ctx, send)
	if errors.Is(err, certification.ErrDuplicate) {
		return nil
	}
	return err
}

// config returns the enabled configuration of kind, or nil.
func (c *Coordinator) config(ctx context.Context, q store.Queries, certificationID uuid.UUID, kind certification.NotificationKind) (*certification.NotificationConfig, error) {
	configs, err := q.ListNotificationConfigs(ctx, certificationID)
	if err != nil {
		return nil, err
	}
	for _, cfg := range configs {
		if cfg.Kind == kind && cfg.Enabled {
			return &cfg, nil
		}
	}
	return nil, nil
}

// NotifyAssigned sends the assignment notification right after assignment.
// The send is recorded so the batch pass skips it.
func (c *Coordinator) NotifyAssigned(ctx context.Context, cert certification.Certification, src certification.Source, a certification.Assignment) error {
	cfg, err := c.config(ctx, c.store, cert.ID, certification.NotifyAssignment)
	if err != nil || cfg == nil {
		return err
	}

	return c.deliver(ctx, c.store, certification.NotifyAssignment, certification.NotificationCandidate{
		Certification: cert,
		Source:        src,
		Assignment:    a,
		Config:        *cfg,
	})
}

// SendUnassignment sends the unassignment notification inside the
// unassignment transaction. It is not throttled, since the caller holds
// the assignment lock. Messenger failures are logged and do not block the
// unassignment.
func (c *Coordinator) SendUnassignment(ctx context.Context, tx store.Tx, cert certification.Certification, src certification.Source, a certification.Assignment) error {
	cfg, err := c.config(ctx, tx, cert.ID, certification.NotifyUnassignment)
	if err != nil || cfg == nil {
		return err
	}

	cand := certification.NotificationCandidate{
		Certification: cert,
		Source:        src,
		Assignment:    a,
		Config:        *cfg,
	}

	if err := c.messenger.Send(ctx, c.render(certification.NotifyUnassignment, cand)); err != nil {
		c.logger.WarnContext(ctx, "unassignment notification failed",
			"certification_id", cert.ID,
			"user_id", a.UserID,
			"error", err,
		)
	}
	return nil
}
