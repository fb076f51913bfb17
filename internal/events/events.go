// Package events publishes certification lifecycle events.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
)

// Kind identifies a lifecycle event.
type Kind string

const (
	Assigned    Kind = "assigned"
	Unassigned  Kind = "unassigned"
	Certified   Kind = "certified"
	Revoked     Kind = "revoked"
	Recertified Kind = "recertified"
)

// Event describes a committed lifecycle change. Snapshot carries the state
// of the assignment when the change removed it from the store.
type Event struct {
	Kind            Kind                    `json:"kind"`
	CertificationID uuid.UUID               `json:"certification_id"`
	UserID          int64                   `json:"user_id"`
	AssignmentID    uuid.UUID               `json:"assignment_id"`
	PeriodID        *uuid.UUID              `json:"period_id,omitempty"`
	Snapshot        *certification.Snapshot `json:"snapshot,omitempty"`
	At              time.Time               `json:"at"`
}

// Emitter receives events after their transaction has committed.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// LogEmitter writes events to a logger.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a LogEmitter.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger.With("system", "events")}
}

func (l *LogEmitter) Emit(ctx context.Context, e Event) {
	attrs := []any{
		"kind", e.Kind,
		"certification_id", e.CertificationID,
		"user_id", e.UserID,
		"assignment_id", e.AssignmentID,
	}
	if e.PeriodID != nil {
		attrs = append(attrs, "period_id", *e.PeriodID)
	}
	l.logger.InfoContext(ctx, "lifecycle event", attrs...)
}

// Fanout delivers each event to every emitter in order.
type Fanout []Emitter

func (f Fanout) Emit(ctx context.Context, e Event) {
	for _, em := range f {
		em.Emit(ctx, e)
	}
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns the recorded events in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns the number of recorded events of kind.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
