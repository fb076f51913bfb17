// Package assignments manages the lifecycle of assignments: creation with
// their first period, archival, restoration, overrides, status, and hard
// unassignment.
package assignments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/events"
	"github.com/JaimeStill/certify/internal/periods"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/pagination"
)

// Notifier delivers the notifications assignment changes send immediately.
type Notifier interface {
	// NotifyAssigned sends and records the assignment notification.
	NotifyAssigned(ctx context.Context, c certification.Certification, s certification.Source, a certification.Assignment) error
	// SendUnassignment sends the unassignment notification within tx, while
	// the assignment still exists.
	SendUnassignment(ctx context.Context, tx store.Tx, c certification.Certification, s certification.Source, a certification.Assignment) error
}

// Within runs inside the assignment transaction before the assignment is
// written. Returning an error aborts the assignment.
type Within func(ctx context.Context, tx store.Tx, a *certification.Assignment) error

// AssignCommand carries the data needed to assign a user.
type AssignCommand struct {
	CertificationID uuid.UUID                     `json:"certification_id"`
	SourceID        uuid.UUID                     `json:"source_id"`
	UserID          int64                         `json:"user_id"`
	SourceData      json.RawMessage               `json:"source_data,omitempty"`
	Overrides       certification.WindowOverrides `json:"overrides"`
	ActorID         *int64                        `json:"actor_id,omitempty"`
}

// Manager implements assignment lifecycle operations.
type Manager struct {
	store      store.Store
	periods    *periods.Engine
	notifier   Notifier
	events     events.Emitter
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a Manager. Time and calendar come from the period engine.
func New(
	s store.Store,
	engine *periods.Engine,
	notifier Notifier,
	emitter events.Emitter,
	logger *slog.Logger,
	pagination pagination.Config,
) *Manager {
	return &Manager{
		store:      s,
		periods:    engine,
		notifier:   notifier,
		events:     emitter,
		logger:     logger.With("system", "assignments"),
		pagination: pagination,
	}
}

// Now returns the current time of the lifecycle clock.
func (m *Manager) Now() time.Time {
	return m.periods.Now()
}

// Assign assigns a user to a certification through a source and creates the
// first period in the same transaction. When the user is already assigned
// the existing assignment is returned with created false.
func (m *Manager) Assign(ctx context.Context, cmd AssignCommand, within ...Within) (*certification.Assignment, bool, error) {
	c, err := m.store.GetCertification(ctx, cmd.CertificationID)
	if err != nil {
		return nil, false, err
	}
	if c.Archived {
		return nil, false, fmt.Errorf("%w: certification %s", certification.ErrArchived, c.ID)
	}

	src, err := m.store.GetSource(ctx, cmd.SourceID)
	if err != nil {
		return nil, false, err
	}
	if src.CertificationID != c.ID {
		return nil, false, fmt.Errorf("%w: source %s does not belong to certification %s", certification.ErrInvariant, src.ID, c.ID)
	}

	w, err := m.periods.PlanFirst(*c, cmd.Overrides)
	if err != nil {
		return nil, false, err
	}

	var (
		result  certification.Assignment
		created bool
	)

	err = m.store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.FindAssignment(ctx, c.ID, cmd.UserID)
		if err == nil {
			result = *existing
			return nil
		}
		if !errors.Is(err, certification.ErrNotFound) {
			return err
		}

		a := certification.Assignment{
			ID:              uuid.New(),
			CertificationID: c.ID,
			UserID:          cmd.UserID,
			SourceID:        src.ID,
			SourceData:      cmd.SourceData,
			CreatedAt:       m.periods.Now(),
		}

		for _, fn := range within {
			if err := fn(ctx, tx, &a); err != nil {
				return err
			}
		}

		if err := tx.InsertAssignment(ctx, &a); err != nil {
			return err
		}
		if _, err := m.periods.CreateFirst(ctx, tx, *c, a, w); err != nil {
			return err
		}
		if _, err := store.RecordSnapshot(ctx, tx, certification.ReasonAssigned, a, cmd.ActorID, a.CreatedAt); err != nil {
			return err
		}

		result, created = a, true
		return nil
	})

	if errors.Is(err, certification.ErrDuplicate) {
		existing, findErr := m.store.FindAssignment(ctx, c.ID, cmd.UserID)
		if findErr != nil {
			return nil, false, errors.Join(err, findErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		m.logger.InfoContext(ctx, "user assigned",
			"certification_id", c.ID,
			"user_id", result.UserID,
			"source", src.Type,
		)
		m.emit(ctx, events.Assigned, result, nil)

		if err := m.notifier.NotifyAssigned(ctx, *c, *src, result); err != nil {
			m.logger.WarnContext(ctx, "assignment notification failed",
				"assignment_id", result.ID,
				"error", err,
			)
		}
	}

	return &result, created, nil
}

// Unassign hard deletes an assignment by id.
func (m *Manager) Unassign(ctx context.Context, id uuid.UUID, actor *int64) error {
	a, err := m.store.GetAssignment(ctx, id)
	if err != nil {
		return err
	}
	c, err := m.store.GetCertification(ctx, a.CertificationID)
	if err != nil {
		return err
	}
	src, err := m.store.GetSource(ctx, a.SourceID)
	if err != nil {
		return err
	}
	return m.UnassignUser(ctx, *c, *src, *a, actor)
}

// UnassignUser deletes an assignment together with its periods and
// notification records. The unassignment notification is sent first, while
// the data still exists. Mismatched identifiers are a caller bug and return
// certification.ErrInvariant.
func (m *Manager) UnassignUser(ctx context.Context, c certification.Certification, src certification.Source, a certification.Assignment, actor *int64) error {
	if a.CertificationID != c.ID || src.CertificationID != c.ID || a.SourceID != src.ID {
		return fmt.Errorf("%w: assignment %s, source %s and certification %s do not match",
			certification.ErrInvariant, a.ID, src.ID, c.ID)
	}

	var snap *certification.Snapshot

	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		locked, err := tx.LockAssignment(ctx, a.ID)
		if err != nil {
			return err
		}

		if err := m.notifier.SendUnassignment(ctx, tx, c, src, *locked); err != nil {
			return err
		}
		if err := tx.DeleteNotificationSends(ctx, locked.ID); err != nil {
			return err
		}

		snap, err = store.RecordSnapshot(ctx, tx, certification.ReasonUnassigned, *locked, actor, m.periods.Now())
		if err != nil {
			return err
		}

		if err := m.periods.RemoveAll(ctx, tx, *locked); err != nil {
			return err
		}
		return tx.DeleteAssignment(ctx, locked.ID)
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "user unassigned", "certification_id", c.ID, "user_id", a.UserID)
	m.emit(ctx, events.Unassigned, a, snap)
	return nil
}

// Archive soft removes an assignment, keeping its periods.
func (m *Manager) Archive(ctx context.Context, id uuid.UUID, actor *int64) (*certification.Assignment, error) {
	return m.update(ctx, id, actor, certification.ReasonArchived, func(_ store.Tx, a *certification.Assignment) (bool, error) {
		if a.Archived {
			return false, nil
		}
		a.Archived = true
		return true, nil
	})
}

// Restore reactivates an archived assignment. The unassignment notification
// record is cleared so a later archival notifies again.
func (m *Manager) Restore(ctx context.Context, id uuid.UUID, actor *int64) (*certification.Assignment, error) {
	return m.update(ctx, id, actor, certification.ReasonRestored, func(tx store.Tx, a *certification.Assignment) (bool, error) {
		if !a.Archived {
			return false, nil
		}
		a.Archived = false
		return true, tx.DeleteNotificationSends(ctx, a.ID, certification.NotifyUnassignment)
	})
}

// SetOverride sets or clears the temporary certification of an assignment.
func (m *Manager) SetOverride(ctx context.Context, id uuid.UUID, until *time.Time, actor *int64) (*certification.Assignment, error) {
	return m.update(ctx, id, actor, certification.ReasonOverride, func(_ store.Tx, a *certification.Assignment) (bool, error) {
		a.TimeCertifiedUntil = until
		return true, nil
	})
}

// SetEvidence replaces the evidence recorded on an assignment.
func (m *Manager) SetEvidence(ctx context.Context, id uuid.UUID, evidence json.RawMessage, actor *int64) (*certification.Assignment, error) {
	return m.update(ctx, id, actor, certification.ReasonOverride, func(_ store.Tx, a *certification.Assignment) (bool, error) {
		a.Evidence = evidence
		return true, nil
	})
}

// update applies fn to the locked assignment and records a snapshot when
// fn reports a change.
func (m *Manager) update(
	ctx context.Context,
	id uuid.UUID,
	actor *int64,
	reason string,
	fn func(tx store.Tx, a *certification.Assignment) (bool, error),
) (*certification.Assignment, error) {
	var result certification.Assignment

	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.LockAssignment(ctx, id)
		if err != nil {
			return err
		}
		result = *a

		changed, err := fn(tx, a)
		if err != nil || !changed {
			return err
		}

		if err := tx.UpdateAssignment(ctx, a); err != nil {
			return err
		}
		if _, err := store.RecordSnapshot(ctx, tx, reason, *a, actor, m.periods.Now()); err != nil {
			return err
		}

		result = *a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Snapshots returns the audit log of an assignment, oldest first.
func (m *Manager) Snapshots(ctx context.Context, id uuid.UUID) ([]certification.Snapshot, error) {
	return m.store.ListSnapshots(ctx, id)
}

func (m *Manager) emit(ctx context.Context, kind events.Kind, a certification.Assignment, snap *certification.Snapshot) {
	m.events.Emit(ctx, events.Event{
		Kind:            kind,
		CertificationID: a.CertificationID,
		UserID:          a.UserID,
		AssignmentID:    a.ID,
		Snapshot:        snap,
		At:              m.periods.Now(),
	})
}
