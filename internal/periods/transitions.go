package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/events"
	"github.com/JaimeStill/certify/internal/store"
)

// Completion is the inbound signal that a user completed a program.
type Completion struct {
	ProgramID int64     `json:"program_id"`
	UserID    int64     `json:"user_id"`
	At        time.Time `json:"at"`
}

// Complete certifies the open period the completion belongs to: the earliest
// uncertified, unrevoked period of the program and user whose window has
// started by the completion time.
func (e *Engine) Complete(ctx context.Context, c Completion) (*certification.Period, error) {
	if c.At.IsZero() {
		c.At = e.now()
	}

	certified := false
	open, err := e.store.ListPeriods(ctx, store.PeriodFilter{
		ProgramID: &c.ProgramID,
		UserID:    &c.UserID,
		Certified: &certified,
	})
	if err != nil {
		return nil, err
	}

	for _, p := range open {
		if p.TimeRevoked != nil || p.TimeWindowStart.After(c.At) {
			continue
		}
		return e.Certify(ctx, p.ID, c.At, nil)
	}

	return nil, fmt.Errorf("%w: no open period of program %d for user %d", certification.ErrNotFound, c.ProgramID, c.UserID)
}

// Certify marks the period certified at at and computes its validity range.
// A period that is already certified is returned unchanged and no event fires.
func (e *Engine) Certify(ctx context.Context, periodID uuid.UUID, at time.Time, actor *int64) (*certification.Period, error) {
	var (
		result  certification.Period
		changed bool
		a       certification.Assignment
	)

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		l, err := e.lock(ctx, tx, periodID)
		if err != nil {
			return err
		}
		a, result = l.assignment, l.period

		if l.period.TimeCertified != nil {
			return nil
		}
		if l.period.TimeRevoked != nil {
			return fmt.Errorf("%w: period %s is revoked", certification.ErrConflict, periodID)
		}
		if l.certification.Archived || l.assignment.Archived {
			return fmt.Errorf("%w: assignment of user %d", certification.ErrArchived, l.assignment.UserID)
		}

		from, until, err := l.certification.Settings.Validity(l.period, at, e.loc)
		if err != nil {
			return err
		}

		p := l.period
		p.TimeCertified = &at
		p.TimeFrom = &from
		p.TimeUntil = until
		if until == nil {
			p.Recertifiable = false
		}

		if err := tx.UpdatePeriod(ctx, &p); err != nil {
			return err
		}
		if _, err := store.RecordSnapshot(ctx, tx, certification.ReasonCertified, a, actor, e.now()); err != nil {
			return err
		}

		result, changed = p, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.logger.InfoContext(ctx, "period certified",
			"period_id", result.ID,
			"certification_id", result.CertificationID,
			"user_id", result.UserID,
		)
		e.emit(ctx, events.Certified, a, &result.ID, nil)
	}
	return &result, nil
}

// Override replaces the editable dates of a period. Dates are validated
// before anything is written. Setting the certified date of an uncertified
// period counts as certification.
func (e *Engine) Override(ctx context.Context, periodID uuid.UUID, d certification.Dates, actor *int64) (*certification.Period, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	var (
		result    certification.Period
		certified bool
		a         certification.Assignment
	)

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		l, err := e.lock(ctx, tx, periodID)
		if err != nil {
			return err
		}
		if l.period.TimeRevoked != nil {
			return fmt.Errorf("%w: period %s is revoked", certification.ErrConflict, periodID)
		}

		p := l.period
		certified = p.TimeCertified == nil && d.TimeCertified != nil

		p.TimeWindowStart = d.TimeWindowStart
		p.TimeWindowDue = d.TimeWindowDue
		p.TimeWindowEnd = d.TimeWindowEnd
		p.TimeCertified = d.TimeCertified
		p.TimeFrom = d.TimeFrom
		p.TimeUntil = d.TimeUntil

		if err := tx.UpdatePeriod(ctx, &p); err != nil {
			return err
		}
		if _, err := store.RecordSnapshot(ctx, tx, certification.ReasonPeriodUpdated, l.assignment, actor, e.now()); err != nil {
			return err
		}

		a, result = l.assignment, p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if certified {
		e.emit(ctx, events.Certified, a, &result.ID, nil)
	}
	return &result, nil
}

// Revoke marks a period revoked and revokes its issued certificate.
// Revoking a revoked period returns it unchanged.
func (e *Engine) Revoke(ctx context.Context, periodID uuid.UUID, actor *int64) (*certification.Period, error) {
	var (
		result  certification.Period
		changed bool
		a       certification.Assignment
	)

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		l, err := e.lock(ctx, tx, periodID)
		if err != nil {
			return err
		}
		a, result = l.assignment, l.period
		if l.period.TimeRevoked != nil {
			return nil
		}

		p := l.period
		if p.CertificateIssueID != nil {
			if err := e.certs.Revoke(ctx, p); err != nil {
				return fmt.Errorf("revoke certificate %s: %w", *p.CertificateIssueID, err)
			}
		}

		now := e.now()
		p.TimeRevoked = &now
		p.Recertifiable = false

		if err := tx.UpdatePeriod(ctx, &p); err != nil {
			return err
		}
		if _, err := store.RecordSnapshot(ctx, tx, certification.ReasonPeriodRevoked, a, actor, now); err != nil {
			return err
		}

		result, changed = p, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.logger.InfoContext(ctx, "period revoked", "period_id", result.ID, "user_id", result.UserID)
		e.emit(ctx, events.Revoked, a, &result.ID, nil)
	}
	return &result, nil
}

// Delete removes a revoked period.
func (e *Engine) Delete(ctx context.Context, periodID uuid.UUID, actor *int64) error {
	return e.store.WithTx(ctx, func(tx store.Tx) error {
		l, err := e.lock(ctx, tx, periodID)
		if err != nil {
			return err
		}
		if l.period.TimeRevoked == nil {
			return fmt.Errorf("%w: %s", certification.ErrNotRevoked, periodID)
		}

		if err := tx.DeletePeriod(ctx, periodID); err != nil {
			return err
		}
		_, err = store.RecordSnapshot(ctx, tx, certification.ReasonPeriodDeleted, l.assignment, actor, e.now())
		return err
	})
}

// StopRecertification clears the recertifiable flag on every period of the
// assignment. It returns the number of periods changed.
func (e *Engine) StopRecertification(ctx context.Context, assignmentID uuid.UUID, actor *int64) (int, error) {
	changed := 0

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.LockAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}

		periods, err := tx.ListPeriods(ctx, store.PeriodFilter{
			CertificationID: &a.CertificationID,
			UserID:          &a.UserID,
		})
		if err != nil {
			return err
		}

		for _, p := range periods {
			if !p.Recertifiable {
				continue
			}
			p.Recertifiable = false
			if err := tx.UpdatePeriod(ctx, &p); err != nil {
				return err
			}
			changed++
		}

		if changed == 0 {
			return nil
		}
		_, err = store.RecordSnapshot(ctx, tx, certification.ReasonStoppedRecerts, *a, actor, e.now())
		return err
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// RemoveAll revokes issued certificates and deletes every period of a
// within tx. It is part of unassignment.
func (e *Engine) RemoveAll(ctx context.Context, tx store.Tx, a certification.Assignment) error {
	periods, err := tx.ListPeriods(ctx, store.PeriodFilter{
		CertificationID: &a.CertificationID,
		UserID:          &a.UserID,
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range periods {
		if p.CertificateIssueID != nil && p.TimeRevoked == nil {
			if err := e.certs.Revoke(ctx, p); err != nil {
				errs = append(errs, fmt.Errorf("revoke certificate of period %s: %w", p.ID, err))
				continue
			}
		}
		if err := tx.DeletePeriod(ctx, p.ID); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

// Stopped reports whether recertification has been stopped for a user,
// which is the case when none of their periods remains recertifiable.
func Stopped(periods []certification.Period) bool {
	for _, p := range periods {
		if p.Recertifiable {
			return false
		}
	}
	return true
}
