package periods

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/events"
	"github.com/JaimeStill/certify/internal/store"
)

// Result summarises a recertification pass.
type Result struct {
	Candidates int `json:"candidates"`
	Created    int `json:"created"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// ProcessRecertifications creates successor periods for every due period in
// scope. Each candidate is handled in its own transaction and re-checked
// under lock, so a repeated pass creates nothing new. Failures are logged
// and counted without stopping the pass.
func (e *Engine) ProcessRecertifications(ctx context.Context, scope store.Scope) (Result, error) {
	var r Result

	candidates, err := e.store.RecertificationCandidates(ctx, scope, e.now())
	if err != nil {
		return r, fmt.Errorf("recertification candidates: %w", err)
	}
	r.Candidates = len(candidates)

	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			return r, err
		}

		next, err := e.recertify(ctx, p)
		switch {
		case err != nil:
			r.Failed++
			e.logger.WarnContext(ctx, "recertification failed",
				"period_id", p.ID,
				"certification_id", p.CertificationID,
				"user_id", p.UserID,
				"error", err,
			)
		case next == nil:
			r.Skipped++
		default:
			r.Created++
		}
	}

	if r.Candidates > 0 {
		e.logger.InfoContext(ctx, "recertifications processed",
			"candidates", r.Candidates,
			"created", r.Created,
			"skipped", r.Skipped,
			"failed", r.Failed,
		)
	}
	return r, nil
}

// recertify creates the successor of prev when it is still due. It returns
// nil when another pass got there first.
func (e *Engine) recertify(ctx context.Context, prev certification.Period) (*certification.Period, error) {
	var (
		next *certification.Period
		a    certification.Assignment
	)

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		l, err := e.lock(ctx, tx, prev.ID)
		if err != nil {
			return err
		}

		later, err := tx.HasLaterPeriod(ctx, l.period)
		if err != nil {
			return err
		}

		now := e.now()
		if !certification.RecertificationDue(l.certification, l.assignment, l.period, later, now) {
			return nil
		}

		settings := l.certification.Settings
		w, err := settings.RecertificationWindow(l.period, e.loc)
		if err != nil {
			return err
		}

		p := certification.Period{
			ID:              uuid.New(),
			CertificationID: l.certification.ID,
			UserID:          l.period.UserID,
			ProgramID:       settings.RecertificationProgram(l.certification.ProgramID1),
			TimeWindowStart: w.Start,
			TimeWindowDue:   w.Due,
			TimeWindowEnd:   w.End,
			Recertifiable:   settings.RecertifyNext(),
			CreatedAt:       now,
		}

		if err := e.reset(ctx, p, settings.ResetType2); err != nil {
			return err
		}
		if err := tx.InsertPeriod(ctx, &p); err != nil {
			return err
		}

		old := l.period
		old.Recertifiable = false
		if err := tx.UpdatePeriod(ctx, &old); err != nil {
			return err
		}

		if _, err := store.RecordSnapshot(ctx, tx, certification.ReasonRecertified, l.assignment, nil, now); err != nil {
			return err
		}

		next, a = &p, l.assignment
		return nil
	})
	if err != nil {
		return nil, err
	}

	if next != nil {
		e.emit(ctx, events.Recertified, a, &next.ID, nil)
	}
	return next, nil
}
