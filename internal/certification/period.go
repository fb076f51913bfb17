package certification

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Period is one certification or recertification cycle of a user.
type Period struct {
	ID                 uuid.UUID       `json:"id"`
	CertificationID    uuid.UUID       `json:"certification_id"`
	UserID             int64           `json:"user_id"`
	ProgramID          int64           `json:"program_id"`
	TimeWindowStart    time.Time       `json:"time_window_start"`
	TimeWindowDue      *time.Time      `json:"time_window_due"`
	TimeWindowEnd      *time.Time      `json:"time_window_end"`
	TimeCertified      *time.Time      `json:"time_certified"`
	TimeFrom           *time.Time      `json:"time_from"`
	TimeUntil          *time.Time      `json:"time_until"`
	TimeRevoked        *time.Time      `json:"time_revoked"`
	First              bool            `json:"first"`
	Recertifiable      bool            `json:"recertifiable"`
	CertificateIssueID *string         `json:"certificate_issue_id"`
	Evidence           json.RawMessage `json:"evidence,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// PeriodState is the derived state of a period.
type PeriodState string

const (
	StateFuture    PeriodState = "future"
	StatePending   PeriodState = "pending"
	StateOverdue   PeriodState = "overdue"
	StateFailed    PeriodState = "failed"
	StateCertified PeriodState = "certified"
	StateValid     PeriodState = "valid"
	StateExpired   PeriodState = "expired"
	StateRevoked   PeriodState = "revoked"
	StateArchived  PeriodState = "archived"
)

// State derives the period state at now. Revocation overrides everything,
// archival of the assignment or certification overrides the date states.
func (p Period) State(archived bool, now time.Time) PeriodState {
	if p.TimeRevoked != nil {
		return StateRevoked
	}
	if archived {
		return StateArchived
	}

	if p.TimeCertified != nil {
		switch {
		case p.TimeFrom != nil && now.Before(*p.TimeFrom):
			return StateCertified
		case p.TimeUntil != nil && !now.Before(*p.TimeUntil):
			return StateExpired
		}
		return StateValid
	}

	switch {
	case now.Before(p.TimeWindowStart):
		return StateFuture
	case p.TimeWindowEnd != nil && now.After(*p.TimeWindowEnd):
		return StateFailed
	case p.TimeWindowDue != nil && now.After(*p.TimeWindowDue):
		return StateOverdue
	}
	return StatePending
}

// ValidAt reports whether the period counts as a valid certification at now.
func (p Period) ValidAt(now time.Time) bool {
	if p.TimeCertified == nil || p.TimeRevoked != nil {
		return false
	}
	if p.TimeFrom != nil && now.Before(*p.TimeFrom) {
		return false
	}
	return p.TimeUntil == nil || now.Before(*p.TimeUntil)
}

// Window is the time range in which a user is expected to complete a program.
type Window struct {
	Start time.Time  `json:"time_window_start"`
	Due   *time.Time `json:"time_window_due"`
	End   *time.Time `json:"time_window_end"`
}

// Validate enforces due > start, end > start and end >= due.
func (w Window) Validate() error {
	if w.Start.IsZero() {
		return fmt.Errorf("%w: window start required", ErrValidation)
	}
	if w.Due != nil && !w.Due.After(w.Start) {
		return fmt.Errorf("%w: window due must be after window start", ErrValidation)
	}
	if w.End != nil && !w.End.After(w.Start) {
		return fmt.Errorf("%w: window end must be after window start", ErrValidation)
	}
	if w.Due != nil && w.End != nil && w.End.Before(*w.Due) {
		return fmt.Errorf("%w: window end must not precede window due", ErrValidation)
	}
	return nil
}

// WindowOverrides replaces computed window dates on first period creation.
// Nil fields keep the computed value.
type WindowOverrides struct {
	Start *time.Time `json:"time_window_start,omitempty"`
	Due   *time.Time `json:"time_window_due,omitempty"`
	End   *time.Time `json:"time_window_end,omitempty"`
}

// Dates is a full replacement of the editable dates of a period.
type Dates struct {
	TimeWindowStart time.Time  `json:"time_window_start"`
	TimeWindowDue   *time.Time `json:"time_window_due"`
	TimeWindowEnd   *time.Time `json:"time_window_end"`
	TimeCertified   *time.Time `json:"time_certified"`
	TimeFrom        *time.Time `json:"time_from"`
	TimeUntil       *time.Time `json:"time_until"`
}

// Validate checks window ordering and the consistency of the certified dates.
func (d Dates) Validate() error {
	w := Window{Start: d.TimeWindowStart, Due: d.TimeWindowDue, End: d.TimeWindowEnd}
	if err := w.Validate(); err != nil {
		return err
	}

	if d.TimeCertified == nil {
		if d.TimeFrom != nil || d.TimeUntil != nil {
			return fmt.Errorf("%w: validity dates require time certified", ErrValidation)
		}
		return nil
	}

	if d.TimeFrom == nil {
		return fmt.Errorf("%w: time from required when certified", ErrValidation)
	}
	if d.TimeUntil != nil && !d.TimeFrom.Before(*d.TimeUntil) {
		return fmt.Errorf("%w: time from must be before time until", ErrValidation)
	}
	return nil
}
