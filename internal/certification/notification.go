package certification

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind identifies a lifecycle notification.
type NotificationKind string

const (
	NotifyAssignment      NotificationKind = "assignment"
	NotifyUnassignment    NotificationKind = "unassignment"
	NotifyValid           NotificationKind = "valid"
	NotifyRecertification NotificationKind = "recertification"
)

// NotificationKinds lists the kinds in trigger order.
var NotificationKinds = []NotificationKind{NotifyAssignment, NotifyUnassignment, NotifyValid, NotifyRecertification}

// Valid reports whether k is a known notification kind.
func (k NotificationKind) Valid() bool {
	switch k {
	case NotifyAssignment, NotifyUnassignment, NotifyValid, NotifyRecertification:
		return true
	}
	return false
}

// PerPeriod reports whether sends of this kind are tracked per period.
func (k NotificationKind) PerPeriod() bool {
	return k == NotifyValid || k == NotifyRecertification
}

// NotificationConfig enables a notification kind for a certification.
// Subject and Body may contain {placeholder} tokens.
type NotificationConfig struct {
	CertificationID uuid.UUID        `json:"certification_id"`
	Kind            NotificationKind `json:"kind"`
	Enabled         bool             `json:"enabled"`
	Subject         string           `json:"subject"`
	Body            string           `json:"body"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NotificationSend records a delivered notification.
type NotificationSend struct {
	Kind         NotificationKind `json:"kind"`
	UserID       int64            `json:"user_id"`
	AssignmentID uuid.UUID        `json:"assignment_id"`
	PeriodID     *uuid.UUID       `json:"period_id"`
	TimeSent     time.Time        `json:"time_sent"`
}

// NotificationCandidate is an assignment, and for per-period kinds the
// period, for which a notification is due.
type NotificationCandidate struct {
	Certification Certification
	Source        Source
	Assignment    Assignment
	Period        *Period
	Config        NotificationConfig
}

// NotificationDue reports whether the entity state of a candidate makes a
// notification of kind due at now. Configuration and prior sends are
// checked by the caller.
func NotificationDue(kind NotificationKind, c Certification, a Assignment, p *Period, now time.Time) bool {
	if c.Archived {
		return false
	}

	switch kind {
	case NotifyAssignment:
		return !a.Archived
	case NotifyUnassignment:
		return a.Archived
	case NotifyValid:
		return !a.Archived && p != nil && p.ValidAt(now)
	case NotifyRecertification:
		if a.Archived || p == nil || p.First {
			return false
		}
		if p.TimeCertified != nil || p.TimeRevoked != nil || now.Before(p.TimeWindowStart) {
			return false
		}
		return p.TimeWindowEnd == nil || !now.After(*p.TimeWindowEnd)
	}
	return false
}
