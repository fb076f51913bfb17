package certification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Assignment enrols a user into a certification. At most one exists per
// certification and user.
type Assignment struct {
	ID                 uuid.UUID       `json:"id"`
	CertificationID    uuid.UUID       `json:"certification_id"`
	UserID             int64           `json:"user_id"`
	SourceID           uuid.UUID       `json:"source_id"`
	SourceData         json.RawMessage `json:"source_data,omitempty"`
	Archived           bool            `json:"archived"`
	TimeCertifiedUntil *time.Time      `json:"time_certified_until"`
	Evidence           json.RawMessage `json:"evidence,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Status is the derived certification status of an assignment.
type Status string

const (
	StatusArchived     Status = "archived"
	StatusNotCertified Status = "notcertified"
	StatusTemporary    Status = "temporary"
	StatusValid        Status = "valid"
	StatusExpired      Status = "expired"
)

// AssignmentStatus derives the status of an assignment from its periods at now.
//
// Archival of the certification or assignment takes precedence. A valid
// non-revoked period yields valid. A temporary override is honoured while it
// has not lapsed. A lapsed override or an earlier certified period yields
// expired, otherwise the user is not certified.
func AssignmentStatus(certArchived bool, a Assignment, periods []Period, now time.Time) Status {
	if certArchived || a.Archived {
		return StatusArchived
	}

	certified := false
	for _, p := range periods {
		if p.TimeRevoked != nil || p.TimeCertified == nil {
			continue
		}
		if p.ValidAt(now) {
			return StatusValid
		}
		certified = true
	}

	if a.TimeCertifiedUntil != nil {
		if now.Before(*a.TimeCertifiedUntil) {
			return StatusTemporary
		}
		return StatusExpired
	}

	if certified {
		return StatusExpired
	}
	return StatusNotCertified
}

// RecertificationDue reports whether p should spawn a successor period at now.
// The lead time comes from the certification's current settings. hasLater
// reports whether the user already has a period starting after p.
func RecertificationDue(c Certification, a Assignment, p Period, hasLater bool, now time.Time) bool {
	if c.Archived || a.Archived || hasLater || !p.Recertifiable {
		return false
	}
	if p.TimeCertified == nil || p.TimeRevoked != nil || p.TimeUntil == nil {
		return false
	}
	if c.Settings.Recertify == nil {
		return false
	}

	lead := time.Duration(*c.Settings.Recertify) * time.Second
	return !now.Before(p.TimeUntil.Add(-lead))
}
