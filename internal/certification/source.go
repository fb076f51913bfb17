package certification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SourceType identifies an assignment source variant. Values are persisted.
type SourceType string

const (
	SourceManual         SourceType = "manual"
	SourceCohort         SourceType = "cohort"
	SourceSelfAssignment SourceType = "selfassignment"
	SourceApproval       SourceType = "approval"
)

// SourceTypes lists the source variants in reconciliation order.
var SourceTypes = []SourceType{SourceManual, SourceCohort, SourceSelfAssignment, SourceApproval}

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourceManual, SourceCohort, SourceSelfAssignment, SourceApproval:
		return true
	}
	return false
}

// Source is an enabled assignment origin of a certification. Settings are
// decoded by the source variant of Type.
type Source struct {
	ID              uuid.UUID       `json:"id"`
	CertificationID uuid.UUID       `json:"certification_id"`
	Type            SourceType      `json:"type"`
	Settings        json.RawMessage `json:"settings"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Request is a pending or rejected request for assignment through an
// approval source.
type Request struct {
	ID            uuid.UUID       `json:"id"`
	SourceID      uuid.UUID       `json:"source_id"`
	UserID        int64           `json:"user_id"`
	TimeRequested time.Time       `json:"time_requested"`
	TimeRejected  *time.Time      `json:"time_rejected"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// Rejected reports whether the request was rejected.
func (r Request) Rejected() bool {
	return r.TimeRejected != nil
}
