package certification

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/pkg/ids"
)

// Snapshot reasons.
const (
	ReasonAssigned       = "assigned"
	ReasonUnassigned     = "unassigned"
	ReasonArchived       = "archived"
	ReasonRestored       = "restored"
	ReasonOverride       = "override"
	ReasonCertified      = "certified"
	ReasonRecertified    = "recertified"
	ReasonPeriodUpdated  = "period_updated"
	ReasonPeriodRevoked  = "period_revoked"
	ReasonPeriodDeleted  = "period_deleted"
	ReasonStoppedRecerts = "recertification_stopped"
)

// Snapshot is an immutable audit record of an assignment and its periods.
type Snapshot struct {
	ID              string          `json:"id"`
	AssignmentID    uuid.UUID       `json:"assignment_id"`
	CertificationID uuid.UUID       `json:"certification_id"`
	UserID          int64           `json:"user_id"`
	Reason          string          `json:"reason"`
	ActorID         *int64          `json:"actor_id"`
	Assignment      json.RawMessage `json:"assignment"`
	Periods         json.RawMessage `json:"periods"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewSnapshot captures a and periods at now.
func NewSnapshot(reason string, a Assignment, periods []Period, actor *int64, now time.Time) (Snapshot, error) {
	if periods == nil {
		periods = []Period{}
	}

	ab, err := json.Marshal(a)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal assignment: %w", err)
	}
	pb, err := json.Marshal(periods)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal periods: %w", err)
	}

	return Snapshot{
		ID:              ids.At(now),
		AssignmentID:    a.ID,
		CertificationID: a.CertificationID,
		UserID:          a.UserID,
		Reason:          reason,
		ActorID:         actor,
		Assignment:      ab,
		Periods:         pb,
		CreatedAt:       now,
	}, nil
}
