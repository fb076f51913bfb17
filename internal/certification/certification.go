// Package certification defines the entities of the certification lifecycle,
// their typed policy settings, and the pure date and state computations
// shared by the assignment, period, source, and notification systems.
package certification

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Certification is a named policy container users are assigned to.
type Certification struct {
	ID          uuid.UUID `json:"id"`
	ContextID   int64     `json:"context_id"`
	Fullname    string    `json:"fullname"`
	IDNumber    string    `json:"idnumber"`
	Description string    `json:"description"`
	Public      bool      `json:"public"`
	CohortIDs   []int64   `json:"cohort_ids"`
	Archived    bool      `json:"archived"`
	ProgramID1  int64     `json:"program_id1"`
	ProgramID2  *int64    `json:"program_id2"`
	TemplateID  *int64    `json:"template_id"`
	Recertify   *int64    `json:"recertify"`
	Settings    Settings  `json:"settings"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SyncSettings copies the settings fields mirrored as columns.
func (c *Certification) SyncSettings() {
	c.ProgramID2 = c.Settings.ProgramID2
	c.Recertify = c.Settings.Recertify
}

// VisibleTo reports whether a user belonging to the given cohorts may see
// the certification for self-service.
func (c *Certification) VisibleTo(userCohorts []int64) bool {
	if c.Public {
		return true
	}
	for _, id := range userCohorts {
		if slices.Contains(c.CohortIDs, id) {
			return true
		}
	}
	return false
}

// CreateCommand carries the data needed to create a certification.
type CreateCommand struct {
	ContextID   int64           `json:"context_id"`
	Fullname    string          `json:"fullname"`
	IDNumber    string          `json:"idnumber"`
	Description string          `json:"description"`
	Public      bool            `json:"public"`
	CohortIDs   []int64         `json:"cohort_ids"`
	ProgramID1  int64           `json:"program_id1"`
	TemplateID  *int64          `json:"template_id"`
	Settings    json.RawMessage `json:"settings"`
}

// UpdateCommand carries the mutable fields of a certification.
type UpdateCommand struct {
	Fullname    string          `json:"fullname"`
	IDNumber    string          `json:"idnumber"`
	Description string          `json:"description"`
	Public      bool            `json:"public"`
	CohortIDs   []int64         `json:"cohort_ids"`
	ProgramID1  int64           `json:"program_id1"`
	TemplateID  *int64          `json:"template_id"`
	Settings    json.RawMessage `json:"settings"`
}
