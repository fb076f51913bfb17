package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/certify/internal/assignments"
	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
)

// CohortSettings lists the cohorts whose members are assigned.
type CohortSettings struct {
	CohortIDs []int64 `json:"cohortids"`
}

func parseCohortSettings(raw json.RawMessage) (CohortSettings, error) {
	var s CohortSettings
	if err := decodeSettings(raw, &s); err != nil {
		return s, err
	}
	for _, id := range s.CohortIDs {
		if id <= 0 {
			return s, fmt.Errorf("%w: cohort id %d", certification.ErrValidation, id)
		}
	}
	return s, nil
}

// Cohort keeps assignments in line with cohort membership. It only ever
// touches assignments it created itself.
type Cohort struct {
	base
}

func (c *Cohort) Type() certification.SourceType {
	return certification.SourceCohort
}

func (c *Cohort) CanUserRequest(context.Context, certification.Certification, certification.Source, int64) (bool, Reason, error) {
	return false, ReasonNotSelfService, nil
}

// FixAssignments assigns cohort members lacking an assignment, restores
// archived cohort assignments of members, and archives cohort assignments
// of users who left every cohort. Failures of single users are logged and
// skipped.
func (c *Cohort) FixAssignments(ctx context.Context, scope store.Scope) (bool, error) {
	t := certification.SourceCohort
	srcs, err := c.store.ListSources(ctx, store.SourceFilter{
		CertificationID: scope.CertificationID,
		Type:            &t,
	})
	if err != nil {
		return false, err
	}

	changed := false
	for _, src := range srcs {
		ok, err := c.fixSource(ctx, src, scope.UserID)
		if err != nil {
			return changed, err
		}
		changed = changed || ok
	}
	return changed, nil
}

func (c *Cohort) fixSource(ctx context.Context, src certification.Source, userID *int64) (bool, error) {
	cert, err := c.store.GetCertification(ctx, src.CertificationID)
	if err != nil {
		return false, err
	}
	if cert.Archived {
		return false, nil
	}

	settings, err := parseCohortSettings(src.Settings)
	if err != nil {
		return false, err
	}

	members, err := c.store.CohortMembers(ctx, settings.CohortIDs, userID)
	if err != nil {
		return false, err
	}

	existing, err := c.store.ListAssignments(ctx, store.AssignmentFilter{
		CertificationID: &cert.ID,
		UserID:          userID,
	})
	if err != nil {
		return false, err
	}

	byUser := make(map[int64]certification.Assignment, len(existing))
	for _, a := range existing {
		byUser[a.UserID] = a
	}

	changed := false
	isMember := make(map[int64]bool, len(members))

	for _, user := range members {
		isMember[user] = true
		log := c.logger.With("certification_id", cert.ID, "user_id", user)

		a, found := byUser[user]
		switch {
		case found && a.SourceID == src.ID && a.Archived:
			if _, err := c.manager.Restore(ctx, a.ID, nil); err != nil {
				log.WarnContext(ctx, "restore cohort assignment failed", "error", err)
				continue
			}
			changed = true

		case found:
			// assigned through this or another source

		default:
			ok, err := c.store.IsRealUser(ctx, user)
			if err != nil || !ok {
				if err != nil {
					log.WarnContext(ctx, "check cohort member failed", "error", err)
				}
				continue
			}
			_, created, err := c.manager.Assign(ctx, assignments.AssignCommand{
				CertificationID: cert.ID,
				SourceID:        src.ID,
				UserID:          user,
			})
			if err != nil {
				log.WarnContext(ctx, "assign cohort member failed", "error", err)
				continue
			}
			changed = changed || created
		}
	}

	for _, a := range existing {
		if a.SourceID != src.ID || a.Archived || isMember[a.UserID] {
			continue
		}
		if _, err := c.manager.Archive(ctx, a.ID, nil); err != nil {
			c.logger.WarnContext(ctx, "archive cohort assignment failed",
				"certification_id", cert.ID,
				"user_id", a.UserID,
				"error", err,
			)
			continue
		}
		changed = true
	}

	return changed, nil
}
