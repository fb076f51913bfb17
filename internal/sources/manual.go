package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/assignments"
	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
)

// Manual assigns users picked by an administrator.
type Manual struct {
	base
}

func (m *Manual) Type() certification.SourceType {
	return certification.SourceManual
}

func (m *Manual) CanUserRequest(context.Context, certification.Certification, certification.Source, int64) (bool, Reason, error) {
	return false, ReasonNotSelfService, nil
}

// FixAssignments has nothing to reconcile for manual assignments.
func (m *Manual) FixAssignments(context.Context, store.Scope) (bool, error) {
	return false, nil
}

// AssignCommand carries a manual assignment of several users.
type AssignCommand struct {
	UserIDs   []int64                       `json:"user_ids"`
	Overrides certification.WindowOverrides `json:"overrides"`
	ActorID   *int64                        `json:"actor_id,omitempty"`
}

// AssignUsers assigns each user not yet assigned, one transaction per user.
// Already assigned users are skipped. It returns the assignments created;
// failures of individual users are joined into the error.
func (m *Manual) AssignUsers(ctx context.Context, sourceID uuid.UUID, cmd AssignCommand) ([]certification.Assignment, error) {
	src, err := m.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if src.Type != certification.SourceManual {
		return nil, fmt.Errorf("%w: source %s is %s, not manual", certification.ErrValidation, src.ID, src.Type)
	}

	created := make([]certification.Assignment, 0, len(cmd.UserIDs))
	var errs []error

	for _, userID := range cmd.UserIDs {
		a, ok, err := m.manager.Assign(ctx, assignments.AssignCommand{
			CertificationID: src.CertificationID,
			SourceID:        src.ID,
			UserID:          userID,
			Overrides:       cmd.Overrides,
			ActorID:         cmd.ActorID,
		})
		if err != nil {
			if errors.Is(err, certification.ErrValidation) || errors.Is(err, certification.ErrArchived) {
				return created, err
			}
			errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
			continue
		}
		if ok {
			created = append(created, *a)
		}
	}

	return created, errors.Join(errs...)
}
