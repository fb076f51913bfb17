package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/assignments"
	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
)

// SelfSettings configures self assignment. Sign up is allowed unless
// AllowSignup is false; MaxUsers nil means unlimited.
type SelfSettings struct {
	MaxUsers    *int  `json:"maxusers"`
	AllowSignup *bool `json:"allowsignup"`
}

func parseSelfSettings(raw json.RawMessage) (SelfSettings, error) {
	var s SelfSettings
	if err := decodeSettings(raw, &s); err != nil {
		return s, err
	}
	if s.MaxUsers != nil && *s.MaxUsers < 0 {
		return s, fmt.Errorf("%w: maxusers must not be negative", certification.ErrValidation)
	}
	return s, nil
}

func (s SelfSettings) signupAllowed() bool {
	return s.AllowSignup == nil || *s.AllowSignup
}

func (s SelfSettings) full(count int) bool {
	return s.MaxUsers != nil && count >= *s.MaxUsers
}

// SelfAssignment lets users sign up themselves.
type SelfAssignment struct {
	base
}

func (s *SelfAssignment) Type() certification.SourceType {
	return certification.SourceSelfAssignment
}

func (s *SelfAssignment) CanUserRequest(ctx context.Context, c certification.Certification, src certification.Source, userID int64) (bool, Reason, error) {
	if ok, reason, err := s.check(ctx, c, userID); !ok || err != nil {
		return ok, reason, err
	}

	settings, err := parseSelfSettings(src.Settings)
	if err != nil {
		return false, ReasonNone, err
	}
	if !settings.signupAllowed() {
		return false, ReasonSignupDisabled, nil
	}

	if settings.MaxUsers != nil {
		count, err := s.store.CountAssignments(ctx, store.AssignmentFilter{SourceID: &src.ID})
		if err != nil {
			return false, ReasonNone, err
		}
		if settings.full(count) {
			return false, ReasonMaxUsers, nil
		}
	}

	return true, ReasonNone, nil
}

// FixAssignments has nothing to reconcile for self assignment.
func (s *SelfAssignment) FixAssignments(context.Context, store.Scope) (bool, error) {
	return false, nil
}

// Signup assigns the user through the self assignment source. An existing
// assignment is returned unchanged. The user limit is rechecked under the
// source lock.
func (s *SelfAssignment) Signup(ctx context.Context, certificationID uuid.UUID, userID int64) (*certification.Assignment, error) {
	if a, err := s.existing(ctx, certificationID, userID); a != nil || err != nil {
		return a, err
	}

	c, src, err := s.load(ctx, certificationID, certification.SourceSelfAssignment)
	if err != nil {
		return nil, err
	}

	ok, reason, err := s.CanUserRequest(ctx, *c, *src, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notAllowed(reason)
	}

	a, _, err := s.manager.Assign(ctx, assignments.AssignCommand{
		CertificationID: c.ID,
		SourceID:        src.ID,
		UserID:          userID,
		ActorID:         &userID,
	}, func(ctx context.Context, tx store.Tx, _ *certification.Assignment) error {
		locked, err := tx.LockSource(ctx, src.ID)
		if err != nil {
			return err
		}
		settings, err := parseSelfSettings(locked.Settings)
		if err != nil {
			return err
		}
		if settings.MaxUsers == nil {
			return nil
		}
		count, err := tx.CountAssignments(ctx, store.AssignmentFilter{SourceID: &src.ID})
		if err != nil {
			return err
		}
		if settings.full(count) {
			return notAllowed(ReasonMaxUsers)
		}
		return nil
	})
	return a, err
}
