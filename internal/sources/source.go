// Package sources implements the assignment source variants: manual, cohort,
// self assignment, and approval. A Registry dispatches by the type persisted
// on each source row.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/assignments"
	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
)

// Reason explains why a user may not request assignment.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNotSelfService  Reason = "source does not accept user requests"
	ReasonArchived        Reason = "certification is archived"
	ReasonNotRealUser     Reason = "user cannot be assigned"
	ReasonNotVisible      Reason = "certification is not visible to user"
	ReasonAssigned        Reason = "user is already assigned"
	ReasonSignupDisabled  Reason = "sign up is disabled"
	ReasonMaxUsers        Reason = "maximum number of users reached"
	ReasonRequestDisabled Reason = "requests are disabled"
	ReasonRequested       Reason = "request is pending"
	ReasonRejected        Reason = "request was rejected"
)

// Source is the contract shared by every source variant.
type Source interface {
	Type() certification.SourceType
	// CanUserRequest reports whether userID may assign themselves through
	// src, with the reason when not.
	CanUserRequest(ctx context.Context, c certification.Certification, src certification.Source, userID int64) (bool, Reason, error)
	// FixAssignments reconciles assignments of this source type within
	// scope and reports whether anything changed. A second call without an
	// external change reports false.
	FixAssignments(ctx context.Context, scope store.Scope) (bool, error)
}

// base holds the dependencies and checks shared by the variants.
type base struct {
	store   store.Store
	manager *assignments.Manager
	logger  *slog.Logger
}

// check applies the eligibility rules common to self-service variants.
func (b *base) check(ctx context.Context, c certification.Certification, userID int64) (bool, Reason, error) {
	if c.Archived {
		return false, ReasonArchived, nil
	}

	isReal, err := b.store.IsRealUser(ctx, userID)
	if err != nil {
		return false, ReasonNone, err
	}
	if !isReal {
		return false, ReasonNotRealUser, nil
	}

	if !c.Public {
		member, err := b.store.IsCohortMember(ctx, userID, c.CohortIDs)
		if err != nil {
			return false, ReasonNone, err
		}
		if !member {
			return false, ReasonNotVisible, nil
		}
	}

	_, err = b.store.FindAssignment(ctx, c.ID, userID)
	switch {
	case err == nil:
		return false, ReasonAssigned, nil
	case !errors.Is(err, certification.ErrNotFound):
		return false, ReasonNone, err
	}

	return true, ReasonNone, nil
}

// load returns the certification and the source of type t.
func (b *base) load(ctx context.Context, certificationID uuid.UUID, t certification.SourceType) (*certification.Certification, *certification.Source, error) {
	c, err := b.store.GetCertification(ctx, certificationID)
	if err != nil {
		return nil, nil, err
	}
	src, err := b.store.FindSource(ctx, certificationID, t)
	if err != nil {
		return nil, nil, fmt.Errorf("%s source of %s: %w", t, certificationID, err)
	}
	return c, src, nil
}

// existing returns the user's assignment, or nil when unassigned.
func (b *base) existing(ctx context.Context, certificationID uuid.UUID, userID int64) (*certification.Assignment, error) {
	a, err := b.store.FindAssignment(ctx, certificationID, userID)
	if errors.Is(err, certification.ErrNotFound) {
		return nil, nil
	}
	return a, err
}

func decodeSettings(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: source settings: %v", certification.ErrValidation, err)
	}
	return nil
}

func notAllowed(r Reason) error {
	return fmt.Errorf("%w: %s", certification.ErrNotAllowed, r)
}
