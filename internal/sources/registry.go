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

// Registry holds one instance of every source variant.
type Registry struct {
	Manual   *Manual
	Cohort   *Cohort
	Self     *SelfAssignment
	Approval *Approval

	store  store.Store
	logger *slog.Logger
	byType map[certification.SourceType]Source
}

// NewRegistry creates the source variants over a shared store and manager.
func NewRegistry(s store.Store, m *assignments.Manager, logger *slog.Logger) *Registry {
	logger = logger.With("system", "sources")
	b := base{store: s, manager: m, logger: logger}

	r := &Registry{
		Manual:   &Manual{base: b},
		Cohort:   &Cohort{base: b},
		Self:     &SelfAssignment{base: b},
		Approval: &Approval{base: b},
		store:    s,
		logger:   logger,
	}
	r.byType = map[certification.SourceType]Source{
		certification.SourceManual:         r.Manual,
		certification.SourceCohort:         r.Cohort,
		certification.SourceSelfAssignment: r.Self,
		certification.SourceApproval:       r.Approval,
	}
	return r
}

// Get returns the variant of type t.
func (r *Registry) Get(t certification.SourceType) (Source, error) {
	s, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("%w: unknown source type %q", certification.ErrValidation, t)
	}
	return s, nil
}

// CanUserRequest dispatches to the variant of the stored source.
func (r *Registry) CanUserRequest(ctx context.Context, sourceID uuid.UUID, userID int64) (bool, Reason, error) {
	src, err := r.store.GetSource(ctx, sourceID)
	if err != nil {
		return false, ReasonNone, err
	}
	c, err := r.store.GetCertification(ctx, src.CertificationID)
	if err != nil {
		return false, ReasonNone, err
	}
	v, err := r.Get(src.Type)
	if err != nil {
		return false, ReasonNone, err
	}
	return v.CanUserRequest(ctx, *c, *src, userID)
}

// FixAll reconciles every source type in order. A failing type does not
// stop the others.
func (r *Registry) FixAll(ctx context.Context, scope store.Scope) (bool, error) {
	changed := false
	var errs []error

	for _, t := range certification.SourceTypes {
		c, err := r.byType[t].FixAssignments(ctx, scope)
		if err != nil {
			r.logger.ErrorContext(ctx, "fix assignments failed", "source", t, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
		}
		changed = changed || c
	}
	return changed, errors.Join(errs...)
}

// Enable creates the source of type t for a certification. Settings are
// validated by the variant.
func (r *Registry) Enable(ctx context.Context, certificationID uuid.UUID, t certification.SourceType, settings json.RawMessage) (*certification.Source, error) {
	if err := validateSettings(t, settings); err != nil {
		return nil, err
	}
	if _, err := r.store.GetCertification(ctx, certificationID); err != nil {
		return nil, err
	}

	src := certification.Source{
		ID:              uuid.New(),
		CertificationID: certificationID,
		Type:            t,
		Settings:        settings,
		CreatedAt:       r.Manual.manager.Now(),
	}
	if err := r.store.InsertSource(ctx, &src); err != nil {
		return nil, err
	}
	return &src, nil
}

// Configure replaces the settings of a source.
func (r *Registry) Configure(ctx context.Context, sourceID uuid.UUID, settings json.RawMessage) (*certification.Source, error) {
	var result *certification.Source

	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		src, err := tx.LockSource(ctx, sourceID)
		if err != nil {
			return err
		}
		if err := validateSettings(src.Type, settings); err != nil {
			return err
		}
		src.Settings = settings
		if err := tx.UpdateSource(ctx, src); err != nil {
			return err
		}
		result = src
		return nil
	})
	return result, err
}

// Disable deletes a source no assignment references.
func (r *Registry) Disable(ctx context.Context, sourceID uuid.UUID) error {
	return r.store.DeleteSource(ctx, sourceID)
}

func validateSettings(t certification.SourceType, raw json.RawMessage) error {
	switch t {
	case certification.SourceManual:
		return nil
	case certification.SourceCohort:
		_, err := parseCohortSettings(raw)
		return err
	case certification.SourceSelfAssignment:
		_, err := parseSelfSettings(raw)
		return err
	case certification.SourceApproval:
		_, err := parseApprovalSettings(raw)
		return err
	}
	return fmt.Errorf("%w: unknown source type %q", certification.ErrValidation, t)
}
