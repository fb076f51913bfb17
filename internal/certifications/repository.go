package certifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/external"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/pagination"
)

type repo struct {
	store      store.Store
	programs   external.Programs
	logger     *slog.Logger
	pagination pagination.Config
	now        func() time.Time
}

// New creates a certification administration System over the store.
// Archival changes are pushed to the program collaborator.
func New(
	s store.Store,
	programs external.Programs,
	logger *slog.Logger,
	pagination pagination.Config,
	now func() time.Time,
) System {
	if now == nil {
		now = time.Now
	}
	return &repo{
		store:      s,
		programs:   programs,
		logger:     logger.With("system", "certifications"),
		pagination: pagination,
		now:        now,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[certification.Certification], error) {
	page.Normalize(r.pagination)
	if filters.Search == nil {
		filters.Search = page.Search
	}

	all, err := r.store.ListCertifications(ctx, filters.store())
	if err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}

	from := min((page.Page-1)*page.PageSize, len(all))
	to := min(from+page.PageSize, len(all))

	result := pagination.NewPageResult(all[from:to], len(all), page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*certification.Certification, error) {
	return r.store.GetCertification(ctx, id)
}

func (r *repo) Create(ctx context.Context, cmd certification.CreateCommand) (*certification.Certification, error) {
	settings, err := certification.ParseSettings(cmd.Settings)
	if err != nil {
		return nil, err
	}

	now := r.now()
	c := certification.Certification{
		ID:          uuid.New(),
		ContextID:   cmd.ContextID,
		Fullname:    strings.TrimSpace(cmd.Fullname),
		IDNumber:    strings.TrimSpace(cmd.IDNumber),
		Description: cmd.Description,
		Public:      cmd.Public,
		CohortIDs:   cmd.CohortIDs,
		ProgramID1:  cmd.ProgramID1,
		TemplateID:  cmd.TemplateID,
		Settings:    settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	c.SyncSettings()

	if err := r.store.InsertCertification(ctx, &c); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "certification created", "id", c.ID, "idnumber", c.IDNumber)
	return &c, nil
}

// Update replaces the mutable fields. Nil settings keep the current
// settings; new settings apply to periods created from now on.
func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd certification.UpdateCommand) (*certification.Certification, error) {
	var result certification.Certification

	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.GetCertification(ctx, id)
		if err != nil {
			return err
		}

		if len(cmd.Settings) > 0 {
			settings, err := certification.ParseSettings(cmd.Settings)
			if err != nil {
				return err
			}
			c.Settings = settings
		}

		c.Fullname = strings.TrimSpace(cmd.Fullname)
		c.IDNumber = strings.TrimSpace(cmd.IDNumber)
		c.Description = cmd.Description
		c.Public = cmd.Public
		c.CohortIDs = cmd.CohortIDs
		c.ProgramID1 = cmd.ProgramID1
		c.TemplateID = cmd.TemplateID
		c.UpdatedAt = r.now()

		if err := validate(*c); err != nil {
			return err
		}
		c.SyncSettings()

		if err := tx.UpdateCertification(ctx, c); err != nil {
			return err
		}
		result = *c
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "certification updated", "id", result.ID)
	return &result, nil
}

func (r *repo) Archive(ctx context.Context, id uuid.UUID) (*certification.Certification, error) {
	return r.setArchived(ctx, id, true)
}

func (r *repo) Restore(ctx context.Context, id uuid.UUID) (*certification.Certification, error) {
	return r.setArchived(ctx, id, false)
}

func (r *repo) setArchived(ctx context.Context, id uuid.UUID, archived bool) (*certification.Certification, error) {
	var (
		result  certification.Certification
		changed bool
	)

	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.GetCertification(ctx, id)
		if err != nil {
			return err
		}
		result = *c
		if c.Archived == archived {
			return nil
		}

		c.Archived = archived
		c.UpdatedAt = r.now()
		if err := tx.UpdateCertification(ctx, c); err != nil {
			return err
		}
		result, changed = *c, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return &result, nil
	}

	r.logger.InfoContext(ctx, "certification archival changed", "id", id, "archived", archived)
	if err := r.programs.Sync(ctx, &id, nil); err != nil {
		r.logger.WarnContext(ctx, "program sync failed", "id", id, "error", err)
	}
	return &result, nil
}

// Delete removes a certification without assignments together with its
// sources, requests, periods, and notification configuration.
func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.store.DeleteCertification(ctx, id); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "certification deleted", "id", id)
	return nil
}

func (r *repo) Notifications(ctx context.Context, id uuid.UUID) ([]certification.NotificationConfig, error) {
	if _, err := r.store.GetCertification(ctx, id); err != nil {
		return nil, err
	}
	return r.store.ListNotificationConfigs(ctx, id)
}

func (r *repo) SaveNotification(ctx context.Context, id uuid.UUID, cmd NotificationCommand) (*certification.NotificationConfig, error) {
	if !cmd.Kind.Valid() {
		return nil, fmt.Errorf("%w: notification kind %q", certification.ErrValidation, cmd.Kind)
	}
	if cmd.Enabled && strings.TrimSpace(cmd.Subject) == "" {
		return nil, fmt.Errorf("%w: subject required for enabled notification", certification.ErrValidation)
	}

	cfg := certification.NotificationConfig{
		CertificationID: id,
		Kind:            cmd.Kind,
		Enabled:         cmd.Enabled,
		Subject:         cmd.Subject,
		Body:            cmd.Body,
		CreatedAt:       r.now(),
	}
	if err := r.store.SaveNotificationConfig(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(c certification.Certification) error {
	if c.Fullname == "" {
		return fmt.Errorf("%w: fullname required", certification.ErrValidation)
	}
	if c.IDNumber == "" {
		return fmt.Errorf("%w: idnumber required", certification.ErrValidation)
	}
	if c.ProgramID1 <= 0 {
		return fmt.Errorf("%w: program_id1 required", certification.ErrValidation)
	}
	for _, id := range c.CohortIDs {
		if id <= 0 {
			return fmt.Errorf("%w: cohort id %d", certification.ErrValidation, id)
		}
	}
	return nil
}
