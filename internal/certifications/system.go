// Package certifications administers certifications and their notification
// configuration.
package certifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/pkg/pagination"
)

// System defines the public contract for certification administration.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[certification.Certification], error)

	Find(ctx context.Context, id uuid.UUID) (*certification.Certification, error)
	Create(ctx context.Context, cmd certification.CreateCommand) (*certification.Certification, error)
	Update(ctx context.Context, id uuid.UUID, cmd certification.UpdateCommand) (*certification.Certification, error)
	Archive(ctx context.Context, id uuid.UUID) (*certification.Certification, error)
	Restore(ctx context.Context, id uuid.UUID) (*certification.Certification, error)
	Delete(ctx context.Context, id uuid.UUID) error

	Notifications(ctx context.Context, id uuid.UUID) ([]certification.NotificationConfig, error)
	SaveNotification(ctx context.Context, id uuid.UUID, cmd NotificationCommand) (*certification.NotificationConfig, error)
}

// NotificationCommand enables, disables, or edits one notification kind.
type NotificationCommand struct {
	Kind    certification.NotificationKind `json:"kind"`
	Enabled bool                           `json:"enabled"`
	Subject string                         `json:"subject"`
	Body    string                         `json:"body"`
}
