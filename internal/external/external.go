// Package external declares the collaborators the certification lifecycle
// calls out to: program allocation, certificate issuance, and messaging.
package external

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
)

// Programs is the program allocation collaborator.
type Programs interface {
	// Sync reconciles program allocations with the current period state.
	// Nil arguments match everything.
	Sync(ctx context.Context, certificationID *uuid.UUID, userID *int64) error
	// ApplyReset applies reset to the user's allocation of p's program and
	// returns once the reset has completed.
	ApplyReset(ctx context.Context, p certification.Period, reset certification.ResetType) error
}

// Certificates is the certificate issuance collaborator.
type Certificates interface {
	// Issue issues a certificate for the certified period p and returns
	// its issue id.
	Issue(ctx context.Context, c certification.Certification, p certification.Period) (string, error)
	// Revoke revokes the certificate issued for p.
	Revoke(ctx context.Context, p certification.Period) error
}

// Message is a rendered lifecycle notification.
type Message struct {
	Kind          certification.NotificationKind
	UserID        int64
	Subject       string
	Body          string
	Certification certification.Certification
	Source        certification.Source
	Assignment    certification.Assignment
	Period        *certification.Period
}

// Messenger is the messaging collaborator.
type Messenger interface {
	Send(ctx context.Context, m Message) error
}
