package external

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/pkg/ids"
)

// LogPrograms is a Programs that only logs. It stands in where no program
// allocation system is connected.
type LogPrograms struct {
	logger *slog.Logger
}

// NewLogPrograms creates a LogPrograms.
func NewLogPrograms(logger *slog.Logger) *LogPrograms {
	return &LogPrograms{logger: logger.With("system", "programs")}
}

func (p *LogPrograms) Sync(ctx context.Context, certificationID *uuid.UUID, userID *int64) error {
	p.logger.DebugContext(ctx, "program sync", "certification_id", certificationID, "user_id", userID)
	return nil
}

func (p *LogPrograms) ApplyReset(ctx context.Context, period certification.Period, reset certification.ResetType) error {
	p.logger.InfoContext(ctx, "program reset",
		"program_id", period.ProgramID,
		"user_id", period.UserID,
		"reset", reset,
	)
	return nil
}

// LogMessenger is a Messenger that writes messages to the log.
type LogMessenger struct {
	logger *slog.Logger
}

// NewLogMessenger creates a LogMessenger.
func NewLogMessenger(logger *slog.Logger) *LogMessenger {
	return &LogMessenger{logger: logger.With("system", "messenger")}
}

func (m *LogMessenger) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "notification",
		"kind", msg.Kind,
		"user_id", msg.UserID,
		"certification_id", msg.Certification.ID,
		"subject", msg.Subject,
	)
	return nil
}

// LogCertificates is a Certificates that logs issuance and hands out ULID
// issue ids without storing a document.
type LogCertificates struct {
	logger *slog.Logger
}

// NewLogCertificates creates a LogCertificates.
func NewLogCertificates(logger *slog.Logger) *LogCertificates {
	return &LogCertificates{logger: logger.With("system", "certificates")}
}

func (c *LogCertificates) Issue(ctx context.Context, cert certification.Certification, p certification.Period) (string, error) {
	id := ids.New()
	c.logger.InfoContext(ctx, "certificate issued",
		"issue_id", id,
		"certification_id", cert.ID,
		"period_id", p.ID,
		"user_id", p.UserID,
	)
	return id, nil
}

func (c *LogCertificates) Revoke(ctx context.Context, p certification.Period) error {
	c.logger.InfoContext(ctx, "certificate revoked", "period_id", p.ID, "user_id", p.UserID)
	return nil
}
