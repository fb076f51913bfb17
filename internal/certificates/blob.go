package certificates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/external"
	"github.com/JaimeStill/certify/pkg/ids"
	"github.com/JaimeStill/certify/pkg/storage"
)

// Blobs is the subset of *storage.Blobs the blob issuer uses.
type Blobs interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Document is the certificate record written to blob storage.
type Document struct {
	IssueID         string     `json:"issue_id"`
	CertificationID uuid.UUID  `json:"certification_id"`
	Fullname        string     `json:"fullname"`
	IDNumber        string     `json:"idnumber"`
	TemplateID      *int64     `json:"template_id"`
	PeriodID        uuid.UUID  `json:"period_id"`
	UserID          int64      `json:"user_id"`
	TimeCertified   *time.Time `json:"time_certified"`
	TimeFrom        *time.Time `json:"time_from"`
	TimeUntil       *time.Time `json:"time_until"`
	TimeIssued      time.Time  `json:"time_issued"`
}

// BlobIssuer issues certificates as JSON documents in blob storage. The
// issue id is a ULID, so documents of a period sort by issue time.
type BlobIssuer struct {
	blobs  Blobs
	logger *slog.Logger
	now    func() time.Time
}

var _ external.Certificates = (*BlobIssuer)(nil)

// NewBlobIssuer creates a BlobIssuer. A nil clock uses time.Now.
func NewBlobIssuer(blobs Blobs, logger *slog.Logger, now func() time.Time) *BlobIssuer {
	if now == nil {
		now = time.Now
	}
	return &BlobIssuer{
		blobs:  blobs,
		logger: logger.With("system", "certificate-blobs"),
		now:    now,
	}
}

// Key returns the blob name of an issued certificate.
func Key(certificationID, periodID uuid.UUID, issueID string) string {
	return fmt.Sprintf("%s/%s/%s.json", certificationID, periodID, issueID)
}

func (b *BlobIssuer) Issue(ctx context.Context, c certification.Certification, p certification.Period) (string, error) {
	now := b.now()
	doc := Document{
		IssueID:         ids.At(now),
		CertificationID: c.ID,
		Fullname:        c.Fullname,
		IDNumber:        c.IDNumber,
		TemplateID:      c.TemplateID,
		PeriodID:        p.ID,
		UserID:          p.UserID,
		TimeCertified:   p.TimeCertified,
		TimeFrom:        p.TimeFrom,
		TimeUntil:       p.TimeUntil,
		TimeIssued:      now,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal certificate: %w", err)
	}

	key := Key(c.ID, p.ID, doc.IssueID)
	if err := b.blobs.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}

	b.logger.InfoContext(ctx, "certificate issued", "key", key, "user_id", p.UserID)
	return doc.IssueID, nil
}

// Revoke deletes the certificate document of p. A document already gone
// counts as revoked.
func (b *BlobIssuer) Revoke(ctx context.Context, p certification.Period) error {
	if p.CertificateIssueID == nil {
		return nil
	}

	key := Key(p.CertificationID, p.ID, *p.CertificateIssueID)
	if err := b.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	b.logger.InfoContext(ctx, "certificate revoked", "key", key, "user_id", p.UserID)
	return nil
}

// Open returns the certificate document of p. The caller closes it.
func (b *BlobIssuer) Open(ctx context.Context, p certification.Period) (io.ReadCloser, error) {
	if p.CertificateIssueID == nil {
		return nil, fmt.Errorf("%w: no certificate issued for period %s", certification.ErrNotFound, p.ID)
	}

	rc, err := b.blobs.Download(ctx, Key(p.CertificationID, p.ID, *p.CertificateIssueID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: certificate document of period %s", certification.ErrNotFound, p.ID)
	}
	return rc, err
}
