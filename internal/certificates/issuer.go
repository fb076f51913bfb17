// Package certificates issues certificates for certified periods and stores
// issued certificate documents in blob storage.
package certificates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/external"
	"github.com/JaimeStill/certify/internal/store"
)

// Result summarizes an issuance pass.
type Result struct {
	Candidates int `json:"candidates"`
	Issued     int `json:"issued"`
	Failed     int `json:"failed"`
}

// Issuer issues certificates for certified periods lacking one.
type Issuer struct {
	store  store.Store
	certs  external.Certificates
	logger *slog.Logger
}

// NewIssuer creates an Issuer.
func NewIssuer(s store.Store, certs external.Certificates, logger *slog.Logger) *Issuer {
	return &Issuer{
		store:  s,
		certs:  certs,
		logger: logger.With("system", "certificates"),
	}
}

// IssuePending issues a certificate for every certified, unrevoked period
// in scope whose certification has a template and whose assignment is
// active. Each period is issued in its own transaction; failures are logged
// and counted.
func (i *Issuer) IssuePending(ctx context.Context, scope store.Scope) (Result, error) {
	candidates, err := i.store.IssueCandidates(ctx, scope)
	if err != nil {
		return Result{}, fmt.Errorf("list issue candidates: %w", err)
	}

	res := Result{Candidates: len(candidates)}
	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		issued, err := i.issue(ctx, p)
		if err != nil {
			res.Failed++
			i.logger.WarnContext(ctx, "certificate issue failed",
				"certification_id", p.CertificationID,
				"user_id", p.UserID,
				"period_id", p.ID,
				"error", err,
			)
			continue
		}
		if issued {
			res.Issued++
		}
	}
	return res, nil
}

func (i *Issuer) issue(ctx context.Context, candidate certification.Period) (bool, error) {
	issued := false

	err := i.store.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.FindAssignment(ctx, candidate.CertificationID, candidate.UserID)
		if err != nil {
			return err
		}
		if _, err := tx.LockAssignment(ctx, a.ID); err != nil {
			return err
		}
		p, err := tx.LockPeriod(ctx, candidate.ID)
		if err != nil {
			return err
		}
		if p.TimeCertified == nil || p.TimeRevoked != nil || p.CertificateIssueID != nil {
			return nil
		}

		c, err := tx.GetCertification(ctx, p.CertificationID)
		if err != nil {
			return err
		}

		id, err := i.certs.Issue(ctx, *c, *p)
		if err != nil {
			return err
		}
		p.CertificateIssueID = &id
		if err := tx.UpdatePeriod(ctx, p); err != nil {
			return err
		}

		issued = true
		return nil
	})
	if errors.Is(err, certification.ErrNotFound) {
		return false, nil
	}
	return issued, err
}
