package sources

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/assignments"
	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
)

// ApprovalSettings configures the approval workflow. Requests are allowed
// unless AllowRequest is false.
type ApprovalSettings struct {
	AllowRequest *bool `json:"allowrequest"`
}

func parseApprovalSettings(raw json.RawMessage) (ApprovalSettings, error) {
	var s ApprovalSettings
	err := decodeSettings(raw, &s)
	return s, err
}

func (s ApprovalSettings) requestAllowed() bool {
	return s.AllowRequest == nil || *s.AllowRequest
}

// Approval assigns users after an administrator approves their request.
// Rejected requests are kept and block new requests until deleted.
type Approval struct {
	base
}

func (p *Approval) Type() certification.SourceType {
	return certification.SourceApproval
}

func (p *Approval) CanUserRequest(ctx context.Context, c certification.Certification, src certification.Source, userID int64) (bool, Reason, error) {
	if ok, reason, err := p.check(ctx, c, userID); !ok || err != nil {
		return ok, reason, err
	}

	settings, err := parseApprovalSettings(src.Settings)
	if err != nil {
		return false, ReasonNone, err
	}
	if !settings.requestAllowed() {
		return false, ReasonRequestDisabled, nil
	}

	r, err := p.store.FindRequest(ctx, src.ID, userID)
	switch {
	case err == nil && r.Rejected():
		return false, ReasonRejected, nil
	case err == nil:
		return false, ReasonRequested, nil
	case !errors.Is(err, certification.ErrNotFound):
		return false, ReasonNone, err
	}

	return true, ReasonNone, nil
}

// FixAssignments removes requests of users who are already assigned.
func (p *Approval) FixAssignments(ctx context.Context, scope store.Scope) (bool, error) {
	t := certification.SourceApproval
	srcs, err := p.store.ListSources(ctx, store.SourceFilter{
		CertificationID: scope.CertificationID,
		Type:            &t,
	})
	if err != nil {
		return false, err
	}

	changed := false
	for _, src := range srcs {
		requests, err := p.store.ListRequests(ctx, store.RequestFilter{SourceID: &src.ID, UserID: scope.UserID})
		if err != nil {
			return changed, err
		}

		for _, r := range requests {
			a, err := p.existing(ctx, src.CertificationID, r.UserID)
			if err != nil {
				return changed, err
			}
			if a == nil {
				continue
			}
			if err := p.store.DeleteRequest(ctx, r.ID); err != nil && !errors.Is(err, certification.ErrNotFound) {
				return changed, err
			}
			changed = true
		}
	}
	return changed, nil
}

// Request files a request for assignment. It returns nil without error
// when the user is already assigned or already has a request.
func (p *Approval) Request(ctx context.Context, certificationID uuid.UUID, userID int64, data json.RawMessage) (*certification.Request, error) {
	c, src, err := p.load(ctx, certificationID, certification.SourceApproval)
	if err != nil {
		return nil, err
	}

	ok, reason, err := p.CanUserRequest(ctx, *c, *src, userID)
	if err != nil {
		return nil, err
	}
	switch reason {
	case ReasonAssigned, ReasonRequested, ReasonRejected:
		return nil, nil
	}
	if !ok {
		return nil, notAllowed(reason)
	}

	r := certification.Request{
		ID:            uuid.New(),
		SourceID:      src.ID,
		UserID:        userID,
		TimeRequested: p.manager.Now(),
		Data:          data,
	}
	if err := p.store.InsertRequest(ctx, &r); err != nil {
		if errors.Is(err, certification.ErrDuplicate) {
			return nil, nil
		}
		return nil, err
	}

	p.logger.InfoContext(ctx, "assignment requested", "certification_id", c.ID, "user_id", userID)
	return &r, nil
}

// Approve assigns the requesting user and deletes the request in the same
// transaction. It returns nil without error when the user was assigned in
// the meantime.
func (p *Approval) Approve(ctx context.Context, requestID uuid.UUID, actor *int64) (*certification.Assignment, error) {
	r, err := p.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	src, err := p.store.GetSource(ctx, r.SourceID)
	if err != nil {
		return nil, err
	}

	a, created, err := p.manager.Assign(ctx, assignments.AssignCommand{
		CertificationID: src.CertificationID,
		SourceID:        src.ID,
		UserID:          r.UserID,
		SourceData:      r.Data,
		ActorID:         actor,
	}, func(ctx context.Context, tx store.Tx, _ *certification.Assignment) error {
		return tx.DeleteRequest(ctx, r.ID)
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, nil
	}
	return a, nil
}

// Reject marks a request rejected. Rejecting twice keeps the first
// rejection time.
func (p *Approval) Reject(ctx context.Context, requestID uuid.UUID) (*certification.Request, error) {
	var result certification.Request

	err := p.store.WithTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		result = *r
		if r.Rejected() {
			return nil
		}

		now := p.manager.Now()
		r.TimeRejected = &now
		if err := tx.UpdateRequest(ctx, r); err != nil {
			return err
		}
		result = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteRequest removes a request, allowing the user to request again.
func (p *Approval) DeleteRequest(ctx context.Context, requestID uuid.UUID) error {
	return p.store.DeleteRequest(ctx, requestID)
}

// Requests lists the requests of the approval source of a certification.
func (p *Approval) Requests(ctx context.Context, certificationID uuid.UUID) ([]certification.Request, error) {
	src, err := p.store.FindSource(ctx, certificationID, certification.SourceApproval)
	if err != nil {
		return nil, err
	}
	return p.store.ListRequests(ctx, store.RequestFilter{SourceID: &src.ID})
}
