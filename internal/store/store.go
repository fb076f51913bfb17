// Package store defines the transactional persistence contract of the
// certification lifecycle. Implementations live in the postgres and memory
// subpackages.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/pkg/pagination"
)

// Scope narrows batch operations to a certification, a user, or both.
// Nil fields match everything.
type Scope struct {
	CertificationID *uuid.UUID
	UserID          *int64
}

// CertificationFilter selects certifications. Nil fields are ignored.
type CertificationFilter struct {
	ID       *uuid.UUID
	Archived *bool
	Search   *string
}

// SourceFilter selects sources. Nil fields are ignored.
type SourceFilter struct {
	CertificationID *uuid.UUID
	Type            *certification.SourceType
}

// AssignmentFilter selects assignments. Nil fields are ignored.
type AssignmentFilter struct {
	CertificationID *uuid.UUID
	UserID          *int64
	SourceID        *uuid.UUID
	Archived        *bool
}

// PeriodFilter selects periods. Nil fields are ignored.
type PeriodFilter struct {
	CertificationID *uuid.UUID
	UserID          *int64
	ProgramID       *int64
	Certified       *bool
}

// RequestFilter selects approval requests. Nil fields are ignored.
type RequestFilter struct {
	SourceID *uuid.UUID
	UserID   *int64
}

// Queries is the set of reads and writes available inside and outside a
// transaction. Get and Find methods return certification.ErrNotFound when no
// row matches. Inserts violating a uniqueness rule return
// certification.ErrDuplicate. List methods return an empty slice when
// nothing matches.
type Queries interface {
	GetCertification(ctx context.Context, id uuid.UUID) (*certification.Certification, error)
	ListCertifications(ctx context.Context, f CertificationFilter) ([]certification.Certification, error)
	InsertCertification(ctx context.Context, c *certification.Certification) error
	UpdateCertification(ctx context.Context, c *certification.Certification) error
	DeleteCertification(ctx context.Context, id uuid.UUID) error

	GetSource(ctx context.Context, id uuid.UUID) (*certification.Source, error)
	LockSource(ctx context.Context, id uuid.UUID) (*certification.Source, error)
	FindSource(ctx context.Context, certificationID uuid.UUID, t certification.SourceType) (*certification.Source, error)
	ListSources(ctx context.Context, f SourceFilter) ([]certification.Source, error)
	InsertSource(ctx context.Context, s *certification.Source) error
	UpdateSource(ctx context.Context, s *certification.Source) error
	DeleteSource(ctx context.Context, id uuid.UUID) error

	GetAssignment(ctx context.Context, id uuid.UUID) (*certification.Assignment, error)
	LockAssignment(ctx context.Context, id uuid.UUID) (*certification.Assignment, error)
	FindAssignment(ctx context.Context, certificationID uuid.UUID, userID int64) (*certification.Assignment, error)
	ListAssignments(ctx context.Context, f AssignmentFilter) ([]certification.Assignment, error)
	PageAssignments(ctx context.Context, f AssignmentFilter, page pagination.PageRequest) (*pagination.PageResult[certification.Assignment], error)
	CountAssignments(ctx context.Context, f AssignmentFilter) (int, error)
	InsertAssignment(ctx context.Context, a *certification.Assignment) error
	UpdateAssignment(ctx context.Context, a *certification.Assignment) error
	DeleteAssignment(ctx context.Context, id uuid.UUID) error

	GetPeriod(ctx context.Context, id uuid.UUID) (*certification.Period, error)
	LockPeriod(ctx context.Context, id uuid.UUID) (*certification.Period, error)
	// ListPeriods orders periods by window start.
	ListPeriods(ctx context.Context, f PeriodFilter) ([]certification.Period, error)
	InsertPeriod(ctx context.Context, p *certification.Period) error
	UpdatePeriod(ctx context.Context, p *certification.Period) error
	DeletePeriod(ctx context.Context, id uuid.UUID) error
	// HasLaterPeriod reports whether the user has a period of the same
	// certification starting after p, revoked or not.
	HasLaterPeriod(ctx context.Context, p certification.Period) (bool, error)
	// RecertificationCandidates returns recertifiable certified periods
	// expiring at or before now plus the certification's lead time, of
	// unarchived assignments and certifications, with no later period.
	RecertificationCandidates(ctx context.Context, s Scope, now time.Time) ([]certification.Period, error)
	// IssueCandidates returns certified, unrevoked periods without a
	// certificate of certifications that have a template.
	IssueCandidates(ctx context.Context, s Scope) ([]certification.Period, error)

	GetRequest(ctx context.Context, id uuid.UUID) (*certification.Request, error)
	FindRequest(ctx context.Context, sourceID uuid.UUID, userID int64) (*certification.Request, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]certification.Request, error)
	InsertRequest(ctx context.Context, r *certification.Request) error
	UpdateRequest(ctx context.Context, r *certification.Request) error
	DeleteRequest(ctx context.Context, id uuid.UUID) error

	InsertSnapshot(ctx context.Context, s *certification.Snapshot) error
	ListSnapshots(ctx context.Context, assignmentID uuid.UUID) ([]certification.Snapshot, error)

	ListNotificationConfigs(ctx context.Context, certificationID uuid.UUID) ([]certification.NotificationConfig, error)
	SaveNotificationConfig(ctx context.Context, c *certification.NotificationConfig) error
	// NotificationCandidates returns candidates of kind with an enabled
	// configuration and no recorded send.
	NotificationCandidates(ctx context.Context, kind certification.NotificationKind, s Scope, now time.Time) ([]certification.NotificationCandidate, error)
	InsertNotificationSend(ctx context.Context, s certification.NotificationSend) error
	// DeleteNotificationSends removes the sends of an assignment, limited
	// to kinds when any are given.
	DeleteNotificationSends(ctx context.Context, assignmentID uuid.UUID, kinds ...certification.NotificationKind) error

	IsRealUser(ctx context.Context, userID int64) (bool, error)
	IsCohortMember(ctx context.Context, userID int64, cohortIDs []int64) (bool, error)
	// CohortMembers returns the distinct users belonging to any of
	// cohortIDs, limited to userID when set.
	CohortMembers(ctx context.Context, cohortIDs []int64, userID *int64) ([]int64, error)
}

// Tx is a unit of work. Lock methods hold the row until the transaction ends.
type Tx interface {
	Queries
}

// Store runs queries directly or within a transaction.
type Store interface {
	Queries
	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// RecordSnapshot appends a snapshot of a and its current periods.
func RecordSnapshot(ctx context.Context, q Queries, reason string, a certification.Assignment, actor *int64, now time.Time) (*certification.Snapshot, error) {
	periods, err := q.ListPeriods(ctx, PeriodFilter{
		CertificationID: &a.CertificationID,
		UserID:          &a.UserID,
	})
	if err != nil {
		return nil, err
	}

	snap, err := certification.NewSnapshot(reason, a, periods, actor, now)
	if err != nil {
		return nil, err
	}

	if err := q.InsertSnapshot(ctx, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
