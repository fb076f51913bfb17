package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/pagination"
)

func (m *Store) GetCertification(ctx context.Context, id uuid.UUID) (*certification.Certification, error) {
	return m.view().GetCertification(ctx, id)
}

func (m *Store) ListCertifications(ctx context.Context, f store.CertificationFilter) ([]certification.Certification, error) {
	return m.view().ListCertifications(ctx, f)
}

func (m *Store) InsertCertification(ctx context.Context, c *certification.Certification) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertCertification(ctx, c)
	})
}

func (m *Store) UpdateCertification(ctx context.Context, c *certification.Certification) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateCertification(ctx, c)
	})
}

func (m *Store) DeleteCertification(ctx context.Context, id uuid.UUID) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.DeleteCertification(ctx, id)
	})
}

func (m *Store) GetSource(ctx context.Context, id uuid.UUID) (*certification.Source, error) {
	return m.view().GetSource(ctx, id)
}

func (m *Store) LockSource(ctx context.Context, id uuid.UUID) (*certification.Source, error) {
	return m.view().LockSource(ctx, id)
}

func (m *Store) FindSource(ctx context.Context, certificationID uuid.UUID, t certification.SourceType) (*certification.Source, error) {
	return m.view().FindSource(ctx, certificationID, t)
}

func (m *Store) ListSources(ctx context.Context, f store.SourceFilter) ([]certification.Source, error) {
	return m.view().ListSources(ctx, f)
}

func (m *Store) InsertSource(ctx context.Context, s *certification.Source) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertSource(ctx, s)
	})
}

func (m *Store) UpdateSource(ctx context.Context, s *certification.Source) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateSource(ctx, s)
	})
}

func (m *Store) DeleteSource(ctx context.Context, id uuid.UUID) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.DeleteSource(ctx, id)
	})
}

func (m *Store) GetAssignment(ctx context.Context, id uuid.UUID) (*certification.Assignment, error) {
	return m.view().GetAssignment(ctx, id)
}

func (m *Store) LockAssignment(ctx context.Context, id uuid.UUID) (*certification.Assignment, error) {
	return m.view().LockAssignment(ctx, id)
}

func (m *Store) FindAssignment(ctx context.Context, certificationID uuid.UUID, userID int64) (*certification.Assignment, error) {
	return m.view().FindAssignment(ctx, certificationID, userID)
}

func (m *Store) ListAssignments(ctx context.Context, f store.AssignmentFilter) ([]certification.Assignment, error) {
	return m.view().ListAssignments(ctx, f)
}

func (m *Store) PageAssignments(ctx context.Context, f store.AssignmentFilter, page pagination.PageRequest) (*pagination.PageResult[certification.Assignment], error) {
	return m.view().PageAssignments(ctx, f, page)
}

func (m *Store) CountAssignments(ctx context.Context, f store.AssignmentFilter) (int, error) {
	return m.view().CountAssignments(ctx, f)
}

func (m *Store) InsertAssignment(ctx context.Context, a *certification.Assignment) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertAssignment(ctx, a)
	})
}

func (m *Store) UpdateAssignment(ctx context.Context, a *certification.Assignment) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateAssignment(ctx, a)
	})
}

func (m *Store) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.DeleteAssignment(ctx, id)
	})
}

func (m *Store) GetPeriod(ctx context.Context, id uuid.UUID) (*certification.Period, error) {
	return m.view().GetPeriod(ctx, id)
}

func (m *Store) LockPeriod(ctx context.Context, id uuid.UUID) (*certification.Period, error) {
	return m.view().LockPeriod(ctx, id)
}

func (m *Store) ListPeriods(ctx context.Context, f store.PeriodFilter) ([]certification.Period, error) {
	return m.view().ListPeriods(ctx, f)
}

func (m *Store) InsertPeriod(ctx context.Context, p *certification.Period) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertPeriod(ctx, p)
	})
}

func (m *Store) UpdatePeriod(ctx context.Context, p *certification.Period) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdatePeriod(ctx, p)
	})
}

func (m *Store) DeletePeriod(ctx context.Context, id uuid.UUID) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.DeletePeriod(ctx, id)
	})
}

func (m *Store) HasLaterPeriod(ctx context.Context, p certification.Period) (bool, error) {
	return m.view().HasLaterPeriod(ctx, p)
}

func (m *Store) RecertificationCandidates(ctx context.Context, s store.Scope, now time.Time) ([]certification.Period, error) {
	return m.view().RecertificationCandidates(ctx, s, now)
}

func (m *Store) IssueCandidates(ctx context.Context, s store.Scope) ([]certification.Period, error) {
	return m.view().IssueCandidates(ctx, s)
}

func (m *Store) GetRequest(ctx context.Context, id uuid.UUID) (*certification.Request, error) {
	return m.view().GetRequest(ctx, id)
}

func (m *Store) FindRequest(ctx context.Context, sourceID uuid.UUID, userID int64) (*certification.Request, error) {
	return m.view().FindRequest(ctx, sourceID, userID)
}

func (m *Store) ListRequests(ctx context.Context, f store.RequestFilter) ([]certification.Request, error) {
	return m.view().ListRequests(ctx, f)
}

func (m *Store) InsertRequest(ctx context.Context, r *certification.Request) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertRequest(ctx, r)
	})
}

func (m *Store) UpdateRequest(ctx context.Context, r *certification.Request) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateRequest(ctx, r)
	})
}

func (m *Store) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.DeleteRequest(ctx, id)
	})
}

func (m *Store) InsertSnapshot(ctx context.Context, s *certification.Snapshot) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertSnapshot(ctx, s)
	})
}

func (m *Store) ListSnapshots(ctx context.Context, assignmentID uuid.UUID) ([]certification.Snapshot, error) {
	return m.view().ListSnapshots(ctx, assignmentID)
}

func (m *Store) ListNotificationConfigs(ctx context.Context, certificationID uuid.UUID) ([]certification.NotificationConfig, error) {
	return m.view().ListNotificationConfigs(ctx, certificationID)
}

func (m *Store) SaveNotificationConfig(ctx context.Context, c *certification.NotificationConfig) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.SaveNotificationConfig(ctx, c)
	})
}

func (m *Store) NotificationCandidates(ctx context.Context, kind certification.NotificationKind, s store.Scope, now time.Time) ([]certification.NotificationCandidate, error) {
	return m.view().NotificationCandidates(ctx, kind, s, now)
}

func (m *Store) InsertNotificationSend(ctx context.Context, s certification.NotificationSend) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertNotificationSend(ctx, s)
	})
}

func (m *Store) DeleteNotificationSends(ctx context.Context, assignmentID uuid.UUID, kinds ...certification.NotificationKind) error {
	return m.WithTx(ctx, func(tx store.Tx) error {
		return tx.DeleteNotificationSends(ctx, assignmentID, kinds...)
	})
}

func (m *Store) IsRealUser(ctx context.Context, userID int64) (bool, error) {
	return m.view().IsRealUser(ctx, userID)
}

func (m *Store) IsCohortMember(ctx context.Context, userID int64, cohortIDs []int64) (bool, error) {
	return m.view().IsCohortMember(ctx, userID, cohortIDs)
}

func (m *Store) CohortMembers(ctx context.Context, cohortIDs []int64, userID *int64) ([]int64, error) {
	return m.view().CohortMembers(ctx, cohortIDs, userID)
}
