package assignments

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/periods"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/pagination"
)

// PeriodView is a period with its derived state.
type PeriodView struct {
	certification.Period
	State certification.PeriodState `json:"state"`
}

// View is an assignment with its derived status and periods.
type View struct {
	certification.Assignment
	Status               certification.Status `json:"status"`
	RecertificationEnded bool                 `json:"recertification_stopped"`
	Periods              []PeriodView         `json:"periods"`
}

// Status returns the assignment with its derived status at the engine time.
func (m *Manager) Status(ctx context.Context, id uuid.UUID) (*View, error) {
	a, err := m.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := m.store.GetCertification(ctx, a.CertificationID)
	if err != nil {
		return nil, err
	}

	v, err := m.view(ctx, *c, *a)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Page lists the assignments of a certification with their status.
func (m *Manager) Page(ctx context.Context, certificationID uuid.UUID, f store.AssignmentFilter, page pagination.PageRequest) (*pagination.PageResult[View], error) {
	c, err := m.store.GetCertification(ctx, certificationID)
	if err != nil {
		return nil, err
	}

	page.Normalize(m.pagination)
	f.CertificationID = &c.ID

	result, err := m.store.PageAssignments(ctx, f, page)
	if err != nil {
		return nil, err
	}

	views, err := pagination.MapResult(*result, func(a certification.Assignment) (View, error) {
		return m.view(ctx, *c, a)
	})
	if err != nil {
		return nil, err
	}
	return &views, nil
}

func (m *Manager) view(ctx context.Context, c certification.Certification, a certification.Assignment) (View, error) {
	ps, err := m.store.ListPeriods(ctx, store.PeriodFilter{
		CertificationID: &a.CertificationID,
		UserID:          &a.UserID,
	})
	if err != nil {
		return View{}, err
	}

	now := m.periods.Now()
	archived := c.Archived || a.Archived

	views := make([]PeriodView, len(ps))
	for i, p := range ps {
		views[i] = PeriodView{Period: p, State: p.State(archived, now)}
	}

	return View{
		Assignment:           a,
		Status:               certification.AssignmentStatus(c.Archived, a, ps, now),
		RecertificationEnded: periods.Stopped(ps),
		Periods:              views,
	}, nil
}
