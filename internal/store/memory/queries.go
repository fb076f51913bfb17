package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/pagination"
)

// tx runs queries against one dataset.
type tx struct {
	data *dataset
}

func notFound(entity string, id any) error {
	return fmt.Errorf("%w: %s %v", certification.ErrNotFound, entity, id)
}

func duplicate(entity string) error {
	return fmt.Errorf("%w: %s", certification.ErrDuplicate, entity)
}

func matches[T comparable](filter *T, value T) bool {
	return filter == nil || *filter == value
}

func (t *tx) GetCertification(_ context.Context, id uuid.UUID) (*certification.Certification, error) {
	c, ok := t.data.certifications[id]
	if !ok {
		return nil, notFound("certification", id)
	}
	return &c, nil
}

func (t *tx) ListCertifications(_ context.Context, f store.CertificationFilter) ([]certification.Certification, error) {
	out := make([]certification.Certification, 0)
	for _, c := range t.data.certifications {
		if !matches(f.ID, c.ID) || !matches(f.Archived, c.Archived) {
			continue
		}
		if f.Search != nil && *f.Search != "" {
			q := strings.ToLower(*f.Search)
			if !strings.Contains(strings.ToLower(c.Fullname), q) && !strings.Contains(strings.ToLower(c.IDNumber), q) {
				continue
			}
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b certification.Certification) int {
		return cmp.Compare(a.Fullname, b.Fullname)
	})
	return out, nil
}

func (t *tx) InsertCertification(_ context.Context, c *certification.Certification) error {
	if _, ok := t.data.certifications[c.ID]; ok {
		return duplicate("certification")
	}
	for _, existing := range t.data.certifications {
		if existing.IDNumber == c.IDNumber {
			return duplicate("certification idnumber")
		}
	}
	t.data.certifications[c.ID] = *c
	return nil
}

func (t *tx) UpdateCertification(_ context.Context, c *certification.Certification) error {
	if _, ok := t.data.certifications[c.ID]; !ok {
		return notFound("certification", c.ID)
	}
	for _, existing := range t.data.certifications {
		if existing.ID != c.ID && existing.IDNumber == c.IDNumber {
			return duplicate("certification idnumber")
		}
	}
	t.data.certifications[c.ID] = *c
	return nil
}

func (t *tx) DeleteCertification(_ context.Context, id uuid.UUID) error {
	if _, ok := t.data.certifications[id]; !ok {
		return notFound("certification", id)
	}
	for _, a := range t.data.assignments {
		if a.CertificationID == id {
			return fmt.Errorf("delete certification %s: %w", id, certification.ErrHasAssignments)
		}
	}
	delete(t.data.certifications, id)
	for sid, s := range t.data.sources {
		if s.CertificationID == id {
			delete(t.data.sources, sid)
			t.deleteRequests(sid)
		}
	}
	for pid, p := range t.data.periods {
		if p.CertificationID == id {
			delete(t.data.periods, pid)
		}
	}
	for k := range t.data.configs {
		if k.certificationID == id {
			delete(t.data.configs, k)
		}
	}
	return nil
}

func (t *tx) GetSource(_ context.Context, id uuid.UUID) (*certification.Source, error) {
	s, ok := t.data.sources[id]
	if !ok {
		return nil, notFound("source", id)
	}
	return &s, nil
}

func (t *tx) LockSource(ctx context.Context, id uuid.UUID) (*certification.Source, error) {
	return t.GetSource(ctx, id)
}

func (t *tx) FindSource(_ context.Context, certificationID uuid.UUID, typ certification.SourceType) (*certification.Source, error) {
	for _, s := range t.data.sources {
		if s.CertificationID == certificationID && s.Type == typ {
			return &s, nil
		}
	}
	return nil, notFound("source", typ)
}

func (t *tx) ListSources(_ context.Context, f store.SourceFilter) ([]certification.Source, error) {
	out := make([]certification.Source, 0)
	for _, s := range t.data.sources {
		if matches(f.CertificationID, s.CertificationID) && matches(f.Type, s.Type) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b certification.Source) int {
		return cmp.Or(
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID.String(), b.ID.String()),
		)
	})
	return out, nil
}

func (t *tx) InsertSource(_ context.Context, s *certification.Source) error {
	if _, ok := t.data.certifications[s.CertificationID]; !ok {
		return notFound("certification", s.CertificationID)
	}
	for _, existing := range t.data.sources {
		if existing.ID == s.ID || (existing.CertificationID == s.CertificationID && existing.Type == s.Type) {
			return duplicate("source")
		}
	}
	t.data.sources[s.ID] = *s
	return nil
}

func (t *tx) UpdateSource(_ context.Context, s *certification.Source) error {
	if _, ok := t.data.sources[s.ID]; !ok {
		return notFound("source", s.ID)
	}
	t.data.sources[s.ID] = *s
	return nil
}

func (t *tx) DeleteSource(_ context.Context, id uuid.UUID) error {
	if _, ok := t.data.sources[id]; !ok {
		return notFound("source", id)
	}
	for _, a := range t.data.assignments {
		if a.SourceID == id {
			return fmt.Errorf("delete source %s: %w", id, certification.ErrHasAssignments)
		}
	}
	delete(t.data.sources, id)
	t.deleteRequests(id)
	return nil
}

func (t *tx) deleteRequests(sourceID uuid.UUID) {
	for rid, r := range t.data.requests {
		if r.SourceID == sourceID {
			delete(t.data.requests, rid)
		}
	}
}

func (t *tx) GetAssignment(_ context.Context, id uuid.UUID) (*certification.Assignment, error) {
	a, ok := t.data.assignments[id]
	if !ok {
		return nil, notFound("assignment", id)
	}
	return &a, nil
}

func (t *tx) LockAssignment(ctx context.Context, id uuid.UUID) (*certification.Assignment, error) {
	return t.GetAssignment(ctx, id)
}

func (t *tx) FindAssignment(_ context.Context, certificationID uuid.UUID, userID int64) (*certification.Assignment, error) {
	for _, a := range t.data.assignments {
		if a.CertificationID == certificationID && a.UserID == userID {
			return &a, nil
		}
	}
	return nil, notFound("assignment", userID)
}

func (t *tx) ListAssignments(_ context.Context, f store.AssignmentFilter) ([]certification.Assignment, error) {
	out := make([]certification.Assignment, 0)
	for _, a := range t.data.assignments {
		if matches(f.CertificationID, a.CertificationID) &&
			matches(f.UserID, a.UserID) &&
			matches(f.SourceID, a.SourceID) &&
			matches(f.Archived, a.Archived) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b certification.Assignment) int {
		return cmp.Or(
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.UserID, b.UserID),
		)
	})
	return out, nil
}

func (t *tx) PageAssignments(ctx context.Context, f store.AssignmentFilter, page pagination.PageRequest) (*pagination.PageResult[certification.Assignment], error) {
	all, err := t.ListAssignments(ctx, f)
	if err != nil {
		return nil, err
	}

	start := min(page.Offset(), len(all))
	end := min(start+page.PageSize, len(all))

	result := pagination.NewPageResult(all[start:end], len(all), page.Page, page.PageSize)
	return &result, nil
}

func (t *tx) CountAssignments(ctx context.Context, f store.AssignmentFilter) (int, error) {
	all, err := t.ListAssignments(ctx, f)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (t *tx) InsertAssignment(_ context.Context, a *certification.Assignment) error {
	if _, ok := t.data.sources[a.SourceID]; !ok {
		return notFound("source", a.SourceID)
	}
	for _, existing := range t.data.assignments {
		if existing.ID == a.ID || (existing.CertificationID == a.CertificationID && existing.UserID == a.UserID) {
			return duplicate("assignment")
		}
	}
	t.data.assignments[a.ID] = *a
	return nil
}

func (t *tx) UpdateAssignment(_ context.Context, a *certification.Assignment) error {
	if _, ok := t.data.assignments[a.ID]; !ok {
		return notFound("assignment", a.ID)
	}
	t.data.assignments[a.ID] = *a
	return nil
}

func (t *tx) DeleteAssignment(_ context.Context, id uuid.UUID) error {
	if _, ok := t.data.assignments[id]; !ok {
		return notFound("assignment", id)
	}
	delete(t.data.assignments, id)
	return nil
}

func (t *tx) GetPeriod(_ context.Context, id uuid.UUID) (*certification.Period, error) {
	p, ok := t.data.periods[id]
	if !ok {
		return nil, notFound("period", id)
	}
	return &p, nil
}

func (t *tx) LockPeriod(ctx context.Context, id uuid.UUID) (*certification.Period, error) {
	return t.GetPeriod(ctx, id)
}

func (t *tx) ListPeriods(_ context.Context, f store.PeriodFilter) ([]certification.Period, error) {
	out := make([]certification.Period, 0)
	for _, p := range t.data.periods {
		if !matches(f.CertificationID, p.CertificationID) ||
			!matches(f.UserID, p.UserID) ||
			!matches(f.ProgramID, p.ProgramID) {
			continue
		}
		if f.Certified != nil && *f.Certified != (p.TimeCertified != nil) {
			continue
		}
		out = append(out, p)
	}
	sortPeriods(out)
	return out, nil
}

func sortPeriods(periods []certification.Period) {
	slices.SortFunc(periods, func(a, b certification.Period) int {
		return cmp.Or(
			a.TimeWindowStart.Compare(b.TimeWindowStart),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID.String(), b.ID.String()),
		)
	})
}

func (t *tx) InsertPeriod(_ context.Context, p *certification.Period) error {
	if _, ok := t.data.periods[p.ID]; ok {
		return duplicate("period")
	}
	if _, ok := t.data.certifications[p.CertificationID]; !ok {
		return notFound("certification", p.CertificationID)
	}
	t.data.periods[p.ID] = *p
	return nil
}

func (t *tx) UpdatePeriod(_ context.Context, p *certification.Period) error {
	if _, ok := t.data.periods[p.ID]; !ok {
		return notFound("period", p.ID)
	}
	t.data.periods[p.ID] = *p
	return nil
}

func (t *tx) DeletePeriod(_ context.Context, id uuid.UUID) error {
	if _, ok := t.data.periods[id]; !ok {
		return notFound("period", id)
	}
	delete(t.data.periods, id)
	return nil
}

func (t *tx) HasLaterPeriod(_ context.Context, p certification.Period) (bool, error) {
	for _, other := range t.data.periods {
		if other.ID != p.ID &&
			other.CertificationID == p.CertificationID &&
			other.UserID == p.UserID &&
			other.TimeWindowStart.After(p.TimeWindowStart) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) assignmentOf(p certification.Period) (certification.Assignment, bool) {
	for _, a := range t.data.assignments {
		if a.CertificationID == p.CertificationID && a.UserID == p.UserID {
			return a, true
		}
	}
	return certification.Assignment{}, false
}

func inScope(s store.Scope, certificationID uuid.UUID, userID int64) bool {
	return matches(s.CertificationID, certificationID) && matches(s.UserID, userID)
}

func (t *tx) RecertificationCandidates(ctx context.Context, s store.Scope, now time.Time) ([]certification.Period, error) {
	out := make([]certification.Period, 0)
	for _, p := range t.data.periods {
		if !inScope(s, p.CertificationID, p.UserID) {
			continue
		}
		c, ok := t.data.certifications[p.CertificationID]
		if !ok {
			continue
		}
		a, ok := t.assignmentOf(p)
		if !ok {
			continue
		}
		later, err := t.HasLaterPeriod(ctx, p)
		if err != nil {
			return nil, err
		}
		if certification.RecertificationDue(c, a, p, later, now) {
			out = append(out, p)
		}
	}
	sortPeriods(out)
	return out, nil
}

func (t *tx) IssueCandidates(_ context.Context, s store.Scope) ([]certification.Period, error) {
	out := make([]certification.Period, 0)
	for _, p := range t.data.periods {
		if !inScope(s, p.CertificationID, p.UserID) {
			continue
		}
		if p.TimeCertified == nil || p.TimeRevoked != nil || p.CertificateIssueID != nil {
			continue
		}
		c, ok := t.data.certifications[p.CertificationID]
		if !ok || c.TemplateID == nil || c.Archived {
			continue
		}
		a, ok := t.assignmentOf(p)
		if !ok || a.Archived {
			continue
		}
		out = append(out, p)
	}
	sortPeriods(out)
	return out, nil
}

func (t *tx) GetRequest(_ context.Context, id uuid.UUID) (*certification.Request, error) {
	r, ok := t.data.requests[id]
	if !ok {
		return nil, notFound("request", id)
	}
	return &r, nil
}

func (t *tx) FindRequest(_ context.Context, sourceID uuid.UUID, userID int64) (*certification.Request, error) {
	for _, r := range t.data.requests {
		if r.SourceID == sourceID && r.UserID == userID {
			return &r, nil
		}
	}
	return nil, notFound("request", userID)
}

func (t *tx) ListRequests(_ context.Context, f store.RequestFilter) ([]certification.Request, error) {
	out := make([]certification.Request, 0)
	for _, r := range t.data.requests {
		if matches(f.SourceID, r.SourceID) && matches(f.UserID, r.UserID) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b certification.Request) int {
		return cmp.Or(
			a.TimeRequested.Compare(b.TimeRequested),
			cmp.Compare(a.UserID, b.UserID),
		)
	})
	return out, nil
}

func (t *tx) InsertRequest(_ context.Context, r *certification.Request) error {
	if _, ok := t.data.sources[r.SourceID]; !ok {
		return notFound("source", r.SourceID)
	}
	for _, existing := range t.data.requests {
		if existing.ID == r.ID || (existing.SourceID == r.SourceID && existing.UserID == r.UserID) {
			return duplicate("request")
		}
	}
	t.data.requests[r.ID] = *r
	return nil
}

func (t *tx) UpdateRequest(_ context.Context, r *certification.Request) error {
	if _, ok := t.data.requests[r.ID]; !ok {
		return notFound("request", r.ID)
	}
	t.data.requests[r.ID] = *r
	return nil
}

func (t *tx) DeleteRequest(_ context.Context, id uuid.UUID) error {
	if _, ok := t.data.requests[id]; !ok {
		return notFound("request", id)
	}
	delete(t.data.requests, id)
	return nil
}

func (t *tx) InsertSnapshot(_ context.Context, s *certification.Snapshot) error {
	t.data.snapshots = append(t.data.snapshots, *s)
	return nil
}

func (t *tx) ListSnapshots(_ context.Context, assignmentID uuid.UUID) ([]certification.Snapshot, error) {
	out := make([]certification.Snapshot, 0)
	for _, s := range t.data.snapshots {
		if s.AssignmentID == assignmentID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b certification.Snapshot) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (t *tx) ListNotificationConfigs(_ context.Context, certificationID uuid.UUID) ([]certification.NotificationConfig, error) {
	out := make([]certification.NotificationConfig, 0)
	for _, kind := range certification.NotificationKinds {
		if c, ok := t.data.configs[configKey{certificationID, kind}]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *tx) SaveNotificationConfig(_ context.Context, c *certification.NotificationConfig) error {
	if _, ok := t.data.certifications[c.CertificationID]; !ok {
		return notFound("certification", c.CertificationID)
	}
	key := configKey{c.CertificationID, c.Kind}
	if existing, ok := t.data.configs[key]; ok {
		c.CreatedAt = existing.CreatedAt
	}
	t.data.configs[key] = *c
	return nil
}

func (t *tx) NotificationCandidates(_ context.Context, kind certification.NotificationKind, s store.Scope, now time.Time) ([]certification.NotificationCandidate, error) {
	out := make([]certification.NotificationCandidate, 0)
	for _, a := range t.data.assignments {
		if !inScope(s, a.CertificationID, a.UserID) {
			continue
		}
		cfg, ok := t.data.configs[configKey{a.CertificationID, kind}]
		if !ok || !cfg.Enabled {
			continue
		}
		c := t.data.certifications[a.CertificationID]
		src := t.data.sources[a.SourceID]

		if !kind.PerPeriod() {
			if _, sent := t.data.sends[sendKey{kind, a.ID, uuid.Nil}]; sent {
				continue
			}
			if certification.NotificationDue(kind, c, a, nil, now) {
				out = append(out, certification.NotificationCandidate{
					Certification: c, Source: src, Assignment: a, Config: cfg,
				})
			}
			continue
		}

		for _, p := range t.data.periods {
			if p.CertificationID != a.CertificationID || p.UserID != a.UserID {
				continue
			}
			if _, sent := t.data.sends[sendKey{kind, a.ID, p.ID}]; sent {
				continue
			}
			if certification.NotificationDue(kind, c, a, &p, now) {
				out = append(out, certification.NotificationCandidate{
					Certification: c, Source: src, Assignment: a, Period: &p, Config: cfg,
				})
			}
		}
	}

	slices.SortFunc(out, func(a, b certification.NotificationCandidate) int {
		return cmp.Or(
			a.Assignment.CreatedAt.Compare(b.Assignment.CreatedAt),
			cmp.Compare(a.Assignment.UserID, b.Assignment.UserID),
		)
	})
	return out, nil
}

func (t *tx) InsertNotificationSend(_ context.Context, s certification.NotificationSend) error {
	key := sendKey{kind: s.Kind, assignmentID: s.AssignmentID}
	if s.PeriodID != nil {
		key.periodID = *s.PeriodID
	}
	if _, ok := t.data.sends[key]; ok {
		return duplicate("notification send")
	}
	t.data.sends[key] = s
	return nil
}

func (t *tx) DeleteNotificationSends(_ context.Context, assignmentID uuid.UUID, kinds ...certification.NotificationKind) error {
	for k := range t.data.sends {
		if k.assignmentID != assignmentID {
			continue
		}
		if len(kinds) > 0 && !slices.Contains(kinds, k.kind) {
			continue
		}
		delete(t.data.sends, k)
	}
	return nil
}

func (t *tx) IsRealUser(_ context.Context, userID int64) (bool, error) {
	u, ok := t.data.users[userID]
	if !ok {
		return false, nil
	}
	return !u.Deleted && !u.Suspended && !u.Guest, nil
}

func (t *tx) IsCohortMember(_ context.Context, userID int64, cohortIDs []int64) (bool, error) {
	for _, id := range cohortIDs {
		if t.data.cohorts[id][userID] {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) CohortMembers(_ context.Context, cohortIDs []int64, userID *int64) ([]int64, error) {
	seen := make(map[int64]bool)
	for _, id := range cohortIDs {
		for member := range t.data.cohorts[id] {
			if matches(userID, member) {
				seen[member] = true
			}
		}
	}

	out := make([]int64, 0, len(seen))
	for member := range seen {
		out = append(out, member)
	}
	slices.Sort(out)
	return out, nil
}
