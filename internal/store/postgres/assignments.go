package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/pagination"
	"github.com/JaimeStill/certify/pkg/query"
	"github.com/JaimeStill/certify/pkg/repository"
)

func assignmentBuilder(f store.AssignmentFilter) *query.Builder {
	return query.NewBuilder(assignmentProjection, assignmentSort...).
		WhereEquals("CertificationID", f.CertificationID).
		WhereEquals("UserID", f.UserID).
		WhereEquals("SourceID", f.SourceID).
		WhereEquals("Archived", f.Archived)
}

func (q *queries) GetAssignment(ctx context.Context, id uuid.UUID) (*certification.Assignment, error) {
	sql, args := query.NewBuilder(assignmentProjection).BuildSingle("ID", id)
	return q.assignment(ctx, sql, args, id)
}

func (q *queries) LockAssignment(ctx context.Context, id uuid.UUID) (*certification.Assignment, error) {
	sql, args := query.NewBuilder(assignmentProjection).ForUpdate().BuildSingle("ID", id)
	return q.assignment(ctx, sql, args, id)
}

func (q *queries) FindAssignment(ctx context.Context, certificationID uuid.UUID, userID int64) (*certification.Assignment, error) {
	sql, args := query.NewBuilder(assignmentProjection).
		WhereEquals("CertificationID", certificationID).
		WhereEquals("UserID", userID).
		BuildSingleOrNull()
	return q.assignment(ctx, sql, args, userID)
}

func (q *queries) assignment(ctx context.Context, sql string, args []any, key any) (*certification.Assignment, error) {
	a, err := repository.QueryOne(ctx, q.conn, sql, args, scanAssignment)
	if err != nil {
		return nil, wrap(err, "assignment %v", key)
	}
	return &a, nil
}

func (q *queries) ListAssignments(ctx context.Context, f store.AssignmentFilter) ([]certification.Assignment, error) {
	sql, args := assignmentBuilder(f).Build()
	out, err := repository.QueryMany(ctx, q.conn, sql, args, scanAssignment)
	if err != nil {
		return nil, wrap(err, "list assignments")
	}
	return out, nil
}

func (q *queries) PageAssignments(ctx context.Context, f store.AssignmentFilter, page pagination.PageRequest) (*pagination.PageResult[certification.Assignment], error) {
	b := assignmentBuilder(f).OrderByFields(sortable(assignmentProjection, page.Sort))

	countSQL, countArgs := b.BuildCount()
	total, err := repository.QueryValue[int](ctx, q.conn, countSQL, countArgs...)
	if err != nil {
		return nil, wrap(err, "count assignments")
	}

	pageSQL, pageArgs := b.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, q.conn, pageSQL, pageArgs, scanAssignment)
	if err != nil {
		return nil, wrap(err, "page assignments")
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (q *queries) CountAssignments(ctx context.Context, f store.AssignmentFilter) (int, error) {
	sql, args := assignmentBuilder(f).BuildCount()
	n, err := repository.QueryValue[int](ctx, q.conn, sql, args...)
	if err != nil {
		return 0, wrap(err, "count assignments")
	}
	return n, nil
}

func (q *queries) InsertAssignment(ctx context.Context, a *certification.Assignment) error {
	_, err := q.conn.ExecContext(ctx, `
		INSERT INTO public.assignments (
			id, certification_id, user_id, source_id, source_data, archived,
			time_certified_until, evidence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.CertificationID, a.UserID, a.SourceID, jsonArg(a.SourceData),
		a.Archived, a.TimeCertifiedUntil, jsonArg(a.Evidence), a.CreatedAt,
	)
	return wrap(err, "insert assignment of user %d", a.UserID)
}

func (q *queries) UpdateAssignment(ctx context.Context, a *certification.Assignment) error {
	err := repository.ExecExpectOne(ctx, q.conn, `
		UPDATE public.assignments SET
			source_id = $2, source_data = $3, archived = $4,
			time_certified_until = $5, evidence = $6
		WHERE id = $1`,
		a.ID, a.SourceID, jsonArg(a.SourceData), a.Archived,
		a.TimeCertifiedUntil, jsonArg(a.Evidence),
	)
	return wrap(err, "update assignment %s", a.ID)
}

func (q *queries) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, q.conn, `DELETE FROM public.assignments WHERE id = $1`, id)
	return wrap(err, "delete assignment %s", id)
}
