package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/query"
	"github.com/JaimeStill/certify/pkg/repository"
)

func (q *queries) GetRequest(ctx context.Context, id uuid.UUID) (*certification.Request, error) {
	sql, args := query.NewBuilder(requestProjection).BuildSingle("ID", id)
	return q.request(ctx, sql, args, id)
}

func (q *queries) FindRequest(ctx context.Context, sourceID uuid.UUID, userID int64) (*certification.Request, error) {
	sql, args := query.NewBuilder(requestProjection).
		WhereEquals("SourceID", sourceID).
		WhereEquals("UserID", userID).
		BuildSingleOrNull()
	return q.request(ctx, sql, args, userID)
}

func (q *queries) request(ctx context.Context, sql string, args []any, key any) (*certification.Request, error) {
	r, err := repository.QueryOne(ctx, q.conn, sql, args, scanRequest)
	if err != nil {
		return nil, wrap(err, "request %v", key)
	}
	return &r, nil
}

func (q *queries) ListRequests(ctx context.Context, f store.RequestFilter) ([]certification.Request, error) {
	sql, args := query.NewBuilder(requestProjection, requestSort...).
		WhereEquals("SourceID", f.SourceID).
		WhereEquals("UserID", f.UserID).
		Build()

	out, err := repository.QueryMany(ctx, q.conn, sql, args, scanRequest)
	if err != nil {
		return nil, wrap(err, "list requests")
	}
	return out, nil
}

func (q *queries) InsertRequest(ctx context.Context, r *certification.Request) error {
	_, err := q.conn.ExecContext(ctx, `
		INSERT INTO public.requests (id, source_id, user_id, time_requested, time_rejected, data)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.SourceID, r.UserID, r.TimeRequested, r.TimeRejected, jsonArg(r.Data),
	)
	return wrap(err, "insert request of user %d", r.UserID)
}

func (q *queries) UpdateRequest(ctx context.Context, r *certification.Request) error {
	err := repository.ExecExpectOne(ctx, q.conn,
		`UPDATE public.requests SET time_rejected = $2, data = $3 WHERE id = $1`,
		r.ID, r.TimeRejected, jsonArg(r.Data),
	)
	return wrap(err, "update request %s", r.ID)
}

func (q *queries) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, q.conn, `DELETE FROM public.requests WHERE id = $1`, id)
	return wrap(err, "delete request %s", id)
}

func (q *queries) InsertSnapshot(ctx context.Context, s *certification.Snapshot) error {
	_, err := q.conn.ExecContext(ctx, `
		INSERT INTO public.snapshots (
			id, assignment_id, certification_id, user_id, reason, actor_id,
			assignment, periods, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.AssignmentID, s.CertificationID, s.UserID, s.Reason, s.ActorID,
		jsonArg(s.Assignment), jsonArg(s.Periods), s.CreatedAt,
	)
	return wrap(err, "insert snapshot %s", s.ID)
}

func (q *queries) ListSnapshots(ctx context.Context, assignmentID uuid.UUID) ([]certification.Snapshot, error) {
	sql, args := query.NewBuilder(snapshotProjection, query.SortField{Field: "ID"}).
		WhereEquals("AssignmentID", assignmentID).
		Build()

	out, err := repository.QueryMany(ctx, q.conn, sql, args, scanSnapshot)
	if err != nil {
		return nil, wrap(err, "list snapshots of %s", assignmentID)
	}
	return out, nil
}
