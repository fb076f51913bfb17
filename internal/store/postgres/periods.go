package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/query"
	"github.com/JaimeStill/certify/pkg/repository"
)

func (q *queries) GetPeriod(ctx context.Context, id uuid.UUID) (*certification.Period, error) {
	sql, args := query.NewBuilder(periodProjection).BuildSingle("ID", id)
	return q.period(ctx, sql, args, id)
}

func (q *queries) LockPeriod(ctx context.Context, id uuid.UUID) (*certification.Period, error) {
	sql, args := query.NewBuilder(periodProjection).ForUpdate().BuildSingle("ID", id)
	return q.period(ctx, sql, args, id)
}

func (q *queries) period(ctx context.Context, sql string, args []any, id uuid.UUID) (*certification.Period, error) {
	p, err := repository.QueryOne(ctx, q.conn, sql, args, scanPeriod)
	if err != nil {
		return nil, wrap(err, "period %s", id)
	}
	return &p, nil
}

func (q *queries) ListPeriods(ctx context.Context, f store.PeriodFilter) ([]certification.Period, error) {
	b := query.NewBuilder(periodProjection, periodSort...).
		WhereEquals("CertificationID", f.CertificationID).
		WhereEquals("UserID", f.UserID).
		WhereEquals("ProgramID", f.ProgramID)
	if f.Certified != nil {
		b.WhereNull("TimeCertified", !*f.Certified)
	}

	sql, args := b.Build()
	out, err := repository.QueryMany(ctx, q.conn, sql, args, scanPeriod)
	if err != nil {
		return nil, wrap(err, "list periods")
	}
	return out, nil
}

func periodArgs(p *certification.Period) []any {
	return []any{
		p.ID,
		p.CertificationID,
		p.UserID,
		p.ProgramID,
		p.TimeWindowStart,
		p.TimeWindowDue,
		p.TimeWindowEnd,
		p.TimeCertified,
		p.TimeFrom,
		p.TimeUntil,
		p.TimeRevoked,
		p.First,
		p.Recertifiable,
		p.CertificateIssueID,
		jsonArg(p.Evidence),
		p.CreatedAt,
	}
}

const insertPeriod = `
	INSERT INTO public.periods (
		id, certification_id, user_id, program_id, time_window_start,
		time_window_due, time_window_end, time_certified, time_from, time_until,
		time_revoked, first, recertifiable, certificate_issue_id, evidence,
		created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

func (q *queries) InsertPeriod(ctx context.Context, p *certification.Period) error {
	_, err := q.conn.ExecContext(ctx, insertPeriod, periodArgs(p)...)
	return wrap(err, "insert period %s", p.ID)
}

const updatePeriod = `
	UPDATE public.periods SET
		program_id = $4, time_window_start = $5, time_window_due = $6,
		time_window_end = $7, time_certified = $8, time_from = $9,
		time_until = $10, time_revoked = $11, first = $12, recertifiable = $13,
		certificate_issue_id = $14, evidence = $15
	WHERE id = $1 AND certification_id = $2 AND user_id = $3`

func (q *queries) UpdatePeriod(ctx context.Context, p *certification.Period) error {
	args := periodArgs(p)
	err := repository.ExecExpectOne(ctx, q.conn, updatePeriod, args[:15]...)
	return wrap(err, "update period %s", p.ID)
}

func (q *queries) DeletePeriod(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, q.conn, `DELETE FROM public.periods WHERE id = $1`, id)
	return wrap(err, "delete period %s", id)
}

const hasLaterPeriod = `
	SELECT EXISTS (
		SELECT 1 FROM public.periods
		WHERE certification_id = $1 AND user_id = $2
		  AND time_window_start > $3 AND id <> $4
	)`

func (q *queries) HasLaterPeriod(ctx context.Context, p certification.Period) (bool, error) {
	ok, err := repository.QueryValue[bool](ctx, q.conn, hasLaterPeriod,
		p.CertificationID, p.UserID, p.TimeWindowStart, p.ID,
	)
	if err != nil {
		return false, wrap(err, "later period of %s", p.ID)
	}
	return ok, nil
}

const noLaterPeriod = `NOT EXISTS (
	SELECT 1 FROM public.periods l
	WHERE l.certification_id = p.certification_id AND l.user_id = p.user_id
	  AND l.time_window_start > p.time_window_start)`

// recertifyLead matches periods expiring within the certification's lead
// time of the bound instant.
const recertifyLead = `p.time_until <= $%d::timestamptz +
	make_interval(secs => (c.settings->>'recertify')::double precision)`

func scoped(b *query.Builder, s store.Scope) *query.Builder {
	return b.
		WhereEquals("CertificationID", s.CertificationID).
		WhereEquals("UserID", s.UserID)
}

func (q *queries) RecertificationCandidates(ctx context.Context, s store.Scope, now time.Time) ([]certification.Period, error) {
	b := scoped(query.NewBuilder(periodCandidateProjection, query.SortField{Field: "TimeUntil"}, query.SortField{Field: "ID"}), s).
		WhereEquals("CertificationArchived", false).
		WhereEquals("AssignmentArchived", false).
		WhereEquals("Recertifiable", true).
		WhereNull("TimeCertified", false).
		WhereNull("TimeRevoked", true).
		WhereNull("TimeUntil", false).
		Where(`c.settings->>'recertify' IS NOT NULL`).
		Where(recertifyLead, now).
		Where(noLaterPeriod)

	sql, args := b.Build()
	out, err := repository.QueryMany(ctx, q.conn, sql, args, scanPeriod)
	if err != nil {
		return nil, wrap(err, "recertification candidates")
	}
	return out, nil
}

func (q *queries) IssueCandidates(ctx context.Context, s store.Scope) ([]certification.Period, error) {
	b := scoped(query.NewBuilder(periodCandidateProjection, periodSort...), s).
		WhereEquals("CertificationArchived", false).
		WhereEquals("AssignmentArchived", false).
		WhereNull("TemplateID", false).
		WhereNull("TimeCertified", false).
		WhereNull("TimeRevoked", true).
		WhereNull("CertificateIssueID", true)

	sql, args := b.Build()
	out, err := repository.QueryMany(ctx, q.conn, sql, args, scanPeriod)
	if err != nil {
		return nil, wrap(err, "issue candidates")
	}
	return out, nil
}
