package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/query"
	"github.com/JaimeStill/certify/pkg/repository"
)

func (q *queries) GetCertification(ctx context.Context, id uuid.UUID) (*certification.Certification, error) {
	sql, args := query.NewBuilder(certificationProjection).BuildSingle("ID", id)
	c, err := repository.QueryOne(ctx, q.conn, sql, args, scanCertification)
	if err != nil {
		return nil, wrap(err, "certification %s", id)
	}
	return &c, nil
}

func (q *queries) ListCertifications(ctx context.Context, f store.CertificationFilter) ([]certification.Certification, error) {
	sql, args := query.NewBuilder(certificationProjection, certificationSort).
		WhereEquals("ID", f.ID).
		WhereEquals("Archived", f.Archived).
		WhereSearch(f.Search, "Fullname", "IDNumber").
		Build()

	out, err := repository.QueryMany(ctx, q.conn, sql, args, scanCertification)
	if err != nil {
		return nil, wrap(err, "list certifications")
	}
	return out, nil
}

func certificationArgs(c *certification.Certification) ([]any, error) {
	cohorts := c.CohortIDs
	if cohorts == nil {
		cohorts = []int64{}
	}
	cb, err := json.Marshal(cohorts)
	if err != nil {
		return nil, fmt.Errorf("encode cohort_ids: %w", err)
	}
	sb, err := c.Settings.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}

	return []any{
		c.ID,
		c.ContextID,
		c.Fullname,
		c.IDNumber,
		c.Description,
		c.Public,
		string(cb),
		c.Archived,
		c.ProgramID1,
		c.ProgramID2,
		c.TemplateID,
		c.Recertify,
		string(sb),
		c.CreatedAt,
		c.UpdatedAt,
	}, nil
}

const insertCertification = `
	INSERT INTO public.certifications (
		id, context_id, fullname, idnumber, description, public, cohort_ids,
		archived, program_id1, program_id2, template_id, recertify, settings,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

func (q *queries) InsertCertification(ctx context.Context, c *certification.Certification) error {
	args, err := certificationArgs(c)
	if err != nil {
		return err
	}
	if _, err := q.conn.ExecContext(ctx, insertCertification, args...); err != nil {
		return wrap(err, "insert certification %s", c.ID)
	}
	return nil
}

const updateCertification = `
	UPDATE public.certifications SET
		context_id = $2, fullname = $3, idnumber = $4, description = $5,
		public = $6, cohort_ids = $7, archived = $8, program_id1 = $9,
		program_id2 = $10, template_id = $11, recertify = $12, settings = $13,
		updated_at = $14
	WHERE id = $1`

func (q *queries) UpdateCertification(ctx context.Context, c *certification.Certification) error {
	args, err := certificationArgs(c)
	if err != nil {
		return err
	}
	// created_at is immutable
	args = append(args[:13:13], c.UpdatedAt)
	if err := repository.ExecExpectOne(ctx, q.conn, updateCertification, args...); err != nil {
		return wrap(err, "update certification %s", c.ID)
	}
	return nil
}

func (q *queries) DeleteCertification(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, q.conn, `DELETE FROM public.certifications WHERE id = $1`, id)
	if repository.IsForeignKeyViolation(err) {
		return fmt.Errorf("delete certification %s: %w", id, certification.ErrHasAssignments)
	}
	return wrap(err, "delete certification %s", id)
}

func (q *queries) GetSource(ctx context.Context, id uuid.UUID) (*certification.Source, error) {
	sql, args := query.NewBuilder(sourceProjection).BuildSingle("ID", id)
	return q.source(ctx, sql, args, id)
}

func (q *queries) LockSource(ctx context.Context, id uuid.UUID) (*certification.Source, error) {
	sql, args := query.NewBuilder(sourceProjection).ForUpdate().BuildSingle("ID", id)
	return q.source(ctx, sql, args, id)
}

func (q *queries) FindSource(ctx context.Context, certificationID uuid.UUID, t certification.SourceType) (*certification.Source, error) {
	sql, args := query.NewBuilder(sourceProjection).
		WhereEquals("CertificationID", certificationID).
		WhereEquals("Type", t).
		BuildSingleOrNull()
	return q.source(ctx, sql, args, t)
}

func (q *queries) source(ctx context.Context, sql string, args []any, key any) (*certification.Source, error) {
	s, err := repository.QueryOne(ctx, q.conn, sql, args, scanSource)
	if err != nil {
		return nil, wrap(err, "source %v", key)
	}
	return &s, nil
}

func (q *queries) ListSources(ctx context.Context, f store.SourceFilter) ([]certification.Source, error) {
	sql, args := query.NewBuilder(sourceProjection, query.SortField{Field: "CreatedAt"}, query.SortField{Field: "ID"}).
		WhereEquals("CertificationID", f.CertificationID).
		WhereEquals("Type", f.Type).
		Build()

	out, err := repository.QueryMany(ctx, q.conn, sql, args, scanSource)
	if err != nil {
		return nil, wrap(err, "list sources")
	}
	return out, nil
}

func (q *queries) InsertSource(ctx context.Context, s *certification.Source) error {
	_, err := q.conn.ExecContext(ctx, `
		INSERT INTO public.sources (id, certification_id, type, settings, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.CertificationID, s.Type, jsonArg(s.Settings), s.CreatedAt,
	)
	return wrap(err, "insert source %s", s.Type)
}

func (q *queries) UpdateSource(ctx context.Context, s *certification.Source) error {
	err := repository.ExecExpectOne(ctx, q.conn,
		`UPDATE public.sources SET settings = $2 WHERE id = $1`,
		s.ID, jsonArg(s.Settings),
	)
	return wrap(err, "update source %s", s.ID)
}

func (q *queries) DeleteSource(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, q.conn, `DELETE FROM public.sources WHERE id = $1`, id)
	if repository.IsForeignKeyViolation(err) {
		return fmt.Errorf("delete source %s: %w", id, certification.ErrHasAssignments)
	}
	return wrap(err, "delete source %s", id)
}
