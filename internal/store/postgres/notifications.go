package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/query"
	"github.com/JaimeStill/certify/pkg/repository"
)

func (q *queries) ListNotificationConfigs(ctx context.Context, certificationID uuid.UUID) ([]certification.NotificationConfig, error) {
	sql, args := query.NewBuilder(configProjection, query.SortField{Field: "Kind"}).
		WhereEquals("CertificationID", certificationID).
		Build()

	out, err := repository.QueryMany(ctx, q.conn, sql, args, scanConfig)
	if err != nil {
		return nil, wrap(err, "list notification configs of %s", certificationID)
	}
	return out, nil
}

const saveNotificationConfig = `
	INSERT INTO public.notification_configs (certification_id, kind, enabled, subject, body, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (certification_id, kind) DO UPDATE SET
		enabled = EXCLUDED.enabled,
		subject = EXCLUDED.subject,
		body = EXCLUDED.body
	RETURNING created_at`

func (q *queries) SaveNotificationConfig(ctx context.Context, c *certification.NotificationConfig) error {
	created, err := repository.QueryValue[time.Time](ctx, q.conn, saveNotificationConfig,
		c.CertificationID, c.Kind, c.Enabled, c.Subject, c.Body, c.CreatedAt,
	)
	if err != nil {
		return wrap(err, "save %s notification config", c.Kind)
	}
	c.CreatedAt = created
	return nil
}

// candidateSelect lists the columns read by scanCandidate.
func candidateSelect(withPeriod bool) string {
	cols := []string{
		certificationProjection.Columns(),
		sourceProjection.Columns(),
		assignmentProjection.Columns(),
		configProjection.Columns(),
	}
	if withPeriod {
		cols = append(cols, periodProjection.Columns())
	}
	return strings.Join(cols, ", ")
}

const candidateFrom = `
	FROM public.assignments a
	JOIN public.certifications c ON c.id = a.certification_id
	JOIN public.sources s ON s.id = a.source_id
	JOIN public.notification_configs n ON n.certification_id = a.certification_id AND n.kind = $1`

// candidateConditions holds the per-kind filters of notification candidates.
// Period kinds join periods as p and bind the evaluation instant to $2.
var candidateConditions = map[certification.NotificationKind]string{
	certification.NotifyAssignment: `a.archived = FALSE`,
	certification.NotifyUnassignment: `a.archived = TRUE`,
	certification.NotifyValid: `a.archived = FALSE
		AND p.time_certified IS NOT NULL AND p.time_revoked IS NULL
		AND (p.time_from IS NULL OR p.time_from <= $2)
		AND (p.time_until IS NULL OR p.time_until > $2)`,
	certification.NotifyRecertification: `a.archived = FALSE
		AND p.first = FALSE AND p.time_certified IS NULL AND p.time_revoked IS NULL
		AND p.time_window_start <= $2
		AND (p.time_window_end IS NULL OR p.time_window_end >= $2)`,
}

func candidateQuery(kind certification.NotificationKind, s store.Scope, now time.Time) (string, []any, error) {
	cond, ok := candidateConditions[kind]
	if !ok {
		return "", nil, fmt.Errorf("%w: notification kind %q", certification.ErrValidation, kind)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s%s", candidateSelect(kind.PerPeriod()), candidateFrom)

	sent := "ns.period_id IS NULL"
	if kind.PerPeriod() {
		b.WriteString("\n\tJOIN public.periods p ON p.certification_id = a.certification_id AND p.user_id = a.user_id")
		sent = "ns.period_id = p.id"
	}

	fmt.Fprintf(&b, `
	WHERE n.enabled AND c.archived = FALSE AND %s
	  AND NOT EXISTS (
		SELECT 1 FROM public.notification_sends ns
		WHERE ns.kind = $1 AND ns.assignment_id = a.id AND %s)`, cond, sent)

	args := []any{kind}
	if kind.PerPeriod() {
		args = append(args, now)
	}
	if s.CertificationID != nil {
		args = append(args, *s.CertificationID)
		fmt.Fprintf(&b, "\n\t  AND a.certification_id = $%d", len(args))
	}
	if s.UserID != nil {
		args = append(args, *s.UserID)
		fmt.Fprintf(&b, "\n\t  AND a.user_id = $%d", len(args))
	}
	b.WriteString("\n\tORDER BY a.created_at, a.user_id")

	return b.String(), args, nil
}

func (q *queries) NotificationCandidates(ctx context.Context, kind certification.NotificationKind, s store.Scope, now time.Time) ([]certification.NotificationCandidate, error) {
	sql, args, err := candidateQuery(kind, s, now)
	if err != nil {
		return nil, err
	}

	out, err := repository.QueryMany(ctx, q.conn, sql, args, scanCandidate(kind.PerPeriod()))
	if err != nil {
		return nil, wrap(err, "%s notification candidates", kind)
	}
	return out, nil
}

func (q *queries) InsertNotificationSend(ctx context.Context, s certification.NotificationSend) error {
	_, err := q.conn.ExecContext(ctx, `
		INSERT INTO public.notification_sends (kind, user_id, assignment_id, period_id, time_sent)
		VALUES ($1, $2, $3, $4, $5)`,
		s.Kind, s.UserID, s.AssignmentID, s.PeriodID, s.TimeSent,
	)
	return wrap(err, "record %s notification of user %d", s.Kind, s.UserID)
}

func (q *queries) DeleteNotificationSends(ctx context.Context, assignmentID uuid.UUID, kinds ...certification.NotificationKind) error {
	sql := `DELETE FROM public.notification_sends WHERE assignment_id = $1`
	args := []any{assignmentID}

	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		sql += ` AND kind = ANY($2)`
		args = append(args, names)
	}

	if _, err := q.conn.ExecContext(ctx, sql, args...); err != nil {
		return wrap(err, "delete notification sends of %s", assignmentID)
	}
	return nil
}
