package postgres

import (
	"context"
	"database/sql"
)

// The directory tables mirror LMS users and cohort membership. They are
// read only here; the LMS synchronises them.

const isRealUser = `
	SELECT EXISTS (
		SELECT 1 FROM public.lms_users
		WHERE id = $1 AND NOT deleted AND NOT suspended AND NOT guest
	)`

func (q *queries) IsRealUser(ctx context.Context, userID int64) (bool, error) {
	var ok bool
	if err := q.conn.QueryRowContext(ctx, isRealUser, userID).Scan(&ok); err != nil {
		return false, wrap(err, "user %d", userID)
	}
	return ok, nil
}

func (q *queries) IsCohortMember(ctx context.Context, userID int64, cohortIDs []int64) (bool, error) {
	if len(cohortIDs) == 0 {
		return false, nil
	}

	var ok bool
	err := q.conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM public.cohort_members
			WHERE user_id = $1 AND cohort_id = ANY($2)
		)`, userID, cohortIDs).Scan(&ok)
	if err != nil {
		return false, wrap(err, "cohort membership of user %d", userID)
	}
	return ok, nil
}

func (q *queries) CohortMembers(ctx context.Context, cohortIDs []int64, userID *int64) ([]int64, error) {
	if len(cohortIDs) == 0 {
		return []int64{}, nil
	}

	query := `SELECT DISTINCT user_id FROM public.cohort_members WHERE cohort_id = ANY($1)`
	args := []any{cohortIDs}
	if userID != nil {
		query += ` AND user_id = $2`
		args = append(args, *userID)
	}
	query += ` ORDER BY user_id`

	rows, err := q.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(err, "cohort members")
	}
	defer rows.Close()

	return collectIDs(rows)
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	out := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
