// Package postgres implements store.Store on PostgreSQL through database/sql
// and the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/query"
	"github.com/JaimeStill/certify/pkg/repository"
)

// Store is a PostgreSQL store.Store. Direct calls run on the pool; WithTx
// binds the same queries to a transaction.
type Store struct {
	queries
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New creates a Store over db.
func New(db *sql.DB) *Store {
	return &Store{
		queries: queries{conn: db},
		db:      db,
	}
}

// WithTx runs fn in a transaction, rolling back when fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return repository.Transact(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&queries{conn: tx})
	})
}

type queries struct {
	conn repository.Conn
}

func mapErr(err error) error {
	return repository.MapError(err, certification.ErrNotFound, certification.ErrDuplicate)
}

// wrap maps err to a domain error and names the entity it concerns.
func wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), mapErr(err))
}

// sortable drops sort fields the projection does not map.
func sortable(p *query.ProjectionMap, fields []query.SortField) []query.SortField {
	return slices.DeleteFunc(slices.Clone(fields), func(f query.SortField) bool {
		return !p.Has(f.Field)
	})
}
