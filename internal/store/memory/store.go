// Package memory implements store.Store in process. Transactions run one at
// a time against a copy of the data and replace it on commit, so a failed
// transaction leaves no trace. It backs tests and single-process tooling.
package memory

import (
	"context"
	"sync"

	"github.com/JaimeStill/certify/internal/store"
)

// Store is an in-memory store.Store.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *dataset
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{data: newDataset()}
}

func (m *Store) view() *tx {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &tx{data: m.data}
}

// WithTx runs fn against a private copy of the data and publishes the copy
// when fn succeeds. Calling Store write methods from inside fn deadlocks;
// use tx instead.
func (m *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	work := m.data.clone()
	m.mu.RUnlock()

	if err := fn(&tx{data: work}); err != nil {
		return err
	}

	m.mu.Lock()
	m.data = work
	m.mu.Unlock()
	return nil
}

// PutUser adds or replaces a directory user.
func (m *Store) PutUser(u User) {
	m.mutate(func(d *dataset) {
		d.users[u.ID] = u
	})
}

// AddCohortMember adds userID to cohortID.
func (m *Store) AddCohortMember(cohortID, userID int64) {
	m.mutate(func(d *dataset) {
		if d.cohorts[cohortID] == nil {
			d.cohorts[cohortID] = make(map[int64]bool)
		}
		d.cohorts[cohortID][userID] = true
	})
}

// RemoveCohortMember removes userID from cohortID.
func (m *Store) RemoveCohortMember(cohortID, userID int64) {
	m.mutate(func(d *dataset) {
		delete(d.cohorts[cohortID], userID)
	})
}

func (m *Store) mutate(fn func(d *dataset)) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	fn(work)
	m.data = work
}
