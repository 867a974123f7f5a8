// Package memory is an in-process account store. Transactions are fully
// serialized and staged, so a failed unit of work leaves nothing behind.
// Faults can be injected to exercise retry paths.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
)

var ErrInjected = errors.New("injected store failure")

var (
	_ accounts.Store = (*Store)(nil)
	_ accounts.Tx    = (*tx)(nil)
)

type Store struct {
	// txMu serializes units of work, standing in for row locks.
	txMu sync.Mutex

	mu       sync.Mutex
	balances map[string]int64
	entries  []accounts.Entry
	failNext int
	attempts int
	hold     time.Duration
	poisoned map[string]error
}

func New(balances map[string]int64) *Store {
	s := &Store{balances: make(map[string]int64, len(balances))}
	maps.Copy(s.balances, balances)

	return s
}

// FailNext makes the next n transactions fail at commit with ErrInjected.
func (s *Store) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failNext = n
}

// Poison makes every read that touches accountID fail with err, the way
// Postgres refuses a value it cannot encode.
func (s *Store) Poison(accountID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned == nil {
		s.poisoned = make(map[string]error)
	}

	s.poisoned[accountID] = err
}

// HoldLocks makes every transaction keep its lock for d before committing.
func (s *Store) HoldLocks(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hold = d
}

// Attempts counts every WithinTx call, committed or not.
func (s *Store) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.attempts
}

// Ledger returns a copy of all committed entries in append order.
func (s *Store) Ledger() []accounts.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.entries)
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx accounts.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.attempts++
	hold := s.hold
	s.mu.Unlock()

	err := ctx.Err()
	if err != nil {
		return err
	}

	t := &tx{store: s, staged: make(map[string]int64)}

	err = fn(t)
	if err != nil {
		return err
	}

	if hold > 0 {
		time.Sleep(hold)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext > 0 {
		s.failNext--
		return ErrInjected
	}

	maps.Copy(s.balances, t.staged)
	s.entries = append(s.entries, t.entries...)

	return nil
}

func (s *Store) Balance(ctx context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal, ok := s.balances[accountID]
	if !ok {
		return 0, accounts.ErrAccountNotFound
	}

	return bal, nil
}

func (s *Store) MeanBalance(ctx context.Context) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.balances) == 0 {
		return 0, false, nil
	}

	var sum float64
	for _, b := range s.balances {
		sum += float64(b)
	}

	return sum / float64(len(s.balances)), true, nil
}

func (s *Store) Entries(ctx context.Context, accountID string, limit uint64) ([]accounts.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []accounts.Entry

	for i := len(s.entries) - 1; i >= 0 && uint64(len(out)) < limit; i-- {
		if s.entries[i].AccountID == accountID {
			out = append(out, s.entries[i])
		}
	}

	return out, nil
}

// tx reads through its staged writes to the committed state.
type tx struct {
	store   *Store
	staged  map[string]int64
	entries []accounts.Entry
}

func (t *tx) lookup(accountID string) (int64, bool) {
	if bal, ok := t.staged[accountID]; ok {
		return bal, true
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	bal, ok := t.store.balances[accountID]

	return bal, ok
}

func (t *tx) poisoned(accountIDs ...string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, id := range accountIDs {
		if err, ok := t.store.poisoned[id]; ok {
			return err
		}
	}

	return nil
}

func (t *tx) GetBalance(ctx context.Context, accountID string) (int64, error) {
	err := t.poisoned(accountID)
	if err != nil {
		return 0, err
	}

	bal, ok := t.lookup(accountID)
	if !ok {
		return 0, accounts.ErrAccountNotFound
	}

	return bal, nil
}

func (t *tx) GetBalances(ctx context.Context, accountIDs []string) (map[string]int64, error) {
	err := t.poisoned(accountIDs...)
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(accountIDs))

	for _, id := range accountIDs {
		if bal, ok := t.lookup(id); ok {
			out[id] = bal
		}
	}

	return out, nil
}

func (t *tx) SetBalance(ctx context.Context, accountID string, balance int64) error {
	if _, ok := t.lookup(accountID); !ok {
		return accounts.ErrAccountNotFound
	}

	t.staged[accountID] = balance

	return nil
}

func (t *tx) SetBalances(ctx context.Context, balances map[string]int64) error {
	for id, bal := range balances {
		if _, ok := t.lookup(id); ok {
			t.staged[id] = bal
		}
	}

	return nil
}

func (t *tx) AppendEntry(ctx context.Context, e accounts.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	t.entries = append(t.entries, e)

	return nil
}

func (t *tx) AppendEntries(ctx context.Context, es []accounts.Entry) error {
	for _, e := range es {
		_ = t.AppendEntry(ctx, e)
	}

	return nil
}
