package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAccountNotFound = errors.New("account not found")

// Entry is one row of the append-only ledger. Every processed request leaves
// exactly one, whether or not it changed a balance.
type Entry struct {
	RequestID uuid.UUID
	AccountID string
	Amount    int64
	Success   bool
	CreatedAt time.Time
}

// Tx is the set of operations available inside one atomic unit of work.
type Tx interface {
	// GetBalance locks the account row for the rest of the transaction.
	GetBalance(ctx context.Context, accountID string) (int64, error)
	// GetBalances locks and returns every listed account that exists.
	// Missing ids are simply absent from the result.
	GetBalances(ctx context.Context, accountIDs []string) (map[string]int64, error)
	SetBalance(ctx context.Context, accountID string, balance int64) error
	SetBalances(ctx context.Context, balances map[string]int64) error
	AppendEntry(ctx context.Context, e Entry) error
	AppendEntries(ctx context.Context, es []Entry) error
}

type Store interface {
	// WithinTx runs fn in one transaction, committing only if fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Balance(ctx context.Context, accountID string) (int64, error)
	// MeanBalance returns ok=false when there are no accounts.
	MeanBalance(ctx context.Context) (mean float64, ok bool, err error)
	// Entries lists the newest ledger entries of one account first.
	Entries(ctx context.Context, accountID string, limit uint64) ([]Entry, error)
}
