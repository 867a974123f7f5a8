package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
)

func (r *txRepo) AppendEntry(ctx context.Context, e accounts.Entry) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (request_id, account_id, amount, success, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.RequestID.String(), e.AccountID, e.Amount, e.Success, createdAt(e))
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	return nil
}

// AppendEntries inserts the whole slice with a single statement. Column
// arrays keep the parameter count fixed at five regardless of batch size.
func (r *txRepo) AppendEntries(ctx context.Context, es []accounts.Entry) error {
	if len(es) == 0 {
		return nil
	}

	var (
		requestIDs = make([]string, len(es))
		accountIDs = make([]string, len(es))
		amounts    = make([]int64, len(es))
		successes  = make([]bool, len(es))
		times      = make([]time.Time, len(es))
	)

	for i, e := range es {
		requestIDs[i] = e.RequestID.String()
		accountIDs[i] = e.AccountID
		amounts[i] = e.Amount
		successes[i] = e.Success
		times[i] = createdAt(e)
	}

	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (request_id, account_id, amount, success, created_at)
		SELECT * FROM unnest($1::uuid[], $2::text[], $3::bigint[], $4::boolean[], $5::timestamptz[])
	`, requestIDs, accountIDs, amounts, successes, times)
	if err != nil {
		return fmt.Errorf("append entries: %w", err)
	}

	return nil
}

func createdAt(e accounts.Entry) time.Time {
	if e.CreatedAt.IsZero() {
		return time.Now().UTC()
	}

	return e.CreatedAt
}
