package postgres

import (
	"context"
	"fmt"
	"slices"

	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
)

func (r *txRepo) SetBalance(ctx context.Context, accountID string, balance int64) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $2
		WHERE id = $1
	`, accountID, balance)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return accounts.ErrAccountNotFound
	}

	return nil
}

// SetBalances writes all balances in one statement. Rows missing from the
// table are ignored.
func (r *txRepo) SetBalances(ctx context.Context, balances map[string]int64) error {
	if len(balances) == 0 {
		return nil
	}

	ids := make([]string, 0, len(balances))
	for id := range balances {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	values := make([]int64, len(ids))
	for i, id := range ids {
		values[i] = balances[id]
	}

	_, err := r.tx.ExecContext(ctx, `
		UPDATE accounts AS a
		SET balance = v.balance
		FROM unnest($1::text[], $2::bigint[]) AS v(id, balance)
		WHERE a.id = v.id
	`, ids, values)
	if err != nil {
		return fmt.Errorf("set balances: %w", err)
	}

	return nil
}
