package postgres

import (
	"context"
	"fmt"
)

func (r *txRepo) GetBalances(ctx context.Context, accountIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(accountIDs))
	if len(accountIDs) == 0 {
		return out, nil
	}

	// ordered locking keeps concurrent batches from deadlocking each other
	query, args, err := psql.
		Select("id", "balance").
		From("accounts").
		Where("id = ANY(?)", accountIDs).
		OrderBy("id").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lock/get balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      string
			balance int64
		)

		err = rows.Scan(&id, &balance)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}

		out[id] = balance
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}

	return out, nil
}
