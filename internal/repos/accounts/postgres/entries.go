package postgres

import (
	"context"
	"fmt"

	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
)

func (s *Store) Entries(ctx context.Context, accountID string, limit uint64) ([]accounts.Entry, error) {
	query, args, err := psql.
		Select("request_id", "account_id", "amount", "success", "created_at").
		From("ledger_entries").
		Where("account_id = ?", accountID).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []accounts.Entry

	for rows.Next() {
		var e accounts.Entry

		err = rows.Scan(&e.RequestID, &e.AccountID, &e.Amount, &e.Success, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		out = append(out, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return out, nil
}
