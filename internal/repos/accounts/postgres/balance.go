package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
)

func (s *Store) Balance(ctx context.Context, accountID string) (int64, error) {
	var balance int64

	err := s.db.QueryRowContext(ctx, `
		SELECT balance
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, accounts.ErrAccountNotFound
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

// MeanBalance scans AVG as numeric so large balances keep their precision
// until the final conversion.
func (s *Store) MeanBalance(ctx context.Context) (float64, bool, error) {
	var avg decimal.NullDecimal

	err := s.db.QueryRowContext(ctx, `SELECT AVG(balance) FROM accounts`).Scan(&avg)
	if err != nil {
		return 0, false, fmt.Errorf("mean balance: %w", err)
	}

	if !avg.Valid {
		return 0, false, nil
	}

	return avg.Decimal.InexactFloat64(), true, nil
}
