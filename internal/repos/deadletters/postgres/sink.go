package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fastprodman/ledgerengine/internal/repos/deadletters"
)

var _ deadletters.Sink = (*Sink)(nil)

type Sink struct{ db *sql.DB }

func New(db *sql.DB) *Sink {
	return &Sink{db: db}
}

func (s *Sink) Publish(ctx context.Context, letters ...deadletters.Letter) error {
	if len(letters) == 0 {
		return nil
	}

	var (
		requestIDs = make([]string, len(letters))
		accountIDs = make([]string, len(letters))
		amounts    = make([]int64, len(letters))
		enqueued   = make([]time.Time, len(letters))
		failed     = make([]time.Time, len(letters))
		attempts   = make([]int32, len(letters))
		reasons    = make([]string, len(letters))
	)

	for i, l := range letters {
		requestIDs[i] = l.RequestID.String()
		accountIDs[i] = l.AccountID
		amounts[i] = l.Amount
		enqueued[i] = l.EnqueuedAt
		failed[i] = l.FailedAt
		attempts[i] = int32(l.Attempts) //nolint:gosec
		reasons[i] = l.Reason
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dead_letters (request_id, account_id, amount, enqueued_at, failed_at, attempts, reason)
		SELECT * FROM unnest(
			$1::uuid[], $2::text[], $3::bigint[], $4::timestamptz[], $5::timestamptz[], $6::integer[], $7::text[]
		)
	`, requestIDs, accountIDs, amounts, enqueued, failed, attempts, reasons)
	if err != nil {
		return fmt.Errorf("insert dead letters: %w", err)
	}

	return nil
}
