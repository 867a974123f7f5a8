package deadletters

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Letter describes a request that was dropped after its retries ran out.
type Letter struct {
	RequestID  uuid.UUID `json:"request_id"`
	AccountID  string    `json:"account_id"`
	Amount     int64     `json:"amount"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	FailedAt   time.Time `json:"failed_at"`
	Attempts   int       `json:"attempts"`
	Reason     string    `json:"reason"`
}

type Sink interface {
	Publish(ctx context.Context, letters ...Letter) error
}

// LogSink only records letters in the process log.
type LogSink struct{}

func (LogSink) Publish(_ context.Context, letters ...Letter) error {
	for _, l := range letters {
		slog.Error("request dead-lettered",
			"request_id", l.RequestID,
			"account_id", l.AccountID,
			"amount", l.Amount,
			"attempts", l.Attempts,
			"reason", l.Reason,
		)
	}

	return nil
}
