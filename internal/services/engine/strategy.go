package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/ledgerengine/internal/config"
	"github.com/fastprodman/ledgerengine/internal/metrics"
	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
	"github.com/fastprodman/ledgerengine/internal/repos/deadletters"
	"github.com/fastprodman/ledgerengine/pkg/boundedqueue"
)

// Strategy consumes the pending queue until ctx is cancelled.
type Strategy interface {
	Name() string
	// Run blocks until ctx is done and returns nil on a clean stop.
	Run(ctx context.Context) error
}

// Deps are the collaborators shared by every strategy.
type Deps struct {
	Queue       *boundedqueue.Queue[Request]
	Store       accounts.Store
	Metrics     *metrics.Aggregator
	DeadLetters deadletters.Sink
	// Retryable classifies store errors; nil retries all of them.
	Retryable func(error) bool
}

func NewStrategy(cfg config.Engine, deps Deps) (Strategy, error) {
	policy := RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		Retryable:   deps.Retryable,
	}

	switch cfg.Strategy {
	case config.StrategySerial:
		return NewSerial(deps, policy, cfg.Workers, cfg.PopTimeout), nil
	case config.StrategyBatch:
		kernel, err := NewKernel(cfg.BatchKernel)
		if err != nil {
			return nil, err
		}

		return NewBatch(deps, policy, kernel, cfg.BatchSize, cfg.IdleDelay), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", config.ErrInvalidConfig, cfg.Strategy)
	}
}

// deadLetter hands requests whose retries ran out to the sink. A sink
// failure is only logged; the requests are lost at that point.
func deadLetter(ctx context.Context, deps Deps, reqs []Request, attempts int, cause error) {
	now := time.Now()
	letters := make([]deadletters.Letter, len(reqs))

	for i, r := range reqs {
		letters[i] = deadletters.Letter{
			RequestID:  r.ID,
			AccountID:  r.AccountID,
			Amount:     r.Amount,
			EnqueuedAt: r.EnqueuedAt,
			FailedAt:   now,
			Attempts:   attempts,
			Reason:     cause.Error(),
		}
	}

	deps.Metrics.Add(metrics.DeadLettered, uint64(len(reqs)))

	slog.Error("retries exhausted",
		"requests", len(reqs),
		"attempts", attempts,
		"error", cause,
	)

	if deps.DeadLetters == nil {
		return
	}

	// the run context may already be cancelled during shutdown
	err := deps.DeadLetters.Publish(context.WithoutCancel(ctx), letters...)
	if err != nil {
		slog.Error("dead-letter publish failed, requests lost",
			"requests", len(reqs),
			"error", err,
		)
	}
}
