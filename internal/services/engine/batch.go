package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/ledgerengine/internal/metrics"
	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
)

// Batch drains many requests at a time and settles them in one store
// transaction: one locked read of every involved account, one kernel pass per
// occurrence round, one bulk write of balances and ledger entries.
type Batch struct {
	deps      Deps
	policy    RetryPolicy
	kernel    Kernel
	batchSize int
	idleDelay time.Duration
}

func NewBatch(deps Deps, policy RetryPolicy, kernel Kernel, batchSize int, idleDelay time.Duration) *Batch {
	return &Batch{
		deps:      deps,
		policy:    policy,
		kernel:    kernel,
		batchSize: max(batchSize, 1),
		idleDelay: idleDelay,
	}
}

func (b *Batch) Name() string { return "batch" }

func (b *Batch) Run(ctx context.Context) error {
	slog.Info("batch executor started",
		"batch_size", b.batchSize,
		"kernel", fmt.Sprintf("%T", b.kernel),
	)

	idle := time.NewTimer(b.idleDelay)
	defer idle.Stop()

	for ctx.Err() == nil {
		reqs := b.deps.Queue.Drain(b.batchSize)
		if len(reqs) > 0 {
			b.Process(ctx, reqs)
			continue
		}

		idle.Reset(b.idleDelay)

		select {
		case <-ctx.Done():
		case <-idle.C:
		}
	}

	slog.Info("batch executor stopped")

	return nil
}

// Process settles one batch. The whole batch is retried as a unit and is
// dead-lettered as a unit when retries run out. A permanent failure falls
// back to one transaction per request, so a single bad row only costs its
// own request.
func (b *Batch) Process(ctx context.Context, reqs []Request) {
	txCtx := context.WithoutCancel(ctx)

	var plan batchPlan

	attempts, err := b.policy.Do(ctx, func() error {
		var err error
		plan, err = b.apply(txCtx, reqs)
		return err
	})
	if err != nil {
		if len(reqs) > 1 && ctx.Err() == nil && b.policy.permanent(err) {
			slog.Warn("batch failed permanently, settling one by one",
				"size", len(reqs),
				"error", err,
			)

			for _, r := range reqs {
				settle(ctx, b.deps, b.policy, r)
			}

			return
		}

		deadLetter(ctx, b.deps, reqs, attempts, err)

		return
	}

	b.record(reqs, plan)
}

func (b *Batch) apply(ctx context.Context, reqs []Request) (batchPlan, error) {
	var plan batchPlan

	err := b.deps.Store.WithinTx(ctx, func(tx accounts.Tx) error {
		snapshot, err := tx.GetBalances(ctx, distinctAccounts(reqs))
		if err != nil {
			return fmt.Errorf("get balances: %w", err)
		}

		plan, err = planBatch(ctx, b.kernel, reqs, snapshot)
		if err != nil {
			return err
		}

		err = tx.SetBalances(ctx, plan.balances)
		if err != nil {
			return fmt.Errorf("set balances: %w", err)
		}

		now := time.Now().UTC()
		entries := make([]accounts.Entry, len(reqs))

		for i, r := range reqs {
			entries[i] = r.entry(plan.outcomes[i], now)
		}

		err = tx.AppendEntries(ctx, entries)
		if err != nil {
			return fmt.Errorf("append entries: %w", err)
		}

		return nil
	})
	if err != nil {
		return batchPlan{}, err
	}

	return plan, nil
}

func (b *Batch) record(reqs []Request, plan batchPlan) {
	o := metrics.Outcomes{Latencies: make([]time.Duration, len(reqs))}
	now := time.Now()

	for i, r := range reqs {
		o.Inc(plan.outcomes[i].counter(r.Amount))
		o.Latencies[i] = now.Sub(r.EnqueuedAt)
	}

	b.deps.Metrics.Record(o)

	slog.Debug("batch settled", "size", len(reqs))
}
