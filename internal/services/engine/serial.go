package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fastprodman/ledgerengine/internal/metrics"
	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
)

// Serial applies one request per store transaction from a fixed pool of
// workers. Same-account requests serialize on the store's row lock.
type Serial struct {
	deps       Deps
	policy     RetryPolicy
	workers    int
	popTimeout time.Duration
}

func NewSerial(deps Deps, policy RetryPolicy, workers int, popTimeout time.Duration) *Serial {
	return &Serial{
		deps:       deps,
		policy:     policy,
		workers:    max(workers, 1),
		popTimeout: popTimeout,
	}
}

func (s *Serial) Name() string { return "serial" }

func (s *Serial) Run(ctx context.Context) error {
	slog.Info("serial executor started", "workers", s.workers)

	g, gctx := errgroup.WithContext(ctx)

	for range s.workers {
		g.Go(func() error {
			s.work(gctx)
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return fmt.Errorf("serial workers: %w", err)
	}

	slog.Info("serial executor stopped")

	return nil
}

func (s *Serial) work(ctx context.Context) {
	for ctx.Err() == nil {
		req, ok := s.deps.Queue.Pop(ctx, s.popTimeout)
		if !ok {
			continue
		}

		s.Process(ctx, req)
	}
}

// Process runs one request to completion: applied, rejected or
// dead-lettered.
func (s *Serial) Process(ctx context.Context, req Request) {
	settle(ctx, s.deps, s.policy, req)
}

// settle applies req in its own store transaction with retries. A started
// transaction is not interrupted by ctx; only the waits between attempts are.
func settle(ctx context.Context, deps Deps, policy RetryPolicy, req Request) {
	txCtx := context.WithoutCancel(ctx)

	var outcome Outcome

	attempts, err := policy.Do(ctx, func() error {
		var err error
		outcome, err = applyRequest(txCtx, deps.Store, req)
		return err
	})
	if err != nil {
		deadLetter(ctx, deps, []Request{req}, attempts, err)
		return
	}

	recordOutcome(deps.Metrics, req, outcome)
}

func applyRequest(ctx context.Context, store accounts.Store, req Request) (Outcome, error) {
	var outcome Outcome

	err := store.WithinTx(ctx, func(tx accounts.Tx) error {
		now := time.Now().UTC()

		balance, err := tx.GetBalance(ctx, req.AccountID)
		if err != nil {
			if !errors.Is(err, accounts.ErrAccountNotFound) {
				return fmt.Errorf("get balance: %w", err)
			}

			outcome = UnknownAccount

			return tx.AppendEntry(ctx, req.entry(outcome, now))
		}

		next := balance + req.Amount
		if next < 0 {
			outcome = rejection(req.Amount)

			return tx.AppendEntry(ctx, req.entry(outcome, now))
		}

		err = tx.SetBalance(ctx, req.AccountID, next)
		if err != nil {
			return fmt.Errorf("set balance: %w", err)
		}

		outcome = Applied

		return tx.AppendEntry(ctx, req.entry(outcome, now))
	})
	if err != nil {
		return 0, err
	}

	return outcome, nil
}

// recordOutcome runs after commit so retried attempts are never counted twice.
func recordOutcome(m *metrics.Aggregator, req Request, outcome Outcome) {
	o := metrics.Outcomes{}
	o.Inc(outcome.counter(req.Amount))

	switch outcome {
	case Applied:
		o.Latencies = []time.Duration{time.Since(req.EnqueuedAt)}
	case InsufficientFunds:
		slog.Debug("insufficient funds",
			"account_id", req.AccountID,
			"amount", req.Amount,
		)
	case UnknownAccount:
		slog.Warn("unknown account", "account_id", req.AccountID)
	case BalanceOverflow:
		slog.Warn("deposit overflows balance",
			"account_id", req.AccountID,
			"amount", req.Amount,
		)
	}

	m.Record(o)
}
