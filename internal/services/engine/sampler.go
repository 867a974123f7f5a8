package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/fastprodman/ledgerengine/internal/metrics"
)

type meanBalancer interface {
	MeanBalance(ctx context.Context) (float64, bool, error)
}

// Sampler records the mean account balance on a fixed interval.
type Sampler struct {
	store    meanBalancer
	metrics  *metrics.Aggregator
	interval time.Duration
}

func NewSampler(store meanBalancer, m *metrics.Aggregator, interval time.Duration) *Sampler {
	return &Sampler{store: store, metrics: m, interval: interval}
}

// Run samples once right away and then every interval until ctx is done.
// Store errors never stop the loop.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.SampleOnce(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sampler) SampleOnce(ctx context.Context) {
	mean, ok, err := s.store.MeanBalance(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("sample average balance", "error", err)
		}

		return
	}

	if !ok {
		return
	}

	s.metrics.ObserveAverageBalance(mean)
}
