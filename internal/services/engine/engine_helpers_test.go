package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fastprodman/ledgerengine/internal/metrics"
	"github.com/fastprodman/ledgerengine/internal/repos/accounts/memory"
	"github.com/fastprodman/ledgerengine/internal/repos/deadletters"
	"github.com/fastprodman/ledgerengine/pkg/boundedqueue"
)

type recordingSink struct {
	mu      sync.Mutex
	letters []deadletters.Letter
}

func (s *recordingSink) Publish(_ context.Context, letters ...deadletters.Letter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.letters = append(s.letters, letters...)

	return nil
}

func (s *recordingSink) all() []deadletters.Letter {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]deadletters.Letter(nil), s.letters...)
}

type fixture struct {
	store *memory.Store
	queue *boundedqueue.Queue[Request]
	agg   *metrics.Aggregator
	sink  *recordingSink
	deps  Deps
}

func newFixture(balances map[string]int64, capacity int) *fixture {
	f := &fixture{
		store: memory.New(balances),
		queue: boundedqueue.New[Request](capacity),
		sink:  &recordingSink{},
	}

	f.agg = metrics.New(f.queue.Len)
	f.deps = Deps{
		Queue:       f.queue,
		Store:       f.store,
		Metrics:     f.agg,
		DeadLetters: f.sink,
	}

	return f
}

var fastRetry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func amount(v int64) *int64 { return &v }

// runUntilDrained runs s until the queue is empty and every admitted request
// has an outcome.
func runUntilDrained(t *testing.T, f *fixture, s Strategy, want uint64) {
	t.Helper()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		snap := f.agg.Snapshot()

		var total uint64
		for _, c := range metrics.Counters {
			if c == metrics.AdmissionRejected {
				continue
			}

			total += snap.Counters[c]
		}

		return total >= want
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
