// Package metrics holds the engine's in-process counters and bounded
// histories behind a single lock, so one snapshot is always self-consistent.
package metrics

import (
	"sync"
	"time"
)

type Counter string

const (
	Deposits          Counter = "deposits"
	Withdrawals       Counter = "withdrawals"
	InsufficientFunds Counter = "insufficient_funds"
	UnknownAccount    Counter = "unknown_account"
	BalanceOverflow   Counter = "balance_overflow"
	AdmissionRejected Counter = "admission_rejected"
	DeadLettered      Counter = "dead_lettered"
)

// Counters lists every counter in display order.
var Counters = []Counter{
	Deposits, Withdrawals, InsufficientFunds, UnknownAccount, BalanceOverflow, AdmissionRejected, DeadLettered,
}

const (
	LatencyHistorySize        = 1000
	QueueDepthHistorySize     = 100
	AverageBalanceHistorySize = 100
)

type Snapshot struct {
	Counters              map[Counter]uint64
	TotalAdmitted         uint64
	LatencySeconds        []float64
	QueueDepthHistory     []int
	AverageBalanceHistory []float64
	QueueDepth            int
}

type Aggregator struct {
	depth func() int

	mu            sync.Mutex
	counters      map[Counter]uint64
	totalAdmitted uint64
	latencies     *ring[float64]
	depths        *ring[int]
	averages      *ring[float64]

	// running totals for export; the latency ring only keeps a window
	latencyCount uint64
	latencySum   float64
}

// New returns an empty aggregator. depth reports the current queue depth and
// may be nil.
func New(depth func() int) *Aggregator {
	if depth == nil {
		depth = func() int { return 0 }
	}

	return &Aggregator{
		depth:     depth,
		counters:  make(map[Counter]uint64, len(Counters)),
		latencies: newRing[float64](LatencyHistorySize),
		depths:    newRing[int](QueueDepthHistorySize),
		averages:  newRing[float64](AverageBalanceHistorySize),
	}
}

func (a *Aggregator) Inc(c Counter) {
	a.Add(c, 1)
}

func (a *Aggregator) Add(c Counter, n uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counters[c] += n
}

func (a *Aggregator) Admitted() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalAdmitted++
}

// Admit runs push under the aggregator lock and counts the request as
// admitted when push succeeds. No snapshot or outcome can be recorded between
// the enqueue and the count.
func (a *Aggregator) Admit(push func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := push()
	if err != nil {
		return err
	}

	a.totalAdmitted++

	return nil
}

// ObserveLatency appends enqueue-to-commit durations in one critical section.
func (a *Aggregator) ObserveLatency(ds ...time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, d := range ds {
		a.observeLocked(d)
	}
}

func (a *Aggregator) observeLocked(d time.Duration) {
	s := d.Seconds()

	a.latencies.push(s)
	a.latencyCount++
	a.latencySum += s
}

// Outcomes is a set of counter increments and latency samples applied
// together.
type Outcomes struct {
	Counts    map[Counter]uint64
	Latencies []time.Duration
}

func (o *Outcomes) Inc(c Counter) {
	if o.Counts == nil {
		o.Counts = make(map[Counter]uint64)
	}

	o.Counts[c]++
}

func (a *Aggregator) Record(o Outcomes) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for c, n := range o.Counts {
		a.counters[c] += n
	}

	for _, d := range o.Latencies {
		a.observeLocked(d)
	}
}

func (a *Aggregator) ObserveAverageBalance(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.averages.push(v)
}

// Snapshot reads the queue depth, records it in the depth history and copies
// every field, all under the same lock.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	depth := a.depth()
	a.depths.push(depth)

	counters := make(map[Counter]uint64, len(Counters))
	for _, c := range Counters {
		counters[c] = a.counters[c]
	}

	return Snapshot{
		Counters:              counters,
		TotalAdmitted:         a.totalAdmitted,
		LatencySeconds:        a.latencies.values(),
		QueueDepthHistory:     a.depths.values(),
		AverageBalanceHistory: a.averages.values(),
		QueueDepth:            depth,
	}
}
