package engine

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fastprodman/ledgerengine/internal/metrics"
	"github.com/fastprodman/ledgerengine/pkg/boundedqueue"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrQueueFull    = errors.New("queue is full")
)

// Admission is the non-blocking gate in front of the pending queue.
type Admission struct {
	queue   *boundedqueue.Queue[Request]
	metrics *metrics.Aggregator
}

func NewAdmission(queue *boundedqueue.Queue[Request], m *metrics.Aggregator) *Admission {
	return &Admission{queue: queue, metrics: m}
}

// Submit enqueues a request or fails at once. A nil amount means the caller
// did not send one.
func (a *Admission) Submit(accountID string, amount *int64) (Request, error) {
	if amount == nil || !validAccountID(accountID) {
		return Request{}, ErrInvalidInput
	}

	req := NewRequest(accountID, *amount)

	err := a.metrics.Admit(func() error {
		return a.queue.TryPush(req)
	})
	if err != nil {
		if errors.Is(err, boundedqueue.ErrFull) {
			a.metrics.Inc(metrics.AdmissionRejected)
			return Request{}, ErrQueueFull
		}

		return Request{}, fmt.Errorf("enqueue: %w", err)
	}

	return req, nil
}

// validAccountID rejects ids the store cannot hold: Postgres text refuses NUL
// bytes and invalid UTF-8.
func validAccountID(id string) bool {
	return id != "" && utf8.ValidString(id) && !strings.ContainsRune(id, 0)
}
