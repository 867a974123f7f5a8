// Package boundedqueue is a fixed-capacity FIFO safe for many producers and
// consumers. Pushing never blocks; popping can wait with a timeout; draining
// takes whatever is ready.
package boundedqueue

import (
	"context"
	"errors"
	"time"
)

var ErrFull = errors.New("queue is full")

// Queue is a bounded FIFO of T.
type Queue[T any] struct {
	items chan T
}

// New returns a queue holding at most capacity items. Capacity below 1 is
// raised to 1.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Queue[T]{items: make(chan T, capacity)}
}

// TryPush enqueues v or returns ErrFull immediately.
func (q *Queue[T]) TryPush(v T) error {
	select {
	case q.items <- v:
		return nil
	default:
		return ErrFull
	}
}

// Pop waits up to timeout for the next item. ok is false when the timeout
// elapses or ctx is done first.
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (v T, ok bool) {
	select {
	case v = <-q.items:
		return v, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v = <-q.items:
		return v, true
	case <-timer.C:
		return v, false
	case <-ctx.Done():
		return v, false
	}
}

// Drain removes up to n ready items without blocking. The result may be empty.
func (q *Queue[T]) Drain(n int) []T {
	if n <= 0 {
		return nil
	}

	ready := len(q.items)
	if ready == 0 {
		return nil
	}

	if ready < n {
		n = ready
	}

	out := make([]T, 0, n)

	for len(out) < n {
		select {
		case v := <-q.items:
			out = append(out, v)
		default:
			// another consumer won the race
			return out
		}
	}

	return out
}

// Len is the number of queued items. It does not disturb ordering.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Cap is the fixed capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.items)
}
