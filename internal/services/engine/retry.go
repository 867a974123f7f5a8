package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy retries storage failures with linearly growing waits: a failed
// attempt n is followed by a pause of n*BaseDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether an error may clear on another attempt.
	// Nil retries every error.
	Retryable func(error) bool
}

// Do runs op until it succeeds, fails permanently, runs out of attempts or
// ctx ends. It reports how many attempts were made.
func (p RetryPolicy) Do(ctx context.Context, op func() error) (int, error) {
	attempts := 0

	operation := func() error {
		attempts++

		err := op()
		if err == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}

		return err
	}

	maxRetries := uint64(0)
	if p.MaxAttempts > 1 {
		maxRetries = uint64(p.MaxAttempts - 1)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&linearBackOff{base: p.BaseDelay}, maxRetries), ctx)

	err := backoff.RetryNotify(operation, b, func(err error, wait time.Duration) {
		slog.Warn("store attempt failed, retrying",
			"attempt", attempts,
			"wait", wait,
			"error", err,
		)
	})

	return attempts, err
}

type linearBackOff struct {
	base    time.Duration
	attempt int64
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.base
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// permanent reports whether err was classified as not worth retrying.
func (p RetryPolicy) permanent(err error) bool {
	return p.Retryable != nil && !p.Retryable(err)
}
