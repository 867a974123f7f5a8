package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/fastprodman/ledgerengine/internal/config"
)

var ErrLengthMismatch = errors.New("balances and amounts differ in length")

// Kernel is the data-parallel step of a batch: for every index it computes
// balance+amount and accepts the result when it is not negative. Indexes are
// independent and inputs are never modified.
type Kernel interface {
	Apply(ctx context.Context, balances, amounts []int64) (next []int64, accepted []bool, err error)
}

func NewKernel(name string) (Kernel, error) {
	switch name {
	case config.KernelArrow:
		return NewArrowKernel(), nil
	case config.KernelParallel:
		return ParallelKernel{}, nil
	case config.KernelSequential:
		return SequentialKernel{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown batch kernel %q", config.ErrInvalidConfig, name)
	}
}

// SequentialKernel is the plain loop every other kernel must agree with.
type SequentialKernel struct{}

func (SequentialKernel) Apply(_ context.Context, balances, amounts []int64) ([]int64, []bool, error) {
	if len(balances) != len(amounts) {
		return nil, nil, ErrLengthMismatch
	}

	next := make([]int64, len(balances))
	accepted := make([]bool, len(balances))
	applyRange(balances, amounts, next, accepted)

	return next, accepted, nil
}

func applyRange(balances, amounts, next []int64, accepted []bool) {
	for i := range balances {
		next[i] = balances[i] + amounts[i]
		accepted[i] = next[i] >= 0
	}
}

const defaultChunkSize = 4096

// ParallelKernel splits the batch into chunks processed on separate
// goroutines.
type ParallelKernel struct {
	ChunkSize int
	Workers   int
}

func (k ParallelKernel) Apply(ctx context.Context, balances, amounts []int64) ([]int64, []bool, error) {
	if len(balances) != len(amounts) {
		return nil, nil, ErrLengthMismatch
	}

	chunk := k.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	workers := k.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	next := make([]int64, len(balances))
	accepted := make([]bool, len(balances))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for lo := 0; lo < len(balances); lo += chunk {
		hi := min(lo+chunk, len(balances))

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			applyRange(balances[lo:hi], amounts[lo:hi], next[lo:hi], accepted[lo:hi])

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, nil, fmt.Errorf("parallel kernel: %w", err)
	}

	return next, accepted, nil
}
