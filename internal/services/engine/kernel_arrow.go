package engine

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/arrow/scalar"
)

// ArrowKernel runs the batch step as columnar compute: one vectorized add
// followed by a comparison against zero.
type ArrowKernel struct {
	allocator memory.Allocator
}

func NewArrowKernel() *ArrowKernel {
	return &ArrowKernel{allocator: memory.DefaultAllocator}
}

func NewArrowKernelWithAllocator(mem memory.Allocator) *ArrowKernel {
	return &ArrowKernel{allocator: mem}
}

func (k *ArrowKernel) Apply(ctx context.Context, balances, amounts []int64) ([]int64, []bool, error) {
	if len(balances) != len(amounts) {
		return nil, nil, ErrLengthMismatch
	}

	if len(balances) == 0 {
		return []int64{}, []bool{}, nil
	}

	balArr := k.column(balances)
	defer balArr.Release()

	amtArr := k.column(amounts)
	defer amtArr.Release()

	ctx = compute.WithAllocator(ctx, k.allocator)

	sum, err := compute.Add(ctx, compute.ArithmeticOptions{NoCheckOverflow: true},
		compute.NewDatum(balArr), compute.NewDatum(amtArr))
	if err != nil {
		return nil, nil, fmt.Errorf("add: %w", err)
	}
	defer sum.Release()

	zero := compute.NewDatum(scalar.NewInt64Scalar(0))
	defer zero.Release()

	ge, err := compute.CallFunction(ctx, "greater_equal", nil, sum, zero)
	if err != nil {
		return nil, nil, fmt.Errorf("greater_equal: %w", err)
	}
	defer ge.Release()

	sumArr, err := resultArray[*array.Int64](sum)
	if err != nil {
		return nil, nil, fmt.Errorf("add: %w", err)
	}
	defer sumArr.Release()

	geArr, err := resultArray[*array.Boolean](ge)
	if err != nil {
		return nil, nil, fmt.Errorf("greater_equal: %w", err)
	}
	defer geArr.Release()

	next := make([]int64, len(balances))
	copy(next, sumArr.Int64Values())

	accepted := make([]bool, len(balances))
	for i := range accepted {
		accepted[i] = geArr.Value(i)
	}

	return next, accepted, nil
}

func (k *ArrowKernel) column(values []int64) arrow.Array {
	b := array.NewInt64Builder(k.allocator)
	defer b.Release()

	b.AppendValues(values, nil)

	return b.NewArray()
}

func resultArray[T arrow.Array](d compute.Datum) (T, error) {
	var zero T

	ad, ok := d.(*compute.ArrayDatum)
	if !ok {
		return zero, fmt.Errorf("unexpected datum kind %s", d.Kind())
	}

	arr := ad.MakeArray()

	out, ok := arr.(T)
	if !ok {
		arr.Release()
		return zero, fmt.Errorf("unexpected result type %s", arr.DataType())
	}

	return out, nil
}
