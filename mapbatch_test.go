package mapbatch

import (
	"context"
	"fmt"
	"sync"
)

// sliceUpstream is a small deterministic Upstream over a slice of int64
// values, used across the test suite the way splits_test.go's table-driven
// fixtures stand in for a real Beam source.
type sliceUpstream struct {
	mu     sync.Mutex
	values []int64
	idx    int
}

func newSliceUpstream(values ...int64) *sliceUpstream {
	return &sliceUpstream{values: values}
}

func (u *sliceUpstream) Next(ctx context.Context) (Record, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.idx >= len(u.values) {
		return nil, true, nil
	}
	v := u.values[u.idx]
	u.idx++
	return Record{{Kind: KindInt64, Shape: Shape{}, Data: []int64{v}}}, false, nil
}

func (u *sliceUpstream) SaveState(store CheckpointStore, prefix string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return store.WriteScalar(prefix+"upstream_idx", int64(u.idx))
}

func (u *sliceUpstream) RestoreState(store CheckpointStore, prefix string) error {
	idx, err := store.ReadScalar(prefix + "upstream_idx")
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.idx = int(idx)
	return nil
}

func recordValue(rec Record) int64 {
	return rec[0].Data.([]int64)[0]
}

// squareTransform squares the single int64 component of each record.
var squareTransform = TransformFunc(func(ctx context.Context, rec Record) (Result, error) {
	x := recordValue(rec)
	return Result{{Kind: KindInt64, Shape: Shape{}, Data: []int64{x * x}}}, nil
})

// identityTransform passes the record through unchanged.
var identityTransform = TransformFunc(func(ctx context.Context, rec Record) (Result, error) {
	x := recordValue(rec)
	return Result{{Kind: KindInt64, Shape: Shape{}, Data: []int64{x}}}, nil
})

// errorOnValue fails the transform call whose input equals bad.
func errorOnValue(bad int64) TransformFunc {
	return func(ctx context.Context, rec Record) (Result, error) {
		x := recordValue(rec)
		if x == bad {
			return nil, fmt.Errorf("transform failed on %d", x)
		}
		return Result{{Kind: KindInt64, Shape: Shape{}, Data: []int64{x}}}, nil
	}
}

func batchInts(b Batch) []int64 {
	if len(b) == 0 {
		return nil
	}
	return b[0].Data.([]int64)
}
