package mapbatch

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOperatorBasicSequence(t *testing.T) {
	ctx := context.Background()
	upstream := newSliceUpstream(0, 1, 2, 3, 4, 5)
	op, st := NewOperator(upstream, squareTransform, GoRunner{}, BatchSize(2), Parallelism(2))
	if !st.Ok() {
		t.Fatalf("NewOperator: %v", st)
	}

	want := [][]int64{{0, 1}, {4, 9}, {16, 25}}
	for i, w := range want {
		batch, eos, st := op.NextBatch(ctx)
		if !st.Ok() {
			t.Fatalf("NextBatch(%d): %v", i, st)
		}
		if eos {
			t.Fatalf("NextBatch(%d): unexpected end of sequence", i)
		}
		if got := batchInts(batch); !cmp.Equal(got, w) {
			t.Fatalf("NextBatch(%d) = %v, want %v", i, got, w)
		}
	}

	_, eos, st := op.NextBatch(ctx)
	if !st.Ok() {
		t.Fatalf("final NextBatch: %v", st)
	}
	if !eos {
		t.Fatalf("expected end of sequence after %d batches", len(want))
	}
}

func TestOperatorHigherParallelism(t *testing.T) {
	ctx := context.Background()
	upstream := newSliceUpstream(0, 1, 2, 3, 4, 5, 6, 7)
	op, st := NewOperator(upstream, squareTransform, GoRunner{}, BatchSize(2), Parallelism(4))
	if !st.Ok() {
		t.Fatalf("NewOperator: %v", st)
	}

	want := [][]int64{{0, 1}, {4, 9}, {16, 25}, {36, 49}}
	for i, w := range want {
		batch, eos, st := op.NextBatch(ctx)
		if !st.Ok() {
			t.Fatalf("NextBatch(%d): %v", i, st)
		}
		if eos {
			t.Fatalf("NextBatch(%d): unexpected end of sequence", i)
		}
		if got := batchInts(batch); !cmp.Equal(got, w) {
			t.Fatalf("NextBatch(%d) = %v, want %v (ordering must survive higher parallelism)", i, got, w)
		}
	}

	_, eos, st := op.NextBatch(ctx)
	if !st.Ok() || !eos {
		t.Fatalf("final NextBatch = (eos=%v, status=%v), want (true, Ok)", eos, st)
	}
}

func TestOperatorDropRemainderFalse(t *testing.T) {
	ctx := context.Background()
	upstream := newSliceUpstream(0, 1, 2, 3, 4) // 5 values -> short final batch of 1
	op, st := NewOperator(upstream, squareTransform, GoRunner{}, BatchSize(2), Parallelism(2), DropRemainder(false))
	if !st.Ok() {
		t.Fatalf("NewOperator: %v", st)
	}

	want := [][]int64{{0, 1}, {4, 9}, {16}}
	for i, w := range want {
		batch, eos, st := op.NextBatch(ctx)
		if !st.Ok() || eos {
			t.Fatalf("NextBatch(%d) = (eos=%v, status=%v)", i, eos, st)
		}
		if got := batchInts(batch); !cmp.Equal(got, w) {
			t.Fatalf("NextBatch(%d) = %v, want %v", i, got, w)
		}
	}
	if _, eos, st := op.NextBatch(ctx); !st.Ok() || !eos {
		t.Fatalf("expected end of sequence after short batch, got eos=%v status=%v", eos, st)
	}
}

func TestOperatorDropRemainderTrue(t *testing.T) {
	ctx := context.Background()
	upstream := newSliceUpstream(0, 1, 2, 3, 4)
	op, st := NewOperator(upstream, squareTransform, GoRunner{}, BatchSize(2), Parallelism(2), DropRemainder(true))
	if !st.Ok() {
		t.Fatalf("NewOperator: %v", st)
	}

	want := [][]int64{{0, 1}, {4, 9}}
	for i, w := range want {
		batch, eos, st := op.NextBatch(ctx)
		if !st.Ok() || eos {
			t.Fatalf("NextBatch(%d) = (eos=%v, status=%v)", i, eos, st)
		}
		if got := batchInts(batch); !cmp.Equal(got, w) {
			t.Fatalf("NextBatch(%d) = %v, want %v", i, got, w)
		}
	}
	if _, eos, st := op.NextBatch(ctx); !st.Ok() || !eos {
		t.Fatalf("drop_remainder should surface end of sequence directly, got eos=%v status=%v", eos, st)
	}
}

func TestOperatorTransformErrorIsolatedPerSlot(t *testing.T) {
	ctx := context.Background()
	upstream := newSliceUpstream(0, 1, 2, 3)
	op, st := NewOperator(upstream, errorOnValue(1), GoRunner{}, BatchSize(2), Parallelism(2))
	if !st.Ok() {
		t.Fatalf("NewOperator: %v", st)
	}

	// First batch covers records 0 and 1; record 1 fails the transform, so
	// the whole slot surfaces an error even though record 0 succeeded.
	_, eos, st := op.NextBatch(ctx)
	if st.Ok() {
		t.Fatalf("expected first batch to carry the transform error")
	}
	if eos {
		t.Fatalf("an error is not end of sequence")
	}

	// The failure must not poison later slots: records 2 and 3 succeed.
	batch, eos, st := op.NextBatch(ctx)
	if !st.Ok() {
		t.Fatalf("second NextBatch: %v", st)
	}
	if eos {
		t.Fatalf("unexpected end of sequence")
	}
	if got, want := batchInts(batch), []int64{2, 3}; !cmp.Equal(got, want) {
		t.Fatalf("second batch = %v, want %v", got, want)
	}

	if _, eos, st := op.NextBatch(ctx); !st.Ok() || !eos {
		t.Fatalf("expected end of sequence, got eos=%v status=%v", eos, st)
	}
}

func TestOperatorCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()

	upstream1 := newSliceUpstream(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	op1, st := NewOperator(upstream1, identityTransform, GoRunner{}, BatchSize(3), Parallelism(3), DropRemainder(false))
	if !st.Ok() {
		t.Fatalf("NewOperator: %v", st)
	}

	first, eos, st := op1.NextBatch(ctx)
	if !st.Ok() || eos {
		t.Fatalf("first NextBatch = (eos=%v, status=%v)", eos, st)
	}
	if got, want := batchInts(first), []int64{0, 1, 2}; !cmp.Equal(got, want) {
		t.Fatalf("first batch = %v, want %v", got, want)
	}

	store := NewYAMLStore()
	if err := op1.Save(store, "op/"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh operator, fresh upstream (same underlying source), restored
	// from the same store op1 saved into: it must resume exactly where op1
	// left off.
	upstream2 := newSliceUpstream(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	op2, st := NewOperator(upstream2, identityTransform, GoRunner{}, BatchSize(3), Parallelism(3), DropRemainder(false))
	if !st.Ok() {
		t.Fatalf("NewOperator (restored): %v", st)
	}
	if err := op2.Restore(store, "op/"); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	want := [][]int64{{3, 4, 5}, {6, 7, 8}, {9}}
	for i, w := range want {
		batch, eos, st := op2.NextBatch(ctx)
		if !st.Ok() || eos {
			t.Fatalf("restored NextBatch(%d) = (eos=%v, status=%v)", i, eos, st)
		}
		if got := batchInts(batch); !cmp.Equal(got, w) {
			t.Fatalf("restored NextBatch(%d) = %v, want %v", i, got, w)
		}
	}
	if _, eos, st := op2.NextBatch(ctx); !st.Ok() || !eos {
		t.Fatalf("expected end of sequence after restore, got eos=%v status=%v", eos, st)
	}
}

func TestYAMLStoreDumpLoadRoundTrip(t *testing.T) {
	store := NewYAMLStore()
	if err := store.WriteScalar("n", 42); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}
	if err := store.WriteFlag("flagged"); err != nil {
		t.Fatalf("WriteFlag: %v", err)
	}
	if err := store.WriteString("s", "hello"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	v := Value{Kind: KindInt64, Shape: Shape{3}, Data: []int64{1, 2, 3}}
	if err := store.WriteValue("v", v); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}

	data, err := store.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	loaded, err := LoadYAMLStore(data)
	if err != nil {
		t.Fatalf("LoadYAMLStore: %v", err)
	}

	n, err := loaded.ReadScalar("n")
	if err != nil || n != 42 {
		t.Fatalf("ReadScalar(n) = (%d, %v), want (42, nil)", n, err)
	}
	if !loaded.Contains("flagged") {
		t.Fatalf("Contains(flagged) = false, want true")
	}
	s, err := loaded.ReadString("s")
	if err != nil || s != "hello" {
		t.Fatalf("ReadString(s) = (%q, %v), want (\"hello\", nil)", s, err)
	}
	gotV, err := loaded.ReadValue("v")
	if err != nil {
		t.Fatalf("ReadValue(v): %v", err)
	}
	if got, want := gotV.Data.([]int64), []int64{1, 2, 3}; !cmp.Equal(got, want) {
		t.Fatalf("ReadValue(v).Data = %v, want %v", got, want)
	}
}
