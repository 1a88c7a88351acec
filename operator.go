// Package mapbatch implements a pipelined map-and-batch operator for a
// lazy data-processing pipeline: it applies a user transform to upstream
// records under a bounded parallelism cap and assembles the results into
// fixed-size batches, fusing per-element transformation and batching into
// a single concurrency-coordinated operator.
package mapbatch

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Operator is the concurrency coordinator described by spec §1: a ring of
// in-flight batches, a dispatcher, and the consumer-facing NextBatch
// operation, plus checkpoint save/restore of the whole in-flight state.
//
// Lock order, per spec §5, is strictly outerMu -> innerMu -> slot.mu.
// Violating it is a bug; see completeInvocation in invocation.go for the
// one sanctioned two-phase exception (slot.mu released before innerMu is
// briefly re-taken to decrement numCallsG).
type Operator struct {
	id     uuid.UUID
	config Config

	upstream  Upstream
	transform Transform
	runner    Runner

	outerMu sync.Mutex // serializes NextBatch, Save, Restore

	innerMu sync.Mutex
	innerCv sync.Cond // innerCv.L == &innerMu

	ring         []*batchSlot
	inputIndex   int64
	outputIndex  int64
	callCounter  int64
	numCallsG    int64 // num_calls_global
	cancelled    bool
	dispatcherWG sync.WaitGroup
	dispatchOnce sync.Once
}

// NewOperator constructs the operator per spec §4.6: validates
// batch_size/parallelism, takes ownership of upstream, and sizes the ring.
func NewOperator(upstream Upstream, transform Transform, runner Runner, opts ...Option) (*Operator, Status) {
	cfg := buildConfig(opts...)
	if st := cfg.validate(); !st.Ok() {
		return nil, st
	}
	if runner == nil {
		runner = GoRunner{}
	}
	ringLen := cfg.ringLength()
	op := &Operator{
		id:        uuid.New(),
		config:    cfg,
		upstream:  upstream,
		transform: transform,
		runner:    runner,
		ring:      make([]*batchSlot, ringLen),
	}
	op.innerCv.L = &op.innerMu
	for i := range op.ring {
		s := newBatchSlot(int64(i))
		s.initialize(cfg.BatchSize)
		op.ring[i] = s
	}
	logger.Debug("operator constructed", "op", op.id, "batch_size", cfg.BatchSize,
		"parallelism", cfg.Parallelism, "ring_length", ringLen, "drop_remainder", cfg.DropRemainder)
	return op, Status{}
}

// slotAt returns the ring slot for a batch index, applying spec §3's
// "taken modulo ring length when addressing a slot" rule.
func (op *Operator) slotAt(batchIndex int64) *batchSlot {
	return op.ring[batchIndex%int64(len(op.ring))]
}

// ringFull reports spec §3's scheduling-fullness condition, evaluated with
// innerMu held.
func (op *Operator) ringFull() bool {
	return op.outputIndex-op.inputIndex == int64(len(op.ring))
}

// Close implements spec §4.6's destruction sequence: signal cancellation,
// wake the dispatcher, and wait until no invocations remain in flight so
// that no callback runs after the operator is gone.
func (op *Operator) Close(ctx context.Context) {
	op.innerMu.Lock()
	op.cancelled = true
	op.innerCv.Broadcast()
	for op.numCallsG > 0 {
		op.innerCv.Wait()
	}
	op.innerMu.Unlock()
	op.dispatcherWG.Wait()
	logger.Debug("operator closed", "op", op.id)
}

// ensureDispatcherStarted lazily launches the single long-lived dispatcher
// task on first consumer call, per spec §4.3.
func (op *Operator) ensureDispatcherStarted(ctx context.Context) {
	op.dispatchOnce.Do(func() {
		op.dispatcherWG.Add(1)
		go func() {
			defer op.dispatcherWG.Done()
			op.runDispatcher(ctx)
		}()
	})
}
