package mapbatch

import "context"

// dispatchOne is the Go rendering of the original op's CallFunction and
// spec §4.2's TransformInvocation steps 1-2: given a slot and the offset
// within it, pull one upstream record and, if neither end-of-input nor an
// error was observed, submit it to the user transform via the host
// Runner. It is called synchronously, directly from the dispatcher's own
// goroutine (never spawned itself) — upstream must be consumed strictly
// sequentially (spec §5), which this achieves by having exactly one
// caller ever invoke it, one record at a time, in dispatch order.
//
// It must always end by decrementing both the slot's and the operator's
// in-flight counters exactly once, regardless of outcome, so that neither
// the consumer (waiting on the slot) nor the dispatcher/destructor
// (waiting on numCallsG) can deadlock.
func (op *Operator) dispatchOne(ctx context.Context, slot *batchSlot, offset int64) {
	rec, endOfInput, err := op.pullUpstream(ctx)

	slot.mu.Lock()
	slot.endOfInput = slot.endOfInput || endOfInput
	mergeStatus(&slot.status, FromError(err))
	done := slot.endOfInput || !slot.status.Ok()
	slot.mu.Unlock()

	if done {
		op.completeInvocation(slot)
		return
	}

	op.runner.Run(func() {
		op.transform.RunAsync(ctx, rec, func(result Result, err error) {
			op.invocationCallback(slot, offset, result, FromError(err))
		})
	})
}

// pullUpstream fetches one record, serialized under innerMu per spec §5's
// ordering guarantee that upstream is consumed strictly sequentially.
func (op *Operator) pullUpstream(ctx context.Context) (Record, bool, error) {
	op.innerMu.Lock()
	defer op.innerMu.Unlock()
	return op.upstream.Next(ctx)
}

// invocationCallback implements spec §4.2 step 3. The caller (the
// Transform's completion callback) may run on any goroutine.
func (op *Operator) invocationCallback(slot *batchSlot, offset int64, result Result, status Status) {
	slot.updateStatus(status)

	if status.Ok() {
		slot.ensureOutputAllocated(op.config.BatchSize, result)

		slot.mu.Lock()
		for i, comp := range result {
			if i >= len(slot.output) {
				break
			}
			if st := copyAtOffset(&slot.output[i], offset, comp); !st.Ok() {
				mergeStatus(&slot.status, st)
				break
			}
		}
		slot.mu.Unlock()
	}

	slot.recordElementWritten()
	op.completeInvocation(slot)
}

// completeInvocation is the two-phase completion spec's Design Notes call
// for: the slot's own counter is decremented under slot.mu (already done
// by markInvocationComplete's own locking), then the operator's global
// in-flight counter is decremented under innerMu in a separate critical
// section, waking both the dispatcher and any Close waiting for
// quiescence.
func (op *Operator) completeInvocation(slot *batchSlot) {
	slot.markInvocationComplete()

	op.innerMu.Lock()
	op.numCallsG--
	op.innerCv.Broadcast()
	op.innerMu.Unlock()
}
