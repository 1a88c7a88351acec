package mapbatch

import "context"

// NextBatch is the consumer-facing operation from spec §4.4: it waits for
// the head slot, finalizes it, and returns a batch, end-of-sequence, or a
// status. Concurrent calls are serialized by outerMu, keeping ordering
// trivial (spec §5's "no concurrent consumers" rule).
func (op *Operator) NextBatch(ctx context.Context) (Batch, bool, Status) {
	op.outerMu.Lock()
	defer op.outerMu.Unlock()

	op.ensureDispatcherStarted(ctx)

	op.innerMu.Lock()
	slot := op.slotAt(op.inputIndex)
	op.innerMu.Unlock()

	slot.waitUntilQuiescent()

	batch, eos, status := finalizeSlot(slot, op.config)

	slot.initialize(op.config.BatchSize)
	op.innerMu.Lock()
	op.inputIndex++
	op.innerCv.Broadcast()
	op.innerMu.Unlock()

	return batch, eos, status
}

// finalizeSlot implements spec §4.4's finalization rules. It runs after
// waitUntilQuiescent has confirmed num_calls == 0, so reading the slot's
// fields directly (without re-locking per field) is safe: no invocation
// can still be mutating them.
func finalizeSlot(slot *batchSlot, cfg Config) (Batch, bool, Status) {
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.numElements == 0 {
		return nil, true, Status{}
	}

	if !slot.status.Ok() {
		return nil, false, slot.status
	}

	if slot.numElements < cfg.BatchSize {
		if cfg.DropRemainder {
			return nil, true, Status{}
		}
		out := make(Batch, len(slot.output))
		for i, comp := range slot.output {
			partial, st := copyPartialBatch(comp, slot.numElements)
			if !st.Ok() {
				return nil, false, st
			}
			out[i] = partial
		}
		return out, false, Status{}
	}

	// Full batch: hand the slot's output straight to the caller.
	return slot.output, false, Status{}
}
