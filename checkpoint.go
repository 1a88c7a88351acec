package mapbatch

import "fmt"

// checkpoint key layout, relative to a caller-supplied prefix, per spec §6.
const (
	keyCallCounter       = "call_counter"
	keyInputBatch        = "input_batch"
	keyOutputBatch       = "output_batch"
	keyBatchResultsSize  = "batch_results_size"
	keyNumCalls          = "num_calls"
	keyNumElements       = "num_elements"
	keyOutputSize        = "output_size"
	keyEndOfInput        = "end_of_input"
	keyOutputAllocated   = "output_allocated"
	keyOutputPrefix      = "output_"
	keyStatusCode        = "status_code"
	keyStatusMsg         = "status_msg"
)

func slotPrefix(prefix string, i int) string {
	return fmt.Sprintf("%sbatch_results_%d_", prefix, i)
}

// Save implements spec §4.5: it drains in-flight work to a quiescent point
// (num_calls_global == 0), then serializes the upstream state, the scalar
// counters, and every slot. prefix is the fully-qualified key prefix the
// caller wants this operator's state nested under (the iterator's
// full_name, in the original's terms).
func (op *Operator) Save(store CheckpointStore, prefix string) error {
	op.outerMu.Lock()
	defer op.outerMu.Unlock()

	op.innerMu.Lock()
	for op.numCallsG > 0 {
		op.innerCv.Wait()
	}
	defer op.innerMu.Unlock()

	if cu, ok := op.upstream.(CheckpointableUpstream); ok {
		if err := cu.SaveState(store, prefix); err != nil {
			return err
		}
	}
	if err := store.WriteScalar(prefix+keyCallCounter, op.callCounter); err != nil {
		return err
	}
	if err := store.WriteScalar(prefix+keyInputBatch, op.inputIndex); err != nil {
		return err
	}
	if err := store.WriteScalar(prefix+keyOutputBatch, op.outputIndex); err != nil {
		return err
	}
	if err := store.WriteScalar(prefix+keyBatchResultsSize, int64(len(op.ring))); err != nil {
		return err
	}
	for i, slot := range op.ring {
		if err := writeBatchResult(store, slotPrefix(prefix, i), slot, op.config.BatchSize); err != nil {
			return err
		}
	}
	logger.Debug("checkpoint saved", "op", op.id, "call_counter", op.callCounter,
		"input_batch", op.inputIndex, "output_batch", op.outputIndex)
	return nil
}

func writeBatchResult(store CheckpointStore, prefix string, slot *batchSlot, batchSize int64) error {
	snap := slot.snapshot()
	if snap.endOfInput {
		if err := store.WriteFlag(prefix + keyEndOfInput); err != nil {
			return err
		}
	}
	// num_calls is 0 post-drain for a slot whose invocations have all been
	// launched; a slot not yet fully scheduled keeps the count of
	// invocations still to be launched for it, which the restored
	// dispatcher then consumes.
	if err := store.WriteScalar(prefix+keyNumCalls, snap.numCalls); err != nil {
		return err
	}
	if err := store.WriteScalar(prefix+keyNumElements, snap.numElements); err != nil {
		return err
	}
	if snap.outputAllocated {
		if err := store.WriteFlag(prefix + keyOutputAllocated); err != nil {
			return err
		}
	}
	if err := store.WriteScalar(prefix+keyOutputSize, int64(len(snap.output))); err != nil {
		return err
	}
	for i, comp := range snap.output {
		out := comp
		// A short slot only ever has meaningful data in its first
		// num_elements slabs; writing the rest would serialize
		// uninitialized memory, per spec §4.5.
		if snap.numElements < batchSize {
			partial, st := copyPartialBatch(comp, snap.numElements)
			if !st.Ok() {
				return st
			}
			out = partial
		}
		if err := store.WriteValue(fmt.Sprintf("%s%s%d", prefix, keyOutputPrefix, i), out); err != nil {
			return err
		}
	}
	return writeStatus(store, prefix, snap.status)
}

func writeStatus(store CheckpointStore, prefix string, status Status) error {
	if err := store.WriteScalar(prefix+keyStatusCode, int64(status.Code)); err != nil {
		return err
	}
	if !status.Ok() {
		return store.WriteString(prefix+keyStatusMsg, status.Error())
	}
	return nil
}

// Restore implements spec §4.5: restores the upstream, scalar counters,
// verifies ring_length matches (a mismatch is fatal per spec §7), then
// reads each slot back.
func (op *Operator) Restore(store CheckpointStore, prefix string) error {
	op.outerMu.Lock()
	defer op.outerMu.Unlock()
	op.innerMu.Lock()
	defer op.innerMu.Unlock()

	if cu, ok := op.upstream.(CheckpointableUpstream); ok {
		if err := cu.RestoreState(store, prefix); err != nil {
			return err
		}
	}
	callCounter, err := store.ReadScalar(prefix + keyCallCounter)
	if err != nil {
		return err
	}
	inputBatch, err := store.ReadScalar(prefix + keyInputBatch)
	if err != nil {
		return err
	}
	outputBatch, err := store.ReadScalar(prefix + keyOutputBatch)
	if err != nil {
		return err
	}
	size, err := store.ReadScalar(prefix + keyBatchResultsSize)
	if err != nil {
		return err
	}
	if size != int64(len(op.ring)) {
		panic(fmt.Sprintf("mapbatch: restored ring_length %d does not match configured %d", size, len(op.ring)))
	}

	for i, slot := range op.ring {
		if err := readBatchResult(store, slotPrefix(prefix, i), slot, op.config.BatchSize); err != nil {
			return err
		}
	}

	op.callCounter = callCounter
	op.inputIndex = inputBatch
	op.outputIndex = outputBatch
	logger.Debug("checkpoint restored", "op", op.id, "call_counter", callCounter,
		"input_batch", inputBatch, "output_batch", outputBatch)
	return nil
}

func readBatchResult(store CheckpointStore, prefix string, slot *batchSlot, batchSize int64) error {
	slot.mu.Lock()
	defer slot.mu.Unlock()

	slot.endOfInput = store.Contains(prefix + keyEndOfInput)
	numCalls, err := store.ReadScalar(prefix + keyNumCalls)
	if err != nil {
		return err
	}
	slot.numCalls = numCalls
	numElements, err := store.ReadScalar(prefix + keyNumElements)
	if err != nil {
		return err
	}
	slot.numElements = numElements
	slot.outputAllocated = store.Contains(prefix + keyOutputAllocated)

	outputSize, err := store.ReadScalar(prefix + keyOutputSize)
	if err != nil {
		return err
	}
	output := make(Batch, outputSize)
	for i := range output {
		v, err := store.ReadValue(fmt.Sprintf("%s%s%d", prefix, keyOutputPrefix, i))
		if err != nil {
			return err
		}
		if v.Shape[0] < batchSize {
			padded, st := padToBatchSize(v, batchSize)
			if !st.Ok() {
				return st
			}
			v = padded
		}
		output[i] = v
	}
	slot.output = output

	status, err := readStatus(store, prefix)
	if err != nil {
		return err
	}
	slot.status = status
	return nil
}

func readStatus(store CheckpointStore, prefix string) (Status, error) {
	code, err := store.ReadScalar(prefix + keyStatusCode)
	if err != nil {
		return Status{}, err
	}
	if Code(code) == OK {
		return Status{}, nil
	}
	msg, err := store.ReadString(prefix + keyStatusMsg)
	if err != nil {
		return Status{}, err
	}
	return Status{Code: Code(code), Err: fmt.Errorf("%s", msg)}, nil
}
