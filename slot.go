package mapbatch

import "sync"

// batchSlot is one cell of the ring buffer: the Go rendering of the
// original op's BatchResult and spec §4.1's BatchSlot. It owns its own
// mutex/condvar pair, matching spec §5's per-slot lock discipline.
type batchSlot struct {
	mu sync.Mutex
	cv sync.Cond // cv.L == &mu

	index int64 // stable ring identity, for logging only

	output          Batch
	outputAllocated bool
	numElements     int64
	numCalls        int64 // outstanding invocations targeting this slot
	endOfInput      bool
	status          Status
}

func newBatchSlot(index int64) *batchSlot {
	s := &batchSlot{index: index}
	s.cv.L = &s.mu
	return s
}

// initialize resets all mutable fields, per spec §4.1. Called at
// construction and again by the consumer's finalize post-action once a
// slot has been fully drained and returned.
func (s *batchSlot) initialize(batchSize int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numCalls = batchSize
	s.numElements = 0
	s.endOfInput = false
	s.output = nil
	s.outputAllocated = false
	s.status = Status{}
}

// updateStatus merges an incoming status using first-error-wins semantics.
func (s *batchSlot) updateStatus(incoming Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mergeStatus(&s.status, incoming)
}

// ensureOutputAllocated lazily allocates the K batch-shaped output
// components from the shape of the first successful result to arrive, per
// spec §4.1's "Pre-allocation of output occurs lazily on the first
// successful invocation to complete".
func (s *batchSlot) ensureOutputAllocated(batchSize int64, result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outputAllocated {
		return
	}
	out := make(Batch, len(result))
	for i, comp := range result {
		out[i] = allocateBatchComponent(comp.Kind, batchSize, comp.Shape.clone())
	}
	s.output = out
	s.outputAllocated = true
}

// recordElementWritten increments num_elements exactly once per transform
// callback, whether the transform succeeded or failed (invocations that stop
// at the upstream pull never reach it).
func (s *batchSlot) recordElementWritten() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numElements++
}

// markInvocationComplete atomically decrements num_calls and wakes any
// waiter blocked in waitUntilQuiescent (the consumer). It must be called
// exactly once per invocation targeting this slot, regardless of outcome.
func (s *batchSlot) markInvocationComplete() {
	s.mu.Lock()
	s.numCalls--
	s.cv.Broadcast()
	s.mu.Unlock()
}

// waitUntilQuiescent blocks until num_calls == 0 (spec §4.1, §4.4 step 3):
// the slot is ready for the consumer to read.
func (s *batchSlot) waitUntilQuiescent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.numCalls > 0 {
		s.cv.Wait()
	}
}

// snapshot returns a consistent copy of the slot's fields under its own
// lock, used by the checkpoint codec (checkpoint.go) which must not race
// with in-flight callbacks while formatting keys.
type slotSnapshot struct {
	output          Batch
	outputAllocated bool
	numElements     int64
	numCalls        int64
	endOfInput      bool
	status          Status
}

func (s *batchSlot) snapshot() slotSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slotSnapshot{
		output:          s.output,
		outputAllocated: s.outputAllocated,
		numElements:     s.numElements,
		numCalls:        s.numCalls,
		endOfInput:      s.endOfInput,
		status:          s.status,
	}
}
