package mapbatch

import "context"

// runDispatcher is the operator's single long-lived scheduling task, the
// Go rendering of the original op's RunnerThread and spec §4.3's
// Dispatcher. It holds innerMu for its scheduling decisions and only
// releases it around the launch of each invocation, which performs the
// upstream pull synchronously (it blocks for as long as Upstream.Next
// does) and then hands the transform to Runner.Run.
func (op *Operator) runDispatcher(ctx context.Context) {
	op.innerMu.Lock()
	defer op.innerMu.Unlock()

	for {
		for !op.cancelled && (op.numCallsG == op.config.Parallelism || op.ringFull()) {
			op.innerCv.Wait()
		}
		if op.cancelled {
			logger.Debug("dispatcher cancelled", "op", op.id)
			return
		}

		for op.numCallsG < op.config.Parallelism && !op.ringFull() {
			slot := op.slotAt(op.outputIndex)
			j := op.callCounter
			op.callCounter++
			offset := j % op.config.BatchSize
			op.numCallsG++

			op.innerMu.Unlock()
			op.dispatchOne(ctx, slot, offset)
			op.innerMu.Lock()

			if offset+1 == op.config.BatchSize {
				// Scheduling for this batch is complete, even though most of
				// its invocations are still in flight; see spec §4.3's note on
				// why output_index advances here rather than on completion.
				op.outputIndex++
			}
		}
	}
}
