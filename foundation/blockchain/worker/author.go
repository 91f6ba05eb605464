package worker

import (
	"context"
	"sync"
	"time"
)

// slotOperations starts an authoring operation at the start of every slot.
func (w *Worker) slotOperations() {
	w.evHandler("worker: slotOperations: G started")
	defer w.evHandler("worker: slotOperations: G completed")

	// Start this on a slot mark so nodes share the same cadence.
	w.resetTicker()

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.signalStartAuthoring()
			}
		case <-w.shut:
			w.evHandler("worker: slotOperations: received shut signal")
			return
		}

		// Reset the ticker for the next slot.
		w.resetTicker()
	}
}

// authoringOperations handles authoring.
func (w *Worker) authoringOperations() {
	w.evHandler("worker: authoringOperations: G started")
	defer w.evHandler("worker: authoringOperations: G completed")

	for {
		select {
		case <-w.startAuthoring:
			if !w.isShutdown() {
				w.runAuthoringOperation()
			}
		case <-w.shut:
			w.evHandler("worker: authoringOperations: received shut signal")
			return
		}
	}
}

// runAuthoringOperation takes the transactions from the mempool and writes
// a new block to the database.
func (w *Worker) runAuthoringOperation() {
	w.evHandler("worker: runAuthoringOperation: AUTHORING: started")
	defer w.evHandler("worker: runAuthoringOperation: AUTHORING: completed")

	// In instant mode a block is only worth authoring with transactions.
	if w.instant && w.state.QueryMempoolLength() == 0 {
		w.evHandler("worker: runAuthoringOperation: AUTHORING: no transactions")
		return
	}

	// If authoring is signalled to be cancelled by the ProcessBlock
	// function, this G can't terminate until it is told it can.
	var wait chan struct{}
	defer func() {
		if wait != nil {
			w.evHandler("worker: runAuthoringOperation: AUTHORING: termination signal: waiting")
			<-wait
			w.evHandler("worker: runAuthoringOperation: AUTHORING: termination signal: received")
		}
	}()

	// Drain the cancel authoring channel before starting.
	select {
	case <-w.cancelAuthoring:
		w.evHandler("worker: runAuthoringOperation: AUTHORING: drained cancel channel")
	default:
	}

	// Create a context so authoring can be cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Can't return from this function until these G's are complete.
	var wg sync.WaitGroup
	wg.Add(2)

	// This G exists to cancel the authoring operation.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		select {
		case wait = <-w.cancelAuthoring:
			w.evHandler("worker: runAuthoringOperation: AUTHORING: CANCEL: requested")
		case <-ctx.Done():
		}
	}()

	// This G is performing the authoring.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		t := time.Now()
		block, err := w.state.AuthorNextBlock(ctx)
		duration := time.Since(t)

		w.evHandler("worker: runAuthoringOperation: AUTHORING: duration[%v]", duration)

		if err != nil {
			switch {
			case ctx.Err() != nil:
				w.evHandler("worker: runAuthoringOperation: AUTHORING: CANCEL: complete")
			default:
				w.evHandler("worker: runAuthoringOperation: AUTHORING: ERROR: %s", err)
			}
			return
		}

		w.evHandler("worker: runAuthoringOperation: AUTHORING: blk[%d]: hash[%s]: txs[%d]", block.Header.Number, block.Hash(), len(block.Transactions))
	}()

	// Wait for both G's to terminate.
	wg.Wait()
}

// resetTicker makes sure the next tick happens on a slot boundary.
func (w *Worker) resetTicker() {
	nextTick := time.Now().Add(w.blockTime).Truncate(w.blockTime)

	diff := time.Until(nextTick)
	if diff <= 0 {
		diff = w.blockTime
	}
	w.ticker.Reset(diff)
}
