// Package worker implements the block authoring workflows for the node.
package worker

import (
	"sync"
	"time"

	"github.com/ardanlabs/statecore/foundation/blockchain/state"
)

// Config represents the configuration of the authoring workflows. A block
// is authored at the start of every slot of BlockTime. With Instant set a
// block is also authored as soon as a transaction is submitted.
type Config struct {
	BlockTime time.Duration
	Instant   bool
	EvHandler state.EventHandler
}

// =============================================================================

// Worker manages the authoring workflows for the blockchain.
type Worker struct {
	state           *state.State
	wg              sync.WaitGroup
	ticker          *time.Ticker
	blockTime       time.Duration
	instant         bool
	shut            chan struct{}
	startAuthoring  chan bool
	cancelAuthoring chan chan struct{}
	evHandler       state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config) *Worker {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	blockTime := cfg.BlockTime
	if blockTime <= 0 {
		blockTime = 6 * time.Second
	}

	w := Worker{
		state:           st,
		ticker:          time.NewTicker(blockTime),
		blockTime:       blockTime,
		instant:         cfg.Instant,
		shut:            make(chan struct{}),
		startAuthoring:  make(chan bool, 1),
		cancelAuthoring: make(chan chan struct{}, 1),
		evHandler:       ev,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.slotOperations,
		w.authoringOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: signal cancel authoring")
	done := w.SignalCancelAuthoring()
	done()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalStartAuthoring starts an authoring operation when the worker runs
// in instant mode. If there is already a signal pending in the channel,
// just return since an authoring operation will start.
func (w *Worker) SignalStartAuthoring() {
	if !w.instant {
		return
	}

	w.signalStartAuthoring()
}

// SignalCancelAuthoring signals the G executing the runAuthoringOperation
// function to stop immediately. That G will not return from the function
// until done is called. This allows the caller to complete any state
// changes before a new authoring operation takes place.
func (w *Worker) SignalCancelAuthoring() (done func()) {
	wait := make(chan struct{})

	select {
	case w.cancelAuthoring <- wait:
	default:
	}
	w.evHandler("worker: SignalCancelAuthoring: cancel authoring signaled")

	return func() { close(wait) }
}

// =============================================================================

// signalStartAuthoring queues an authoring operation.
func (w *Worker) signalStartAuthoring() {
	select {
	case w.startAuthoring <- true:
	default:
	}
	w.evHandler("worker: signalStartAuthoring: authoring signaled")
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
