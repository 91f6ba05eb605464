// Package executive orchestrates the execution of a block. It initializes
// the block, applies inherents and transactions through the extension
// pipeline and the registry, and finalizes the block by committing its
// overlay and producing the state root.
package executive

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/extension"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/balances"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/payment"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/system"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
)

// Set of block level errors. A block that fails with any of them is
// discarded entirely.
var (
	ErrCostExceeded   = errors.New("block cost ceiling exceeded")
	ErrStorageFault   = errors.New("storage fault")
	ErrMalformedBlock = errors.New("malformed block")
	ErrInvalidState   = errors.New("operation not allowed in the current state")
)

// State represents where the executive is in the execution of a block.
type State uint8

// Set of executive states.
const (
	Uninitialized State = iota
	Initializing
	Accepting
	Finalizing
	Finalized
	Errored
)

var states = map[State]string{
	Uninitialized: "uninitialized",
	Initializing:  "initializing",
	Accepting:     "accepting",
	Finalizing:    "finalizing",
	Finalized:     "finalized",
	Errored:       "errored",
}

// String implements the fmt.Stringer interface.
func (s State) String() string {
	return states[s]
}

// =============================================================================

// EventHandler defines a function that is called when events occur in the
// processing of blocks.
type EventHandler func(v string, args ...any)

// CommitHandler is called after a block is committed with the events it
// produced.
type CommitHandler func(block database.Block, records []eventlog.Record, outcomes []eventlog.Outcome)

// Config represents the immutable configuration of the executive.
type Config struct {
	Store     *storage.Store
	Registry  *module.Registry
	Pipeline  *extension.Pipeline
	System    *system.System
	Currency  balances.Currency
	Payment   *payment.Payment
	Limits    weight.Limits
	Version   extension.Version
	Head      database.Header
	EvHandler EventHandler
	OnCommit  CommitHandler
}

// ApplyResult represents the outcome of an included transaction. Err holds
// the dispatch error of a transaction that failed but was still included.
type ApplyResult struct {
	Index  uint32
	Weight weight.Weight
	Fee    uint64
	Err    error
}

// Ok reports whether the call succeeded.
func (r ApplyResult) Ok() bool {
	return r.Err == nil
}

// Executive executes one block at a time. Block operations must be
// serialized by the caller. Queries can run concurrently with them since
// they only read committed state.
type Executive struct {
	cfg       Config
	evHandler EventHandler

	state   State
	header  database.Header
	overlay *storage.Overlay
	log     *eventlog.Log
	meter   *weight.Meter
	env     *module.Env
	txs     []database.Transaction

	mu   sync.RWMutex
	head database.Header
}

// New constructs an executive on top of the committed head.
func New(cfg Config) (*Executive, error) {
	if cfg.Store == nil || cfg.Registry == nil || cfg.Pipeline == nil || cfg.System == nil {
		return nil, errors.New("store, registry, pipeline and system are required")
	}

	if err := cfg.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("limits: %w", err)
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	e := Executive{
		cfg:       cfg,
		evHandler: ev,
		log:       eventlog.New(),
		meter:     weight.NewMeter(cfg.Limits),
		head:      cfg.Head,
	}

	return &e, nil
}

// State returns the current state of the executive.
func (e *Executive) State() State {
	return e.state
}

// Head returns the header of the last committed block.
func (e *Executive) Head() database.Header {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.head
}

// Consumed returns the cost consumed by the block in progress.
func (e *Executive) Consumed() (weight.Weight, uint64) {
	return e.meter.Consumed(), e.meter.Length()
}

// Events returns the events of the block in progress or of the last block
// that was executed.
func (e *Executive) Events() []eventlog.Record {
	return e.log.Records()
}

// Outcomes returns the dispatch outcomes of the block in progress or of the
// last block that was executed.
func (e *Executive) Outcomes() []eventlog.Outcome {
	return e.log.Outcomes()
}

// Abort discards the block in progress. The executive can initialize a new
// block afterwards.
func (e *Executive) Abort() {
	if e.overlay != nil {
		e.overlay.Discard()
	}

	e.evHandler("executive: Abort: blk[%d]: state[%s]", e.header.Number, e.state)

	e.reset()
}

// =============================================================================

// fail moves the executive to the errored state and discards the overlay.
func (e *Executive) fail(kind error, err error) error {
	if e.overlay != nil {
		e.overlay.Discard()
	}

	prev := e.state
	e.state = Errored

	e.evHandler("executive: fail: blk[%d]: state[%s]: %s: %s", e.header.Number, prev, kind, err)

	return fmt.Errorf("%w: %w", kind, err)
}

// checkFault converts a storage fault recorded by the overlay into a block
// failure.
func (e *Executive) checkFault() error {
	if err := e.overlay.Fault(); err != nil {
		return e.fail(ErrStorageFault, err)
	}
	return nil
}

func (e *Executive) reset() {
	e.state = Uninitialized
	e.header = database.Header{}
	e.overlay = nil
	e.env = nil
	e.txs = nil
	e.meter.Reset()
}
