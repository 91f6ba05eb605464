// Package timestamp implements the module that records the time of each
// block. The time is set once per block by an inherent the author adds.
package timestamp

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
)

// Name is the registered name of the module.
const Name = "Timestamp"

// Set of error variables for the module.
var (
	ErrAlreadySet = errors.New("timestamp must be updated only once in the block")
	ErrTooEarly   = errors.New("timestamp must increment by at least the minimum period")
	ErrNotSet     = errors.New("timestamp must be updated once in the block")
)

// Set of storage keys under the module prefix.
var (
	keyNow       = []byte("Now")
	keyDidUpdate = []byte("DidUpdate")
)

// Config represents the configuration of the module.
type Config struct {
	MinimumPeriod uint64 // Milliseconds between two blocks.
}

// Timestamp is the module.
type Timestamp struct {
	minimumPeriod uint64
}

// New constructs the module.
func New(cfg Config) *Timestamp {
	return &Timestamp{minimumPeriod: cfg.MinimumPeriod}
}

// Name implements the module.Module interface.
func (t *Timestamp) Name() string {
	return Name
}

// Prefix implements the module.Module interface.
func (t *Timestamp) Prefix() []byte {
	return []byte("Timestamp/")
}

// Events implements the module.Module interface.
func (t *Timestamp) Events() []string {
	return nil
}

// Now returns the time of the current block in milliseconds.
func (t *Timestamp) Now(env *module.Env) uint64 {
	now, _ := storage.GetRLP[uint64](env.ContextOf(t).Store, keyNow)
	return now
}

// OnFinalize implements the module.Finalizer interface. A block without a
// timestamp is invalid.
func (t *Timestamp) OnFinalize(ctx *module.Context, number uint64) error {
	if !ctx.Store.Has(keyDidUpdate) {
		return fmt.Errorf("blk[%d]: %w", number, ErrNotSet)
	}

	ctx.Store.Remove(keyDidUpdate)

	return nil
}

// =============================================================================

// CallSet is the index of the set call.
const CallSet uint8 = 0

var calls = []module.CallMeta{
	{Index: CallSet, Name: "set", Origin: module.None, Weight: weight.New(9_000_000, 1_493), Class: weight.Mandatory},
}

// Set sets the time of the current block in milliseconds.
type Set struct {
	Now uint64
}

func (Set) Function() uint8           { return CallSet }
func (Set) Info() module.DispatchInfo { return calls[CallSet].Info() }
func (Set) Origin() module.Kind       { return module.None }
func (c Set) Encode() ([]byte, error) { return module.EncodeArgs(c) }

// CreateInherent constructs the unsigned transaction setting the time.
func CreateInherent(registry *module.Registry, now uint64) (database.Transaction, error) {
	rc, err := registry.Encode(Name, Set{Now: now})
	if err != nil {
		return database.Transaction{}, err
	}

	call, err := rc.Wire()
	if err != nil {
		return database.Transaction{}, err
	}

	return database.NewUnsigned(call), nil
}

// Calls implements the module.Module interface.
func (t *Timestamp) Calls() []module.CallMeta {
	return calls
}

// DecodeCall implements the module.Module interface.
func (t *Timestamp) DecodeCall(fn uint8, args []byte) (module.Call, error) {
	if fn == CallSet {
		return module.DecodeArgs[Set](args)
	}

	return nil, module.ErrUnknownFunction
}

// Dispatch implements the module.Module interface.
func (t *Timestamp) Dispatch(ctx *module.Context, origin module.Origin, call module.Call) (module.PostInfo, error) {
	c, ok := call.(Set)
	if !ok {
		return module.PostInfo{}, module.ErrUnknownFunction
	}

	if ctx.Store.Has(keyDidUpdate) {
		return module.PostInfo{}, ErrAlreadySet
	}

	prev, found := storage.GetRLP[uint64](ctx.Store, keyNow)
	if found && c.Now < prev+t.minimumPeriod {
		return module.PostInfo{}, fmt.Errorf("got %d, prev %d, min period %d: %w", c.Now, prev, t.minimumPeriod, ErrTooEarly)
	}

	storage.PutRLP(ctx.Store, keyNow, c.Now)
	storage.PutRLP(ctx.Store, keyDidUpdate, true)

	return module.PostInfo{}, nil
}
