// Package template implements a minimal example module. It stores a single
// value and shows how a module reports errors from its calls.
package template

import (
	"errors"
	"math"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
)

// Name is the registered name of the module.
const Name = "Template"

// Set of error variables for the module.
var (
	ErrNoneValue       = errors.New("no value stored")
	ErrStorageOverflow = errors.New("stored value would overflow")
)

// EventSomethingStored is emitted when a value is stored.
const EventSomethingStored = "SomethingStored"

var keySomething = []byte("Something")

// SomethingStoredEvent is the data of the SomethingStored event.
type SomethingStoredEvent struct {
	Something uint32             `json:"something"`
	Who       database.AccountID `json:"who"`
}

// Template is the module.
type Template struct{}

// New constructs the module.
func New() *Template {
	return &Template{}
}

// Name implements the module.Module interface.
func (t *Template) Name() string {
	return Name
}

// Prefix implements the module.Module interface.
func (t *Template) Prefix() []byte {
	return []byte("Template/")
}

// Events implements the module.Module interface.
func (t *Template) Events() []string {
	return []string{EventSomethingStored}
}

// Something returns the stored value.
func (t *Template) Something(env *module.Env) (uint32, bool) {
	return storage.GetRLP[uint32](env.ContextOf(t).Store, keySomething)
}

// =============================================================================

// Set of call indexes.
const (
	CallDoSomething uint8 = iota
	CallCauseError
)

var calls = []module.CallMeta{
	{Index: CallDoSomething, Name: "do_something", Origin: module.Signed, Weight: weight.New(9_000_000, 0)},
	{Index: CallCauseError, Name: "cause_error", Origin: module.Signed, Weight: weight.New(6_000_000, 1_489)},
}

// DoSomething stores the value.
type DoSomething struct {
	Something uint32
}

func (DoSomething) Function() uint8           { return CallDoSomething }
func (DoSomething) Info() module.DispatchInfo { return calls[CallDoSomething].Info() }
func (DoSomething) Origin() module.Kind       { return module.Signed }
func (c DoSomething) Encode() ([]byte, error) { return module.EncodeArgs(c) }

// CauseError increments the stored value. It fails when nothing is stored
// or the value is at its maximum.
type CauseError struct{}

func (CauseError) Function() uint8           { return CallCauseError }
func (CauseError) Info() module.DispatchInfo { return calls[CallCauseError].Info() }
func (CauseError) Origin() module.Kind       { return module.Signed }
func (c CauseError) Encode() ([]byte, error) { return module.EncodeArgs(c) }

// Calls implements the module.Module interface.
func (t *Template) Calls() []module.CallMeta {
	return calls
}

// DecodeCall implements the module.Module interface.
func (t *Template) DecodeCall(fn uint8, args []byte) (module.Call, error) {
	switch fn {
	case CallDoSomething:
		return module.DecodeArgs[DoSomething](args)
	case CallCauseError:
		return module.DecodeArgs[CauseError](args)
	}

	return nil, module.ErrUnknownFunction
}

// Dispatch implements the module.Module interface.
func (t *Template) Dispatch(ctx *module.Context, origin module.Origin, call module.Call) (module.PostInfo, error) {
	switch c := call.(type) {
	case DoSomething:
		storage.PutRLP(ctx.Store, keySomething, c.Something)
		ctx.Emit(EventSomethingStored, SomethingStoredEvent{Something: c.Something, Who: origin.Who})

		return module.PostInfo{}, nil

	case CauseError:
		old, found := storage.GetRLP[uint32](ctx.Store, keySomething)
		if !found {
			return module.PostInfo{}, ErrNoneValue
		}

		if old == math.MaxUint32 {
			return module.PostInfo{}, ErrStorageOverflow
		}

		storage.PutRLP(ctx.Store, keySomething, old+1)

		return module.PostInfo{}, nil
	}

	return module.PostInfo{}, module.ErrUnknownFunction
}
