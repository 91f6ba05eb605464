// Package module defines the contract every runtime module implements and
// the registry that composes modules into a single dispatch surface.
package module

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
)

// Set of error variables for decoding and dispatching calls.
var (
	ErrUnknownModule   = errors.New("unknown module")
	ErrUnknownFunction = errors.New("unknown function")
	ErrBadArgs         = errors.New("undecodable arguments")
	ErrBadOrigin       = errors.New("bad origin")
)

// Module represents the behavior an independently authored unit of state
// transition logic must implement. A module owns every key under its prefix
// and nothing else.
type Module interface {
	Name() string
	Prefix() []byte
	Calls() []CallMeta
	Events() []string
	DecodeCall(fn uint8, args []byte) (Call, error)
	Dispatch(ctx *Context, origin Origin, call Call) (PostInfo, error)
}

// Initializer is implemented by modules that run logic at the start of
// every block. The returned weight is charged to the block.
type Initializer interface {
	OnInitialize(ctx *Context, number uint64) weight.Weight
}

// Finalizer is implemented by modules that run logic at the end of every
// block. An error is fatal to the block.
type Finalizer interface {
	OnFinalize(ctx *Context, number uint64) error
}

// =============================================================================

// DispatchError is returned when a module rejects an otherwise valid call.
// The transaction is still included and charged but its changes are
// reverted.
type DispatchError struct {
	Module     uint8
	ModuleName string
	Err        error
}

// Error implements the error interface.
func (de *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %s", de.ModuleName, de.Err)
}

// Unwrap returns the module error.
func (de *DispatchError) Unwrap() error {
	return de.Err
}

// IsDispatchError checks if an error of type DispatchError exists.
func IsDispatchError(err error) bool {
	var de *DispatchError
	return errors.As(err, &de)
}
