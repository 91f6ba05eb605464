// Package sudo implements the module that lets a single key dispatch calls
// with the root origin.
package sudo

import (
	"errors"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
)

// Name is the registered name of the module.
const Name = "Sudo"

// Set of error variables for the module.
var (
	ErrRequireSudo = errors.New("sender must be the sudo key")
	ErrUnbound     = errors.New("sudo is not bound to a registry")
)

// Set of event names.
const (
	EventSudid      = "Sudid"
	EventKeyChanged = "KeyChanged"
)

var keyKey = []byte("Key")

// Event data for the module.
type (
	SudidEvent struct {
		Ok    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}

	KeyChangedEvent struct {
		Old database.AccountID `json:"old"`
		New database.AccountID `json:"new"`
	}
)

// Sudo is the module. It must be bound to the registry it is part of
// before calls can be decoded.
type Sudo struct {
	registry *module.Registry
}

// New constructs the module.
func New() *Sudo {
	return &Sudo{}
}

// Bind sets the registry used to decode and dispatch wrapped calls.
func (s *Sudo) Bind(registry *module.Registry) {
	s.registry = registry
}

// Name implements the module.Module interface.
func (s *Sudo) Name() string {
	return Name
}

// Prefix implements the module.Module interface.
func (s *Sudo) Prefix() []byte {
	return []byte("Sudo/")
}

// Events implements the module.Module interface.
func (s *Sudo) Events() []string {
	return []string{EventSudid, EventKeyChanged}
}

// Genesis writes the initial sudo key.
func (s *Sudo) Genesis(env *module.Env, key database.AccountID) {
	storage.PutRLP(env.ContextOf(s).Store, keyKey, key)
}

// Key returns the current sudo key.
func (s *Sudo) Key(env *module.Env) (database.AccountID, bool) {
	return storage.GetRLP[database.AccountID](env.ContextOf(s).Store, keyKey)
}

// =============================================================================

// Set of call indexes.
const (
	CallSudo uint8 = iota
	CallSetKey
)

var calls = []module.CallMeta{
	{Index: CallSudo, Name: "sudo", Origin: module.Signed, Weight: weight.New(10_000_000, 1_517)},
	{Index: CallSetKey, Name: "set_key", Origin: module.Signed, Weight: weight.New(12_000_000, 1_517)},
}

// SudoCall dispatches the wrapped call with the root origin.
type SudoCall struct {
	Call  database.Call
	inner module.RuntimeCall
}

// Function implements the module.Call interface.
func (SudoCall) Function() uint8 { return CallSudo }

// Info implements the module.Call interface. The declared weight covers
// the wrapped call.
func (c SudoCall) Info() module.DispatchInfo {
	info := calls[CallSudo].Info()
	if c.inner.Call != nil {
		info.Weight = info.Weight.Add(c.inner.Info().Weight)
	}
	return info
}

// Origin implements the module.Call interface.
func (SudoCall) Origin() module.Kind { return module.Signed }

// Encode implements the module.Call interface.
func (c SudoCall) Encode() ([]byte, error) {
	return module.EncodeArgs(struct{ Call database.Call }{c.Call})
}

// NewSudoCall wraps a runtime call.
func NewSudoCall(rc module.RuntimeCall) (SudoCall, error) {
	wire, err := rc.Wire()
	if err != nil {
		return SudoCall{}, err
	}

	return SudoCall{Call: wire, inner: rc}, nil
}

// SetKey changes the sudo key.
type SetKey struct {
	New database.AccountID
}

func (SetKey) Function() uint8           { return CallSetKey }
func (SetKey) Info() module.DispatchInfo { return calls[CallSetKey].Info() }
func (SetKey) Origin() module.Kind       { return module.Signed }
func (c SetKey) Encode() ([]byte, error) { return module.EncodeArgs(c) }

// Calls implements the module.Module interface.
func (s *Sudo) Calls() []module.CallMeta {
	return calls
}

// DecodeCall implements the module.Module interface.
func (s *Sudo) DecodeCall(fn uint8, args []byte) (module.Call, error) {
	switch fn {
	case CallSudo:
		if s.registry == nil {
			return nil, ErrUnbound
		}

		wrapped, err := module.DecodeArgs[struct{ Call database.Call }](args)
		if err != nil {
			return nil, err
		}

		inner, err := s.registry.Decode(wrapped.Call)
		if err != nil {
			return nil, err
		}

		return SudoCall{Call: wrapped.Call, inner: inner}, nil

	case CallSetKey:
		return module.DecodeArgs[SetKey](args)
	}

	return nil, module.ErrUnknownFunction
}

// Dispatch implements the module.Module interface. A successful call by
// the sudo key is free.
func (s *Sudo) Dispatch(ctx *module.Context, origin module.Origin, call module.Call) (module.PostInfo, error) {
	key, found := storage.GetRLP[database.AccountID](ctx.Store, keyKey)
	if !found || key != origin.Who {
		return module.PostInfo{}, ErrRequireSudo
	}

	switch c := call.(type) {
	case SudoCall:
		innerInfo := c.inner.Info()

		post, err := ctx.DispatchAs(module.RootOrigin(), c.inner)

		ev := SudidEvent{Ok: err == nil}
		if err != nil {
			ev.Error = err.Error()
		}
		ctx.Emit(EventSudid, ev)

		actual := calls[CallSudo].Weight.Add(post.Actual(innerInfo))
		return module.PostInfo{ActualWeight: &actual, Pays: module.PaysNo}, nil

	case SetKey:
		storage.PutRLP(ctx.Store, keyKey, c.New)
		ctx.Emit(EventKeyChanged, KeyChangedEvent{Old: key, New: c.New})

		return module.PostInfo{Pays: module.PaysNo}, nil
	}

	return module.PostInfo{}, module.ErrUnknownFunction
}
