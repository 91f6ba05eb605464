package module

import (
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/ethereum/go-ethereum/rlp"
)

// Pays represents whether the sender pays the fee for a call.
type Pays uint8

// Set of fee payment options.
const (
	PaysYes Pays = iota
	PaysNo
)

// DispatchInfo represents the static cost of a call, known before it is
// executed.
type DispatchInfo struct {
	Weight weight.Weight `json:"weight"`
	Class  weight.Class  `json:"class"`
	Pays   Pays          `json:"pays"`
}

// PostInfo represents what a call reports after executing. A nil actual
// weight means the declared weight was used.
type PostInfo struct {
	ActualWeight *weight.Weight
	Pays         Pays
}

// Actual returns the weight the call used. It can never exceed the
// declared weight.
func (p PostInfo) Actual(info DispatchInfo) weight.Weight {
	if p.ActualWeight == nil {
		return info.Weight
	}
	return p.ActualWeight.Min(info.Weight)
}

// PaysFee returns whether the fee is paid. A call that is declared free
// stays free.
func (p PostInfo) PaysFee(info DispatchInfo) Pays {
	if info.Pays == PaysNo || p.Pays == PaysNo {
		return PaysNo
	}
	return PaysYes
}

// =============================================================================

// Call represents a decoded, typed call to a module function.
type Call interface {
	Function() uint8
	Info() DispatchInfo
	Origin() Kind
	Encode() ([]byte, error)
}

// CallMeta describes a dispatchable function of a module.
type CallMeta struct {
	Index  uint8         `json:"index"`
	Name   string        `json:"name"`
	Origin Kind          `json:"origin"`
	Weight weight.Weight `json:"weight"`
	Class  weight.Class  `json:"class"`
	Pays   Pays          `json:"pays"`
}

// Info returns the dispatch info declared by the metadata.
func (m CallMeta) Info() DispatchInfo {
	return DispatchInfo{Weight: m.Weight, Class: m.Class, Pays: m.Pays}
}

// RuntimeCall is a call resolved to the module that owns it.
type RuntimeCall struct {
	Module uint8
	Call   Call
}

// Info returns the static cost of the call.
func (rc RuntimeCall) Info() DispatchInfo {
	return rc.Call.Info()
}

// Wire returns the wire form of the call.
func (rc RuntimeCall) Wire() (database.Call, error) {
	args, err := rc.Call.Encode()
	if err != nil {
		return database.Call{}, err
	}

	c := database.Call{
		Module:   rc.Module,
		Function: rc.Call.Function(),
		Args:     args,
	}

	return c, nil
}

// =============================================================================

// DecodeArgs decodes the arguments of a call. Modules use this from their
// DecodeCall implementations.
func DecodeArgs[T any](args []byte) (T, error) {
	var v T
	if err := rlp.DecodeBytes(args, &v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrBadArgs, err)
	}
	return v, nil
}

// EncodeArgs encodes the arguments of a call.
func EncodeArgs(v any) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}
