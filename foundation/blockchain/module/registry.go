package module

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// ModuleMetadata describes a registered module.
type ModuleMetadata struct {
	Index  uint8      `json:"index"`
	Name   string     `json:"name"`
	Prefix []byte     `json:"prefix"`
	Calls  []CallMeta `json:"calls"`
	Events []string   `json:"events"`
}

// Metadata describes every registered module in registration order.
type Metadata struct {
	Modules []ModuleMetadata `json:"modules"`
}

// =============================================================================

// Registry is the fixed, ordered table of modules. A module's position in
// the table is its id on the wire. The table is never changed once built.
type Registry struct {
	modules      []Module
	byName       map[string]uint8
	metadata     Metadata
	metadataHash common.Hash
}

// NewRegistry constructs a registry from the modules in order. Names must be
// unique and prefixes must be disjoint.
func NewRegistry(modules ...Module) (*Registry, error) {
	if len(modules) > 256 {
		return nil, errors.New("too many modules")
	}

	r := Registry{
		modules: modules,
		byName:  make(map[string]uint8),
	}

	for i, m := range modules {
		if _, exists := r.byName[m.Name()]; exists {
			return nil, fmt.Errorf("module %q registered twice", m.Name())
		}

		if len(m.Prefix()) == 0 {
			return nil, fmt.Errorf("module %q has an empty prefix", m.Name())
		}

		for _, other := range modules[:i] {
			if bytes.HasPrefix(m.Prefix(), other.Prefix()) || bytes.HasPrefix(other.Prefix(), m.Prefix()) {
				return nil, fmt.Errorf("module %q prefix %q overlaps module %q prefix %q", m.Name(), m.Prefix(), other.Name(), other.Prefix())
			}
		}

		for j, c := range m.Calls() {
			if c.Index != uint8(j) {
				return nil, fmt.Errorf("module %q call %q has index %d, exp %d", m.Name(), c.Name, c.Index, j)
			}
		}

		r.byName[m.Name()] = uint8(i)
		r.metadata.Modules = append(r.metadata.Modules, ModuleMetadata{
			Index:  uint8(i),
			Name:   m.Name(),
			Prefix: m.Prefix(),
			Calls:  m.Calls(),
			Events: m.Events(),
		})
	}

	data, err := rlp.EncodeToBytes(r.metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	r.metadataHash = crypto.Keccak256Hash(data)

	return &r, nil
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.modules)
}

// Module returns the module registered at the index.
func (r *Registry) Module(idx uint8) (Module, bool) {
	if int(idx) >= len(r.modules) {
		return nil, false
	}
	return r.modules[idx], true
}

// Index returns the index of the named module.
func (r *Registry) Index(name string) (uint8, bool) {
	idx, exists := r.byName[name]
	return idx, exists
}

// Metadata returns the description of every registered module.
func (r *Registry) Metadata() Metadata {
	return r.metadata
}

// MetadataHash returns the hash of the encoded metadata. Transactions can
// commit to it so they are only valid against this exact runtime.
func (r *Registry) MetadataHash() common.Hash {
	return r.metadataHash
}

// Decode resolves a wire call to the module that owns it and decodes the
// arguments. Unknown ids and undecodable arguments are errors.
func (r *Registry) Decode(c database.Call) (RuntimeCall, error) {
	m, exists := r.Module(c.Module)
	if !exists {
		return RuntimeCall{}, fmt.Errorf("module[%d]: %w", c.Module, ErrUnknownModule)
	}

	if int(c.Function) >= len(m.Calls()) {
		return RuntimeCall{}, fmt.Errorf("%s function[%d]: %w", m.Name(), c.Function, ErrUnknownFunction)
	}

	call, err := m.DecodeCall(c.Function, c.Args)
	if err != nil {
		return RuntimeCall{}, fmt.Errorf("%s function[%d]: %w", m.Name(), c.Function, err)
	}

	return RuntimeCall{Module: c.Module, Call: call}, nil
}

// Encode constructs the runtime call for the call of the named module.
func (r *Registry) Encode(name string, call Call) (RuntimeCall, error) {
	idx, exists := r.Index(name)
	if !exists {
		return RuntimeCall{}, fmt.Errorf("module %q: %w", name, ErrUnknownModule)
	}

	return RuntimeCall{Module: idx, Call: call}, nil
}

// Dispatch verifies the origin is the kind the function requires and
// invokes the owning module. Module errors are returned as DispatchError.
// The caller is responsible for reverting changes when an error is
// returned.
func (r *Registry) Dispatch(env *Env, origin Origin, rc RuntimeCall) (PostInfo, error) {
	m, exists := r.Module(rc.Module)
	if !exists {
		return PostInfo{}, fmt.Errorf("module[%d]: %w", rc.Module, ErrUnknownModule)
	}

	if origin.Kind != rc.Call.Origin() {
		err := fmt.Errorf("got %s, exp %s: %w", origin.Kind, rc.Call.Origin(), ErrBadOrigin)
		return PostInfo{}, &DispatchError{Module: rc.Module, ModuleName: m.Name(), Err: err}
	}

	post, err := m.Dispatch(env.Context(rc.Module), origin, rc.Call)
	if err != nil {
		return post, &DispatchError{Module: rc.Module, ModuleName: m.Name(), Err: err}
	}

	return post, nil
}

// Initialize runs the start of block hooks in registration order and
// returns the weight they consumed.
func (r *Registry) Initialize(env *Env, number uint64) weight.Weight {
	var total weight.Weight
	for i, m := range r.modules {
		if init, ok := m.(Initializer); ok {
			total = total.Add(init.OnInitialize(env.Context(uint8(i)), number))
		}
	}

	return total
}

// Finalize runs the end of block hooks in registration order.
func (r *Registry) Finalize(env *Env, number uint64) error {
	for i, m := range r.modules {
		if fin, ok := m.(Finalizer); ok {
			if err := fin.OnFinalize(env.Context(uint8(i)), number); err != nil {
				return fmt.Errorf("%s: on finalize: %w", m.Name(), err)
			}
		}
	}

	return nil
}
