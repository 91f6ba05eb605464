package storage

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Scope identifies a nested layer of uncommitted changes.
type Scope int

// change represents a pending write or removal of a key.
type change struct {
	value   []byte
	deleted bool
}

// Overlay holds uncommitted changes over the committed state as a stack of
// scopes. Reads walk the scopes from the innermost out before falling back
// to the committed state. Changes made in a scope are visible to enclosing
// scopes only once that scope is committed.
type Overlay struct {
	store  *Store
	locked bool
	layers []map[string]change
	fault  error
}

// newOverlay constructs an overlay with its base scope. A locked overlay is
// used while the caller already holds the store's read lock.
func newOverlay(store *Store, locked bool) *Overlay {
	return &Overlay{
		store:  store,
		locked: locked,
		layers: []map[string]change{make(map[string]change)},
	}
}

// Get returns the value for the specified key.
func (o *Overlay) Get(key []byte) ([]byte, bool) {
	for i := len(o.layers) - 1; i >= 0; i-- {
		if ch, exists := o.layers[i][string(key)]; exists {
			if ch.deleted {
				return nil, false
			}
			return ch.value, true
		}
	}

	var value []byte
	var found bool
	var err error

	switch o.locked {
	case true:
		value, found, err = o.store.read(key)
	default:
		value, found, err = o.store.get(key)
	}

	if err != nil {
		o.Fail(fmt.Errorf("reading key[%x]: %w", key, err))
		return nil, false
	}

	return value, found
}

// Has reports whether the specified key holds a value.
func (o *Overlay) Has(key []byte) bool {
	_, found := o.Get(key)
	return found
}

// Set records the value for the key in the innermost scope. Setting an
// empty value removes the key.
func (o *Overlay) Set(key []byte, value []byte) {
	if len(value) == 0 {
		o.Remove(key)
		return
	}

	cpy := make([]byte, len(value))
	copy(cpy, value)

	o.layers[len(o.layers)-1][string(key)] = change{value: cpy}
}

// Remove records the removal of the key in the innermost scope.
func (o *Overlay) Remove(key []byte) {
	o.layers[len(o.layers)-1][string(key)] = change{deleted: true}
}

// Fail records a storage fault. Only the first fault is kept and once
// faulted the overlay can't be committed.
func (o *Overlay) Fail(err error) {
	if o.fault == nil {
		o.fault = err
	}
}

// Fault returns the first storage fault recorded against this overlay.
func (o *Overlay) Fault() error {
	return o.fault
}

// =============================================================================

// Scope opens a new innermost scope.
func (o *Overlay) Scope() Scope {
	o.layers = append(o.layers, make(map[string]change))
	return Scope(len(o.layers) - 1)
}

// Depth returns the number of open scopes including the base scope.
func (o *Overlay) Depth() int {
	return len(o.layers)
}

// Commit merges the specified scope into its enclosing scope. Only the
// innermost scope can be committed.
func (o *Overlay) Commit(sc Scope) error {
	if err := o.checkTop(sc); err != nil {
		return err
	}

	top := o.layers[len(o.layers)-1]
	below := o.layers[len(o.layers)-2]
	for k, ch := range top {
		below[k] = ch
	}
	o.layers = o.layers[:len(o.layers)-1]

	return nil
}

// Rollback discards the specified scope and every change made in it. Only
// the innermost scope can be rolled back.
func (o *Overlay) Rollback(sc Scope) error {
	if err := o.checkTop(sc); err != nil {
		return err
	}

	o.layers = o.layers[:len(o.layers)-1]

	return nil
}

// Discard drops every uncommitted change including the base scope.
func (o *Overlay) Discard() {
	o.layers = []map[string]change{make(map[string]change)}
}

// Changes returns the flattened set of pending writes in increasing key
// order. Removed keys are reported with a nil value.
func (o *Overlay) Changes() []Pair {
	flat := o.flatten()

	pairs := make([]Pair, 0, len(flat))
	for _, k := range sortedKeys(flat) {
		pairs = append(pairs, Pair{Key: []byte(k), Value: flat[k].value})
	}

	return pairs
}

// Root calculates the state root of the committed state with every pending
// change of the overlay applied.
func (o *Overlay) Root() (common.Hash, error) {
	if err := o.Fault(); err != nil {
		return common.Hash{}, err
	}

	flat := o.flatten()

	if !o.locked {
		o.store.mu.RLock()
		defer o.store.mu.RUnlock()
	}

	return root(o.store.db, flat)
}

// checkTop validates the scope is the innermost open scope. Misuse is a
// programming error and is recorded as a fault.
func (o *Overlay) checkTop(sc Scope) error {
	if sc == 0 || int(sc) != len(o.layers)-1 {
		err := fmt.Errorf("scope[%d] depth[%d]: %w", sc, len(o.layers), ErrScopeOrder)
		o.Fail(err)
		return err
	}

	return nil
}

// flatten merges every scope into a single change set.
func (o *Overlay) flatten() map[string]change {
	flat := make(map[string]change)
	for _, layer := range o.layers {
		for k, ch := range layer {
			flat[k] = ch
		}
	}

	return flat
}

// =============================================================================

// sortPairs orders the pairs by key.
func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		return string(pairs[i].Key) < string(pairs[j].Key)
	})
}
