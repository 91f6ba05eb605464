// Package storage provides the layered key/value state used by the runtime.
// Committed state lives in a go-ethereum key/value database. Block execution
// works against an Overlay of uncommitted changes organized as a stack of
// scopes that can be committed or rolled back independently.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
)

// Set of error variables for storage operations.
var (
	ErrUnsorted   = errors.New("pairs are not in strictly increasing key order")
	ErrOpenScope  = errors.New("overlay has open scopes")
	ErrScopeOrder = errors.New("scope is not the innermost open scope")
	ErrNotEmpty   = errors.New("store already holds state")
)

// Pair represents a single key/value entry in state.
type Pair struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

// =============================================================================

// Store manages the committed state. Readers of the committed snapshot are
// serialized against the single writer through a read/write lock.
type Store struct {
	mu sync.RWMutex
	db ethdb.KeyValueStore
}

// New constructs a store over the specified key/value database. The database
// must be dedicated to state since every key in it contributes to the root.
func New(db ethdb.KeyValueStore) *Store {
	return &Store{db: db}
}

// NewMemory constructs a store backed by an in-memory database.
func NewMemory() *Store {
	return New(memorydb.New())
}

// NewLevelDB constructs a store backed by a leveldb database at the
// specified path.
func NewLevelDB(path string, cache int, handles int) (*Store, error) {
	db, err := leveldb.New(path, cache, handles, "state/", false)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}

	return New(db), nil
}

// Close releases the backing database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}

// Empty reports whether the store holds no state at all.
func (s *Store) Empty() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it := s.db.NewIterator(nil, nil)
	defer it.Release()

	if it.Next() {
		return false, nil
	}

	return true, it.Error()
}

// Import writes a genesis snapshot into an empty store. The pairs must be
// in strictly increasing key order.
func (s *Store) Import(pairs []Pair) error {
	for i := 1; i < len(pairs); i++ {
		if bytes.Compare(pairs[i-1].Key, pairs[i].Key) >= 0 {
			return fmt.Errorf("pair[%d] key[%x]: %w", i, pairs[i].Key, ErrUnsorted)
		}
	}

	empty, err := s.Empty()
	if err != nil {
		return err
	}
	if !empty {
		return ErrNotEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	for _, p := range pairs {
		if len(p.Value) == 0 {
			continue
		}
		if err := batch.Put(p.Key, p.Value); err != nil {
			return err
		}
	}

	return batch.Write()
}

// NewOverlay constructs an overlay for block execution on top of the
// committed state. The overlay starts with a single base scope.
func (s *Store) NewOverlay() *Overlay {
	return newOverlay(s, false)
}

// View executes the specified function with an overlay bound to a
// consistent snapshot of the committed state. Any changes made to the
// overlay are discarded when the function returns.
func (s *Store) View(fn func(o *Overlay) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o := newOverlay(s, true)
	if err := fn(o); err != nil {
		return err
	}

	return o.Fault()
}

// Commit atomically writes the base scope of the overlay to the database.
// The overlay must not have any nested scopes open.
func (s *Store) Commit(o *Overlay) error {
	return s.CommitThen(o, nil)
}

// CommitThen commits the overlay like Commit and, once the write succeeded,
// runs fn before any reader can see the new state.
func (s *Store) CommitThen(o *Overlay, fn func()) error {
	if err := o.Fault(); err != nil {
		return err
	}

	if len(o.layers) != 1 {
		return ErrOpenScope
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	for _, key := range sortedKeys(o.layers[0]) {
		ch := o.layers[0][key]
		switch ch.deleted {
		case true:
			if err := batch.Delete([]byte(key)); err != nil {
				return err
			}
		default:
			if err := batch.Put([]byte(key), ch.value); err != nil {
				return err
			}
		}
	}

	if err := batch.Write(); err != nil {
		return fmt.Errorf("writing batch: %w", err)
	}

	o.layers[0] = make(map[string]change)

	if fn != nil {
		fn()
	}

	return nil
}

// Root calculates the state root of the committed state.
func (s *Store) Root() (common.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return root(s.db, nil)
}

// =============================================================================

// get reads a committed value under the read lock.
func (s *Store) get(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.read(key)
}

// read reads a committed value. The caller must hold the lock.
func (s *Store) read(key []byte) ([]byte, bool, error) {
	ok, err := s.db.Has(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	value, err := s.db.Get(key)
	if err != nil {
		return nil, false, err
	}

	return value, true, nil
}

// sortedKeys returns the keys of the layer in increasing order.
func sortedKeys(layer map[string]change) []string {
	keys := make([]string, 0, len(layer))
	for k := range layer {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
