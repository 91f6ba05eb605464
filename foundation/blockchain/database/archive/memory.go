package archive

import (
	"errors"
	"sync"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
)

// Memory represents the serialization implementation for reading and storing
// blocks in memory using a slice. This implements the database.Serializer
// interface.
type Memory struct {
	mu     sync.RWMutex
	blocks []database.BlockData
}

// NewMemory constructs a Memory value for use.
func NewMemory() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write takes the specified database block and stores it in memory.
func (m *Memory) Write(blockData database.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if uint64(len(m.blocks))+1 != blockData.Header.Number {
		return errors.New("block is out of order")
	}

	m.blocks = append(m.blocks, blockData)

	return nil
}

// GetBlock returns the contents of the specified block by number.
func (m *Memory) GetBlock(num uint64) (database.BlockData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if num == 0 || num > uint64(len(m.blocks)) {
		return database.BlockData{}, errors.New("block does not exist")
	}

	return m.blocks[num-1], nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 1.
func (m *Memory) ForEach() database.Iterator {
	return &memoryIterator{storage: m}
}

// Reset will clear out the blocks.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = nil
	return nil
}

// =============================================================================

// memoryIterator represents the iteration implementation for walking
// through the blocks in memory.
type memoryIterator struct {
	storage *Memory // Access to the storage API.
	current uint64  // Current block number being iterated over.
	eoc     bool    // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block.
func (mi *memoryIterator) Next() (database.BlockData, error) {
	if mi.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	mi.current++
	blockData, err := mi.storage.GetBlock(mi.current)
	if err != nil {
		mi.eoc = true
	}

	return blockData, err
}

// Done returns the end of chain value.
func (mi *memoryIterator) Done() bool {
	return mi.eoc
}
