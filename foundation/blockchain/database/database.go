// Package database handles the wire representation of transactions and
// blocks and the archive of finalized blocks kept by a node.
package database

import (
	"fmt"
	"sync"
)

// Serializer interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Serializer interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// DatabaseIterator walks the archive returning decoded blocks.
type DatabaseIterator struct {
	iterator Iterator
}

// Next retrieves the next block from the archive.
func (di *DatabaseIterator) Next() (Block, error) {
	blockData, err := di.iterator.Next()
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}

// Done returns the end of chain value.
func (di *DatabaseIterator) Done() bool {
	return di.iterator.Done()
}

// =============================================================================

// Database manages the archive of finalized blocks. Block 0 is the genesis
// header and is never written to the archive.
type Database struct {
	mu sync.RWMutex

	genesis     Header
	latestBlock Block
	serializer  Serializer
}

// New constructs a new database and walks the archive checking each block
// links to the one before it, starting from the genesis header.
func New(genesis Header, serializer Serializer, evHandler func(v string, args ...any)) (*Database, error) {
	db := Database{
		genesis:     genesis,
		latestBlock: Block{Header: genesis},
		serializer:  serializer,
	}

	iter := db.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		evHandler("database: New: validate: blk[%d]: check: parent linkage", block.Header.Number)

		if err := block.Header.ValidateParent(db.latestBlock.Header); err != nil {
			return nil, fmt.Errorf("archive blk[%d]: %w", block.Header.Number, err)
		}

		db.latestBlock = block
	}

	return &db, nil
}

// Close closes the open blocks database.
func (db *Database) Close() error {
	return db.serializer.Close()
}

// Reset re-initializes the archive back to the genesis header.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.serializer.Reset(); err != nil {
		return err
	}

	db.latestBlock = Block{Header: db.genesis}

	return nil
}

// Genesis returns the genesis header.
func (db *Database) Genesis() Header {
	return db.genesis
}

// LatestBlock returns the latest block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// Write adds a new block to the archive. The block must extend the latest
// block.
func (db *Database) Write(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := block.Header.ValidateParent(db.latestBlock.Header); err != nil {
		return err
	}

	blockData, err := NewBlockData(block)
	if err != nil {
		return err
	}

	if err := db.serializer.Write(blockData); err != nil {
		return err
	}

	db.latestBlock = block

	return nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 1.
func (db *Database) ForEach() DatabaseIterator {
	return DatabaseIterator{iterator: db.serializer.ForEach()}
}

// GetBlock searches the archive to locate and return the contents of
// the specified block by number.
func (db *Database) GetBlock(num uint64) (Block, error) {
	if num == 0 {
		return Block{Header: db.genesis}, nil
	}

	blockData, err := db.serializer.GetBlock(num)
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}
