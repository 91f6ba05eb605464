// Package state is the core API for the node. It owns the runtime, the
// committed state, the block archive and the pool of pending transactions.
package state

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ardanlabs/statecore/foundation/blockchain/chain"
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/database/archive"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/executive"
	"github.com/ardanlabs/statecore/foundation/blockchain/genesis"
	"github.com/ardanlabs/statecore/foundation/blockchain/mempool"
	"github.com/ardanlabs/statecore/foundation/blockchain/mempool/selector"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"go.opentelemetry.io/otel"
)

// tracer records spans for authoring and import. It uses the global
// provider so spans are dropped until the node installs one.
var tracer = otel.Tracer("github.com/ardanlabs/statecore/foundation/blockchain/state")

// ErrStateMismatch is returned when the committed state doesn't belong to
// the latest block in the archive.
var ErrStateMismatch = errors.New("state root does not match the latest block")

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for authoring blocks.
type Worker interface {
	Shutdown()
	SignalStartAuthoring()
	SignalCancelAuthoring() (done func())
}

// =============================================================================

// Config represents the configuration required to start the node. An empty
// DBPath keeps everything in memory and an empty SelectStrategy orders the
// pool by arrival.
type Config struct {
	BeneficiaryID  database.AccountID
	DBPath         string
	SelectStrategy string
	Genesis        genesis.Genesis
	EvHandler      EventHandler
}

// State manages the blockchain node.
type State struct {
	mu sync.Mutex

	beneficiaryID database.AccountID
	evHandler     EventHandler

	genesis genesis.Genesis
	runtime *chain.Runtime
	store   *storage.Store
	db      *database.Database
	exec    *executive.Executive
	mempool *mempool.Mempool

	evMu      sync.RWMutex
	lastBlock blockEvents

	Worker Worker
}

// blockEvents holds what the last committed block produced. Events are not
// part of state so only the last block is kept for queries.
type blockEvents struct {
	number   uint64
	records  []eventlog.Record
	outcomes []eventlog.Outcome
}

// New constructs the node state, opening or creating the storage.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// Compose the runtime from the genesis values.
	runtime, err := chain.Build(cfg.Genesis)
	if err != nil {
		return nil, fmt.Errorf("building runtime: %w", err)
	}

	// Access the storage for the state and the block archive.
	store, serializer, err := openStorage(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	// An empty store receives the genesis state.
	gen, err := runtime.Open(store)
	if err != nil {
		store.Close()
		return nil, err
	}

	// Walk the archive to find the latest block.
	db, err := database.New(gen, serializer, ev)
	if err != nil {
		store.Close()
		return nil, err
	}

	head := db.LatestBlock().Header

	// The committed state must belong to the latest block or blocks
	// would be applied on top of the wrong state.
	root, err := store.Root()
	if err != nil {
		store.Close()
		return nil, err
	}
	if root != head.StateRoot {
		store.Close()
		return nil, fmt.Errorf("blk[%d]: got %s, exp %s: %w", head.Number, root, head.StateRoot, ErrStateMismatch)
	}

	// Construct a mempool with the specified sort strategy.
	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = selector.StrategyArrival
	}

	mp, err := mempool.NewWithStrategy(strategy)
	if err != nil {
		store.Close()
		return nil, err
	}

	s := State{
		beneficiaryID: cfg.BeneficiaryID,
		evHandler:     ev,
		genesis:       cfg.Genesis,
		runtime:       runtime,
		store:         store,
		db:            db,
		mempool:       mp,
	}

	s.exec, err = runtime.Executive(chain.ExecutiveConfig{
		Store:     store,
		Genesis:   gen,
		Head:      head,
		EvHandler: executive.EventHandler(ev),
		OnCommit:  s.onCommit,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	ev("state: New: blk[%d]: hash[%s]: root[%s]", head.Number, head.Hash(), head.StateRoot)

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &s, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all block writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Make sure the databases are properly closed.
	if err := s.db.Close(); err != nil {
		s.store.Close()
		return err
	}

	return s.store.Close()
}

// =============================================================================

// onCommit records what the block produced once its state is committed.
func (s *State) onCommit(block database.Block, records []eventlog.Record, outcomes []eventlog.Outcome) {
	s.evMu.Lock()
	defer s.evMu.Unlock()

	s.lastBlock = blockEvents{
		number:   block.Header.Number,
		records:  append([]eventlog.Record(nil), records...),
		outcomes: append([]eventlog.Outcome(nil), outcomes...),
	}

	for _, rec := range records {
		s.evHandler("viewer: event: %s", rec)
	}
}

// openStorage opens the state store and the block archive. The state lives
// in leveldb and each block is a file on disk.
func openStorage(dbPath string) (*storage.Store, database.Serializer, error) {
	if dbPath == "" {
		return storage.NewMemory(), archive.NewMemory(), nil
	}

	store, err := storage.NewLevelDB(filepath.Join(dbPath, "state"), 16, 16)
	if err != nil {
		return nil, nil, fmt.Errorf("opening state: %w", err)
	}

	disk, err := archive.NewDisk(filepath.Join(dbPath, "blocks"))
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}

	return store, disk, nil
}
