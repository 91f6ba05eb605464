// Package chain composes the modules of the runtime into a registry and
// wires the extension pipeline and the executive on top of it.
package chain

import (
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/executive"
	"github.com/ardanlabs/statecore/foundation/blockchain/extension"
	"github.com/ardanlabs/statecore/foundation/blockchain/genesis"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/balances"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/payment"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/sudo"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/system"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/template"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/timestamp"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultVersion is the runtime version used when the genesis file doesn't
// name one.
var DefaultVersion = extension.Version{SpecVersion: 100, TxVersion: 1}

// Runtime represents the composed set of modules. The position of a module
// in the registry is its id on the wire so the order below must never
// change for a running chain.
type Runtime struct {
	Registry  *module.Registry
	System    *system.System
	Timestamp *timestamp.Timestamp
	Balances  *balances.Balances
	Payment   *payment.Payment
	Sudo      *sudo.Sudo
	Template  *template.Template
	Version   extension.Version
	Limits    weight.Limits

	genesis genesis.Genesis
}

// Build constructs the runtime described by the genesis values.
func Build(gen genesis.Genesis) (*Runtime, error) {
	if err := gen.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("limits: %w", err)
	}

	version := DefaultVersion
	if gen.SpecVersion != 0 {
		version = extension.Version{SpecVersion: gen.SpecVersion, TxVersion: gen.TxVersion}
	}

	r := Runtime{
		System:    system.New(system.Config{BlockHashCount: gen.BlockHashCount}),
		Timestamp: timestamp.New(timestamp.Config{MinimumPeriod: gen.MinimumPeriod}),
		Balances:  balances.New(),
		Payment:   payment.New(gen.Fees),
		Sudo:      sudo.New(),
		Template:  template.New(),
		Version:   version,
		Limits:    gen.Limits,
		genesis:   gen,
	}

	registry, err := module.NewRegistry(
		r.System,
		r.Timestamp,
		r.Balances,
		r.Payment,
		r.Sudo,
		r.Template,
	)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	r.Sudo.Bind(registry)
	r.Registry = registry

	return &r, nil
}

// GenesisState runs the genesis hooks of the modules against an empty
// state and returns the resulting pairs in strictly increasing key order.
func (r *Runtime) GenesisState() ([]storage.Pair, error) {
	store := storage.NewMemory()
	defer store.Close()

	o := store.NewOverlay()
	env := module.Env{
		Overlay:  o,
		Log:      eventlog.New(),
		Meter:    weight.NewMeter(r.Limits),
		Registry: r.Registry,
	}

	if err := r.Balances.Genesis(&env, r.genesis.Balances); err != nil {
		return nil, fmt.Errorf("balances: %w", err)
	}

	r.Payment.Genesis(&env)

	if !r.genesis.Sudo.IsZero() {
		r.Sudo.Genesis(&env, r.genesis.Sudo)
	}

	if err := o.Fault(); err != nil {
		return nil, fmt.Errorf("genesis state: %w", err)
	}

	return o.Changes(), nil
}

// Open prepares the store for the chain. An empty store receives the
// genesis state. The returned header is the genesis block header, its hash
// identifies the chain.
func (r *Runtime) Open(store *storage.Store) (database.Header, error) {
	pairs, err := r.GenesisState()
	if err != nil {
		return database.Header{}, err
	}

	empty, err := store.Empty()
	if err != nil {
		return database.Header{}, err
	}

	if empty {
		if err := store.Import(pairs); err != nil {
			return database.Header{}, fmt.Errorf("importing genesis: %w", err)
		}
	}

	root, err := genesisRoot(pairs)
	if err != nil {
		return database.Header{}, err
	}

	return database.Header{StateRoot: root}, nil
}

// Pipeline constructs the canonical extension pipeline for the chain
// identified by the genesis hash.
func (r *Runtime) Pipeline(genesisHash common.Hash) *extension.Pipeline {
	return extension.Default(extension.Config{
		Version:  r.Version,
		Genesis:  genesisHash,
		Registry: r.Registry,
		Nonces:   r.System,
		Hashes:   r.System,
		Charger:  r.Payment,
		Currency: r.Balances,
	})
}

// ExecutiveConfig represents what the executive needs beyond the runtime.
type ExecutiveConfig struct {
	Store     *storage.Store
	Genesis   database.Header
	Head      database.Header
	EvHandler executive.EventHandler
	OnCommit  executive.CommitHandler
}

// Executive constructs an executive for the runtime on top of the head.
func (r *Runtime) Executive(cfg ExecutiveConfig) (*executive.Executive, error) {
	return executive.New(executive.Config{
		Store:     cfg.Store,
		Registry:  r.Registry,
		Pipeline:  r.Pipeline(cfg.Genesis.Hash()),
		System:    r.System,
		Currency:  r.Balances,
		Payment:   r.Payment,
		Limits:    r.Limits,
		Version:   r.Version,
		Head:      cfg.Head,
		EvHandler: cfg.EvHandler,
		OnCommit:  cfg.OnCommit,
	})
}

// Inherents constructs the unsigned transactions the author of a block
// must add, given the time of the block in milliseconds.
func (r *Runtime) Inherents(now uint64) ([]database.Transaction, error) {
	tx, err := timestamp.CreateInherent(r.Registry, now)
	if err != nil {
		return nil, err
	}

	return []database.Transaction{tx}, nil
}

// Encode resolves a module call to the wire form used by transactions.
func (r *Runtime) Encode(moduleName string, call module.Call) (database.Call, error) {
	rc, err := r.Registry.Encode(moduleName, call)
	if err != nil {
		return database.Call{}, err
	}

	return rc.Wire()
}

// =============================================================================

// genesisRoot calculates the state root of the genesis pairs.
func genesisRoot(pairs []storage.Pair) (common.Hash, error) {
	store := storage.NewMemory()
	defer store.Close()

	if err := store.Import(pairs); err != nil {
		return common.Hash{}, err
	}

	return store.Root()
}
