// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/extension"
	"github.com/ardanlabs/statecore/foundation/blockchain/mempool/selector"
	"github.com/ardanlabs/statecore/foundation/blockchain/validity"
)

// ErrUnsigned is returned when an unsigned transaction is submitted. Only
// the block author adds unsigned transactions, as inherents.
var ErrUnsigned = errors.New("unsigned transactions are not pooled")

// Mempool represents a cache of transactions organized by account:nonce.
// A transaction for the same account and nonce replaces the previous one.
type Mempool struct {
	pool     map[string]selector.Tx
	arrival  uint64
	mu       sync.RWMutex
	selectFn selector.Func
}

// New constructs a new mempool using the default sort strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyArrival)
}

// NewWithStrategy constructs a new mempool with specified sort strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]selector.Tx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction that passed validation.
func (mp *Mempool) Upsert(tx database.Transaction, valid validity.Valid) (int, error) {
	ptx, err := newTx(tx)
	if err != nil {
		return 0, err
	}
	ptx.Priority = valid.Priority

	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.arrival++
	ptx.Arrival = mp.arrival

	mp.pool[mapKey(ptx.Signer, ptx.Nonce)] = ptx

	return len(mp.pool), nil
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.Transaction) error {
	ptx, err := newTx(tx)
	if err != nil {
		return err
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, mapKey(ptx.Signer, ptx.Nonce))

	return nil
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]selector.Tx)
}

// PickBest uses the configured sort strategy to return the next set
// of transactions for the next block. Pass -1 for all the transactions.
func (mp *Mempool) PickBest(howMany int) []database.Transaction {

	// Group the transactions by account.
	m := make(map[database.AccountID][]selector.Tx)
	mp.mu.RLock()
	{
		if howMany == -1 {
			howMany = len(mp.pool)
		}

		for _, tx := range mp.pool {
			m[tx.Signer] = append(m[tx.Signer], tx)
		}
	}
	mp.mu.RUnlock()

	best := mp.selectFn(m, howMany)

	txs := make([]database.Transaction, len(best))
	for i, tx := range best {
		txs[i] = tx.Transaction
	}

	return txs
}

// =============================================================================

// newTx reads the values the strategies need from the transaction.
func newTx(tx database.Transaction) (selector.Tx, error) {
	signer, signed := tx.Signer()
	if !signed {
		return selector.Tx{}, ErrUnsigned
	}

	params, err := extension.ParseExplicit(tx.Extensions)
	if err != nil {
		return selector.Tx{}, fmt.Errorf("parsing extensions: %w", err)
	}

	ptx := selector.Tx{
		Transaction: tx,
		Signer:      signer,
		Nonce:       params.Nonce,
		Tip:         params.Tip,
	}

	return ptx, nil
}

// mapKey is used to generate the map key.
func mapKey(who database.AccountID, nonce uint64) string {
	return fmt.Sprintf("%s:%d", who, nonce)
}
