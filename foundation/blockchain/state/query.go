package state

import (
	"github.com/ardanlabs/statecore/foundation/blockchain/chain"
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/extension"
	"github.com/ardanlabs/statecore/foundation/blockchain/genesis"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/payment"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// Genesis returns a copy of the genesis information.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// GenesisHeader returns the header of block 0. Its hash identifies the chain.
func (s *State) GenesisHeader() database.Header {
	return s.db.Genesis()
}

// Runtime returns the composed runtime of the node.
func (s *State) Runtime() *chain.Runtime {
	return s.runtime
}

// Version returns the version of the runtime.
func (s *State) Version() extension.Version {
	return s.runtime.Version
}

// Metadata returns the description of the registered modules.
func (s *State) Metadata() module.Metadata {
	return s.runtime.Registry.Metadata()
}

// LatestBlock returns a copy of the current latest block.
func (s *State) LatestBlock() database.Block {
	return s.db.LatestBlock()
}

// Mempool returns a copy of the mempool in selection order.
func (s *State) Mempool() []database.Transaction {
	return s.mempool.PickBest(-1)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryAccount returns the nonce and free balance of the account.
func (s *State) QueryAccount(accountID database.AccountID) (database.Account, error) {
	nonce, err := s.exec.AccountNonce(accountID)
	if err != nil {
		return database.Account{}, err
	}

	free, err := s.exec.FreeBalance(accountID)
	if err != nil {
		return database.Account{}, err
	}

	return database.Account{AccountID: accountID, Nonce: nonce, Free: free}, nil
}

// QueryFee returns the fee the transaction would pay if it was included in
// the next block.
func (s *State) QueryFee(tx database.Transaction) (payment.FeeDetails, error) {
	data, err := tx.Encode()
	if err != nil {
		return payment.FeeDetails{}, err
	}

	return s.exec.QueryFee(tx, uint64(len(data)))
}

// QueryLastEvents returns the events and dispatch outcomes of the last
// committed block.
func (s *State) QueryLastEvents() (uint64, []eventlog.Record, []eventlog.Outcome) {
	s.evMu.RLock()
	defer s.evMu.RUnlock()

	return s.lastBlock.number, s.lastBlock.records, s.lastBlock.outcomes
}

// QueryBlocksByNumber returns the set of blocks based on block numbers. This
// function reads the blockchain from disk first.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	latest := s.db.LatestBlock().Header.Number

	if from == QueryLatest {
		from = latest
		to = from
	}
	if to == QueryLatest || to > latest {
		to = latest
	}

	var out []database.Block
	for i := from; i <= to; i++ {
		block, err := s.db.GetBlock(i)
		if err != nil {
			s.evHandler("state: getblock: ERROR: %s", err)
			return nil
		}
		out = append(out, block)
	}

	return out
}

// QueryBlocksByAccount returns the set of blocks holding a transaction
// signed by the account. If the account is zero, all blocks are returned.
// This function reads the blockchain from disk.
func (s *State) QueryBlocksByAccount(accountID database.AccountID) ([]database.Block, error) {
	var out []database.Block

	iter := s.db.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		if accountID.IsZero() {
			out = append(out, block)
			continue
		}

		for _, tx := range block.Transactions {
			if signer, signed := tx.Signer(); signed && signer == accountID {
				out = append(out, block)
				break
			}
		}
	}

	return out, nil
}
