package state

import (
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/validity"
)

// SubmitTransaction accepts a signed transaction for inclusion. The
// transaction is validated against the committed state as if it was
// included in the next block.
func (s *State) SubmitTransaction(tx database.Transaction) (validity.Valid, error) {
	valid, err := s.exec.ValidateTransaction(tx)
	if err != nil {
		return validity.Valid{}, err
	}

	n, err := s.mempool.Upsert(tx, valid)
	if err != nil {
		return validity.Valid{}, err
	}

	s.evHandler("state: SubmitTransaction: tx[%s]: priority[%d]: pool[%d]", tx, valid.Priority, n)

	if s.Worker != nil {
		s.Worker.SignalStartAuthoring()
	}

	return valid, nil
}
