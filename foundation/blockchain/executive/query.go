package executive

import (
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/extension"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/payment"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/validity"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
)

// AccountNonce returns the nonce of the account in committed state.
func (e *Executive) AccountNonce(who database.AccountID) (uint64, error) {
	var nonce uint64

	err := e.view(false, func(env *module.Env) error {
		nonce = e.cfg.System.Nonce(env, who)
		return nil
	})

	return nonce, err
}

// FreeBalance returns the free balance of the account in committed state.
func (e *Executive) FreeBalance(who database.AccountID) (uint64, error) {
	var free uint64

	err := e.view(false, func(env *module.Env) error {
		if e.cfg.Currency != nil {
			free = e.cfg.Currency.FreeBalance(env, who)
		}
		return nil
	})

	return free, err
}

// QueryFee returns the fee the transaction would pay if it was included
// with the specified encoded length. The tip is read from the payloads of
// a signed transaction.
func (e *Executive) QueryFee(tx database.Transaction, length uint64) (payment.FeeDetails, error) {
	rc, err := e.cfg.Registry.Decode(tx.Call)
	if err != nil {
		return payment.FeeDetails{}, validity.Invalid(validity.Call, "%w", err)
	}

	info := rc.Info()

	var tip uint64
	if tx.IsSigned() {
		if p, err := extension.ParseExplicit(tx.Extensions); err == nil {
			tip = p.Tip
		}
	}

	var fd payment.FeeDetails
	err = e.view(false, func(env *module.Env) error {
		if e.cfg.Payment != nil {
			fd = e.cfg.Payment.FeeDetails(env, length, info, tip)
		}
		return nil
	})

	return fd, err
}

// ValidateTransaction checks the transaction against committed state as if
// it was included in the next block. Nothing is written.
func (e *Executive) ValidateTransaction(raw database.Transaction) (validity.Valid, error) {
	var valid validity.Valid

	err := e.view(true, func(env *module.Env) error {
		tx, err := extension.Check(e.cfg.Registry, raw)
		if err != nil {
			return err
		}

		valid, err = e.cfg.Pipeline.Validate(env, tx)
		return err
	})

	return valid, err
}

// =============================================================================

// view runs the function against committed state. With next set the
// environment is prepared as the block following the head, so checks that
// depend on the block number see the block the transaction would be
// included in. The head is read under the snapshot so both belong to the
// same block.
func (e *Executive) view(next bool, fn func(env *module.Env) error) error {
	return e.cfg.Store.View(func(o *storage.Overlay) error {
		head := e.Head()

		env := module.Env{
			Overlay:    o,
			Log:        eventlog.New(),
			Meter:      weight.NewMeter(e.cfg.Limits),
			Registry:   e.cfg.Registry,
			Number:     head.Number,
			ParentHash: head.ParentHash,
		}

		if next {
			env.Number = head.Number + 1
			env.ParentHash = head.Hash()
			e.cfg.System.NoteBlock(&env, env.Number, env.ParentHash, nil)
		}

		return fn(&env)
	})
}
