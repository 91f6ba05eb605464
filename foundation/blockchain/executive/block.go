package executive

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/extension"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/payment"
	"github.com/ardanlabs/statecore/foundation/blockchain/validity"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
)

// InitializeBlock starts the execution of the block described by the
// header. The header must extend the committed head. The state root and
// extrinsics root of the header are ignored until the block is finalized.
func (e *Executive) InitializeBlock(header database.Header) error {
	if e.state != Uninitialized && e.state != Finalized {
		return fmt.Errorf("initialize in state %s: %w", e.state, ErrInvalidState)
	}

	e.reset()
	e.state = Initializing
	e.header = header

	e.evHandler("executive: InitializeBlock: blk[%d]: parent[%s]", header.Number, header.ParentHash)

	if err := header.ValidateParent(e.Head()); err != nil {
		return e.fail(ErrMalformedBlock, err)
	}

	var author *database.AccountID
	if a, exists := header.Author(); exists {
		author = &a
	}

	e.overlay = e.cfg.Store.NewOverlay()
	e.log.Reset(header.Number)
	e.env = &module.Env{
		Overlay:    e.overlay,
		Log:        e.log,
		Meter:      e.meter,
		Registry:   e.cfg.Registry,
		Number:     header.Number,
		ParentHash: header.ParentHash,
		Author:     author,
	}

	e.log.SetPhase(eventlog.Phase{Kind: eventlog.Initialization})
	e.cfg.System.NoteBlock(e.env, header.Number, header.ParentHash, author)

	w := e.cfg.Registry.Initialize(e.env, header.Number)
	if err := e.meter.TryConsume(w, 0, weight.Mandatory); err != nil {
		return e.fail(ErrCostExceeded, err)
	}

	return e.checkFault()
}

// ApplyInherents applies the inherents of the block. Inherents are trusted
// so any failure, including a failed dispatch, makes the block malformed.
func (e *Executive) ApplyInherents(txs []database.Transaction) error {
	if e.state != Initializing {
		return fmt.Errorf("apply inherents in state %s: %w", e.state, ErrInvalidState)
	}

	for i, tx := range txs {
		if tx.IsSigned() {
			return e.fail(ErrMalformedBlock, fmt.Errorf("inherent[%d] is signed", i))
		}

		res, err := e.apply(tx)
		switch {
		case errors.Is(err, ErrCostExceeded):
			return e.fail(ErrCostExceeded, fmt.Errorf("inherent[%d]: %w", i, err))
		case e.state == Errored:
			return err
		case err != nil:
			return e.fail(ErrMalformedBlock, fmt.Errorf("inherent[%d]: %w", i, err))
		case !res.Ok():
			return e.fail(ErrMalformedBlock, fmt.Errorf("inherent[%d]: %w", i, res.Err))
		}
	}

	e.state = Accepting

	return nil
}

// ApplyTransaction runs the transaction through the extension pipeline and
// dispatches its call. An invalid transaction returns a validity error and
// leaves no trace. A transaction that doesn't fit in the block returns
// ErrCostExceeded and leaves no trace either. A failed dispatch is still
// included, reported through the result. Inherents are only accepted
// through ApplyInherents.
func (e *Executive) ApplyTransaction(tx database.Transaction) (ApplyResult, error) {
	if e.state != Initializing && e.state != Accepting {
		return ApplyResult{}, fmt.Errorf("apply transaction in state %s: %w", e.state, ErrInvalidState)
	}

	if !tx.IsSigned() {
		return ApplyResult{}, validity.Invalid(validity.BadMandatory, "unsigned transaction outside the inherent phase")
	}

	res, err := e.apply(tx)
	if err != nil {
		return ApplyResult{}, err
	}

	e.state = Accepting

	return res, nil
}

// FinalizeBlock runs the end of block hooks, commits the block and returns
// its completed header.
func (e *Executive) FinalizeBlock() (database.Header, error) {
	header, err := e.finalize()
	if err != nil {
		return database.Header{}, err
	}

	if err := e.commit(header); err != nil {
		return database.Header{}, err
	}

	return header, nil
}

// =============================================================================

// apply applies a single transaction inside its own scope. The pipeline
// and the dispatch each get a scope so a rejection undoes everything while
// a failed call only undoes the call.
func (e *Executive) apply(raw database.Transaction) (ApplyResult, error) {
	index := uint32(len(e.txs))

	e.log.SetPhase(eventlog.Phase{Kind: eventlog.ApplyExtrinsic, Index: index})

	sc := e.overlay.Scope()
	mark := e.log.Mark()
	cp := e.meter.Checkpoint()

	reject := func(err error) (ApplyResult, error) {
		e.log.Truncate(mark)
		e.meter.Restore(cp)

		if rerr := e.overlay.Rollback(sc); rerr != nil {
			return ApplyResult{}, e.fail(ErrStorageFault, rerr)
		}

		if errors.Is(err, weight.ErrOverflow) {
			return ApplyResult{}, fmt.Errorf("%w: %w", ErrCostExceeded, err)
		}

		return ApplyResult{}, err
	}

	tx, err := extension.Check(e.cfg.Registry, raw)
	if err != nil {
		return reject(err)
	}

	posts, err := e.cfg.Pipeline.Prepare(e.env, tx)
	if err != nil {
		return reject(err)
	}

	origin := module.NoneOrigin()
	if who, signed := tx.Signer(); signed {
		origin = module.SignedOrigin(who)
	}

	post, dispatchErr := e.dispatch(origin, tx.Call)
	if e.overlay.Fault() != nil {
		return ApplyResult{}, e.checkFault()
	}

	if err := extension.PostDispatchAll(e.env, posts, post, dispatchErr); err != nil {
		return reject(validity.Invalid(validity.Payment, "post dispatch: %w", err))
	}

	info := tx.Info
	info.Weight = post.Actual(tx.Info)
	info.Pays = post.PaysFee(tx.Info)

	outcome := eventlog.Outcome{
		Index:  index,
		Ok:     dispatchErr == nil,
		Weight: info.Weight,
		Fee:    e.feePaid(index),
	}

	switch dispatchErr {
	case nil:
		e.cfg.System.NoteSuccess(e.env, info)

	default:
		moduleName := ""
		var de *module.DispatchError
		if errors.As(dispatchErr, &de) {
			moduleName = de.ModuleName
		}

		e.cfg.System.NoteFailure(e.env, info, moduleName, dispatchErr)
		outcome.Error = dispatchErr.Error()
	}

	e.log.Outcome(outcome)

	if err := e.overlay.Commit(sc); err != nil {
		return ApplyResult{}, e.fail(ErrStorageFault, err)
	}

	if err := e.checkFault(); err != nil {
		return ApplyResult{}, err
	}

	e.txs = append(e.txs, raw)

	e.evHandler("executive: apply: blk[%d]: tx[%d]: %s: ok[%t]", e.header.Number, index, raw, dispatchErr == nil)

	res := ApplyResult{
		Index:  index,
		Weight: info.Weight,
		Fee:    outcome.Fee,
		Err:    dispatchErr,
	}

	return res, nil
}

// dispatch invokes the call in a nested scope that is rolled back with the
// events it emitted when the call fails.
func (e *Executive) dispatch(origin module.Origin, rc module.RuntimeCall) (module.PostInfo, error) {
	sc := e.overlay.Scope()
	mark := e.log.Mark()

	post, err := e.cfg.Registry.Dispatch(e.env, origin, rc)
	if err != nil {
		e.log.Truncate(mark)
		if rerr := e.overlay.Rollback(sc); rerr != nil {
			e.overlay.Fail(rerr)
		}
		return post, err
	}

	if cerr := e.overlay.Commit(sc); cerr != nil {
		e.overlay.Fail(cerr)
	}

	return post, nil
}

// feePaid returns the fee recorded for the extrinsic at the index.
func (e *Executive) feePaid(index uint32) uint64 {
	records := e.log.Records()
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if r.Phase.Kind != eventlog.ApplyExtrinsic || r.Phase.Index != index {
			break
		}

		if ev, ok := r.Data.(payment.FeePaidEvent); ok {
			return ev.ActualFee
		}
	}

	return 0
}

// finalize runs the end of block hooks and computes the roots without
// committing anything.
func (e *Executive) finalize() (database.Header, error) {
	if e.state != Initializing && e.state != Accepting {
		return database.Header{}, fmt.Errorf("finalize in state %s: %w", e.state, ErrInvalidState)
	}

	e.state = Finalizing
	e.log.SetPhase(eventlog.Phase{Kind: eventlog.Finalization})

	if err := e.cfg.Registry.Finalize(e.env, e.header.Number); err != nil {
		return database.Header{}, e.fail(ErrMalformedBlock, err)
	}

	if err := e.checkFault(); err != nil {
		return database.Header{}, err
	}

	extrinsicsRoot, err := database.ExtrinsicsRoot(e.txs)
	if err != nil {
		return database.Header{}, e.fail(ErrMalformedBlock, err)
	}

	stateRoot, err := e.overlay.Root()
	if err != nil {
		return database.Header{}, e.fail(ErrStorageFault, err)
	}

	header := e.header
	header.ExtrinsicsRoot = extrinsicsRoot
	header.StateRoot = stateRoot

	return header, nil
}

// commit makes the block durable and moves the head forward.
func (e *Executive) commit(header database.Header) error {
	setHead := func() {
		e.mu.Lock()
		e.head = header
		e.mu.Unlock()
	}

	if err := e.cfg.Store.CommitThen(e.overlay, setHead); err != nil {
		return e.fail(ErrStorageFault, err)
	}

	e.state = Finalized
	e.header = header

	block := database.Block{
		Header:       header,
		Transactions: append([]database.Transaction(nil), e.txs...),
	}

	e.evHandler("executive: commit: blk[%d]: hash[%s]: root[%s]: txs[%d]", header.Number, header.Hash(), header.StateRoot, len(e.txs))

	if e.cfg.OnCommit != nil {
		e.cfg.OnCommit(block, e.log.Records(), e.log.Outcomes())
	}

	return nil
}
