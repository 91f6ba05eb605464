package executive

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/validity"
)

// Rejected represents a transaction skipped while authoring a block. The
// pool uses these to drop transactions that can never be included.
type Rejected struct {
	Tx  database.Transaction
	Err error
}

// AuthorBlock builds a block on top of the head. The inherents are applied
// first, then the transactions of the source in order. Invalid transactions
// are skipped and the first transaction that doesn't fit ends the block.
// Cancellation is checked between transactions and discards the block.
func (e *Executive) AuthorBlock(ctx context.Context, header database.Header, inherents []database.Transaction, source []database.Transaction) (database.Block, []Rejected, error) {
	e.evHandler("executive: AuthorBlock: started: blk[%d]: inherents[%d]: candidates[%d]", header.Number, len(inherents), len(source))

	if err := e.InitializeBlock(header); err != nil {
		return database.Block{}, nil, err
	}

	if err := e.ApplyInherents(inherents); err != nil {
		return database.Block{}, nil, err
	}

	var rejected []Rejected

	for _, tx := range source {
		if err := ctx.Err(); err != nil {
			e.Abort()
			return database.Block{}, nil, err
		}

		_, err := e.ApplyTransaction(tx)
		switch {
		case err == nil:
			continue

		case errors.Is(err, ErrCostExceeded):
			e.evHandler("executive: AuthorBlock: blk[%d]: block is full: %s", header.Number, err)

		case validity.IsInvalid(err):
			rejected = append(rejected, Rejected{Tx: tx, Err: err})
			continue

		default:
			return database.Block{}, nil, err
		}

		break
	}

	if err := ctx.Err(); err != nil {
		e.Abort()
		return database.Block{}, nil, err
	}

	final, err := e.FinalizeBlock()
	if err != nil {
		return database.Block{}, nil, err
	}

	block := database.Block{
		Header:       final,
		Transactions: append([]database.Transaction(nil), e.txs...),
	}

	e.evHandler("executive: AuthorBlock: completed: blk[%d]: hash[%s]: txs[%d]: rejected[%d]", final.Number, final.Hash(), len(block.Transactions), len(rejected))

	return block, rejected, nil
}

// ExecuteBlock imports a block produced by another node. Every transaction
// must apply and the roots computed must match the header. Any failure
// rejects the whole block and leaves committed state untouched.
func (e *Executive) ExecuteBlock(ctx context.Context, block database.Block) error {
	e.evHandler("executive: ExecuteBlock: started: blk[%d]: hash[%s]: txs[%d]", block.Header.Number, block.Hash(), len(block.Transactions))

	if err := e.InitializeBlock(block.Header); err != nil {
		return err
	}

	split := 0
	for split < len(block.Transactions) && !block.Transactions[split].IsSigned() {
		split++
	}

	if err := e.ApplyInherents(block.Transactions[:split]); err != nil {
		return err
	}

	for i, tx := range block.Transactions[split:] {
		if err := ctx.Err(); err != nil {
			e.Abort()
			return err
		}

		if _, err := e.ApplyTransaction(tx); err != nil {
			switch {
			case e.state == Errored:
				return err
			case errors.Is(err, ErrCostExceeded):
				return e.fail(ErrCostExceeded, fmt.Errorf("tx[%d]: %w", split+i, err))
			default:
				return e.fail(ErrMalformedBlock, fmt.Errorf("tx[%d]: %w", split+i, err))
			}
		}
	}

	if err := ctx.Err(); err != nil {
		e.Abort()
		return err
	}

	header, err := e.finalize()
	if err != nil {
		return err
	}

	if header.ExtrinsicsRoot != block.Header.ExtrinsicsRoot {
		return e.fail(ErrMalformedBlock, fmt.Errorf("extrinsics root: got %s, exp %s", header.ExtrinsicsRoot, block.Header.ExtrinsicsRoot))
	}

	if header.StateRoot != block.Header.StateRoot {
		return e.fail(ErrMalformedBlock, fmt.Errorf("state root: got %s, exp %s", header.StateRoot, block.Header.StateRoot))
	}

	if err := e.commit(header); err != nil {
		return err
	}

	e.evHandler("executive: ExecuteBlock: completed: blk[%d]: hash[%s]", header.Number, header.Hash())

	return nil
}
