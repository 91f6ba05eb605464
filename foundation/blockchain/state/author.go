package state

import (
	"context"
	"fmt"
	"time"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/executive"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/validity"
	"go.opentelemetry.io/otel/attribute"
)

// AuthorNextBlock builds, commits and archives the block that follows the
// latest block. The block carries the beneficiary as author and the
// timestamp inherent. Transactions are taken from the pool in the order
// the select strategy returns them. This can be cancelled.
func (s *State) AuthorNextBlock(ctx context.Context) (database.Block, error) {
	ctx, span := tracer.Start(ctx, "state.AuthorNextBlock")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	head := s.exec.Head()
	span.SetAttributes(attribute.Int64("number", int64(head.Number+1)))

	s.evHandler("state: AuthorNextBlock: blk[%d]: started", head.Number+1)

	now, err := s.nextTimestamp(uint64(time.Now().UnixMilli()))
	if err != nil {
		return database.Block{}, err
	}

	inherents, err := s.runtime.Inherents(now)
	if err != nil {
		return database.Block{}, err
	}

	header := database.Header{
		ParentHash: head.Hash(),
		Number:     head.Number + 1,
		Digest:     []database.DigestItem{database.AuthorDigest(s.beneficiaryID)},
	}

	source := s.mempool.PickBest(-1)

	block, rejected, err := s.exec.AuthorBlock(ctx, header, inherents, source)
	if err != nil {
		s.resetExecutive()
		return database.Block{}, err
	}

	if err := s.db.Write(block); err != nil {
		return database.Block{}, fmt.Errorf("archive: %w", err)
	}

	s.evHandler("state: AuthorNextBlock: blk[%d]: hash[%s]: txs[%d]: rejected[%d]", block.Header.Number, block.Hash(), len(block.Transactions), len(rejected))

	s.removeIncluded(block)

	// A transaction waiting on an earlier nonce stays in the pool. Any
	// other rejection will never succeed.
	for _, r := range rejected {
		if reason, _ := validity.ReasonOf(r.Err); reason == validity.Future {
			continue
		}

		s.evHandler("state: AuthorNextBlock: drop tx[%s]: %s", r.Tx, r.Err)
		s.mempool.Delete(r.Tx)
	}

	return block, nil
}

// =============================================================================

// nextTimestamp returns the time for the next block. The timestamp module
// rejects a time earlier than the minimum period after the previous block
// so the wall clock is moved forward when blocks come quickly.
func (s *State) nextTimestamp(now uint64) (uint64, error) {
	var prev uint64

	err := s.store.View(func(o *storage.Overlay) error {
		env := module.Env{Overlay: o, Registry: s.runtime.Registry}
		prev = s.runtime.Timestamp.Now(&env)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if prev == 0 {
		return now, nil
	}

	return max(now, prev+s.genesis.MinimumPeriod), nil
}

// removeIncluded removes the signed transactions of the block from the pool.
func (s *State) removeIncluded(block database.Block) {
	for _, tx := range block.Transactions {
		if !tx.IsSigned() {
			continue
		}

		if err := s.mempool.Delete(tx); err == nil {
			s.evHandler("state: removeIncluded: tx[%s]", tx)
		}
	}
}

// resetExecutive puts the executive back in a state where a new block can start
// after a failed block.
func (s *State) resetExecutive() {
	switch s.exec.State() {
	case executive.Uninitialized, executive.Finalized:
	default:
		s.evHandler("state: recover: executive state[%s]: abort", s.exec.State())
		s.exec.Abort()
	}
}
