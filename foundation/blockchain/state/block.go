package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"go.opentelemetry.io/otel/attribute"
)

// ProcessBlock takes a block produced by another node, executes it on top
// of the latest block and if that passes, archives it. Any failure leaves
// the committed state untouched.
func (s *State) ProcessBlock(ctx context.Context, block database.Block) error {
	ctx, span := tracer.Start(ctx, "state.ProcessBlock")
	defer span.End()

	span.SetAttributes(attribute.Int64("number", int64(block.Header.Number)))

	s.evHandler("state: ProcessBlock: started: blk[%d]: hash[%s]", block.Header.Number, block.Hash())
	defer s.evHandler("state: ProcessBlock: completed")

	// If a block is being authored it needs to stop immediately. The G
	// authoring will not return until done is called. That allows this
	// function to complete its state changes before a new block is
	// authored.
	if s.Worker != nil {
		done := s.Worker.SignalCancelAuthoring()
		defer func() {
			s.evHandler("state: ProcessBlock: signal authoring to terminate")
			done()
		}()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.exec.ExecuteBlock(ctx, block); err != nil {
		s.resetExecutive()
		return err
	}

	if err := s.db.Write(block); err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	s.removeIncluded(block)

	return nil
}
