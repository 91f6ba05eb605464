package eventlog_test

import (
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
)

func Test_Log(t *testing.T) {
	log := eventlog.New()
	log.Reset(7)

	log.Emit(0, "System", "Remarked", nil)

	log.SetPhase(eventlog.Phase{Kind: eventlog.ApplyExtrinsic, Index: 0})
	mark := log.Mark()
	log.Emit(2, "Balances", "Transfer", "a->b")
	log.Outcome(eventlog.Outcome{Index: 0, Ok: true})

	if log.Len() != 2 || len(log.Outcomes()) != 1 {
		t.Fatalf("Should have two events and one outcome, got %d %d", log.Len(), len(log.Outcomes()))
	}

	log.Truncate(mark)

	if log.Len() != 1 || len(log.Outcomes()) != 0 {
		t.Fatalf("Should drop entries after the mark, got %d %d", log.Len(), len(log.Outcomes()))
	}

	log.Emit(2, "Balances", "Withdraw", uint64(5))
	log.Emit(5, "Template", "SomethingStored", uint32(42))

	records := log.Records()
	for i, r := range records {
		if r.Index != uint32(i) {
			t.Fatalf("Should index records in emission order, got %d at %d", r.Index, i)
		}
		if r.Block != 7 {
			t.Fatalf("Should stamp the block number, got %d", r.Block)
		}
	}

	if records[0].Phase.Kind != eventlog.Initialization {
		t.Fatalf("Should record the initialization phase, got %s", records[0].Phase)
	}

	if got := log.ByModule(2); len(got) != 1 || got[0].Name != "Withdraw" {
		t.Fatalf("Should filter by module, got %v", got)
	}

	log.Reset(8)
	if log.Len() != 0 || log.Block() != 8 {
		t.Fatalf("Should be empty for the next block.")
	}
}
