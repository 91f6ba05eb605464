package selector_test

import (
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/mempool/selector"
)

func TestArrivalSort(t *testing.T) {
	at := func(tx selector.Tx, arrival uint64) selector.Tx {
		tx.Arrival = arrival
		return tx
	}

	txs := []selector.Tx{
		at(tran(t, 0, signPavel, 0), 3),
		at(tran(t, 1, signPavel, 0), 0),
		at(tran(t, 0, signBill, 0), 1),
		at(tran(t, 1, signBill, 0), 4),
		at(tran(t, 0, signEd, 0), 2),
	}

	exp := []selector.Tx{txs[2], txs[4], txs[0], txs[1], txs[3]}

	t.Log("Given the need to pick transactions in the order they arrived.")
	{
		for testID, howMany := range []int{-1, 3} {
			t.Logf("\tTest %d:\tWhen asking for %d transactions.", testID, howMany)
			{
				sort, err := selector.Retrieve(selector.StrategyArrival)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to get sort strategy function: %s", failed, testID, err)
				}

				got := sort(group(txs), howMany)

				want := exp
				if howMany != -1 {
					want = exp[:howMany]
				}

				if len(got) != len(want) {
					t.Fatalf("\t%s\tTest %d:\tShould get back %d transactions, got %d.", failed, testID, len(want), len(got))
				}

				for i := range got {
					if got[i].Signer != want[i].Signer || got[i].Nonce != want[i].Nonce {
						t.Fatalf("\t%s\tTest %d:\tShould hold back later nonces at %d: got %s/%d, exp %s/%d", failed, testID, i, got[i].Signer, got[i].Nonce, want[i].Signer, want[i].Nonce)
					}
				}
				t.Logf("\t%s\tTest %d:\tShould follow arrival order behind lower nonces.", success, testID)
			}
		}
	}
}
