package selector_test

import (
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/mempool/selector"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var (
	signPavel = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	signBill  = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
	signEd    = "aed31b6b5a341af8f27e66fb0b7633cf20fc27049e3eb7f6f623a4655b719ebb"
)

// arrival hands out increasing arrival numbers across a test table.
var arrival uint64

func tran(t *testing.T, nonce uint64, hexKey string, tip uint64) selector.Tx {
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the private key: %s", failed, err)
	}

	arrival++

	return selector.Tx{
		Signer:  database.PublicKeyToAccountID(pk.PublicKey),
		Nonce:   nonce,
		Tip:     tip,
		Arrival: arrival,
	}
}

func group(txs []selector.Tx) map[database.AccountID][]selector.Tx {
	m := make(map[database.AccountID][]selector.Tx)
	for _, tx := range txs {
		m[tx.Signer] = append(m[tx.Signer], tx)
	}
	return m
}

func TestTipSort(t *testing.T) {
	type test struct {
		name    string
		txs     []selector.Tx
		howMany int
		best    []selector.Tx
	}

	tt := []test{
		{
			name: "one from second cycle",
			txs: []selector.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 1, signPavel, 75),
				tran(t, 2, signPavel, 50),

				tran(t, 0, signBill, 10),
				tran(t, 1, signBill, 5),
				tran(t, 2, signBill, 75),

				tran(t, 0, signEd, 5),
				tran(t, 1, signEd, 50),
				tran(t, 2, signEd, 25),
			},
			howMany: 4,
			best: []selector.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 0, signBill, 10),
				tran(t, 0, signEd, 5),
				tran(t, 1, signPavel, 75),
			},
		},
		{
			name: "whole two cycles",
			txs: []selector.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 1, signPavel, 75),
				tran(t, 2, signPavel, 50),

				tran(t, 0, signBill, 10),
				tran(t, 1, signBill, 5),
				tran(t, 2, signBill, 75),

				tran(t, 0, signEd, 5),
				tran(t, 1, signEd, 50),
				tran(t, 2, signEd, 25),
			},
			howMany: 6,
			best: []selector.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 0, signBill, 10),
				tran(t, 0, signEd, 5),
				tran(t, 1, signPavel, 75),
				tran(t, 1, signEd, 50),
				tran(t, 1, signBill, 5),
			},
		},
		{
			name: "take all",
			txs: []selector.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 1, signPavel, 75),
				tran(t, 2, signPavel, 50),
				tran(t, 0, signBill, 10),
				tran(t, 1, signBill, 5),
				tran(t, 2, signBill, 75),
				tran(t, 0, signEd, 5),
				tran(t, 1, signEd, 50),
				tran(t, 2, signEd, 25),
			},
			howMany: -1,
			best: []selector.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 0, signBill, 10),
				tran(t, 0, signEd, 5),
				tran(t, 1, signPavel, 75),
				tran(t, 1, signEd, 50),
				tran(t, 1, signBill, 5),
				tran(t, 2, signBill, 75),
				tran(t, 2, signPavel, 50),
				tran(t, 2, signEd, 25),
			},
		},
		{
			name: "first two",
			txs: []selector.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 1, signPavel, 75),
				tran(t, 2, signPavel, 50),
				tran(t, 0, signBill, 10),
				tran(t, 1, signBill, 5),
				tran(t, 2, signBill, 75),
				tran(t, 0, signEd, 5),
				tran(t, 1, signEd, 50),
				tran(t, 2, signEd, 25),
			},
			howMany: 2,
			best: []selector.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 0, signBill, 10),
			},
		},
	}

	t.Log("Given the need to pick best transactions from mempool.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
			{
				f := func(t *testing.T) {
					sort, err := selector.Retrieve(selector.StrategyTip)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to get sort strategy function: %s", failed, testID, err)
					}

					txs := sort(group(tst.txs), tst.howMany)
					if len(txs) != len(tst.best) {
						t.Fatalf("\t%s\tTest %d:\tShould get back %d transactions, got %d.", failed, testID, len(tst.best), len(txs))
					}

					for i, tx := range txs {
						exp := tst.best[i]
						if exp.Nonce != tx.Nonce || exp.Signer != tx.Signer {
							t.Fatalf("\t%s\tTest %d:\tShould get back the right from/nonce at %d: got %s/%d, exp %s/%d", failed, testID, i, tx.Signer, tx.Nonce, exp.Signer, exp.Nonce)
						}
						t.Logf("\t%s\tTest %d:\tShould get back the right from/nonce: %s/%d", success, testID, tx.Signer, tx.Nonce)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func TestRetrieve(t *testing.T) {
	for _, strategy := range []string{selector.StrategyArrival, selector.StrategyTip, selector.StrategyAdvancedTip} {
		if _, err := selector.Retrieve(strategy); err != nil {
			t.Fatalf("Should be able to retrieve strategy %q: %s", strategy, err)
		}
	}

	if _, err := selector.Retrieve("random"); err == nil {
		t.Fatal("Should not be able to retrieve an unknown strategy.")
	}
}
