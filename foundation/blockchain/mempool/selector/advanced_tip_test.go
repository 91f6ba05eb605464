package selector_test

import (
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/mempool/selector"
)

func TestAdvancedSort(t *testing.T) {
	type test struct {
		name    string
		txs     []selector.Tx
		howMany int
		best    []selector.Tx
	}

	tt := []test{
		{
			name: "all from first account",
			txs: []selector.Tx{
				tran(t, 1, signPavel, 1),
				tran(t, 2, signPavel, 2),
				tran(t, 3, signPavel, 3),
				tran(t, 4, signPavel, 3),

				tran(t, 1, signBill, 1),
				tran(t, 2, signBill, 4),
				tran(t, 3, signBill, 1),
			},
			howMany: 4,
			best: []selector.Tx{
				tran(t, 1, signPavel, 1),
				tran(t, 2, signPavel, 2),
				tran(t, 3, signPavel, 3),
				tran(t, 4, signPavel, 3),
			},
		},
		{
			name: "one from another account",
			txs: []selector.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 1, signPavel, 75),
				tran(t, 2, signPavel, 50),

				tran(t, 0, signBill, 1),
				tran(t, 1, signBill, 5),
				tran(t, 2, signBill, 6),

				tran(t, 0, signEd, 5),
				tran(t, 1, signEd, 6),
				tran(t, 2, signEd, 7),
			},
			howMany: 4,
			best: []selector.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 1, signPavel, 75),
				tran(t, 2, signPavel, 50),

				tran(t, 0, signEd, 5),
			},
		},
		{
			name: "unblock big fee",
			txs: []selector.Tx{
				tran(t, 0, signPavel, 1),
				tran(t, 1, signPavel, 1),
				tran(t, 2, signPavel, 50),

				tran(t, 0, signBill, 1),
				tran(t, 1, signBill, 15),
				tran(t, 2, signBill, 16),

				tran(t, 0, signEd, 5),
				tran(t, 1, signEd, 6),
				tran(t, 2, signEd, 7),
			},
			howMany: 4,
			best: []selector.Tx{
				tran(t, 0, signPavel, 1),
				tran(t, 1, signPavel, 1),
				tran(t, 2, signPavel, 50),

				tran(t, 0, signEd, 5),
			},
		},
	}

	t.Log("Given the need to pick best transactions from mempool.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
			{
				f := func(t *testing.T) {
					sort, err := selector.Retrieve(selector.StrategyAdvancedTip)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to get sort strategy function: %s", failed, testID, err)
					}

					txs := sort(group(tst.txs), tst.howMany)
					if len(txs) != tst.howMany {
						t.Fatalf("\t%s\tTest %d:\tShould to get %d after sort, but got %d", failed, testID, tst.howMany, len(txs))
					}

					for _, exp := range tst.best {
						found := false
						for _, tx := range txs {
							if exp.Nonce == tx.Nonce && exp.Signer == tx.Signer {
								found = true
								break
							}
						}

						if !found {
							t.Fatalf("\t%s\tTest %d:\tShould get back the right from/nonce: %s/%d", failed, testID, exp.Signer, exp.Nonce)
						}
						t.Logf("\t%s\tTest %d:\tShould get back the right from/nonce: %s/%d", success, testID, exp.Signer, exp.Nonce)
					}

					last := map[string]uint64{}
					for _, tx := range txs {
						if n, exists := last[tx.Signer.Hex()]; exists && tx.Nonce <= n {
							t.Fatalf("\t%s\tTest %d:\tShould keep the nonce order for %s.", failed, testID, tx.Signer)
						}
						last[tx.Signer.Hex()] = tx.Nonce
					}
					t.Logf("\t%s\tTest %d:\tShould keep the nonce order.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}
