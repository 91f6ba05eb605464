package selector

import (
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
)

// arrivalSelect returns transactions in the order they entered the pool
// while respecting the nonce for each account. The next transaction of
// every account competes by arrival, so a transaction that arrived early
// waits behind the lower nonces of the same account.
var arrivalSelect = func(m map[database.AccountID][]Tx, howMany int) []Tx {
	sortByNonce(m)

	if howMany == -1 {
		howMany = count(m)
	}

	final := []Tx{}
	for len(final) < howMany {
		var (
			pick  database.AccountID
			found bool
		)

		for key, txs := range m {
			if len(txs) == 0 {
				continue
			}

			if !found || txs[0].Arrival < m[pick][0].Arrival {
				pick = key
				found = true
			}
		}

		if !found {
			break
		}

		final = append(final, m[pick][0])
		m[pick] = m[pick][1:]
	}

	return final
}
