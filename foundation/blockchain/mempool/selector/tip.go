package selector

import (
	"sort"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
)

// tipSelect returns transactions with the best tip while respecting the nonce
// for each account/transaction.
var tipSelect = func(m map[database.AccountID][]Tx, howMany int) []Tx {

	/*
		Bill: {Nonce: 2, Tip: 250},
			  {Nonce: 1, Tip: 150},
		Pavl: {Nonce: 2, Tip: 200},
			  {Nonce: 1, Tip: 75},
		Edua: {Nonce: 2, Tip: 75},
			  {Nonce: 1, Tip: 100},
	*/

	// Sort the transactions per account by nonce.
	sortByNonce(m)

	if howMany == -1 {
		howMany = count(m)
	}

	/*
		Bill: {Nonce: 1, Tip: 150},
		      {Nonce: 2, Tip: 250},
		Pavl: {Nonce: 1, Tip: 75},
		      {Nonce: 2, Tip: 200},
		Edua: {Nonce: 1, Tip: 100},
		      {Nonce: 2, Tip: 75},
	*/

	// Pick the first transaction in the slice for each account. Each iteration
	// represents a new row of selections. Keep doing that until all the
	// transactions have been selected.
	var rows [][]Tx
	for {
		var row []Tx
		for key := range m {
			if len(m[key]) > 0 {
				row = append(row, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	/*
		0: Bill: {Nonce: 1, Tip: 150},
		0: Pavl: {Nonce: 1, Tip: 75},
		0: Edua: {Nonce: 1, Tip: 100},
		1: Bill: {Nonce: 2, Tip: 250},
		1: Pavl: {Nonce: 2, Tip: 200},
		1: Edua: {Nonce: 2, Tip: 75},
	*/

	// Sort each row by tip so the order doesn't depend on map iteration.
	// Then try to select the number of requested transactions. Keep pulling
	// transactions from each row until the amount is fulfilled or there are
	// no more transactions.
	final := []Tx{}
done:
	for _, row := range rows {
		sort.Sort(byTip(row))

		need := howMany - len(final)
		if len(row) > need {
			final = append(final, row[:need]...)
			break done
		}
		final = append(final, row...)
	}

	/*
		0: Bill: {Nonce: 1, Tip: 150},
		1: Edua: {Nonce: 1, Tip: 100},
		2: Pavl: {Nonce: 1, Tip: 75},
		3: Bill: {Nonce: 2, Tip: 250},
	*/

	return final
}
