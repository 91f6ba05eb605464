package selector

import (
	"bytes"
	"sort"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
)

// advancedTipSelect returns transactions with the best tip while respecting the nonce
// for each account/transaction. This strategy takes into account high-value transactions
// that happens to be stuck on a low-nonce transaction with a low tip price.
var advancedTipSelect = func(m map[database.AccountID][]Tx, howMany int) []Tx {
	final := []Tx{}

	// Sort the transactions per account by nonce.
	sortByNonce(m)

	if howMany == -1 {
		howMany = count(m)
	}

	at := newAdvancedTips(m, howMany)
	best := at.findBest()

	for _, from := range at.groups {
		for i := 0; i < best[from]; i++ {
			final = append(final, m[from][i])
		}
	}

	return final
}

// =============================================================================

type advancedTips struct {
	howMany   int
	bestTip   uint64
	bestPos   map[database.AccountID]int
	groupTips map[database.AccountID][]uint64
	groups    []database.AccountID
}

func newAdvancedTips(m map[database.AccountID][]Tx, howMany int) *advancedTips {
	groupTips := map[database.AccountID][]uint64{}
	groups := []database.AccountID{}

	for from := range m {
		groupTips[from] = []uint64{0}
		groups = append(groups, from)
	}

	// Walk the accounts in a fixed order so equal totals resolve the same
	// way every time.
	sort.Slice(groups, func(i, j int) bool {
		return bytes.Compare(groups[i][:], groups[j][:]) < 0
	})

	for from, group := range m {
		for i, tx := range group {
			if i >= howMany {
				break
			}
			groupTips[from] = append(groupTips[from], tx.Tip+groupTips[from][i])
		}
	}

	return &advancedTips{
		howMany:   howMany,
		bestPos:   map[database.AccountID]int{},
		groupTips: groupTips,
		groups:    groups,
	}
}

func (at *advancedTips) findBest() map[database.AccountID]int {
	at.findBestTransactions(0, at.howMany, map[database.AccountID]int{}, 0)
	return at.bestPos
}

func (at *advancedTips) findBestTransactions(groupID int, left int, currPos map[database.AccountID]int, prevTip uint64) {
	if prevTip > at.bestTip {
		at.bestTip = prevTip
		at.bestPos = currPos
	}

	if groupID >= len(at.groups) {
		return
	}
	from := at.groups[groupID]

	for pos, tip := range at.groupTips[from] {
		if left-pos < 0 {
			break
		}

		newCurrPos := copyMap(currPos)
		newCurrPos[from] = pos
		at.findBestTransactions(groupID+1, left-pos, newCurrPos, prevTip+tip)
	}
}

// =============================================================================

func copyMap(m map[database.AccountID]int) map[database.AccountID]int {
	newCurrPos := map[database.AccountID]int{}
	for from, pos := range m {
		newCurrPos[from] = pos
	}

	return newCurrPos
}
