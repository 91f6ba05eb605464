// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"
	"sort"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyArrival     = "arrival"
	StrategyTip         = "tip"
	StrategyAdvancedTip = "advanced_tip"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyArrival:     arrivalSelect,
	StrategyTip:         tipSelect,
	StrategyAdvancedTip: advancedTipSelect,
}

// Tx is a pool transaction with the values the strategies order by. The
// values are read from the extension payloads when the transaction enters
// the pool.
type Tx struct {
	database.Transaction
	Signer   database.AccountID
	Nonce    uint64
	Tip      uint64
	Priority uint64
	Arrival  uint64
}

// Func defines a function that takes a mempool of transactions grouped by
// account and selects howMany of them in an order based on the functions
// strategy. All selector functions MUST respect nonce ordering. Receiving -1
// for howMany must return all the transactions in the strategies ordering.
type Func func(transactions map[database.AccountID][]Tx, howMany int) []Tx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// byNonce provides sorting support by the transaction nonce value.
type byNonce []Tx

// Len returns the number of transactions in the list.
func (bn byNonce) Len() int {
	return len(bn)
}

// Less helps to sort the list by nonce in ascending order to keep the
// transactions in the right order of processing.
func (bn byNonce) Less(i, j int) bool {
	return bn[i].Nonce < bn[j].Nonce
}

// Swap moves transactions in the order of the nonce value.
func (bn byNonce) Swap(i, j int) {
	bn[i], bn[j] = bn[j], bn[i]
}

// =============================================================================

// byTip provides sorting support by the transaction tip value.
type byTip []Tx

// Len returns the number of transactions in the list.
func (bt byTip) Len() int {
	return len(bt)
}

// Less helps to sort the list by tip in decending order to pick the
// transactions that provide the best reward. Ties go to the earliest
// arrival so the order is stable between nodes.
func (bt byTip) Less(i, j int) bool {
	if bt[i].Tip == bt[j].Tip {
		return bt[i].Arrival < bt[j].Arrival
	}
	return bt[i].Tip > bt[j].Tip
}

// Swap moves transactions in the order of the tip value.
func (bt byTip) Swap(i, j int) {
	bt[i], bt[j] = bt[j], bt[i]
}

// =============================================================================

// sortByNonce sorts the transactions of every account by nonce.
func sortByNonce(m map[database.AccountID][]Tx) {
	for key := range m {
		if len(m[key]) > 1 {
			sort.Sort(byNonce(m[key]))
		}
	}
}

// count returns the number of transactions held in the map.
func count(m map[database.AccountID][]Tx) int {
	var n int
	for _, txs := range m {
		n += len(txs)
	}
	return n
}
