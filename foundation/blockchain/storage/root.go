package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/trie"
)

// root calculates the merkle patricia root over the committed pairs with the
// specified changes applied. Keys are hashed before insertion so the shape
// of the trie does not depend on the key layout chosen by modules. An empty
// state hashes to the empty trie root.
func root(db ethdb.Iteratee, changes map[string]change) (common.Hash, error) {
	state := make(map[string][]byte)

	it := db.NewIterator(nil, nil)
	for it.Next() {
		k := string(it.Key())
		if _, exists := changes[k]; exists {
			continue
		}
		state[k] = common.CopyBytes(it.Value())
	}
	err := it.Error()
	it.Release()

	if err != nil {
		return common.Hash{}, fmt.Errorf("iterating state: %w", err)
	}

	for k, ch := range changes {
		if !ch.deleted {
			state[k] = ch.value
		}
	}

	hashed := make([]Pair, 0, len(state))
	for k, v := range state {
		hashed = append(hashed, Pair{Key: crypto.Keccak256([]byte(k)), Value: v})
	}
	sortPairs(hashed)

	st := trie.NewStackTrie(nil)
	for _, p := range hashed {
		if err := st.Update(p.Key, p.Value); err != nil {
			return common.Hash{}, fmt.Errorf("updating trie key[%x]: %w", p.Key, err)
		}
	}

	return st.Hash(), nil
}
