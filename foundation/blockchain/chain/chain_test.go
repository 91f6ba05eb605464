package chain_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/chain"
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/executive"
	"github.com/ardanlabs/statecore/foundation/blockchain/extension"
	"github.com/ardanlabs/statecore/foundation/blockchain/genesis"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/balances"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/payment"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/sudo"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/template"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const (
	keyPavel = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	keyBill  = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
)

func key(t *testing.T, hexKey string) (*ecdsa.PrivateKey, database.AccountID) {
	pk, err := crypto.HexToECDSA(hexKey)
	require.NoError(t, err)
	return pk, database.PublicKeyToAccountID(pk.PublicKey)
}

func testGenesis(t *testing.T) genesis.Genesis {
	_, pavel := key(t, keyPavel)
	_, bill := key(t, keyBill)

	return genesis.Genesis{
		SpecVersion:    100,
		TxVersion:      1,
		BlockHashCount: 2400,
		MinimumPeriod:  3_000,
		Limits: weight.Limits{
			MaxBlock:           weight.New(1_500_000_000_000, 5_242_880),
			MaxExtrinsic:       weight.New(1_000_000_000_000, 5_242_880),
			BaseExtrinsic:      weight.New(125_000_000, 0),
			MaxBlockLength:     5_242_880,
			MaxExtrinsicLength: 3_932_160,
		},
		Fees:     payment.Config{BaseFee: 1, WeightFee: 1, WeightUnit: 1_000_000},
		Sudo:     pavel,
		Balances: map[database.AccountID]uint64{pavel: 1_000_000, bill: 1_000_000},
	}
}

type node struct {
	runtime *chain.Runtime
	store   *storage.Store
	genesis database.Header
	exec    *executive.Executive
}

func newNode(t *testing.T) *node {
	r, err := chain.Build(testGenesis(t))
	require.NoError(t, err)

	store := storage.NewMemory()
	t.Cleanup(func() { store.Close() })

	gen, err := r.Open(store)
	require.NoError(t, err)

	exec, err := r.Executive(chain.ExecutiveConfig{Store: store, Genesis: gen, Head: gen})
	require.NoError(t, err)

	return &node{runtime: r, store: store, genesis: gen, exec: exec}
}

func (n *node) sign(t *testing.T, hexKey string, nonce uint64, moduleName string, call module.Call) database.Transaction {
	pk, _ := key(t, hexKey)

	wire, err := n.runtime.Encode(moduleName, call)
	require.NoError(t, err)

	tx, err := extension.Sign(wire, extension.Params{Version: n.runtime.Version, Genesis: n.genesis.Hash(), Nonce: nonce}, pk)
	require.NoError(t, err)

	return tx
}

func (n *node) author(t *testing.T, now uint64, source ...database.Transaction) database.Block {
	inherents, err := n.runtime.Inherents(now)
	require.NoError(t, err)

	head := n.exec.Head()
	header := database.Header{ParentHash: head.Hash(), Number: head.Number + 1}

	block, rejected, err := n.exec.AuthorBlock(context.Background(), header, inherents, source)
	require.NoError(t, err)
	require.Empty(t, rejected)

	return block
}

func (n *node) view(t *testing.T, fn func(env *module.Env)) {
	err := n.store.View(func(o *storage.Overlay) error {
		fn(&module.Env{Overlay: o, Log: eventlog.New(), Registry: n.runtime.Registry})
		return nil
	})
	require.NoError(t, err)
}

func events(exec *executive.Executive, name string) []eventlog.Record {
	var recs []eventlog.Record
	for _, rec := range exec.Events() {
		if rec.Name == name {
			recs = append(recs, rec)
		}
	}
	return recs
}

// =============================================================================

func TestGenesisState(t *testing.T) {
	r, err := chain.Build(testGenesis(t))
	require.NoError(t, err)

	pairs, err := r.GenesisState()
	require.NoError(t, err)
	require.NotEmpty(t, pairs)

	for i := 1; i < len(pairs); i++ {
		require.Negative(t, bytes.Compare(pairs[i-1].Key, pairs[i].Key), "pairs must be strictly increasing")
	}

	a := newNode(t)
	b := newNode(t)
	require.Equal(t, a.genesis.Hash(), b.genesis.Hash())

	root, err := a.store.Root()
	require.NoError(t, err)
	require.Equal(t, a.genesis.StateRoot, root)
}

func TestRegistryLayout(t *testing.T) {
	r, err := chain.Build(testGenesis(t))
	require.NoError(t, err)

	names := []string{"System", "Timestamp", "Balances", "Payment", "Sudo", "Template"}
	require.Equal(t, len(names), r.Registry.Len())

	for i, name := range names {
		idx, exists := r.Registry.Index(name)
		require.True(t, exists, name)
		require.Equal(t, uint8(i), idx, name)
	}
}

func TestAuthorAndImport(t *testing.T) {
	author := newNode(t)
	importer := newNode(t)

	_, pavel := key(t, keyPavel)
	_, bill := key(t, keyBill)

	source := []database.Transaction{
		author.sign(t, keyBill, 0, balances.Name, balances.Transfer{Dest: pavel, Value: 1_000}),
		author.sign(t, keyPavel, 0, template.Name, template.DoSomething{Something: 41}),
		author.sign(t, keyPavel, 1, template.Name, template.CauseError{}),
		author.sign(t, keyBill, 1, sudo.Name, mustSudo(t, author.runtime, balances.ForceSetBalance{Who: bill, Free: 5})),
	}

	block := author.author(t, 6_000, source...)
	require.Len(t, block.Transactions, 5)

	outcomes := author.exec.Outcomes()
	require.Len(t, outcomes, 5)
	require.True(t, outcomes[1].Ok)
	require.True(t, outcomes[2].Ok)
	require.True(t, outcomes[3].Ok)
	require.False(t, outcomes[4].Ok, "only the sudo key can use sudo")

	require.NoError(t, importer.exec.ExecuteBlock(context.Background(), block))
	require.Equal(t, author.exec.Head().Hash(), importer.exec.Head().Hash())

	author.view(t, func(env *module.Env) {
		something, found := author.runtime.Template.Something(env)
		require.True(t, found)
		require.Equal(t, uint32(42), something)

		want := 1_000_000 + 1_000 - outcomes[2].Fee - outcomes[3].Fee
		require.Equal(t, want, author.runtime.Balances.FreeBalance(env, pavel))
		require.Equal(t, uint64(1_000_000-1_000)-outcomes[1].Fee-outcomes[4].Fee, author.runtime.Balances.FreeBalance(env, bill))
	})
}

func TestSudo(t *testing.T) {
	n := newNode(t)

	_, bill := key(t, keyBill)

	tx := n.sign(t, keyPavel, 0, sudo.Name, mustSudo(t, n.runtime, balances.ForceSetBalance{Who: bill, Free: 5}))
	n.author(t, 6_000, tx)

	sudid := events(n.exec, sudo.EventSudid)
	require.Len(t, sudid, 1)
	require.True(t, sudid[0].Data.(sudo.SudidEvent).Ok)

	free, err := n.exec.FreeBalance(bill)
	require.NoError(t, err)
	require.Equal(t, uint64(5), free)

	_, pavel := key(t, keyPavel)
	paid, err := n.exec.FreeBalance(pavel)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), paid, "sudo by the key is free")
}

func TestInherentRequired(t *testing.T) {
	n := newNode(t)

	head := n.exec.Head()
	header := database.Header{ParentHash: head.Hash(), Number: head.Number + 1}

	_, _, err := n.exec.AuthorBlock(context.Background(), header, nil, nil)
	require.True(t, errors.Is(err, executive.ErrMalformedBlock))
	require.Equal(t, executive.Errored, n.exec.State())

	n.exec.Abort()
	n.author(t, 6_000)
	require.Equal(t, uint64(1), n.exec.Head().Number)
}

func mustSudo(t *testing.T, r *chain.Runtime, call module.Call) sudo.SudoCall {
	rc, err := r.Registry.Encode(balances.Name, call)
	require.NoError(t, err)

	sc, err := sudo.NewSudoCall(rc)
	require.NoError(t, err)

	return sc
}
