package database_test

import (
	"encoding/json"
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/database/archive"
	"github.com/ardanlabs/statecore/foundation/blockchain/extension"
	"github.com/ardanlabs/statecore/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func signedTx(nonce byte) database.Transaction {
	var sig [database.SignatureLength]byte
	sig[0] = nonce

	return database.Transaction{
		Signature: &database.SignatureData{
			Signer: database.AccountID(common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")),
			Sig:    sig,
		},
		Call: database.Call{
			Module:   2,
			Function: 0,
			Args:     []byte{0x01, 0x02, nonce},
		},
		Extensions: []hexutil.Bytes{{0xc0}, nil, {nonce}},
	}
}

func genesisHeader() database.Header {
	return database.Header{
		StateRoot: crypto.Keccak256Hash([]byte("genesis")),
	}
}

func nextBlock(t *testing.T, parent database.Header, txs ...database.Transaction) database.Block {
	root, err := database.ExtrinsicsRoot(txs)
	require.NoError(t, err)

	return database.Block{
		Header: database.Header{
			ParentHash:     parent.Hash(),
			Number:         parent.Number + 1,
			StateRoot:      crypto.Keccak256Hash(parent.StateRoot.Bytes()),
			ExtrinsicsRoot: root,
			Digest:         []database.DigestItem{database.AuthorDigest(database.AccountID{0x01})},
		},
		Transactions: txs,
	}
}

// =============================================================================

func Test_TransactionRoundTrip(t *testing.T) {
	txs := []database.Transaction{
		signedTx(1),
		database.NewUnsigned(database.Call{Module: 1, Function: 0, Args: []byte{0x85, 0x01, 0x02, 0x03, 0x04, 0x05}}),
		database.NewUnsigned(database.Call{Module: 0, Function: 0}),
	}

	for _, tx := range txs {
		data, err := tx.Encode()
		require.NoError(t, err)

		got, err := database.DecodeTransaction(data)
		require.NoError(t, err)
		require.Equal(t, tx, got)
		require.Equal(t, tx.Hash(), got.Hash())

		again, err := got.Encode()
		require.NoError(t, err)
		require.Equal(t, data, again, "encoding must be bit exact")
	}
}

func Test_SignedTransactionRoundTrip(t *testing.T) {
	pk, err := crypto.HexToECDSA("fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959")
	require.NoError(t, err)

	metadata := crypto.Keccak256Hash([]byte("metadata"))
	base := extension.Params{
		Version: extension.Version{SpecVersion: 100, TxVersion: 1},
		Genesis: crypto.Keccak256Hash([]byte("genesis")),
	}

	type table struct {
		name   string
		params func() extension.Params
	}

	tt := []table{
		{name: "immortal", params: func() extension.Params { return base }},
		{name: "mortal", params: func() extension.Params {
			p := base
			p.Era = extension.Era{Birth: 5, Period: 64}
			p.BirthHash = crypto.Keccak256Hash([]byte("block 5"))
			return p
		}},
		{name: "tip and nonce", params: func() extension.Params {
			p := base
			p.Nonce = 42
			p.Tip = 1_000_000
			return p
		}},
		{name: "metadata enabled", params: func() extension.Params {
			p := base
			p.Metadata = &metadata
			return p
		}},
		{name: "everything", params: func() extension.Params {
			p := base
			p.Era = extension.Era{Birth: 1, Period: 4}
			p.BirthHash = crypto.Keccak256Hash([]byte("block 1"))
			p.Nonce = ^uint64(0)
			p.Tip = 7
			p.Metadata = &metadata
			return p
		}},
	}

	call := database.Call{Module: 2, Function: 0, Args: []byte{0xc2, 0x01, 0x02}}

	for _, tst := range tt {
		t.Run(tst.name, func(t *testing.T) {
			p := tst.params()

			tx, err := extension.Sign(call, p, pk)
			require.NoError(t, err)

			data, err := tx.Encode()
			require.NoError(t, err)

			got, err := database.DecodeTransaction(data)
			require.NoError(t, err)
			require.Equal(t, tx, got)

			again, err := got.Encode()
			require.NoError(t, err)
			require.Equal(t, data, again, "encoding must be bit exact")

			parsed, err := extension.ParseExplicit(got.Extensions)
			require.NoError(t, err)

			p.BirthHash = common.Hash{}
			require.Equal(t, p, parsed)
		})
	}
}

func Test_TransactionDecodeRejects(t *testing.T) {
	data, err := signedTx(1).Encode()
	require.NoError(t, err)

	_, err = database.DecodeTransaction(append(data, 0x00))
	require.Error(t, err, "trailing bytes")

	_, err = database.DecodeTransaction(data[:len(data)-1])
	require.Error(t, err, "truncated")

	_, err = database.DecodeTransaction(nil)
	require.Error(t, err, "empty")
}

func Test_Signer(t *testing.T) {
	tx := signedTx(1)

	signer, ok := tx.Signer()
	require.True(t, ok)
	require.Equal(t, "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4", signer.String())

	_, ok = database.NewUnsigned(database.Call{}).Signer()
	require.False(t, ok)
}

func Test_AccountID(t *testing.T) {
	id, err := database.ToAccountID("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	require.NoError(t, err)
	require.False(t, id.IsZero())

	data, err := json.Marshal(id)
	require.NoError(t, err)
	require.Equal(t, `"0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"`, string(data))

	var back database.AccountID
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, id, back)

	_, err = database.ToAccountID("0x1234")
	require.Error(t, err)

	require.True(t, database.ZeroAccountID.IsZero())
}

func Test_Header(t *testing.T) {
	gen := genesisHeader()
	b1 := nextBlock(t, gen, signedTx(1))

	require.NoError(t, b1.Header.ValidateParent(gen))

	author, ok := b1.Header.Author()
	require.True(t, ok)
	require.Equal(t, database.AccountID{0x01}, author)

	_, ok = gen.Author()
	require.False(t, ok)

	b2 := nextBlock(t, b1.Header)
	require.ErrorIs(t, b2.Header.ValidateParent(gen), database.ErrChainForked, "wrong number")

	bad := b1
	bad.Header.ParentHash = common.Hash{0x01}
	require.ErrorIs(t, bad.Header.ValidateParent(gen), database.ErrChainForked, "wrong parent")

	require.NotEqual(t, b1.Hash(), b2.Hash())
}

func Test_BlockRoundTrip(t *testing.T) {
	b := nextBlock(t, genesisHeader(), signedTx(1), signedTx(2))

	data, err := b.Encode()
	require.NoError(t, err)

	got, err := database.DecodeBlock(data)
	require.NoError(t, err)
	require.Equal(t, b, got)

	bd, err := database.NewBlockData(b)
	require.NoError(t, err)

	raw, err := json.Marshal(bd)
	require.NoError(t, err)

	var back database.BlockData
	require.NoError(t, json.Unmarshal(raw, &back))

	blk, err := database.ToBlock(back)
	require.NoError(t, err)
	require.Equal(t, b.Hash(), blk.Hash())
	require.Equal(t, b.Transactions, blk.Transactions)

	back.Hash = common.Hash{}
	_, err = database.ToBlock(back)
	require.Error(t, err, "hash mismatch")
}

func Test_ExtrinsicsRoot(t *testing.T) {
	empty, err := database.ExtrinsicsRoot(nil)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, empty)

	txs := []database.Transaction{signedTx(1), signedTx(2), signedTx(3)}

	root, err := database.ExtrinsicsRoot(txs)
	require.NoError(t, err)

	swapped, err := database.ExtrinsicsRoot([]database.Transaction{txs[1], txs[0], txs[2]})
	require.NoError(t, err)
	require.NotEqual(t, root, swapped, "root commits to order")

	for i, tx := range txs {
		proof, order, err := database.ExtrinsicProof(txs, i)
		require.NoError(t, err)

		data, err := tx.Encode()
		require.NoError(t, err)

		require.True(t, merkle.VerifyProof(root.Bytes(), crypto.Keccak256(data), proof, order, merkle.Keccak256))
	}

	_, _, err = database.ExtrinsicProof(txs, 3)
	require.Error(t, err)
}

func Test_Archive(t *testing.T) {
	serializers := map[string]func(t *testing.T) database.Serializer{
		"memory": func(t *testing.T) database.Serializer {
			return archive.NewMemory()
		},
		"disk": func(t *testing.T) database.Serializer {
			d, err := archive.NewDisk(t.TempDir())
			require.NoError(t, err)
			return d
		},
	}

	for name, fn := range serializers {
		t.Run(name, func(t *testing.T) {
			ser := fn(t)
			gen := genesisHeader()

			db, err := database.New(gen, ser, func(string, ...any) {})
			require.NoError(t, err)
			require.Equal(t, gen.Hash(), db.LatestBlock().Hash())

			b1 := nextBlock(t, gen, signedTx(1))
			b2 := nextBlock(t, b1.Header, signedTx(2), signedTx(3))

			require.NoError(t, db.Write(b1))
			require.ErrorIs(t, db.Write(b1), database.ErrChainForked, "second import of the same block")
			require.NoError(t, db.Write(b2))
			require.Equal(t, b2.Hash(), db.LatestBlock().Hash())

			got, err := db.GetBlock(1)
			require.NoError(t, err)
			require.Equal(t, b1.Hash(), got.Hash())

			got, err = db.GetBlock(0)
			require.NoError(t, err)
			require.Equal(t, gen.Hash(), got.Hash())

			// Reopening walks the archive and lands on the same head.
			reopened, err := database.New(gen, ser, func(string, ...any) {})
			require.NoError(t, err)
			require.Equal(t, b2.Hash(), reopened.LatestBlock().Hash())

			var n int
			iter := reopened.ForEach()
			for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
				require.NoError(t, err)
				n++
				require.Equal(t, uint64(n), block.Header.Number)
			}
			require.Equal(t, 2, n)

			require.NoError(t, db.Reset())
			require.Equal(t, gen.Hash(), db.LatestBlock().Hash())
		})
	}
}
