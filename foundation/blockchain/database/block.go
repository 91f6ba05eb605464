package database

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// ErrChainForked is returned when a block does not extend our head.
var ErrChainForked = errors.New("block does not extend the chain head")

// Set of digest item kinds.
const (
	DigestPreRuntime uint8 = iota + 1
	DigestSeal
	DigestOther
)

// AuthorEngine identifies the digest item carrying the block author.
var AuthorEngine = [4]byte{'a', 'u', 't', 'h'}

// DigestItem represents an opaque entry in the header digest. The runtime
// only interprets the pre-runtime author item.
type DigestItem struct {
	Kind   uint8         `json:"kind"`
	Engine [4]byte       `json:"engine"`
	Data   hexutil.Bytes `json:"data"`
}

// AuthorDigest constructs the digest item naming the block author.
func AuthorDigest(author AccountID) DigestItem {
	return DigestItem{
		Kind:   DigestPreRuntime,
		Engine: AuthorEngine,
		Data:   author.Bytes(),
	}
}

// =============================================================================

// Header represents common information required for each block.
type Header struct {
	ParentHash     common.Hash  `json:"parent_hash"`     // Hash of the previous block in the chain.
	Number         uint64       `json:"number"`          // Block number in the chain.
	StateRoot      common.Hash  `json:"state_root"`      // Root of the state after the block is applied.
	ExtrinsicsRoot common.Hash  `json:"extrinsics_root"` // Merkle root of the ordered transactions.
	Digest         []DigestItem `json:"digest"`          // Consensus items, including the author.
}

// Hash returns the unique hash for the header.
func (h Header) Hash() common.Hash {
	data, err := rlp.EncodeToBytes(h)
	if err != nil {
		return common.Hash{}
	}

	return crypto.Keccak256Hash(data)
}

// Author returns the block author carried in the digest.
func (h Header) Author() (AccountID, bool) {
	for _, item := range h.Digest {
		if item.Kind != DigestPreRuntime || item.Engine != AuthorEngine {
			continue
		}

		if len(item.Data) != common.AddressLength {
			return AccountID{}, false
		}

		return AccountID(item.Data), true
	}

	return AccountID{}, false
}

// ValidateParent checks the header extends the specified parent header.
func (h Header) ValidateParent(parent Header) error {
	if h.Number != parent.Number+1 {
		return fmt.Errorf("this block is not the next number, got %d, exp %d: %w", h.Number, parent.Number+1, ErrChainForked)
	}

	if h.ParentHash != parent.Hash() {
		return fmt.Errorf("parent block hash doesn't match our known parent, got %s, exp %s: %w", h.ParentHash, parent.Hash(), ErrChainForked)
	}

	return nil
}

// =============================================================================

// Block represents a header and the ordered group of transactions it
// commits to.
type Block struct {
	Header       Header        `json:"header"`
	Transactions []Transaction `json:"transactions"`
}

// Hash returns the unique hash for the block. Only the header is hashed so
// the chain can be checked with headers alone.
func (b Block) Hash() common.Hash {
	return b.Header.Hash()
}

// Encode returns the canonical encoding of the block.
func (b Block) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(b)
}

// DecodeBlock decodes the canonical encoding of a block.
func DecodeBlock(data []byte) (Block, error) {
	var b Block
	if err := rlp.DecodeBytes(data, &b); err != nil {
		return Block{}, fmt.Errorf("decoding block: %w", err)
	}

	if len(b.Header.Digest) == 0 {
		b.Header.Digest = nil
	}
	if len(b.Transactions) == 0 {
		b.Transactions = nil
	}
	for i := range b.Transactions {
		b.Transactions[i].normalize()
	}

	return b, nil
}

// ExtrinsicsRoot calculates the merkle root over the ordered transactions.
// An empty block has the zero hash as its root.
func ExtrinsicsRoot(txs []Transaction) (common.Hash, error) {
	leafs := make([]txLeaf, len(txs))
	for i, tx := range txs {
		data, err := tx.Encode()
		if err != nil {
			return common.Hash{}, err
		}
		leafs[i] = data
	}

	tree, err := merkle.NewTree(leafs)
	if err != nil {
		return common.Hash{}, err
	}

	return tree.RootHash(), nil
}

// ExtrinsicProof returns the merkle proof that the transaction at the
// specified index is part of the block.
func ExtrinsicProof(txs []Transaction, index int) ([][]byte, []int64, error) {
	if index < 0 || index >= len(txs) {
		return nil, nil, merkle.ErrNotFound
	}

	leafs := make([]txLeaf, len(txs))
	for i, tx := range txs {
		data, err := tx.Encode()
		if err != nil {
			return nil, nil, err
		}
		leafs[i] = data
	}

	tree, err := merkle.NewTree(leafs)
	if err != nil {
		return nil, nil, err
	}

	return tree.Proof(leafs[index])
}

// txLeaf is the encoded transaction as a merkle tree leaf.
type txLeaf []byte

// Hash implements the merkle Hashable interface.
func (l txLeaf) Hash() ([]byte, error) {
	return crypto.Keccak256(l), nil
}

// Equals implements the merkle Hashable interface.
func (l txLeaf) Equals(other txLeaf) bool {
	return bytes.Equal(l, other)
}

// =============================================================================

// BlockData represents what can be serialized to disk and over the network.
type BlockData struct {
	Hash   common.Hash     `json:"hash"`
	Header Header          `json:"header"`
	Txs    []hexutil.Bytes `json:"txs"`
}

// NewBlockData constructs block data from a block.
func NewBlockData(block Block) (BlockData, error) {
	txs := make([]hexutil.Bytes, len(block.Transactions))
	for i, tx := range block.Transactions {
		data, err := tx.Encode()
		if err != nil {
			return BlockData{}, err
		}
		txs[i] = data
	}

	bd := BlockData{
		Hash:   block.Hash(),
		Header: block.Header,
		Txs:    txs,
	}

	return bd, nil
}

// ToBlock converts block data into a block, checking the recorded hash
// matches the header.
func ToBlock(blockData BlockData) (Block, error) {
	var txs []Transaction
	for i, data := range blockData.Txs {
		tx, err := DecodeTransaction(data)
		if err != nil {
			return Block{}, fmt.Errorf("tx[%d]: %w", i, err)
		}
		txs = append(txs, tx)
	}

	block := Block{
		Header:       blockData.Header,
		Transactions: txs,
	}

	if len(block.Header.Digest) == 0 {
		block.Header.Digest = nil
	}

	if block.Hash() != blockData.Hash {
		return Block{}, fmt.Errorf("block hash mismatch, got %s, exp %s", block.Hash(), blockData.Hash)
	}

	return block, nil
}
