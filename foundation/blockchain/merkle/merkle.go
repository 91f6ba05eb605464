// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle provides an implementation of a merkle tree used to commit
// to the ordered list of extrinsics in a block and to produce inclusion
// proofs for them.
package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"hash"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNotFound is returned when the requested value is not a leaf of the tree.
var ErrNotFound = errors.New("unable to find data in tree")

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// Keccak256 is the default hash strategy. It matches the hashing used for
// block and state roots.
func Keccak256() hash.Hash {
	return crypto.NewKeccakState()
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint. A tree with no leaves has the
// zero hash as its root.
type Tree[T Hashable[T]] struct {
	Root         *Node[T]
	Leafs        []*Node[T]
	MerkleRoot   []byte
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using
// keccak256 when constructing a new tree.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		hashStrategy: Keccak256,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate constructs the leafs and nodes of the tree from the specified
// data. If the tree has been generated previously, the tree is re-generated
// from scratch.
func (t *Tree[T]) Generate(values []T) error {
	if len(values) == 0 {
		t.Root = nil
		t.Leafs = nil
		t.MerkleRoot = make([]byte, common.HashLength)
		return nil
	}

	leafs := make([]*Node[T], 0, len(values)+1)
	for _, value := range values {
		hash, err := value.Hash()
		if err != nil {
			return err
		}

		leafs = append(leafs, &Node[T]{
			Hash:  hash,
			Value: value,
			leaf:  true,
			Tree:  t,
		})
	}

	// An odd number of leafs gets the last leaf duplicated so every
	// intermediate node has two children.
	if len(leafs)%2 == 1 {
		last := leafs[len(leafs)-1]
		leafs = append(leafs, &Node[T]{
			Hash:  last.Hash,
			Value: last.Value,
			leaf:  true,
			dup:   true,
			Tree:  t,
		})
	}

	root, err := buildIntermediate(leafs, t)
	if err != nil {
		return err
	}

	t.Root = root
	t.Leafs = leafs
	t.MerkleRoot = root.Hash

	return nil
}

// Rebuild is a helper function that will rebuild the tree reusing only the
// data that it currently holds in the leaves.
func (t *Tree[T]) Rebuild() error {
	return t.Generate(t.Values())
}

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving a value is in the tree. An order of 0 means the proof
// hash comes first, 1 means it comes second.
//
//	h := leafHash
//	for i := range proof {
//		if order[i] == 0 { h = hash(proof[i] + h) } else { h = hash(h + proof[i]) }
//	}
//
// The calculated hash should match the merkle root.
func (t *Tree[T]) Proof(data T) ([][]byte, []int64, error) {
	for _, node := range t.Leafs {
		if node.dup || !node.Value.Equals(data) {
			continue
		}

		var merkleProof [][]byte
		var order []int64
		nodeParent := node.Parent

		for nodeParent != nil {
			if nodeParent.Left == node {
				merkleProof = append(merkleProof, nodeParent.Right.Hash)
				order = append(order, 1) // right leaf, concat second.
			} else {
				merkleProof = append(merkleProof, nodeParent.Left.Hash)
				order = append(order, 0) // left leaf, concat first.
			}
			node = nodeParent
			nodeParent = nodeParent.Parent
		}

		return merkleProof, order, nil
	}

	return nil, nil, ErrNotFound
}

// Verify validates the hashes at each level of the tree and returns an error
// if the resulting hash at the root of the tree does not match the root hash.
func (t *Tree[T]) Verify() error {
	if t.Root == nil {
		if !bytes.Equal(t.MerkleRoot, make([]byte, common.HashLength)) {
			return errors.New("root hash invalid")
		}
		return nil
	}

	calculatedMerkleRoot, err := t.Root.verify()
	if err != nil {
		return err
	}

	if !bytes.Equal(t.MerkleRoot, calculatedMerkleRoot) {
		return errors.New("root hash invalid")
	}

	return nil
}

// VerifyData indicates whether a given piece of data is in the tree and if the
// hashes are valid for that data along its path to the root.
func (t *Tree[T]) VerifyData(data T) error {
	for _, node := range t.Leafs {
		if !node.Value.Equals(data) {
			continue
		}

		currentParent := node.Parent
		for currentParent != nil {
			rightBytes, err := currentParent.Right.CalculateHash()
			if err != nil {
				return err
			}

			leftBytes, err := currentParent.Left.CalculateHash()
			if err != nil {
				return err
			}

			h, err := t.sum(leftBytes, rightBytes)
			if err != nil {
				return err
			}

			if !bytes.Equal(h, currentParent.Hash) {
				return errors.New("merkle root is not equivalent to the merkle root calculated on the critical path")
			}

			currentParent = currentParent.Parent
		}

		return nil
	}

	return ErrNotFound
}

// Values returns a slice of unique values stored in the tree in the order
// they were provided.
func (t *Tree[T]) Values() []T {
	values := make([]T, 0, len(t.Leafs))
	for _, node := range t.Leafs {
		if node.dup {
			continue
		}
		values = append(values, node.Value)
	}

	return values
}

// RootHash returns the merkle root as a 32 byte hash.
func (t *Tree[T]) RootHash() common.Hash {
	return common.BytesToHash(t.MerkleRoot)
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.MerkleRoot)
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree[T]) String() string {
	var b bytes.Buffer
	for _, l := range t.Leafs {
		fmt.Fprintln(&b, l)
	}

	return b.String()
}

// MarshalText implements the TextMarshaler interface and returns an error
// if anyone tries to marshal the merkle tree. Use the Values function to
// return a slice that can be marshaled.
func (t *Tree[T]) MarshalText() (text []byte, err error) {
	return nil, errors.New("do not marshal the merkle tree, use Values")
}

// sum hashes the concatenation of the left and right hashes.
func (t *Tree[T]) sum(left []byte, right []byte) ([]byte, error) {
	h := t.hashStrategy()

	if _, err := h.Write(left); err != nil {
		return nil, err
	}
	if _, err := h.Write(right); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// =============================================================================

// VerifyProof checks a proof produced by Proof against a root without
// needing the tree. This is what a light client holding only block headers
// would run.
func VerifyProof(root []byte, leaf []byte, proof [][]byte, order []int64, hashStrategy func() hash.Hash) bool {
	if len(proof) != len(order) {
		return false
	}

	cur := leaf
	for i := range proof {
		h := hashStrategy()
		switch order[i] {
		case 0:
			h.Write(proof[i])
			h.Write(cur)
		default:
			h.Write(cur)
			h.Write(proof[i])
		}
		cur = h.Sum(nil)
	}

	return bytes.Equal(cur, root)
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. It stores pointers to its
// immediate relationships, a hash, the data if it is a leaf, and other metadata.
type Node[T Hashable[T]] struct {
	Tree   *Tree[T]
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   []byte
	Value  T
	leaf   bool
	dup    bool
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node[T]) verify() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	rightBytes, err := n.Right.verify()
	if err != nil {
		return nil, err
	}

	leftBytes, err := n.Left.verify()
	if err != nil {
		return nil, err
	}

	return n.Tree.sum(leftBytes, rightBytes)
}

// CalculateHash is a helper function that calculates the hash of the node.
func (n *Node[T]) CalculateHash() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	return n.Tree.sum(n.Left.Hash, n.Right.Hash)
}

// String returns a string representation of the node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %t %x %v", n.leaf, n.dup, n.Hash, n.Value)
}

// =============================================================================

// buildIntermediate is a helper function that for a given list of leaf nodes,
// constructs the intermediate and root levels of the tree. Returns the resulting
// root node of the tree.
func buildIntermediate[T Hashable[T]](nl []*Node[T], t *Tree[T]) (*Node[T], error) {
	var nodes []*Node[T]

	for i := 0; i < len(nl); i += 2 {
		left, right := i, i+1
		if i+1 == len(nl) {
			right = i
		}

		hash, err := t.sum(nl[left].Hash, nl[right].Hash)
		if err != nil {
			return nil, err
		}

		n := Node[T]{
			Left:  nl[left],
			Right: nl[right],
			Hash:  hash,
			Tree:  t,
		}

		nodes = append(nodes, &n)
		nl[left].Parent = &n
		nl[right].Parent = &n

		if len(nl) == 2 {
			return &n, nil
		}
	}

	return buildIntermediate(nodes, t)
}
