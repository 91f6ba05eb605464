package database

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// SignatureLength is the number of bytes in a signature in the [R|S|V] format.
const SignatureLength = crypto.SignatureLength

// Call represents the module function being invoked and its encoded
// arguments. The module and function are positions in the runtime's
// registry.
type Call struct {
	Module   uint8         `json:"module"`
	Function uint8         `json:"function"`
	Args     hexutil.Bytes `json:"args"`
}

// SignatureData represents the claimed signer of a transaction and the
// signature over its signing payload.
type SignatureData struct {
	Signer AccountID             `json:"signer"`
	Sig    [SignatureLength]byte `json:"sig"`
}

// Transaction is the wire form of an extrinsic. An unsigned transaction has
// no signature and no extension payloads and can only carry inherent calls.
// Extensions holds one encoded payload per transaction extension in the
// order the runtime registers them.
type Transaction struct {
	Signature  *SignatureData  `json:"signature" rlp:"nil"`
	Call       Call            `json:"call"`
	Extensions []hexutil.Bytes `json:"extensions"`
}

// NewUnsigned constructs an unsigned transaction for the specified call.
func NewUnsigned(call Call) Transaction {
	return Transaction{Call: call}
}

// IsSigned reports whether the transaction carries a signature.
func (tx Transaction) IsSigned() bool {
	return tx.Signature != nil
}

// Signer returns the claimed signer of the transaction.
func (tx Transaction) Signer() (AccountID, bool) {
	if tx.Signature == nil {
		return AccountID{}, false
	}

	return tx.Signature.Signer, true
}

// Encode returns the canonical encoding of the transaction.
func (tx Transaction) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(tx)
}

// Hash returns the keccak256 hash of the canonical encoding.
func (tx Transaction) Hash() common.Hash {
	data, err := tx.Encode()
	if err != nil {
		return common.Hash{}
	}

	return crypto.Keccak256Hash(data)
}

// Equals reports whether both transactions have the same encoding.
func (tx Transaction) Equals(other Transaction) bool {
	a, err := tx.Encode()
	if err != nil {
		return false
	}

	b, err := other.Encode()
	if err != nil {
		return false
	}

	return bytes.Equal(a, b)
}

// String implements the fmt.Stringer interface for logging.
func (tx Transaction) String() string {
	signer := "unsigned"
	if tx.Signature != nil {
		signer = tx.Signature.Signer.String()
	}

	return fmt.Sprintf("%s:%d.%d", signer, tx.Call.Module, tx.Call.Function)
}

// DecodeTransaction decodes the canonical encoding of a transaction. Any
// trailing bytes are an error so each transaction has exactly one encoding.
func DecodeTransaction(data []byte) (Transaction, error) {
	var tx Transaction
	if err := rlp.DecodeBytes(data, &tx); err != nil {
		return Transaction{}, fmt.Errorf("decoding transaction: %w", err)
	}

	tx.normalize()

	return tx, nil
}

// normalize replaces empty slices produced by the decoder with nil so a
// decoded transaction compares equal to the one that was encoded.
func (tx *Transaction) normalize() {
	if len(tx.Call.Args) == 0 {
		tx.Call.Args = nil
	}

	if len(tx.Extensions) == 0 {
		tx.Extensions = nil
		return
	}

	for i := range tx.Extensions {
		if len(tx.Extensions[i]) == 0 {
			tx.Extensions[i] = nil
		}
	}
}
