// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
var ZeroHash = common.Hash{}

// Length is the number of bytes in a signature in the [R|S|V] format.
const Length = crypto.SignatureLength

// ardanID is an arbitrary number for signing messages. This will make it
// clear that the signature comes from the Ardan blockchain.
// Ethereum and Bitcoin do this as well, but they use the value of 27.
const ardanID = 29

// Verifier defines the pluggable contract for checking that sig was produced
// by the owner of signer over msg. The core never depends on the concrete
// signature scheme, only on this function.
type Verifier func(signer common.Address, msg []byte, sig []byte) bool

// =============================================================================

// Hash returns the keccak256 hash of the concatenated data.
func Hash(data ...[]byte) common.Hash {
	return crypto.Keccak256Hash(data...)
}

// Sign uses the specified private key to sign the message.
func Sign(msg []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {

	// Prepare the data for signing.
	data := stamp(msg)

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return nil, err
	}

	// Extract the public key from the data and the signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return nil, err
	}

	// Check the public key extracted from the data and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return nil, errors.New("invalid signature")
	}

	// Stamp the recovery id so our signatures can't be replayed as
	// plain Ethereum signatures.
	sig[crypto.RecoveryIDOffset] += ardanID

	return sig, nil
}

// Verify implements the Verifier contract using secp256k1 public key
// recovery. The signature is valid when the recovered address is the signer.
func Verify(signer common.Address, msg []byte, sig []byte) bool {
	if err := VerifySignatureValues(sig); err != nil {
		return false
	}

	addr, err := FromAddress(msg, sig)
	if err != nil {
		return false
	}

	return addr == signer
}

// VerifySignatureValues verifies the signature conforms to our standards.
func VerifySignatureValues(sig []byte) error {
	if len(sig) != Length {
		return errors.New("invalid signature length")
	}

	// Check the recovery id is either 0 or 1.
	v := sig[crypto.RecoveryIDOffset] - ardanID
	if v != 0 && v != 1 {
		return errors.New("invalid recovery id")
	}

	// Check the signature values are valid.
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return errors.New("invalid signature values")
	}

	return nil
}

// FromAddress extracts the address for the account that signed the message.
func FromAddress(msg []byte, sig []byte) (common.Address, error) {

	// NOTE: If the same exact message for the given signature is not provided
	// we will get the wrong from address. The public key is being extracted
	// from the data and signature.

	if len(sig) != Length {
		return common.Address{}, errors.New("invalid signature length")
	}

	// Capture the public key associated with this data and signature.
	publicKey, err := crypto.SigToPub(stamp(msg), toRecoverable(sig))
	if err != nil {
		return common.Address{}, err
	}

	// Extract the account address from the public key.
	return crypto.PubkeyToAddress(*publicKey), nil
}

// SignatureString returns the signature as a string.
func SignatureString(sig []byte) string {
	return hexutil.Encode(sig)
}

// FromHexSignature converts a hex representation of the signature into
// its byte form.
func FromHexSignature(sigStr string) ([]byte, error) {
	sig, err := hexutil.Decode(sigStr)
	if err != nil {
		return nil, err
	}

	if len(sig) != Length {
		return nil, errors.New("invalid signature length")
	}

	return sig, nil
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this message with
// the Ardan stamp embedded into the final hash.
func stamp(msg []byte) []byte {

	// Hash the message into a 32 byte array. This will provide
	// a data length consistency with all data.
	txHash := crypto.Keccak256(msg)

	// This stamp is used so signatures we produce when signing data
	// are always unique to the Ardan blockchain.
	stamp := []byte("\x19Ardan Signed Message:\n32")

	// Hash the stamp and txHash together in a final 32 byte array
	// that represents the data.
	return crypto.Keccak256(stamp, txHash)
}

// toRecoverable returns a copy of the signature with the ardanID removed
// from the recovery id.
func toRecoverable(sig []byte) []byte {
	cpy := make([]byte, Length)
	copy(cpy, sig)
	cpy[crypto.RecoveryIDOffset] -= ardanID

	return cpy
}
