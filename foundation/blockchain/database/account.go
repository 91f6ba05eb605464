package database

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account represents the information held on chain for an individual account.
type Account struct {
	AccountID AccountID `json:"account"`
	Nonce     uint64    `json:"nonce"`
	Free      uint64    `json:"free"`
}

// =============================================================================

// AccountID represents an account id that is used to sign transactions and is
// associated with state on the blockchain. It is derived from the public key
// of the account the same way an Ethereum address is.
type AccountID [common.AddressLength]byte

// ZeroAccountID represents the account id of all zeros.
var ZeroAccountID AccountID

// ToAccountID converts a hex-encoded string to an account and validates the
// hex-encoded string is formatted correctly.
func ToAccountID(hex string) (AccountID, error) {
	if !common.IsHexAddress(hex) {
		return AccountID{}, errors.New("invalid account format")
	}

	return AccountID(common.HexToAddress(hex)), nil
}

// PublicKeyToAccountID converts the public key to an account value.
func PublicKeyToAccountID(pk ecdsa.PublicKey) AccountID {
	return AccountID(crypto.PubkeyToAddress(pk))
}

// Address returns the account as an Ethereum address.
func (a AccountID) Address() common.Address {
	return common.Address(a)
}

// IsZero reports whether the account is the zero account.
func (a AccountID) IsZero() bool {
	return a == ZeroAccountID
}

// String implements the fmt.Stringer interface.
func (a AccountID) String() string {
	return common.Address(a).Hex()
}

// MarshalText implements the encoding.TextMarshaler interface.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (a *AccountID) UnmarshalText(input []byte) error {
	var addr common.Address
	if err := addr.UnmarshalText(input); err != nil {
		return err
	}

	*a = AccountID(addr)
	return nil
}

// Bytes returns the account id as a byte slice.
func (a AccountID) Bytes() []byte {
	return a[:]
}

// Hex returns the account id as a hex string without checksum casing.
func (a AccountID) Hex() string {
	return hexutil.Encode(a[:])
}
