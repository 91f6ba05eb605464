package extension

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// signingPayload is what the signer of a transaction commits to.
type signingPayload struct {
	Call     database.Call
	Explicit []hexutil.Bytes
	Implicit [][]byte
}

// SigningHash returns the hash of the call, the explicit payloads carried by
// the transaction and the implicit data of every extension.
func SigningHash(call database.Call, explicit []hexutil.Bytes, implicit [][]byte) ([]byte, error) {
	data, err := rlp.EncodeToBytes(signingPayload{
		Call:     call,
		Explicit: explicit,
		Implicit: implicit,
	})
	if err != nil {
		return nil, err
	}

	return crypto.Keccak256(data), nil
}

// =============================================================================

// Params represents what a client needs to know to build a transaction for
// the canonical pipeline.
type Params struct {
	Version   Version      `json:"version"`
	Genesis   common.Hash  `json:"genesis"`
	Era       Era          `json:"era"`
	BirthHash common.Hash  `json:"birth_hash"` // Hash of the birth block, ignored when immortal.
	Nonce     uint64       `json:"nonce"`
	Tip       uint64       `json:"tip"`
	Metadata  *common.Hash `json:"metadata,omitempty"` // Nil disables the metadata check.
}

// Explicit returns the payloads carried by the transaction in pipeline
// order.
func (p Params) Explicit() ([]hexutil.Bytes, error) {
	mc := MetadataCheck{}
	if p.Metadata != nil {
		mc = MetadataCheck{Enabled: true, Hash: *p.Metadata}
	}

	values := []any{
		nil,
		nil,
		p.Version,
		p.Genesis,
		p.Era,
		p.Nonce,
		p.Tip,
		mc,
	}

	explicit := make([]hexutil.Bytes, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}

		data, err := rlp.EncodeToBytes(v)
		if err != nil {
			return nil, fmt.Errorf("payload[%d]: %w", i, err)
		}
		explicit[i] = data
	}

	return explicit, nil
}

// Implicit returns the implicit data the runtime will add to the signed
// payload in pipeline order.
func (p Params) Implicit() [][]byte {
	var birth []byte
	if !p.Era.Immortal() {
		birth = p.BirthHash.Bytes()
	}

	return [][]byte{nil, nil, nil, nil, birth, nil, nil, nil}
}

// Sign constructs a transaction for the call signed with the private key.
func Sign(call database.Call, p Params, privateKey *ecdsa.PrivateKey) (database.Transaction, error) {
	explicit, err := p.Explicit()
	if err != nil {
		return database.Transaction{}, err
	}

	msg, err := SigningHash(call, explicit, p.Implicit())
	if err != nil {
		return database.Transaction{}, err
	}

	sig, err := signature.Sign(msg, privateKey)
	if err != nil {
		return database.Transaction{}, err
	}

	sd := database.SignatureData{
		Signer: database.PublicKeyToAccountID(privateKey.PublicKey),
	}
	copy(sd.Sig[:], sig)

	tx := database.Transaction{
		Signature:  &sd,
		Call:       call,
		Extensions: explicit,
	}

	return tx, nil
}

// ParseExplicit decodes the payloads of a transaction built for the
// canonical pipeline. The birth hash isn't carried by the transaction and
// is left empty.
func ParseExplicit(explicit []hexutil.Bytes) (Params, error) {
	if len(explicit) != 8 {
		return Params{}, fmt.Errorf("got %d payloads, exp 8", len(explicit))
	}

	var p Params
	var mc MetadataCheck

	targets := []struct {
		idx int
		v   any
	}{
		{2, &p.Version},
		{3, &p.Genesis},
		{4, &p.Era},
		{5, &p.Nonce},
		{6, &p.Tip},
		{7, &mc},
	}

	for _, tg := range targets {
		if err := rlp.DecodeBytes(explicit[tg.idx], tg.v); err != nil {
			return Params{}, fmt.Errorf("payload[%d]: %w", tg.idx, err)
		}
	}

	if mc.Enabled {
		p.Metadata = &mc.Hash
	}

	return p, nil
}
