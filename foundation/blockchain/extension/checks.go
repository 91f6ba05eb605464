package extension

import (
	"encoding/binary"
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/balances"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/payment"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/system"
	"github.com/ardanlabs/statecore/foundation/blockchain/signature"
	"github.com/ardanlabs/statecore/foundation/blockchain/validity"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/ethereum/go-ethereum/common"
)

// Version represents the runtime version a transaction was built for.
type Version struct {
	SpecVersion uint32 `json:"spec_version"`
	TxVersion   uint32 `json:"tx_version"`
}

// Era represents the window of blocks a transaction is valid for. A zero
// period makes the transaction immortal.
type Era struct {
	Birth  uint64 `json:"birth"`
	Period uint64 `json:"period"`
}

// Immortal reports whether the era never expires.
func (e Era) Immortal() bool {
	return e.Period == 0
}

// MetadataCheck represents whether the signer committed to the metadata of
// the runtime and to which metadata.
type MetadataCheck struct {
	Enabled bool        `json:"enabled"`
	Hash    common.Hash `json:"hash"`
}

// =============================================================================

// CheckAuthorization verifies the signature over the signing payload. It
// also keeps inherent calls and signatures apart: unsigned transactions
// can only carry mandatory calls and signed ones never can.
type CheckAuthorization struct {
	verify signature.Verifier
}

// NewCheckAuthorization constructs the extension using the verifier.
func NewCheckAuthorization(verify signature.Verifier) CheckAuthorization {
	return CheckAuthorization{verify: verify}
}

// Name implements the Extension interface.
func (CheckAuthorization) Name() string { return "CheckAuthorization" }

// Implicit implements the Extension interface.
func (CheckAuthorization) Implicit(env *module.Env, tx *Tx, payload []byte) ([]byte, error) {
	return nil, nil
}

// Validate implements the Extension interface.
func (c CheckAuthorization) Validate(env *module.Env, tx *Tx, payload []byte) (validity.Valid, error) {
	return validity.Default(), c.authorize(tx)
}

// Prepare implements the Extension interface.
func (c CheckAuthorization) Prepare(env *module.Env, tx *Tx, payload []byte) (PostDispatch, error) {
	return nil, c.authorize(tx)
}

// ValidateBare implements the BareExtension interface. Inherents are
// produced by the block author and never enter the pool.
func (c CheckAuthorization) ValidateBare(env *module.Env, tx *Tx) (validity.Valid, error) {
	if err := c.authorizeBare(tx); err != nil {
		return validity.Valid{}, err
	}

	return validity.Valid{}, validity.Invalid(validity.BadMandatory, "inherents can't be submitted")
}

// PrepareBare implements the BareExtension interface.
func (c CheckAuthorization) PrepareBare(env *module.Env, tx *Tx) (PostDispatch, error) {
	return nil, c.authorizeBare(tx)
}

func (c CheckAuthorization) authorize(tx *Tx) error {
	if tx.Info.Class == weight.Mandatory {
		return validity.Invalid(validity.BadMandatory, "signed transaction carries a mandatory call")
	}

	if !tx.implicitComplete() {
		return nil
	}

	msg, err := SigningHash(tx.Raw.Call, tx.Raw.Extensions, tx.Implicit)
	if err != nil {
		return validity.Invalid(validity.BadProof, "signing payload: %w", err)
	}

	if !c.verify(tx.Raw.Signature.Signer.Address(), msg, tx.Raw.Signature.Sig[:]) {
		return validity.Invalid(validity.BadProof, "signature doesn't match signer %s", tx.Raw.Signature.Signer)
	}

	return nil
}

func (c CheckAuthorization) authorizeBare(tx *Tx) error {
	if tx.Call.Call.Origin() == module.Signed {
		return validity.Invalid(validity.MissingSignature, "call requires a signed origin")
	}

	if tx.Info.Class != weight.Mandatory {
		return validity.Invalid(validity.BadMandatory, "unsigned transaction carries a non mandatory call")
	}

	return nil
}

// =============================================================================

// CheckNonZeroSender rejects transactions claiming the zero account.
type CheckNonZeroSender struct{}

// Name implements the Extension interface.
func (CheckNonZeroSender) Name() string { return "CheckNonZeroSender" }

// Implicit implements the Extension interface.
func (CheckNonZeroSender) Implicit(env *module.Env, tx *Tx, payload []byte) ([]byte, error) {
	return nil, nil
}

// Validate implements the Extension interface.
func (c CheckNonZeroSender) Validate(env *module.Env, tx *Tx, payload []byte) (validity.Valid, error) {
	return validity.Default(), c.check(tx)
}

// Prepare implements the Extension interface.
func (c CheckNonZeroSender) Prepare(env *module.Env, tx *Tx, payload []byte) (PostDispatch, error) {
	return nil, c.check(tx)
}

func (CheckNonZeroSender) check(tx *Tx) error {
	if who, _ := tx.Signer(); who.IsZero() {
		return validity.Invalid(validity.BadSigner, "zero account")
	}
	return nil
}

// =============================================================================

// CheckVersion binds a transaction to the runtime version it was built for.
type CheckVersion struct {
	version Version
}

// NewCheckVersion constructs the extension for the runtime version.
func NewCheckVersion(version Version) CheckVersion {
	return CheckVersion{version: version}
}

// Name implements the Extension interface.
func (CheckVersion) Name() string { return "CheckVersion" }

// Implicit implements the Extension interface.
func (CheckVersion) Implicit(env *module.Env, tx *Tx, payload []byte) ([]byte, error) {
	return nil, nil
}

// Validate implements the Extension interface.
func (c CheckVersion) Validate(env *module.Env, tx *Tx, payload []byte) (validity.Valid, error) {
	return validity.Default(), c.check(payload)
}

// Prepare implements the Extension interface.
func (c CheckVersion) Prepare(env *module.Env, tx *Tx, payload []byte) (PostDispatch, error) {
	return nil, c.check(payload)
}

func (c CheckVersion) check(payload []byte) error {
	v, err := decodePayload[Version](c.Name(), payload)
	if err != nil {
		return err
	}

	if v != c.version {
		return validity.Invalid(validity.BadVersion, "got %d.%d, exp %d.%d", v.SpecVersion, v.TxVersion, c.version.SpecVersion, c.version.TxVersion)
	}

	return nil
}

// =============================================================================

// CheckGenesis binds a transaction to the chain it was built for.
type CheckGenesis struct {
	genesis common.Hash
}

// NewCheckGenesis constructs the extension for the genesis hash.
func NewCheckGenesis(genesis common.Hash) CheckGenesis {
	return CheckGenesis{genesis: genesis}
}

// Name implements the Extension interface.
func (CheckGenesis) Name() string { return "CheckGenesis" }

// Implicit implements the Extension interface.
func (CheckGenesis) Implicit(env *module.Env, tx *Tx, payload []byte) ([]byte, error) {
	return nil, nil
}

// Validate implements the Extension interface.
func (c CheckGenesis) Validate(env *module.Env, tx *Tx, payload []byte) (validity.Valid, error) {
	return validity.Default(), c.check(payload)
}

// Prepare implements the Extension interface.
func (c CheckGenesis) Prepare(env *module.Env, tx *Tx, payload []byte) (PostDispatch, error) {
	return nil, c.check(payload)
}

func (c CheckGenesis) check(payload []byte) error {
	h, err := decodePayload[common.Hash](c.Name(), payload)
	if err != nil {
		return err
	}

	if h != c.genesis {
		return validity.Invalid(validity.BadGenesis, "got %s, exp %s", h, c.genesis)
	}

	return nil
}

// =============================================================================

// CheckEra limits the blocks a transaction can be included in. The hash of
// the birth block is part of the signed payload, so a mortal transaction
// built on a different fork fails its signature check.
type CheckEra struct {
	hashes system.BlockHashes
}

// NewCheckEra constructs the extension.
func NewCheckEra(hashes system.BlockHashes) CheckEra {
	return CheckEra{hashes: hashes}
}

// Name implements the Extension interface.
func (CheckEra) Name() string { return "CheckEra" }

// Implicit implements the Extension interface. It returns the hash of the
// birth block. An immortal transaction has nothing to add since the chain
// it targets is already bound by CheckGenesis.
func (c CheckEra) Implicit(env *module.Env, tx *Tx, payload []byte) ([]byte, error) {
	era, err := c.check(env, payload)
	if err != nil {
		return nil, err
	}

	if era.Immortal() {
		return nil, nil
	}

	h, found := c.hashes.BlockHash(env, era.Birth)
	if !found {
		return nil, validity.Invalid(validity.AncientBirthBlock, "birth blk[%d] is unknown", era.Birth)
	}

	return h.Bytes(), nil
}

// Validate implements the Extension interface. The longevity is the number
// of blocks left before the transaction expires.
func (c CheckEra) Validate(env *module.Env, tx *Tx, payload []byte) (validity.Valid, error) {
	era, err := c.check(env, payload)
	if err != nil {
		return validity.Valid{}, err
	}

	valid := validity.Default()
	if !era.Immortal() {
		valid.Longevity = era.Birth + era.Period - env.Number
	}

	return valid, nil
}

// Prepare implements the Extension interface.
func (c CheckEra) Prepare(env *module.Env, tx *Tx, payload []byte) (PostDispatch, error) {
	_, err := c.check(env, payload)
	return nil, err
}

func (c CheckEra) check(env *module.Env, payload []byte) (Era, error) {
	era, err := decodePayload[Era](c.Name(), payload)
	if err != nil {
		return Era{}, err
	}

	if era.Immortal() {
		return era, nil
	}

	if era.Birth >= env.Number {
		return Era{}, validity.Invalid(validity.Future, "birth blk[%d] is not before blk[%d]", era.Birth, env.Number)
	}

	end := era.Birth + era.Period
	if end < era.Birth {
		end = ^uint64(0)
	}

	if env.Number >= end {
		return Era{}, validity.Invalid(validity.Expired, "era ended at blk[%d], current blk[%d]", end, env.Number)
	}

	return era, nil
}

// =============================================================================

// CheckNonce enforces the order of the transactions of an account. At
// inclusion the nonce must match exactly and is then incremented. In the
// pool a nonce ahead of the account is accepted and marked as requiring
// its predecessor.
type CheckNonce struct {
	nonces system.Nonces
}

// NewCheckNonce constructs the extension.
func NewCheckNonce(nonces system.Nonces) CheckNonce {
	return CheckNonce{nonces: nonces}
}

// Name implements the Extension interface.
func (CheckNonce) Name() string { return "CheckNonce" }

// Implicit implements the Extension interface.
func (CheckNonce) Implicit(env *module.Env, tx *Tx, payload []byte) ([]byte, error) {
	return nil, nil
}

// Validate implements the Extension interface.
func (c CheckNonce) Validate(env *module.Env, tx *Tx, payload []byte) (validity.Valid, error) {
	nonce, err := decodePayload[uint64](c.Name(), payload)
	if err != nil {
		return validity.Valid{}, err
	}

	who, _ := tx.Signer()

	current := c.nonces.Nonce(env, who)
	if nonce < current {
		return validity.Valid{}, validity.Invalid(validity.Stale, "got nonce %d, exp %d", nonce, current)
	}

	valid := validity.Default()
	valid.Provides = [][]byte{NonceTag(who, nonce)}
	if nonce > current {
		valid.Requires = [][]byte{NonceTag(who, nonce-1)}
	}

	return valid, nil
}

// Prepare implements the Extension interface.
func (c CheckNonce) Prepare(env *module.Env, tx *Tx, payload []byte) (PostDispatch, error) {
	nonce, err := decodePayload[uint64](c.Name(), payload)
	if err != nil {
		return nil, err
	}

	who, _ := tx.Signer()

	current := c.nonces.Nonce(env, who)
	switch {
	case nonce < current:
		return nil, validity.Invalid(validity.Stale, "got nonce %d, exp %d", nonce, current)
	case nonce > current:
		return nil, validity.Invalid(validity.Future, "got nonce %d, exp %d", nonce, current)
	}

	c.nonces.IncNonce(env, who)

	return nil, nil
}

// NonceTag returns the pool tag provided by the transaction of the account
// with the nonce.
func NonceTag(who database.AccountID, nonce uint64) []byte {
	return binary.BigEndian.AppendUint64(tag("nonce/", who.Bytes()), nonce)
}

// =============================================================================

// ChargeTransaction accounts for the cost of a transaction. It enforces the
// per transaction ceiling, consumes the cost from the block meter and
// withdraws the fee up front. After dispatch the fee for weight the call
// didn't use is refunded and the rest goes to the block author.
type ChargeTransaction struct {
	charger  payment.Charger
	currency balances.Currency
}

// NewChargeTransaction constructs the extension.
func NewChargeTransaction(charger payment.Charger, currency balances.Currency) ChargeTransaction {
	return ChargeTransaction{charger: charger, currency: currency}
}

// Name implements the Extension interface.
func (ChargeTransaction) Name() string { return "ChargeTransaction" }

// Implicit implements the Extension interface.
func (ChargeTransaction) Implicit(env *module.Env, tx *Tx, payload []byte) ([]byte, error) {
	return nil, nil
}

// Validate implements the Extension interface. The tip is the priority of
// the transaction in the pool.
func (c ChargeTransaction) Validate(env *module.Env, tx *Tx, payload []byte) (validity.Valid, error) {
	tip, err := decodePayload[uint64](c.Name(), payload)
	if err != nil {
		return validity.Valid{}, err
	}

	if _, err := c.checkCeiling(env, tx); err != nil {
		return validity.Valid{}, err
	}

	who, _ := tx.Signer()

	fee := c.charger.ComputeFee(env, tx.Length, tx.Info, tip)
	if free := c.currency.FreeBalance(env, who); free < fee {
		return validity.Valid{}, validity.Invalid(validity.Payment, "fee %d exceeds balance %d", fee, free)
	}

	valid := validity.Default()
	valid.Priority = tip

	return valid, nil
}

// Prepare implements the Extension interface. A block without room for the
// transaction returns an error wrapping weight.ErrOverflow.
func (c ChargeTransaction) Prepare(env *module.Env, tx *Tx, payload []byte) (PostDispatch, error) {
	tip, err := decodePayload[uint64](c.Name(), payload)
	if err != nil {
		return nil, err
	}

	w, err := c.checkCeiling(env, tx)
	if err != nil {
		return nil, err
	}

	if err := env.Meter.TryConsume(w, tx.Length, tx.Info.Class); err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}

	who, _ := tx.Signer()

	fee := c.charger.ComputeFee(env, tx.Length, tx.Info, tip)
	if fee > 0 {
		if err := c.currency.Withdraw(env, who, fee); err != nil {
			return nil, validity.Invalid(validity.Payment, "%w", err)
		}
	}

	post := func(env *module.Env, post module.PostInfo, dispatchErr error) error {
		actual := min(c.charger.ComputeActualFee(env, tx.Length, tx.Info, post, tip), fee)

		if refund := fee - actual; refund > 0 {
			if err := c.currency.Deposit(env, who, refund); err != nil {
				return fmt.Errorf("refund %d to %s: %w", refund, who, err)
			}
		}

		if env.Author != nil && actual > 0 {
			if err := c.currency.Deposit(env, *env.Author, actual); err != nil {
				return fmt.Errorf("fee %d to author %s: %w", actual, *env.Author, err)
			}
		}

		c.charger.NoteFeePaid(env, who, actual, tip)

		return nil
	}

	return post, nil
}

// ValidateBare implements the BareExtension interface.
func (c ChargeTransaction) ValidateBare(env *module.Env, tx *Tx) (validity.Valid, error) {
	return validity.Default(), nil
}

// PrepareBare implements the BareExtension interface. Inherents pay no fee
// but their cost still counts towards the block.
func (c ChargeTransaction) PrepareBare(env *module.Env, tx *Tx) (PostDispatch, error) {
	w := tx.Info.Weight.Add(env.Meter.Limits().BaseExtrinsic)

	if err := env.Meter.TryConsume(w, tx.Length, tx.Info.Class); err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}

	return nil, nil
}

// checkCeiling returns the cost of the transaction after checking it fits
// the per transaction limits.
func (c ChargeTransaction) checkCeiling(env *module.Env, tx *Tx) (weight.Weight, error) {
	limits := env.Meter.Limits()

	w := tx.Info.Weight.Add(limits.BaseExtrinsic)
	if w.AnyGt(limits.MaxExtrinsic) {
		return weight.Weight{}, validity.Invalid(validity.ExhaustsResources, "weight %s exceeds %s", w, limits.MaxExtrinsic)
	}

	return w, nil
}

// =============================================================================

// CheckMetadata bounds the encoded size of a transaction and, when the
// signer asked for it, binds the transaction to the exact runtime metadata.
type CheckMetadata struct {
	registry *module.Registry
}

// NewCheckMetadata constructs the extension for the registry.
func NewCheckMetadata(registry *module.Registry) CheckMetadata {
	return CheckMetadata{registry: registry}
}

// Name implements the Extension interface.
func (CheckMetadata) Name() string { return "CheckMetadata" }

// Implicit implements the Extension interface.
func (CheckMetadata) Implicit(env *module.Env, tx *Tx, payload []byte) ([]byte, error) {
	return nil, nil
}

// Validate implements the Extension interface.
func (c CheckMetadata) Validate(env *module.Env, tx *Tx, payload []byte) (validity.Valid, error) {
	return validity.Default(), c.check(env, tx, payload)
}

// Prepare implements the Extension interface.
func (c CheckMetadata) Prepare(env *module.Env, tx *Tx, payload []byte) (PostDispatch, error) {
	return nil, c.check(env, tx, payload)
}

func (c CheckMetadata) check(env *module.Env, tx *Tx, payload []byte) error {
	if limit := env.Meter.Limits().MaxExtrinsicLength; tx.Length > limit {
		return validity.Invalid(validity.ExhaustsResources, "length %d exceeds %d", tx.Length, limit)
	}

	mc, err := decodePayload[MetadataCheck](c.Name(), payload)
	if err != nil {
		return err
	}

	if mc.Enabled && mc.Hash != c.registry.MetadataHash() {
		return validity.Invalid(validity.BadMetadataHash, "got %s, exp %s", mc.Hash, c.registry.MetadataHash())
	}

	return nil
}
