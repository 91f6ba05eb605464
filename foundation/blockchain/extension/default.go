package extension

import (
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/balances"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/payment"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/system"
	"github.com/ardanlabs/statecore/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common"
)

// Config represents what the canonical pipeline needs from the runtime.
type Config struct {
	Verifier signature.Verifier
	Version  Version
	Genesis  common.Hash
	Registry *module.Registry
	Nonces   system.Nonces
	Hashes   system.BlockHashes
	Charger  payment.Charger
	Currency balances.Currency
}

// Default constructs the canonical pipeline. Cheap and broad checks come
// first so bad transactions are rejected early. Params.Explicit produces
// the payloads in the same order.
func Default(cfg Config) *Pipeline {
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = signature.Verify
	}

	return New(
		NewCheckAuthorization(verifier),
		CheckNonZeroSender{},
		NewCheckVersion(cfg.Version),
		NewCheckGenesis(cfg.Genesis),
		NewCheckEra(cfg.Hashes),
		NewCheckNonce(cfg.Nonces),
		NewChargeTransaction(cfg.Charger, cfg.Currency),
		NewCheckMetadata(cfg.Registry),
	)
}
