// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/payment"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/ardanlabs/statecore/foundation/validate"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date           time.Time                     `json:"date"`
	SpecVersion    uint32                        `json:"spec_version" validate:"required"`  // Version of the state transition rules.
	TxVersion      uint32                        `json:"tx_version" validate:"required"`    // Version of the transaction format.
	BlockHashCount uint64                        `json:"block_hash_count" validate:"gte=1"` // How many recent block hashes are kept.
	MinimumPeriod  uint64                        `json:"minimum_period"`                    // Milliseconds between two block timestamps.
	Limits         weight.Limits                 `json:"limits"`                            // Cost limits of a block and a transaction.
	Fees           payment.Config                `json:"fees"`                              // Fee schedule.
	Sudo           database.AccountID            `json:"sudo"`                              // Account allowed to dispatch as root.
	Balances       map[database.AccountID]uint64 `json:"balances" validate:"required,gt=0"` // Starting balances.
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, fmt.Errorf("validating genesis: %w", err)
	}

	return genesis, nil
}

// Validate checks the genesis values are complete and consistent.
func (g Genesis) Validate() error {
	if err := validate.Check(g); err != nil {
		return err
	}

	if g.Limits.MaxBlock.IsZero() || g.Limits.MaxBlockLength == 0 {
		return errors.New("block limits must be set")
	}

	if err := g.Limits.Validate(); err != nil {
		return err
	}

	var total uint64
	for account, free := range g.Balances {
		if account.IsZero() {
			return errors.New("zero account can't hold a balance")
		}
		if total+free < total {
			return errors.New("total issuance overflows")
		}
		total += free
	}

	return nil
}
