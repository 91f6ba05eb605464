// Package commands contains the functionality for the admin tooling.
package commands

import (
	"github.com/ardanlabs/statecore/foundation/blockchain/chain"
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
)

// Env represents what every command can use.
type Env struct {
	Runtime *chain.Runtime
	DB      *database.Database
	DBPath  string
	Scratch *storage.Store // Holds the genesis state only.
}
