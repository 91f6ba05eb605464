package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/statecore/foundation/blockchain/chain"
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
)

// Account prints the nonce and free balance of an account as of the latest
// archived block.
func Account(args conf.Args, env Env) error {
	if args.Num(1) == "" {
		return errors.New("missing account id")
	}

	accountID, err := database.ToAccountID(args.Num(1))
	if err != nil {
		return err
	}

	store, err := storage.NewLevelDB(filepath.Join(env.DBPath, "state"), 16, 16)
	if err != nil {
		return fmt.Errorf("opening state: %w", err)
	}
	defer store.Close()

	head := env.DB.LatestBlock().Header

	root, err := store.Root()
	if err != nil {
		return err
	}
	if root != head.StateRoot {
		return fmt.Errorf("state root %s doesn't match block %d root %s", root, head.Number, head.StateRoot)
	}

	exec, err := env.Runtime.Executive(chain.ExecutiveConfig{
		Store:   store,
		Genesis: env.DB.Genesis(),
		Head:    head,
	})
	if err != nil {
		return err
	}

	nonce, err := exec.AccountNonce(accountID)
	if err != nil {
		return err
	}

	free, err := exec.FreeBalance(accountID)
	if err != nil {
		return err
	}

	fmt.Printf("Block  : %d\n", head.Number)
	fmt.Printf("Account: %s\n", accountID)
	fmt.Printf("Nonce  : %d\n", nonce)
	fmt.Printf("Free   : %d\n", free)

	return nil
}
