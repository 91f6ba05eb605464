package commands

import (
	"context"
	"fmt"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/statecore/foundation/blockchain/chain"
)

// Replay re-executes every archived block on top of the genesis state. Each
// block must reproduce the state root recorded in its header.
func Replay(args conf.Args, env Env) error {
	exec, err := env.Runtime.Executive(chain.ExecutiveConfig{
		Store:   env.Scratch,
		Genesis: env.DB.Genesis(),
		Head:    env.DB.Genesis(),
	})
	if err != nil {
		return err
	}

	latest := env.DB.LatestBlock().Header.Number

	for i := uint64(1); i <= latest; i++ {
		block, err := env.DB.GetBlock(i)
		if err != nil {
			return err
		}

		if err := exec.ExecuteBlock(context.Background(), block); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}

		fmt.Printf("Block: %d  Root: %s  ok\n", i, block.Header.StateRoot)
	}

	fmt.Printf("\nReplayed %d blocks\n", latest)

	return nil
}
