package commands

import (
	"fmt"
	"strconv"

	"github.com/ardanlabs/conf/v3"
)

// Blocks prints the headers of the archived blocks in the range.
func Blocks(args conf.Args, env Env) error {
	latest := env.DB.LatestBlock().Header.Number

	from, to := uint64(1), latest
	if s := args.Num(1); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("from: %w", err)
		}
		from = v
	}
	if s := args.Num(2); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("to: %w", err)
		}
		to = min(v, latest)
	}

	fmt.Printf("Genesis: %s\n", env.DB.Genesis().Hash())
	fmt.Printf("Latest : %d %s\n\n", latest, env.DB.LatestBlock().Hash())

	for i := from; i <= to; i++ {
		block, err := env.DB.GetBlock(i)
		if err != nil {
			return err
		}

		author := "none"
		if id, exists := block.Header.Author(); exists {
			author = id.String()
		}

		fmt.Printf("Block: %d  Hash: %s  Txs: %d  Author: %s\n", i, block.Hash(), len(block.Transactions), author)
		fmt.Printf("       StateRoot: %s\n", block.Header.StateRoot)
	}

	return nil
}
