// This program performs offline administrative tasks against the data
// directory of a stopped node.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/statecore/app/tooling/admin/commands"
	"github.com/ardanlabs/statecore/foundation/blockchain/chain"
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/database/archive"
	"github.com/ardanlabs/statecore/foundation/blockchain/genesis"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	cfg := struct {
		conf.Version
		Args        conf.Args
		DBPath      string `conf:"default:zblock/chain/"`
		GenesisPath string `conf:"default:zblock/genesis.json"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "ADMIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	gen, err := genesis.Load(cfg.GenesisPath)
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}

	runtime, err := chain.Build(gen)
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}

	// The genesis header only depends on the genesis state so a scratch
	// store is enough to produce it.
	scratch := storage.NewMemory()
	defer scratch.Close()

	genesisHeader, err := runtime.Open(scratch)
	if err != nil {
		return fmt.Errorf("opening genesis: %w", err)
	}

	disk, err := archive.NewDisk(filepath.Join(cfg.DBPath, "blocks"))
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...))
	}

	db, err := database.New(genesisHeader, disk, ev)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	env := commands.Env{
		Runtime: runtime,
		DB:      db,
		DBPath:  cfg.DBPath,
		Scratch: scratch,
	}

	return processCommands(cfg.Args, env)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args conf.Args, env commands.Env) error {
	switch args.Num(0) {
	case "blocks":
		if err := commands.Blocks(args, env); err != nil {
			return fmt.Errorf("listing blocks: %w", err)
		}

	case "account":
		if err := commands.Account(args, env); err != nil {
			return fmt.Errorf("getting account: %w", err)
		}

	case "replay":
		if err := commands.Replay(args, env); err != nil {
			return fmt.Errorf("replaying chain: %w", err)
		}

	default:
		fmt.Println("blocks [from] [to]: list the archived blocks")
		fmt.Println("account <id>:       show the nonce and balance of an account")
		fmt.Println("replay:             re-execute every block from genesis")
	}

	return nil
}
