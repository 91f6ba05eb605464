package cmd

import (
	"fmt"
	"log"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance and nonce.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	accountID := database.PublicKeyToAccountID(privateKey.PublicKey)
	fmt.Println("For Account:", accountID)

	act, err := queryAccount(accountID)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Free :", act.Free)
	fmt.Println("Nonce:", act.Nonce)
}
