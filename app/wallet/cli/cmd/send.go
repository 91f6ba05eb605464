package cmd

import (
	"crypto/ecdsa"
	"fmt"
	"log"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/extension"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/balances"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	to            string
	value         uint64
	tip           uint64
	nonce         int64
	checkMetadata bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a transfer transaction",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	addTransferFlags(sendCmd)
}

func addTransferFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&to, "to", "t", "", "Account receiving the value.")
	cmd.Flags().Uint64VarP(&value, "value", "v", 0, "Value to send.")
	cmd.Flags().Uint64VarP(&tip, "tip", "c", 0, "Tip for the block author.")
	cmd.Flags().Int64VarP(&nonce, "nonce", "n", -1, "Nonce of the transaction, the next nonce when negative.")
	cmd.Flags().BoolVarP(&checkMetadata, "metadata", "m", false, "Commit to the node's metadata hash.")
}

func sendRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	tx, err := transferTx(privateKey)
	if err != nil {
		log.Fatal(err)
	}

	var resp struct {
		Status   string `json:"status"`
		Hash     string `json:"hash"`
		Priority uint64 `json:"priority"`
	}
	if err := postTx("/v1/tx/submit", tx, &resp); err != nil {
		log.Fatal(err)
	}

	fmt.Println(resp.Status)
	fmt.Println("Hash    :", resp.Hash)
	fmt.Println("Priority:", resp.Priority)
}

// transferTx builds and signs a transfer from the wallet account.
func transferTx(privateKey *ecdsa.PrivateKey) (database.Transaction, error) {
	dest, err := database.ToAccountID(to)
	if err != nil {
		return database.Transaction{}, fmt.Errorf("to: %w", err)
	}

	n := uint64(nonce)
	if nonce < 0 {
		act, err := queryAccount(database.PublicKeyToAccountID(privateKey.PublicKey))
		if err != nil {
			return database.Transaction{}, err
		}
		n = act.Nonce
	}

	call, err := buildCall(balances.Name, balances.Transfer{Dest: dest, Value: value})
	if err != nil {
		return database.Transaction{}, err
	}

	p, err := signingParams(n, tip, checkMetadata)
	if err != nil {
		return database.Transaction{}, err
	}

	return extension.Sign(call, p, privateKey)
}

func postTx(path string, tx database.Transaction, v any) error {
	data, err := tx.Encode()
	if err != nil {
		return err
	}

	body := struct {
		Tx hexutil.Bytes `json:"tx"`
	}{
		Tx: data,
	}

	return postJSON(path, body, v)
}
