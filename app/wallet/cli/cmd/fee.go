package cmd

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var feeCmd = &cobra.Command{
	Use:   "fee",
	Short: "Print the fee a transfer would pay",
	Run:   feeRun,
}

func init() {
	rootCmd.AddCommand(feeCmd)
	addTransferFlags(feeCmd)
}

func feeRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	tx, err := transferTx(privateKey)
	if err != nil {
		log.Fatal(err)
	}

	var resp struct {
		Details struct {
			InclusionFee *struct {
				BaseFee           uint64 `json:"base_fee"`
				LenFee            uint64 `json:"len_fee"`
				AdjustedWeightFee uint64 `json:"adjusted_weight_fee"`
			} `json:"inclusion_fee"`
			Tip uint64 `json:"tip"`
		} `json:"details"`
		Final uint64 `json:"final"`
	}
	if err := postTx("/v1/tx/fee", tx, &resp); err != nil {
		log.Fatal(err)
	}

	if fee := resp.Details.InclusionFee; fee != nil {
		fmt.Println("Base  :", fee.BaseFee)
		fmt.Println("Length:", fee.LenFee)
		fmt.Println("Weight:", fee.AdjustedWeightFee)
	}
	fmt.Println("Tip   :", resp.Details.Tip)
	fmt.Println("Final :", resp.Final)
}
