package main

import (
	"fmt"

	"github.com/OdyseeTeam/powchain/chainutil"
	"github.com/OdyseeTeam/powchain/wallet"

	"github.com/spf13/cobra"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Create or inspect wallet keys",
}

var walletNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a key pair and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := chainutil.GenKeyPair()
		if err != nil {
			return err
		}
		return printKey(cmd, kp)
	},
}

var walletShowCmd = &cobra.Command{
	Use:   "show <key file>",
	Short: "Print the public key and address for a key file, creating it if missing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := wallet.LoadOrCreateKey(args[0])
		if err != nil {
			return err
		}
		return printKey(cmd, kp)
	},
}

func init() {
	walletCmd.AddCommand(walletNewCmd, walletShowCmd)
	rootCmd.AddCommand(walletCmd)
}

func printKey(cmd *cobra.Command, kp *chainutil.KeyPair) error {
	addr, err := chainutil.AddressFor(kp.PublicKey())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "private key: %s\n", kp.PrivateKey())
	fmt.Fprintf(out, "public key:  %s\n", kp.PublicKey())
	fmt.Fprintf(out, "address:     %s\n", addr)
	return nil
}
