package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"areacapture/generation"
)

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret <secret>",
	Short: "Print a bcrypt hash for GENERATION_SECRET_HASH",
	Args:  cobra.ExactArgs(1),
	RunE:  runHashSecret,
}

var hashSecretCostFlag int

func init() {
	hashSecretCmd.Flags().IntVar(&hashSecretCostFlag, "cost", generation.DefaultCost, "bcrypt cost")
}

func runHashSecret(cmd *cobra.Command, args []string) error {
	hash, err := generation.HashSecretWithCost(args[0], hashSecretCostFlag)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
