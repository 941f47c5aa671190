package main

import (
	"fmt"

	"github.com/eurekapx/orderdesk/adapters/hasher"
	"github.com/eurekapx/orderdesk/adapters/random"
	"github.com/spf13/cobra"
)

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Hash an admin API token",
	Long: `Print the bcrypt hash of an admin API token for admin.token_hash.

Without an argument a random token is generated and printed once.

Examples:
  orderdesk hash-token
  orderdesk hash-token my-long-secret`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashToken,
}

var hashTokenCost int

func init() {
	rootCmd.AddCommand(hashTokenCmd)

	hashTokenCmd.Flags().IntVar(&hashTokenCost, "cost", 10, "bcrypt cost")
}

func runHashToken(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	token := ""
	if len(args) == 1 {
		token = args[0]
	} else {
		t, err := random.Token(nil, 24)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		token = t
		fmt.Fprintf(out, "Token: %s\n", token)
	}

	hash, err := hasher.NewBcrypt(hashTokenCost).Hash(token)
	if err != nil {
		return fmt.Errorf("hash token: %w", err)
	}

	fmt.Fprintf(out, "Hash:  %s\n", hash)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Set it with:")
	fmt.Fprintf(out, "  export ORDERDESK_ADMIN_TOKEN_HASH='%s'\n", hash)
	return nil
}
