package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "orderdesk",
	Short: "Installment order intake webhook and billing ledger",
	Long: `orderdesk records orders submitted by the website order form, emails
the pro-forma invoice, reminds customers before each installment is due and
tracks settlement.

Quick start:
  orderdesk validate   # Check orderdesk.yaml
  orderdesk serve      # Start the webhook server

Operations:
  orderdesk orders     # Inspect recorded orders
  orderdesk settle     # Mark an installment paid
  orderdesk schedule   # Preview an installment schedule
  orderdesk hash-token # Hash an admin API token`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "orderdesk.yaml", "config file path")
}
