package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var settleCmd = &cobra.Command{
	Use:   "settle <reference>",
	Short: "Mark an installment paid",
	Long: `Mark an installment of an order paid and queue the confirmation email.

The running server delivers the confirmation on its next outbox pass. Use
--deliver to send it from this command instead, when no server is running.

Examples:
  orderdesk settle EPX-1001
  orderdesk settle EPX-1001 --installment 1
  orderdesk settle EPX-1001 --deliver`,
	Args: cobra.ExactArgs(1),
	RunE: runSettle,
}

var (
	settleInstallment int
	settleDeliver     bool
)

func init() {
	rootCmd.AddCommand(settleCmd)

	settleCmd.Flags().IntVar(&settleInstallment, "installment", 0, "zero-based installment index")
	settleCmd.Flags().BoolVar(&settleDeliver, "deliver", false, "send the confirmation email now")
}

func runSettle(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	res, err := app.Settlement.Settle(ctx, args[0], settleInstallment)
	if err != nil {
		return fmt.Errorf("failed to settle: %w", err)
	}
	if !res.Found {
		fmt.Fprintf(out, "%s Order %s not found\n", crossMark, args[0])
		return fmt.Errorf("order %s not found", args[0])
	}
	if res.AlreadyPaid {
		fmt.Fprintf(out, "%s Order %s was already paid\n", checkMark, args[0])
		return nil
	}

	fmt.Fprintf(out, "%s Installment %d of %s marked paid\n", checkMark, settleInstallment+1, args[0])

	if settleDeliver {
		n := app.Dispatcher.ProcessPending(ctx)
		fmt.Fprintf(out, "   Delivered %d outbox task(s)\n", n)
	} else {
		fmt.Fprintln(out, "   Confirmation email queued")
	}
	return nil
}
