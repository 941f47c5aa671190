package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/spf13/cobra"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect recorded orders",
	Long: `Inspect the order ledger.

Examples:
  orderdesk orders list
  orderdesk orders list --limit 10
  orderdesk orders show EPX-1001`,
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orders, most recent first",
	RunE:  runOrdersList,
}

var ordersShowCmd = &cobra.Command{
	Use:   "show <reference>",
	Short: "Show an order with its schedule, reminders and outbox",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrdersShow,
}

var (
	ordersLimit  int
	ordersOffset int
)

func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.AddCommand(ordersListCmd)
	ordersCmd.AddCommand(ordersShowCmd)

	ordersListCmd.Flags().IntVar(&ordersLimit, "limit", 50, "maximum number of orders")
	ordersListCmd.Flags().IntVar(&ordersOffset, "offset", 0, "number of orders to skip")
}

func runOrdersList(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	orders, err := app.Ledger.List(context.Background(), ordersLimit, ordersOffset)
	if err != nil {
		return fmt.Errorf("failed to list orders: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(orders) == 0 {
		fmt.Fprintln(out, "No orders found.")
		return nil
	}

	fmt.Fprint(out, renderOrderList(orders))
	return nil
}

func runOrdersShow(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	ctx := context.Background()
	ref := args[0]

	o, err := app.Ledger.Get(ctx, ref)
	if errors.Is(err, order.ErrOrderNotFound) {
		return fmt.Errorf("order %s not found", ref)
	}
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}

	tasks, err := app.Dispatcher.TasksFor(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to list outbox tasks: %w", err)
	}
	reminders, err := app.Reminders.ListForOrder(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to list reminders: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), renderOrder(o, tasks, reminders))
	return nil
}
