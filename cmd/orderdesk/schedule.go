package main

import (
	"fmt"
	"time"

	"github.com/eurekapx/orderdesk/config"
	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Preview installment schedules",
}

var schedulePreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the installments and reminders of a plan",
	Long: `Show the amounts, due dates and reminder dates an order would get.

The CDF rate comes from the configuration when one is found, otherwise from
--rate.

Examples:
  orderdesk schedule preview --plan 4weeks
  orderdesk schedule preview --plan 3months --currency cdf --from 2025-03-01`,
	RunE: runSchedulePreview,
}

var (
	schedulePlan     string
	scheduleCurrency string
	scheduleFrom     string
	scheduleRate     float64
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(schedulePreviewCmd)

	schedulePreviewCmd.Flags().StringVar(&schedulePlan, "plan", "4weeks", "payment plan: 4weeks or 3months")
	schedulePreviewCmd.Flags().StringVar(&scheduleCurrency, "currency", "usd", "currency: usd or cdf")
	schedulePreviewCmd.Flags().StringVar(&scheduleFrom, "from", "", "order date (YYYY-MM-DD, default today)")
	schedulePreviewCmd.Flags().Float64Var(&scheduleRate, "rate", 0, "CDF per USD (overrides the configuration)")
}

func runSchedulePreview(cmd *cobra.Command, args []string) error {
	plan, err := order.ParsePlan(schedulePlan)
	if err != nil {
		return err
	}
	currency, err := order.ParseCurrency(scheduleCurrency)
	if err != nil {
		return err
	}

	from := time.Now().UTC().Truncate(24 * time.Hour)
	if scheduleFrom != "" {
		from, err = time.Parse("2006-01-02", scheduleFrom)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}

	pricing := order.DefaultPricing()
	if cfg, err := config.LoadWithFallback(cfgFile); err == nil {
		pricing.CDFRate = cfg.Billing.CDFRate
	}
	if scheduleRate > 0 {
		pricing.CDFRate = scheduleRate
	}

	fmt.Fprint(cmd.OutOrStdout(), renderSchedule(plan, currency, pricing, from))
	return nil
}
