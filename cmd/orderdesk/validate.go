package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/eurekapx/orderdesk/adapters/sqlite"
	"github.com/eurekapx/orderdesk/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the orderdesk configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Database is reachable (optional)

Examples:
  orderdesk validate
  orderdesk validate --config /etc/orderdesk/orderdesk.yaml --check-database`,
	RunE: runValidate,
}

var validateCheckDatabase bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check the database opens and report its schema version")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		if !config.HasEnvConfig() {
			fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
			return fmt.Errorf("config file not found: %s", cfgFile)
		}
		fmt.Fprintf(out, "  %s Using ORDERDESK_* environment variables\n", checkMark)
	} else {
		fmt.Fprintf(out, "  %s Config file exists\n", checkMark)
	}

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	// Show config summary
	fmt.Fprintf(out, "  %s Company: %s <%s>\n", checkMark, cfg.Company.Name, cfg.Company.Email)
	fmt.Fprintf(out, "  %s Admin alerts: %s\n", checkMark, cfg.Company.AdminEmail)
	fmt.Fprintf(out, "  %s CDF rate: %g\n", checkMark, cfg.Billing.CDFRate)
	fmt.Fprintf(out, "  %s Database: %s (%s)\n", checkMark, cfg.Database.Path, cfg.Database.Driver)
	fmt.Fprintf(out, "  %s Email provider: %s\n", checkMark, cfg.Email.Provider)
	fmt.Fprintf(out, "  %s Listen: %s\n", checkMark, cfg.Server.Addr())

	if cfg.Admin.TokenHash == "" {
		fmt.Fprintf(out, "  %s Admin token not set, admin API disabled\n", warnStyle.Render("!"))
	} else {
		fmt.Fprintf(out, "  %s Admin token configured\n", checkMark)
	}
	if cfg.Company.AirtelNumber == "" || cfg.Company.OrangeNumber == "" {
		fmt.Fprintf(out, "  %s Mobile money numbers incomplete, mobile money invoices show no number\n", warnStyle.Render("!"))
	}

	if validateCheckDatabase && cfg.Database.Driver == "sqlite" {
		version, err := checkDatabase(cfg.Database.Path)
		if err != nil {
			fmt.Fprintf(out, "  %s Database reachable\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			if version == "" {
				version = "none"
			}
			fmt.Fprintf(out, "  %s Database reachable (schema %s)\n", checkMark, version)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func checkDatabase(path string) (string, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return "", err
	}
	return db.SchemaVersion(ctx)
}
