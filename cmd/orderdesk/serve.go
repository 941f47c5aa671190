package main

import (
	"fmt"
	"os"

	"github.com/eurekapx/orderdesk/bootstrap"
	"github.com/eurekapx/orderdesk/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the orderdesk server.

The server will:
  - Load configuration from orderdesk.yaml (or --config)
  - Or load configuration from ORDERDESK_* environment variables
  - Open the order ledger and apply migrations
  - Accept orders on POST /webhook and POST /api/orders
  - Deliver invoices, admin alerts and reminders in the background

Environment variables (for container deployments):
  ORDERDESK_COMPANY_NAME      - Company name (required)
  ORDERDESK_COMPANY_EMAIL     - Company email (required)
  ORDERDESK_DATABASE_PATH     - SQLite file (default: orderdesk.db)
  ORDERDESK_SERVER_PORT       - Server port (default: 8080)
  ORDERDESK_EMAIL_PROVIDER    - smtp, mock or none
  ORDERDESK_ADMIN_TOKEN_HASH  - bcrypt hash of the admin token
  ORDERDESK_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  orderdesk serve
  orderdesk serve --config /etc/orderdesk/orderdesk.yaml
  orderdesk serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	// No configuration at all
	if !hasConfigFile && !config.HasEnvConfig() {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s (see orderdesk.example.yaml)\n", cfgFile)
		fmt.Println("Option 2: Set ORDERDESK_COMPANY_NAME and ORDERDESK_COMPANY_EMAIL")
		return nil
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "config").Logger()

	var holder *config.Holder
	if hasConfigFile && hotReload {
		// Hot reload only works with config file
		h, err := config.NewHolder(cfgFile, logger)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		holder = h
	} else {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if !hasConfigFile {
			fmt.Println("Running with environment variables (no config file)")
		}
		holder = config.NewStaticHolder(cfg, logger)
	}

	app, err := bootstrap.New(holder, bootstrap.Options{Version: version})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
