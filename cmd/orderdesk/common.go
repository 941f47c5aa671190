package main

import (
	"fmt"
	"io"

	"github.com/eurekapx/orderdesk/bootstrap"
	"github.com/eurekapx/orderdesk/config"
	"github.com/rs/zerolog"
)

var (
	checkMark = passStyle.Render("✓")
	crossMark = failStyle.Render("✗")
)

// openApp wires the application for a one-shot command. Workers are not
// started and the HTTP server never listens.
func openApp() (*bootstrap.App, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver == "memory" {
		return nil, fmt.Errorf("database driver %q keeps no orders between runs", cfg.Database.Driver)
	}
	// One-shot commands never expose /metrics.
	cfg.Metrics.Enabled = false

	app, err := bootstrap.New(config.NewStaticHolder(cfg, zerolog.Nop()), bootstrap.Options{
		Version:   version,
		LogOutput: io.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return app, nil
}
