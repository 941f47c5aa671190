// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eurekapx/orderdesk/adapters/clock"
	"github.com/eurekapx/orderdesk/adapters/email"
	"github.com/eurekapx/orderdesk/adapters/hasher"
	apihttp "github.com/eurekapx/orderdesk/adapters/http"
	"github.com/eurekapx/orderdesk/adapters/http/admin"
	"github.com/eurekapx/orderdesk/adapters/idgen"
	"github.com/eurekapx/orderdesk/adapters/memory"
	"github.com/eurekapx/orderdesk/adapters/metrics"
	"github.com/eurekapx/orderdesk/adapters/sqlite"
	"github.com/eurekapx/orderdesk/app"
	"github.com/eurekapx/orderdesk/config"
	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB // nil with the memory driver
	HTTPServer *http.Server
	Metrics    *metrics.Collector // nil when metrics are disabled
	Registry   *prometheus.Registry

	// Services
	Ledger     *app.LedgerService
	Intake     *app.IntakeService
	Settlement *app.SettlementService
	Dispatcher *app.Dispatcher
	Reminders  *app.ReminderService

	sender ports.EmailSender
	cancel context.CancelFunc
}

// Options overrides parts of the wiring. The zero value is production.
type Options struct {
	Version   string
	LogOutput io.Writer         // defaults to stdout
	Sender    ports.EmailSender // replaces the configured provider
	Clock     ports.Clock
}

// New creates and initializes the application from a loaded configuration.
func New(holder *config.Holder, opts Options) (*App, error) {
	cfg := holder.Get()
	logger := setupLogger(cfg.Logging, opts.LogOutput)

	logger.Info().Str("version", opts.Version).Msg("initializing orderdesk")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(a.Registry)
		logger.Info().Msg("prometheus metrics enabled")
	}

	holder.OnChange(func(c *config.Config) {
		setLevel(c.Logging.Level)
	})
	holder.OnReloadAttempt(func(err error) {
		a.Metrics.ConfigReloaded(err, time.Now())
	})

	stores, err := a.initStores(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if err := a.initServices(cfg, stores, opts); err != nil {
		a.closeDB()
		return nil, err
	}

	if err := a.initHTTPServer(cfg, opts.Version); err != nil {
		a.closeDB()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return a, nil
}

type stores struct {
	orders    ports.OrderStore
	tasks     ports.TaskStore
	reminders ports.ReminderStore
}

func (a *App) initStores(cfg config.DatabaseConfig) (stores, error) {
	if cfg.Driver == "memory" {
		orders := memory.NewOrderStore()
		a.Logger.Warn().Msg("using in-memory ledger, orders are lost on restart")
		return stores{
			orders:    orders,
			tasks:     memory.NewTaskStore(orders),
			reminders: memory.NewReminderStore(),
		}, nil
	}

	db, err := sqlite.Open(cfg.Path)
	if err != nil {
		return stores{}, err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return stores{}, fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Logger.Info().Str("path", cfg.Path).Msg("database initialized")
	return stores{
		orders:    sqlite.NewOrderStore(db),
		tasks:     sqlite.NewTaskStore(db),
		reminders: sqlite.NewReminderStore(db),
	}, nil
}

func (a *App) initServices(cfg *config.Config, st stores, opts Options) error {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	ids := idgen.UUID{}

	sender := opts.Sender
	if sender == nil {
		var err error
		sender, err = email.NewSender(emailSettings(cfg), a.Logger)
		if err != nil {
			return fmt.Errorf("init email: %w", err)
		}
	}
	a.sender = sender

	composer, err := email.NewComposer(email.Company{
		Name:         cfg.Company.Name,
		Email:        cfg.Company.Email,
		AdminEmail:   cfg.Company.AdminEmail,
		AirtelNumber: cfg.Company.AirtelNumber,
		OrangeNumber: cfg.Company.OrangeNumber,
	})
	if err != nil {
		return fmt.Errorf("init email templates: %w", err)
	}

	a.Ledger = app.NewLedgerService(
		st.orders,
		clk,
		ids,
		order.Pricing{CDFRate: cfg.Billing.CDFRate},
		cfg.Outbox.MaxAttempts,
		a.Logger,
	)

	a.Reminders = app.NewReminderService(
		st.reminders,
		st.orders,
		composer,
		sender,
		ids,
		clk,
		a.Metrics,
		a.Logger,
		app.ReminderConfig{
			PollInterval: cfg.Reminders.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			SendTimeout:  cfg.Outbox.SendTimeout,
		},
	)

	a.Dispatcher = app.NewDispatcher(
		st.tasks,
		st.orders,
		composer,
		sender,
		a.Reminders,
		clk,
		a.Metrics,
		a.Logger,
		app.DispatcherConfig{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			SendTimeout:  cfg.Outbox.SendTimeout,
		},
	)

	a.Intake = app.NewIntakeService(a.Ledger, a.Dispatcher, a.Metrics, a.Logger)
	a.Settlement = app.NewSettlementService(a.Ledger, a.Dispatcher, a.Metrics, a.Logger)

	a.Logger.Info().
		Str("email_provider", cfg.Email.Provider).
		Float64("cdf_rate", cfg.Billing.CDFRate).
		Msg("services initialized")
	return nil
}

func (a *App) initHTTPServer(cfg *config.Config, version string) error {
	deps := admin.Deps{
		Ledger:    a.Ledger,
		Settler:   a.Settlement,
		Reminders: a.Reminders,
		Tasks:     a.Dispatcher,
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	}

	verifier, err := hasher.NewTokenVerifier(hasher.NewBcrypt(0), cfg.Admin.TokenHash)
	switch {
	case errors.Is(err, hasher.ErrNoHash):
		a.Logger.Warn().Msg("admin token hash not configured, admin API refuses every request")
	case err != nil:
		return fmt.Errorf("admin token: %w", err)
	default:
		deps.Verifier = verifier
	}
	adminHandler := admin.NewHandler(deps)

	var pinger apihttp.Pinger
	if a.DB != nil {
		pinger = a.DB
	}

	routerCfg := apihttp.RouterConfig{
		Metrics:        a.Metrics,
		EnableOpenAPI:  cfg.OpenAPI.Enabled,
		AdminHandler:   adminHandler.Router(),
		CORSOrigins:    cfg.Server.CORSOrigins,
		Version:        version,
		RequestTimeout: cfg.Server.WriteTimeout,
	}
	if a.Registry != nil {
		routerCfg.MetricsHandler = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
	}

	router := apihttp.NewRouter(
		apihttp.NewIntakeHandler(a.Intake, a.Logger),
		apihttp.NewHealthHandler(pinger),
		a.Logger,
		routerCfg,
	)

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return nil
}

// Start launches the outbox and reminder workers. Run calls it.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.Dispatcher.Start(ctx)
	a.Reminders.Start(ctx)
}

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.Start(context.Background())

	if err := a.Config.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch disabled")
	}
	a.Config.WatchSignals()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	timeout := a.Config.Get().Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting orders before the workers drain.
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.Dispatcher != nil {
		a.Dispatcher.Stop()
	}
	if a.Reminders != nil {
		a.Reminders.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}

	a.Config.Stop()

	if err := a.closeDB(); err != nil {
		a.Logger.Error().Err(err).Msg("database close error")
		return err
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.HTTPServer.Handler
}

func (a *App) closeDB() error {
	if a.DB == nil {
		return nil
	}
	err := a.DB.Close()
	a.DB = nil
	return err
}

func emailSettings(cfg *config.Config) email.Settings {
	s := cfg.Email.SMTP
	return email.Settings{
		Provider: cfg.Email.Provider,
		SMTP: email.SMTPConfig{
			Host:        s.Host,
			Port:        s.Port,
			Username:    s.Username,
			Password:    s.Password,
			From:        s.From,
			FromName:    s.FromName,
			UseTLS:      s.UseTLS,
			UseImplicit: s.UseImplicit,
			SkipVerify:  s.SkipVerify,
			Timeout:     s.Timeout,
		},
	}
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	setLevel(cfg.Level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}

func setLevel(levelStr string) {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
