// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Company   CompanyConfig   `yaml:"company"`
	Billing   BillingConfig   `yaml:"billing"`
	Email     EmailConfig     `yaml:"email"`
	Admin     AdminConfig     `yaml:"admin"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Reminders RemindersConfig `yaml:"reminders"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	OpenAPI   OpenAPIConfig   `yaml:"openapi"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"` // origins allowed to post the order form
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the ledger store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	Path   string `yaml:"path"`
}

// CompanyConfig is the seller identity shown in every email.
type CompanyConfig struct {
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	AdminEmail   string `yaml:"admin_email"` // new order alerts; defaults to email
	AirtelNumber string `yaml:"airtel_number"`
	OrangeNumber string `yaml:"orange_number"`
}

// BillingConfig configures pricing.
type BillingConfig struct {
	CDFRate float64 `yaml:"cdf_rate"` // CDF per USD
}

// EmailConfig selects the email provider.
type EmailConfig struct {
	Provider string     `yaml:"provider"` // "smtp", "mock" or "none"
	SMTP     SMTPConfig `yaml:"smtp"`
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	From        string        `yaml:"from"` // defaults to company.email
	FromName    string        `yaml:"from_name"`
	UseTLS      bool          `yaml:"use_tls"`
	UseImplicit bool          `yaml:"use_implicit"`
	SkipVerify  bool          `yaml:"skip_verify"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AdminConfig configures the operator API.
// The file is env-expanded, so a literal bcrypt hash there loses its "$"
// segments; reference a variable or set ORDERDESK_ADMIN_TOKEN_HASH.
type AdminConfig struct {
	TokenHash string `yaml:"token_hash"` // bcrypt hash, see "orderdesk hash-token"
}

// OutboxConfig tunes the notification dispatcher.
type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxAttempts  int           `yaml:"max_attempts"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
}

// RemindersConfig tunes the reminder loop.
type RemindersConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// OpenAPIConfig configures the OpenAPI document and Swagger UI.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML content. Environment variables are
// expanded in the content and ORDERDESK_* variables override it.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	ORDERDESK_COMPANY_NAME    - Company name (required)
//	ORDERDESK_COMPANY_EMAIL   - Company email (required)
//	ORDERDESK_DATABASE_PATH   - SQLite file (default: orderdesk.db)
//	ORDERDESK_SERVER_PORT     - Server port (default: 8080)
//	ORDERDESK_CDF_RATE        - CDF per USD (default: 2350)
//	ORDERDESK_EMAIL_PROVIDER  - smtp, mock or none (default: none)
//	ORDERDESK_ADMIN_TOKEN_HASH - bcrypt hash of the admin token
//	ORDERDESK_LOG_LEVEL       - debug, info, warn, error (default: info)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFallback loads the file when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide %s or set ORDERDESK_COMPANY_EMAIL", path)
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("ORDERDESK_COMPANY_EMAIL") != ""
}

// applyEnvOverrides applies ORDERDESK_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			*dst = parseBool(v)
		}
	}

	// Server
	str("ORDERDESK_SERVER_HOST", &cfg.Server.Host)
	integer("ORDERDESK_SERVER_PORT", &cfg.Server.Port)
	duration("ORDERDESK_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	duration("ORDERDESK_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	if v := os.Getenv("ORDERDESK_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	// Database
	str("ORDERDESK_DATABASE_DRIVER", &cfg.Database.Driver)
	str("ORDERDESK_DATABASE_PATH", &cfg.Database.Path)

	// Company
	str("ORDERDESK_COMPANY_NAME", &cfg.Company.Name)
	str("ORDERDESK_COMPANY_EMAIL", &cfg.Company.Email)
	str("ORDERDESK_ADMIN_EMAIL", &cfg.Company.AdminEmail)
	str("ORDERDESK_AIRTEL_NUMBER", &cfg.Company.AirtelNumber)
	str("ORDERDESK_ORANGE_NUMBER", &cfg.Company.OrangeNumber)

	if v := os.Getenv("ORDERDESK_CDF_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Billing.CDFRate = rate
		}
	}

	// Email
	str("ORDERDESK_EMAIL_PROVIDER", &cfg.Email.Provider)
	str("ORDERDESK_SMTP_HOST", &cfg.Email.SMTP.Host)
	integer("ORDERDESK_SMTP_PORT", &cfg.Email.SMTP.Port)
	str("ORDERDESK_SMTP_USERNAME", &cfg.Email.SMTP.Username)
	str("ORDERDESK_SMTP_PASSWORD", &cfg.Email.SMTP.Password)
	str("ORDERDESK_SMTP_FROM", &cfg.Email.SMTP.From)
	boolean("ORDERDESK_SMTP_USE_TLS", &cfg.Email.SMTP.UseTLS)

	// Admin
	str("ORDERDESK_ADMIN_TOKEN_HASH", &cfg.Admin.TokenHash)

	// Workers
	duration("ORDERDESK_OUTBOX_POLL_INTERVAL", &cfg.Outbox.PollInterval)
	integer("ORDERDESK_OUTBOX_MAX_ATTEMPTS", &cfg.Outbox.MaxAttempts)
	duration("ORDERDESK_REMINDERS_POLL_INTERVAL", &cfg.Reminders.PollInterval)

	// Logging
	str("ORDERDESK_LOG_LEVEL", &cfg.Logging.Level)
	str("ORDERDESK_LOG_FORMAT", &cfg.Logging.Format)

	boolean("ORDERDESK_METRICS_ENABLED", &cfg.Metrics.Enabled)
	boolean("ORDERDESK_OPENAPI_ENABLED", &cfg.OpenAPI.Enabled)
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "orderdesk.db"
	}

	if cfg.Company.AdminEmail == "" {
		cfg.Company.AdminEmail = cfg.Company.Email
	}
	if cfg.Billing.CDFRate == 0 {
		cfg.Billing.CDFRate = 2350
	}

	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "none"
	}
	if cfg.Email.SMTP.Port == 0 {
		cfg.Email.SMTP.Port = 587
	}
	if cfg.Email.SMTP.From == "" {
		cfg.Email.SMTP.From = cfg.Company.Email
	}
	if cfg.Email.SMTP.FromName == "" {
		cfg.Email.SMTP.FromName = cfg.Company.Name
	}
	if cfg.Email.SMTP.Timeout == 0 {
		cfg.Email.SMTP.Timeout = 30 * time.Second
	}

	if cfg.Outbox.PollInterval == 0 {
		cfg.Outbox.PollInterval = 5 * time.Second
	}
	if cfg.Outbox.BatchSize == 0 {
		cfg.Outbox.BatchSize = 50
	}
	if cfg.Outbox.MaxAttempts == 0 {
		cfg.Outbox.MaxAttempts = 4
	}
	if cfg.Outbox.SendTimeout == 0 {
		cfg.Outbox.SendTimeout = 30 * time.Second
	}
	if cfg.Reminders.PollInterval == 0 {
		cfg.Reminders.PollInterval = time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Company.Name) == "" {
		return fmt.Errorf("company.name is required")
	}
	if cfg.Company.Email == "" {
		return fmt.Errorf("company.email is required")
	}
	if _, err := mail.ParseAddress(cfg.Company.Email); err != nil {
		return fmt.Errorf("company.email %q is not a valid address", cfg.Company.Email)
	}
	if _, err := mail.ParseAddress(cfg.Company.AdminEmail); err != nil {
		return fmt.Errorf("company.admin_email %q is not a valid address", cfg.Company.AdminEmail)
	}

	if cfg.Billing.CDFRate <= 0 {
		return fmt.Errorf("billing.cdf_rate must be positive, got %v", cfg.Billing.CDFRate)
	}

	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	validProviders := map[string]bool{"smtp": true, "mock": true, "none": true}
	if !validProviders[cfg.Email.Provider] {
		return fmt.Errorf("email.provider must be one of: smtp, mock, none")
	}
	if cfg.Email.Provider == "smtp" && cfg.Email.SMTP.Host == "" {
		return fmt.Errorf("email.smtp.host is required when email.provider is 'smtp'")
	}

	if cfg.Outbox.MaxAttempts < 1 {
		return fmt.Errorf("outbox.max_attempts must be at least 1")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	return nil
}
