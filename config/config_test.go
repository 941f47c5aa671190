package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eurekapx/orderdesk/config"
)

const minimalConfig = `
company:
  name: "Eureka.Px"
  email: "contact@eurekapx.com"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orderdesk.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := config.Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func TestLoad_FullConfig(t *testing.T) {
	t.Setenv("TEST_TOKEN_HASH", "$2a$10$abc")

	content := `
server:
  host: "127.0.0.1"
  port: 9090
  cors_origins: ["https://eurekapx.com"]

database:
  driver: "sqlite"
  path: "/var/lib/orderdesk/ledger.db"

company:
  name: "Eureka.Px"
  email: "contact@eurekapx.com"
  admin_email: "ops@eurekapx.com"
  airtel_number: "+243 997264738"
  orange_number: "+243 851887704"

billing:
  cdf_rate: 2800

email:
  provider: "smtp"
  smtp:
    host: "smtp.example.com"
    port: 465
    use_implicit: true

admin:
  token_hash: "${TEST_TOKEN_HASH}"

outbox:
  poll_interval: 2s
  max_attempts: 6

logging:
  level: "debug"
  format: "console"
`
	cfg := writeAndLoad(t, content)

	if cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Errorf("Addr = %s", cfg.Server.Addr())
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://eurekapx.com" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Database.Path != "/var/lib/orderdesk/ledger.db" {
		t.Errorf("Database.Path = %s", cfg.Database.Path)
	}
	if cfg.Company.AdminEmail != "ops@eurekapx.com" || cfg.Company.OrangeNumber != "+243 851887704" {
		t.Errorf("Company = %+v", cfg.Company)
	}
	if cfg.Billing.CDFRate != 2800 {
		t.Errorf("CDFRate = %v, want 2800", cfg.Billing.CDFRate)
	}
	if cfg.Email.SMTP.Port != 465 || !cfg.Email.SMTP.UseImplicit {
		t.Errorf("SMTP = %+v", cfg.Email.SMTP)
	}
	if cfg.Email.SMTP.From != "contact@eurekapx.com" || cfg.Email.SMTP.FromName != "Eureka.Px" {
		t.Errorf("SMTP sender = %q <%s>, want company identity", cfg.Email.SMTP.FromName, cfg.Email.SMTP.From)
	}
	if cfg.Admin.TokenHash != "$2a$10$abc" {
		t.Errorf("TokenHash = %q", cfg.Admin.TokenHash)
	}
	if cfg.Outbox.PollInterval != 2*time.Second || cfg.Outbox.MaxAttempts != 6 {
		t.Errorf("Outbox = %+v", cfg.Outbox)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, minimalConfig)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"server.host", cfg.Server.Host, "0.0.0.0"},
		{"server.port", cfg.Server.Port, 8080},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeout, 15 * time.Second},
		{"database.driver", cfg.Database.Driver, "sqlite"},
		{"database.path", cfg.Database.Path, "orderdesk.db"},
		{"company.admin_email", cfg.Company.AdminEmail, "contact@eurekapx.com"},
		{"billing.cdf_rate", cfg.Billing.CDFRate, 2350.0},
		{"email.provider", cfg.Email.Provider, "none"},
		{"email.smtp.port", cfg.Email.SMTP.Port, 587},
		{"outbox.batch_size", cfg.Outbox.BatchSize, 50},
		{"outbox.max_attempts", cfg.Outbox.MaxAttempts, 4},
		{"outbox.send_timeout", cfg.Outbox.SendTimeout, 30 * time.Second},
		{"reminders.poll_interval", cfg.Reminders.PollInterval, time.Minute},
		{"logging.level", cfg.Logging.Level, "info"},
		{"logging.format", cfg.Logging.Format, "json"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_SMTP_PASSWORD", "hunter2")

	cfg := writeAndLoad(t, minimalConfig+`
email:
  smtp:
    password: "${TEST_SMTP_PASSWORD}"
`)
	if cfg.Email.SMTP.Password != "hunter2" {
		t.Errorf("Password = %q, want expanded value", cfg.Email.SMTP.Password)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ORDERDESK_SERVER_PORT", "9999")
	t.Setenv("ORDERDESK_CDF_RATE", "2600.5")
	t.Setenv("ORDERDESK_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ORDERDESK_METRICS_ENABLED", "yes")
	t.Setenv("ORDERDESK_OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("ORDERDESK_LOG_LEVEL", "warn")

	cfg := writeAndLoad(t, minimalConfig+`
server:
  port: 8081
logging:
  level: debug
`)

	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want env override 9999", cfg.Server.Port)
	}
	if cfg.Billing.CDFRate != 2600.5 {
		t.Errorf("CDFRate = %v", cfg.Billing.CDFRate)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Outbox.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.Outbox.PollInterval)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %s, want warn", cfg.Logging.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing company name", `company: {email: "a@b.cd"}`, "company.name"},
		{"missing company email", `company: {name: "X"}`, "company.email"},
		{"bad company email", `company: {name: "X", email: "not-an-address"}`, "company.email"},
		{"bad admin email", minimalConfig + `  admin_email: "nope"`, "admin_email"},
		{"negative rate", minimalConfig + "billing: {cdf_rate: -1}", "cdf_rate"},
		{"unknown driver", minimalConfig + "database: {driver: postgres}", "database.driver"},
		{"unknown provider", minimalConfig + "email: {provider: sendgrid}", "email.provider"},
		{"smtp without host", minimalConfig + "email: {provider: smtp}", "email.smtp.host"},
		{"bad log format", minimalConfig + "logging: {format: xml}", "logging.format"},
		{"bad port", minimalConfig + "server: {port: 70000}", "server.port"},
		{"malformed yaml", "company: [", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		cfg, err := config.LoadWithFallback(writeConfig(t, minimalConfig))
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Company.Name != "Eureka.Px" {
			t.Errorf("Company.Name = %s", cfg.Company.Name)
		}
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("ORDERDESK_COMPANY_NAME", "Eureka.Px")
		t.Setenv("ORDERDESK_COMPANY_EMAIL", "contact@eurekapx.com")
		t.Setenv("ORDERDESK_DATABASE_DRIVER", "memory")

		if !config.HasEnvConfig() {
			t.Fatal("HasEnvConfig() = false")
		}
		cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Database.Driver != "memory" {
			t.Errorf("Driver = %s, want memory", cfg.Database.Driver)
		}
	})

	t.Run("nothing", func(t *testing.T) {
		t.Setenv("ORDERDESK_COMPANY_EMAIL", "")
		if _, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("LoadWithFallback() should fail without file or env")
		}
	})
}

func TestLoad_ExampleFile(t *testing.T) {
	t.Setenv("SMTP_USERNAME", "mailer")
	t.Setenv("SMTP_PASSWORD", "secret")

	cfg, err := config.Load("../orderdesk.example.yaml")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Email.SMTP.Username != "mailer" || cfg.Email.Provider != "smtp" {
		t.Errorf("email = %+v", cfg.Email)
	}
	if cfg.Company.AdminEmail != "orders@eurekapx.com" {
		t.Errorf("admin email = %q", cfg.Company.AdminEmail)
	}
}

func TestLoad_ExampleFileAdminHash(t *testing.T) {
	t.Setenv("SMTP_USERNAME", "mailer")
	t.Setenv("SMTP_PASSWORD", "secret")

	// A plain token must never end up where a hash is expected.
	t.Setenv("ORDERDESK_ADMIN_TOKEN", "plain-token")
	t.Setenv("ORDERDESK_ADMIN_TOKEN_HASH", "")
	cfg, err := config.Load("../orderdesk.example.yaml")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Admin.TokenHash != "" {
		t.Errorf("token hash = %q, want empty", cfg.Admin.TokenHash)
	}

	t.Setenv("ORDERDESK_ADMIN_TOKEN_HASH", "hashed-token")
	cfg, err = config.Load("../orderdesk.example.yaml")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Admin.TokenHash != "hashed-token" {
		t.Errorf("token hash = %q, want hashed-token", cfg.Admin.TokenHash)
	}
}
