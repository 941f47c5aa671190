package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eurekapx/orderdesk/adapters/hasher"
	"github.com/eurekapx/orderdesk/bootstrap"
	"github.com/eurekapx/orderdesk/config"
	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/domain/outbox"
	"github.com/rs/zerolog"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := `
company:
  name: "Eureka.Px"
  email: "contact@eurekapx.com"
  airtel_number: "+243 990 000 001"
  orange_number: "+243 890 000 002"
database:
  path: "` + filepath.Join(dir, "orderdesk.db") + `"
email:
  provider: mock
`
	path := filepath.Join(dir, "orderdesk.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func seedOrder(t *testing.T, cfgPath, ref string) {
	t.Helper()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	a, err := bootstrap.New(config.NewStaticHolder(cfg, zerolog.Nop()), bootstrap.Options{LogOutput: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown()

	_, err = a.Intake.Submit(context.Background(), order.Submission{
		Reference: ref,
		FirstName: "Amani",
		LastName:  "Kabila",
		Email:     "amani@example.cd",
		Phone:     "+243990000000",
		Plan:      "3months",
		Method:    "orange",
		Currency:  "cdf",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	a.Dispatcher.ProcessPending(context.Background())
}

func sampleOrder(t *testing.T) order.Order {
	t.Helper()
	v, err := order.Validate(order.Submission{
		Reference: "EPX-1001",
		FirstName: "Amani",
		LastName:  "Kabila",
		Email:     "amani@example.cd",
		Phone:     "+243990000000",
		Company:   "Kin Logistics",
		Plan:      "3months",
		Method:    "airtel",
		Currency:  "cdf",
	})
	if err != nil {
		t.Fatal(err)
	}
	return order.New(v, order.DefaultPricing(), time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC))
}

func TestRenderOrder(t *testing.T) {
	o := sampleOrder(t)
	tasks := []outbox.Task{{Kind: outbox.KindInvoiceEmail, Status: outbox.StatusRetrying, Attempt: 1, MaxAttempts: 4, Error: "dial tcp: timeout"}}
	reminders := []outbox.Reminder{{Installment: 1, FireAt: time.Date(2025, 4, 28, 9, 30, 0, 0, time.UTC), Status: outbox.ReminderScheduled}}

	got := renderOrder(o, tasks, reminders)

	for _, want := range []string{
		"EPX-1001",
		"Amani Kabila",
		"Kin Logistics",
		"3x 3 mois via Airtel Money",
		"1 574 500 FC",
		"552 250 FC",
		"30/04/2025",
		"#2  28/04/2025",
		"invoice_email",
		"dial tcp: timeout",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("renderOrder() missing %q\n%s", want, got)
		}
	}
}

func TestRenderOrderList(t *testing.T) {
	got := renderOrderList([]order.Order{sampleOrder(t)})
	for _, want := range []string{"REFERENCE", "EPX-1001", "pending_verification", "1 574 500 FC"} {
		if !strings.Contains(got, want) {
			t.Errorf("renderOrderList() missing %q\n%s", want, got)
		}
	}
}

func TestSchedulePreview(t *testing.T) {
	out, err := execute(t, "schedule", "preview",
		"-c", filepath.Join(t.TempDir(), "missing.yaml"),
		"--plan", "3months", "--currency", "cdf", "--from", "2025-03-01", "--rate", "2350")
	if err != nil {
		t.Fatalf("schedule preview error = %v", err)
	}

	for _, want := range []string{"3x 3 mois", "470 000 FC", "01/03/2025", "30/04/2025", "30/05/2025", "#2  28/04/2025", "#3  28/05/2025"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestSchedulePreview_InvalidPlan(t *testing.T) {
	_, err := execute(t, "schedule", "preview", "--plan", "yearly", "--currency", "usd", "--from", "", "--rate", "0")
	if err == nil {
		t.Error("expected error for unknown plan")
	}
}

func TestHashToken(t *testing.T) {
	out, err := execute(t, "hash-token", "s3cret", "--cost", "4")
	if err != nil {
		t.Fatalf("hash-token error = %v", err)
	}

	var hash string
	for _, line := range strings.Split(out, "\n") {
		if h, ok := strings.CutPrefix(line, "Hash:"); ok {
			hash = strings.TrimSpace(h)
		}
	}
	if hash == "" {
		t.Fatalf("no hash in output:\n%s", out)
	}
	if !hasher.NewBcrypt(4).Compare([]byte(hash), "s3cret") {
		t.Error("printed hash does not match the token")
	}
	if strings.Contains(out, "Token:") {
		t.Error("a given token should not be echoed")
	}
}

func TestSettleAndShow(t *testing.T) {
	cfgPath := writeConfig(t)
	seedOrder(t, cfgPath, "EPX-3003")

	out, err := execute(t, "settle", "EPX-3003", "-c", cfgPath, "--installment", "0", "--deliver")
	if err != nil {
		t.Fatalf("settle error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Installment 1 of EPX-3003 marked paid") || !strings.Contains(out, "Delivered 1 outbox task(s)") {
		t.Errorf("unexpected settle output:\n%s", out)
	}

	out, err = execute(t, "settle", "EPX-3003", "-c", cfgPath, "--installment", "0", "--deliver=false")
	if err != nil {
		t.Fatalf("second settle error = %v", err)
	}
	if !strings.Contains(out, "already paid") {
		t.Errorf("expected already paid, got:\n%s", out)
	}

	out, err = execute(t, "orders", "show", "EPX-3003", "-c", cfgPath)
	if err != nil {
		t.Fatalf("orders show error = %v", err)
	}
	for _, want := range []string{"paid", "confirmation_email", "Orange Money"} {
		if !strings.Contains(out, want) {
			t.Errorf("orders show missing %q\n%s", want, out)
		}
	}

	out, err = execute(t, "orders", "list", "-c", cfgPath, "--limit", "10", "--offset", "0")
	if err != nil {
		t.Fatalf("orders list error = %v", err)
	}
	if !strings.Contains(out, "EPX-3003") {
		t.Errorf("orders list missing order:\n%s", out)
	}
}

func TestSettle_UnknownOrder(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := execute(t, "settle", "EPX-404", "-c", cfgPath, "--installment", "0", "--deliver=false")
	if err == nil {
		t.Fatal("expected error for unknown order")
	}
	if !strings.Contains(out, "not found") {
		t.Errorf("output = %q", out)
	}
}

func TestHashToken_Generated(t *testing.T) {
	out, err := execute(t, "hash-token", "--cost", "4")
	if err != nil {
		t.Fatalf("hash-token error = %v", err)
	}

	var token, hash string
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "Token:"); ok {
			token = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, "Hash:"); ok {
			hash = strings.TrimSpace(v)
		}
	}
	if len(token) != 48 {
		t.Fatalf("token = %q, want 48 hex chars", token)
	}
	if !hasher.NewBcrypt(4).Compare([]byte(hash), token) {
		t.Error("printed hash does not match the generated token")
	}
}
