package email

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/ports"
	"github.com/rs/zerolog"
)

var created = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func testCompany() Company {
	return Company{
		Name:         "Eureka.Px",
		Email:        "contact@eurekapx.com",
		AdminEmail:   "ops@eurekapx.com",
		AirtelNumber: "+243 997264738",
		OrangeNumber: "+243 851887704",
	}
}

func testOrder(t *testing.T, method, currency string) order.Order {
	t.Helper()
	v, err := order.Validate(order.Submission{
		Reference: "EPX-001",
		FirstName: "Amani",
		LastName:  "Kabila",
		Email:     "amani@example.cd",
		Phone:     "+243810000000",
		Company:   "Kin Labs",
		Plan:      "3months",
		Method:    method,
		Currency:  currency,
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return order.New(v, order.DefaultPricing(), created)
}

// =============================================================================
// MockSender
// =============================================================================

func TestMockSender(t *testing.T) {
	sender := NewMockSender()
	ctx := context.Background()

	msgs := []ports.EmailMessage{
		{To: "a@example.com", Subject: "Facture Pro Forma N° 1"},
		{To: "b@example.com", Subject: "Paiement confirmé - 1"},
		{To: "a@example.com", Subject: "Rappel"},
	}
	for _, m := range msgs {
		if err := sender.Send(ctx, m); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	if sender.Count() != 3 {
		t.Errorf("Count() = %d, want 3", sender.Count())
	}
	if got := sender.FindByTo("a@example.com"); len(got) != 2 {
		t.Errorf("FindByTo() = %d emails, want 2", len(got))
	}
	if got := sender.FindBySubject("Facture"); len(got) != 1 {
		t.Errorf("FindBySubject() = %d emails, want 1", len(got))
	}

	emails := sender.Emails()
	emails[0].To = "changed"
	if sender.Emails()[0].To != "a@example.com" {
		t.Error("Emails() exposed internal state")
	}

	sender.Reset()
	if sender.Count() != 0 {
		t.Error("Reset() did not clear emails")
	}
}

func TestMockSender_ShouldFail(t *testing.T) {
	sender := NewMockSender()
	down := errors.New("relay down")
	sender.SetShouldFail(down)

	if err := sender.Send(context.Background(), ports.EmailMessage{To: "a@example.com"}); !errors.Is(err, down) {
		t.Fatalf("Send() error = %v, want relay down", err)
	}
	if sender.Count() != 0 {
		t.Error("failed send should not be stored")
	}

	sender.SetShouldFail(nil)
	if err := sender.Send(context.Background(), ports.EmailMessage{To: "a@example.com"}); err != nil {
		t.Errorf("Send() after recovery error = %v", err)
	}
}

func TestMockSender_Concurrent(t *testing.T) {
	sender := NewMockSender()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sender.Send(context.Background(), ports.EmailMessage{To: "x@example.com"})
		}()
	}
	wg.Wait()
	if sender.Count() != 50 {
		t.Errorf("Count() = %d, want 50", sender.Count())
	}
}

func TestNoopSender(t *testing.T) {
	var s ports.EmailSender = NewNoopSender(zerolog.Nop())
	if err := s.Send(context.Background(), ports.EmailMessage{To: "a@example.com"}); err != nil {
		t.Errorf("Send() error = %v", err)
	}
}

// =============================================================================
// Factory
// =============================================================================

func TestNewSender(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantType string
		wantErr  bool
	}{
		{"smtp", Settings{Provider: "smtp", SMTP: SMTPConfig{Host: "mail.local", From: "a@b.c"}}, "*email.SMTPSender", false},
		{"smtp missing host", Settings{Provider: "smtp", SMTP: SMTPConfig{From: "a@b.c"}}, "", true},
		{"smtp missing from", Settings{Provider: "smtp", SMTP: SMTPConfig{Host: "mail.local"}}, "", true},
		{"mock", Settings{Provider: "mock"}, "*email.MockSender", false},
		{"none", Settings{Provider: "none"}, "*email.NoopSender", false},
		{"empty", Settings{}, "*email.NoopSender", false},
		{"unknown", Settings{Provider: "sendgrid"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewSender(tt.settings, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSender() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			var got string
			switch sender.(type) {
			case *SMTPSender:
				got = "*email.SMTPSender"
			case *MockSender:
				got = "*email.MockSender"
			case *NoopSender:
				got = "*email.NoopSender"
			}
			if got != tt.wantType {
				t.Errorf("NewSender() type = %s, want %s", got, tt.wantType)
			}
		})
	}
}

func TestNewSMTPSender_Defaults(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "mail.local", From: "a@b.c"})
	if err != nil {
		t.Fatalf("NewSMTPSender() error = %v", err)
	}
	if s.config.Port != 587 {
		t.Errorf("Port = %d, want 587", s.config.Port)
	}
	if s.config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", s.config.Timeout)
	}
}

// =============================================================================
// SMTP transport
// =============================================================================

func TestBuildMessage(t *testing.T) {
	tests := []struct {
		name     string
		msg      ports.EmailMessage
		contains []string
	}{
		{
			name:     "multipart",
			msg:      ports.EmailMessage{To: "a@b.c", Subject: "Hi", HTMLBody: "<p>x</p>", TextBody: "x"},
			contains: []string{"multipart/alternative; boundary=B", "--B\r\nContent-Type: text/plain", "--B\r\nContent-Type: text/html", "--B--"},
		},
		{
			name:     "html only",
			msg:      ports.EmailMessage{To: "a@b.c", Subject: "Hi", HTMLBody: "<p>x</p>"},
			contains: []string{"Content-Type: text/html; charset=utf-8\r\n\r\n<p>x</p>"},
		},
		{
			name:     "text only",
			msg:      ports.EmailMessage{To: "a@b.c", Subject: "Hi", TextBody: "x"},
			contains: []string{"Content-Type: text/plain; charset=utf-8\r\n\r\nx"},
		},
		{
			name:     "encoded subject",
			msg:      ports.EmailMessage{To: "a@b.c", Subject: "Paiement confirmé", TextBody: "x"},
			contains: []string{"Subject: =?utf-8?q?Paiement_confirm=C3=A9?="},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(buildMessage("Eureka.Px", "noreply@eurekapx.com", tt.msg, "B"))
			if !strings.HasPrefix(got, "From: Eureka.Px <noreply@eurekapx.com>\r\nTo: a@b.c\r\n") {
				t.Errorf("unexpected headers:\n%s", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("message missing %q:\n%s", want, got)
				}
			}
		})
	}
}

// fakeSMTPServer accepts one plain SMTP conversation and records the DATA payload.
func fakeSMTPServer(t *testing.T) (addr string, received <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		write := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
		write("220 localhost ESMTP")

		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				write("250 localhost")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				write("250 OK")
			case cmd == "DATA":
				write("354 go ahead")
				var data strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					data.WriteString(l)
				}
				out <- data.String()
				write("250 queued")
			case cmd == "QUIT":
				write("221 bye")
				return
			default:
				write("502 unsupported")
			}
		}
	}()
	return ln.Addr().String(), out
}

func TestSMTPSender_Send(t *testing.T) {
	addr, received := fakeSMTPServer(t)
	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	sender, err := NewSMTPSender(SMTPConfig{Host: host, Port: port, From: "noreply@eurekapx.com", FromName: "Eureka.Px", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewSMTPSender() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = sender.Send(ctx, ports.EmailMessage{To: "amani@example.cd", Subject: "Facture", TextBody: "Bonjour"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case data := <-received:
		if !strings.Contains(data, "To: amani@example.cd") || !strings.Contains(data, "Bonjour") {
			t.Errorf("unexpected DATA:\n%s", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server received nothing")
	}
}

func TestSMTPSender_Send_ConnectionError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	for _, implicit := range []bool{false, true} {
		sender, _ := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: addr.Port, From: "a@b.c", UseImplicit: implicit, Timeout: time.Second})
		err := sender.Send(context.Background(), ports.EmailMessage{To: "x@y.z", TextBody: "x"})
		if err == nil {
			t.Errorf("implicit=%v: expected a dial error", implicit)
		}
	}
}

func TestSMTPSender_Send_NoRecipient(t *testing.T) {
	sender, _ := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", From: "a@b.c"})
	if err := sender.Send(context.Background(), ports.EmailMessage{}); err == nil {
		t.Error("expected an error for an empty recipient")
	}
}

// =============================================================================
// Composer
// =============================================================================

func TestNewComposer(t *testing.T) {
	if _, err := NewComposer(Company{}); err == nil {
		t.Error("NewComposer without a company name should fail")
	}
	c, err := NewComposer(Company{Name: "X", Email: "x@example.com"})
	if err != nil {
		t.Fatalf("NewComposer() error = %v", err)
	}
	o := testOrder(t, "bank", "usd")
	msg, err := c.AdminAlert(o)
	if err != nil {
		t.Fatalf("AdminAlert() error = %v", err)
	}
	if msg.To != "x@example.com" {
		t.Errorf("admin alert To = %s, want the company email", msg.To)
	}
}

func TestComposer_Invoice(t *testing.T) {
	c, err := NewComposer(testCompany())
	if err != nil {
		t.Fatalf("NewComposer() error = %v", err)
	}

	tests := []struct {
		method, currency string
		want             []string
		notWant          []string
	}{
		{"airtel", "usd", []string{"+243 997264738", "200 USD", "Airtel Money"}, []string{"+243 851887704"}},
		{"orange", "cdf", []string{"+243 851887704", "470 000 FC", "552 250 FC"}, []string{"+243 997264738"}},
		{"bank", "usd", []string{"Virement Bancaire", "envoyées séparément"}, []string{"Numéro"}},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			o := testOrder(t, tt.method, tt.currency)
			msg, err := c.Invoice(o)
			if err != nil {
				t.Fatalf("Invoice() error = %v", err)
			}
			if msg.To != "amani@example.cd" {
				t.Errorf("To = %s", msg.To)
			}
			if msg.Subject != "Facture Pro Forma N° EPX-001" {
				t.Errorf("Subject = %q", msg.Subject)
			}
			for _, want := range tt.want {
				if !strings.Contains(msg.HTMLBody, want) {
					t.Errorf("HTML body missing %q", want)
				}
				if !strings.Contains(msg.TextBody, want) {
					t.Errorf("text body missing %q", want)
				}
			}
			for _, bad := range tt.notWant {
				if strings.Contains(msg.HTMLBody, bad) {
					t.Errorf("HTML body should not contain %q", bad)
				}
			}
			if !strings.Contains(msg.HTMLBody, "Kin Labs") {
				t.Error("HTML body missing the company line")
			}
		})
	}
}

func TestComposer_EscapesCustomerInput(t *testing.T) {
	c, _ := NewComposer(testCompany())
	o := testOrder(t, "airtel", "usd")
	o.Customer.FirstName = "<script>alert(1)</script>"

	msg, err := c.Invoice(o)
	if err != nil {
		t.Fatalf("Invoice() error = %v", err)
	}
	if strings.Contains(msg.HTMLBody, "<script>") {
		t.Error("customer input was not escaped")
	}
}

func TestComposer_AdminConfirmationReminder(t *testing.T) {
	c, _ := NewComposer(testCompany())
	o := testOrder(t, "orange", "usd")

	admin, err := c.AdminAlert(o)
	if err != nil {
		t.Fatalf("AdminAlert() error = %v", err)
	}
	if admin.To != "ops@eurekapx.com" || !strings.Contains(admin.Subject, "EPX-001") {
		t.Errorf("admin alert = %s / %s", admin.To, admin.Subject)
	}
	if !strings.Contains(admin.HTMLBody, "Orange Money") || !strings.Contains(admin.HTMLBody, "3x 3 mois") {
		t.Error("admin alert missing method or plan label")
	}

	conf, err := c.Confirmation(o, 1)
	if err != nil {
		t.Fatalf("Confirmation() error = %v", err)
	}
	if conf.To != "amani@example.cd" || !strings.Contains(conf.HTMLBody, "235 USD") {
		t.Errorf("confirmation = %s / %s", conf.To, conf.HTMLBody)
	}

	rem, err := c.Reminder(o, 2)
	if err != nil {
		t.Fatalf("Reminder() error = %v", err)
	}
	if !strings.Contains(rem.Subject, "3/3") {
		t.Errorf("reminder subject = %q", rem.Subject)
	}
	// created 2025-03-01 + 90 days
	if !strings.Contains(rem.HTMLBody, "30/05/2025") || !strings.Contains(rem.TextBody, "30/05/2025") {
		t.Errorf("reminder missing due date:\n%s", rem.TextBody)
	}

	if _, err := c.Reminder(o, 3); !errors.Is(err, order.ErrInvalidInstallment) {
		t.Errorf("Reminder(3) error = %v, want ErrInvalidInstallment", err)
	}
}
