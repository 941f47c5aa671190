package admin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eurekapx/orderdesk/adapters/clock"
	"github.com/eurekapx/orderdesk/adapters/email"
	"github.com/eurekapx/orderdesk/adapters/hasher"
	"github.com/eurekapx/orderdesk/adapters/http/admin"
	"github.com/eurekapx/orderdesk/adapters/idgen"
	"github.com/eurekapx/orderdesk/adapters/memory"
	"github.com/eurekapx/orderdesk/app"
	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const adminToken = "s3cret-operator-token"

var baseTime = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	router     chi.Router
	clock      *clock.Fake
	orders     *memory.OrderStore
	intake     *app.IntakeService
	dispatcher *app.Dispatcher
	sender     *email.MockSender
}

func setupHandler(t *testing.T) *fixture {
	t.Helper()

	h := hasher.NewBcrypt(4)
	hash, err := h.Hash(adminToken)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	verifier, err := hasher.NewTokenVerifier(h, string(hash))
	if err != nil {
		t.Fatalf("NewTokenVerifier() error = %v", err)
	}
	return setupWithVerifier(t, verifier)
}

func setupWithVerifier(t *testing.T, verifier admin.TokenVerifier) *fixture {
	t.Helper()

	logger := zerolog.Nop()
	clk := clock.NewFake(baseTime)
	orders := memory.NewOrderStore()
	composer, err := email.NewComposer(email.Company{Name: "Eureka.Px", Email: "contact@eurekapx.com"})
	if err != nil {
		t.Fatalf("NewComposer() error = %v", err)
	}
	sender := email.NewMockSender()

	ledger := app.NewLedgerService(orders, clk, idgen.NewSequential("task_"), order.DefaultPricing(), 3, logger)
	reminders := app.NewReminderService(memory.NewReminderStore(), orders, composer, sender, idgen.NewSequential("rem_"), clk, nil, logger, app.ReminderConfig{PollInterval: time.Hour})
	dispatcher := app.NewDispatcher(memory.NewTaskStore(orders), orders, composer, sender, reminders, clk, nil, logger, app.DispatcherConfig{})

	handler := admin.NewHandler(admin.Deps{
		Ledger:    ledger,
		Settler:   app.NewSettlementService(ledger, nil, nil, logger),
		Reminders: reminders,
		Tasks:     dispatcher,
		Verifier:  verifier,
		Logger:    logger,
	})

	return &fixture{
		router:     handler.Router(),
		clock:      clk,
		orders:     orders,
		intake:     app.NewIntakeService(ledger, nil, nil, logger),
		dispatcher: dispatcher,
		sender:     sender,
	}
}

// seed records an order and runs its outbox tasks.
func (f *fixture) seed(t *testing.T, ref string) {
	t.Helper()
	_, err := f.intake.Submit(context.Background(), order.Submission{
		Reference: ref,
		FirstName: "Amani",
		LastName:  "Kabila",
		Email:     "amani@example.cd",
		Phone:     "+243810000000",
		Plan:      "3months",
		Method:    "bank",
		Currency:  "usd",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	f.dispatcher.ProcessPending(context.Background())
}

func (f *fixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return v
}

func TestAuthMiddleware(t *testing.T) {
	f := setupHandler(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + adminToken, http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"wrong token", "Bearer not-the-token", http.StatusUnauthorized},
		{"valid token", "Bearer " + adminToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if rec.Code == http.StatusUnauthorized {
				body := decode[admin.ErrorResponse](t, rec)
				if body.Error.Code != "unauthorized" {
					t.Errorf("error code = %q", body.Error.Code)
				}
			}
		})
	}
}

func TestAuthMiddleware_NotConfigured(t *testing.T) {
	f := setupWithVerifier(t, nil)

	if rec := f.do("GET", "/orders", adminToken); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without a configured token", rec.Code)
	}
}

func TestListOrders(t *testing.T) {
	f := setupHandler(t)
	f.seed(t, "EPX-1")
	f.clock.Advance(time.Minute)
	f.seed(t, "EPX-2")

	rec := f.do("GET", "/orders?limit=1", adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Orders []admin.OrderResponse `json:"orders"`
		Limit  int                   `json:"limit"`
	}](t, rec)

	if len(body.Orders) != 1 || body.Orders[0].Reference != "EPX-2" || body.Limit != 1 {
		t.Errorf("body = %+v", body)
	}

	if rec := f.do("GET", "/orders?limit=abc", adminToken); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestGetOrder(t *testing.T) {
	f := setupHandler(t)
	f.seed(t, "EPX-1")

	rec := f.do("GET", "/orders/EPX-1", adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	o := decode[admin.OrderResponse](t, rec)

	if o.Status != "pending_verification" || o.PlanLabel != "3x 3 mois" || o.MethodLabel != "Virement Bancaire" {
		t.Errorf("order = %+v", o)
	}
	if o.Total != "670 USD" {
		t.Errorf("Total = %q, want 670 USD", o.Total)
	}
	if len(o.Installments) != 3 || !o.Installments[2].DueDate.Equal(baseTime.Add(90*24*time.Hour)) {
		t.Errorf("installments = %+v", o.Installments)
	}
	if len(o.Tasks) != 4 {
		t.Errorf("tasks = %d, want 4", len(o.Tasks))
	}
	for _, task := range o.Tasks {
		if task.Status != "done" {
			t.Errorf("task %s status = %s", task.Kind, task.Status)
		}
	}

	if rec := f.do("GET", "/orders/UNKNOWN", adminToken); rec.Code != http.StatusNotFound {
		t.Errorf("unknown order status = %d, want 404", rec.Code)
	}
}

func TestListReminders(t *testing.T) {
	f := setupHandler(t)
	f.seed(t, "EPX-1")

	rec := f.do("GET", "/orders/EPX-1/reminders", adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Reminders []admin.ReminderResponse `json:"reminders"`
	}](t, rec)

	if len(body.Reminders) != 2 {
		t.Fatalf("reminders = %+v", body.Reminders)
	}
	if want := baseTime.Add(58 * 24 * time.Hour); !body.Reminders[0].FireAt.Equal(want) {
		t.Errorf("first reminder at %v, want %v", body.Reminders[0].FireAt, want)
	}

	if rec := f.do("GET", "/orders/UNKNOWN/reminders", adminToken); rec.Code != http.StatusNotFound {
		t.Errorf("unknown order status = %d, want 404", rec.Code)
	}
}

func TestMarkPaid(t *testing.T) {
	f := setupHandler(t)
	f.seed(t, "EPX-1")

	rec := f.do("POST", "/orders/UNKNOWN/paid", adminToken)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown status = %d, want 404", rec.Code)
	}
	if body := decode[admin.SettleResponse](t, rec); body.Found {
		t.Error("unknown order reported as found")
	}

	for _, q := range []string{"?installment=x", "?installment=3", "?installment=-1"} {
		if rec := f.do("POST", "/orders/EPX-1/paid"+q, adminToken); rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", q, rec.Code)
		}
	}

	f.clock.Advance(time.Hour)
	rec = f.do("POST", "/orders/EPX-1/paid", adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[admin.SettleResponse](t, rec)
	if !body.Found || body.AlreadyPaid || body.Order == nil || body.Order.Status != "paid" {
		t.Fatalf("body = %+v", body)
	}
	if paid := body.Order.Installments[0].PaidAt; paid == nil || !paid.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("PaidAt = %v", paid)
	}

	f.dispatcher.ProcessPending(context.Background())
	if n := len(f.sender.FindBySubject("Paiement confirmé")); n != 1 {
		t.Errorf("confirmation emails = %d, want 1", n)
	}

	rec = f.do("POST", "/orders/EPX-1/paid?installment=1", adminToken)
	body = decode[admin.SettleResponse](t, rec)
	if rec.Code != http.StatusOK || !body.AlreadyPaid {
		t.Errorf("second settlement = %d %+v, want alreadyPaid", rec.Code, body)
	}
}

func TestMarkPaid_LedgerFailure(t *testing.T) {
	f := setupHandler(t)
	f.seed(t, "EPX-1")
	f.orders.SetFailure(errors.New("database is locked"))

	if rec := f.do("POST", "/orders/EPX-1/paid", adminToken); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
