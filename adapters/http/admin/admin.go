// Package admin provides the HTTP handlers of the operator API: order reads
// and settlement, behind a bearer token.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/eurekapx/orderdesk/adapters/metrics"
	"github.com/eurekapx/orderdesk/app"
	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/domain/outbox"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Ledger reads recorded orders.
type Ledger interface {
	Get(ctx context.Context, reference string) (order.Order, error)
	List(ctx context.Context, limit, offset int) ([]order.Order, error)
}

// Settler marks installments paid.
type Settler interface {
	Settle(ctx context.Context, reference string, installment int) (app.SettleResult, error)
}

// ReminderLister lists the reminders of an order.
type ReminderLister interface {
	ListForOrder(ctx context.Context, reference string) ([]outbox.Reminder, error)
}

// TaskLister lists the outbox tasks of an order.
type TaskLister interface {
	TasksFor(ctx context.Context, reference string) ([]outbox.Task, error)
}

// TokenVerifier checks the operator bearer token.
type TokenVerifier interface {
	Verify(token string) bool
}

// Handler provides admin API endpoints.
type Handler struct {
	ledger    Ledger
	settler   Settler
	reminders ReminderLister
	tasks     TaskLister
	verifier  TokenVerifier
	metrics   *metrics.Collector
	logger    zerolog.Logger
}

// Deps contains dependencies for the admin handler.
// Reminders and Tasks are optional.
type Deps struct {
	Ledger    Ledger
	Settler   Settler
	Reminders ReminderLister
	Tasks     TaskLister
	Verifier  TokenVerifier
	Metrics   *metrics.Collector
	Logger    zerolog.Logger
}

// NewHandler creates a new admin API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		ledger:    deps.Ledger,
		settler:   deps.Settler,
		reminders: deps.Reminders,
		tasks:     deps.Tasks,
		verifier:  deps.Verifier,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// Router returns the admin API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{reference}", h.GetOrder)
		r.Get("/orders/{reference}/reminders", h.ListReminders)
		r.Post("/orders/{reference}/paid", h.MarkPaid)
	})

	return r
}

// AuthMiddleware requires "Authorization: Bearer <token>" matching the
// configured token hash. Without a verifier every request is refused.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		token = strings.TrimSpace(token)

		switch {
		case h.verifier == nil:
			h.metrics.AuthFailure("not_configured")
			writeError(w, http.StatusUnauthorized, "unauthorized", "Admin API is not configured")
		case !ok || token == "":
			h.metrics.AuthFailure("missing")
			writeError(w, http.StatusUnauthorized, "unauthorized", "Bearer token required")
		case !h.verifier.Verify(token):
			h.metrics.AuthFailure("invalid")
			h.logger.Warn().Str("remote", r.RemoteAddr).Msg("rejected admin token")
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	writeJSON(w, status, resp)
}

// parseIntQuery returns the named query parameter, or def when it is absent.
// ok is false when the parameter is present but not an integer.
func parseIntQuery(r *http.Request, name string, def int) (v int, ok bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def, false
	}
	return v, true
}
