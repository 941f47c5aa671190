package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/domain/outbox"
	"github.com/go-chi/chi/v5"
)

// CustomerResponse is the contact block of an order.
type CustomerResponse struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Company   string `json:"company,omitempty"`
}

// InstallmentResponse is one installment of an order.
type InstallmentResponse struct {
	Number    int        `json:"number"`
	Amount    float64    `json:"amount"`
	Formatted string     `json:"formatted"`
	DueDate   time.Time  `json:"dueDate"`
	PaidAt    *time.Time `json:"paidAt"`
}

// NoteResponse is an audit note.
type NoteResponse struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// TaskResponse is an outbox task of an order.
type TaskResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Attempt     int        `json:"attempt"`
	MaxAttempts int        `json:"maxAttempts"`
	Error       string     `json:"error,omitempty"`
	NextAttempt *time.Time `json:"nextAttempt,omitempty"`
}

// OrderResponse represents an order in API responses.
type OrderResponse struct {
	Reference    string                `json:"reference"`
	Customer     CustomerResponse      `json:"customer"`
	Plan         string                `json:"plan"`
	PlanLabel    string                `json:"planLabel"`
	Method       string                `json:"method"`
	MethodLabel  string                `json:"methodLabel"`
	Currency     string                `json:"currency"`
	Status       string                `json:"status"`
	Total        string                `json:"total"`
	Installments []InstallmentResponse `json:"installments"`
	Notes        []NoteResponse        `json:"notes,omitempty"`
	Tasks        []TaskResponse        `json:"tasks,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// ReminderResponse is a registered reminder.
type ReminderResponse struct {
	ID          string     `json:"id"`
	Installment int        `json:"installment"`
	FireAt      time.Time  `json:"fireAt"`
	Status      string     `json:"status"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// SettleResponse is returned by MarkPaid.
type SettleResponse struct {
	Found       bool           `json:"found"`
	AlreadyPaid bool           `json:"alreadyPaid"`
	Order       *OrderResponse `json:"order,omitempty"`
}

// ListOrders returns recorded orders, most recent first.
//
//	@Summary	List orders
//	@Tags		Admin
//	@Produce	json
//	@Param		limit	query		int	false	"Max results"	default(50)
//	@Param		offset	query		int	false	"Offset"		default(0)
//	@Success	200		{object}	map[string]interface{}
//	@Security	AdminToken
//	@Router		/admin/orders [get]
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, ok1 := parseIntQuery(r, "limit", 50)
	offset, ok2 := parseIntQuery(r, "offset", 0)
	if !ok1 || !ok2 || limit < 0 || offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit and offset must be non-negative integers")
		return
	}

	orders, err := h.ledger.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list orders")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list orders")
		return
	}

	resp := make([]OrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = orderToResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": resp,
		"limit":  limit,
		"offset": offset,
	})
}

// GetOrder returns one order with its audit notes and outbox tasks.
//
//	@Summary	Get order
//	@Tags		Admin
//	@Produce	json
//	@Param		reference	path		string	true	"Order reference"
//	@Success	200			{object}	OrderResponse
//	@Failure	404			{object}	ErrorResponse
//	@Security	AdminToken
//	@Router		/admin/orders/{reference} [get]
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")

	o, err := h.ledger.Get(r.Context(), ref)
	if errors.Is(err, order.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Order not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("reference", ref).Msg("failed to load order")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load order")
		return
	}

	resp := orderToResponse(o)
	if h.tasks != nil {
		tasks, err := h.tasks.TasksFor(r.Context(), ref)
		if err != nil {
			h.logger.Error().Err(err).Str("reference", ref).Msg("failed to list outbox tasks")
		}
		for _, t := range tasks {
			resp.Tasks = append(resp.Tasks, taskToResponse(t))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListReminders returns the reminders registered for an order.
//
//	@Summary	List reminders
//	@Tags		Admin
//	@Produce	json
//	@Param		reference	path		string	true	"Order reference"
//	@Success	200			{object}	map[string]interface{}
//	@Failure	404			{object}	ErrorResponse
//	@Security	AdminToken
//	@Router		/admin/orders/{reference}/reminders [get]
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")

	if _, err := h.ledger.Get(r.Context(), ref); err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Order not found")
			return
		}
		h.logger.Error().Err(err).Str("reference", ref).Msg("failed to load order")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load order")
		return
	}

	resp := []ReminderResponse{}
	if h.reminders != nil {
		reminders, err := h.reminders.ListForOrder(r.Context(), ref)
		if err != nil {
			h.logger.Error().Err(err).Str("reference", ref).Msg("failed to list reminders")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list reminders")
			return
		}
		for _, rem := range reminders {
			resp = append(resp, ReminderResponse{
				ID:          rem.ID,
				Installment: rem.Installment,
				FireAt:      rem.FireAt,
				Status:      string(rem.Status),
				SentAt:      rem.SentAt,
				Error:       rem.Error,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": resp})
}

// MarkPaid settles an installment of an order.
//
//	@Summary		Mark installment paid
//	@Description	Marks the installment paid and queues the confirmation email. An order that is already paid is reported with alreadyPaid.
//	@Tags			Admin
//	@Produce		json
//	@Param			reference	path		string	true	"Order reference"
//	@Param			installment	query		int		false	"Zero-based installment index"	default(0)
//	@Success		200			{object}	SettleResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	SettleResponse
//	@Security		AdminToken
//	@Router			/admin/orders/{reference}/paid [post]
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")

	installment, ok := parseIntQuery(r, "installment", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_installment", "installment must be an integer")
		return
	}

	res, err := h.settler.Settle(r.Context(), ref, installment)
	if errors.Is(err, order.ErrInvalidInstallment) {
		writeError(w, http.StatusBadRequest, "invalid_installment", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to settle order")
		return
	}
	if !res.Found {
		writeJSON(w, http.StatusNotFound, SettleResponse{Found: false})
		return
	}

	o := orderToResponse(res.Order)
	writeJSON(w, http.StatusOK, SettleResponse{
		Found:       true,
		AlreadyPaid: res.AlreadyPaid,
		Order:       &o,
	})
}

func orderToResponse(o order.Order) OrderResponse {
	resp := OrderResponse{
		Reference: o.Reference,
		Customer: CustomerResponse{
			FirstName: o.Customer.FirstName,
			LastName:  o.Customer.LastName,
			Email:     o.Customer.Email,
			Phone:     o.Customer.Phone,
			Company:   o.Customer.Company,
		},
		Plan:         string(o.Plan),
		PlanLabel:    o.Plan.Label(),
		Method:       string(o.Method),
		MethodLabel:  o.Method.Label(),
		Currency:     string(o.Currency),
		Status:       string(o.Status),
		Total:        order.FormatAmount(o.Total(), o.Currency),
		Installments: make([]InstallmentResponse, len(o.Installments)),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	for i, inst := range o.Installments {
		resp.Installments[i] = InstallmentResponse{
			Number:    i + 1,
			Amount:    inst.Amount,
			Formatted: order.FormatAmount(inst.Amount, o.Currency),
			DueDate:   o.DueDate(i),
			PaidAt:    inst.PaidAt,
		}
	}
	for _, n := range o.Notes {
		resp.Notes = append(resp.Notes, NoteResponse{At: n.At, Text: n.Text})
	}
	return resp
}

func taskToResponse(t outbox.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Kind:        string(t.Kind),
		Status:      string(t.Status),
		Attempt:     t.Attempt,
		MaxAttempts: t.MaxAttempts,
		Error:       t.Error,
		NextAttempt: t.NextAttempt,
	}
}
