// Package outbox provides value types and pure functions for side effects that
// are recorded together with a ledger write and carried out later: emails to
// send and reminders to register and fire.
// All types are immutable values; all functions are pure.
package outbox

import (
	"encoding/json"
	"time"
)

// Kind identifies what a task does when dispatched.
type Kind string

const (
	KindInvoiceEmail      Kind = "invoice_email"      // pro-forma invoice to the customer
	KindAdminEmail        Kind = "admin_email"        // new order alert to the operator
	KindConfirmationEmail Kind = "confirmation_email" // payment confirmed to the customer
	KindRegisterReminder  Kind = "register_reminder"  // hand a reminder instant to the scheduler
)

// AllKinds returns every task kind.
func AllKinds() []Kind {
	return []Kind{
		KindInvoiceEmail,
		KindAdminEmail,
		KindConfirmationEmail,
		KindRegisterReminder,
	}
}

// Status represents the state of a task.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRetrying Status = "retrying"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
)

// DefaultMaxAttempts is used when a task is created without an explicit limit.
const DefaultMaxAttempts = 4

// Task is a pending side effect (value type).
type Task struct {
	ID          string
	Reference   string // order the task belongs to
	Kind        Kind
	Payload     string // JSON, kind specific
	Status      Status
	Attempt     int
	MaxAttempts int
	Error       string
	NextAttempt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EmailPayload is the payload of the email kinds.
type EmailPayload struct {
	Installment int `json:"installment"`
}

// ReminderPayload is the payload of KindRegisterReminder.
type ReminderPayload struct {
	Installment int       `json:"installment"`
	FireAt      time.Time `json:"fire_at"`
}

// NewTask creates a pending task.
// This is a PURE function.
func NewTask(id, reference string, kind Kind, payload any, maxAttempts int, now time.Time) (Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Task{}, err
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return Task{
		ID:          id,
		Reference:   reference,
		Kind:        kind,
		Payload:     string(data),
		Status:      StatusPending,
		Attempt:     1,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// DecodePayload unmarshals the task payload into v.
func (t Task) DecodePayload(v any) error {
	return json.Unmarshal([]byte(t.Payload), v)
}

// IsDue reports whether the task should be attempted at now.
func (t Task) IsDue(now time.Time) bool {
	switch t.Status {
	case StatusPending:
		return true
	case StatusRetrying:
		return t.NextAttempt == nil || !t.NextAttempt.After(now)
	default:
		return false
	}
}

// CalculateNextAttempt calculates the next attempt time using exponential backoff.
// This is a PURE function.
func CalculateNextAttempt(attempt int, now time.Time) time.Time {
	// 1min, 5min, 30min
	delays := []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		30 * time.Minute,
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(delays) {
		idx = len(delays) - 1
	}
	return now.Add(delays[idx])
}

// MarkDone marks a task as completed.
// This is a PURE function - returns a new Task.
func MarkDone(t Task, now time.Time) Task {
	t.Status = StatusDone
	t.Error = ""
	t.NextAttempt = nil
	t.UpdatedAt = now
	return t
}

// MarkFailed records a failed attempt and schedules a retry while attempts remain.
// This is a PURE function - returns a new Task.
func MarkFailed(t Task, errMsg string, now time.Time) Task {
	t.Error = truncate(errMsg, 1000)
	t.UpdatedAt = now

	if t.Attempt < t.MaxAttempts {
		t.Status = StatusRetrying
		next := CalculateNextAttempt(t.Attempt, now)
		t.NextAttempt = &next
	} else {
		t.Status = StatusFailed
		t.NextAttempt = nil
	}
	return t
}

// IncrementAttempt moves a retrying task back to pending for another attempt.
// This is a PURE function - returns a new Task.
func IncrementAttempt(t Task, now time.Time) Task {
	t.Attempt++
	t.Status = StatusPending
	t.NextAttempt = nil
	t.UpdatedAt = now
	return t
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
