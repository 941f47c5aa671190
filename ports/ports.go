// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/domain/outbox"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides secret hashing.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// UpdateFunc receives the stored order, or nil when the reference is unknown,
// and returns the order to persist together with the tasks to enqueue.
// Returning an error aborts the write.
type UpdateFunc func(existing *order.Order) (order.Order, []outbox.Task, error)

// OrderStore persists orders keyed by reference.
type OrderStore interface {
	// Get retrieves an order by reference.
	// Returns order.ErrOrderNotFound when the reference is unknown.
	Get(ctx context.Context, reference string) (order.Order, error)

	// List returns orders, most recent first.
	List(ctx context.Context, limit, offset int) ([]order.Order, error)

	// Update runs a read-modify-write for one reference in a single
	// transaction. The order and the returned tasks are stored atomically.
	Update(ctx context.Context, reference string, fn UpdateFunc) (order.Order, error)

	// AppendNote adds an audit note to an existing order.
	AppendNote(ctx context.Context, reference string, note order.Note) error
}

// TaskStore persists outbox tasks. Tasks are created through OrderStore.Update.
type TaskStore interface {
	// ListDue returns pending tasks and retrying tasks whose next attempt has passed.
	ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.Task, error)

	// ListByReference returns every task of an order, oldest first.
	ListByReference(ctx context.Context, reference string) ([]outbox.Task, error)

	// Update stores the new state of a task.
	Update(ctx context.Context, t outbox.Task) error

	// CountByStatus returns the number of tasks per status.
	CountByStatus(ctx context.Context) (map[outbox.Status]int, error)
}

// ReminderStore persists registered reminders.
type ReminderStore interface {
	// Get retrieves the reminder of one installment.
	Get(ctx context.Context, reference string, installment int) (outbox.Reminder, error)

	// Create stores a new reminder. (reference, installment) is unique.
	Create(ctx context.Context, r outbox.Reminder) error

	// Update stores the new state of a reminder.
	Update(ctx context.Context, r outbox.Reminder) error

	// ListDue returns scheduled reminders whose instant has passed.
	ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.Reminder, error)

	// ListByReference returns the reminders of an order ordered by instant.
	ListByReference(ctx context.Context, reference string) ([]outbox.Reminder, error)
}

// -----------------------------------------------------------------------------
// Collaborator Ports
// -----------------------------------------------------------------------------

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// EmailSender sends emails.
type EmailSender interface {
	// Send sends an email.
	Send(ctx context.Context, msg EmailMessage) error
}

// MessageComposer renders the emails of the order lifecycle.
type MessageComposer interface {
	// Invoice builds the pro-forma invoice sent to the customer.
	Invoice(o order.Order) (EmailMessage, error)

	// AdminAlert builds the new order notification sent to the operator.
	AdminAlert(o order.Order) (EmailMessage, error)

	// Confirmation builds the payment confirmation for an installment.
	Confirmation(o order.Order, installment int) (EmailMessage, error)

	// Reminder builds the upcoming payment reminder for an installment.
	Reminder(o order.Order, installment int) (EmailMessage, error)
}

// ReminderJob identifies the installment a reminder is about.
type ReminderJob struct {
	Reference   string
	Installment int
}

// Scheduler registers work to run at a later instant.
type Scheduler interface {
	// RegisterAt asks for job to run at the given instant.
	// Registering the same job again moves it rather than duplicating it.
	RegisterAt(ctx context.Context, at time.Time, job ReminderJob) error
}
