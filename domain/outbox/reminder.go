package outbox

import (
	"errors"
	"time"
)

// ErrReminderNotFound is returned when no reminder exists for an installment.
var ErrReminderNotFound = errors.New("reminder not found")

// ReminderStatus represents the state of a scheduled reminder.
type ReminderStatus string

const (
	ReminderScheduled ReminderStatus = "scheduled"
	ReminderSent      ReminderStatus = "sent"
	ReminderSkipped   ReminderStatus = "skipped" // installment already paid
	ReminderFailed    ReminderStatus = "failed"
)

// Reminder is a registered reminder instant for one installment (value type).
// A reference has at most one reminder per installment.
type Reminder struct {
	ID          string
	Reference   string
	Installment int // zero-based index of the installment the reminder announces
	FireAt      time.Time
	Status      ReminderStatus
	SentAt      *time.Time
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewReminder creates a scheduled reminder.
// This is a PURE function.
func NewReminder(id, reference string, installment int, fireAt, now time.Time) Reminder {
	return Reminder{
		ID:          id,
		Reference:   reference,
		Installment: installment,
		FireAt:      fireAt,
		Status:      ReminderScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsDue reports whether a scheduled reminder should fire at now.
func (r Reminder) IsDue(now time.Time) bool {
	return r.Status == ReminderScheduled && !r.FireAt.After(now)
}

// Reschedule moves a reminder to a new instant and makes it pending again
// unless it was already sent.
// This is a PURE function - returns a new Reminder.
func Reschedule(r Reminder, fireAt, now time.Time) Reminder {
	if r.Status == ReminderSent {
		return r
	}
	r.FireAt = fireAt
	r.Status = ReminderScheduled
	r.Error = ""
	r.UpdatedAt = now
	return r
}

// MarkSent marks a reminder as delivered.
// This is a PURE function - returns a new Reminder.
func MarkSent(r Reminder, now time.Time) Reminder {
	r.Status = ReminderSent
	r.SentAt = &now
	r.Error = ""
	r.UpdatedAt = now
	return r
}

// MarkSkipped marks a reminder as not needed.
// This is a PURE function - returns a new Reminder.
func MarkSkipped(r Reminder, now time.Time) Reminder {
	r.Status = ReminderSkipped
	r.UpdatedAt = now
	return r
}

// MarkReminderFailed marks a reminder as failed.
// This is a PURE function - returns a new Reminder.
func MarkReminderFailed(r Reminder, errMsg string, now time.Time) Reminder {
	r.Status = ReminderFailed
	r.Error = truncate(errMsg, 1000)
	r.UpdatedAt = now
	return r
}
