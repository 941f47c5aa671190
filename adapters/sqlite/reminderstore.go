package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eurekapx/orderdesk/domain/outbox"
	"github.com/eurekapx/orderdesk/ports"
)

// ReminderStore implements ports.ReminderStore using SQLite.
type ReminderStore struct {
	db *DB
}

// NewReminderStore creates a new SQLite reminder store.
func NewReminderStore(db *DB) *ReminderStore {
	return &ReminderStore{db: db}
}

const reminderColumns = `id, reference, installment, fire_at, status, sent_at, error, created_at, updated_at`

// Get retrieves the reminder of one installment.
func (s *ReminderStore) Get(ctx context.Context, reference string, installment int) (outbox.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE reference = ? AND installment = ?
	`, reference, installment)

	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return outbox.Reminder{}, outbox.ErrReminderNotFound
	}
	return r, err
}

// Create stores a new reminder.
func (s *ReminderStore) Create(ctx context.Context, r outbox.Reminder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Reference, r.Installment, r.FireAt.UTC(), string(r.Status),
		nullTime(r.SentAt), nullString(r.Error), r.CreatedAt.UTC(), r.UpdatedAt.UTC())
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("reminder %s#%d: %w", r.Reference, r.Installment, ErrDuplicate)
		}
		return err
	}
	return nil
}

// Update stores the new state of a reminder.
func (s *ReminderStore) Update(ctx context.Context, r outbox.Reminder) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reminders
		SET fire_at = ?, status = ?, sent_at = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, r.FireAt.UTC(), string(r.Status), nullTime(r.SentAt), nullString(r.Error), r.UpdatedAt.UTC(), r.ID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return outbox.ErrReminderNotFound
	}
	return nil
}

// ListDue returns scheduled reminders whose instant has passed.
func (s *ReminderStore) ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE status = 'scheduled' AND fire_at <= ?
		ORDER BY fire_at ASC
		LIMIT ?
	`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

// ListByReference returns the reminders of an order ordered by instant.
func (s *ReminderStore) ListByReference(ctx context.Context, reference string) ([]outbox.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE reference = ?
		ORDER BY fire_at ASC, installment ASC
	`, reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

func scanReminders(rows *sql.Rows) ([]outbox.Reminder, error) {
	var reminders []outbox.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func scanReminder(sc scanner) (outbox.Reminder, error) {
	var r outbox.Reminder
	var status string
	var sentAt sql.NullTime
	var errMsg sql.NullString

	err := sc.Scan(&r.ID, &r.Reference, &r.Installment, &r.FireAt, &status,
		&sentAt, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return outbox.Reminder{}, err
	}
	r.Status = outbox.ReminderStatus(status)
	r.SentAt = timePtr(sentAt)
	r.Error = errMsg.String
	r.FireAt = r.FireAt.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

// Ensure interface compliance.
var _ ports.ReminderStore = (*ReminderStore)(nil)
