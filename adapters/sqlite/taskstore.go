package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eurekapx/orderdesk/domain/outbox"
	"github.com/eurekapx/orderdesk/ports"
)

// TaskStore implements ports.TaskStore using SQLite.
type TaskStore struct {
	db *DB
}

// NewTaskStore creates a new SQLite outbox task store.
func NewTaskStore(db *DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskColumns = `id, reference, kind, payload, status, attempt, max_attempts,
	error, next_attempt, created_at, updated_at`

// ListDue returns pending tasks and retrying tasks whose next attempt has passed.
func (s *TaskStore) ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM outbox_tasks
		WHERE (status = 'pending') OR (status = 'retrying' AND next_attempt <= ?)
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListByReference returns every task of an order, oldest first.
func (s *TaskStore) ListByReference(ctx context.Context, reference string) ([]outbox.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM outbox_tasks
		WHERE reference = ?
		ORDER BY created_at ASC, rowid ASC
	`, reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// Update stores the new state of a task.
func (s *TaskStore) Update(ctx context.Context, t outbox.Task) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE outbox_tasks
		SET status = ?, attempt = ?, error = ?, next_attempt = ?, updated_at = ?
		WHERE id = ?
	`, string(t.Status), t.Attempt, nullString(t.Error), nullTime(t.NextAttempt), t.UpdatedAt.UTC(), t.ID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns the number of tasks per status.
func (s *TaskStore) CountByStatus(ctx context.Context) (map[outbox.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox_tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[outbox.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[outbox.Status(status)] = n
	}
	return counts, rows.Err()
}

func insertTask(ctx context.Context, tx *sql.Tx, t outbox.Task) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Reference, string(t.Kind), t.Payload, string(t.Status), t.Attempt, t.MaxAttempts,
		nullString(t.Error), nullTime(t.NextAttempt), t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("task %s: %w", t.ID, ErrDuplicate)
		}
		return fmt.Errorf("enqueue %s task: %w", t.Kind, err)
	}
	return nil
}

func scanTasks(rows *sql.Rows) ([]outbox.Task, error) {
	var tasks []outbox.Task
	for rows.Next() {
		var t outbox.Task
		var kind, status string
		var errMsg sql.NullString
		var next sql.NullTime

		err := rows.Scan(&t.ID, &t.Reference, &kind, &t.Payload, &status, &t.Attempt,
			&t.MaxAttempts, &errMsg, &next, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		t.Kind = outbox.Kind(kind)
		t.Status = outbox.Status(status)
		t.Error = errMsg.String
		t.NextAttempt = timePtr(next)
		t.CreatedAt = t.CreatedAt.UTC()
		t.UpdatedAt = t.UpdatedAt.UTC()
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Ensure interface compliance.
var _ ports.TaskStore = (*TaskStore)(nil)
