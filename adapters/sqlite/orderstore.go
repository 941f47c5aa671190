package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/domain/outbox"
	"github.com/eurekapx/orderdesk/ports"
)

// OrderStore implements ports.OrderStore using SQLite.
// It is the durable ledger: orders and their outbox tasks share one transaction.
type OrderStore struct {
	db *DB
}

// NewOrderStore creates a new SQLite order store.
func NewOrderStore(db *DB) *OrderStore {
	return &OrderStore{db: db}
}

// installmentRow is the JSON shape of a stored installment.
type installmentRow struct {
	Amount        float64    `json:"amount"`
	DueOffsetDays int        `json:"due_offset_days"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

type noteRow struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const orderColumns = `reference, first_name, last_name, email, phone, company,
	plan, method, currency, installments, status, notes, created_at, updated_at`

// Get retrieves an order by reference.
func (s *OrderStore) Get(ctx context.Context, reference string) (order.Order, error) {
	return getOrder(ctx, s.db, reference)
}

// List returns orders, most recent first.
func (s *OrderStore) List(ctx context.Context, limit, offset int) ([]order.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC, reference ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Update runs fn against the stored order inside one immediate transaction.
// When fn fails nothing is written and its order and error are returned.
func (s *OrderStore) Update(ctx context.Context, reference string, fn ports.UpdateFunc) (order.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Order{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing *order.Order
	current, err := getOrder(ctx, tx, reference)
	switch {
	case err == nil:
		existing = &current
	case errors.Is(err, order.ErrOrderNotFound):
	default:
		return order.Order{}, err
	}

	next, tasks, err := fn(existing)
	if err != nil {
		return next, err
	}
	if next.Reference != reference {
		return order.Order{}, fmt.Errorf("update of %q returned order %q", reference, next.Reference)
	}

	if err := upsertOrder(ctx, tx, next); err != nil {
		return order.Order{}, err
	}
	for _, t := range tasks {
		if err := insertTask(ctx, tx, t); err != nil {
			return order.Order{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return order.Order{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// AppendNote adds an audit note to an existing order.
func (s *OrderStore) AppendNote(ctx context.Context, reference string, note order.Note) error {
	_, err := s.Update(ctx, reference, func(existing *order.Order) (order.Order, []outbox.Task, error) {
		if existing == nil {
			return order.Order{}, nil, order.ErrOrderNotFound
		}
		return order.AddNote(*existing, note.At, note.Text), nil, nil
	})
	return err
}

func getOrder(ctx context.Context, q rowQuerier, reference string) (order.Order, error) {
	row := q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE reference = ?`, reference)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, order.ErrOrderNotFound
	}
	return o, err
}

func upsertOrder(ctx context.Context, tx *sql.Tx, o order.Order) error {
	installments, notes, err := encodeOrder(o)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(reference) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			phone = excluded.phone,
			company = excluded.company,
			plan = excluded.plan,
			method = excluded.method,
			currency = excluded.currency,
			installments = excluded.installments,
			status = excluded.status,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`, o.Reference, o.Customer.FirstName, o.Customer.LastName, o.Customer.Email,
		o.Customer.Phone, o.Customer.Company, string(o.Plan), string(o.Method),
		string(o.Currency), installments, string(o.Status), notes,
		o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store order %s: %w", o.Reference, err)
	}
	return nil
}

func encodeOrder(o order.Order) (string, string, error) {
	insts := make([]installmentRow, len(o.Installments))
	for i, inst := range o.Installments {
		insts[i] = installmentRow{Amount: inst.Amount, DueOffsetDays: inst.DueOffsetDays, PaidAt: inst.PaidAt}
	}
	notes := make([]noteRow, len(o.Notes))
	for i, n := range o.Notes {
		notes[i] = noteRow{At: n.At, Text: n.Text}
	}

	instJSON, err := json.Marshal(insts)
	if err != nil {
		return "", "", fmt.Errorf("encode installments: %w", err)
	}
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return "", "", fmt.Errorf("encode notes: %w", err)
	}
	return string(instJSON), string(notesJSON), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(sc scanner) (order.Order, error) {
	var o order.Order
	var plan, method, currency, status, installments, notes string

	err := sc.Scan(
		&o.Reference, &o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Email,
		&o.Customer.Phone, &o.Customer.Company, &plan, &method, &currency,
		&installments, &status, &notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}

	o.Plan = order.Plan(plan)
	o.Method = order.Method(method)
	o.Currency = order.Currency(currency)
	o.Status = order.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()

	var insts []installmentRow
	if err := json.Unmarshal([]byte(installments), &insts); err != nil {
		return order.Order{}, fmt.Errorf("decode installments of %s: %w", o.Reference, err)
	}
	o.Installments = make([]order.Installment, len(insts))
	for i, inst := range insts {
		o.Installments[i] = order.Installment{Amount: inst.Amount, DueOffsetDays: inst.DueOffsetDays, PaidAt: inst.PaidAt}
	}

	var ns []noteRow
	if err := json.Unmarshal([]byte(notes), &ns); err != nil {
		return order.Order{}, fmt.Errorf("decode notes of %s: %w", o.Reference, err)
	}
	for _, n := range ns {
		o.Notes = append(o.Notes, order.Note{At: n.At, Text: n.Text})
	}

	return o, nil
}

// Ensure interface compliance.
var _ ports.OrderStore = (*OrderStore)(nil)
