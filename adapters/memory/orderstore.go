package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/domain/outbox"
	"github.com/eurekapx/orderdesk/ports"
)

// ErrNotFound is returned when an entity is not found.
var ErrNotFound = errors.New("not found")

// OrderStore is an in-memory implementation of ports.OrderStore.
// It also holds the outbox tasks so that Update stays atomic; TaskStore
// reads them through the same lock.
type OrderStore struct {
	mu       sync.Mutex
	orders   map[string]order.Order
	tasks    []outbox.Task
	failWith error
}

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]order.Order)}
}

// SetFailure makes every following write fail with err. Pass nil to recover.
func (s *OrderStore) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Get retrieves an order by reference.
func (s *OrderStore) Get(ctx context.Context, reference string) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[reference]
	if !ok {
		return order.Order{}, order.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

// List returns orders, most recent first.
func (s *OrderStore) List(ctx context.Context, limit, offset int) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		all = append(all, cloneOrder(o))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].Reference < all[j].Reference
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Update runs fn against the stored order while holding the store lock.
// When fn fails nothing is written and its order and error are returned.
func (s *OrderStore) Update(ctx context.Context, reference string, fn ports.UpdateFunc) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return order.Order{}, s.failWith
	}

	var existing *order.Order
	if o, ok := s.orders[reference]; ok {
		c := cloneOrder(o)
		existing = &c
	}

	next, tasks, err := fn(existing)
	if err != nil {
		return next, err
	}
	if next.Reference != reference {
		return order.Order{}, fmt.Errorf("update of %q returned order %q", reference, next.Reference)
	}
	for _, t := range tasks {
		for _, have := range s.tasks {
			if have.ID == t.ID {
				return order.Order{}, fmt.Errorf("task %s already exists", t.ID)
			}
		}
	}

	s.orders[reference] = cloneOrder(next)
	s.tasks = append(s.tasks, tasks...)
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

func cloneOrder(o order.Order) order.Order {
	o.Installments = append([]order.Installment(nil), o.Installments...)
	o.Notes = append([]order.Note(nil), o.Notes...)
	return o
}

// TaskStore is an in-memory implementation of ports.TaskStore backed by an OrderStore.
type TaskStore struct {
	orders *OrderStore
}

// NewTaskStore creates a task store over the tasks held by orders.
func NewTaskStore(orders *OrderStore) *TaskStore {
	return &TaskStore{orders: orders}
}

// ListDue returns pending tasks and retrying tasks whose next attempt has passed.
func (s *TaskStore) ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.Task, error) {
	s.orders.mu.Lock()
	defer s.orders.mu.Unlock()

	var due []outbox.Task
	for _, t := range s.orders.tasks {
		if t.IsDue(now) {
			due = append(due, t)
			if limit > 0 && len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

// ListByReference returns every task of an order, oldest first.
func (s *TaskStore) ListByReference(ctx context.Context, reference string) ([]outbox.Task, error) {
	s.orders.mu.Lock()
	defer s.orders.mu.Unlock()

	var result []outbox.Task
	for _, t := range s.orders.tasks {
		if t.Reference == reference {
			result = append(result, t)
		}
	}
	return result, nil
}

// Update stores the new state of a task.
func (s *TaskStore) Update(ctx context.Context, t outbox.Task) error {
	s.orders.mu.Lock()
	defer s.orders.mu.Unlock()

	for i := range s.orders.tasks {
		if s.orders.tasks[i].ID == t.ID {
			s.orders.tasks[i] = t
			return nil
		}
	}
	return ErrNotFound
}

// CountByStatus returns the number of tasks per status.
func (s *TaskStore) CountByStatus(ctx context.Context) (map[outbox.Status]int, error) {
	s.orders.mu.Lock()
	defer s.orders.mu.Unlock()

	counts := make(map[outbox.Status]int)
	for _, t := range s.orders.tasks {
		counts[t.Status]++
	}
	return counts, nil
}

// Ensure interface compliance.
var (
	_ ports.OrderStore = (*OrderStore)(nil)
	_ ports.TaskStore  = (*TaskStore)(nil)
)
