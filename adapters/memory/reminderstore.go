package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eurekapx/orderdesk/domain/outbox"
	"github.com/eurekapx/orderdesk/ports"
)

type reminderKey struct {
	reference   string
	installment int
}

// ReminderStore is an in-memory implementation of ports.ReminderStore.
type ReminderStore struct {
	mu        sync.RWMutex
	reminders map[reminderKey]outbox.Reminder
}

// NewReminderStore creates a new in-memory reminder store.
func NewReminderStore() *ReminderStore {
	return &ReminderStore{reminders: make(map[reminderKey]outbox.Reminder)}
}

// Get retrieves the reminder of one installment.
func (s *ReminderStore) Get(ctx context.Context, reference string, installment int) (outbox.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reminders[reminderKey{reference, installment}]
	if !ok {
		return outbox.Reminder{}, outbox.ErrReminderNotFound
	}
	return r, nil
}

// Create stores a new reminder.
func (s *ReminderStore) Create(ctx context.Context, r outbox.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reminderKey{r.Reference, r.Installment}
	if _, exists := s.reminders[key]; exists {
		return fmt.Errorf("reminder %s#%d already exists", r.Reference, r.Installment)
	}
	s.reminders[key] = r
	return nil
}

// Update stores the new state of a reminder.
func (s *ReminderStore) Update(ctx context.Context, r outbox.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reminderKey{r.Reference, r.Installment}
	if old, ok := s.reminders[key]; !ok || old.ID != r.ID {
		return outbox.ErrReminderNotFound
	}
	s.reminders[key] = r
	return nil
}

// ListDue returns scheduled reminders whose instant has passed.
func (s *ReminderStore) ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []outbox.Reminder
	for _, r := range s.reminders {
		if r.IsDue(now) {
			due = append(due, r)
		}
	}
	sortByFireAt(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ListByReference returns the reminders of an order ordered by instant.
func (s *ReminderStore) ListByReference(ctx context.Context, reference string) ([]outbox.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []outbox.Reminder
	for key, r := range s.reminders {
		if key.reference == reference {
			result = append(result, r)
		}
	}
	sortByFireAt(result)
	return result, nil
}

func sortByFireAt(rs []outbox.Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].FireAt.Equal(rs[j].FireAt) {
			return rs[i].FireAt.Before(rs[j].FireAt)
		}
		return rs[i].Installment < rs[j].Installment
	})
}

// Ensure interface compliance.
var _ ports.ReminderStore = (*ReminderStore)(nil)
