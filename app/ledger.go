// Package app contains the services of the order ledger: intake, settlement,
// the outbox dispatcher and reminder firing.
package app

import (
	"context"
	"fmt"

	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/domain/outbox"
	"github.com/eurekapx/orderdesk/ports"
	"github.com/rs/zerolog"
)

// EffectsFunc returns the outbox tasks to store together with an upserted order.
type EffectsFunc func(o order.Order, created bool) ([]outbox.Task, error)

// LedgerService records orders and their side effects.
// Every write is one store transaction keyed by reference.
type LedgerService struct {
	orders      ports.OrderStore
	clock       ports.Clock
	ids         ports.IDGenerator
	pricing     order.Pricing
	maxAttempts int
	logger      zerolog.Logger
}

// NewLedgerService creates a ledger over an order store.
func NewLedgerService(
	orders ports.OrderStore,
	clock ports.Clock,
	ids ports.IDGenerator,
	pricing order.Pricing,
	maxAttempts int,
	logger zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		orders:      orders,
		clock:       clock,
		ids:         ids,
		pricing:     pricing,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Pricing returns the rate used to compute installments.
func (s *LedgerService) Pricing() order.Pricing {
	return s.pricing
}

// Upsert creates the order of an unseen reference or overwrites the
// submission fields of a known one, keeping its status and payments.
// effects may be nil.
func (s *LedgerService) Upsert(ctx context.Context, v order.Validated, effects EffectsFunc) (order.Order, bool, error) {
	now := s.clock.Now()
	created := false

	o, err := s.orders.Update(ctx, v.Reference, func(existing *order.Order) (order.Order, []outbox.Task, error) {
		var next order.Order
		if existing == nil {
			created = true
			next = order.New(v, s.pricing, now)
		} else {
			created = false
			next = order.Resubmit(*existing, v, s.pricing, now)
		}

		if effects == nil {
			return next, nil, nil
		}
		tasks, err := effects(next, created)
		if err != nil {
			return next, nil, fmt.Errorf("build tasks: %w", err)
		}
		return next, tasks, nil
	})
	if err != nil {
		return order.Order{}, false, err
	}
	return o, created, nil
}

// Get returns an order by reference.
func (s *LedgerService) Get(ctx context.Context, reference string) (order.Order, error) {
	return s.orders.Get(ctx, reference)
}

// List returns orders, most recent first.
func (s *LedgerService) List(ctx context.Context, limit, offset int) ([]order.Order, error) {
	return s.orders.List(ctx, limit, offset)
}

// MarkPaid settles one installment and queues the confirmation email.
// Unknown references are never created. A paid order is returned unchanged
// with order.ErrAlreadyPaid.
func (s *LedgerService) MarkPaid(ctx context.Context, reference string, installment int) (order.Order, error) {
	now := s.clock.Now()

	return s.orders.Update(ctx, reference, func(existing *order.Order) (order.Order, []outbox.Task, error) {
		if existing == nil {
			return order.Order{}, nil, order.ErrOrderNotFound
		}
		paid, err := order.MarkPaid(*existing, installment, now)
		if err != nil {
			return paid, nil, err
		}
		task, err := s.NewTask(reference, outbox.KindConfirmationEmail, outbox.EmailPayload{Installment: installment})
		if err != nil {
			return paid, nil, err
		}
		return paid, []outbox.Task{task}, nil
	})
}

// AppendNote records an audit note on an order.
func (s *LedgerService) AppendNote(ctx context.Context, reference, text string) error {
	return s.orders.AppendNote(ctx, reference, order.Note{At: s.clock.Now(), Text: text})
}

// NewTask builds a pending outbox task for an order.
func (s *LedgerService) NewTask(reference string, kind outbox.Kind, payload any) (outbox.Task, error) {
	return outbox.NewTask(s.ids.New(), reference, kind, payload, s.maxAttempts, s.clock.Now())
}
