package app

import (
	"context"
	"fmt"

	"github.com/eurekapx/orderdesk/adapters/metrics"
	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/domain/outbox"
	"github.com/rs/zerolog"
)

// Notifier is told that new outbox tasks are waiting.
type Notifier interface {
	Notify()
}

// IntakeResult is the outcome of an accepted submission.
type IntakeResult struct {
	Order   order.Order
	Created bool // false when the reference was already known
}

// IntakeService accepts order submissions from the webhook.
type IntakeService struct {
	ledger   *LedgerService
	notifier Notifier
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// NewIntakeService creates an intake service. notifier and m may be nil.
func NewIntakeService(ledger *LedgerService, notifier Notifier, m *metrics.Collector, logger zerolog.Logger) *IntakeService {
	return &IntakeService{
		ledger:   ledger,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// Submit validates a submission, records it and queues the invoice, the
// operator alert and the reminder registrations in the same write.
// It returns once the ledger write is durable; notifications happen later.
func (s *IntakeService) Submit(ctx context.Context, sub order.Submission) (IntakeResult, error) {
	v, err := order.Validate(sub)
	if err != nil {
		s.metrics.Intake("invalid", rejectedLabel(order.ParsePlan, sub.Plan), rejectedLabel(order.ParseCurrency, sub.Currency))
		s.logger.Info().Err(err).Str("reference", sub.Reference).Msg("rejected order submission")
		return IntakeResult{}, err
	}

	o, created, err := s.ledger.Upsert(ctx, v, s.intakeTasks)
	if err != nil {
		s.metrics.Intake("error", string(v.Plan), string(v.Currency))
		s.logger.Error().Err(err).Str("reference", v.Reference).Msg("failed to record order")
		return IntakeResult{}, fmt.Errorf("record order %s: %w", v.Reference, err)
	}

	result := "created"
	if !created {
		result = "updated"
	}
	s.metrics.Intake(result, string(o.Plan), string(o.Currency))

	if s.notifier != nil {
		s.notifier.Notify()
	}

	s.logger.Info().
		Str("reference", o.Reference).
		Str("plan", string(o.Plan)).
		Str("method", string(o.Method)).
		Str("currency", string(o.Currency)).
		Bool("created", created).
		Msg("order recorded")

	return IntakeResult{Order: o, Created: created}, nil
}

// intakeTasks queues the emails and reminder registrations of a submission.
// Resubmissions queue them again; reminder registration is idempotent.
// A paid order only gets the operator alert.
func (s *IntakeService) intakeTasks(o order.Order, created bool) ([]outbox.Task, error) {
	if o.IsPaid() {
		t, err := s.ledger.NewTask(o.Reference, outbox.KindAdminEmail, outbox.EmailPayload{Installment: 0})
		if err != nil {
			return nil, err
		}
		return []outbox.Task{t}, nil
	}

	var tasks []outbox.Task

	for _, kind := range []outbox.Kind{outbox.KindInvoiceEmail, outbox.KindAdminEmail} {
		t, err := s.ledger.NewTask(o.Reference, kind, outbox.EmailPayload{Installment: 0})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	for i, at := range order.ReminderInstants(o.Plan, o.CreatedAt) {
		if o.Installments[i+1].IsPaid() {
			continue
		}
		t, err := s.ledger.NewTask(o.Reference, outbox.KindRegisterReminder, outbox.ReminderPayload{
			Installment: i + 1,
			FireAt:      at,
		})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	return tasks, nil
}

// rejectedLabel keeps client input out of metric labels: values the parser
// does not accept are reported as "other".
func rejectedLabel[T ~string](parse func(string) (T, error), raw string) string {
	v, err := parse(raw)
	if err != nil {
		return "other"
	}
	return string(v)
}
