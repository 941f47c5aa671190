package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eurekapx/orderdesk/adapters/metrics"
	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/domain/outbox"
	"github.com/eurekapx/orderdesk/ports"
	"github.com/rs/zerolog"
)

// ReminderConfig tunes the reminder worker.
type ReminderConfig struct {
	PollInterval time.Duration
	BatchSize    int
	SendTimeout  time.Duration // per reminder
}

// ReminderService stores registered reminder instants and sends the
// reminder emails when they come due. It implements ports.Scheduler.
type ReminderService struct {
	reminders ports.ReminderStore
	orders    ports.OrderStore
	composer  ports.MessageComposer
	sender    ports.EmailSender
	ids       ports.IDGenerator
	clock     ports.Clock
	metrics   *metrics.Collector
	logger    zerolog.Logger
	cfg       ReminderConfig
	worker    *worker
}

// NewReminderService creates a reminder service.
func NewReminderService(
	reminders ports.ReminderStore,
	orders ports.OrderStore,
	composer ports.MessageComposer,
	sender ports.EmailSender,
	ids ports.IDGenerator,
	clock ports.Clock,
	m *metrics.Collector,
	logger zerolog.Logger,
	cfg ReminderConfig,
) *ReminderService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	s := &ReminderService{
		reminders: reminders,
		orders:    orders,
		composer:  composer,
		sender:    sender,
		ids:       ids,
		clock:     clock,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
	}
	s.worker = newWorker("reminders", cfg.PollInterval, logger, func(ctx context.Context) {
		s.FireDue(ctx)
	})
	return s
}

// RegisterAt stores the reminder of an installment, moving an existing one
// to the new instant. Sent reminders are left alone.
func (s *ReminderService) RegisterAt(ctx context.Context, at time.Time, job ports.ReminderJob) error {
	now := s.clock.Now()

	existing, err := s.reminders.Get(ctx, job.Reference, job.Installment)
	switch {
	case errors.Is(err, outbox.ErrReminderNotFound):
		r := outbox.NewReminder(s.ids.New(), job.Reference, job.Installment, at, now)
		if err := s.reminders.Create(ctx, r); err != nil {
			return fmt.Errorf("create reminder: %w", err)
		}
	case err != nil:
		return fmt.Errorf("load reminder: %w", err)
	default:
		moved := outbox.Reschedule(existing, at, now)
		if moved.Status == existing.Status && moved.FireAt.Equal(existing.FireAt) {
			return nil
		}
		if err := s.reminders.Update(ctx, moved); err != nil {
			return fmt.Errorf("update reminder: %w", err)
		}
	}

	s.metrics.Reminder("registered")
	s.logger.Debug().
		Str("reference", job.Reference).
		Int("installment", job.Installment).
		Time("fire_at", at).
		Msg("reminder registered")
	return nil
}

// Start runs the firing loop in the background until Stop or ctx is done.
func (s *ReminderService) Start(ctx context.Context) {
	s.worker.start(ctx)
}

// Stop stops the firing loop.
func (s *ReminderService) Stop() {
	s.worker.stop()
}

// ListForOrder returns the reminders of an order.
func (s *ReminderService) ListForOrder(ctx context.Context, reference string) ([]outbox.Reminder, error) {
	return s.reminders.ListByReference(ctx, reference)
}

// FireDue sends every reminder that is due and returns how many were sent.
func (s *ReminderService) FireDue(ctx context.Context) int {
	due, err := s.reminders.ListDue(ctx, s.clock.Now(), s.cfg.BatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list due reminders")
		return 0
	}

	sent := 0
	for _, r := range due {
		if ctx.Err() != nil {
			break
		}
		next := s.fire(ctx, r)
		if err := s.reminders.Update(ctx, next); err != nil {
			s.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("failed to update reminder")
			continue
		}
		if next.Status == outbox.ReminderSent {
			sent++
		}
	}
	return sent
}

func (s *ReminderService) fire(ctx context.Context, r outbox.Reminder) outbox.Reminder {
	log := s.logger.With().
		Str("reference", r.Reference).
		Int("installment", r.Installment).
		Logger()

	o, err := s.orders.Get(ctx, r.Reference)
	if err != nil {
		s.metrics.Reminder("failed")
		log.Error().Err(err).Msg("failed to load order for reminder")
		return outbox.MarkReminderFailed(r, "load order: "+err.Error(), s.clock.Now())
	}
	if r.Installment < 0 || r.Installment >= len(o.Installments) {
		s.metrics.Reminder("failed")
		return outbox.MarkReminderFailed(r, order.ErrInvalidInstallment.Error(), s.clock.Now())
	}
	// Paid is terminal: later installments can no longer be recorded.
	if o.IsPaid() || o.Installments[r.Installment].IsPaid() {
		s.metrics.Reminder("skipped")
		log.Info().Str("status", string(o.Status)).Msg("order already paid, reminder skipped")
		return outbox.MarkSkipped(r, s.clock.Now())
	}

	msg, err := s.composer.Reminder(o, r.Installment)
	if err == nil {
		sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		err = s.sender.Send(sendCtx, msg)
		cancel()
	}

	now := s.clock.Now()
	if err != nil {
		s.metrics.Reminder("failed")
		log.Error().Err(err).Msg("failed to send reminder")
		note := fmt.Sprintf("reminder for installment %d failed: %s", r.Installment+1, err)
		if nerr := s.orders.AppendNote(ctx, r.Reference, order.Note{At: now, Text: note}); nerr != nil {
			log.Error().Err(nerr).Msg("failed to record audit note")
		}
		return outbox.MarkReminderFailed(r, err.Error(), now)
	}

	s.metrics.Reminder("sent")
	log.Info().Str("to", msg.To).Msg("reminder sent")
	return outbox.MarkSent(r, now)
}

// Ensure interface compliance.
var _ ports.Scheduler = (*ReminderService)(nil)
