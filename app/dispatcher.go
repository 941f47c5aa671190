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

// DispatcherConfig tunes the outbox worker.
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	SendTimeout  time.Duration // per task
}

// Dispatcher carries out outbox tasks: it sends emails through the composer
// and sender and hands reminder instants to the scheduler.
type Dispatcher struct {
	tasks     ports.TaskStore
	orders    ports.OrderStore
	composer  ports.MessageComposer
	sender    ports.EmailSender
	scheduler ports.Scheduler
	clock     ports.Clock
	metrics   *metrics.Collector
	logger    zerolog.Logger
	cfg       DispatcherConfig
	worker    *worker
}

// NewDispatcher creates an outbox dispatcher.
func NewDispatcher(
	tasks ports.TaskStore,
	orders ports.OrderStore,
	composer ports.MessageComposer,
	sender ports.EmailSender,
	scheduler ports.Scheduler,
	clock ports.Clock,
	m *metrics.Collector,
	logger zerolog.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	d := &Dispatcher{
		tasks:     tasks,
		orders:    orders,
		composer:  composer,
		sender:    sender,
		scheduler: scheduler,
		clock:     clock,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
	}
	d.worker = newWorker("outbox", cfg.PollInterval, logger, func(ctx context.Context) {
		d.ProcessPending(ctx)
	})
	return d
}

// Start runs the dispatcher in the background until Stop or ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.worker.start(ctx)
}

// Stop stops the background worker and waits for the current pass.
func (d *Dispatcher) Stop() {
	d.worker.stop()
}

// Notify asks for an immediate pass. It never blocks.
func (d *Dispatcher) Notify() {
	d.worker.notify()
}

// ProcessPending carries out the tasks that are due and returns how many succeeded.
func (d *Dispatcher) ProcessPending(ctx context.Context) int {
	now := d.clock.Now()
	due, err := d.tasks.ListDue(ctx, now, d.cfg.BatchSize)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to list due outbox tasks")
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	d.logger.Debug().Int("count", len(due)).Msg("processing outbox tasks")

	succeeded := 0
	for _, t := range due {
		if ctx.Err() != nil {
			break
		}
		if d.process(ctx, t) {
			succeeded++
		}
	}

	d.publishBacklog(ctx)
	return succeeded
}

func (d *Dispatcher) process(ctx context.Context, t outbox.Task) bool {
	if t.Status == outbox.StatusRetrying {
		t = outbox.IncrementAttempt(t, d.clock.Now())
		if err := d.tasks.Update(ctx, t); err != nil {
			d.logger.Error().Err(err).Str("task_id", t.ID).Msg("failed to increment attempt")
			return false
		}
	}

	start := time.Now()
	taskCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	err := d.execute(taskCtx, t)
	cancel()
	elapsed := time.Since(start)

	now := d.clock.Now()
	if err == nil {
		if uerr := d.tasks.Update(ctx, outbox.MarkDone(t, now)); uerr != nil {
			d.logger.Error().Err(uerr).Str("task_id", t.ID).Msg("failed to mark task done")
		}
		d.metrics.Task(string(t.Kind), "done", elapsed)
		d.logger.Debug().
			Str("task_id", t.ID).
			Str("kind", string(t.Kind)).
			Str("reference", t.Reference).
			Msg("outbox task done")
		return true
	}

	failed := outbox.MarkFailed(t, err.Error(), now)
	if uerr := d.tasks.Update(ctx, failed); uerr != nil {
		d.logger.Error().Err(uerr).Str("task_id", t.ID).Msg("failed to record task failure")
	}

	outcome := "retry"
	event := d.logger.Warn()
	if failed.Status == outbox.StatusFailed {
		outcome = "failed"
		event = d.logger.Error()
	}
	d.metrics.Task(string(t.Kind), outcome, elapsed)
	event.Err(err).
		Str("task_id", t.ID).
		Str("kind", string(t.Kind)).
		Str("reference", t.Reference).
		Int("attempt", t.Attempt).
		Int("max_attempts", t.MaxAttempts).
		Msg("outbox task failed")

	note := fmt.Sprintf("%s failed (attempt %d/%d): %s", t.Kind, t.Attempt, t.MaxAttempts, failed.Error)
	if nerr := d.orders.AppendNote(ctx, t.Reference, order.Note{At: now, Text: note}); nerr != nil && !errors.Is(nerr, order.ErrOrderNotFound) {
		d.logger.Error().Err(nerr).Str("reference", t.Reference).Msg("failed to record audit note")
	}
	return false
}

func (d *Dispatcher) execute(ctx context.Context, t outbox.Task) error {
	o, err := d.orders.Get(ctx, t.Reference)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}

	switch t.Kind {
	case outbox.KindInvoiceEmail:
		return d.send(ctx, func() (ports.EmailMessage, error) { return d.composer.Invoice(o) })

	case outbox.KindAdminEmail:
		return d.send(ctx, func() (ports.EmailMessage, error) { return d.composer.AdminAlert(o) })

	case outbox.KindConfirmationEmail:
		var p outbox.EmailPayload
		if err := t.DecodePayload(&p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return d.send(ctx, func() (ports.EmailMessage, error) { return d.composer.Confirmation(o, p.Installment) })

	case outbox.KindRegisterReminder:
		var p outbox.ReminderPayload
		if err := t.DecodePayload(&p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		job := ports.ReminderJob{Reference: o.Reference, Installment: p.Installment}
		if err := d.scheduler.RegisterAt(ctx, p.FireAt, job); err != nil {
			return fmt.Errorf("register reminder: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown task kind %q", t.Kind)
	}
}

func (d *Dispatcher) send(ctx context.Context, compose func() (ports.EmailMessage, error)) error {
	msg, err := compose()
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send to %s: %w", msg.To, err)
	}
	return nil
}

func (d *Dispatcher) publishBacklog(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	counts, err := d.tasks.CountByStatus(ctx)
	if err != nil {
		d.logger.Debug().Err(err).Msg("failed to count outbox tasks")
		return
	}
	byName := make(map[string]int, len(counts))
	for status, n := range counts {
		byName[string(status)] = n
	}
	d.metrics.Backlog(byName)
}

// TasksFor returns the outbox tasks of an order.
func (d *Dispatcher) TasksFor(ctx context.Context, reference string) ([]outbox.Task, error) {
	return d.tasks.ListByReference(ctx, reference)
}
