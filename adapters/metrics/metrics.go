// Package metrics provides Prometheus metrics collection for orderdesk.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orderdesk"

// Collector holds all Prometheus metrics for orderdesk.
// The recording helpers are safe to call on a nil *Collector.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Ledger metrics
	IntakeTotal     *prometheus.CounterVec
	SettlementTotal *prometheus.CounterVec
	AuthFailures    *prometheus.CounterVec

	// Outbox metrics
	OutboxTasks    *prometheus.CounterVec
	OutboxBacklog  *prometheus.GaugeVec
	OutboxDuration *prometheus.HistogramVec
	RemindersTotal *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a collector registered with the default Prometheus registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		IntakeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intake_total",
				Help:      "Order submissions by result (created, updated, invalid, error)",
			},
			[]string{"result", "plan", "currency"},
		),
		SettlementTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlement_total",
				Help:      "Settlement requests by result",
			},
			[]string{"result"},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Rejected admin requests",
			},
			[]string{"reason"},
		),

		OutboxTasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_tasks_total",
				Help:      "Outbox task attempts by kind and outcome (done, retry, failed)",
			},
			[]string{"kind", "outcome"},
		),
		OutboxBacklog: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "outbox_tasks",
				Help:      "Outbox tasks by status",
			},
			[]string{"status"},
		),
		OutboxDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "outbox_task_duration_seconds",
				Help:      "Time spent carrying out one outbox task",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		RemindersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_total",
				Help:      "Reminder events by outcome (registered, sent, skipped, failed)",
			},
			[]string{"outcome"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// Intake records the outcome of an order submission.
func (c *Collector) Intake(result, plan, currency string) {
	if c == nil {
		return
	}
	c.IntakeTotal.WithLabelValues(result, plan, currency).Inc()
}

// Settlement records the outcome of a settlement request.
func (c *Collector) Settlement(result string) {
	if c == nil {
		return
	}
	c.SettlementTotal.WithLabelValues(result).Inc()
}

// AuthFailure records a rejected admin request.
func (c *Collector) AuthFailure(reason string) {
	if c == nil {
		return
	}
	c.AuthFailures.WithLabelValues(reason).Inc()
}

// Task records one outbox task attempt.
func (c *Collector) Task(kind, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.OutboxTasks.WithLabelValues(kind, outcome).Inc()
	c.OutboxDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Backlog publishes the number of tasks per status.
func (c *Collector) Backlog(counts map[string]int) {
	if c == nil {
		return
	}
	c.OutboxBacklog.Reset()
	for status, n := range counts {
		c.OutboxBacklog.WithLabelValues(status).Set(float64(n))
	}
}

// Reminder records a reminder event.
func (c *Collector) Reminder(outcome string) {
	if c == nil {
		return
	}
	c.RemindersTotal.WithLabelValues(outcome).Inc()
}

// ConfigReloaded records a config reload attempt.
func (c *Collector) ConfigReloaded(err error, at time.Time) {
	if c == nil {
		return
	}
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.Set(float64(at.Unix()))
}
