package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for the alert scheduler.
type Metrics struct {
	AlertsCreated   prometheus.Counter
	Transitions     *prometheus.CounterVec // labels: status
	Reschedules     prometheus.Counter
	ReconcileSweeps prometheus.Counter
	NotifyFailures  prometheus.Counter

	registry *prometheus.Registry
}

// New registers the metric set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		AlertsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bsma_alerts_created_total",
			Help: "Alerts accepted and persisted.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bsma_alert_transitions_total",
			Help: "Terminal alert status transitions applied.",
		}, []string{"status"}),
		Reschedules: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bsma_alert_reschedules_total",
			Help: "Fire-time reschedules written by the reconciler.",
		}),
		ReconcileSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bsma_reconcile_sweeps_total",
			Help: "Reconciliation sweeps completed.",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bsma_notify_failures_total",
			Help: "Notification deliveries that failed and were swallowed.",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.AlertsCreated,
		m.Transitions,
		m.Reschedules,
		m.ReconcileSweeps,
		m.NotifyFailures,
	)
	return m
}

// Handler exposes the registry for an HTTP /metrics listener.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The increment helpers below tolerate a nil receiver so callers can run
// without metrics wired (tests, metrics listener disabled).

// AlertCreated counts one accepted alert.
func (m *Metrics) AlertCreated() {
	if m == nil {
		return
	}
	m.AlertsCreated.Inc()
}

// TransitionApplied counts one applied terminal transition.
func (m *Metrics) TransitionApplied(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

// Rescheduled counts one reconciler fire-time rewrite.
func (m *Metrics) Rescheduled() {
	if m == nil {
		return
	}
	m.Reschedules.Inc()
}

// SweepCompleted counts one finished reconciliation sweep.
func (m *Metrics) SweepCompleted() {
	if m == nil {
		return
	}
	m.ReconcileSweeps.Inc()
}

// NotifyFailed counts one swallowed delivery failure.
func (m *Metrics) NotifyFailed() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}
