package core

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sliink/tuner/internal/model"
)

// Metrics turns bus events into prometheus metrics. A disabled instance
// accepts events and records nothing.
type Metrics struct {
	eventsTotal      *prometheus.CounterVec
	pluginExecutions *prometheus.CounterVec
	pluginDuration   *prometheus.HistogramVec
	changesTotal     *prometheus.CounterVec
	backupsTotal     prometheus.Counter
	restoresTotal    *prometheus.CounterVec
	activeRuns       prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with its own registry
func NewMetrics(cfg model.MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{}
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of events published on the bus",
			},
			[]string{"type"},
		),
		pluginExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_executions_total",
				Help:      "Total number of optimizer executions by final status",
			},
			[]string{"plugin", "status"},
		),
		pluginDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plugin_duration_seconds",
				Help:      "Duration of optimizer execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"plugin"},
		),
		changesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "changes_total",
				Help:      "Total number of changes applied by optimizers",
			},
			[]string{"plugin"},
		),
		backupsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backups_total",
				Help:      "Total number of backup bundles written",
			},
		),
		restoresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restore_entries_total",
				Help:      "Total number of restored plugin entries by outcome",
			},
			[]string{"outcome"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Number of optimization runs in progress",
			},
		),
	}

	registry.MustRegister(
		m.eventsTotal,
		m.pluginExecutions,
		m.pluginDuration,
		m.changesTotal,
		m.backupsTotal,
		m.restoresTotal,
		m.activeRuns,
	)

	return m
}

// CanHandle accepts every event type
func (m *Metrics) CanHandle(model.EventType) bool {
	return true
}

// Handle records an event
func (m *Metrics) Handle(event Event) error {
	if m.registry == nil {
		return nil
	}

	m.eventsTotal.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case model.EventOptimizationStarted:
		m.activeRuns.Inc()
	case model.EventOptimizationCompleted, model.EventOptimizationFailed:
		m.activeRuns.Dec()
	case model.EventOptimizerCompleted:
		plugin, _ := event.Data["plugin_name"].(string)
		status, _ := event.Data["status"].(string)
		m.pluginExecutions.WithLabelValues(plugin, status).Inc()
		m.pluginDuration.WithLabelValues(plugin).Observe(asFloat(event.Data["duration_ms"]) / 1000)
		m.changesTotal.WithLabelValues(plugin).Add(asFloat(event.Data["changes_count"]))
	case model.EventBackupCompleted:
		m.backupsTotal.Inc()
	case model.EventRestoreCompleted:
		m.restoresTotal.WithLabelValues("success").Add(asFloat(event.Data["successful"]))
		m.restoresTotal.WithLabelValues("failure").Add(asFloat(event.Data["failed"]))
	}
	return nil
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	}
	return 0
}
