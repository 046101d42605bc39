package observability

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects task-level Prometheus metrics.
type Metrics struct {
	Events   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Running  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canopy_task_events_total",
				Help: "Task state changes, by task kind and state.",
			},
			[]string{"kind", "state"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "canopy_task_duration_seconds",
				Help:    "Duration of primitive task executions.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"project", "task", "state"},
		),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "canopy_tasks_running",
			Help: "Primitive tasks currently running.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Events, m.Duration, m.Running)
	}
	return m
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTaskStart: func(_ context.Context, e *domain.TaskEvent) {
			m.Events.WithLabelValues(string(e.Kind), string(e.State)).Inc()
			if e.Kind == domain.KindPrimitive {
				m.Running.Inc()
			}
		},
		OnTaskFinish: func(_ context.Context, e *domain.TaskEvent) {
			m.Events.WithLabelValues(string(e.Kind), string(e.State)).Inc()
			if e.Kind != domain.KindPrimitive {
				return
			}
			m.Running.Dec()
			m.Duration.WithLabelValues(e.Task.Project, e.Task.Task, string(e.State)).Observe(e.Duration.Seconds())
		},
		OnTaskSkip: func(_ context.Context, e *domain.TaskEvent) {
			m.Events.WithLabelValues(string(e.Kind), string(e.State)).Inc()
		},
	}
}
