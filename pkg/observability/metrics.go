package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/guidance/pkg/domain"
)

const namespace = "guidance"

// Metrics holds the Prometheus collectors for engine events.
type Metrics struct {
	started     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	retries     *prometheus.CounterVec
	escalations *prometheus.CounterVec
	finished    *prometheus.CounterVec
	evictions   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// It panics if registration fails, like prometheus.MustRegister.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions started, by workflow variant.",
		}, []string{"variant"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State advances, by variant and edge.",
		}, []string{"variant", "from", "to"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Inputs rejected without advancing, by variant and state.",
		}, []string{"variant", "state"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Sessions escalated, by variant and the state where escalation was detected.",
		}, []string{"variant", "state"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Sessions that ended, by variant and final status.",
		}, []string{"variant", "status"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Idle sessions removed by the sweeper.",
		}),
	}
	reg.MustRegister(m.started, m.transitions, m.retries, m.escalations, m.finished, m.evictions)
	return m
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStart: func(_ context.Context, e *domain.Event) {
			m.started.WithLabelValues(string(e.Variant)).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.Event) {
			m.transitions.WithLabelValues(string(e.Variant), string(e.From), string(e.To)).Inc()
		},
		OnRetry: func(_ context.Context, e *domain.Event) {
			m.retries.WithLabelValues(string(e.Variant), string(e.From)).Inc()
		},
		OnEscalation: func(_ context.Context, e *domain.Event) {
			m.escalations.WithLabelValues(string(e.Variant), string(e.From)).Inc()
		},
		OnTerminal: func(_ context.Context, e *domain.Event) {
			m.finished.WithLabelValues(string(e.Variant), string(e.Status)).Inc()
		},
		OnCancel: func(_ context.Context, e *domain.Event) {
			m.finished.WithLabelValues(string(e.Variant), string(domain.StatusCancelled)).Inc()
		},
		OnEvict: func(context.Context, *domain.Event) {
			m.evictions.Inc()
		},
	}
}
