package app

import (
	"context"
	"net/http"

	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts check verdicts, state transitions and resource shortfalls.
// Verdicts of dry runs are not counted.
type Metrics struct {
	registry    *prometheus.Registry
	verdicts    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	shortfalls  *prometheus.CounterVec
	category    func(definitionID string) string
}

var _ engine.Observer = (*Metrics)(nil)

// NewMetrics registers the kingdom counters on a fresh registry. category
// maps a definition id to its category label.
func NewMetrics(category func(definitionID string) string) *Metrics {
	if category == nil {
		category = func(string) string { return "" }
	}
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kingdom_check_verdicts_total",
			Help: "Finished kingdom checks by verdict and definition category.",
		}, []string{"verdict", "category"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kingdom_check_transitions_total",
			Help: "Kingdom check state transitions by target state.",
		}, []string{"state"}),
		shortfalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kingdom_resource_shortfalls_total",
			Help: "Unpaid resource amounts that hit the resource floor.",
		}, []string{"resource"}),
		category: category,
	}
}

// OnTransition counts one state change.
func (m *Metrics) OnTransition(_ context.Context, transition engine.Transition) {
	m.transitions.WithLabelValues(string(transition.To)).Inc()
}

// OnComplete counts the verdict and any shortfalls of a finished check.
func (m *Metrics) OnComplete(_ context.Context, result engine.Result) {
	if result.DryRun {
		return
	}
	m.verdicts.WithLabelValues(string(result.Verdict), m.category(result.DefinitionID)).Inc()
	for _, shortfall := range result.Batch.Shortfalls {
		m.shortfalls.WithLabelValues(shortfall.Resource).Add(float64(shortfall.Unpaid))
	}
}

// Registry returns the registry the counters live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
