// Package observability exposes Prometheus metrics for the tool pipeline and
// the conversation loop.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds engine-wide instrument handles. A nil *Metrics is a valid
// no-op receiver so tests can skip registration.
type Metrics struct {
	ToolExecutions *prometheus.CounterVec
	ToolRetries    *prometheus.CounterVec
	ToolDuration   *prometheus.HistogramVec
	LoopIterations prometheus.Histogram
	LoopTurns      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ToolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Name:      "tool_executions_total",
			Help:      "Tool pipeline executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		ToolRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Name:      "tool_retries_total",
			Help:      "Retry attempts beyond the first, by tool name.",
		}, []string{"tool"}),
		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "concierge",
			Name:      "tool_duration_seconds",
			Help:      "Wall time per tool execution including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"tool"}),
		LoopIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "concierge",
			Name:      "loop_iterations",
			Help:      "Model round trips consumed per conversation turn.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		LoopTurns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Name:      "loop_turns_total",
			Help:      "Completed conversation turns by terminal state.",
		}, []string{"state"}),
	}
}

func (m *Metrics) ObserveToolExecution(tool, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutions.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(seconds)
}

func (m *Metrics) ObserveToolRetry(tool string) {
	if m == nil {
		return
	}
	m.ToolRetries.WithLabelValues(tool).Inc()
}

func (m *Metrics) ObserveTurn(state string, iterations int) {
	if m == nil {
		return
	}
	m.LoopTurns.WithLabelValues(state).Inc()
	m.LoopIterations.Observe(float64(iterations))
}

// Handler serves the metrics endpoint for a registry created with New.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
