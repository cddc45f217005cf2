// Package telemetry holds the Prometheus metrics and OpenTelemetry tracing
// shared by every command surface.
package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "elara_rag"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// Metrics groups the engine's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	degraded   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	tokens     *prometheus.HistogramVec
	ingested   *prometheus.CounterVec
}

// NewMetrics registers the collectors. withRuntime adds the Go runtime and
// process collectors, which only make sense for long-running surfaces.
func NewMetrics(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Assembler operations by collection and outcome.",
		}, []string{"operation", "collection", "outcome"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_total",
			Help:      "Operations that fell back to a degraded result, by store error kind.",
		}, []string{"operation", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Assembler operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		tokens: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "packed_tokens",
			Help:      "Estimated tokens returned by packing operations.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
		}, []string{"operation"}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_chunks_total",
			Help:      "Knowledge chunks written by ingestion.",
		}, []string{"collection"}),
	}

	m.registry.MustRegister(m.operations, m.degraded, m.duration, m.tokens, m.ingested)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// ObserveOperation records one finished operation.
func (m *Metrics) ObserveOperation(op, collection, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, collection, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordDegraded records a fallback taken because of a store error.
func (m *Metrics) RecordDegraded(op, kind string) {
	if m == nil {
		return
	}
	m.degraded.WithLabelValues(op, kind).Inc()
}

// ObserveTokens records the token total of a packed result.
func (m *Metrics) ObserveTokens(op string, tokens int) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(op).Observe(float64(tokens))
}

// AddIngested counts chunks written to collection.
func (m *Metrics) AddIngested(collection string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingested.WithLabelValues(collection).Add(float64(n))
}

// Registry returns the underlying registry, or nil.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for the node exporter textfile
// collector. One-shot CLI runs use it instead of an HTTP endpoint.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("telemetry: write textfile %s: %w", path, err)
	}
	return nil
}
