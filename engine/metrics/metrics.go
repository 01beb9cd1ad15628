// Package metrics exposes Prometheus counters for vertex upload traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters shared by every vertex buffer of a process. A nil *Metrics is valid and
// records nothing, so components can take one unconditionally.
type Metrics struct {
	Allocations    *prometheus.CounterVec
	Recycles       *prometheus.CounterVec
	BytesMapped    *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	CacheLookups   *prometheus.CounterVec
	StaticFallback prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg.
//
// Parameters:
//   - reg: the registerer to register with, e.g. prometheus.NewRegistry() in tests or prometheus.DefaultRegisterer
//
// Returns:
//   - *Metrics: the registered counters
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Allocations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oxy_vertex_buffer_allocations_total",
				Help: "Native vertex buffers allocated, by buffer kind",
			},
			[]string{"kind"},
		),
		Recycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oxy_vertex_buffer_recycles_total",
				Help: "Streaming buffers discarded and rewound without reallocation",
			},
			[]string{"kind"},
		),
		BytesMapped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oxy_vertex_buffer_bytes_mapped_total",
				Help: "Bytes handed out for CPU writes, by buffer kind",
			},
			[]string{"kind"},
		),
		Failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oxy_vertex_buffer_failures_total",
				Help: "Backend failures, by buffer kind and error type",
			},
			[]string{"kind", "error_type"},
		),
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oxy_vertex_buffer_cache_lookups_total",
				Help: "Static attribute cache lookups, by result",
			},
			[]string{"result"},
		),
		StaticFallback: f.NewCounter(
			prometheus.CounterOpts{
				Name: "oxy_vertex_data_static_fallbacks_total",
				Help: "Static source buffers invalidated because a draw used an uncached layout",
			},
		),
	}
}

// Error types recorded by ObserveFailure.
const (
	ErrorTypeOutOfMemory = "out_of_memory"
	ErrorTypeLock        = "lock"
)

// ObserveAllocation counts a native buffer allocation.
func (m *Metrics) ObserveAllocation(kind string) {
	if m == nil {
		return
	}
	m.Allocations.WithLabelValues(kind).Inc()
}

// ObserveRecycle counts a discard-and-rewind of a streaming buffer.
func (m *Metrics) ObserveRecycle(kind string) {
	if m == nil {
		return
	}
	m.Recycles.WithLabelValues(kind).Inc()
}

// ObserveMapped adds n bytes to the mapped-bytes counter.
func (m *Metrics) ObserveMapped(kind string, n uint64) {
	if m == nil {
		return
	}
	m.BytesMapped.WithLabelValues(kind).Add(float64(n))
}

// ObserveFailure counts a backend failure of the given error type.
func (m *Metrics) ObserveFailure(kind, errorType string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(kind, errorType).Inc()
}

// ObserveLookup counts a static cache lookup.
func (m *Metrics) ObserveLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveStaticFallback counts a static source buffer falling back to streaming.
func (m *Metrics) ObserveStaticFallback() {
	if m == nil {
		return
	}
	m.StaticFallback.Inc()
}
