package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveAllocation("streaming")
	m.ObserveAllocation("streaming")
	m.ObserveRecycle("streaming")
	m.ObserveMapped("static", 48)
	m.ObserveFailure("static", ErrorTypeLock)
	m.ObserveLookup(true)
	m.ObserveLookup(false)
	m.ObserveLookup(false)
	m.ObserveStaticFallback()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Allocations.WithLabelValues("streaming")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recycles.WithLabelValues("streaming")))
	assert.Equal(t, 48.0, testutil.ToFloat64(m.BytesMapped.WithLabelValues("static")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("static", ErrorTypeLock)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaticFallback))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAllocation("streaming")
		m.ObserveRecycle("streaming")
		m.ObserveMapped("streaming", 1)
		m.ObserveFailure("streaming", ErrorTypeOutOfMemory)
		m.ObserveLookup(true)
		m.ObserveStaticFallback()
	})
}

func TestNewMetricsRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
