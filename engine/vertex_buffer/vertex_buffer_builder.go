package vertex_buffer

import (
	"github.com/Carmen-Shannon/oxy-gles/engine/metrics"
	"go.uber.org/zap"
)

// DefaultGrowthNumerator and DefaultGrowthDenominator give the streaming growth factor of 1.5.
// Growth is max(required, capacity*numerator/denominator); a larger factor means fewer reallocations
// and more unused space.
const (
	DefaultGrowthNumerator   = 3
	DefaultGrowthDenominator = 2
)

// VertexBufferBuilderOption is a functional option applied to a VertexBuffer during construction.
type VertexBufferBuilderOption func(*vertexBuffer)

// WithLabel sets the debug label used in log messages.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - VertexBufferBuilderOption: a function that applies the label option to a vertex buffer
func WithLabel(label string) VertexBufferBuilderOption {
	return func(vb *vertexBuffer) {
		vb.label = label
	}
}

// WithLogger sets the logger that receives out-of-memory and lock failure reports.
//
// Parameters:
//   - logger: the logger to use; nil keeps the no-op default
//
// Returns:
//   - VertexBufferBuilderOption: a function that applies the logger option to a vertex buffer
func WithLogger(logger *zap.Logger) VertexBufferBuilderOption {
	return func(vb *vertexBuffer) {
		if logger != nil {
			vb.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus counters. Buffers without metrics record nothing.
//
// Parameters:
//   - m: the shared metrics
//
// Returns:
//   - VertexBufferBuilderOption: a function that applies the metrics option to a vertex buffer
func WithMetrics(m *metrics.Metrics) VertexBufferBuilderOption {
	return func(vb *vertexBuffer) {
		vb.metrics = m
	}
}

// WithGrowthFactor overrides the streaming growth factor numerator/denominator. Static buffers never
// grow and ignore it. Panics if denominator is zero.
//
// Parameters:
//   - numerator: the growth factor numerator
//   - denominator: the growth factor denominator
//
// Returns:
//   - VertexBufferBuilderOption: a function that applies the growth factor option to a vertex buffer
func WithGrowthFactor(numerator, denominator uint64) VertexBufferBuilderOption {
	if denominator == 0 {
		panic("vertex_buffer: WithGrowthFactor requires a non-zero denominator")
	}
	return func(vb *vertexBuffer) {
		vb.growthNumerator = numerator
		vb.growthDenominator = denominator
	}
}
