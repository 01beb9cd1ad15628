package vertex_data

import (
	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gles/engine/vertex_buffer"
	"go.uber.org/zap"
)

// DefaultStreamingBufferSize is the initial capacity of the shared streaming buffer.
const DefaultStreamingBufferSize = 1024 * 1024

// ManagerBuilderOption is a functional option applied to a Manager during construction.
type ManagerBuilderOption func(*manager)

// WithLogger sets the logger used by the manager and every vertex buffer it creates.
//
// Parameters:
//   - logger: the logger to use; nil keeps the no-op default
//
// Returns:
//   - ManagerBuilderOption: a function that applies the logger option to a manager
func WithLogger(logger *zap.Logger) ManagerBuilderOption {
	return func(m *manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus counters to the manager and every vertex buffer it creates.
//
// Parameters:
//   - mt: the shared metrics
//
// Returns:
//   - ManagerBuilderOption: a function that applies the metrics option to a manager
func WithMetrics(mt *metrics.Metrics) ManagerBuilderOption {
	return func(m *manager) {
		m.metrics = mt
	}
}

// WithSerialCounter sets the interface-scope counter stamping every vertex buffer the manager creates.
// By default each manager owns a fresh counter.
//
// Parameters:
//   - serials: the counter to use
//
// Returns:
//   - ManagerBuilderOption: a function that applies the serial counter option to a manager
func WithSerialCounter(serials *common.SerialCounter) ManagerBuilderOption {
	return func(m *manager) {
		if serials != nil {
			m.serials = serials
		}
	}
}

// WithStreamingBufferSize sets the initial capacity of the streaming buffer. Zero defers allocation to
// the first draw.
//
// Parameters:
//   - size: the initial capacity in bytes
//
// Returns:
//   - ManagerBuilderOption: a function that applies the streaming size option to a manager
func WithStreamingBufferSize(size uint64) ManagerBuilderOption {
	return func(m *manager) {
		m.streamingSize = size
	}
}

// WithGrowthFactor sets the growth factor of the streaming buffer.
//
// Parameters:
//   - numerator: the growth factor numerator
//   - denominator: the growth factor denominator, must be non-zero
//
// Returns:
//   - ManagerBuilderOption: a function that applies the growth factor option to a manager
func WithGrowthFactor(numerator, denominator uint64) ManagerBuilderOption {
	growth := vertex_buffer.WithGrowthFactor(numerator, denominator)
	return func(m *manager) {
		m.streamingOptions = append(m.streamingOptions, growth)
	}
}

// WithConversionWorkers sets the number of worker goroutines converting attribute data.
//
// Parameters:
//   - n: the number of workers, values below 1 are raised to 1
//
// Returns:
//   - ManagerBuilderOption: a function that applies the worker count option to a manager
func WithConversionWorkers(n int) ManagerBuilderOption {
	return func(m *manager) {
		m.workers = max(n, 1)
	}
}
