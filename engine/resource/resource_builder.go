package resource

import "go.uber.org/zap"

// DeviceBuilderOption is a functional option applied to a device during construction.
type DeviceBuilderOption func(*deviceConfig)

// deviceConfig holds the settings shared by every Device implementation.
type deviceConfig struct {
	label  string
	logger *zap.Logger

	// createFilter and lockFilter run before the native call and can veto it with an error.
	createFilter func(size uint64, usage UsageHint) error
	lockFilter   func(offset, length uint64, hint LockHint) error
}

func newDeviceConfig(options []DeviceBuilderOption) deviceConfig {
	cfg := deviceConfig{
		label:  "Vertex Device",
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(&cfg)
	}
	return cfg
}

// WithLabel sets the debug label prefixed to every buffer the device creates.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - DeviceBuilderOption: a function that applies the label option to a device
func WithLabel(label string) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.label = label
	}
}

// WithLogger sets the logger used for allocation and release events.
//
// Parameters:
//   - logger: the logger to use; nil keeps the no-op default
//
// Returns:
//   - DeviceBuilderOption: a function that applies the logger option to a device
func WithLogger(logger *zap.Logger) DeviceBuilderOption {
	return func(c *deviceConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCreateFilter installs a hook consulted before every allocation. A non-nil return fails the
// allocation with ErrOutOfMemory. Used to simulate memory pressure.
//
// Parameters:
//   - filter: the hook, called with the requested size and usage
//
// Returns:
//   - DeviceBuilderOption: a function that applies the create filter to a device
func WithCreateFilter(filter func(size uint64, usage UsageHint) error) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.createFilter = filter
	}
}

// WithLockFilter installs a hook consulted before every lock. A non-nil return fails the lock with
// ErrLockFailed. Used to simulate lost or busy buffers.
//
// Parameters:
//   - filter: the hook, called with the requested range and hint
//
// Returns:
//   - DeviceBuilderOption: a function that applies the lock filter to a device
func WithLockFilter(filter func(offset, length uint64, hint LockHint) error) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.lockFilter = filter
	}
}
