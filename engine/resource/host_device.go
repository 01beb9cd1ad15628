package resource

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-gles/common"
	"go.uber.org/zap"
)

// DeviceStats counts the native operations a HostDevice has performed.
type DeviceStats struct {
	Created       int
	Released      int
	Locks         int
	Discards      int
	FailedCreates int
	FailedLocks   int
}

// Live returns the number of buffers created and not yet released.
func (s DeviceStats) Live() int {
	return s.Created - s.Released
}

// HostDevice is a Device backed by process memory.
type HostDevice interface {
	Device

	// Stats returns a snapshot of the operation counters.
	//
	// Returns:
	//   - DeviceStats: the counters at the time of the call
	Stats() DeviceStats
}

// HostBuffer is the Buffer type created by a HostDevice.
type HostBuffer interface {
	Buffer

	// Bytes returns the current backing storage. The slice is replaced on every discard.
	Bytes() []byte
}

// hostDevice is the implementation of HostDevice.
type hostDevice struct {
	mu      *sync.Mutex
	cfg     deviceConfig
	serials *common.SerialCounter
	stats   DeviceStats
}

// hostBuffer is the implementation of HostBuffer.
type hostBuffer struct {
	device   *hostDevice
	label    string
	serial   common.Serial
	usage    UsageHint
	data     []byte
	locked   bool
	released bool
}

var _ HostDevice = &hostDevice{}
var _ HostBuffer = &hostBuffer{}

// NewHostDevice creates a Device that allocates buffers from process memory.
// NewHostDevice panics if serials is nil.
//
// Parameters:
//   - serials: the buffer-scope counter stamping every created buffer
//   - options: functional options to configure the device
//
// Returns:
//   - HostDevice: the new device
func NewHostDevice(serials *common.SerialCounter, options ...DeviceBuilderOption) HostDevice {
	if serials == nil {
		panic("resource: NewHostDevice requires a non-nil SerialCounter")
	}
	return &hostDevice{
		mu:      &sync.Mutex{},
		cfg:     newDeviceConfig(options),
		serials: serials,
	}
}

func (d *hostDevice) BackendType() DeviceBackendType {
	return BackendTypeHost
}

func (d *hostDevice) Stats() DeviceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *hostDevice) CreateBuffer(size uint64, usage UsageHint) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.createFilter != nil {
		if err := d.cfg.createFilter(size, usage); err != nil {
			d.stats.FailedCreates++
			return nil, fmt.Errorf("%w: host buffer of %d bytes: %w", ErrOutOfMemory, size, err)
		}
	}

	b := &hostBuffer{
		device: d,
		label:  d.cfg.label + " Host Buffer",
		serial: d.serials.Issue(),
		usage:  usage,
		data:   make([]byte, size),
	}
	d.stats.Created++
	d.cfg.logger.Debug("created host buffer",
		zap.String("label", b.label),
		zap.Uint64("serial", uint64(b.serial)),
		zap.Uint64("size", size),
		zap.Stringer("usage", usage),
	)
	return b, nil
}

func (b *hostBuffer) Serial() common.Serial {
	return b.serial
}

func (b *hostBuffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *hostBuffer) Usage() UsageHint {
	return b.usage
}

func (b *hostBuffer) Bytes() []byte {
	return b.data
}

func (b *hostBuffer) Lock(offset, length uint64, hint LockHint) ([]byte, error) {
	d := b.device
	d.mu.Lock()
	defer d.mu.Unlock()

	fail := func(reason error) ([]byte, error) {
		d.stats.FailedLocks++
		return nil, fmt.Errorf("%w: %s [%d, %d): %w", ErrLockFailed, b.label, offset, offset+length, reason)
	}

	switch {
	case b.released:
		return fail(errors.New("buffer released"))
	case b.locked:
		return fail(errors.New("buffer already locked"))
	case offset+length < offset || offset+length > uint64(len(b.data)):
		return fail(fmt.Errorf("range exceeds %d byte buffer", len(b.data)))
	}
	if d.cfg.lockFilter != nil {
		if err := d.cfg.lockFilter(offset, length, hint); err != nil {
			return fail(err)
		}
	}

	if hint == LockHintDiscard {
		// Orphan the old storage; readers of the previous slice keep their copy.
		b.data = make([]byte, len(b.data))
		d.stats.Discards++
	}
	b.locked = true
	d.stats.Locks++
	return b.data[offset : offset+length : offset+length], nil
}

func (b *hostBuffer) Unlock() error {
	d := b.device
	d.mu.Lock()
	defer d.mu.Unlock()

	b.locked = false
	return nil
}

func (b *hostBuffer) Release() {
	d := b.device
	d.mu.Lock()
	defer d.mu.Unlock()

	if b.released {
		return
	}
	b.released = true
	b.locked = false
	d.stats.Released++
	d.cfg.logger.Debug("released host buffer",
		zap.String("label", b.label),
		zap.Uint64("serial", uint64(b.serial)),
	)
}
