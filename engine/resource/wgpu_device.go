package resource

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// copyAlignment is the granularity WebGPU requires for Queue.WriteBuffer offsets and sizes.
const copyAlignment = 4

// WGPUDevice is a Device that allocates WebGPU vertex buffers.
type WGPUDevice interface {
	Device

	// Device returns the underlying WebGPU device.
	//
	// Returns:
	//   - *wgpu.Device: the device buffers are created on
	Device() *wgpu.Device
}

// WGPUBuffer is the Buffer type created by a WGPUDevice.
type WGPUBuffer interface {
	Buffer

	// Native returns the WebGPU buffer for binding in a render pass, or nil once released.
	//
	// Returns:
	//   - *wgpu.Buffer: the native vertex buffer
	Native() *wgpu.Buffer
}

// wgpuDevice is the implementation of WGPUDevice.
type wgpuDevice struct {
	mu      *sync.Mutex
	cfg     deviceConfig
	serials *common.SerialCounter
	device  *wgpu.Device
	queue   *wgpu.Queue
}

// wgpuBuffer is the implementation of WGPUBuffer.
//
// WebGPU has no persistent CPU mapping for vertex buffers, so writes land in a CPU shadow copy and
// Unlock flushes the locked range through Queue.WriteBuffer. Queue writes are ordered after all
// previously submitted work, which gives no-overwrite locks their guarantee for free.
type wgpuBuffer struct {
	mu     *sync.Mutex
	logger *zap.Logger
	label  string
	serial common.Serial
	usage  UsageHint
	size   uint64

	buffer *wgpu.Buffer
	queue  *wgpu.Queue
	shadow []byte

	lockFilter func(offset, length uint64, hint LockHint) error
	locked     bool
	lockOffset uint64
	lockLength uint64
}

var _ WGPUDevice = &wgpuDevice{}
var _ WGPUBuffer = &wgpuBuffer{}

// NewWGPUDevice wraps a WebGPU device and queue as a vertex buffer Device.
// NewWGPUDevice panics if any argument is nil.
//
// Parameters:
//   - device: the WebGPU device buffers are created on
//   - queue: the queue used to flush written ranges
//   - serials: the buffer-scope counter stamping every created buffer
//   - options: functional options to configure the device
//
// Returns:
//   - WGPUDevice: the new device
func NewWGPUDevice(device *wgpu.Device, queue *wgpu.Queue, serials *common.SerialCounter, options ...DeviceBuilderOption) WGPUDevice {
	if device == nil || queue == nil {
		panic("resource: NewWGPUDevice requires a non-nil device and queue")
	}
	if serials == nil {
		panic("resource: NewWGPUDevice requires a non-nil SerialCounter")
	}
	return &wgpuDevice{
		mu:      &sync.Mutex{},
		cfg:     newDeviceConfig(options),
		serials: serials,
		device:  device,
		queue:   queue,
	}
}

func (d *wgpuDevice) BackendType() DeviceBackendType {
	return BackendTypeWGPU
}

func (d *wgpuDevice) Device() *wgpu.Device {
	return d.device
}

func (d *wgpuDevice) CreateBuffer(size uint64, usage UsageHint) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.createFilter != nil {
		if err := d.cfg.createFilter(size, usage); err != nil {
			return nil, fmt.Errorf("%w: wgpu buffer of %d bytes: %w", ErrOutOfMemory, size, err)
		}
	}

	alignedSize := common.AlignUp(size, copyAlignment)
	label := d.cfg.label + " Vertex Buffer"
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             alignedSize,
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: wgpu buffer of %d bytes: %w", ErrOutOfMemory, size, err)
	}

	b := &wgpuBuffer{
		mu:         &sync.Mutex{},
		logger:     d.cfg.logger,
		label:      label,
		serial:     d.serials.Issue(),
		usage:      usage,
		size:       size,
		buffer:     buf,
		queue:      d.queue,
		shadow:     make([]byte, alignedSize),
		lockFilter: d.cfg.lockFilter,
	}
	d.cfg.logger.Debug("created wgpu vertex buffer",
		zap.String("label", label),
		zap.Uint64("serial", uint64(b.serial)),
		zap.Uint64("size", alignedSize),
		zap.Stringer("usage", usage),
	)
	return b, nil
}

func (b *wgpuBuffer) Serial() common.Serial {
	return b.serial
}

func (b *wgpuBuffer) Size() uint64 {
	return b.size
}

func (b *wgpuBuffer) Usage() UsageHint {
	return b.usage
}

func (b *wgpuBuffer) Native() *wgpu.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer
}

func (b *wgpuBuffer) Lock(offset, length uint64, hint LockHint) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.buffer == nil:
		return nil, fmt.Errorf("%w: %s: buffer released", ErrLockFailed, b.label)
	case b.locked:
		return nil, fmt.Errorf("%w: %s: buffer already locked", ErrLockFailed, b.label)
	case offset+length < offset || offset+length > b.size:
		return nil, fmt.Errorf("%w: %s: range [%d, %d) exceeds %d bytes", ErrLockFailed, b.label, offset, offset+length, b.size)
	}
	if b.lockFilter != nil {
		if err := b.lockFilter(offset, length, hint); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLockFailed, b.label, err)
		}
	}

	if hint == LockHintDiscard {
		clear(b.shadow)
	}
	b.locked = true
	b.lockOffset = offset
	b.lockLength = length
	return b.shadow[offset : offset+length : offset+length], nil
}

func (b *wgpuBuffer) Unlock() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.locked {
		return nil
	}
	b.locked = false
	if b.buffer == nil || b.lockLength == 0 {
		return nil
	}

	// Widen the flushed range to the copy alignment; the padding bytes come from the shadow so the
	// GPU copy stays byte-identical to what was written.
	start := b.lockOffset &^ (copyAlignment - 1)
	end := min(common.AlignUp(b.lockOffset+b.lockLength, copyAlignment), uint64(len(b.shadow)))
	if err := b.queue.WriteBuffer(b.buffer, start, b.shadow[start:end]); err != nil {
		return fmt.Errorf("flushing %s [%d, %d): %w", b.label, start, end, err)
	}
	return nil
}

func (b *wgpuBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buffer == nil {
		return
	}
	b.buffer.Release()
	b.buffer = nil
	b.locked = false
	b.logger.Debug("released wgpu vertex buffer",
		zap.String("label", b.label),
		zap.Uint64("serial", uint64(b.serial)),
	)
}

// ErrNativeUnavailable is returned by NativeBuffer when no live WebGPU buffer backs a Buffer.
var ErrNativeUnavailable = errors.New("resource: native buffer unavailable")

// NativeBuffer returns the WebGPU buffer behind b, if b was created by a WGPUDevice and is still live.
//
// Parameters:
//   - b: the buffer to unwrap (may be nil)
//
// Returns:
//   - *wgpu.Buffer: the native buffer
//   - error: an error wrapping ErrNativeUnavailable if b is not a live WebGPU buffer
func NativeBuffer(b Buffer) (*wgpu.Buffer, error) {
	wb, ok := b.(WGPUBuffer)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a wgpu buffer", ErrNativeUnavailable, b)
	}
	native := wb.Native()
	if native == nil {
		return nil, fmt.Errorf("%w: buffer %d released", ErrNativeUnavailable, b.Serial())
	}
	return native, nil
}
