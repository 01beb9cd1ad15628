package vertex_buffer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gles/engine/resource"
	"go.uber.org/zap"
)

var (
	// ErrBufferUnavailable is returned by Map when no native buffer backs the VertexBuffer,
	// either because none was requested yet or because its allocation failed.
	ErrBufferUnavailable = errors.New("vertex_buffer: no native buffer")

	// ErrAlreadyMapped is returned by Map when the previous Map has not been paired with Unmap.
	ErrAlreadyMapped = errors.New("vertex_buffer: buffer already mapped")

	// ErrInsufficientSpace is returned by Map when the window does not fit between the write position
	// and the capacity, i.e. the space was never reserved.
	ErrInsufficientSpace = errors.New("vertex_buffer: map exceeds reserved capacity")
)

// vertexBuffer is the implementation of the VertexBuffer interface.
// It is used from a single render-control goroutine and holds no locks.
type vertexBuffer struct {
	backendType VertexBufferBackendType
	label       string

	device  resource.Device
	serials *common.SerialCounter
	logger  *zap.Logger
	metrics *metrics.Metrics

	growthNumerator   uint64
	growthDenominator uint64

	// buffer is the owned native buffer, or nil if absent.
	buffer resource.Buffer
	// serial changes whenever buffer is replaced by a new allocation.
	serial common.Serial
	// capacity is the size of the current generation in bytes.
	capacity uint64
	// writePosition is the offset of the next unwritten byte in the current generation.
	writePosition uint64
	// requiredSpace accumulates AddRequiredSpace calls until the next reservation pass.
	requiredSpace uint64
	// mapped is set between a successful Map and its Unmap.
	mapped bool

	// cache lists every stream written into a static buffer, in upload order.
	cache []VertexElement
}

// VertexBuffer owns at most one native buffer and decides where attribute streams land in it.
//
// Usage pattern, once per draw:
//  1. AddRequiredSpace for every attribute stream that must be uploaded
//  2. ReserveRequiredSpace once, which may grow, recycle or allocate the native buffer
//  3. Map, write the stream, Unmap, for each stream; use the returned offset when drawing
//  4. Compare Serial against the value cached at the last bind to know whether to rebind
//
// Static buffers additionally answer LookupAttribute so a stream already uploaded with the same
// layout can be reused without writing it again.
type VertexBuffer interface {
	// BackendType returns the allocation policy of this buffer.
	//
	// Returns:
	//   - VertexBufferBackendType: streaming or static
	BackendType() VertexBufferBackendType

	// Label returns the debug label for this buffer.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// AddRequiredSpace adds n bytes to the space the next reservation pass must provide.
	// May be called several times per pass, e.g. once per attribute stream of a draw.
	//
	// Parameters:
	//   - n: the number of bytes to add
	AddRequiredSpace(n uint64)

	// ReserveRequiredSpace applies the allocation policy to the accumulated requirement and resets
	// the accumulator to zero. Streaming buffers grow or recycle; static buffers allocate on the first
	// pass and panic if a later pass needs more than that first allocation.
	ReserveRequiredSpace()

	// Map acquires a write window of requiredSpace bytes at the current write position and advances
	// the position past it. Static buffers also record the attribute's layout for LookupAttribute.
	// Every successful Map must be followed by exactly one Unmap before the next Map.
	//
	// Parameters:
	//   - attr: the attribute whose stream will be written
	//   - requiredSpace: the window size in bytes
	//
	// Returns:
	//   - []byte: the writable window
	//   - uint64: the byte offset of the window within the native buffer, to use when drawing
	//   - error: ErrBufferUnavailable, ErrAlreadyMapped, ErrInsufficientSpace, or an error wrapping
	//     resource.ErrLockFailed
	Map(attr common.VertexAttribute, requiredSpace uint64) ([]byte, uint64, error)

	// Unmap releases the window acquired by Map. No-op when nothing is mapped or no native buffer exists.
	//
	// Returns:
	//   - error: an error if the written bytes could not be flushed to the native buffer
	Unmap() error

	// LookupAttribute returns the stream offset of the first cached stream whose type, component count,
	// stride, normalization and offset-modulo-stride all match attr. Streaming buffers cache nothing.
	//
	// Parameters:
	//   - attr: the attribute to look up
	//
	// Returns:
	//   - uint64: the stream offset of the match
	//   - bool: false if nothing matched
	LookupAttribute(attr common.VertexAttribute) (uint64, bool)

	// Elements returns a copy of the static element cache in upload order.
	//
	// Returns:
	//   - []VertexElement: the cached elements (empty for streaming buffers)
	Elements() []VertexElement

	// Serial returns the interface-scope identity of the current native buffer generation.
	// Zero means no allocation has been requested yet.
	//
	// Returns:
	//   - common.Serial: the current serial
	Serial() common.Serial

	// Buffer returns the current native buffer.
	//
	// Returns:
	//   - resource.Buffer: the native buffer, or nil if absent
	Buffer() resource.Buffer

	// Capacity returns the size of the current generation in bytes.
	//
	// Returns:
	//   - uint64: the capacity
	Capacity() uint64

	// WritePosition returns the offset of the next unwritten byte.
	//
	// Returns:
	//   - uint64: the write position
	WritePosition() uint64

	// RequiredSpace returns the bytes accumulated since the last reservation pass.
	//
	// Returns:
	//   - uint64: the pending requirement
	RequiredSpace() uint64

	// IsMapped reports whether a Map is awaiting its Unmap.
	//
	// Returns:
	//   - bool: true while mapped
	IsMapped() bool

	// Release frees the native buffer. The VertexBuffer must not be used afterwards. Safe to call more than once.
	Release()
}

// Compile-time check that vertexBuffer implements VertexBuffer
var _ VertexBuffer = &vertexBuffer{}

// NewStreamingVertexBuffer creates a streaming VertexBuffer. When initialSize is non-zero the native
// buffer is requested immediately; an allocation failure is logged and leaves the buffer absent with
// capacity recording initialSize. Panics if device or serials is nil.
//
// Parameters:
//   - device: the device native buffers are created on
//   - serials: the interface-scope counter stamping each buffer generation
//   - initialSize: the initial capacity in bytes, or 0 to defer allocation to the first reservation pass
//   - options: functional options to configure the buffer
//
// Returns:
//   - VertexBuffer: the new streaming buffer
func NewStreamingVertexBuffer(device resource.Device, serials *common.SerialCounter, initialSize uint64, options ...VertexBufferBuilderOption) VertexBuffer {
	vb := newVertexBuffer(BackendTypeStreaming, device, serials, options)
	if initialSize > 0 {
		vb.allocate(initialSize)
	}
	vb.capacity = initialSize
	return vb
}

// NewStaticVertexBuffer creates a static VertexBuffer. Allocation is deferred to the first reservation
// pass, which sizes the native buffer exactly. Panics if device or serials is nil.
//
// Parameters:
//   - device: the device native buffers are created on
//   - serials: the interface-scope counter stamping each buffer generation
//   - options: functional options to configure the buffer
//
// Returns:
//   - VertexBuffer: the new static buffer
func NewStaticVertexBuffer(device resource.Device, serials *common.SerialCounter, options ...VertexBufferBuilderOption) VertexBuffer {
	return newVertexBuffer(BackendTypeStatic, device, serials, options)
}

func newVertexBuffer(backendType VertexBufferBackendType, device resource.Device, serials *common.SerialCounter, options []VertexBufferBuilderOption) *vertexBuffer {
	if device == nil {
		panic("vertex_buffer: a non-nil resource.Device is required")
	}
	if serials == nil {
		panic("vertex_buffer: a non-nil SerialCounter is required")
	}

	vb := &vertexBuffer{
		backendType:       backendType,
		device:            device,
		serials:           serials,
		logger:            zap.NewNop(),
		growthNumerator:   DefaultGrowthNumerator,
		growthDenominator: DefaultGrowthDenominator,
	}
	for _, opt := range options {
		opt(vb)
	}
	vb.label = common.Coalesce(vb.label, backendType.String()+" vertex buffer")
	return vb
}

func (vb *vertexBuffer) BackendType() VertexBufferBackendType {
	return vb.backendType
}

func (vb *vertexBuffer) Label() string {
	return vb.label
}

func (vb *vertexBuffer) AddRequiredSpace(n uint64) {
	vb.requiredSpace += n
}

func (vb *vertexBuffer) ReserveRequiredSpace() {
	switch vb.backendType {
	case BackendTypeStreaming:
		vb.reserveStreaming()
	case BackendTypeStatic:
		vb.reserveStatic()
	default:
		panic(unknownBackendType(vb.backendType))
	}
	vb.requiredSpace = 0
}

func (vb *vertexBuffer) Map(attr common.VertexAttribute, requiredSpace uint64) ([]byte, uint64, error) {
	if vb.buffer == nil {
		return nil, 0, ErrBufferUnavailable
	}
	if vb.mapped {
		return nil, 0, ErrAlreadyMapped
	}
	if end := vb.writePosition + requiredSpace; end < vb.writePosition || end > vb.capacity {
		return nil, 0, fmt.Errorf("%w: %d bytes at %d of %s, capacity %d",
			ErrInsufficientSpace, requiredSpace, vb.writePosition, vb.label, vb.capacity)
	}

	data, err := vb.buffer.Lock(vb.writePosition, requiredSpace, vb.backendType.lockHint())
	if err != nil {
		vb.logger.Error("vertex buffer lock failed",
			zap.String("label", vb.label),
			zap.Uint64("offset", vb.writePosition),
			zap.Uint64("length", requiredSpace),
			zap.Error(err),
		)
		vb.metrics.ObserveFailure(vb.backendType.String(), metrics.ErrorTypeLock)
		return nil, 0, fmt.Errorf("mapping %d bytes at %d of %s: %w", requiredSpace, vb.writePosition, vb.label, err)
	}

	offset := vb.writePosition
	if vb.backendType == BackendTypeStatic {
		vb.recordElement(attr, offset)
	}
	vb.writePosition += requiredSpace
	vb.mapped = true
	vb.metrics.ObserveMapped(vb.backendType.String(), requiredSpace)
	return data, offset, nil
}

func (vb *vertexBuffer) Unmap() error {
	if vb.buffer == nil || !vb.mapped {
		return nil
	}
	vb.mapped = false
	if err := vb.buffer.Unlock(); err != nil {
		vb.logger.Error("vertex buffer unlock failed",
			zap.String("label", vb.label),
			zap.Error(err),
		)
		return fmt.Errorf("unmapping %s: %w", vb.label, err)
	}
	return nil
}

func (vb *vertexBuffer) LookupAttribute(attr common.VertexAttribute) (uint64, bool) {
	switch vb.backendType {
	case BackendTypeStreaming:
		return 0, false
	case BackendTypeStatic:
		offset, ok := vb.lookupElement(attr)
		vb.metrics.ObserveLookup(ok)
		return offset, ok
	default:
		panic(unknownBackendType(vb.backendType))
	}
}

func (vb *vertexBuffer) Elements() []VertexElement {
	return slices.Clone(vb.cache)
}

func (vb *vertexBuffer) Serial() common.Serial {
	return vb.serial
}

func (vb *vertexBuffer) Buffer() resource.Buffer {
	return vb.buffer
}

func (vb *vertexBuffer) Capacity() uint64 {
	return vb.capacity
}

func (vb *vertexBuffer) WritePosition() uint64 {
	return vb.writePosition
}

func (vb *vertexBuffer) RequiredSpace() uint64 {
	return vb.requiredSpace
}

func (vb *vertexBuffer) IsMapped() bool {
	return vb.mapped
}

func (vb *vertexBuffer) Release() {
	vb.releaseBuffer()
}

// allocate requests a native buffer of size bytes and stamps the new generation with a serial.
// The serial is issued even when the allocation fails, so cached bindings of the old buffer go stale.
//
// Returns:
//   - bool: false if the device reported out of memory; the buffer is then absent
func (vb *vertexBuffer) allocate(size uint64) bool {
	buf, err := vb.device.CreateBuffer(size, vb.backendType.usage())
	vb.serial = vb.serials.Issue()
	if err != nil {
		vb.logger.Error("out of memory allocating a vertex buffer",
			zap.String("label", vb.label),
			zap.Uint64("size", size),
			zap.Error(err),
		)
		vb.metrics.ObserveFailure(vb.backendType.String(), metrics.ErrorTypeOutOfMemory)
		vb.buffer = nil
		return false
	}
	vb.buffer = buf
	vb.metrics.ObserveAllocation(vb.backendType.String())
	return true
}

// releaseBuffer unlocks and frees the native buffer if one is held.
func (vb *vertexBuffer) releaseBuffer() {
	if vb.buffer == nil {
		return
	}
	if vb.mapped {
		if err := vb.buffer.Unlock(); err != nil {
			vb.logger.Warn("unlock before release failed", zap.String("label", vb.label), zap.Error(err))
		}
		vb.mapped = false
	}
	vb.buffer.Release()
	vb.buffer = nil
}
