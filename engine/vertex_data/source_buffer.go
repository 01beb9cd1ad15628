// Package vertex_data translates application vertex attributes into backend vertex buffers.
//
// A Manager is handed the attribute bindings of one draw. It routes each binding to a streaming buffer
// shared by every draw or to a static buffer owned by the binding's SourceBuffer, reserves space once
// per buffer, converts attribute bytes into the packed layout the backend consumes and reports where
// each stream landed.
package vertex_data

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-gles/engine/vertex_buffer"
)

// BufferUsage is the application's hint about how often a SourceBuffer's contents change.
type BufferUsage int

const (
	// UsageStatic marks data written once and drawn many times. Static sources get their own static
	// vertex buffer holding a converted copy of every attribute layout drawn from them.
	UsageStatic BufferUsage = iota
	// UsageDynamic marks data rewritten often. Dynamic sources stream through the shared buffer until
	// they have been drawn unmodified long enough to be promoted.
	UsageDynamic
)

func (u BufferUsage) String() string {
	switch u {
	case UsageStatic:
		return "static"
	case UsageDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// promotionFactor is how many times its own size a dynamic source must be streamed unmodified before it
// is promoted to a static vertex buffer.
const promotionFactor = 3

// SourceBuffer is an application buffer object that vertex attributes are read from.
// It is used from the render-control goroutine only.
type SourceBuffer interface {
	// Label returns the debug label for this buffer.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Usage returns the usage hint the data was last specified with.
	//
	// Returns:
	//   - BufferUsage: the usage hint
	Usage() BufferUsage

	// Data returns the buffer contents. The slice must not be modified; use SetData or SetSubData.
	//
	// Returns:
	//   - []byte: the contents
	Data() []byte

	// Size returns the size of the contents in bytes.
	//
	// Returns:
	//   - uint64: the size in bytes
	Size() uint64

	// SetData replaces the contents and usage. Any static vertex buffer converted from the old contents
	// is released.
	//
	// Parameters:
	//   - data: the new contents, copied
	//   - usage: the new usage hint
	SetData(data []byte, usage BufferUsage)

	// SetSubData overwrites part of the contents. Any static vertex buffer is released.
	// Returns false without changing anything if the range does not fit the current contents.
	//
	// Parameters:
	//   - offset: the byte offset to write at
	//   - data: the bytes to write
	//
	// Returns:
	//   - bool: true if the range was written
	SetSubData(offset uint64, data []byte) bool

	// StaticVertexBuffer returns the static vertex buffer currently holding converted copies of this
	// buffer's attributes.
	//
	// Returns:
	//   - vertex_buffer.VertexBuffer: the static buffer, or nil if none exists
	StaticVertexBuffer() vertex_buffer.VertexBuffer

	// InvalidateStaticData releases the static vertex buffer and stops static routing until the data is
	// respecified or the buffer is promoted again.
	InvalidateStaticData()

	// Release frees the static vertex buffer, if any.
	Release()
}

// sourceBuffer is the implementation of the SourceBuffer interface.
type sourceBuffer struct {
	label string
	usage BufferUsage
	data  []byte

	// wantsStatic is set while static routing is allowed; the Manager creates staticBuffer lazily.
	wantsStatic  bool
	staticBuffer vertex_buffer.VertexBuffer

	// unmodifiedUse counts bytes streamed from this buffer since its data last changed.
	unmodifiedUse uint64
}

// Compile-time check that sourceBuffer implements SourceBuffer
var _ SourceBuffer = &sourceBuffer{}

// NewSourceBuffer creates a SourceBuffer holding a copy of data.
//
// Parameters:
//   - label: the debug label, also used for the static vertex buffer
//   - data: the initial contents, copied
//   - usage: the usage hint
//
// Returns:
//   - SourceBuffer: the new source buffer
func NewSourceBuffer(label string, data []byte, usage BufferUsage) SourceBuffer {
	b := &sourceBuffer{label: label}
	b.SetData(data, usage)
	return b
}

func (b *sourceBuffer) Label() string {
	return b.label
}

func (b *sourceBuffer) Usage() BufferUsage {
	return b.usage
}

func (b *sourceBuffer) Data() []byte {
	return b.data
}

func (b *sourceBuffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *sourceBuffer) SetData(data []byte, usage BufferUsage) {
	b.releaseStatic()
	b.data = slices.Clone(data)
	b.usage = usage
	b.wantsStatic = usage == UsageStatic
	b.unmodifiedUse = 0
}

func (b *sourceBuffer) SetSubData(offset uint64, data []byte) bool {
	end := offset + uint64(len(data))
	if end < offset || end > uint64(len(b.data)) {
		return false
	}
	copy(b.data[offset:end], data)
	b.releaseStatic()
	b.wantsStatic = false
	b.unmodifiedUse = 0
	return true
}

func (b *sourceBuffer) StaticVertexBuffer() vertex_buffer.VertexBuffer {
	return b.staticBuffer
}

func (b *sourceBuffer) InvalidateStaticData() {
	b.releaseStatic()
	b.wantsStatic = false
	b.unmodifiedUse = 0
}

func (b *sourceBuffer) Release() {
	b.releaseStatic()
}

func (b *sourceBuffer) releaseStatic() {
	if b.staticBuffer != nil {
		b.staticBuffer.Release()
		b.staticBuffer = nil
	}
}

// promoteStaticUsage records n bytes streamed from this buffer and allows static routing once the
// unmodified use passes promotionFactor times the buffer size.
func (b *sourceBuffer) promoteStaticUsage(n uint64) {
	if b.wantsStatic || b.staticBuffer != nil {
		return
	}
	b.unmodifiedUse += n
	if b.unmodifiedUse > promotionFactor*b.Size() {
		b.wantsStatic = true
	}
}
