package vertex_buffer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gles/engine/resource"
)

// VertexBufferBackendType identifies the allocation policy of a VertexBuffer.
// The set is closed: every switch over it handles both values and panics on anything else.
type VertexBufferBackendType int

const (
	// BackendTypeStreaming is a ring-style buffer for data that changes every frame or draw. It grows
	// geometrically on overflow and discards-and-rewinds when it merely runs out of room.
	BackendTypeStreaming VertexBufferBackendType = iota

	// BackendTypeStatic is an append-only buffer allocated once, for data stable across many frames.
	// It remembers the layout of every stream written so identical layouts can skip re-upload.
	BackendTypeStatic
)

func (t VertexBufferBackendType) String() string {
	switch t {
	case BackendTypeStreaming:
		return "streaming"
	case BackendTypeStatic:
		return "static"
	default:
		return fmt.Sprintf("VertexBufferBackendType(%d)", int(t))
	}
}

// usage returns the native usage hint buffers of this type are created with.
func (t VertexBufferBackendType) usage() resource.UsageHint {
	switch t {
	case BackendTypeStreaming:
		return resource.UsageHintDynamicWriteOnly
	case BackendTypeStatic:
		return resource.UsageHintWriteOnly
	default:
		panic(unknownBackendType(t))
	}
}

// lockHint returns the hint Map passes to the native lock for this type.
func (t VertexBufferBackendType) lockHint() resource.LockHint {
	switch t {
	case BackendTypeStreaming:
		return resource.LockHintNoOverwrite
	case BackendTypeStatic:
		return resource.LockHintNone
	default:
		panic(unknownBackendType(t))
	}
}

func unknownBackendType(t VertexBufferBackendType) string {
	return fmt.Sprintf("vertex_buffer: unknown backend type %d", int(t))
}
