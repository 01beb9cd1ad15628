package resource

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-gles/common"
)

// DeviceBackendType identifies which native buffer primitive a Device allocates from.
type DeviceBackendType int

const (
	// BackendTypeHost allocates buffers from process memory. Used for headless runs and tests.
	BackendTypeHost DeviceBackendType = iota

	// BackendTypeWGPU allocates WebGPU vertex buffers and flushes writes through the device queue.
	BackendTypeWGPU
)

func (t DeviceBackendType) String() string {
	switch t {
	case BackendTypeHost:
		return "host"
	case BackendTypeWGPU:
		return "wgpu"
	default:
		return "unknown"
	}
}

// UsageHint tells the backend how a buffer will be written.
type UsageHint int

const (
	// UsageHintDynamicWriteOnly marks a buffer that is rewritten every frame or draw and never read back.
	UsageHintDynamicWriteOnly UsageHint = iota

	// UsageHintWriteOnly marks a buffer that is written once and then only read by the GPU.
	UsageHintWriteOnly
)

func (u UsageHint) String() string {
	switch u {
	case UsageHintDynamicWriteOnly:
		return "dynamic-write-only"
	case UsageHintWriteOnly:
		return "write-only"
	default:
		return "unknown"
	}
}

// LockHint qualifies a Lock request.
type LockHint int

const (
	// LockHintNone requests a plain exclusive write window. Previously written contents are preserved.
	LockHintNone LockHint = iota

	// LockHintNoOverwrite promises the locked range has not been written since the last discard,
	// so the backend may hand it out without synchronizing with in-flight GPU work.
	LockHintNoOverwrite

	// LockHintDiscard declares every previous byte of the buffer stale. The backend may orphan the
	// old storage instead of waiting for the GPU to finish reading it.
	LockHintDiscard
)

func (h LockHint) String() string {
	switch h {
	case LockHintNone:
		return "none"
	case LockHintNoOverwrite:
		return "no-overwrite"
	case LockHintDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

var (
	// ErrOutOfMemory is returned when the backend cannot create a buffer.
	ErrOutOfMemory = errors.New("resource: out of memory")

	// ErrLockFailed is returned when the backend cannot map a range of an existing buffer.
	ErrLockFailed = errors.New("resource: lock failed")
)

// Device creates native buffers. Implementations are used from a single render-control goroutine.
type Device interface {
	// BackendType reports which native primitive this device allocates.
	BackendType() DeviceBackendType

	// CreateBuffer allocates a buffer of the given size.
	//
	// Parameters:
	//   - size: the buffer size in bytes
	//   - usage: how the buffer will be written
	//
	// Returns:
	//   - Buffer: the new buffer, or nil on failure
	//   - error: an error wrapping ErrOutOfMemory if the allocation failed
	CreateBuffer(size uint64, usage UsageHint) (Buffer, error)
}

// Buffer is a native buffer exclusively owned by one vertex buffer at a time.
type Buffer interface {
	// Serial returns the buffer-scope identity stamp issued when the buffer was created.
	Serial() common.Serial

	// Size returns the requested size of the buffer in bytes.
	Size() uint64

	// Usage returns the usage hint the buffer was created with.
	Usage() UsageHint

	// Lock acquires an exclusive CPU-visible write window over [offset, offset+length).
	// Exactly one Unlock must follow before the next Lock.
	//
	// Parameters:
	//   - offset: the first byte of the window
	//   - length: the window length in bytes
	//   - hint: synchronization hint for the backend
	//
	// Returns:
	//   - []byte: the writable window, len == length
	//   - error: an error wrapping ErrLockFailed if the window could not be mapped
	Lock(offset, length uint64, hint LockHint) ([]byte, error)

	// Unlock releases the current write window and makes the written bytes visible to the GPU.
	// It is a no-op when the buffer is not locked.
	//
	// Returns:
	//   - error: an error if the written bytes could not be flushed
	Unlock() error

	// Release frees the native buffer. Safe to call more than once.
	Release()
}
