package vertex_buffer

import "github.com/Carmen-Shannon/oxy-gles/common"

// VertexElement records one attribute stream written into a static buffer.
// Entries are appended in upload order and never modified.
type VertexElement struct {
	// Type, Size, Stride and Normalized are copied from the attribute that was written.
	Type       common.ElementType
	Size       int
	Stride     uint64
	Normalized bool

	// AttributeOffset is the attribute's offset modulo its stride: which field of the vertex record it is.
	AttributeOffset uint64

	// StreamOffset is the byte offset within the native buffer where the stream begins.
	StreamOffset uint64
}

// matches reports whether attr has exactly the layout this element was written with.
func (e VertexElement) matches(attr common.VertexAttribute) bool {
	return e.Type == attr.Type &&
		e.Size == attr.Size &&
		e.Stride == attr.Stride() &&
		e.Normalized == attr.Normalized &&
		e.AttributeOffset == attr.LayoutOffset()
}
