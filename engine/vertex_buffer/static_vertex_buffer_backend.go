package vertex_buffer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gles/common"
)

// reserveStatic allocates the native buffer on the first pass, sized exactly to the requirement.
// Later passes must fit the first allocation: static buffers never move, so the offsets in the
// element cache stay valid for the buffer's whole life. Needing more is an upstream logic error.
//
// Capacity records the first requirement even when its allocation fails. Out of memory is not retried:
// the buffer stays absent and Map reports ErrBufferUnavailable until the owner releases it.
func (vb *vertexBuffer) reserveStatic() {
	switch {
	case vb.buffer == nil && vb.capacity == 0:
		vb.allocate(vb.requiredSpace)
		vb.capacity = vb.requiredSpace
	case vb.capacity >= vb.requiredSpace:
		// Already reserved.
	default:
		panic(fmt.Sprintf("vertex_buffer: static buffer %q cannot be resized (capacity %d, required %d, allocated %t)",
			vb.label, vb.capacity, vb.requiredSpace, vb.buffer != nil))
	}
}

// recordElement appends the layout of the stream just mapped at streamOffset.
func (vb *vertexBuffer) recordElement(attr common.VertexAttribute, streamOffset uint64) {
	vb.cache = append(vb.cache, VertexElement{
		Type:            attr.Type,
		Size:            attr.Size,
		Stride:          attr.Stride(),
		Normalized:      attr.Normalized,
		AttributeOffset: attr.LayoutOffset(),
		StreamOffset:    streamOffset,
	})
}

// lookupElement scans the cache in upload order; the first match wins.
func (vb *vertexBuffer) lookupElement(attr common.VertexAttribute) (uint64, bool) {
	for _, e := range vb.cache {
		if e.matches(attr) {
			return e.StreamOffset, true
		}
	}
	return 0, false
}
