// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "fmt"

// ElementType identifies the scalar type of a single vertex attribute component.
type ElementType int

const (
	// ElementTypeByte is a signed 8-bit integer component.
	ElementTypeByte ElementType = iota
	// ElementTypeUnsignedByte is an unsigned 8-bit integer component.
	ElementTypeUnsignedByte
	// ElementTypeShort is a signed 16-bit integer component.
	ElementTypeShort
	// ElementTypeUnsignedShort is an unsigned 16-bit integer component.
	ElementTypeUnsignedShort
	// ElementTypeFixed is a signed 16.16 fixed-point component.
	ElementTypeFixed
	// ElementTypeFloat is a 32-bit IEEE float component.
	ElementTypeFloat
)

// Size returns the size in bytes of one component of this type.
//
// Returns:
//   - uint64: the component size in bytes, or 0 for an unknown type
func (t ElementType) Size() uint64 {
	switch t {
	case ElementTypeByte, ElementTypeUnsignedByte:
		return 1
	case ElementTypeShort, ElementTypeUnsignedShort:
		return 2
	case ElementTypeFixed, ElementTypeFloat:
		return 4
	default:
		return 0
	}
}

func (t ElementType) String() string {
	switch t {
	case ElementTypeByte:
		return "byte"
	case ElementTypeUnsignedByte:
		return "ubyte"
	case ElementTypeShort:
		return "short"
	case ElementTypeUnsignedShort:
		return "ushort"
	case ElementTypeFixed:
		return "fixed"
	case ElementTypeFloat:
		return "float"
	default:
		return fmt.Sprintf("ElementType(%d)", int(t))
	}
}

// VertexAttribute describes how one attribute stream is laid out in its source memory.
// It is consumed read-only by the vertex buffer layer and is never validated there.
type VertexAttribute struct {
	// Type is the scalar type of each component.
	Type ElementType
	// Size is the number of components per vertex (1 to 4).
	Size int
	// Normalized reports whether integer components are normalized to [0, 1] or [-1, 1] by the shader stage.
	Normalized bool
	// Offset is the byte offset of the first element within the source memory.
	Offset uint64
	// ExplicitStride is the declared distance in bytes between consecutive elements. Zero means tightly packed.
	ExplicitStride uint64
}

// TypeSize returns the size in bytes of one element (all components of one vertex).
func (a VertexAttribute) TypeSize() uint64 {
	if a.Size <= 0 {
		return 0
	}
	return a.Type.Size() * uint64(a.Size)
}

// Stride returns the effective byte distance between consecutive elements.
// A zero ExplicitStride resolves to TypeSize.
func (a VertexAttribute) Stride() uint64 {
	if a.ExplicitStride != 0 {
		return a.ExplicitStride
	}
	return a.TypeSize()
}

// LayoutOffset returns Offset modulo Stride: the position of this attribute inside one vertex record,
// independent of the vertex the stream starts at. A zero stride yields Offset unchanged.
func (a VertexAttribute) LayoutOffset() uint64 {
	stride := a.Stride()
	if stride == 0 {
		return a.Offset
	}
	return a.Offset % stride
}
