package vertex_data

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine/resource"
	"github.com/chewxy/math32"
)

// ErrSourceOutOfRange is returned when a binding asks for elements beyond the end of its source memory.
var ErrSourceOutOfRange = errors.New("vertex_data: attribute reads past the end of its source")

// streamAlignment is the byte alignment of every stream written into a vertex buffer.
const streamAlignment = 4

// AttributeBinding is one enabled vertex attribute of a draw.
type AttributeBinding struct {
	// Attribute describes the layout of the attribute within its source memory.
	Attribute common.VertexAttribute
	// Buffer is the buffer object the attribute reads from. Nil means the attribute reads Client memory.
	Buffer SourceBuffer
	// Client is the application memory the attribute reads from when Buffer is nil.
	Client []byte
}

// source returns the memory this binding reads from.
func (b AttributeBinding) source() []byte {
	if b.Buffer != nil {
		return b.Buffer.Data()
	}
	return b.Client
}

// TranslatedAttribute describes where one attribute stream of a draw landed. Streams are tightly packed
// and start at the draw's first vertex, so the draw itself always begins at vertex zero.
type TranslatedAttribute struct {
	// Buffer is the native buffer holding the stream.
	Buffer resource.Buffer
	// Serial identifies the vertex buffer generation; rebind when it differs from the bound one.
	Serial common.Serial
	// Offset is the byte offset of the draw's first vertex within Buffer.
	Offset uint64
	// Stride is the byte distance between consecutive converted elements.
	Stride uint64

	// Type, Size and Normalized describe the converted elements.
	Type       common.ElementType
	Size       int
	Normalized bool
}

// OutputType returns the element type attr is converted to. Fixed point has no native vertex format and
// is widened to float.
func OutputType(attr common.VertexAttribute) common.ElementType {
	if attr.Type == common.ElementTypeFixed {
		return common.ElementTypeFloat
	}
	return attr.Type
}

// OutputStride returns the size of one converted element, padded to streamAlignment.
func OutputStride(attr common.VertexAttribute) uint64 {
	if attr.Size <= 0 {
		return 0
	}
	return common.AlignUp(OutputType(attr).Size()*uint64(attr.Size), streamAlignment)
}

// spaceRequired returns the bytes needed to hold count converted elements of attr.
func spaceRequired(attr common.VertexAttribute, count uint64) uint64 {
	return OutputStride(attr) * count
}

// elementsInSource returns how many whole elements of attr fit in size bytes when reading from
// firstByte onwards.
func elementsInSource(attr common.VertexAttribute, firstByte, size uint64) uint64 {
	typeSize, stride := attr.TypeSize(), attr.Stride()
	if typeSize == 0 || stride == 0 || firstByte+typeSize > size {
		return 0
	}
	return (size-firstByte-typeSize)/stride + 1
}

// convertAttribute reads count elements of attr starting at firstByte of src and writes them packed at
// OutputStride into dst.
func convertAttribute(dst, src []byte, attr common.VertexAttribute, firstByte, count uint64) error {
	if count == 0 {
		return nil
	}
	typeSize, stride, outStride := attr.TypeSize(), attr.Stride(), OutputStride(attr)
	last := firstByte + (count-1)*stride + typeSize
	if last < firstByte || last > uint64(len(src)) {
		return fmt.Errorf("%w: %d elements of %s from byte %d need %d bytes, have %d",
			ErrSourceOutOfRange, count, attr.Type, firstByte, last, len(src))
	}
	if uint64(len(dst)) < count*outStride {
		return fmt.Errorf("vertex_data: staging of %d bytes cannot hold %d elements of stride %d", len(dst), count, outStride)
	}

	for i := range count {
		in := src[firstByte+i*stride : firstByte+i*stride+typeSize]
		out := dst[i*outStride : (i+1)*outStride]
		if attr.Type != common.ElementTypeFixed {
			n := copy(out, in)
			clear(out[n:])
			continue
		}
		for c := range attr.Size {
			fixed := int32(binary.LittleEndian.Uint32(in[c*4:]))
			binary.LittleEndian.PutUint32(out[c*4:], math32.Float32bits(float32(fixed)/65536))
		}
	}
	return nil
}
