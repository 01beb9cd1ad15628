package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine/vertex_data"
	"github.com/cogentcore/webgpu/wgpu"
)

// vertexFormat returns the WebGPU vertex format of attr after translation. Translated streams are
// padded to 4 bytes per element, so 8- and 16-bit attributes are read with as many components as the
// padded element holds; the padding components are zero.
func vertexFormat(attr common.VertexAttribute) (wgpu.VertexFormat, error) {
	typ := vertex_data.OutputType(attr)
	if attr.Size < 1 || attr.Size > 4 || typ.Size() == 0 {
		return 0, fmt.Errorf("unsupported vertex attribute %s x%d", attr.Type, attr.Size)
	}
	components := vertex_data.OutputStride(attr) / typ.Size()

	switch typ {
	case common.ElementTypeFloat:
		return [...]wgpu.VertexFormat{
			wgpu.VertexFormatFloat32,
			wgpu.VertexFormatFloat32x2,
			wgpu.VertexFormatFloat32x3,
			wgpu.VertexFormatFloat32x4,
		}[components-1], nil
	case common.ElementTypeUnsignedByte:
		if attr.Normalized {
			return wgpu.VertexFormatUnorm8x4, nil
		}
		return wgpu.VertexFormatUint8x4, nil
	case common.ElementTypeByte:
		if attr.Normalized {
			return wgpu.VertexFormatSnorm8x4, nil
		}
		return wgpu.VertexFormatSint8x4, nil
	case common.ElementTypeUnsignedShort:
		return pick16(components, attr.Normalized, wgpu.VertexFormatUnorm16x2, wgpu.VertexFormatUnorm16x4,
			wgpu.VertexFormatUint16x2, wgpu.VertexFormatUint16x4), nil
	case common.ElementTypeShort:
		return pick16(components, attr.Normalized, wgpu.VertexFormatSnorm16x2, wgpu.VertexFormatSnorm16x4,
			wgpu.VertexFormatSint16x2, wgpu.VertexFormatSint16x4), nil
	}
	return 0, fmt.Errorf("unsupported vertex attribute %s x%d", attr.Type, attr.Size)
}

func pick16(components uint64, normalized bool, norm2, norm4, int2, int4 wgpu.VertexFormat) wgpu.VertexFormat {
	switch {
	case normalized && components == 2:
		return norm2
	case normalized:
		return norm4
	case components == 2:
		return int2
	default:
		return int4
	}
}

// vertexBufferLayouts builds one single-attribute buffer layout per attribute, bound to shader location
// and vertex buffer slot i.
func vertexBufferLayouts(attributes []common.VertexAttribute) ([]wgpu.VertexBufferLayout, error) {
	layouts := make([]wgpu.VertexBufferLayout, len(attributes))
	for i, attr := range attributes {
		format, err := vertexFormat(attr)
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}
		layouts[i] = wgpu.VertexBufferLayout{
			ArrayStride: vertex_data.OutputStride(attr),
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{
					Format:         format,
					Offset:         0,
					ShaderLocation: uint32(i),
				},
			},
		}
	}
	return layouts, nil
}
