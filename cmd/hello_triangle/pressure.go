package main

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine/vertex_data"
	"go.uber.org/zap"
)

// warmPressureBuffers creates count static source buffers of size bytes and draws each once, so every
// one of them holds a static vertex buffer on the device before the triangle is uploaded.
func warmPressureBuffers(manager vertex_data.Manager, count int, size uint64, logger *zap.Logger) ([]vertex_data.SourceBuffer, error) {
	attr := common.VertexAttribute{Type: common.ElementTypeFloat, Size: 3}
	data := make([]byte, size)

	buffers := make([]vertex_data.SourceBuffer, 0, count)
	for i := range count {
		b := vertex_data.NewSourceBuffer(fmt.Sprintf("pressure %d", i), data, vertex_data.UsageStatic)
		buffers = append(buffers, b)
		if _, err := manager.Prepare([]vertex_data.AttributeBinding{{Attribute: attr, Buffer: b}}, 0, 1); err != nil {
			return buffers, fmt.Errorf("warming pressure buffer %d: %w", i, err)
		}
	}
	logger.Info("pressure buffers uploaded", zap.Int("count", count), zap.Uint64("size", size))
	return buffers, nil
}
