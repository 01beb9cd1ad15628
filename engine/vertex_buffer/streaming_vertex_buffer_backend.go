package vertex_buffer

import (
	"github.com/Carmen-Shannon/oxy-gles/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gles/engine/resource"
	"go.uber.org/zap"
)

// reserveStreaming makes room for requiredSpace bytes at the write position.
//
// A requirement larger than the whole buffer reallocates it with geometric growth and a new serial.
// A requirement that fits the buffer but not the space left after the write position discards the
// contents and rewinds; the native buffer and serial are kept. Anything else needs no action.
func (vb *vertexBuffer) reserveStreaming() {
	switch {
	case vb.requiredSpace > vb.capacity:
		vb.releaseBuffer()
		vb.capacity = max(vb.requiredSpace, vb.capacity*vb.growthNumerator/vb.growthDenominator)
		vb.allocate(vb.capacity)
		vb.writePosition = 0

		vb.logger.Debug("grew streaming vertex buffer",
			zap.String("label", vb.label),
			zap.Uint64("capacity", vb.capacity),
			zap.Uint64("serial", uint64(vb.serial)),
		)

	case vb.writePosition+vb.requiredSpace > vb.capacity:
		vb.discard()
		vb.writePosition = 0
		vb.metrics.ObserveRecycle(vb.backendType.String())
	}
}

// discard tells the backend every byte written so far is stale, so rewinding to offset zero does not
// have to wait for the GPU to finish reading the previous contents.
func (vb *vertexBuffer) discard() {
	if vb.buffer == nil {
		return
	}
	if _, err := vb.buffer.Lock(0, 1, resource.LockHintDiscard); err != nil {
		vb.logger.Warn("discarding streaming vertex buffer failed",
			zap.String("label", vb.label),
			zap.Error(err),
		)
		vb.metrics.ObserveFailure(vb.backendType.String(), metrics.ErrorTypeLock)
		return
	}
	if err := vb.buffer.Unlock(); err != nil {
		vb.logger.Warn("unlocking discarded streaming vertex buffer failed",
			zap.String("label", vb.label),
			zap.Error(err),
		)
	}
}
