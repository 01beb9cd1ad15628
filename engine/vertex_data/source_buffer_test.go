package vertex_data

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine/resource"
	"github.com/Carmen-Shannon/oxy-gles/engine/vertex_buffer"
	"github.com/stretchr/testify/assert"
)

func attachStatic(t *testing.T, b SourceBuffer, device resource.HostDevice) vertex_buffer.VertexBuffer {
	t.Helper()
	sb := vertex_buffer.NewStaticVertexBuffer(device, common.NewSerialCounter())
	sb.AddRequiredSpace(b.Size())
	sb.ReserveRequiredSpace()
	b.(*sourceBuffer).staticBuffer = sb
	return sb
}

func TestSourceBufferCopiesData(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	b := NewSourceBuffer("positions", data, UsageStatic)
	data[0] = 9

	assert.Equal(t, []byte{1, 2, 3, 4}, b.Data())
	assert.Equal(t, uint64(4), b.Size())
	assert.Equal(t, UsageStatic, b.Usage())
	assert.Equal(t, "positions", b.Label())
	assert.Nil(t, b.StaticVertexBuffer())
	assert.True(t, b.(*sourceBuffer).wantsStatic)
}

func TestSetDataReleasesStaticBuffer(t *testing.T) {
	device := resource.NewHostDevice(common.NewSerialCounter())
	b := NewSourceBuffer("positions", make([]byte, 16), UsageStatic)
	attachStatic(t, b, device)
	assert.Equal(t, 1, device.Stats().Live())

	b.SetData(make([]byte, 32), UsageDynamic)
	assert.Nil(t, b.StaticVertexBuffer())
	assert.Zero(t, device.Stats().Live())
	assert.False(t, b.(*sourceBuffer).wantsStatic)
	assert.Equal(t, UsageDynamic, b.Usage())
}

func TestSetSubData(t *testing.T) {
	device := resource.NewHostDevice(common.NewSerialCounter())
	b := NewSourceBuffer("positions", make([]byte, 8), UsageStatic)
	attachStatic(t, b, device)

	assert.False(t, b.SetSubData(6, []byte{1, 2, 3}))
	assert.NotNil(t, b.StaticVertexBuffer(), "rejected writes keep the static copy")

	assert.True(t, b.SetSubData(6, []byte{1, 2}))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 2}, b.Data())
	assert.Nil(t, b.StaticVertexBuffer())
	assert.Zero(t, device.Stats().Live())
}

func TestInvalidateStaticData(t *testing.T) {
	device := resource.NewHostDevice(common.NewSerialCounter())
	b := NewSourceBuffer("positions", make([]byte, 16), UsageStatic)
	attachStatic(t, b, device)

	b.InvalidateStaticData()
	assert.Nil(t, b.StaticVertexBuffer())
	assert.False(t, b.(*sourceBuffer).wantsStatic)
	assert.Zero(t, device.Stats().Live())

	b.Release()
}

func TestPromoteStaticUsage(t *testing.T) {
	b := NewSourceBuffer("positions", make([]byte, 10), UsageDynamic).(*sourceBuffer)

	b.promoteStaticUsage(20)
	b.promoteStaticUsage(10)
	assert.False(t, b.wantsStatic, "30 bytes is not more than three times the size")

	b.promoteStaticUsage(1)
	assert.True(t, b.wantsStatic)

	b.SetData(make([]byte, 10), UsageDynamic)
	assert.False(t, b.wantsStatic)
	assert.Zero(t, b.unmodifiedUse)
}
