package main

import (
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine/resource"
	"github.com/Carmen-Shannon/oxy-gles/engine/vertex_data"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHostManager(t *testing.T) (vertex_data.Manager, resource.HostDevice) {
	t.Helper()
	device := resource.NewHostDevice(common.NewSerialCounter())
	m := vertex_data.NewManager(device, vertex_data.WithStreamingBufferSize(256), vertex_data.WithConversionWorkers(1))
	t.Cleanup(m.Release)
	return m, device
}

func positionsOf(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math32.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func TestTriangleUpdate(t *testing.T) {
	m, _ := newHostManager(t)
	tri := newTriangle(m, 1)
	defer tri.release()

	tri.update(0)
	assert.Equal(t, []float32{0, 0.5, -0.5, -0.5, 0.5, -0.5}, positionsOf(tri.positions))

	tri.setAspect(200, 100)
	tri.update(0)
	assert.Equal(t, []float32{0, 0.5, -0.25, -0.5, 0.25, -0.5}, positionsOf(tri.positions))

	tri.setAspect(0, 100)
	assert.Equal(t, float32(2), tri.aspect, "empty framebuffers keep the last aspect")

	tri.setAspect(100, 100)
	tri.update(twoPi / 4)
	got := positionsOf(tri.positions)
	assert.InDelta(t, -0.5, got[0], 1e-6)
	assert.InDelta(t, 0, got[1], 1e-6)

	tri.update(twoPi)
	assert.InDelta(t, twoPi/4, tri.angle, 1e-5, "the angle wraps")
}

func TestTriangleStreamsPositionsAndCachesColors(t *testing.T) {
	m, device := newHostManager(t)
	tri := newTriangle(m, 0)
	defer tri.release()

	tri.update(0)
	streams, err := tri.prepare()
	require.NoError(t, err)
	require.Len(t, streams, 2)

	assert.Equal(t, uint64(8), streams[0].Stride)
	assert.Equal(t, m.StreamingBuffer().Serial(), streams[0].Serial)
	assert.Equal(t, tri.positions, streams[0].Buffer.(resource.HostBuffer).Bytes()[:24])

	static := tri.colors.StaticVertexBuffer()
	require.NotNil(t, static)
	assert.Equal(t, static.Serial(), streams[1].Serial)
	assert.Equal(t, uint64(4), streams[1].Stride)
	assert.Equal(t, triangleColors, streams[1].Buffer.(resource.HostBuffer).Bytes()[streams[1].Offset:streams[1].Offset+12])

	created := device.Stats().Created
	streams, err = tri.prepare()
	require.NoError(t, err)
	assert.Equal(t, created, device.Stats().Created, "colors are uploaded once")
	assert.Equal(t, static.Serial(), streams[1].Serial)
}

func TestWarmPressureBuffers(t *testing.T) {
	m, device := newHostManager(t)

	buffers, err := warmPressureBuffers(m, 3, 1200, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, buffers, 3)
	for _, b := range buffers {
		require.NotNil(t, b.StaticVertexBuffer())
		assert.Equal(t, uint64(1200), b.StaticVertexBuffer().Capacity())
	}
	assert.Equal(t, 4, device.Stats().Live(), "three static buffers and the streaming buffer")

	for _, b := range buffers {
		b.Release()
	}
	assert.Equal(t, 1, device.Stats().Live())
}

func TestWarmPressureBuffersReportsFailures(t *testing.T) {
	device := resource.NewHostDevice(common.NewSerialCounter(),
		resource.WithCreateFilter(func(size uint64, _ resource.UsageHint) error {
			if size > 1000 {
				return resource.ErrOutOfMemory
			}
			return nil
		}),
	)
	m := vertex_data.NewManager(device, vertex_data.WithStreamingBufferSize(256))
	defer m.Release()

	buffers, err := warmPressureBuffers(m, 2, 1200, zap.NewNop())
	assert.Error(t, err)
	assert.Len(t, buffers, 1, "buffers created before the failure are returned for release")
}

func TestSerialScopesAreIndependent(t *testing.T) {
	serials := newSerialScopes()
	require.NotSame(t, serials.buffers, serials.vertexBuffers)

	device := resource.NewHostDevice(serials.buffers)
	m := vertex_data.NewManager(device,
		vertex_data.WithSerialCounter(serials.vertexBuffers),
		vertex_data.WithStreamingBufferSize(64),
		vertex_data.WithConversionWorkers(1),
	)
	t.Cleanup(m.Release)

	streaming := m.StreamingBuffer()
	assert.Equal(t, common.Serial(1), streaming.Serial())
	assert.Equal(t, common.Serial(1), streaming.Buffer().Serial())
	assert.Equal(t, common.Serial(2), serials.vertexBuffers.Peek())
	assert.Equal(t, common.Serial(2), serials.buffers.Peek())

	serials.vertexBuffers.Issue()
	assert.Equal(t, common.Serial(2), serials.buffers.Peek())
}
