package vertex_data

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gles/engine/resource"
	"github.com/Carmen-Shannon/oxy-gles/engine/vertex_buffer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	position3 = common.VertexAttribute{Type: common.ElementTypeFloat, Size: 3}

	// interleaved layout: float3 position followed by ubyte4 color, 16 bytes per vertex
	interleavedPosition = common.VertexAttribute{Type: common.ElementTypeFloat, Size: 3, ExplicitStride: 16}
	interleavedColor    = common.VertexAttribute{Type: common.ElementTypeUnsignedByte, Size: 4, Normalized: true, Offset: 12, ExplicitStride: 16}
)

func newTestManager(t *testing.T, options ...ManagerBuilderOption) (Manager, resource.HostDevice) {
	t.Helper()
	device := resource.NewHostDevice(common.NewSerialCounter())
	options = append([]ManagerBuilderOption{WithStreamingBufferSize(256), WithConversionWorkers(2)}, options...)
	m := NewManager(device, options...)
	t.Cleanup(m.Release)
	return m, device
}

func hostBytes(t *testing.T, vb vertex_buffer.VertexBuffer) []byte {
	t.Helper()
	require.NotNil(t, vb.Buffer())
	return vb.Buffer().(resource.HostBuffer).Bytes()
}

func interleaved(vertices int) []byte {
	out := make([]byte, 0, vertices*16)
	for i := range vertices {
		f := float32(i)
		out = append(out, floatBytes(f, f+0.5, f*2)...)
		out = append(out, byte(i), byte(i+1), byte(i+2), 255)
	}
	return out
}

func TestPrepareStreamsClientMemory(t *testing.T) {
	m, _ := newTestManager(t)
	positions := floatBytes(0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3)
	colors := []byte{10, 11, 12, 13, 20, 21, 22, 23, 30, 31, 32, 33, 40, 41, 42, 43}
	color := common.VertexAttribute{Type: common.ElementTypeUnsignedByte, Size: 4, Normalized: true}

	translated, err := m.Prepare([]AttributeBinding{
		{Attribute: position3, Client: positions},
		{Attribute: color, Client: colors},
	}, 1, 2)
	require.NoError(t, err)
	require.Len(t, translated, 2)

	streaming := m.StreamingBuffer()
	assert.Equal(t, TranslatedAttribute{
		Buffer: streaming.Buffer(),
		Serial: streaming.Serial(),
		Offset: 0,
		Stride: 12,
		Type:   common.ElementTypeFloat,
		Size:   3,
	}, translated[0])
	assert.Equal(t, uint64(24), translated[1].Offset)
	assert.Equal(t, uint64(4), translated[1].Stride)
	assert.True(t, translated[1].Normalized)

	data := hostBytes(t, streaming)
	assert.Equal(t, floatBytes(1, 1, 1, 2, 2, 2), data[0:24])
	assert.Equal(t, []byte{20, 21, 22, 23, 30, 31, 32, 33}, data[24:32])
	assert.Equal(t, uint64(32), streaming.WritePosition())
}

func TestPrepareConvertsFixed(t *testing.T) {
	m, _ := newTestManager(t)
	attr := common.VertexAttribute{Type: common.ElementTypeFixed, Size: 2}

	translated, err := m.Prepare([]AttributeBinding{
		{Attribute: attr, Client: fixedBytes(0.5, 1, -1, 4)},
	}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, common.ElementTypeFloat, translated[0].Type)
	assert.Equal(t, uint64(8), translated[0].Stride)
	assert.Equal(t, floatBytes(0.5, 1, -1, 4), hostBytes(t, m.StreamingBuffer())[:16])
}

func TestPrepareStaticSourceConvertsOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	mt := metrics.NewMetrics(reg)
	m, device := newTestManager(t, WithMetrics(mt))
	src := NewSourceBuffer("positions", floatBytes(0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3), UsageStatic)
	t.Cleanup(src.Release)
	bindings := []AttributeBinding{{Attribute: position3, Buffer: src}}

	first, err := m.Prepare(bindings, 1, 2)
	require.NoError(t, err)

	static := src.StaticVertexBuffer()
	require.NotNil(t, static)
	assert.Equal(t, uint64(48), static.Capacity(), "whole source converted")
	assert.Equal(t, static.Buffer(), first[0].Buffer)
	assert.Equal(t, static.Serial(), first[0].Serial)
	assert.Equal(t, uint64(12), first[0].Offset, "offset of vertex 1")
	assert.Equal(t, floatBytes(0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3), hostBytes(t, static))
	assert.Zero(t, m.StreamingBuffer().WritePosition())

	locks := device.Stats().Locks
	second, err := m.Prepare(bindings, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, locks, device.Stats().Locks, "cached stream is not uploaded again")
	assert.Equal(t, uint64(0), second[0].Offset)
	assert.Equal(t, first[0].Buffer, second[0].Buffer)
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.Allocations.WithLabelValues("static")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.CacheLookups.WithLabelValues("hit")))
}

func TestPrepareStaticSourceOffsetsByVertex(t *testing.T) {
	m, _ := newTestManager(t)
	src := NewSourceBuffer("mesh", interleaved(3), UsageStatic)
	t.Cleanup(src.Release)

	shifted := interleavedPosition
	shifted.Offset = 16

	translated, err := m.Prepare([]AttributeBinding{{Attribute: shifted, Buffer: src}}, 0, 2)
	require.NoError(t, err)

	static := src.StaticVertexBuffer()
	require.NotNil(t, static)
	assert.Equal(t, uint64(36), static.Capacity(), "every position in the source")
	assert.Equal(t, uint64(12), translated[0].Offset, "the attribute starts one vertex in")

	// A binding of the same field from vertex zero reuses the stream.
	translated, err = m.Prepare([]AttributeBinding{{Attribute: interleavedPosition, Buffer: src}}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(24), translated[0].Offset)
	assert.Len(t, static.Elements(), 1)
}

func TestPrepareStaticMissFallsBackToStreaming(t *testing.T) {
	reg := prometheus.NewRegistry()
	mt := metrics.NewMetrics(reg)
	m, device := newTestManager(t, WithMetrics(mt))
	src := NewSourceBuffer("mesh", interleaved(3), UsageStatic)
	t.Cleanup(src.Release)

	_, err := m.Prepare([]AttributeBinding{{Attribute: interleavedPosition, Buffer: src}}, 0, 3)
	require.NoError(t, err)
	require.NotNil(t, src.StaticVertexBuffer())

	translated, err := m.Prepare([]AttributeBinding{
		{Attribute: interleavedPosition, Buffer: src},
		{Attribute: interleavedColor, Buffer: src},
	}, 0, 3)
	require.NoError(t, err)

	assert.Nil(t, src.StaticVertexBuffer())
	assert.Equal(t, 1, device.Stats().Live(), "only the streaming buffer remains")
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.StaticFallback))

	streaming := m.StreamingBuffer()
	for _, ta := range translated {
		assert.Equal(t, streaming.Buffer(), ta.Buffer)
		assert.Equal(t, streaming.Serial(), ta.Serial)
	}
	assert.Equal(t, uint64(0), translated[0].Offset)
	assert.Equal(t, uint64(36), translated[1].Offset)

	data := hostBytes(t, streaming)
	assert.Equal(t, floatBytes(0, 0.5, 0, 1, 1.5, 2, 2, 2.5, 4), data[0:36])
	assert.Equal(t, []byte{0, 1, 2, 255, 1, 2, 3, 255, 2, 3, 4, 255}, data[36:48])

	// The invalidated source keeps streaming.
	_, err = m.Prepare([]AttributeBinding{{Attribute: interleavedPosition, Buffer: src}}, 0, 3)
	require.NoError(t, err)
	assert.Nil(t, src.StaticVertexBuffer())
}

func TestPrepareSetDataRestartsStaticConversion(t *testing.T) {
	m, _ := newTestManager(t)
	src := NewSourceBuffer("positions", floatBytes(1, 2, 3), UsageStatic)
	t.Cleanup(src.Release)
	bindings := []AttributeBinding{{Attribute: position3, Buffer: src}}

	_, err := m.Prepare(bindings, 0, 1)
	require.NoError(t, err)
	before := src.StaticVertexBuffer().Serial()

	src.SetData(floatBytes(4, 5, 6), UsageStatic)
	translated, err := m.Prepare(bindings, 0, 1)
	require.NoError(t, err)

	static := src.StaticVertexBuffer()
	require.NotNil(t, static)
	assert.NotEqual(t, before, static.Serial())
	assert.Equal(t, static.Serial(), translated[0].Serial)
	assert.Equal(t, floatBytes(4, 5, 6), hostBytes(t, static))
}

func TestPrepareStaticSourceRangeChecked(t *testing.T) {
	m, device := newTestManager(t)
	src := NewSourceBuffer("positions", floatBytes(0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3), UsageStatic)
	t.Cleanup(src.Release)
	bindings := []AttributeBinding{{Attribute: position3, Buffer: src}}

	_, err := m.Prepare(bindings, 2, 10)
	assert.ErrorIs(t, err, ErrSourceOutOfRange)
	static := src.StaticVertexBuffer()
	require.NotNil(t, static)
	assert.Nil(t, static.Buffer(), "nothing reserved for a rejected draw")
	assert.Zero(t, static.Capacity())
	assert.Zero(t, m.StreamingBuffer().WritePosition())

	_, err = m.Prepare(bindings, 0, 4)
	require.NoError(t, err)
	require.NotNil(t, static.Buffer())

	locks := device.Stats().Locks
	_, err = m.Prepare(bindings, 2, 3)
	assert.ErrorIs(t, err, ErrSourceOutOfRange, "cached streams are checked too")
	assert.Equal(t, locks, device.Stats().Locks)
	assert.Same(t, static, src.StaticVertexBuffer())
}

func TestPrepareFailedConversionKeepsStaticSource(t *testing.T) {
	m, _ := newTestManager(t)
	src := NewSourceBuffer("positions", floatBytes(0, 0, 0, 1, 1, 1, 2, 2, 2), UsageStatic)
	t.Cleanup(src.Release)
	color := common.VertexAttribute{Type: common.ElementTypeUnsignedByte, Size: 4, Normalized: true}

	_, err := m.Prepare([]AttributeBinding{
		{Attribute: position3, Buffer: src},
		{Attribute: color, Client: []byte{1, 2, 3, 4}},
	}, 0, 3)
	assert.ErrorIs(t, err, ErrSourceOutOfRange)
	static := src.StaticVertexBuffer()
	require.NotNil(t, static)
	assert.Nil(t, static.Buffer())
	assert.Zero(t, static.RequiredSpace())
	assert.Zero(t, m.StreamingBuffer().RequiredSpace())

	translated, err := m.Prepare([]AttributeBinding{{Attribute: position3, Buffer: src}}, 0, 3)
	require.NoError(t, err)
	require.Same(t, static, src.StaticVertexBuffer())
	assert.Equal(t, static.Buffer(), translated[0].Buffer)
	assert.Len(t, static.Elements(), 1)
}

func TestPrepareStaticOutOfMemoryFallsBackToStreaming(t *testing.T) {
	device := resource.NewHostDevice(common.NewSerialCounter(), resource.WithCreateFilter(func(_ uint64, usage resource.UsageHint) error {
		if usage == resource.UsageHintWriteOnly {
			return errors.New("simulated")
		}
		return nil
	}))
	m := NewManager(device, WithStreamingBufferSize(64), WithConversionWorkers(1))
	t.Cleanup(m.Release)
	src := NewSourceBuffer("positions", floatBytes(1, 2, 3, 4, 5, 6), UsageStatic)
	t.Cleanup(src.Release)
	bindings := []AttributeBinding{{Attribute: position3, Buffer: src}}

	_, err := m.Prepare(bindings, 0, 2)
	assert.ErrorIs(t, err, vertex_buffer.ErrBufferUnavailable)
	static := src.StaticVertexBuffer()
	require.NotNil(t, static)
	assert.Nil(t, static.Buffer())
	assert.Equal(t, uint64(24), static.Capacity(), "out of memory is not retried")

	var translated []TranslatedAttribute
	require.NotPanics(t, func() { translated, err = m.Prepare(bindings, 0, 2) })
	require.NoError(t, err)
	assert.Nil(t, src.StaticVertexBuffer())
	assert.Equal(t, m.StreamingBuffer().Buffer(), translated[0].Buffer)
	assert.Equal(t, 1, device.Stats().Created)
}

func TestPrepareRoutesDynamicSourcesThenPromotes(t *testing.T) {
	m, _ := newTestManager(t)
	src := NewSourceBuffer("positions", floatBytes(0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3), UsageDynamic)
	t.Cleanup(src.Release)
	bindings := []AttributeBinding{{Attribute: position3, Buffer: src}}

	for range 4 {
		translated, err := m.Prepare(bindings, 0, 4)
		require.NoError(t, err)
		assert.Equal(t, m.StreamingBuffer().Buffer(), translated[0].Buffer)
		assert.Nil(t, src.StaticVertexBuffer())
	}

	translated, err := m.Prepare(bindings, 0, 4)
	require.NoError(t, err)
	static := src.StaticVertexBuffer()
	require.NotNil(t, static, "streamed unmodified more than three times its size")
	assert.Equal(t, static.Buffer(), translated[0].Buffer)
}

func TestPrepareStreamingGrowth(t *testing.T) {
	m, _ := newTestManager(t, WithStreamingBufferSize(16))
	serial := m.StreamingBuffer().Serial()

	translated, err := m.Prepare([]AttributeBinding{
		{Attribute: position3, Client: floatBytes(1, 2, 3, 4, 5, 6)},
	}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(24), m.StreamingBuffer().Capacity())
	assert.NotEqual(t, serial, translated[0].Serial)
	assert.Equal(t, m.StreamingBuffer().Serial(), translated[0].Serial)
}

func TestPrepareErrors(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Prepare([]AttributeBinding{{Attribute: position3, Client: floatBytes(1, 2, 3)}}, 0, 2)
	assert.ErrorIs(t, err, ErrSourceOutOfRange)

	_, err = m.Prepare([]AttributeBinding{{Attribute: common.VertexAttribute{}, Client: []byte{1}}}, 0, 1)
	assert.Error(t, err)

	_, err = m.Prepare([]AttributeBinding{{Attribute: position3, Client: floatBytes(1, 2, 3)}}, -1, 1)
	assert.Error(t, err)

	translated, err := m.Prepare([]AttributeBinding{{Attribute: position3, Client: floatBytes(1, 2, 3)}}, 0, 0)
	assert.NoError(t, err)
	assert.Empty(t, translated)
}

func TestPrepareStreamingOutOfMemory(t *testing.T) {
	device := resource.NewHostDevice(common.NewSerialCounter(), resource.WithCreateFilter(func(uint64, resource.UsageHint) error {
		return errors.New("simulated")
	}))
	m := NewManager(device, WithStreamingBufferSize(64), WithConversionWorkers(1))
	t.Cleanup(m.Release)

	_, err := m.Prepare([]AttributeBinding{{Attribute: position3, Client: floatBytes(1, 2, 3)}}, 0, 1)
	assert.ErrorIs(t, err, vertex_buffer.ErrBufferUnavailable)
}

func TestManagerSharesSerialCounter(t *testing.T) {
	serials := common.NewSerialCounter()
	m, _ := newTestManager(t, WithSerialCounter(serials))
	src := NewSourceBuffer("positions", floatBytes(1, 2, 3), UsageStatic)
	t.Cleanup(src.Release)

	_, err := m.Prepare([]AttributeBinding{{Attribute: position3, Buffer: src}}, 0, 1)
	require.NoError(t, err)

	assert.Equal(t, common.Serial(1), m.StreamingBuffer().Serial())
	assert.Equal(t, common.Serial(2), src.StaticVertexBuffer().Serial())
	assert.Equal(t, common.Serial(3), serials.Peek())
}

func TestNewManagerRequiresDevice(t *testing.T) {
	assert.Panics(t, func() { NewManager(nil) })
}
