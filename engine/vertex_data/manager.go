package vertex_data

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gles/engine/resource"
	"github.com/Carmen-Shannon/oxy-gles/engine/vertex_buffer"
	"go.uber.org/zap"
)

// route is where one binding's stream is read from during a draw.
type route int

const (
	// routeStreaming converts the draw's vertex range into the shared streaming buffer.
	routeStreaming route = iota
	// routeStatic converts the whole source into its static buffer on the first draw.
	routeStatic
	// routeCached reuses a stream already present in the source's static buffer.
	routeCached
)

// upload tracks one binding through a Prepare call.
type upload struct {
	binding AttributeBinding
	source  *sourceBuffer
	route   route
	target  vertex_buffer.VertexBuffer

	cachedOffset uint64
	firstByte    uint64
	elements     uint64
	staging      []byte
	err          error
}

// manager is the implementation of the Manager interface.
type manager struct {
	device  resource.Device
	serials *common.SerialCounter
	logger  *zap.Logger
	metrics *metrics.Metrics

	streamingSize    uint64
	streamingOptions []vertex_buffer.VertexBufferBuilderOption
	streaming        vertex_buffer.VertexBuffer

	// pool converts attribute data in parallel. Maps and unmaps stay on the calling goroutine.
	pool    worker.DynamicWorkerPool
	workers int
}

// Manager prepares the vertex attributes of each draw.
type Manager interface {
	// Prepare uploads whatever the draw of count vertices starting at start needs and returns one
	// TranslatedAttribute per binding, in binding order. Static sources are converted whole on their
	// first draw and reused afterwards; a static source drawn with a layout its static buffer does not
	// hold is invalidated and streamed. The returned streams begin at vertex start, so the draw itself
	// is issued from vertex zero.
	//
	// Parameters:
	//   - bindings: the enabled attributes of the draw
	//   - start: the first vertex of the draw
	//   - count: the number of vertices drawn
	//
	// Returns:
	//   - []TranslatedAttribute: where each attribute landed
	//   - error: an error if a source is too short or a vertex buffer could not be allocated or mapped
	Prepare(bindings []AttributeBinding, start, count int) ([]TranslatedAttribute, error)

	// StreamingBuffer returns the shared streaming buffer.
	//
	// Returns:
	//   - vertex_buffer.VertexBuffer: the streaming buffer
	StreamingBuffer() vertex_buffer.VertexBuffer

	// Release frees the streaming buffer and stops the conversion workers. Static buffers belong to
	// their SourceBuffers and are released with them.
	Release()
}

// Compile-time check that manager implements Manager
var _ Manager = &manager{}

// NewManager creates a Manager that allocates vertex buffers on device. Panics if device is nil.
//
// Parameters:
//   - device: the device vertex buffers are created on
//   - options: functional options to configure the manager
//
// Returns:
//   - Manager: the new manager
func NewManager(device resource.Device, options ...ManagerBuilderOption) Manager {
	if device == nil {
		panic("vertex_data: NewManager requires a non-nil resource.Device")
	}

	m := &manager{
		device:        device,
		serials:       common.NewSerialCounter(),
		logger:        zap.NewNop(),
		streamingSize: DefaultStreamingBufferSize,
		workers:       max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range options {
		opt(m)
	}

	streamingOptions := append([]vertex_buffer.VertexBufferBuilderOption{
		vertex_buffer.WithLabel("streaming vertex data"),
		vertex_buffer.WithLogger(m.logger),
		vertex_buffer.WithMetrics(m.metrics),
	}, m.streamingOptions...)
	m.streaming = vertex_buffer.NewStreamingVertexBuffer(device, m.serials, m.streamingSize, streamingOptions...)
	m.pool = worker.NewDynamicWorkerPool(m.workers, 256, 1*time.Second)
	return m
}

func (m *manager) StreamingBuffer() vertex_buffer.VertexBuffer {
	return m.streaming
}

func (m *manager) Release() {
	if m.streaming != nil {
		m.streaming.Release()
		m.streaming = nil
	}
	if m.pool != nil {
		m.pool.Stop()
		m.pool = nil
	}
}

func (m *manager) Prepare(bindings []AttributeBinding, start, count int) ([]TranslatedAttribute, error) {
	if start < 0 {
		return nil, fmt.Errorf("vertex_data: negative first vertex %d", start)
	}
	if count <= 0 || len(bindings) == 0 {
		return nil, nil
	}
	first, n := uint64(start), uint64(count)

	for i, b := range bindings {
		if b.Attribute.Stride() == 0 {
			return nil, fmt.Errorf("vertex_data: attribute %d has an empty layout", i)
		}
	}

	uploads := make([]upload, len(bindings))
	for i, b := range bindings {
		uploads[i] = upload{binding: b}
		if src, ok := b.Buffer.(*sourceBuffer); ok {
			uploads[i].source = src
		}
		m.route(uploads, i, n)
	}
	for i := range uploads {
		if err := checkStaticRange(&uploads[i], first, n); err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}
	}

	// Conversion runs before any reservation so a failed draw leaves every vertex buffer untouched.
	if err := m.convert(uploads, first, n); err != nil {
		return nil, err
	}

	var statics []vertex_buffer.VertexBuffer
	for i := range uploads {
		u := &uploads[i]
		switch u.route {
		case routeStreaming:
			m.streaming.AddRequiredSpace(spaceRequired(u.binding.Attribute, u.elements))
		case routeStatic:
			u.target.AddRequiredSpace(spaceRequired(u.binding.Attribute, u.elements))
			if !slices.Contains(statics, u.target) {
				statics = append(statics, u.target)
			}
		}
	}
	m.streaming.ReserveRequiredSpace()
	for _, sb := range statics {
		sb.ReserveRequiredSpace()
	}

	translated := make([]TranslatedAttribute, len(uploads))
	// Static streams are written first so a streaming failure cannot leave a reserved static buffer empty.
	for _, pass := range []route{routeStatic, routeStreaming, routeCached} {
		for i := range uploads {
			if uploads[i].route != pass {
				continue
			}
			ta, err := m.translate(&uploads[i], first)
			if err != nil {
				return nil, err
			}
			translated[i] = ta
		}
	}

	for i := range uploads {
		if u := &uploads[i]; u.route == routeStreaming && u.source != nil {
			u.source.promoteStaticUsage(spaceRequired(u.binding.Attribute, n))
		}
	}
	return translated, nil
}

// translate writes the converted stream of u, if it has one, and describes where the draw reads it.
func (m *manager) translate(u *upload, first uint64) (TranslatedAttribute, error) {
	attr := u.binding.Attribute
	outStride := OutputStride(attr)

	var vb vertex_buffer.VertexBuffer
	var offset uint64
	switch u.route {
	case routeStreaming:
		vb = m.streaming
		off, err := m.write(vb, attr, u.staging)
		if err != nil {
			return TranslatedAttribute{}, err
		}
		offset = off
	case routeStatic:
		vb = u.target
		off, ok := vb.LookupAttribute(attr)
		if !ok {
			var err error
			if off, err = m.write(vb, attr, u.staging); err != nil {
				return TranslatedAttribute{}, err
			}
		}
		offset = off + (attr.Offset/attr.Stride()+first)*outStride
	case routeCached:
		vb = u.target
		offset = u.cachedOffset + (attr.Offset/attr.Stride()+first)*outStride
	}

	return TranslatedAttribute{
		Buffer:     vb.Buffer(),
		Serial:     vb.Serial(),
		Offset:     offset,
		Stride:     outStride,
		Type:       OutputType(attr),
		Size:       attr.Size,
		Normalized: attr.Normalized,
	}, nil
}

// checkStaticRange rejects a draw that reads past the last element converted into a static buffer.
// Streamed uploads are checked by convertAttribute against the source itself.
func checkStaticRange(u *upload, first, n uint64) error {
	if u.route != routeStatic && u.route != routeCached {
		return nil
	}
	attr := u.binding.Attribute
	available := elementsInSource(attr, attr.LayoutOffset(), u.source.Size())
	needed := attr.Offset/attr.Stride() + first + n
	if needed > available {
		return fmt.Errorf("%w: vertices up to %d of %s, have %d", ErrSourceOutOfRange, needed, u.source.Label(), available)
	}
	return nil
}

// route decides where uploads[i] is read from. A static miss invalidates the source and moves every
// earlier binding of the same source to streaming. A static buffer whose allocation failed misses too.
func (m *manager) route(uploads []upload, i int, n uint64) {
	u := &uploads[i]
	attr := u.binding.Attribute
	sb := m.staticBufferFor(u.source)

	switch {
	case sb == nil:
		m.routeStreaming(u, n)
		return

	case sb.Buffer() == nil && sb.Capacity() == 0:
		u.route = routeStatic
		u.target = sb
		u.firstByte = attr.LayoutOffset()
		u.elements = elementsInSource(attr, u.firstByte, u.source.Size())
		return
	}

	if offset, ok := sb.LookupAttribute(attr); ok {
		u.route = routeCached
		u.target = sb
		u.cachedOffset = offset
		return
	}

	for j := range uploads[:i] {
		if prev := &uploads[j]; prev.source == u.source && prev.route != routeStreaming {
			m.routeStreaming(prev, n)
		}
	}
	m.routeStreaming(u, n)
	u.source.InvalidateStaticData()
	m.metrics.ObserveStaticFallback()
	m.logger.Debug("static vertex data invalidated by an uncached attribute layout",
		zap.String("source", u.source.Label()),
		zap.Stringer("type", attr.Type),
		zap.Int("size", attr.Size),
		zap.Uint64("stride", attr.Stride()),
	)
}

func (m *manager) routeStreaming(u *upload, n uint64) {
	u.route = routeStreaming
	u.target = nil
	u.elements = n
}

// staticBufferFor returns the static buffer of src, creating it if src allows static routing.
func (m *manager) staticBufferFor(src *sourceBuffer) vertex_buffer.VertexBuffer {
	if src == nil {
		return nil
	}
	if src.staticBuffer == nil && src.wantsStatic {
		src.staticBuffer = vertex_buffer.NewStaticVertexBuffer(m.device, m.serials,
			vertex_buffer.WithLabel(src.label+" static vertex data"),
			vertex_buffer.WithLogger(m.logger),
			vertex_buffer.WithMetrics(m.metrics),
		)
	}
	return src.staticBuffer
}

// convert fills the staging bytes of every upload that must be written, in parallel on the pool.
// A WaitGroup provides the barrier since pool.Wait only returns once workers have exited.
func (m *manager) convert(uploads []upload, first, n uint64) error {
	var wg sync.WaitGroup
	for i := range uploads {
		u := &uploads[i]
		if u.route == routeCached {
			continue
		}
		attr := u.binding.Attribute
		if u.route == routeStreaming {
			u.firstByte = attr.Offset + first*attr.Stride()
		}
		u.staging = make([]byte, spaceRequired(attr, u.elements))
		src := u.binding.source()

		wg.Add(1)
		m.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				u.err = convertAttribute(u.staging, src, attr, u.firstByte, u.elements)
				return nil, u.err
			},
		})
	}
	wg.Wait()

	var errs []error
	for i := range uploads {
		if uploads[i].err != nil {
			errs = append(errs, fmt.Errorf("attribute %d: %w", i, uploads[i].err))
		}
	}
	return errors.Join(errs...)
}

// write copies staging into vb and returns the offset it landed at.
func (m *manager) write(vb vertex_buffer.VertexBuffer, attr common.VertexAttribute, staging []byte) (uint64, error) {
	data, offset, err := vb.Map(attr, uint64(len(staging)))
	if err != nil {
		return 0, fmt.Errorf("writing %s attribute to %s: %w", attr.Type, vb.Label(), err)
	}
	copy(data, staging)
	if err := vb.Unmap(); err != nil {
		return 0, err
	}
	return offset, nil
}
