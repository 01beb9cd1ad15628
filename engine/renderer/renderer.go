// Package renderer draws translated vertex streams with WebGPU.
package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine/resource"
	"github.com/Carmen-Shannon/oxy-gles/engine/vertex_data"
	"github.com/Carmen-Shannon/oxy-gles/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// renderPipeline is a registered pipeline and the stream layout it was built for.
type renderPipeline struct {
	pipeline *wgpu.RenderPipeline
	strides  []uint64
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelines map[string]*renderPipeline
	bindings  streamBindings

	backendType RendererBackendType
	backend     RendererBackend
	device      resource.WGPUDevice
	logger      *zap.Logger

	width, height int

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	clearColor           [4]float64
}

// Renderer defines the interface for the rendering system.
//
// A frame is recorded as BeginFrame, any number of Draw calls, EndFrame and Present. Vertex data reaches
// the GPU through the resource.Device returned by Device, so buffers allocated by the vertex data layer
// can be bound directly by Draw.
type Renderer interface {
	// Device returns the resource device vertex buffers for this renderer must be created on.
	//
	// Returns:
	//   - resource.Device: the WebGPU-backed resource device
	Device() resource.Device

	// RegisterPipeline compiles a WGSL shader into a pipeline reading one vertex stream per attribute.
	// Stream i is bound to slot i and shader location i with the translated layout of attributes[i].
	// Registering an existing key is a no-op.
	//
	// Parameters:
	//   - key: the unique identifier for the pipeline
	//   - source: WGSL source declaring VertexEntryPoint and FragmentEntryPoint
	//   - attributes: the source layout of each attribute the pipeline reads
	//
	// Returns:
	//   - error: an error if an attribute has no WebGPU format or pipeline creation fails
	RegisterPipeline(key, source string, attributes []common.VertexAttribute) error

	// Resize updates the surface to match new window dimensions.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	Resize(width, height int)

	// SetPresentMode changes the present mode and reconfigures the surface at its current size.
	//
	// Parameters:
	//   - mode: the PresentMode to apply
	SetPresentMode(mode PresentMode)

	// BeginFrame acquires the next surface texture and starts the main render pass.
	//
	// Returns:
	//   - error: an error if the surface texture could not be acquired
	BeginFrame() error

	// Draw binds the translated streams of one draw and records a draw of vertexCount vertices.
	// Streams already bound at the same offset in this frame are not rebound.
	//
	// Parameters:
	//   - pipelineKey: the registered pipeline to draw with
	//   - streams: the translated attributes, in the order the pipeline was registered with
	//   - vertexCount: the number of vertices to draw
	//
	// Returns:
	//   - error: an error if the pipeline is unknown, the streams do not match its layout, or no frame is in progress
	Draw(pipelineKey string, streams []vertex_data.TranslatedAttribute, vertexCount int) error

	// EndFrame ends the render pass and submits the recorded commands.
	EndFrame()

	// Present presents the frame to the surface.
	Present()

	// Release frees every registered pipeline and the GPU device. Vertex buffers created on Device must be
	// released first.
	Release()
}

// Compile-time check that renderer implements Renderer
var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer for the given window.
//
// Parameters:
//   - backendType: the RendererBackendType to use
//   - win: the window whose surface is rendered to
//   - serials: the counter stamping buffers created on the renderer's resource device
//   - options: functional options to configure the Renderer
//
// Returns:
//   - Renderer: the new renderer
//   - error: an error if no adapter or device could be acquired
func NewRenderer(backendType RendererBackendType, win window.Window, serials *common.SerialCounter, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		pipelines:   make(map[string]*renderPipeline),
		backendType: backendType,
		logger:      zap.NewNop(),
		clearColor:  [4]float64{0.1, 0.1, 0.1, 1.0},
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	var err error
	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend, err = newWGPURendererBackend(win.SurfaceDescriptor(), r.forceFallbackAdapter)
	}
	if err != nil {
		return nil, err
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	r.backend.SetClearColor(wgpu.Color{R: r.clearColor[0], G: r.clearColor[1], B: r.clearColor[2], A: r.clearColor[3]})
	r.width, r.height = win.Width(), win.Height()
	r.backend.ConfigureSurface(r.width, r.height)

	r.device = resource.NewWGPUDevice(r.backend.Device(), r.backend.Queue(), serials,
		resource.WithLabel("Vertex Device"),
		resource.WithLogger(r.logger),
	)
	r.logger.Info("renderer initialized",
		zap.Int("width", win.Width()),
		zap.Int("height", win.Height()),
		zap.Bool("force_fallback_adapter", r.forceFallbackAdapter),
	)
	return r, nil
}

func (r *renderer) Device() resource.Device {
	return r.device
}

func (r *renderer) RegisterPipeline(key, source string, attributes []common.VertexAttribute) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pipelines[key]; exists {
		return nil
	}

	layouts, err := vertexBufferLayouts(attributes)
	if err != nil {
		return fmt.Errorf("pipeline %q: %w", key, err)
	}
	p, err := r.backend.CreateRenderPipeline(key, source, layouts)
	if err != nil {
		return fmt.Errorf("pipeline %q: %w", key, err)
	}

	strides := make([]uint64, len(layouts))
	for i, l := range layouts {
		strides[i] = l.ArrayStride
	}
	r.pipelines[key] = &renderPipeline{pipeline: p, strides: strides}
	r.logger.Debug("render pipeline registered", zap.String("key", key), zap.Int("streams", len(strides)))
	return nil
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	r.width, r.height = width, height
	r.mu.Unlock()
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	width, height := r.width, r.height
	r.mu.Unlock()
	r.backend.SetPresentMode(mode)
	r.backend.ConfigureSurface(width, height)
	r.logger.Info("present mode changed", zap.Stringer("mode", mode))
}

func (r *renderer) BeginFrame() error {
	r.mu.Lock()
	r.bindings.reset()
	r.mu.Unlock()
	return r.backend.BeginFrame()
}

func (r *renderer) Draw(pipelineKey string, streams []vertex_data.TranslatedAttribute, vertexCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pipelines[pipelineKey]
	if !ok {
		return fmt.Errorf("pipeline %q is not registered", pipelineKey)
	}
	if len(streams) != len(p.strides) {
		return fmt.Errorf("pipeline %q reads %d streams, got %d", pipelineKey, len(p.strides), len(streams))
	}
	if vertexCount <= 0 {
		return nil
	}

	natives := make([]*wgpu.Buffer, len(streams))
	for i, s := range streams {
		if s.Stride != p.strides[i] {
			return fmt.Errorf("stream %d has stride %d, pipeline %q expects %d", i, s.Stride, pipelineKey, p.strides[i])
		}
		native, err := resource.NativeBuffer(s.Buffer)
		if err != nil {
			return fmt.Errorf("stream %d: %w", i, err)
		}
		natives[i] = native
	}

	if r.bindings.usePipeline(pipelineKey) {
		if err := r.backend.SetPipeline(p.pipeline); err != nil {
			r.bindings.reset()
			return err
		}
	}
	for i, s := range streams {
		if !r.bindings.useStream(i, s.Buffer, s.Serial, s.Offset) {
			continue
		}
		if err := r.backend.SetVertexBuffer(uint32(i), natives[i], s.Offset); err != nil {
			r.bindings.reset()
			return err
		}
	}
	return r.backend.Draw(uint32(vertexCount))
}

func (r *renderer) EndFrame() {
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, p := range r.pipelines {
		if p.pipeline != nil {
			p.pipeline.Release()
		}
		delete(r.pipelines, key)
	}
	r.backend.Release()
	r.logger.Info("renderer released")
}
