// Package window opens the platform window the demo renders into and exposes its WebGPU surface descriptor.
package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// Window provides a platform window with a WebGPU-compatible surface.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyCallback sets the function called on key presses. Escape always closes the window.
	//
	// Parameters:
	//   - callback: function receiving the GLFW key code
	SetKeyCallback(callback func(key int))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor for the platform window, created by the
	// wgpuglfw bridge.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the surface descriptor, or nil if the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	//
	// Returns:
	//   - bool: true until the window is closed
	IsRunning() bool

	// Close destroys the window and releases platform resources.
	//
	// Returns:
	//   - error: an error if the window was never opened
	Close() error

	// ProcessMessages runs the event loop on the calling goroutine until the window closes,
	// calling the update callback every iteration.
	ProcessMessages()

	// Width returns the framebuffer width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the framebuffer height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int
}

// platformWindow is the implementation of the Window interface.
type platformWindow struct {
	title  string
	width  int
	height int

	minWidth, minHeight int
	maxWidth, maxHeight int

	logger *zap.Logger

	// native is nil until the platform window is created and after Close.
	native *glfwWindow

	onUpdate func()
	onResize func(width, height int)
	onKey    func(key int)
}

var _ Window = &platformWindow{}

// NewWindow opens a platform window. It must be called from the main goroutine, which then owns the
// window's event loop.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: an error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &platformWindow{
		title:     "oxy-gles",
		width:     1280,
		height:    720,
		minWidth:  320,
		minHeight: 200,
		logger:    zap.NewNop(),
	}
	for _, opt := range options {
		opt(w)
	}
	if err := openPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	w.logger.Info("window opened",
		zap.String("title", w.title),
		zap.Int("width", w.width),
		zap.Int("height", w.height),
	)
	return w, nil
}

func (w *platformWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *platformWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *platformWindow) SetKeyCallback(callback func(key int)) {
	w.onKey = callback
}

func (w *platformWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.native == nil {
		return nil
	}
	return w.native.surfaceDescriptor()
}

func (w *platformWindow) IsRunning() bool {
	return w.native != nil && w.native.isRunning()
}

func (w *platformWindow) Close() error {
	if w.native == nil {
		return fmt.Errorf("window is not open")
	}
	w.native.close()
	w.native = nil
	w.logger.Info("window closed", zap.String("title", w.title))
	return nil
}

func (w *platformWindow) ProcessMessages() {
	for w.IsRunning() {
		if !w.native.pollEvents() {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *platformWindow) Width() int {
	return w.width
}

func (w *platformWindow) Height() int {
	return w.height
}

// resized records a framebuffer size change and forwards it.
func (w *platformWindow) resized(width, height int) {
	w.width = width
	w.height = height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
