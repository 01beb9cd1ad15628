// Package engine runs the window event loop and a render goroutine that owns every GPU and vertex data call.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-gles/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gles/engine/window"
	"go.uber.org/zap"
)

type size struct {
	width, height int
}

// engine implements the Engine interface.
// Coordinates the render and window threads.
type engine struct {
	wg sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	// resizeChannel carries the latest framebuffer size from the window thread to the render goroutine.
	resizeChannel chan size

	window window.Window
	logger *zap.Logger

	profiler         *profiler.Profiler
	profilingEnabled bool

	renderCallback func(deltaTime float32) error
	resizeCallback func(width, height int)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine orchestrates the render loop and window management.
//
// The render callback and the resize callback both run on the render goroutine, so everything they touch
// (the renderer, vertex buffers, the vertex data manager) is only ever used from that goroutine.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetRenderCallback registers the function called each render frame. Errors are logged and the
	// loop continues.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32) error)

	// SetResizeCallback registers the function called on the render goroutine after the window's
	// framebuffer is resized. Sizes arriving faster than frames are coalesced to the latest.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the render goroutine and processes window messages on the calling goroutine. It blocks
	// until the window closes or Quit is called, and returns after the render goroutine has exited.
	Run()

	// Quit signals all engine goroutines to stop and closes the window.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options. Panics if no window is set.
//
// Parameters:
//   - options: functional options for engine configuration (window, profiling, frame limit, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		quitChannel:   make(chan struct{}),
		resizeChannel: make(chan size, 1),
		logger:        zap.NewNop(),
	}

	for _, opt := range options {
		opt(e)
	}
	if e.window == nil {
		panic("engine: NewEngine requires a window")
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(e.logger)
	}

	e.window.SetResizeCallback(e.queueResize)
	// Closing the window must happen on the window thread.
	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			if e.window.IsRunning() {
				_ = e.window.Close()
			}
		default:
		}
	})

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32) error) {
	e.renderCallback = callback
}

func (e *engine) SetResizeCallback(callback func(width, height int)) {
	e.resizeCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

func (e *engine) Run() {
	e.wg.Add(1)
	go e.handleRender()
	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// queueResize replaces any size the render goroutine has not consumed yet.
func (e *engine) queueResize(width, height int) {
	for {
		select {
		case e.resizeChannel <- size{width, height}:
			return
		default:
		}
		select {
		case <-e.resizeChannel:
		default:
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("render goroutine recovered from panic", zap.Any("panic", r))
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case s := <-e.resizeChannel:
			e.logger.Debug("framebuffer resized", zap.Stringer("size", s))
			if e.resizeCallback != nil {
				e.resizeCallback(s.width, s.height)
			}
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			if e.renderCallback != nil {
				if err := e.renderCallback(dt); err != nil {
					e.logger.Warn("frame failed", zap.Error(err))
				}
			}

			if e.profilingEnabled {
				e.profiler.Tick()
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				if remaining := e.renderFrameLimit - time.Since(lastRender); remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

func (s size) String() string {
	return fmt.Sprintf("%dx%d", s.width, s.height)
}
