// Command hello_triangle draws a rotating triangle whose positions are streamed through the vertex data
// layer every frame while its colors are uploaded once into a static vertex buffer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine"
	"github.com/Carmen-Shannon/oxy-gles/engine/config"
	"github.com/Carmen-Shannon/oxy-gles/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gles/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gles/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gles/engine/vertex_data"
	"github.com/Carmen-Shannon/oxy-gles/engine/window"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "hello_triangle: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.NewMetrics(registry)

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Address, cfg.Metrics.Path, registry, logger)
		server.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
		}()
	}

	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
		window.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer func() { _ = win.Close() }()

	presentMode, err := renderer.ParsePresentMode(cfg.Renderer.PresentMode)
	if err != nil {
		return err
	}

	serials := newSerialScopes()
	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, win, serials.buffers,
		renderer.WithPresentMode(presentMode),
		renderer.WithForceSoftwareRenderer(cfg.Renderer.ForceFallbackAdapter),
		renderer.WithClearColor(0, 0, 0, 1),
		renderer.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer r.Release()

	if err := r.RegisterPipeline(trianglePipeline, triangleShader, triangleAttributes); err != nil {
		return err
	}

	managerOptions := []vertex_data.ManagerBuilderOption{
		vertex_data.WithLogger(logger),
		vertex_data.WithMetrics(mt),
		vertex_data.WithSerialCounter(serials.vertexBuffers),
		vertex_data.WithStreamingBufferSize(cfg.VertexBuffer.StreamingInitialSize),
		vertex_data.WithGrowthFactor(cfg.VertexBuffer.GrowthNumerator, cfg.VertexBuffer.GrowthDenominator),
	}
	if cfg.VertexBuffer.ConversionWorkers > 0 {
		managerOptions = append(managerOptions, vertex_data.WithConversionWorkers(cfg.VertexBuffer.ConversionWorkers))
	}
	manager := vertex_data.NewManager(r.Device(), managerOptions...)
	defer manager.Release()

	pressure, err := warmPressureBuffers(manager, cfg.Demo.PressureBuffers, cfg.Demo.PressureBufferSize, logger)
	defer func() {
		for _, b := range pressure {
			b.Release()
		}
	}()
	if err != nil {
		return err
	}

	tri := newTriangle(manager, cfg.Demo.RotationSpeed)
	tri.setAspect(win.Width(), win.Height())
	defer tri.release()

	stats := profiler.NewProfiler(logger, profiler.WithFields(func() []zap.Field {
		return []zap.Field{
			zap.Uint64("streaming_capacity", manager.StreamingBuffer().Capacity()),
			zap.Uint64("next_vertex_buffer_serial", uint64(serials.vertexBuffers.Peek())),
		}
	}))

	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithLogger(logger),
		engine.WithProfiler(stats),
		engine.WithProfiling(true),
		engine.WithResizeCallback(func(width, height int) {
			r.Resize(width, height)
			tri.setAspect(width, height)
		}),
		engine.WithRenderCallback(func(dt float32) error {
			tri.update(dt)
			streams, err := tri.prepare()
			if err != nil {
				return err
			}
			if err := r.BeginFrame(); err != nil {
				return err
			}
			drawErr := r.Draw(trianglePipeline, streams, len(basePositions))
			r.EndFrame()
			r.Present()
			return drawErr
		}),
	)
	win.SetKeyCallback(func(key int) {
		if key == int(glfw.KeyQ) {
			eng.Quit()
		}
	})

	logger.Info("hello triangle running",
		zap.Stringer("present_mode", presentMode),
		zap.Int("pressure_buffers", len(pressure)),
	)
	eng.Run()
	logger.Info("hello triangle stopped")
	return nil
}

// serialScopes holds the two identity counters of the demo. Native buffers created on the renderer's
// device are stamped from buffers; vertex buffer generations are stamped from vertexBuffers.
type serialScopes struct {
	buffers       *common.SerialCounter
	vertexBuffers *common.SerialCounter
}

func newSerialScopes() serialScopes {
	return serialScopes{
		buffers:       common.NewSerialCounter(),
		vertexBuffers: common.NewSerialCounter(),
	}
}
