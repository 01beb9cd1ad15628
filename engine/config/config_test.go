package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, uint64(1024*1024), cfg.VertexBuffer.StreamingInitialSize)
	assert.Equal(t, uint64(3), cfg.VertexBuffer.GrowthNumerator)
	assert.Equal(t, uint64(2), cfg.VertexBuffer.GrowthDenominator)
	assert.Equal(t, "Hello Triangle", cfg.Window.Title)
	assert.Equal(t, 1280, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height)
	assert.Equal(t, "fifo", cfg.Renderer.PresentMode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.Metrics.Address)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Zero(t, cfg.Demo.PressureBuffers)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1280, cfg.Window.Width)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
vertex_buffer:
  streaming_initial_size: 4096
  growth_numerator: 2
  growth_denominator: 1
  conversion_workers: 3
window:
  title: test
  width: 640
  height: 480
log:
  level: debug
  format: console
demo:
  pressure_buffers: 128
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), cfg.VertexBuffer.StreamingInitialSize)
	assert.Equal(t, uint64(2), cfg.VertexBuffer.GrowthNumerator)
	assert.Equal(t, uint64(1), cfg.VertexBuffer.GrowthDenominator)
	assert.Equal(t, 3, cfg.VertexBuffer.ConversionWorkers)
	assert.Equal(t, "test", cfg.Window.Title)
	assert.Equal(t, 640, cfg.Window.Width)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 128, cfg.Demo.PressureBuffers)
	assert.Equal(t, "fifo", cfg.Renderer.PresentMode, "unset keys keep defaults")
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("OXY_WINDOW_WIDTH", "800")
	t.Setenv("OXY_RENDERER_PRESENT_MODE", "mailbox")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, "mailbox", cfg.Renderer.PresentMode)
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "window: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero denominator", func(c *Config) { c.VertexBuffer.GrowthDenominator = 0 }},
		{"shrinking growth", func(c *Config) { c.VertexBuffer.GrowthNumerator = 1 }},
		{"negative workers", func(c *Config) { c.VertexBuffer.ConversionWorkers = -1 }},
		{"zero width", func(c *Config) { c.Window.Width = 0 }},
		{"unknown present mode", func(c *Config) { c.Renderer.PresentMode = "vsync" }},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative pressure", func(c *Config) { c.Demo.PressureBuffers = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	assert.NoError(t, Validate(valid()))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
