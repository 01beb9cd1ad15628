// Package config loads the settings of the vertex data layer and the demo application from defaults,
// an optional YAML file and OXY_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is prepended to every environment override, e.g. OXY_WINDOW_WIDTH.
const EnvPrefix = "OXY"

// Config is the complete application configuration.
type Config struct {
	VertexBuffer VertexBufferConfig `mapstructure:"vertex_buffer"`
	Window       WindowConfig       `mapstructure:"window"`
	Renderer     RendererConfig     `mapstructure:"renderer"`
	Log          LogConfig          `mapstructure:"log"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Demo         DemoConfig         `mapstructure:"demo"`
}

// VertexBufferConfig tunes the streaming buffer and attribute conversion.
type VertexBufferConfig struct {
	StreamingInitialSize uint64 `mapstructure:"streaming_initial_size"`
	GrowthNumerator      uint64 `mapstructure:"growth_numerator"`
	GrowthDenominator    uint64 `mapstructure:"growth_denominator"`
	// ConversionWorkers of zero picks one less than the number of CPUs.
	ConversionWorkers int `mapstructure:"conversion_workers"`
}

// WindowConfig describes the demo window.
type WindowConfig struct {
	Title  string `mapstructure:"title"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
}

// RendererConfig selects how the WebGPU renderer presents.
type RendererConfig struct {
	// PresentMode is one of fifo, mailbox or immediate.
	PresentMode string `mapstructure:"present_mode"`
	// ForceFallbackAdapter requests a software adapter.
	ForceFallbackAdapter bool `mapstructure:"force_fallback_adapter"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	Path    string `mapstructure:"path"`
}

// DemoConfig configures the hello triangle demo.
type DemoConfig struct {
	// PressureBuffers is the number of large static source buffers drawn once at startup to put
	// the device under memory pressure before the triangle is uploaded.
	PressureBuffers int `mapstructure:"pressure_buffers"`
	// PressureBufferSize is the size in bytes of each pressure buffer.
	PressureBufferSize uint64 `mapstructure:"pressure_buffer_size"`
	// RotationSpeed is in radians per second.
	RotationSpeed float32 `mapstructure:"rotation_speed"`
}

// Loader handles configuration loading and validation.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader reading YAML and OXY_ environment variables.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load reads the configuration. An empty path or a missing file yields the defaults with environment
// overrides applied.
//
// Parameters:
//   - path: the YAML file to read, may be empty
//
// Returns:
//   - *Config: the validated configuration
//   - error: an error if the file is malformed or a value is invalid
func (l *Loader) Load(path string) (*Config, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Load is shorthand for NewLoader().Load(path).
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("vertex_buffer.streaming_initial_size", 1024*1024)
	l.v.SetDefault("vertex_buffer.growth_numerator", 3)
	l.v.SetDefault("vertex_buffer.growth_denominator", 2)
	l.v.SetDefault("vertex_buffer.conversion_workers", 0)

	l.v.SetDefault("window.title", "Hello Triangle")
	l.v.SetDefault("window.width", 1280)
	l.v.SetDefault("window.height", 720)

	l.v.SetDefault("renderer.present_mode", "fifo")
	l.v.SetDefault("renderer.force_fallback_adapter", false)

	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "json")

	l.v.SetDefault("metrics.enabled", true)
	l.v.SetDefault("metrics.address", ":9090")
	l.v.SetDefault("metrics.path", "/metrics")

	l.v.SetDefault("demo.pressure_buffers", 0)
	l.v.SetDefault("demo.pressure_buffer_size", 4*1024*1024)
	l.v.SetDefault("demo.rotation_speed", 1.0)
}

// Validate checks the values Load cannot express as types.
//
// Parameters:
//   - cfg: the configuration to check
//
// Returns:
//   - error: the first invalid value found, or nil
func Validate(cfg *Config) error {
	if cfg.VertexBuffer.GrowthDenominator == 0 {
		return errors.New("vertex_buffer.growth_denominator must be positive")
	}
	if cfg.VertexBuffer.GrowthNumerator < cfg.VertexBuffer.GrowthDenominator {
		return fmt.Errorf("vertex_buffer growth factor %d/%d must not shrink the buffer",
			cfg.VertexBuffer.GrowthNumerator, cfg.VertexBuffer.GrowthDenominator)
	}
	if cfg.VertexBuffer.ConversionWorkers < 0 {
		return fmt.Errorf("invalid vertex_buffer.conversion_workers: %d", cfg.VertexBuffer.ConversionWorkers)
	}

	if cfg.Window.Width <= 0 || cfg.Window.Height <= 0 {
		return fmt.Errorf("invalid window size: %dx%d", cfg.Window.Width, cfg.Window.Height)
	}

	switch cfg.Renderer.PresentMode {
	case "fifo", "mailbox", "immediate":
	default:
		return fmt.Errorf("unsupported renderer.present_mode: %s", cfg.Renderer.PresentMode)
	}

	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "console" {
		return fmt.Errorf("unsupported log.format: %s", cfg.Log.Format)
	}

	if cfg.Demo.PressureBuffers < 0 {
		return fmt.Errorf("invalid demo.pressure_buffers: %d", cfg.Demo.PressureBuffers)
	}
	return nil
}
