package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTickWaitsForInterval(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewProfiler(zap.New(core), WithInterval(time.Hour))

	for range 10 {
		assert.False(t, p.Tick())
	}
	assert.Zero(t, logs.Len())
	assert.Equal(t, 10, p.frameCount)
}

func TestTickReportsStatistics(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewProfiler(zap.New(core),
		WithInterval(0),
		WithFields(func() []zap.Field {
			return []zap.Field{zap.Int("live_buffers", 3)}
		}),
	)

	require.True(t, p.Tick())
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, "frame statistics", entry.Message)
	fields := entry.ContextMap()
	for _, key := range []string{"fps", "heap_mb", "alloc_rate_mb_s", "gc_count", "gc_last_pause", "gc_max_pause", "sys_mb"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, int64(3), fields["live_buffers"])
	assert.Zero(t, p.frameCount, "counters reset after a report")
}

func TestNilLoggerIsSilent(t *testing.T) {
	p := NewProfiler(nil, WithInterval(0))
	assert.True(t, p.Tick())
}
