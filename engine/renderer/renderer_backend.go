package renderer

import (
	"fmt"
	"strings"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeMailbox presents at vertical blank but replaces a queued frame with a newer one
	// instead of blocking.
	PresentModeMailbox

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeVSync:
		return "fifo"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeUncapped:
		return "immediate"
	default:
		return fmt.Sprintf("PresentMode(%d)", int(m))
	}
}

// ParsePresentMode maps a configuration name to a PresentMode. Accepted names are "fifo" (or "vsync"),
// "mailbox" and "immediate" (or "uncapped"), case-insensitively.
//
// Parameters:
//   - name: the present mode name
//
// Returns:
//   - PresentMode: the parsed mode
//   - error: an error if the name is unknown
func ParsePresentMode(name string) (PresentMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fifo", "vsync":
		return PresentModeVSync, nil
	case "mailbox":
		return PresentModeMailbox, nil
	case "immediate", "uncapped":
		return PresentModeUncapped, nil
	default:
		return PresentModeVSync, fmt.Errorf("unknown present mode %q", name)
	}
}

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}
