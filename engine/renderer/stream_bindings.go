package renderer

import (
	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine/resource"
)

type streamBinding struct {
	buffer resource.Buffer
	serial common.Serial
	offset uint64
}

// streamBindings remembers which pipeline and vertex buffer ranges are bound in the current render pass so
// consecutive draws from the same streams skip redundant state changes.
type streamBindings struct {
	pipeline string
	slots    []streamBinding
	bound    []bool
}

// reset forgets all bindings. Called at the start of each render pass.
func (s *streamBindings) reset() {
	s.pipeline = ""
	s.slots = s.slots[:0]
	s.bound = s.bound[:0]
}

// usePipeline reports whether key must be set on the pass.
func (s *streamBindings) usePipeline(key string) bool {
	if s.pipeline == key {
		return false
	}
	s.pipeline = key
	return true
}

// useStream reports whether buffer, stamped serial, must be bound to slot at offset.
func (s *streamBindings) useStream(slot int, buffer resource.Buffer, serial common.Serial, offset uint64) bool {
	for len(s.slots) <= slot {
		s.slots = append(s.slots, streamBinding{})
		s.bound = append(s.bound, false)
	}
	next := streamBinding{buffer: buffer, serial: serial, offset: offset}
	if s.bound[slot] && s.slots[slot] == next {
		return false
	}
	s.slots[slot] = next
	s.bound[slot] = true
	return true
}
