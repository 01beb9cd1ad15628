package main

import (
	_ "embed"
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-gles/common"
	"github.com/Carmen-Shannon/oxy-gles/engine/vertex_data"
	"github.com/chewxy/math32"
)

//go:embed triangle.wgsl
var triangleShader string

const (
	trianglePipeline = "triangle"
	twoPi            = float32(2 * math.Pi)
)

var basePositions = [3][2]float32{
	{0.0, 0.5},
	{-0.5, -0.5},
	{0.5, -0.5},
}

var triangleColors = []byte{
	255, 0, 0, 255,
	0, 255, 0, 255,
	0, 0, 255, 255,
}

// triangleAttributes are the positions (streamed from client memory every frame) and the colors
// (a static source buffer uploaded once).
var triangleAttributes = []common.VertexAttribute{
	{Type: common.ElementTypeFloat, Size: 2},
	{Type: common.ElementTypeUnsignedByte, Size: 4, Normalized: true},
}

type triangle struct {
	manager   vertex_data.Manager
	colors    vertex_data.SourceBuffer
	positions []byte
	bindings  []vertex_data.AttributeBinding

	angle  float32
	speed  float32
	aspect float32
}

func newTriangle(manager vertex_data.Manager, speed float32) *triangle {
	t := &triangle{
		manager:   manager,
		colors:    vertex_data.NewSourceBuffer("triangle colors", triangleColors, vertex_data.UsageStatic),
		positions: make([]byte, len(basePositions)*8),
		speed:     speed,
		aspect:    1,
	}
	t.bindings = []vertex_data.AttributeBinding{
		{Attribute: triangleAttributes[0], Client: t.positions},
		{Attribute: triangleAttributes[1], Buffer: t.colors},
	}
	return t
}

// setAspect keeps the triangle undistorted in a non-square framebuffer.
func (t *triangle) setAspect(width, height int) {
	if width > 0 && height > 0 {
		t.aspect = float32(width) / float32(height)
	}
}

// update advances the rotation by dt seconds and rewrites the client positions.
func (t *triangle) update(dt float32) {
	t.angle += t.speed * dt
	for t.angle >= twoPi {
		t.angle -= twoPi
	}
	for t.angle < 0 {
		t.angle += twoPi
	}
	sin, cos := math32.Sincos(t.angle)
	for i, p := range basePositions {
		x := (p[0]*cos - p[1]*sin) / t.aspect
		y := p[0]*sin + p[1]*cos
		binary.LittleEndian.PutUint32(t.positions[i*8:], math32.Float32bits(x))
		binary.LittleEndian.PutUint32(t.positions[i*8+4:], math32.Float32bits(y))
	}
}

func (t *triangle) prepare() ([]vertex_data.TranslatedAttribute, error) {
	return t.manager.Prepare(t.bindings, 0, len(basePositions))
}

func (t *triangle) release() {
	t.colors.Release()
}
