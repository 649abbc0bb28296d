// Package pass holds the declarative list of render passes and executes it once per frame.
package pass

import (
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
)

// Kind groups passes into the fixed stages of a frame.
type Kind int

const (
	KindBackground Kind = iota
	KindOpaque
	KindBonds
	KindSelection
	KindTransparent
	KindText
	KindComposite
)

var kindNames = [...]string{"background", "opaque", "bonds", "selection", "transparent", "text", "composite"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Backend is the GPU surface the orchestrator records passes into.
type Backend interface {
	// BeginPass starts a render pass on target.
	//
	// Parameters:
	//   - target: the color attachment
	//   - load: whether to clear the attachment first
	//
	// Returns:
	//   - error: gpu.ErrNotInFrame when no frame is in progress
	BeginPass(target gpu.Target, load gpu.LoadOp) error

	// Draw records one instanced draw.
	Draw(program gpu.Program, d gpu.Draw)

	// DrawFullscreen records a full-screen triangle with a program that reads the frame targets.
	DrawFullscreen(program gpu.Program)

	// EndPass finishes the current render pass.
	EndPass()
}

// Frame is the state one RenderFrame call draws.
type Frame struct {
	Index           *indexer.Table
	Resources       *resource.Table
	Quality         scene.RenderQuality
	ShowBoundingBox bool
}

// Pass is one entry of the pass list.
type Pass struct {
	Kind    Kind
	Name    string
	Target  gpu.Target
	Load    gpu.LoadOp
	Enabled func(f *Frame) bool
	Draw    func(f *Frame, b Backend)
}

// structureDraw is a per-structure category draw.
type structureDraw struct {
	program  gpu.Program
	mesh     gpu.Mesh
	category resource.Category
	when     func(s scene.Structure) bool
}

// drawEach issues d for every visible structure in flat order.
func drawEach(f *Frame, b Backend, d structureDraw) {
	f.Index.Each(func(flat, sceneIndex, _ int, s scene.Structure) {
		if !s.Visible() || (d.when != nil && !d.when(s)) {
			return
		}
		entry := f.Resources.Entry(flat)
		buf, ok := entry.Buffer(d.category)
		if !ok {
			return
		}
		draw := gpu.Draw{
			Mesh:          d.mesh,
			Instances:     buf,
			FlatIndex:     flat,
			SceneIndex:    sceneIndex,
			UniformOffset: f.Index.UniformOffset(flat),
		}
		spans := entry.Spans(d.category)
		if len(spans) == 0 {
			b.Draw(d.program, draw)
			return
		}
		for _, span := range spans {
			draw.Mesh = shapeMesh(span.Shape)
			draw.First, draw.Count = span.First, span.Count
			b.Draw(d.program, draw)
		}
	})
}

// drawGlobal issues a draw of a scene-wide category with the identity model matrix.
func drawGlobal(f *Frame, b Backend, program gpu.Program, mesh gpu.Mesh, c resource.Category) {
	buf, ok := f.Resources.Global().Buffer(c)
	if !ok {
		return
	}
	b.Draw(program, gpu.Draw{Mesh: mesh, Instances: buf, FlatIndex: -1})
}

// drawStencil writes the unit cell box of every structure that clips its bonds.
// The condition matches indexer.FlagClipBonds, which backends use to pick the stencil reference.
func drawStencil(f *Frame, b Backend) {
	f.Index.Each(func(flat, sceneIndex, _ int, s scene.Structure) {
		if !s.Visible() || !s.Capabilities().UnitCell || !s.Style().ClipBonds {
			return
		}
		b.Draw(gpu.ProgramUnitCellStencil, gpu.Draw{
			Mesh:          gpu.MeshCube,
			FlatIndex:     flat,
			SceneIndex:    sceneIndex,
			UniformOffset: f.Index.UniformOffset(flat),
		})
	})
}

func shapeMesh(shape scene.PrimitiveShape) gpu.Mesh {
	switch shape {
	case scene.ShapeCylinder:
		return gpu.MeshCylinder
	case scene.ShapePrism:
		return gpu.MeshPrism
	}
	return gpu.MeshSphere
}

func usesSelection(styles ...scene.SelectionStyle) func(s scene.Structure) bool {
	return func(s scene.Structure) bool {
		current := s.Style().Selection
		for _, st := range styles {
			if current == st {
				return true
			}
		}
		return false
	}
}

// anyContent reports whether some visible structure has a buffer in one of the categories and passes when.
func anyContent(f *Frame, when func(scene.Structure) bool, categories ...resource.Category) bool {
	found := false
	f.Index.Each(func(flat, _, _ int, s scene.Structure) {
		if found || !s.Visible() || (when != nil && !when(s)) {
			return
		}
		entry := f.Resources.Entry(flat)
		for _, c := range categories {
			if _, ok := entry.Buffer(c); ok {
				found = true
				return
			}
		}
	})
	return found
}
