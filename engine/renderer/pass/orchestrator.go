package pass

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
)

// TraceFunc receives the name and duration of every executed pass.
type TraceFunc func(name string, elapsed time.Duration)

// Orchestrator executes the pass list in its fixed order.
type Orchestrator struct {
	backend Backend
	passes  []Pass
	trace   TraceFunc
}

// NewOrchestrator creates an orchestrator with the standard pass list.
//
// Parameters:
//   - backend: the GPU backend
//   - options: variadic list of OrchestratorBuilderOption functions
//
// Returns:
//   - *Orchestrator: the created orchestrator
func NewOrchestrator(backend Backend, options ...OrchestratorBuilderOption) *Orchestrator {
	o := &Orchestrator{backend: backend, passes: StandardPasses()}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Passes returns a copy of the pass list.
func (o *Orchestrator) Passes() []Pass {
	out := make([]Pass, len(o.passes))
	copy(out, o.passes)
	return out
}

// RenderFrame executes every enabled pass. It must run inside a backend frame.
//
// Parameters:
//   - f: the frame state
//
// Returns:
//   - error: the first BeginPass failure
func (o *Orchestrator) RenderFrame(f *Frame) error {
	if f == nil || f.Index == nil || f.Resources == nil {
		return fmt.Errorf("pass: frame has no scene tables")
	}
	for _, p := range o.passes {
		if p.Enabled != nil && !p.Enabled(f) {
			continue
		}
		start := time.Now()
		if err := o.backend.BeginPass(p.Target, p.Load); err != nil {
			return fmt.Errorf("failed to begin %s pass: %w", p.Name, err)
		}
		p.Draw(f, o.backend)
		o.backend.EndPass()
		if o.trace != nil {
			o.trace(p.Name, time.Since(start))
		}
	}
	return nil
}

var (
	noiseOrStripes = usesSelection(scene.SelectionWorleyNoise3D, scene.SelectionStriped)
	glow           = usesSelection(scene.SelectionGlow)
)

// StandardPasses builds the frame's pass list:
// background, opaque, bonds, selection (overlay, glow, blur), transparent, text, composite.
//
// Returns:
//   - []Pass: the pass list in execution order
func StandardPasses() []Pass {
	return []Pass{
		{
			Kind:   KindBackground,
			Name:   "background",
			Target: gpu.TargetScene,
			Load:   gpu.LoadClear,
			Draw: func(f *Frame, b Backend) {
				b.DrawFullscreen(gpu.ProgramBackground)
			},
		},
		{
			Kind:   KindOpaque,
			Name:   "opaque",
			Target: gpu.TargetScene,
			Load:   gpu.LoadKeep,
			Draw: func(f *Frame, b Backend) {
				drawEach(f, b, structureDraw{program: gpu.ProgramIsosurfaceOpaque, mesh: gpu.MeshNone, category: resource.CategoryOpaqueIsosurface})
				drawEach(f, b, structureDraw{program: gpu.ProgramLocalAxes, mesh: gpu.MeshCylinder, category: resource.CategoryLocalAxes})
				if f.Quality.UsesImpostors() {
					drawEach(f, b, structureDraw{program: gpu.ProgramAtomImpostor, mesh: gpu.MeshImpostor, category: resource.CategoryAtoms})
				} else {
					drawEach(f, b, structureDraw{program: gpu.ProgramAtomSphere, mesh: gpu.MeshSphere, category: resource.CategoryAtoms})
				}
				drawEach(f, b, structureDraw{program: gpu.ProgramPrimitiveOpaque, category: resource.CategoryPrimitives})
			},
		},
		{
			Kind:   KindBonds,
			Name:   "bonds",
			Target: gpu.TargetScene,
			Load:   gpu.LoadKeep,
			Draw: func(f *Frame, b Backend) {
				drawStencil(f, b)
				for _, c := range resource.InternalBondCategories {
					drawEach(f, b, structureDraw{program: gpu.ProgramInternalBond, mesh: gpu.MeshCylinder, category: c})
				}
				for _, c := range resource.ExternalBondCategories {
					drawEach(f, b, structureDraw{program: gpu.ProgramExternalBond, mesh: gpu.MeshCylinder, category: c})
				}
				drawEach(f, b, structureDraw{program: gpu.ProgramUnitCellCylinder, mesh: gpu.MeshCylinder, category: resource.CategoryUnitCellCylinders})
				drawEach(f, b, structureDraw{program: gpu.ProgramUnitCellSphere, mesh: gpu.MeshSphere, category: resource.CategoryUnitCellSpheres})
				if f.ShowBoundingBox {
					drawGlobal(f, b, gpu.ProgramBoundingBoxCylinder, gpu.MeshCylinder, resource.CategoryUnitCellCylinders)
					drawGlobal(f, b, gpu.ProgramBoundingBoxSphere, gpu.MeshSphere, resource.CategoryUnitCellSpheres)
				}
			},
		},
		{
			Kind:   KindSelection,
			Name:   "selection",
			Target: gpu.TargetScene,
			Load:   gpu.LoadKeep,
			Enabled: func(f *Frame) bool {
				return anyContent(f, noiseOrStripes, resource.CategorySelectedAtoms, resource.CategorySelectedBonds, resource.CategorySelectedPrimitives)
			},
			Draw: func(f *Frame, b Backend) {
				drawEach(f, b, structureDraw{program: gpu.ProgramBondSelection, mesh: gpu.MeshCylinder, category: resource.CategorySelectedBonds, when: noiseOrStripes})
				drawEach(f, b, structureDraw{program: gpu.ProgramAtomSelection, mesh: gpu.MeshSphere, category: resource.CategorySelectedAtoms, when: noiseOrStripes})
				drawEach(f, b, structureDraw{program: gpu.ProgramPrimitiveSelection, category: resource.CategorySelectedPrimitives, when: noiseOrStripes})
			},
		},
		{
			Kind:   KindSelection,
			Name:   "glow",
			Target: gpu.TargetGlow,
			Load:   gpu.LoadClear,
			Draw: func(f *Frame, b Backend) {
				drawEach(f, b, structureDraw{program: gpu.ProgramBondSelectionGlow, mesh: gpu.MeshCylinder, category: resource.CategorySelectedBonds, when: glow})
				drawEach(f, b, structureDraw{program: gpu.ProgramAtomSelectionGlow, mesh: gpu.MeshSphere, category: resource.CategorySelectedAtoms, when: glow})
			},
		},
		{
			Kind:   KindSelection,
			Name:   "blur_horizontal",
			Target: gpu.TargetBlurHorizontal,
			Load:   gpu.LoadClear,
			Draw: func(f *Frame, b Backend) {
				b.DrawFullscreen(gpu.ProgramBlurHorizontal)
			},
		},
		{
			Kind:   KindSelection,
			Name:   "blur_vertical",
			Target: gpu.TargetBlurVertical,
			Load:   gpu.LoadClear,
			Draw: func(f *Frame, b Backend) {
				b.DrawFullscreen(gpu.ProgramBlurVertical)
			},
		},
		{
			Kind:   KindTransparent,
			Name:   "transparent",
			Target: gpu.TargetScene,
			Load:   gpu.LoadKeep,
			Enabled: func(f *Frame) bool {
				return anyContent(f, nil, resource.CategoryTransparentPrimitives, resource.CategoryTransparentIsosurface)
			},
			Draw: func(f *Frame, b Backend) {
				drawEach(f, b, structureDraw{program: gpu.ProgramPrimitiveBackFaces, category: resource.CategoryTransparentPrimitives})
				drawEach(f, b, structureDraw{program: gpu.ProgramPrimitiveFrontFaces, category: resource.CategoryTransparentPrimitives})
				drawEach(f, b, structureDraw{program: gpu.ProgramIsosurfaceBackFaces, mesh: gpu.MeshNone, category: resource.CategoryTransparentIsosurface})
				drawEach(f, b, structureDraw{program: gpu.ProgramIsosurfaceFrontFaces, mesh: gpu.MeshNone, category: resource.CategoryTransparentIsosurface})
			},
		},
		{
			Kind:   KindText,
			Name:   "text",
			Target: gpu.TargetScene,
			Load:   gpu.LoadKeep,
			Enabled: func(f *Frame) bool {
				return anyContent(f, nil, resource.CategoryGlyphs)
			},
			Draw: func(f *Frame, b Backend) {
				drawEach(f, b, structureDraw{program: gpu.ProgramText, mesh: gpu.MeshQuad, category: resource.CategoryGlyphs})
			},
		},
		{
			Kind:   KindComposite,
			Name:   "composite",
			Target: gpu.TargetFinal,
			Load:   gpu.LoadClear,
			Draw: func(f *Frame, b Backend) {
				b.DrawFullscreen(gpu.ProgramComposite)
			},
		},
	}
}
