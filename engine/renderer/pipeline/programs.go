package pipeline

import (
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Standard returns one freshly built pipeline per gpu.Program, indexed by program.
//
// Returns:
//   - []Pipeline: the pipelines in gpu.Programs() order
func Standard() []Pipeline {
	additive := AdditiveBlend()
	alpha := AlphaBlend()

	out := make([]Pipeline, 0, len(gpu.Programs()))
	add := func(program gpu.Program, module shader.Module, vs, fs string, opts ...PipelineBuilderOption) {
		if fs != "" {
			opts = append([]PipelineBuilderOption{WithFragmentEntry(fs)}, opts...)
		}
		out = append(out, NewPipeline(program, module, vs, opts...))
	}

	add(gpu.ProgramBackground, shader.ModuleBackground, "vs_fullscreen", "fs_background", Fullscreen())
	add(gpu.ProgramIsosurfaceOpaque, shader.ModuleIsosurface, "vs_surface", "fs_surface_opaque")
	add(gpu.ProgramLocalAxes, shader.ModuleBonds, "vs_bond", "fs_bond")
	add(gpu.ProgramAtomSphere, shader.ModuleAtoms, "vs_sphere", "fs_atom", WithCullMode(wgpu.CullModeBack))
	add(gpu.ProgramAtomImpostor, shader.ModuleAtoms, "vs_impostor", "fs_impostor")
	add(gpu.ProgramPrimitiveOpaque, shader.ModulePrimitives, "vs_primitive", "fs_primitive", WithCullMode(wgpu.CullModeBack))
	add(gpu.ProgramUnitCellStencil, shader.ModuleStencil, "vs_box", "fs_box",
		Fullscreen(), WithWriteMask(wgpu.ColorWriteMaskNone), WithStencil(StencilWrite))
	add(gpu.ProgramInternalBond, shader.ModuleBonds, "vs_bond", "fs_bond", WithStencil(StencilTest))
	add(gpu.ProgramExternalBond, shader.ModuleBonds, "vs_bond", "fs_bond")
	add(gpu.ProgramUnitCellCylinder, shader.ModuleBonds, "vs_bond", "fs_bond")
	add(gpu.ProgramUnitCellSphere, shader.ModuleAtoms, "vs_sphere", "fs_flat", WithCullMode(wgpu.CullModeBack))
	add(gpu.ProgramBoundingBoxCylinder, shader.ModuleBonds, "vs_bond", "fs_bond")
	add(gpu.ProgramBoundingBoxSphere, shader.ModuleAtoms, "vs_sphere", "fs_flat", WithCullMode(wgpu.CullModeBack))
	add(gpu.ProgramBondSelection, shader.ModuleBonds, "vs_bond_selection", "fs_bond_selection", Overlay(additive))
	add(gpu.ProgramAtomSelection, shader.ModuleAtoms, "vs_sphere_selection", "fs_atom_selection",
		Overlay(additive), WithCullMode(wgpu.CullModeBack))
	add(gpu.ProgramPrimitiveSelection, shader.ModulePrimitives, "vs_primitive_selection", "fs_primitive_selection",
		Overlay(additive), WithCullMode(wgpu.CullModeBack))
	add(gpu.ProgramBondSelectionGlow, shader.ModuleBonds, "vs_bond_selection", "fs_glow",
		WithAttachment(AttachmentGlow), WithDepth(true, false))
	add(gpu.ProgramAtomSelectionGlow, shader.ModuleAtoms, "vs_sphere_selection", "fs_glow",
		WithAttachment(AttachmentGlow), WithDepth(true, false), WithCullMode(wgpu.CullModeBack))
	add(gpu.ProgramBlurHorizontal, shader.ModulePost, "vs_fullscreen", "fs_blur_horizontal",
		WithAttachment(AttachmentPost), Fullscreen())
	add(gpu.ProgramBlurVertical, shader.ModulePost, "vs_fullscreen", "fs_blur_vertical",
		WithAttachment(AttachmentPost), Fullscreen())
	add(gpu.ProgramPrimitiveBackFaces, shader.ModulePrimitives, "vs_primitive", "fs_primitive_transparent",
		Overlay(alpha), WithCullMode(wgpu.CullModeFront))
	add(gpu.ProgramPrimitiveFrontFaces, shader.ModulePrimitives, "vs_primitive", "fs_primitive_transparent",
		Overlay(alpha), WithCullMode(wgpu.CullModeBack))
	add(gpu.ProgramIsosurfaceBackFaces, shader.ModuleIsosurface, "vs_surface", "fs_surface_transparent",
		Overlay(alpha), WithCullMode(wgpu.CullModeFront))
	add(gpu.ProgramIsosurfaceFrontFaces, shader.ModuleIsosurface, "vs_surface", "fs_surface_transparent",
		Overlay(alpha), WithCullMode(wgpu.CullModeBack))
	add(gpu.ProgramText, shader.ModuleText, "vs_glyph", "fs_glyph", Overlay(alpha), WithDepth(false, false))
	add(gpu.ProgramComposite, shader.ModulePost, "vs_fullscreen", "fs_composite",
		WithAttachment(AttachmentFinal), Fullscreen())
	add(gpu.ProgramPickAtom, shader.ModuleAtoms, "vs_sphere", "fs_pick_atom",
		WithAttachment(AttachmentPick), WithCullMode(wgpu.CullModeBack))
	add(gpu.ProgramPickInternalBond, shader.ModuleBonds, "vs_bond", "fs_pick_internal_bond", WithAttachment(AttachmentPick))
	add(gpu.ProgramPickExternalBond, shader.ModuleBonds, "vs_bond", "fs_pick_external_bond", WithAttachment(AttachmentPick))
	add(gpu.ProgramShadowDepth, shader.ModuleShadow, "vs_shadow", "",
		WithAttachment(AttachmentShadow), WithCullMode(wgpu.CullModeBack), WithDepthBias(0, 1))
	add(gpu.ProgramOcclusionAccumulate, shader.ModuleOcclusion, "vs_patch", "fs_accumulate",
		WithAttachment(AttachmentOcclusion), Fullscreen(), WithBlendState(additive))

	return out
}
