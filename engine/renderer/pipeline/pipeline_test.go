package pipeline

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardCoversEveryProgram(t *testing.T) {
	pipelines := Standard()
	require.Len(t, pipelines, len(gpu.Programs()))
	for i, p := range pipelines {
		assert.Equal(t, gpu.Program(i), p.Program())
		assert.Equal(t, p.Program().String(), p.PipelineKey())

		src := shader.ModuleSource(p.Module())
		assert.Contains(t, src, "fn "+p.VertexEntry()+"(", p.PipelineKey())
		if p.FragmentEntry() != "" {
			assert.Contains(t, src, "fn "+p.FragmentEntry()+"(", p.PipelineKey())
		}
	}
}

func TestDefaults(t *testing.T) {
	p := NewPipeline(gpu.ProgramAtomSphere, shader.ModuleAtoms, "vs_sphere")
	assert.True(t, p.DepthTestEnabled())
	assert.True(t, p.DepthWriteEnabled())
	assert.False(t, p.BlendEnabled())
	assert.Equal(t, AttachmentScene, p.Attachment())
	assert.Equal(t, wgpu.CullModeNone, p.CullMode())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Equal(t, wgpu.ColorWriteMaskAll, p.WriteMask())
	assert.Equal(t, StencilNone, p.Stencil())
	assert.Nil(t, p.Pipeline())
	assert.Nil(t, p.Shader(shader.ShaderTypeVertex))
}

func TestProgramState(t *testing.T) {
	pipelines := Standard()

	shadow := pipelines[gpu.ProgramShadowDepth]
	assert.Empty(t, shadow.FragmentEntry())
	assert.Equal(t, AttachmentShadow, shadow.Attachment())

	stencil := pipelines[gpu.ProgramUnitCellStencil]
	assert.Equal(t, StencilWrite, stencil.Stencil())
	assert.Equal(t, wgpu.ColorWriteMaskNone, stencil.WriteMask())
	assert.False(t, stencil.DepthTestEnabled())
	assert.Equal(t, StencilTest, pipelines[gpu.ProgramInternalBond].Stencil())
	assert.Equal(t, StencilNone, pipelines[gpu.ProgramExternalBond].Stencil())

	for _, program := range []gpu.Program{gpu.ProgramAtomSelection, gpu.ProgramPrimitiveBackFaces, gpu.ProgramIsosurfaceFrontFaces, gpu.ProgramText} {
		p := pipelines[program]
		assert.True(t, p.BlendEnabled(), program.String())
		assert.False(t, p.DepthWriteEnabled(), program.String())
	}
	assert.False(t, pipelines[gpu.ProgramText].DepthTestEnabled())
	assert.Equal(t, wgpu.CullModeFront, pipelines[gpu.ProgramPrimitiveBackFaces].CullMode())
	assert.Equal(t, wgpu.CullModeBack, pipelines[gpu.ProgramPrimitiveFrontFaces].CullMode())

	accumulate := pipelines[gpu.ProgramOcclusionAccumulate]
	assert.True(t, accumulate.BlendEnabled())
	assert.Equal(t, wgpu.BlendFactorOne, accumulate.BlendState().Color.DstFactor)

	for _, program := range []gpu.Program{gpu.ProgramPickAtom, gpu.ProgramPickInternalBond, gpu.ProgramPickExternalBond} {
		p := pipelines[program]
		assert.Equal(t, AttachmentPick, p.Attachment())
		assert.True(t, strings.HasPrefix(p.FragmentEntry(), "fs_pick_"))
	}
}

func TestSetShader(t *testing.T) {
	p := NewPipeline(gpu.ProgramBackground, shader.ModuleBackground, "vs_fullscreen", WithFragmentEntry("fs_background"))
	vs, fs := shader.Compile(p.Module(), p.VertexEntry(), p.FragmentEntry())
	p.SetShader(vs)
	p.SetShader(fs)
	assert.Same(t, vs, p.Shader(shader.ShaderTypeVertex))
	assert.Same(t, fs, p.Shader(shader.ShaderTypeFragment))
}

func TestShadowDepthBias(t *testing.T) {
	shadow := Standard()[gpu.ProgramShadowDepth]
	assert.Zero(t, shadow.DepthBias())
	assert.Equal(t, float32(1), shadow.DepthBiasSlopeScale())
	assert.Zero(t, Standard()[gpu.ProgramAtomSphere].DepthBiasSlopeScale())
}
