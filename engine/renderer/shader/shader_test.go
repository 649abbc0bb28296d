package shader

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnnotation(t *testing.T) {
	a, err := parseAnnotation("let x = 1;", 1)
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = parseAnnotation("//@crystal:include atom_instance", 3)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, annotationTypeInclude, a.Type)
	assert.Equal(t, []AnnotationArg{annotationArgAtomInstance}, a.Args)
	assert.Equal(t, 3, a.Line)

	a, err = parseAnnotation("  //@crystal:group 0 1 uniform_dynamic structure structure", 7)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, 0, *a.Group)
	assert.Equal(t, 1, *a.Binding)
	assert.True(t, a.Dynamic())

	for _, bad := range []string{
		"//@crystal:",
		"//@crystal:include",
		"//@crystal:include camera",
		"//@crystal:group 0 0 storage frame frame",
		"//@crystal:group x 0 uniform frame frame",
		"//@crystal:group 0 0 uniform frame shading",
		"//@crystal:provider frame",
	} {
		_, err := parseAnnotation(bad, 1)
		assert.Error(t, err, bad)
	}
}

func TestPreProcessorExpandsIncludesOnce(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process("//@crystal:include frame\n//@crystal:include frame\n//@crystal:group 0 0 uniform frame frame\n")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "struct FrameUniforms"))
	assert.Contains(t, out, "@group(0) @binding(0) var<uniform> frame: FrameUniforms;")
	require.Len(t, pp.Declarations(), 1)
	assert.False(t, pp.Declarations()[0].Dynamic())
}

func TestModulesCompile(t *testing.T) {
	for _, m := range Modules() {
		assert.NotEmpty(t, ModuleSource(m), m.String())
	}
	assert.Empty(t, ModuleSource(Module(99)))
	assert.Equal(t, "module(99)", Module(99).String())
}

func TestAtomModuleLayouts(t *testing.T) {
	vs, fs := Compile(ModuleAtoms, "vs_sphere", "fs_atom")
	require.NotNil(t, fs)

	assert.Equal(t, "vs_sphere", vs.EntryPoint())
	assert.Equal(t, "fs_atom", fs.EntryPoint())
	assert.Equal(t, ShaderTypeVertex, vs.ShaderType())
	assert.Equal(t, "atoms.vs_sphere", vs.Key())

	layouts := vs.VertexLayouts()
	require.Len(t, layouts, 2)
	assert.Equal(t, wgpu.VertexStepModeVertex, layouts[0][0].StepMode)
	assert.EqualValues(t, 32, layouts[0][0].ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeInstance, layouts[1][0].StepMode)
	assert.EqualValues(t, gpu.AtomInstanceSize, layouts[1][0].ArrayStride)

	group0 := vs.BindGroupLayoutDescriptor(0)
	require.Len(t, group0.Entries, 2)
	assert.EqualValues(t, gpu.FrameUniformsSize, group0.Entries[0].Buffer.MinBindingSize)
	assert.False(t, group0.Entries[0].Buffer.HasDynamicOffset)
	assert.EqualValues(t, indexer.UniformStride, group0.Entries[1].Buffer.MinBindingSize)
	assert.True(t, group0.Entries[1].Buffer.HasDynamicOffset)

	group1 := fs.BindGroupLayoutDescriptor(1)
	require.Len(t, group1.Entries, 2)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, group1.Entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, group1.Entries[1].Sampler.Type)

	binding, ok := vs.BindGroupFromVarName(0, "structure")
	assert.True(t, ok)
	assert.Equal(t, 1, binding)
}

func TestInstanceStrides(t *testing.T) {
	tests := []struct {
		module Module
		entry  string
		stride int
	}{
		{ModuleBonds, "vs_bond", gpu.BondInstanceSize},
		{ModulePrimitives, "vs_primitive", gpu.PrimitiveInstanceSize},
		{ModuleText, "vs_glyph", gpu.GlyphInstanceSize},
		{ModuleOcclusion, "vs_patch", gpu.AtomInstanceSize},
	}
	for _, tt := range tests {
		t.Run(tt.module.String(), func(t *testing.T) {
			vs, _ := Compile(tt.module, tt.entry, "")
			layouts := vs.VertexLayouts()
			require.Len(t, layouts, 2)
			assert.Equal(t, wgpu.VertexStepModeInstance, layouts[1][0].StepMode)
			assert.EqualValues(t, tt.stride, layouts[1][0].ArrayStride)
		})
	}
}

func TestSurfaceAndFullscreenLayouts(t *testing.T) {
	vs, _ := Compile(ModuleIsosurface, "vs_surface", "")
	require.Len(t, vs.VertexLayouts(), 1)
	assert.EqualValues(t, gpu.SurfaceVertexSize, vs.VertexLayout(0)[0].ArrayStride)

	vs, fs := Compile(ModulePost, "vs_fullscreen", "fs_composite")
	assert.Empty(t, vs.VertexLayouts())
	assert.Len(t, fs.BindGroupLayoutDescriptor(1).Entries, 3)
}

func TestShadowIsDepthOnly(t *testing.T) {
	vs, fs := Compile(ModuleShadow, "vs_shadow", "")
	assert.Nil(t, fs)
	assert.EqualValues(t, gpu.ShadowUniformsSize, vs.BindGroupLayoutDescriptor(0).Entries[0].Buffer.MinBindingSize)

	_, accumulate := Compile(ModuleOcclusion, "vs_patch", "fs_accumulate")
	entries := accumulate.BindGroupLayoutDescriptor(1).Entries
	require.Len(t, entries, 1)
	assert.Equal(t, wgpu.TextureSampleTypeDepth, entries[0].Texture.SampleType)
}

func TestNewShaderPanicsOnEmptySource(t *testing.T) {
	assert.Panics(t, func() { NewShader("empty", ShaderTypeVertex, "") })
	assert.Panics(t, func() { NewShader("bad", ShaderTypeVertex, "//@crystal:include nothing") })
}

func TestReflectUsesEntryPointParameters(t *testing.T) {
	vs, _ := Compile(ModuleStencil, "vs_box", "")
	require.Len(t, vs.VertexLayouts(), 1)
	assert.Equal(t, wgpu.VertexStepModeVertex, vs.VertexLayout(0)[0].StepMode)
	assert.Nil(t, vs.VertexLayout(1))

	vs, _ = Compile(ModuleBackground, "vs_fullscreen", "")
	assert.Empty(t, vs.VertexLayouts())
}

func TestReflectStage(t *testing.T) {
	src := `
struct Params {
    a: vec3<f32>, // 12 bytes at 0
    b: f32,
    c: array<vec4<f32>, 2>,
    /* nested /* block */ comment */
    d: vec2f,
};
struct PointInstance {
    @location(3) center: vec4f,
    @location(4) @interpolate(flat) id: u32,
};
@group(0) @binding(0) var<uniform> params: Params;
@group(1) @binding(1) var depth: texture_depth_2d;
@group(1) @binding(0) var tex: texture_2d<u32>;

@vertex
fn vs_main(@builtin(vertex_index) i: u32, inst: PointInstance) -> @builtin(position) vec4<f32> {
    return inst.center;
}
`
	r, err := reflectStage(src, ShaderTypeVertex, "")
	require.NoError(t, err)
	assert.Equal(t, "vs_main", r.entry)

	require.Len(t, r.buffers, 1)
	assert.Equal(t, wgpu.VertexStepModeInstance, r.buffers[0].StepMode)
	assert.EqualValues(t, 20, r.buffers[0].ArrayStride)
	assert.Equal(t, wgpu.VertexFormatUint32, r.buffers[0].Attributes[1].Format)
	assert.EqualValues(t, 16, r.buffers[0].Attributes[1].Offset)
	assert.EqualValues(t, 4, r.buffers[0].Attributes[1].ShaderLocation)

	require.Len(t, r.bindings, 3)
	assert.Equal(t, "params", r.bindings[0].Name)
	assert.EqualValues(t, 64, r.bindings[0].Entry.Buffer.MinBindingSize)
	assert.Equal(t, "tex", r.bindings[1].Name)
	assert.Equal(t, wgpu.TextureSampleTypeUint, r.bindings[1].Entry.Texture.SampleType)
	assert.Equal(t, wgpu.TextureSampleTypeDepth, r.bindings[2].Entry.Texture.SampleType)
	assert.Equal(t, wgpu.ShaderStageVertex, r.bindings[2].Entry.Visibility)
}

func TestReflectStageErrors(t *testing.T) {
	tests := map[string]string{
		"no entry":       "struct A { x: f32 };",
		"scalar input":   "@vertex fn vs(x: f32) -> @builtin(position) vec4<f32> { return vec4<f32>(); }",
		"cube texture":   "@group(0) @binding(0) var t: texture_cube<f32>;\n@vertex fn vs() -> @builtin(position) vec4<f32> { return vec4<f32>(); }",
		"unknown record": "@group(0) @binding(0) var<uniform> u: Missing;\n@vertex fn vs() -> @builtin(position) vec4<f32> { return vec4<f32>(); }",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := reflectStage(src, ShaderTypeVertex, "")
			assert.Error(t, err)
		})
	}

	_, err := reflectStage("@vertex fn vs() -> @builtin(position) vec4<f32> { return vec4<f32>(); }", ShaderTypeVertex, "vs_other")
	assert.Error(t, err)
}

func TestStripComments(t *testing.T) {
	assert.Equal(t, "a \nb  c", stripComments("a // x\nb /* y /* z */ */ c"))
	assert.Equal(t, "tail", stripComments("tail// no newline"))
}
