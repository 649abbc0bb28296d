package pipeline

import (
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Attachment identifies the attachment set a pipeline renders into. Pipelines are compiled
// against the formats and sample count of their attachment set.
type Attachment int

const (
	// AttachmentScene is the HDR scene color target with the shared depth-stencil buffer.
	AttachmentScene Attachment = iota
	// AttachmentGlow is the glow color target, depth tested against the scene depth.
	AttachmentGlow
	// AttachmentPost is a single-sample color target without depth, used by the blur passes.
	AttachmentPost
	// AttachmentFinal is the surface or the offscreen picture target.
	AttachmentFinal
	// AttachmentPick is the RGBA32Uint id target with its own Depth32Float buffer.
	AttachmentPick
	// AttachmentShadow is the depth-only shadow map of the occlusion bake.
	AttachmentShadow
	// AttachmentOcclusion is the R16Float occlusion texture being accumulated.
	AttachmentOcclusion
)

// StencilMode selects how a pipeline uses the stencil buffer of the scene attachment.
type StencilMode int

const (
	StencilNone StencilMode = iota
	// StencilWrite replaces the stencil value with the reference on every covered pixel.
	StencilWrite
	// StencilTest passes where the reference is less than or equal to the stored value.
	// The reference is 1 for structures that clip bonds and 0 otherwise, so only clipping
	// structures are restricted to the pixels marked by StencilWrite.
	StencilTest
)

// pipeline is the implementation of the Pipeline interface.
// It holds the fixed-function state of one program and, once a GPU backend compiled it,
// the WebGPU pipeline object.
type pipeline struct {
	program gpu.Program

	module        shader.Module
	vertexEntry   string
	fragmentEntry string
	attachment    Attachment

	vertexShader, fragmentShader shader.Shader
	renderPipeline               *wgpu.RenderPipeline

	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthBias           int32
	depthBiasSlopeScale float32
	blendEnabled        bool
	cullMode            wgpu.CullMode
	topology            wgpu.PrimitiveTopology
	frontFace           wgpu.FrontFace
	writeMask           wgpu.ColorWriteMask
	blendState          *wgpu.BlendState
	stencil             StencilMode
}

// Pipeline describes the render state of one gpu.Program. The software backend interprets the
// state directly; the WebGPU backend compiles it into a *wgpu.RenderPipeline against the formats
// of the pipeline's attachment set.
type Pipeline interface {
	Program() gpu.Program

	// PipelineKey names the pipeline in labels and logs; it is the program name.
	PipelineKey() string

	// Module, VertexEntry and FragmentEntry locate the WGSL. FragmentEntry is "" for depth-only pipelines.
	Module() shader.Module
	VertexEntry() string
	FragmentEntry() string

	Attachment() Attachment

	// Shader returns the reflected stage of the given type once a backend compiled the pipeline, nil before.
	Shader(shaderType shader.ShaderType) shader.Shader

	// Pipeline returns the compiled WebGPU pipeline, or nil when no GPU backend compiled it.
	Pipeline() *wgpu.RenderPipeline

	DepthTestEnabled() bool
	DepthWriteEnabled() bool
	DepthBias() int32
	DepthBiasSlopeScale() float32

	// BlendEnabled reports whether BlendState applies. BlendState defaults to AlphaBlend even when off.
	BlendEnabled() bool
	BlendState() *wgpu.BlendState

	CullMode() wgpu.CullMode
	Topology() wgpu.PrimitiveTopology
	FrontFace() wgpu.FrontFace
	WriteMask() wgpu.ColorWriteMask
	Stencil() StencilMode

	// SetShader records a reflected stage; the WebGPU backend calls it while compiling.
	SetShader(s shader.Shader)

	// SetRenderPipeline records the compiled pipeline.
	SetRenderPipeline(p *wgpu.RenderPipeline)
}

var _ Pipeline = &pipeline{}

// NewPipeline describes a program drawn into the scene attachment with depth test and write on,
// blending and culling off, counter-clockwise front faces and triangle lists.
//
// Parameters:
//   - program: the program rendered by this pipeline
//   - module: the WGSL module holding the entry points
//   - vertexEntry: the vertex entry point
//   - opts: state overrides
//
// Returns:
//   - Pipeline: the pipeline description
func NewPipeline(program gpu.Program, module shader.Module, vertexEntry string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		program:           program,
		module:            module,
		vertexEntry:       vertexEntry,
		attachment:        AttachmentScene,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		cullMode:          wgpu.CullModeNone,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		writeMask:         wgpu.ColorWriteMaskAll,
		blendState:        AlphaBlend(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AlphaBlend returns the source-over blend state.
func AlphaBlend() *wgpu.BlendState {
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
	}
}

// AdditiveBlend returns the blend state that adds the source to the destination.
func AdditiveBlend() *wgpu.BlendState {
	add := wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOne,
		Operation: wgpu.BlendOperationAdd,
	}
	return &wgpu.BlendState{Color: add, Alpha: add}
}

func (p *pipeline) Program() gpu.Program {
	return p.program
}

func (p *pipeline) PipelineKey() string {
	return p.program.String()
}

func (p *pipeline) Module() shader.Module {
	return p.module
}

func (p *pipeline) VertexEntry() string {
	return p.vertexEntry
}

func (p *pipeline) FragmentEntry() string {
	return p.fragmentEntry
}

func (p *pipeline) Attachment() Attachment {
	return p.attachment
}

func (p *pipeline) Pipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) DepthBias() int32 {
	return p.depthBias
}

func (p *pipeline) DepthBiasSlopeScale() float32 {
	return p.depthBiasSlopeScale
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) Stencil() StencilMode {
	return p.stencil
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	default:
		return nil
	}
}

func (p *pipeline) SetShader(s shader.Shader) {
	switch s.ShaderType() {
	case shader.ShaderTypeVertex:
		p.vertexShader = s
	case shader.ShaderTypeFragment:
		p.fragmentShader = s
	}
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}
