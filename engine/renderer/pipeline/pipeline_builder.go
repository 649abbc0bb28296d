package pipeline

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption sets part of a pipeline's fixed-function state.
type PipelineBuilderOption func(*pipeline)

// WithFragmentEntry sets the fragment entry point. Pipelines without one are depth-only.
func WithFragmentEntry(name string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragmentEntry = name
	}
}

// WithAttachment selects the attachment set, AttachmentScene by default.
func WithAttachment(a Attachment) PipelineBuilderOption {
	return func(p *pipeline) {
		p.attachment = a
	}
}

// WithDepth sets the depth test and depth write. Both are on by default; the test compares LessEqual.
//
// Parameters:
//   - test: compare against the attachment's depth buffer
//   - write: store the fragment depth
//
// Returns:
//   - PipelineBuilderOption: a function that sets both depth flags
func WithDepth(test, write bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthTestEnabled, p.depthWriteEnabled = test, write
	}
}

// WithDepthBias offsets the stored depth. The WebGPU backend applies it in hardware; the software
// rasterizer ignores it.
//
// Parameters:
//   - constant: bias in units of the depth format's smallest step
//   - slopeScale: bias per unit of the fragment's depth slope
//
// Returns:
//   - PipelineBuilderOption: a function that sets the bias
func WithDepthBias(constant int32, slopeScale float32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthBias, p.depthBiasSlopeScale = constant, slopeScale
	}
}

// WithBlendState enables blending, or disables it for nil. See AlphaBlend and AdditiveBlend.
func WithBlendState(blendState *wgpu.BlendState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendEnabled = blendState != nil
		p.blendState = blendState
	}
}

// WithCullMode sets which triangle faces are discarded. Impostor quads and bonds keep the default,
// wgpu.CullModeNone.
func WithCullMode(mode wgpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.cullMode = mode
	}
}

// WithWriteMask limits the color channels written. The stencil marking pass writes none.
func WithWriteMask(writeMask wgpu.ColorWriteMask) PipelineBuilderOption {
	return func(p *pipeline) {
		p.writeMask = writeMask
	}
}

// WithStencil sets how the pipeline uses the scene stencil buffer.
func WithStencil(mode StencilMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.stencil = mode
	}
}

// Overlay draws over opaque geometry: depth tested, not depth written, blended. Selection and
// transparent pipelines use it.
func Overlay(blend *wgpu.BlendState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthTestEnabled, p.depthWriteEnabled = true, false
		p.blendEnabled = true
		p.blendState = blend
	}
}

// Fullscreen turns the depth test and write off for pipelines drawing a screen-covering triangle.
func Fullscreen() PipelineBuilderOption {
	return WithDepth(false, false)
}
