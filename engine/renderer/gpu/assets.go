package gpu

import _ "embed"

// WGSL definitions of the records in this package. Each struct matches the byte layout written
// by the record's Marshal or MarshalTo method.

// GPUFrameUniformsSource declares FrameUniforms (256 bytes).
//
//go:embed assets/frame_uniforms.wgsl
var GPUFrameUniformsSource string

// GPUShadowUniformsSource declares ShadowUniforms (256 bytes).
//
//go:embed assets/shadow_uniforms.wgsl
var GPUShadowUniformsSource string

// GPUAtomInstanceSource declares the AtomInstance vertex input at locations 3 to 7.
//
//go:embed assets/atom_instance.wgsl
var GPUAtomInstanceSource string

// GPUBondInstanceSource declares the BondInstance vertex input at locations 3 to 10.
//
//go:embed assets/bond_instance.wgsl
var GPUBondInstanceSource string

// GPUPrimitiveInstanceSource declares the PrimitiveInstance vertex input at locations 3 to 10.
//
//go:embed assets/primitive_instance.wgsl
var GPUPrimitiveInstanceSource string

// GPUSurfaceVertexSource declares the SurfaceVertex input of isosurface triangle lists.
//
//go:embed assets/surface_vertex.wgsl
var GPUSurfaceVertexSource string

// GPUGlyphInstanceSource declares the GlyphInstance vertex input at locations 3 to 6.
//
//go:embed assets/glyph_instance.wgsl
var GPUGlyphInstanceSource string
