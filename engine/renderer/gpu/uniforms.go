package gpu

// FrameUniformsSize is the byte size of a marshaled FrameUniforms record.
const FrameUniformsSize = 256

// FrameUniforms is the per-frame camera and background record, bound at group 0.
// Layout (256 bytes):
//
//	  0 view              mat4x4<f32>
//	 64 projection        mat4x4<f32>
//	128 viewport          vec4<f32> (width, height, 1/width, 1/height)
//	144 background color1 vec4<f32>
//	160 background color2 vec4<f32>
//	176 background type, orthographic, quality (u32), glow radius (f32)
//	192 time (f32), padding to 256
type FrameUniforms struct {
	View           [16]float32
	Projection     [16]float32
	Width          float32
	Height         float32
	BackgroundType uint32
	Background1    [4]float32
	Background2    [4]float32
	Orthographic   bool
	Quality        uint32
	GlowRadius     float32
	Time           float32
}

// Size returns the size of the marshaled record in bytes.
func (f *FrameUniforms) Size() int {
	return FrameUniformsSize
}

// Marshal serializes the record for GPU upload.
//
// Returns:
//   - []byte: 256-byte buffer ready for GPU upload
func (f *FrameUniforms) Marshal() []byte {
	buf := make([]byte, FrameUniformsSize)
	putMat(buf, 0, f.View)
	putMat(buf, 64, f.Projection)
	var invW, invH float32
	if f.Width > 0 {
		invW = 1 / f.Width
	}
	if f.Height > 0 {
		invH = 1 / f.Height
	}
	putF32(buf, 128, f.Width, f.Height, invW, invH)
	putF32(buf, 144, f.Background1[:]...)
	putF32(buf, 160, f.Background2[:]...)
	var ortho uint32
	if f.Orthographic {
		ortho = 1
	}
	putU32(buf, 176, f.BackgroundType, ortho, f.Quality)
	putF32(buf, 188, f.GlowRadius, f.Time)
	return buf
}

// UnmarshalFrameUniforms decodes a record written by Marshal.
func UnmarshalFrameUniforms(buf []byte) FrameUniforms {
	return FrameUniforms{
		View:           ReadMat4(buf, 0),
		Projection:     ReadMat4(buf, 64),
		Width:          getF32(buf, 128),
		Height:         getF32(buf, 132),
		Background1:    getVec4(buf, 144),
		Background2:    getVec4(buf, 160),
		BackgroundType: getU32(buf, 176),
		Orthographic:   getU32(buf, 180) != 0,
		Quality:        getU32(buf, 184),
		GlowRadius:     getF32(buf, 188),
		Time:           getF32(buf, 192),
	}
}

// ShadowUniformsSize is the byte size of a marshaled ShadowUniforms record.
const ShadowUniformsSize = 256

// ShadowUniforms drives one ambient occlusion direction: the light projection and view, and
// the perturbed direction applied as a model rotation about the scene center.
// Layout (256 bytes):
//
//	  0 projection mat4x4<f32>
//	 64 view       mat4x4<f32>
//	128 rotation   mat4x4<f32>
//	192 weight, patch count, patch size, inverse texture size (f32)
type ShadowUniforms struct {
	Projection [16]float32
	View       [16]float32
	Rotation   [16]float32
	Weight     float32
	PatchCount float32
	PatchSize  float32
	InvTexture float32
}

// Size returns the size of the marshaled record in bytes.
func (s *ShadowUniforms) Size() int {
	return ShadowUniformsSize
}

// Marshal serializes the record for GPU upload.
func (s *ShadowUniforms) Marshal() []byte {
	buf := make([]byte, ShadowUniformsSize)
	putMat(buf, 0, s.Projection)
	putMat(buf, 64, s.View)
	putMat(buf, 128, s.Rotation)
	putF32(buf, 192, s.Weight, s.PatchCount, s.PatchSize, s.InvTexture)
	return buf
}
