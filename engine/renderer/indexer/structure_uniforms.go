package indexer

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// GPUStructureUniformsSource is the WGSL declaration of StructureUniforms.
//
//go:embed assets/structure_uniforms.wgsl
var GPUStructureUniformsSource string

// UniformStride is the distance in bytes between consecutive structure records.
// It is a multiple of the 256-byte minimum uniform buffer offset alignment.
const UniformStride = 512

// Byte offsets of selected StructureUniforms members.
const (
	OffsetFlags        = 12
	OffsetAOPatch      = 16
	OffsetModel        = 192
	OffsetInverseModel = 256
	OffsetBox          = 320
	OffsetInverseBox   = 384
)

// Structure uniform flag bits.
const (
	FlagAmbientOcclusion uint32 = 1 << iota
	FlagClipAtoms
	FlagClipBonds
	FlagAtomHDR
	FlagBondHDR
	FlagColorAtomsWithBondColor
)

// StructureUniforms is the per-structure uniform record bound with a dynamic offset of flat*UniformStride.
// Layout (512 bytes):
//
//	  0 scene index (i32), flat structure index (i32), atom scale (f32), flags (u32)
//	 16 ao patch count (i32), ao patch size (f32), ao inverse texture size (f32), atom selection intensity (f32)
//	 32 atom hsv + exposure
//	 48 bond hsv + exposure
//	 64 bond scaling, bond color mode (u32), bond selection intensity, unit cell scaling
//	 80 unit cell color
//	 96 clip planes [6]vec4
//	192 model
//	256 inverse model
//	320 box
//	384 inverse box
//	448 selection style (u32), selection scaling, stripes density, stripes frequency
//	464 noise frequency, noise jitter, bond selection scaling, primitive opacity
//	480 primitive color
//	496 primitive back color
type StructureUniforms struct {
	SceneID                int32
	FlatIndex              int32
	AtomScale              float32
	Flags                  uint32
	AOPatchCount           int32
	AOPatchSize            float32
	AOInverseTextureSize   float32
	AtomSelectionIntensity float32
	AtomHSV                [4]float32
	BondHSV                [4]float32
	BondScaling            float32
	BondColorMode          uint32
	BondSelectionIntensity float32
	UnitCellScaling        float32
	UnitCellColor          [4]float32
	ClipPlanes             [6][4]float32
	Model                  [16]float32
	InverseModel           [16]float32
	Box                    [16]float32
	InverseBox             [16]float32
	SelectionStyle         uint32
	SelectionScaling       float32
	StripesDensity         float32
	StripesFrequency       float32
	NoiseFrequency         float32
	NoiseJitter            float32
	BondSelectionScaling   float32
	PrimitiveOpacity       float32
	PrimitiveColor         [4]float32
	PrimitiveBackColor     [4]float32
}

// Size returns UniformStride.
func (u *StructureUniforms) Size() int {
	return UniformStride
}

// MarshalTo serializes the record into buf, which must hold at least UniformStride bytes.
//
// Parameters:
//   - buf: destination slice positioned at the record's offset
func (u *StructureUniforms) MarshalTo(buf []byte) {
	le := binary.LittleEndian
	f := func(off int, values ...float32) {
		for i, v := range values {
			le.PutUint32(buf[off+i*4:], math.Float32bits(v))
		}
	}

	le.PutUint32(buf[0:], uint32(u.SceneID))
	le.PutUint32(buf[4:], uint32(u.FlatIndex))
	f(8, u.AtomScale)
	le.PutUint32(buf[12:], u.Flags)
	le.PutUint32(buf[16:], uint32(u.AOPatchCount))
	f(20, u.AOPatchSize, u.AOInverseTextureSize, u.AtomSelectionIntensity)
	f(32, u.AtomHSV[:]...)
	f(48, u.BondHSV[:]...)
	f(64, u.BondScaling)
	le.PutUint32(buf[68:], u.BondColorMode)
	f(72, u.BondSelectionIntensity, u.UnitCellScaling)
	f(80, u.UnitCellColor[:]...)
	for i, p := range u.ClipPlanes {
		f(96+i*16, p[:]...)
	}
	f(OffsetModel, u.Model[:]...)
	f(OffsetInverseModel, u.InverseModel[:]...)
	f(OffsetBox, u.Box[:]...)
	f(OffsetInverseBox, u.InverseBox[:]...)
	le.PutUint32(buf[448:], u.SelectionStyle)
	f(452, u.SelectionScaling, u.StripesDensity, u.StripesFrequency)
	f(464, u.NoiseFrequency, u.NoiseJitter, u.BondSelectionScaling, u.PrimitiveOpacity)
	f(480, u.PrimitiveColor[:]...)
	f(496, u.PrimitiveBackColor[:]...)
}

// DecodeStructureUniforms reads a record written by MarshalTo.
//
// Parameters:
//   - buf: source slice positioned at the record's offset
//
// Returns:
//   - StructureUniforms: the decoded record
func DecodeStructureUniforms(buf []byte) StructureUniforms {
	le := binary.LittleEndian
	f := func(off int) float32 { return math.Float32frombits(le.Uint32(buf[off:])) }
	v4 := func(off int) [4]float32 { return [4]float32{f(off), f(off + 4), f(off + 8), f(off + 12)} }
	m4 := func(off int) [16]float32 {
		var m [16]float32
		for i := range m {
			m[i] = f(off + i*4)
		}
		return m
	}

	u := StructureUniforms{
		SceneID:                int32(le.Uint32(buf[0:])),
		FlatIndex:              int32(le.Uint32(buf[4:])),
		AtomScale:              f(8),
		Flags:                  le.Uint32(buf[12:]),
		AOPatchCount:           int32(le.Uint32(buf[16:])),
		AOPatchSize:            f(20),
		AOInverseTextureSize:   f(24),
		AtomSelectionIntensity: f(28),
		AtomHSV:                v4(32),
		BondHSV:                v4(48),
		BondScaling:            f(64),
		BondColorMode:          le.Uint32(buf[68:]),
		BondSelectionIntensity: f(72),
		UnitCellScaling:        f(76),
		UnitCellColor:          v4(80),
		Model:                  m4(OffsetModel),
		InverseModel:           m4(OffsetInverseModel),
		Box:                    m4(OffsetBox),
		InverseBox:             m4(OffsetInverseBox),
		SelectionStyle:         le.Uint32(buf[448:]),
		SelectionScaling:       f(452),
		StripesDensity:         f(456),
		StripesFrequency:       f(460),
		NoiseFrequency:         f(464),
		NoiseJitter:            f(468),
		BondSelectionScaling:   f(472),
		PrimitiveOpacity:       f(476),
		PrimitiveColor:         v4(480),
		PrimitiveBackColor:     v4(496),
	}
	for i := range u.ClipPlanes {
		u.ClipPlanes[i] = v4(96 + i*16)
	}
	return u
}
