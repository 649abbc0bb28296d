package gpu

// Instance record layouts. Each record is tightly packed in its buffer, with WGSL-compatible
// 16-byte alignment of every vec4 member.

// AtomInstanceSize is the stride of an AtomInstance in bytes.
const AtomInstanceSize = 48

// AtomInstance is one atom sphere or impostor.
// Layout: position.xyz + radius, color, tag (atom index), flags, padding.
type AtomInstance struct {
	Position [3]float32
	Radius   float32
	Color    [4]float32
	Tag      uint32
	Flags    uint32
}

// AtomFlagSelected marks an instance that belongs to the selection overlay.
const AtomFlagSelected uint32 = 1

// Size returns AtomInstanceSize.
func (a *AtomInstance) Size() int { return AtomInstanceSize }

// MarshalTo writes the record into buf, which must hold at least Size bytes.
func (a *AtomInstance) MarshalTo(buf []byte) {
	putF32(buf, 0, a.Position[0], a.Position[1], a.Position[2], a.Radius)
	putF32(buf, 16, a.Color[:]...)
	putU32(buf, 32, a.Tag, a.Flags, 0, 0)
}

// DecodeAtomInstances reads every record of an atom instance buffer.
func DecodeAtomInstances(buf []byte) []AtomInstance {
	out := make([]AtomInstance, len(buf)/AtomInstanceSize)
	for i := range out {
		b := buf[i*AtomInstanceSize:]
		out[i] = AtomInstance{
			Position: getVec3(b, 0),
			Radius:   getF32(b, 12),
			Color:    getVec4(b, 16),
			Tag:      getU32(b, 32),
			Flags:    getU32(b, 36),
		}
	}
	return out
}

// BondInstanceSize is the stride of a BondInstance in bytes.
const BondInstanceSize = 80

// BondInstance is one bond cylinder between two endpoints.
// Layout: p1.xyz + radius, p2.xyz + tag, color1, color2, order, flags, padding.
type BondInstance struct {
	P1     [3]float32
	Radius float32
	P2     [3]float32
	Tag    uint32
	Color1 [4]float32
	Color2 [4]float32
	Order  uint32
	Flags  uint32
}

// BondFlagExternal marks a bond that crosses the unit cell boundary.
const BondFlagExternal uint32 = 1

// Size returns BondInstanceSize.
func (b *BondInstance) Size() int { return BondInstanceSize }

// MarshalTo writes the record into buf, which must hold at least Size bytes.
func (b *BondInstance) MarshalTo(buf []byte) {
	putF32(buf, 0, b.P1[0], b.P1[1], b.P1[2], b.Radius)
	putF32(buf, 16, b.P2[0], b.P2[1], b.P2[2])
	putU32(buf, 28, b.Tag)
	putF32(buf, 32, b.Color1[:]...)
	putF32(buf, 48, b.Color2[:]...)
	putU32(buf, 64, b.Order, b.Flags, 0, 0)
}

// DecodeBondInstances reads every record of a bond instance buffer.
func DecodeBondInstances(buf []byte) []BondInstance {
	out := make([]BondInstance, len(buf)/BondInstanceSize)
	for i := range out {
		b := buf[i*BondInstanceSize:]
		out[i] = BondInstance{
			P1:     getVec3(b, 0),
			Radius: getF32(b, 12),
			P2:     getVec3(b, 16),
			Tag:    getU32(b, 28),
			Color1: getVec4(b, 32),
			Color2: getVec4(b, 48),
			Order:  getU32(b, 64),
			Flags:  getU32(b, 68),
		}
	}
	return out
}

// PrimitiveInstanceSize is the stride of a PrimitiveInstance in bytes.
const PrimitiveInstanceSize = 80

// PrimitiveInstance is one ellipsoid, cylinder or prism.
// Layout: position.xyz + shape, scale.xyz + flags, orientation quaternion (x, y, z, w), color, tag, padding.
type PrimitiveInstance struct {
	Position    [3]float32
	Shape       uint32
	Scale       [3]float32
	Flags       uint32
	Orientation [4]float32
	Color       [4]float32
	Tag         uint32
}

// PrimitiveFlagCrystal marks a primitive positioned in fractional unit cell coordinates.
const PrimitiveFlagCrystal uint32 = 1

// Size returns PrimitiveInstanceSize.
func (p *PrimitiveInstance) Size() int { return PrimitiveInstanceSize }

// MarshalTo writes the record into buf, which must hold at least Size bytes.
func (p *PrimitiveInstance) MarshalTo(buf []byte) {
	putF32(buf, 0, p.Position[:]...)
	putU32(buf, 12, p.Shape)
	putF32(buf, 16, p.Scale[:]...)
	putU32(buf, 28, p.Flags)
	putF32(buf, 32, p.Orientation[:]...)
	putF32(buf, 48, p.Color[:]...)
	putU32(buf, 64, p.Tag, 0, 0, 0)
}

// DecodePrimitiveInstances reads every record of a primitive instance buffer.
func DecodePrimitiveInstances(buf []byte) []PrimitiveInstance {
	out := make([]PrimitiveInstance, len(buf)/PrimitiveInstanceSize)
	for i := range out {
		b := buf[i*PrimitiveInstanceSize:]
		out[i] = PrimitiveInstance{
			Position:    getVec3(b, 0),
			Shape:       getU32(b, 12),
			Scale:       getVec3(b, 16),
			Flags:       getU32(b, 28),
			Orientation: getVec4(b, 32),
			Color:       getVec4(b, 48),
			Tag:         getU32(b, 64),
		}
	}
	return out
}

// SurfaceVertexSize is the stride of a SurfaceVertex in bytes.
const SurfaceVertexSize = 48

// SurfaceVertex is one isosurface triangle-list vertex.
// Layout: position.xyz + pad, normal.xyz + pad, color.
type SurfaceVertex struct {
	Position [3]float32
	Normal   [3]float32
	Color    [4]float32
}

// Size returns SurfaceVertexSize.
func (v *SurfaceVertex) Size() int { return SurfaceVertexSize }

// MarshalTo writes the record into buf, which must hold at least Size bytes.
func (v *SurfaceVertex) MarshalTo(buf []byte) {
	putF32(buf, 0, v.Position[0], v.Position[1], v.Position[2], 1)
	putF32(buf, 16, v.Normal[0], v.Normal[1], v.Normal[2], 0)
	putF32(buf, 32, v.Color[:]...)
}

// DecodeSurfaceVertices reads every record of an isosurface vertex buffer.
func DecodeSurfaceVertices(buf []byte) []SurfaceVertex {
	out := make([]SurfaceVertex, len(buf)/SurfaceVertexSize)
	for i := range out {
		b := buf[i*SurfaceVertexSize:]
		out[i] = SurfaceVertex{
			Position: getVec3(b, 0),
			Normal:   getVec3(b, 16),
			Color:    getVec4(b, 32),
		}
	}
	return out
}

// GlyphInstanceSize is the stride of a GlyphInstance in bytes.
const GlyphInstanceSize = 64

// GlyphInstance is one screen-aligned character quad anchored at a structure-space point.
// Layout: anchor.xyz + pad, rect (pixel offset x, y, width, height), uv rect (u0, v0, u1, v1), color.
type GlyphInstance struct {
	Anchor [3]float32
	Rect   [4]float32
	UV     [4]float32
	Color  [4]float32
}

// Size returns GlyphInstanceSize.
func (g *GlyphInstance) Size() int { return GlyphInstanceSize }

// MarshalTo writes the record into buf, which must hold at least Size bytes.
func (g *GlyphInstance) MarshalTo(buf []byte) {
	putF32(buf, 0, g.Anchor[0], g.Anchor[1], g.Anchor[2], 1)
	putF32(buf, 16, g.Rect[:]...)
	putF32(buf, 32, g.UV[:]...)
	putF32(buf, 48, g.Color[:]...)
}

// DecodeGlyphInstances reads every record of a glyph instance buffer.
func DecodeGlyphInstances(buf []byte) []GlyphInstance {
	out := make([]GlyphInstance, len(buf)/GlyphInstanceSize)
	for i := range out {
		b := buf[i*GlyphInstanceSize:]
		out[i] = GlyphInstance{
			Anchor: getVec3(b, 0),
			Rect:   getVec4(b, 16),
			UV:     getVec4(b, 32),
			Color:  getVec4(b, 48),
		}
	}
	return out
}
