package resource

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// GlyphLayout turns an annotation into positioned glyph quads.
type GlyphLayout interface {
	Layout(a scene.Annotation) []gpu.GlyphInstance
}

// Span is a contiguous run of primitive records sharing one shape.
type Span struct {
	Shape scene.PrimitiveShape
	First int
	Count int
}

// records is the encoded content of one category.
type records struct {
	data  []byte
	count int
	spans []Span
}

type marshaler interface {
	MarshalTo(buf []byte)
}

func encode[T marshaler](items []T, stride int) records {
	buf := make([]byte, len(items)*stride)
	for i := range items {
		items[i].MarshalTo(buf[i*stride:])
	}
	return records{data: buf, count: len(items)}
}

var (
	axisColors = [3][4]float32{{1, 0, 0, 1}, {0, 1, 0, 1}, {0, 0, 1, 1}}
	boxColor   = [4]float32{0.6, 0.6, 0.6, 1}
)

// enabled reports whether the capability flags allow category c at all.
func enabled(caps scene.Capabilities, style scene.Style, c Category) bool {
	switch c {
	case CategoryAtoms, CategorySelectedAtoms:
		return caps.Atoms
	case CategoryInternalSingleBonds, CategoryInternalDoubleBonds, CategoryInternalTripleBonds,
		CategoryExternalSingleBonds, CategoryExternalDoubleBonds, CategoryExternalTripleBonds,
		CategorySelectedBonds:
		return caps.Atoms && caps.Bonds
	case CategoryUnitCellSpheres, CategoryUnitCellCylinders:
		return caps.UnitCell
	case CategoryLocalAxes:
		return style.LocalAxes
	case CategoryPrimitives, CategoryTransparentPrimitives, CategorySelectedPrimitives:
		return caps.Primitives
	case CategoryOpaqueIsosurface, CategoryTransparentIsosurface:
		return caps.Isosurface
	case CategoryGlyphs:
		return caps.Annotations
	}
	return false
}

// extract builds the instance records of category c for structure s.
func extract(s scene.Structure, c Category, glyphs GlyphLayout) records {
	style := s.Style()
	if !enabled(s.Capabilities(), style, c) {
		return records{}
	}

	switch c {
	case CategoryAtoms:
		return encode(atomInstances(s.Atoms(), style, false), gpu.AtomInstanceSize)
	case CategorySelectedAtoms:
		return encode(atomInstances(s.Atoms(), style, true), gpu.AtomInstanceSize)
	case CategoryInternalSingleBonds:
		return encode(bondInstances(s, style, bondFilter(false, scene.BondSingle)), gpu.BondInstanceSize)
	case CategoryInternalDoubleBonds:
		return encode(bondInstances(s, style, bondFilter(false, scene.BondDouble)), gpu.BondInstanceSize)
	case CategoryInternalTripleBonds:
		return encode(bondInstances(s, style, bondFilter(false, scene.BondTriple)), gpu.BondInstanceSize)
	case CategoryExternalSingleBonds:
		return encode(bondInstances(s, style, bondFilter(true, scene.BondSingle)), gpu.BondInstanceSize)
	case CategoryExternalDoubleBonds:
		return encode(bondInstances(s, style, bondFilter(true, scene.BondDouble)), gpu.BondInstanceSize)
	case CategoryExternalTripleBonds:
		return encode(bondInstances(s, style, bondFilter(true, scene.BondTriple)), gpu.BondInstanceSize)
	case CategorySelectedBonds:
		return encode(bondInstances(s, style, func(b scene.Bond) bool { return b.Selected }), gpu.BondInstanceSize)
	case CategoryUnitCellSpheres:
		corners := scene.UnitCellCorners(s.Transform().Box)
		return encode(cornerSpheres(corners, style.BondRadius, style.UnitCellColor), gpu.AtomInstanceSize)
	case CategoryUnitCellCylinders:
		corners := scene.UnitCellCorners(s.Transform().Box)
		return encode(edgeCylinders(corners, style.BondRadius, style.UnitCellColor), gpu.BondInstanceSize)
	case CategoryLocalAxes:
		return encode(localAxes(s.Transform().Box, style.BondRadius), gpu.BondInstanceSize)
	case CategoryPrimitives:
		return primitiveRecords(s.Primitives(), func(p scene.Primitive) bool { return p.Opaque() })
	case CategoryTransparentPrimitives:
		return primitiveRecords(s.Primitives(), func(p scene.Primitive) bool { return !p.Opaque() })
	case CategorySelectedPrimitives:
		return primitiveRecords(s.Primitives(), func(p scene.Primitive) bool { return p.Selected })
	case CategoryOpaqueIsosurface, CategoryTransparentIsosurface:
		surface := s.Isosurface()
		if surface.Opaque() != (c == CategoryOpaqueIsosurface) {
			return records{}
		}
		return encode(surfaceVertices(surface), gpu.SurfaceVertexSize)
	case CategoryGlyphs:
		if glyphs == nil {
			return records{}
		}
		var out []gpu.GlyphInstance
		for _, a := range s.Annotations() {
			out = append(out, glyphs.Layout(a)...)
		}
		return encode(pointers(out), gpu.GlyphInstanceSize)
	}
	return records{}
}

// pointers adapts a value slice to the pointer-receiver MarshalTo methods.
func pointers[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}

func atomInstances(atoms []scene.Atom, style scene.Style, selectedOnly bool) []*gpu.AtomInstance {
	out := make([]*gpu.AtomInstance, 0, len(atoms))
	for i, a := range atoms {
		if selectedOnly && !a.Selected {
			continue
		}
		color := a.Color
		if style.ColorAtomsWithBondColor {
			color = style.BondColor
		}
		inst := &gpu.AtomInstance{
			Position: a.Position,
			Radius:   a.Radius,
			Color:    color,
			Tag:      uint32(i),
		}
		if a.Selected {
			inst.Flags |= gpu.AtomFlagSelected
		}
		out = append(out, inst)
	}
	return out
}

func bondFilter(external bool, order scene.BondOrder) func(scene.Bond) bool {
	return func(b scene.Bond) bool {
		o := common.Clamp(b.Order, scene.BondSingle, scene.BondTriple)
		return b.External == external && o == order
	}
}

// bondInstances emits one record per bond that passes keep. The tag is the bond's index in
// s.Bonds(), so a picked bond resolves to one bond whatever category drew it. Bonds referencing
// missing atoms are skipped.
func bondInstances(s scene.Structure, style scene.Style, keep func(scene.Bond) bool) []*gpu.BondInstance {
	atoms := s.Atoms()
	var out []*gpu.BondInstance
	for i, b := range s.Bonds() {
		if !keep(b) || b.Atom1 < 0 || b.Atom2 < 0 || b.Atom1 >= len(atoms) || b.Atom2 >= len(atoms) {
			continue
		}
		a1, a2 := atoms[b.Atom1], atoms[b.Atom2]
		c1, c2 := a1.Color, a2.Color
		if style.BondColorMode == scene.BondColorUniform {
			c1, c2 = style.BondColor, style.BondColor
		}
		inst := &gpu.BondInstance{
			P1:     a1.Position,
			Radius: style.BondRadius,
			P2:     a2.Position.Add(b.Offset),
			Tag:    uint32(i),
			Color1: c1,
			Color2: c2,
			Order:  uint32(common.Clamp(b.Order, scene.BondSingle, scene.BondTriple)),
		}
		if b.External {
			inst.Flags |= gpu.BondFlagExternal
		}
		out = append(out, inst)
	}
	return out
}

func cornerSpheres(corners [8]mgl32.Vec3, radius float32, color [4]float32) []*gpu.AtomInstance {
	out := make([]*gpu.AtomInstance, len(corners))
	for i, c := range corners {
		out[i] = &gpu.AtomInstance{Position: c, Radius: radius, Color: color, Tag: uint32(i)}
	}
	return out
}

func edgeCylinders(corners [8]mgl32.Vec3, radius float32, color [4]float32) []*gpu.BondInstance {
	out := make([]*gpu.BondInstance, len(scene.BoxEdges))
	for i, e := range scene.BoxEdges {
		out[i] = &gpu.BondInstance{
			P1:     corners[e[0]],
			P2:     corners[e[1]],
			Radius: radius,
			Tag:    uint32(i),
			Color1: color,
			Color2: color,
			Order:  uint32(scene.BondSingle),
		}
	}
	return out
}

func localAxes(box [16]float32, radius float32) []*gpu.BondInstance {
	origin := mgl32.Vec3{box[12], box[13], box[14]}
	out := make([]*gpu.BondInstance, 3)
	for axis := range 3 {
		dir := mgl32.Vec3{box[axis*4], box[axis*4+1], box[axis*4+2]}
		out[axis] = &gpu.BondInstance{
			P1:     origin,
			P2:     origin.Add(dir),
			Radius: radius,
			Tag:    uint32(axis),
			Color1: axisColors[axis],
			Color2: axisColors[axis],
			Order:  uint32(scene.BondSingle),
		}
	}
	return out
}

// primitiveRecords encodes the primitives accepted by keep, grouped by shape so each shape
// can be drawn with its own mesh over a contiguous instance range.
func primitiveRecords(primitives []scene.Primitive, keep func(scene.Primitive) bool) records {
	type tagged struct {
		tag int
		p   scene.Primitive
	}
	var kept []tagged
	for i, p := range primitives {
		if keep(p) {
			kept = append(kept, tagged{tag: i, p: p})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].p.Shape < kept[j].p.Shape })

	items := make([]*gpu.PrimitiveInstance, len(kept))
	var spans []Span
	for i, k := range kept {
		var flags uint32
		if k.p.Crystal {
			flags |= gpu.PrimitiveFlagCrystal
		}
		q := k.p.Orientation
		if q.Len() == 0 {
			q = mgl32.QuatIdent()
		}
		items[i] = &gpu.PrimitiveInstance{
			Position:    k.p.Position,
			Shape:       uint32(k.p.Shape),
			Scale:       k.p.Scale,
			Flags:       flags,
			Orientation: [4]float32{q.V[0], q.V[1], q.V[2], q.W},
			Color:       k.p.Color,
			Tag:         uint32(k.tag),
		}
		if len(spans) == 0 || spans[len(spans)-1].Shape != k.p.Shape {
			spans = append(spans, Span{Shape: k.p.Shape, First: i})
		}
		spans[len(spans)-1].Count++
	}
	r := encode(items, gpu.PrimitiveInstanceSize)
	r.spans = spans
	return r
}

func surfaceVertices(surface scene.Isosurface) []*gpu.SurfaceVertex {
	n := len(surface.Vertices) / 3 * 3
	out := make([]*gpu.SurfaceVertex, n)
	for i := range n {
		v := surface.Vertices[i]
		out[i] = &gpu.SurfaceVertex{Position: v.Position, Normal: v.Normal, Color: surface.Color}
	}
	return out
}

// boundingBoxRecords builds the global corner spheres and edge cylinders of the render bounding box.
func boundingBoxRecords(b scene.Bounds) (spheres, cylinders records) {
	corners := b.Corners()
	radius := max(b.Radius()*0.004, 0.01)
	return encode(cornerSpheres(corners, radius, boxColor), gpu.AtomInstanceSize),
		encode(edgeCylinders(corners, radius, boxColor), gpu.BondInstanceSize)
}
