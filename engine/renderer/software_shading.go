package renderer

import (
	"image"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/model"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// The CPU stages below evaluate the entry points of the WGSL modules in shader/assets.
// They are keyed like shader.Shader.Key: "<module>.<entry>".

var lightDir = mgl32.Vec3{0.3, 0.4, 1}.Normalize()

const (
	selectionWorley  = uint32(scene.SelectionWorleyNoise3D)
	selectionStriped = uint32(scene.SelectionStriped)

	bondColorSplit    = uint32(scene.BondColorSplit)
	bondColorSmoothed = uint32(scene.BondColorSmoothedSplit)

	occlusionDepthBias = 0.002
)

// occlusionTexture is the live R16Float occlusion texture of one structure, widened to float32.
type occlusionTexture struct {
	size   int
	texels []float32
}

// sample filters bilinearly with clamp-to-edge addressing.
func (t *occlusionTexture) sample(uv mgl32.Vec2) float32 {
	x := uv[0]*float32(t.size) - 0.5
	y := uv[1]*float32(t.size) - 0.5
	x0, y0 := math32.Floor(x), math32.Floor(y)
	fx, fy := x-x0, y-y0
	at := func(i, j int) float32 {
		i = common.Clamp(i, 0, t.size-1)
		j = common.Clamp(j, 0, t.size-1)
		return t.texels[j*t.size+i]
	}
	ix, iy := int(x0), int(y0)
	top := at(ix, iy)*(1-fx) + at(ix+1, iy)*fx
	bottom := at(ix, iy+1)*(1-fx) + at(ix+1, iy+1)*fx
	return top*(1-fy) + bottom*fy
}

// drawContext is the bound state of one software draw: the uniforms, the decoded instance
// records of its module and the textures of group 1.
type drawContext struct {
	frame    gpu.FrameUniforms
	s        indexer.StructureUniforms
	shadow   gpu.ShadowUniforms
	viewProj [16]float32
	viewMod  [16]float32

	atoms      []gpu.AtomInstance
	bonds      []gpu.BondInstance
	primitives []gpu.PrimitiveInstance
	surface    []gpu.SurfaceVertex
	glyphs     []gpu.GlyphInstance

	ao    *occlusionTexture
	atlas *image.Alpha
}

func newDrawContext(frame gpu.FrameUniforms, s indexer.StructureUniforms) *drawContext {
	return &drawContext{
		frame:    frame,
		s:        s,
		viewProj: common.Mul4(frame.Projection, frame.View),
		viewMod:  common.Mul4(frame.View, s.Model),
	}
}

type vertexStage func(c *drawContext, inst, index int, v model.Vertex) vertexOut

type fragmentStage func(c *drawContext, inst int, v varyings, front bool) (fragmentOut, bool)

var softwareVertexStages = map[string]vertexStage{
	"atoms.vs_sphere": func(c *drawContext, inst, _ int, v model.Vertex) vertexOut {
		return c.sphere(v, c.atoms[inst], 1)
	},
	"atoms.vs_sphere_selection": func(c *drawContext, inst, _ int, v model.Vertex) vertexOut {
		return c.sphere(v, c.atoms[inst], c.s.SelectionScaling)
	},
	"atoms.vs_impostor": func(c *drawContext, inst, _ int, v model.Vertex) vertexOut {
		return c.impostor(v, c.atoms[inst])
	},
	"bonds.vs_bond": func(c *drawContext, inst, _ int, v model.Vertex) vertexOut {
		return c.cylinder(v, c.bonds[inst], 1)
	},
	"bonds.vs_bond_selection": func(c *drawContext, inst, _ int, v model.Vertex) vertexOut {
		return c.cylinder(v, c.bonds[inst], c.s.BondSelectionScaling)
	},
	"primitives.vs_primitive": func(c *drawContext, inst, _ int, v model.Vertex) vertexOut {
		return c.place(v, c.primitives[inst], 1)
	},
	"primitives.vs_primitive_selection": func(c *drawContext, inst, _ int, v model.Vertex) vertexOut {
		return c.place(v, c.primitives[inst], c.s.SelectionScaling)
	},
	"isosurface.vs_surface": func(c *drawContext, _, index int, _ model.Vertex) vertexOut {
		return c.surfaceVertex(c.surface[index])
	},
	"text.vs_glyph": func(c *drawContext, inst, _ int, v model.Vertex) vertexOut {
		return c.glyph(v, c.glyphs[inst])
	},
	"stencil.vs_box": func(c *drawContext, _, _ int, v model.Vertex) vertexOut {
		world := common.TransformPoint(common.Mul4(c.s.Model, c.s.Box), v.Position).Vec3()
		return vertexOut{clip: common.TransformPoint(c.viewProj, world)}
	},
	"shadow.vs_shadow": func(c *drawContext, inst, _ int, v model.Vertex) vertexOut {
		a := c.atoms[inst]
		radius := a.Radius * c.s.AtomScale
		local := mgl32.Vec3(a.Position).Add(mgl32.Vec3(v.Position).Mul(radius))
		world := common.TransformPoint(common.Mul4(c.shadow.Rotation, c.s.Model), local).Vec3()
		return vertexOut{clip: common.TransformPoint(common.Mul4(c.shadow.Projection, c.shadow.View), world)}
	},
}

var softwareFragmentStages = map[string]fragmentStage{
	"atoms.fs_atom": func(c *drawContext, inst int, v varyings, _ bool) (fragmentOut, bool) {
		if c.s.Flags&indexer.FlagClipAtoms != 0 && c.outsideClip(v.world) {
			return fragmentOut{}, false
		}
		return fragmentOut{color: c.atomColor(v, c.atoms[inst].Tag, v.normal.Normalize(), v.view)}, true
	},
	"atoms.fs_impostor": func(c *drawContext, inst int, v varyings, _ bool) (fragmentOut, bool) {
		return c.impostorFragment(inst, v)
	},
	"atoms.fs_flat": func(c *drawContext, _ int, v varyings, _ bool) (fragmentOut, bool) {
		rgb := c.light(vec3(c.s.UnitCellColor), c.viewNormal(v.normal.Normalize()), v.view)
		return fragmentOut{color: rgb.Vec4(c.s.UnitCellColor[3])}, true
	},
	"atoms.fs_atom_selection": func(c *drawContext, _ int, v varyings, _ bool) (fragmentOut, bool) {
		coverage := c.selectionPattern(v.world)
		rgb := v.color.Vec3().Mul(c.s.AtomSelectionIntensity * coverage)
		return fragmentOut{color: rgb.Vec4(coverage)}, true
	},
	"atoms.fs_glow": func(c *drawContext, _ int, v varyings, _ bool) (fragmentOut, bool) {
		return fragmentOut{color: v.color.Vec3().Mul(c.s.AtomSelectionIntensity).Vec4(1)}, true
	},
	"atoms.fs_pick_atom": func(c *drawContext, inst int, _ varyings, _ bool) (fragmentOut, bool) {
		return fragmentOut{id: c.pickID(1, c.atoms[inst].Tag)}, true
	},
	"bonds.fs_bond": func(c *drawContext, _ int, v varyings, _ bool) (fragmentOut, bool) {
		if c.s.Flags&indexer.FlagClipBonds != 0 && c.outsideClip(v.world) {
			return fragmentOut{}, false
		}
		base := c.bondBaseColor(v)
		rgb := adjustColor(base.Vec3(), c.s.BondHSV, c.s.Flags&indexer.FlagBondHDR != 0)
		rgb = c.light(rgb, c.viewNormal(v.normal.Normalize()), v.view)
		return fragmentOut{color: rgb.Vec4(base[3])}, true
	},
	"bonds.fs_bond_selection": func(c *drawContext, _ int, v varyings, _ bool) (fragmentOut, bool) {
		coverage := c.selectionPattern(v.world)
		rgb := c.bondBaseColor(v).Vec3().Mul(c.s.BondSelectionIntensity * coverage)
		return fragmentOut{color: rgb.Vec4(coverage)}, true
	},
	"bonds.fs_glow": func(c *drawContext, _ int, v varyings, _ bool) (fragmentOut, bool) {
		return fragmentOut{color: c.bondBaseColor(v).Vec3().Mul(c.s.BondSelectionIntensity).Vec4(1)}, true
	},
	"bonds.fs_pick_internal_bond": func(c *drawContext, inst int, _ varyings, _ bool) (fragmentOut, bool) {
		return fragmentOut{id: c.pickID(2, c.bonds[inst].Tag)}, true
	},
	"bonds.fs_pick_external_bond": func(c *drawContext, inst int, _ varyings, _ bool) (fragmentOut, bool) {
		return fragmentOut{id: c.pickID(3, c.bonds[inst].Tag)}, true
	},
	"primitives.fs_primitive": func(c *drawContext, _ int, v varyings, _ bool) (fragmentOut, bool) {
		rgb := c.light(v.color.Vec3(), c.viewNormal(v.normal.Normalize()), v.view)
		return fragmentOut{color: rgb.Vec4(v.color[3])}, true
	},
	"primitives.fs_primitive_transparent": func(c *drawContext, _ int, v varyings, front bool) (fragmentOut, bool) {
		n := v.normal.Normalize()
		base := v.color.Vec3()
		if !front {
			n = n.Mul(-1)
			back := vec3(c.s.PrimitiveBackColor)
			base = mgl32.Vec3{base[0] * back[0], base[1] * back[1], base[2] * back[2]}
		}
		rgb := c.light(base, c.viewNormal(n), v.view)
		return fragmentOut{color: rgb.Vec4(v.color[3] * c.s.PrimitiveOpacity)}, true
	},
	"primitives.fs_primitive_selection": func(c *drawContext, _ int, v varyings, _ bool) (fragmentOut, bool) {
		coverage := c.selectionPattern(v.world)
		return fragmentOut{color: v.color.Vec3().Mul(c.s.AtomSelectionIntensity * coverage).Vec4(coverage)}, true
	},
	"isosurface.fs_surface_opaque": func(c *drawContext, _ int, v varyings, _ bool) (fragmentOut, bool) {
		rgb := c.light(v.color.Vec3(), c.viewNormal(v.normal.Normalize()), v.view)
		return fragmentOut{color: rgb.Vec4(1)}, true
	},
	"isosurface.fs_surface_transparent": func(c *drawContext, _ int, v varyings, front bool) (fragmentOut, bool) {
		n := v.normal.Normalize()
		if !front {
			n = n.Mul(-1)
		}
		rgb := c.light(v.color.Vec3(), c.viewNormal(n), v.view)
		return fragmentOut{color: rgb.Vec4(v.color[3])}, true
	},
	"text.fs_glyph": func(c *drawContext, _ int, v varyings, _ bool) (fragmentOut, bool) {
		coverage := sampleAlpha(c.atlas, v.uv)
		if coverage <= 0 {
			return fragmentOut{}, false
		}
		return fragmentOut{color: v.color.Vec3().Vec4(v.color[3] * coverage)}, true
	},
	"stencil.fs_box": func(*drawContext, int, varyings, bool) (fragmentOut, bool) {
		return fragmentOut{}, true
	},
}

func vec3(v [4]float32) mgl32.Vec3 {
	return mgl32.Vec3{v[0], v[1], v[2]}
}

func (c *drawContext) pickID(kind uint32, tag uint32) [4]uint32 {
	return [4]uint32{kind, uint32(c.s.SceneID), uint32(c.s.FlatIndex), tag}
}

func (c *drawContext) viewPosition(world mgl32.Vec3) mgl32.Vec3 {
	return common.TransformPoint(c.frame.View, world).Vec3()
}

func (c *drawContext) viewNormal(n mgl32.Vec3) mgl32.Vec3 {
	return common.TransformDirection(c.viewMod, n).Normalize()
}

func (c *drawContext) sphere(v model.Vertex, a gpu.AtomInstance, scale float32) vertexOut {
	radius := a.Radius * c.s.AtomScale * scale
	local := mgl32.Vec3(a.Position).Add(mgl32.Vec3(v.Position).Mul(radius))
	world := common.TransformPoint(c.s.Model, local).Vec3()
	return vertexOut{
		clip: common.TransformPoint(c.viewProj, world),
		v: varyings{
			world:  world,
			normal: v.Normal,
			view:   c.viewPosition(world),
			color:  a.Color,
		},
	}
}

// atomCenter returns the view-space center and scaled radius of an atom.
func (c *drawContext) atomCenter(a gpu.AtomInstance) (mgl32.Vec3, float32) {
	world := common.TransformPoint(c.s.Model, a.Position).Vec3()
	return c.viewPosition(world), a.Radius * c.s.AtomScale
}

func (c *drawContext) impostor(v model.Vertex, a gpu.AtomInstance) vertexOut {
	center, radius := c.atomCenter(a)
	p := center.Add(mgl32.Vec3{v.Position[0] * radius * 1.5, v.Position[1] * radius * 1.5, radius})
	return vertexOut{
		clip: common.TransformPoint(c.frame.Projection, p),
		v: varyings{
			world:  common.TransformPoint(c.s.Model, a.Position).Vec3(),
			normal: mgl32.Vec3{0, 0, 1},
			view:   p,
			color:  a.Color,
		},
	}
}

// transposeRotate applies the transpose of the upper 3x3 of m to v.
func transposeRotate(m [16]float32, v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2],
	}
}

func (c *drawContext) impostorFragment(inst int, v varyings) (fragmentOut, bool) {
	if c.s.Flags&indexer.FlagClipAtoms != 0 && c.outsideClip(v.world) {
		return fragmentOut{}, false
	}
	a := c.atoms[inst]
	center, radius := c.atomCenter(a)
	origin := mgl32.Vec3{}
	dir := v.view.Normalize()
	if c.frame.Orthographic {
		origin = mgl32.Vec3{v.view[0], v.view[1], 0}
		dir = mgl32.Vec3{0, 0, -1}
	}
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	disc := b*b - (oc.Dot(oc) - radius*radius)
	if disc < 0 {
		return fragmentOut{}, false
	}
	hit := origin.Add(dir.Mul(-b - math32.Sqrt(disc)))
	nView := hit.Sub(center).Mul(1 / radius)
	nModel := transposeRotate(c.s.Model, transposeRotate(c.frame.View, nView)).Normalize()
	clip := common.TransformPoint(c.frame.Projection, hit)
	return fragmentOut{
		color:    c.atomColor(v, a.Tag, nModel, hit),
		depth:    clip[2] / clip[3],
		hasDepth: true,
	}, true
}

func (c *drawContext) atomColor(v varyings, tag uint32, nModel, pView mgl32.Vec3) mgl32.Vec4 {
	rgb := adjustColor(v.color.Vec3(), c.s.AtomHSV, c.s.Flags&indexer.FlagAtomHDR != 0)
	rgb = c.light(rgb, c.viewNormal(nModel), pView).Mul(c.ambientOcclusion(tag, nModel))
	return rgb.Vec4(v.color[3])
}

func (c *drawContext) ambientOcclusion(tag uint32, nModel mgl32.Vec3) float32 {
	if c.s.Flags&indexer.FlagAmbientOcclusion == 0 || c.s.AOPatchCount <= 0 || c.ao == nil {
		return 1
	}
	return common.Clamp(c.ao.sample(c.aoUV(tag, nModel)), 0, 1)
}

func (c *drawContext) aoUV(tag uint32, nModel mgl32.Vec3) mgl32.Vec2 {
	count := uint32(max(c.s.AOPatchCount, 1))
	cell := mgl32.Vec2{float32(tag % count), float32(tag / count)}
	border := 0.5 / max(c.s.AOPatchSize, 1)
	e := octahedralEncode(nModel)
	inner := mgl32.Vec2{common.Clamp(e[0], border, 1-border), common.Clamp(e[1], border, 1-border)}
	return cell.Add(inner).Mul(c.s.AOPatchSize * c.s.AOInverseTextureSize)
}

func (c *drawContext) light(color, nView, pView mgl32.Vec3) mgl32.Vec3 {
	v := pView.Mul(-1).Normalize()
	if c.frame.Orthographic {
		v = mgl32.Vec3{0, 0, 1}
	}
	diffuse := max(nView.Dot(lightDir), 0)
	h := lightDir.Add(v).Normalize()
	specular := math32.Pow(max(nView.Dot(h), 0), 48)
	s := 0.25 * specular
	return color.Mul(0.25 + 0.75*diffuse).Add(mgl32.Vec3{s, s, s})
}

func (c *drawContext) outsideClip(p mgl32.Vec3) bool {
	for _, plane := range c.s.ClipPlanes {
		if vec3(plane).Dot(p)+plane[3] < 0 {
			return true
		}
	}
	return false
}

func (c *drawContext) selectionPattern(p mgl32.Vec3) float32 {
	if c.s.SelectionStyle == selectionStriped {
		s := math32.Sin((p[0]+p[1]+p[2])*c.s.StripesFrequency+c.frame.Time*2)*0.5 + 0.5
		if s < 1-c.s.StripesDensity {
			return 0
		}
		return 1
	}
	t := c.frame.Time * 0.25
	return c.worley(p.Mul(c.s.NoiseFrequency).Add(mgl32.Vec3{t, t, t}))
}

func (c *drawContext) worley(p mgl32.Vec3) float32 {
	cell := mgl32.Vec3{math32.Floor(p[0]), math32.Floor(p[1]), math32.Floor(p[2])}
	d := float32(1e9)
	for x := -1; x <= 1; x++ {
		for y := -1; y <= 1; y++ {
			for z := -1; z <= 1; z++ {
				n := cell.Add(mgl32.Vec3{float32(x), float32(y), float32(z)})
				jitter := mgl32.Vec3{hash3(n), hash3(n.Add(mgl32.Vec3{17, 17, 17})), hash3(n.Add(mgl32.Vec3{31, 31, 31}))}
				d = min(d, p.Sub(n.Add(jitter.Mul(c.s.NoiseJitter))).Len())
			}
		}
	}
	return common.Clamp(d, 0, 1)
}

func hash3(p mgl32.Vec3) float32 {
	return fract(math32.Sin(p.Dot(mgl32.Vec3{12.9898, 78.233, 37.719})) * 43758.5453)
}

func fract(x float32) float32 {
	return x - math32.Floor(x)
}

// bondBasis returns an orthonormal frame whose third axis points along d.
func bondBasis(d mgl32.Vec3) (u, v, w mgl32.Vec3) {
	w = mgl32.Vec3{0, 0, 1}
	if d.Len() > 1e-6 {
		w = d.Normalize()
	}
	a := mgl32.Vec3{1, 0, 0}
	if math32.Abs(w[0]) > 0.9 {
		a = mgl32.Vec3{0, 1, 0}
	}
	u = w.Cross(a).Normalize()
	v = w.Cross(u)
	return u, v, w
}

func (c *drawContext) cylinder(vtx model.Vertex, b gpu.BondInstance, scale float32) vertexOut {
	radius := b.Radius * c.s.BondScaling * scale
	p1 := mgl32.Vec3(b.P1)
	d := mgl32.Vec3(b.P2).Sub(p1)
	u, v, w := bondBasis(d)
	local := p1.Add(u.Mul(vtx.Position[0] * radius)).Add(v.Mul(vtx.Position[1] * radius)).Add(d.Mul(vtx.Position[2]))
	world := common.TransformPoint(c.s.Model, local).Vec3()
	return vertexOut{
		clip: common.TransformPoint(c.viewProj, world),
		v: varyings{
			world:  world,
			normal: u.Mul(vtx.Normal[0]).Add(v.Mul(vtx.Normal[1])).Add(w.Mul(vtx.Normal[2])),
			view:   c.viewPosition(world),
			color:  b.Color1,
			color2: b.Color2,
			along:  vtx.Position[2],
		},
	}
}

func (c *drawContext) bondBaseColor(v varyings) mgl32.Vec4 {
	switch c.s.BondColorMode {
	case bondColorSplit:
		if v.along < 0.5 {
			return v.color
		}
		return v.color2
	case bondColorSmoothed:
		t := smoothstep(0.4, 0.6, v.along)
		return v.color.Add(v.color2.Sub(v.color).Mul(t))
	}
	return v.color
}

func smoothstep(e0, e1, x float32) float32 {
	t := common.Clamp((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}

func quatRotate(q [4]float32, v mgl32.Vec3) mgl32.Vec3 {
	qv := mgl32.Vec3{q[0], q[1], q[2]}
	t := qv.Cross(v).Mul(2)
	return v.Add(t.Mul(q[3])).Add(qv.Cross(t))
}

func (c *drawContext) place(v model.Vertex, p gpu.PrimitiveInstance, scale float32) vertexOut {
	center := mgl32.Vec3(p.Position)
	if p.Flags&gpu.PrimitiveFlagCrystal != 0 {
		center = common.TransformPoint(c.s.Box, center).Vec3()
	}
	sized := mgl32.Vec3{v.Position[0] * p.Scale[0] * scale, v.Position[1] * p.Scale[1] * scale, v.Position[2] * p.Scale[2] * scale}
	local := center.Add(quatRotate(p.Orientation, sized))
	world := common.TransformPoint(c.s.Model, local).Vec3()
	n := mgl32.Vec3{v.Normal[0] / max(p.Scale[0], 1e-6), v.Normal[1] / max(p.Scale[1], 1e-6), v.Normal[2] / max(p.Scale[2], 1e-6)}
	return vertexOut{
		clip: common.TransformPoint(c.viewProj, world),
		v: varyings{
			world:  world,
			normal: quatRotate(p.Orientation, n),
			view:   c.viewPosition(world),
			color:  p.Color,
		},
	}
}

func (c *drawContext) surfaceVertex(sv gpu.SurfaceVertex) vertexOut {
	world := common.TransformPoint(c.s.Model, sv.Position).Vec3()
	return vertexOut{
		clip: common.TransformPoint(c.viewProj, world),
		v: varyings{
			normal: sv.Normal,
			view:   c.viewPosition(world),
			color:  sv.Color,
		},
	}
}

// glyph projects the anchor and offsets the quad corner in pixels, y pointing down.
func (c *drawContext) glyph(v model.Vertex, g gpu.GlyphInstance) vertexOut {
	world := common.TransformPoint(c.s.Model, g.Anchor).Vec3()
	anchor := common.TransformPoint(c.viewProj, world)
	px := g.Rect[0] + v.TexCoord[0]*g.Rect[2]
	py := g.Rect[1] + v.TexCoord[1]*g.Rect[3]
	ndcX := px * 2 / max(c.frame.Width, 1)
	ndcY := -py * 2 / max(c.frame.Height, 1)
	return vertexOut{
		clip: mgl32.Vec4{anchor[0] + ndcX*anchor[3], anchor[1] + ndcY*anchor[3], anchor[2], anchor[3]},
		v: varyings{
			uv: mgl32.Vec2{
				g.UV[0] + (g.UV[2]-g.UV[0])*v.TexCoord[0],
				g.UV[1] + (g.UV[3]-g.UV[1])*v.TexCoord[1],
			},
			color: g.Color,
		},
	}
}

// sampleAlpha reads the atlas with nearest filtering.
func sampleAlpha(img *image.Alpha, uv mgl32.Vec2) float32 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	x := b.Min.X + int(uv[0]*float32(b.Dx()))
	y := b.Min.Y + int(uv[1]*float32(b.Dy()))
	if x < b.Min.X || y < b.Min.Y || x >= b.Max.X || y >= b.Max.Y {
		return 0
	}
	return float32(img.AlphaAt(x, y).A) / 255
}

func rgbToHSV(c mgl32.Vec3) mgl32.Vec3 {
	mx := max(c[0], c[1], c[2])
	mn := min(c[0], c[1], c[2])
	d := mx - mn
	var h float32
	if d > 0 {
		switch mx {
		case c[0]:
			h = (c[1] - c[2]) / d
		case c[1]:
			h = 2 + (c[2]-c[0])/d
		default:
			h = 4 + (c[0]-c[1])/d
		}
		h = fract(h / 6)
	}
	var s float32
	if mx > 0 {
		s = d / mx
	}
	return mgl32.Vec3{h, s, mx}
}

func hsvToRGB(c mgl32.Vec3) mgl32.Vec3 {
	k := mgl32.Vec3{1, 2.0 / 3.0, 1.0 / 3.0}
	var out mgl32.Vec3
	for i := range 3 {
		p := math32.Abs(fract(c[0]+k[i])*6 - 3)
		out[i] = c[2] * (1 + (common.Clamp(p-1, 0, 1)-1)*c[1])
	}
	return out
}

// adjustColor shifts hue and scales saturation and value. hsv[3] is the exposure applied in HDR mode.
func adjustColor(c mgl32.Vec3, hsv [4]float32, hdr bool) mgl32.Vec3 {
	h := rgbToHSV(c)
	h[0] = fract(h[0] + hsv[0])
	h[1] = common.Clamp(h[1]*hsv[1], 0, 1)
	h[2] *= hsv[2]
	rgb := hsvToRGB(h)
	if hdr {
		rgb = rgb.Mul(hsv[3])
	}
	return rgb
}

func signNotZero(v float32) float32 {
	if v >= 0 {
		return 1
	}
	return -1
}

func octahedralEncode(n mgl32.Vec3) mgl32.Vec2 {
	l := math32.Abs(n[0]) + math32.Abs(n[1]) + math32.Abs(n[2])
	p := mgl32.Vec2{n[0] / l, n[1] / l}
	if n[2] < 0 {
		p = mgl32.Vec2{(1 - math32.Abs(p[1])) * signNotZero(p[0]), (1 - math32.Abs(p[0])) * signNotZero(p[1])}
	}
	return mgl32.Vec2{p[0]*0.5 + 0.5, p[1]*0.5 + 0.5}
}

func octahedralDecode(uv mgl32.Vec2) mgl32.Vec3 {
	e := mgl32.Vec2{uv[0]*2 - 1, uv[1]*2 - 1}
	n := mgl32.Vec3{e[0], e[1], 1 - math32.Abs(e[0]) - math32.Abs(e[1])}
	if n[2] < 0 {
		n = mgl32.Vec3{(1 - math32.Abs(n[1])) * signNotZero(n[0]), (1 - math32.Abs(n[0])) * signNotZero(n[1]), n[2]}
	}
	return n.Normalize()
}

// fullscreenStage evaluates a full-screen fragment entry at a pixel center.
type fullscreenStage func(b *softwareRendererBackend, uv mgl32.Vec2) mgl32.Vec4

var softwareFullscreenStages = map[string]fullscreenStage{
	"background.fs_background": func(b *softwareRendererBackend, uv mgl32.Vec2) mgl32.Vec4 {
		f := b.frameUniforms
		c1, c2 := mgl32.Vec4(f.Background1), mgl32.Vec4(f.Background2)
		switch scene.BackgroundType(f.BackgroundType) {
		case scene.BackgroundLinearGradient:
			return c1.Add(c2.Sub(c1).Mul(uv[1]))
		case scene.BackgroundRadialGradient:
			d := common.Clamp(uv.Sub(mgl32.Vec2{0.5, 0.5}).Len()*2, 0, 1)
			return c1.Add(c2.Sub(c1).Mul(d))
		}
		return c1
	},
	"post.fs_blur_horizontal": func(b *softwareRendererBackend, uv mgl32.Vec2) mgl32.Vec4 {
		return b.blur(b.targets[gpu.TargetGlow], uv, mgl32.Vec2{1 / float32(b.frameWidth), 0})
	},
	"post.fs_blur_vertical": func(b *softwareRendererBackend, uv mgl32.Vec2) mgl32.Vec4 {
		return b.blur(b.targets[gpu.TargetBlurHorizontal], uv, mgl32.Vec2{0, 1 / float32(b.frameHeight)})
	},
	"post.fs_composite": func(b *softwareRendererBackend, uv mgl32.Vec2) mgl32.Vec4 {
		s := b.sampleTarget(b.targets[gpu.TargetScene], uv)
		g := b.sampleTarget(b.targets[gpu.TargetBlurVertical], uv)
		return s.Vec3().Add(g.Vec3()).Vec4(1)
	},
}

var blurWeights = [5]float32{0.227027, 0.1945946, 0.1216216, 0.054054, 0.016216}

func (b *softwareRendererBackend) blur(src []mgl32.Vec4, uv, dir mgl32.Vec2) mgl32.Vec4 {
	spread := max(b.frameUniforms.GlowRadius, 1) / 4
	sum := b.sampleTarget(src, uv).Mul(blurWeights[0])
	for i := 1; i < len(blurWeights); i++ {
		offset := dir.Mul(float32(i) * spread)
		sum = sum.Add(b.sampleTarget(src, uv.Add(offset)).Mul(blurWeights[i]))
		sum = sum.Add(b.sampleTarget(src, uv.Sub(offset)).Mul(blurWeights[i]))
	}
	return sum
}

// sampleTarget filters a frame-sized color target bilinearly with clamp-to-edge addressing.
func (b *softwareRendererBackend) sampleTarget(src []mgl32.Vec4, uv mgl32.Vec2) mgl32.Vec4 {
	w, h := b.frameWidth, b.frameHeight
	x := uv[0]*float32(w) - 0.5
	y := uv[1]*float32(h) - 0.5
	x0, y0 := math32.Floor(x), math32.Floor(y)
	fx, fy := x-x0, y-y0
	at := func(i, j int) mgl32.Vec4 {
		return src[common.Clamp(j, 0, h-1)*w+common.Clamp(i, 0, w-1)]
	}
	ix, iy := int(x0), int(y0)
	top := at(ix, iy).Mul(1 - fx).Add(at(ix+1, iy).Mul(fx))
	bottom := at(ix, iy+1).Mul(1 - fx).Add(at(ix+1, iy+1).Mul(fx))
	return top.Mul(1 - fy).Add(bottom.Mul(fy))
}

// accumulateTexel evaluates the occlusion accumulation for one surface direction of an atom.
func accumulateTexel(c *drawContext, shadowMap *depthTarget, lightView, lightClip [16]float32, a gpu.AtomInstance, uv mgl32.Vec2) float32 {
	n := octahedralDecode(uv)
	radius := a.Radius * c.s.AtomScale
	p := mgl32.Vec3(a.Position).Add(n.Mul(radius))
	nLight := common.TransformDirection(lightView, n).Normalize()
	clip := common.TransformPoint(lightClip, p)
	ndc := clip.Vec3().Mul(1 / clip[3])
	size := float32(shadowMap.width)
	x := int(common.Clamp((ndc[0]*0.5+0.5)*size, 0, size-1))
	y := int(common.Clamp((0.5-ndc[1]*0.5)*size, 0, size-1))
	if ndc[2]-occlusionDepthBias <= shadowMap.depth[y*shadowMap.width+x] {
		return c.shadow.Weight * max(nLight[2], 0)
	}
	return 0
}
