package renderer

import (
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/pipeline"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// varyings are the interpolated outputs of a software vertex stage.
type varyings struct {
	world  mgl32.Vec3
	normal mgl32.Vec3
	view   mgl32.Vec3 // view-space position
	color  mgl32.Vec4
	color2 mgl32.Vec4
	uv     mgl32.Vec2
	along  float32
}

func (v varyings) mix(o varyings, t float32) varyings {
	return varyings{
		world:  v.world.Add(o.world.Sub(v.world).Mul(t)),
		normal: v.normal.Add(o.normal.Sub(v.normal).Mul(t)),
		view:   v.view.Add(o.view.Sub(v.view).Mul(t)),
		color:  v.color.Add(o.color.Sub(v.color).Mul(t)),
		color2: v.color2.Add(o.color2.Sub(v.color2).Mul(t)),
		uv:     v.uv.Add(o.uv.Sub(v.uv).Mul(t)),
		along:  v.along + (o.along-v.along)*t,
	}
}

func weigh(a, b, c varyings, w0, w1, w2 float32) varyings {
	return varyings{
		world:  a.world.Mul(w0).Add(b.world.Mul(w1)).Add(c.world.Mul(w2)),
		normal: a.normal.Mul(w0).Add(b.normal.Mul(w1)).Add(c.normal.Mul(w2)),
		view:   a.view.Mul(w0).Add(b.view.Mul(w1)).Add(c.view.Mul(w2)),
		color:  a.color.Mul(w0).Add(b.color.Mul(w1)).Add(c.color.Mul(w2)),
		color2: a.color2.Mul(w0).Add(b.color2.Mul(w1)).Add(c.color2.Mul(w2)),
		uv:     a.uv.Mul(w0).Add(b.uv.Mul(w1)).Add(c.uv.Mul(w2)),
		along:  a.along*w0 + b.along*w1 + c.along*w2,
	}
}

type vertexOut struct {
	clip mgl32.Vec4
	v    varyings
}

// fragmentOut is what a software fragment stage produces. Color programs fill color, picking
// programs fill id. hasDepth replaces the interpolated depth.
type fragmentOut struct {
	color    mgl32.Vec4
	id       [4]uint32
	depth    float32
	hasDepth bool
}

// rasterTarget receives the shaded fragments of one draw and applies the fixed function state.
type rasterTarget interface {
	size() (int, int)
	write(p pipeline.Pipeline, i int, z float32, f fragmentOut)
}

type screenVertex struct {
	x, y, z float32
	invW    float32
	v       varyings
}

// rasterizer scan converts clip-space triangles with perspective-correct interpolation.
// Pixel centers are sampled at half-integer coordinates and shared edges follow the top-left rule.
type rasterizer struct {
	width  int
	height int
	cull   wgpu.CullMode
}

func (r rasterizer) triangle(tri [3]vertexOut, fn func(x, y int, z float32, v varyings, front bool)) {
	poly := clipNear(tri[:])
	for i := 1; i+1 < len(poly); i++ {
		r.fill(poly[0], poly[i], poly[i+1], fn)
	}
}

// clipNear clips a polygon against the z >= 0 plane of the WebGPU clip volume.
func clipNear(in []vertexOut) []vertexOut {
	out := make([]vertexOut, 0, len(in)+1)
	for i := range in {
		a, b := in[i], in[(i+1)%len(in)]
		aIn, bIn := a.clip[2] >= 0, b.clip[2] >= 0
		if aIn {
			out = append(out, a)
		}
		if aIn != bIn {
			t := a.clip[2] / (a.clip[2] - b.clip[2])
			out = append(out, vertexOut{clip: a.clip.Add(b.clip.Sub(a.clip).Mul(t)), v: a.v.mix(b.v, t)})
		}
	}
	return out
}

func edge(a, b screenVertex, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

func topLeft(a, b screenVertex) bool {
	dy := b.y - a.y
	return (dy == 0 && b.x > a.x) || dy < 0
}

func (r rasterizer) project(v vertexOut) screenVertex {
	invW := 1 / v.clip[3]
	return screenVertex{
		x:    (v.clip[0]*invW*0.5 + 0.5) * float32(r.width),
		y:    (0.5 - v.clip[1]*invW*0.5) * float32(r.height),
		z:    v.clip[2] * invW,
		invW: invW,
		v:    v.v,
	}
}

func (r rasterizer) fill(a, b, c vertexOut, fn func(x, y int, z float32, v varyings, front bool)) {
	if a.clip[3] <= 0 || b.clip[3] <= 0 || c.clip[3] <= 0 {
		return
	}
	p := [3]screenVertex{r.project(a), r.project(b), r.project(c)}
	area := edge(p[0], p[1], p[2].x, p[2].y)
	if area == 0 || math32.IsNaN(area) {
		return
	}
	// screen y points down: counter-clockwise in NDC has negative area here
	front := area < 0
	if (r.cull == wgpu.CullModeBack && !front) || (r.cull == wgpu.CullModeFront && front) {
		return
	}
	if area < 0 {
		p[1], p[2] = p[2], p[1]
		area = -area
	}

	minX := max(int(math32.Floor(min(p[0].x, p[1].x, p[2].x))), 0)
	maxX := min(int(math32.Ceil(max(p[0].x, p[1].x, p[2].x))), r.width-1)
	minY := max(int(math32.Floor(min(p[0].y, p[1].y, p[2].y))), 0)
	maxY := min(int(math32.Ceil(max(p[0].y, p[1].y, p[2].y))), r.height-1)

	inside := func(e float32, from, to screenVertex) bool {
		return e > 0 || (e == 0 && topLeft(from, to))
	}
	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5
			e0 := edge(p[1], p[2], px, py)
			e1 := edge(p[2], p[0], px, py)
			e2 := edge(p[0], p[1], px, py)
			if !inside(e0, p[1], p[2]) || !inside(e1, p[2], p[0]) || !inside(e2, p[0], p[1]) {
				continue
			}
			w0, w1, w2 := e0/area, e1/area, e2/area
			z := w0*p[0].z + w1*p[1].z + w2*p[2].z
			if z < 0 || z > 1 {
				continue
			}
			q0, q1, q2 := w0*p[0].invW, w1*p[1].invW, w2*p[2].invW
			s := q0 + q1 + q2
			fn(x, y, z, weigh(p[0].v, p[1].v, p[2].v, q0/s, q1/s, q2/s), front)
		}
	}
}

// colorTarget is a float RGBA attachment with the shared scene depth and stencil buffers.
// depth is nil for post targets. The depth test is LessEqual so overlays of the same geometry pass.
type colorTarget struct {
	width, height int
	color         []mgl32.Vec4
	depth         []float32
	stencil       []uint8
	stencilRef    uint8
}

func (t *colorTarget) size() (int, int) { return t.width, t.height }

func (t *colorTarget) write(p pipeline.Pipeline, i int, z float32, f fragmentOut) {
	if f.hasDepth {
		z = f.depth
	}
	if t.depth != nil && p.DepthTestEnabled() && !(z <= t.depth[i]) {
		return
	}
	switch p.Stencil() {
	case pipeline.StencilTest:
		if t.stencil[i] < t.stencilRef {
			return
		}
	case pipeline.StencilWrite:
		t.stencil[i] = t.stencilRef
	}
	if t.depth != nil && p.DepthWriteEnabled() {
		t.depth[i] = z
	}
	if p.WriteMask() == wgpu.ColorWriteMaskNone {
		return
	}
	if p.BlendEnabled() {
		t.color[i] = blend(p.BlendState(), f.color, t.color[i])
		return
	}
	t.color[i] = f.color
}

// pickTarget is the RGBA32Uint id attachment with its own depth buffer.
type pickTarget struct {
	width, height int
	ids           [][4]uint32
	depth         []float32
}

func (t *pickTarget) size() (int, int) { return t.width, t.height }

func (t *pickTarget) write(p pipeline.Pipeline, i int, z float32, f fragmentOut) {
	if f.hasDepth {
		z = f.depth
	}
	if !(z < t.depth[i]) {
		return
	}
	t.depth[i] = z
	t.ids[i] = f.id
}

// depthTarget is a depth-only attachment, the shadow map of the occlusion bake.
type depthTarget struct {
	width, height int
	depth         []float32
}

func (t *depthTarget) size() (int, int) { return t.width, t.height }

func (t *depthTarget) write(p pipeline.Pipeline, i int, z float32, _ fragmentOut) {
	if z < t.depth[i] {
		t.depth[i] = z
	}
}

func blend(state *wgpu.BlendState, src, dst mgl32.Vec4) mgl32.Vec4 {
	if state == nil {
		return src
	}
	var out mgl32.Vec4
	for c := range 3 {
		out[c] = blendComponent(state.Color, src[c], dst[c], src[3], dst[3])
	}
	out[3] = blendComponent(state.Alpha, src[3], dst[3], src[3], dst[3])
	return out
}

func blendComponent(c wgpu.BlendComponent, src, dst, srcAlpha, dstAlpha float32) float32 {
	s := src * blendFactor(c.SrcFactor, srcAlpha, dstAlpha)
	d := dst * blendFactor(c.DstFactor, srcAlpha, dstAlpha)
	switch c.Operation {
	case wgpu.BlendOperationSubtract:
		return s - d
	case wgpu.BlendOperationReverseSubtract:
		return d - s
	case wgpu.BlendOperationMin:
		return min(src, dst)
	case wgpu.BlendOperationMax:
		return max(src, dst)
	}
	return s + d
}

func blendFactor(f wgpu.BlendFactor, srcAlpha, dstAlpha float32) float32 {
	switch f {
	case wgpu.BlendFactorZero:
		return 0
	case wgpu.BlendFactorSrcAlpha:
		return srcAlpha
	case wgpu.BlendFactorOneMinusSrcAlpha:
		return 1 - srcAlpha
	case wgpu.BlendFactorDstAlpha:
		return dstAlpha
	case wgpu.BlendFactorOneMinusDstAlpha:
		return 1 - dstAlpha
	}
	return 1
}
