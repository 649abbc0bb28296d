package renderer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/model"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/x448/float16"
)

// DefaultSoftwareShadowResolution caps the shadow map edge length of the software occlusion bake
// unless WithMaxShadowResolution says otherwise.
const DefaultSoftwareShadowResolution = 256

// SoftwareBackendOption configures NewSoftwareRendererBackend.
type SoftwareBackendOption func(*softwareRendererBackend)

// WithMaxShadowResolution sets the largest shadow map the software bake allocates. Requests above it
// are clamped. Values below 1 are ignored.
func WithMaxShadowResolution(resolution int) SoftwareBackendOption {
	return func(b *softwareRendererBackend) {
		if resolution > 0 {
			b.maxShadowResolution = resolution
		}
	}
}

var errFrameInProgress = errors.New("renderer: frame already in progress")

type softwareBuffer struct {
	label    string
	data     []byte
	count    int
	released bool
}

var _ gpu.Buffer = &softwareBuffer{}

func (b *softwareBuffer) Label() string { return b.label }
func (b *softwareBuffer) Len() int      { return len(b.data) }
func (b *softwareBuffer) Count() int    { return b.count }
func (b *softwareBuffer) Release() {
	b.released = true
	b.data = nil
}

type softwareBake struct {
	flat        int
	textureSize int
	accum       []float32
	shadowMap   *depthTarget
}

// softwareRendererBackend rasterises every program on the CPU. Its output is deterministic for a
// given scene and camera, which makes it the reference the tests compare against.
type softwareRendererBackend struct {
	mu *sync.Mutex

	pipelines []pipeline.Pipeline
	meshes    map[gpu.Mesh]*model.Mesh

	surfaceWidth  int
	surfaceHeight int
	presentMode   PresentMode

	structureUniforms []byte
	frameUniforms     gpu.FrameUniforms
	atlas             *image.Alpha

	inFrame     bool
	frameWidth  int
	frameHeight int
	targets     [gpu.TargetFinal + 1][]mgl32.Vec4
	depth       []float32
	stencil     []uint8
	passOpen    bool
	passTarget  gpu.Target

	pick *pickTarget

	bake                *softwareBake
	maxShadowResolution int
	occlusion           map[int]*occlusionTexture
}

var _ RendererBackend = &softwareRendererBackend{}

// NewSoftwareRendererBackend creates the CPU reference backend.
//
// Parameters:
//   - options: variadic list of SoftwareBackendOption functions
//
// Returns:
//   - RendererBackend: the created backend
func NewSoftwareRendererBackend(options ...SoftwareBackendOption) RendererBackend {
	b := &softwareRendererBackend{
		mu:                  &sync.Mutex{},
		pipelines:           pipeline.Standard(),
		meshes:              standardMeshes(),
		maxShadowResolution: DefaultSoftwareShadowResolution,
		occlusion:           make(map[int]*occlusionTexture),
	}
	for _, option := range options {
		option(b)
	}
	return b
}

func (b *softwareRendererBackend) Type() RendererBackendType {
	return BackendTypeSoftware
}

func (b *softwareRendererBackend) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.surfaceWidth, b.surfaceHeight = width, height
}

func (b *softwareRendererBackend) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = mode
}

func (b *softwareRendererBackend) CreateInstanceBuffer(label string, data []byte, count int) (gpu.Buffer, error) {
	if count < 0 {
		return nil, fmt.Errorf("buffer %s: negative record count %d", label, count)
	}
	buf := &softwareBuffer{label: label, data: make([]byte, len(data)), count: count}
	copy(buf.data, data)
	return buf, nil
}

func (b *softwareRendererBackend) WriteStructureUniforms(data []byte) error {
	if len(data)%indexer.UniformStride != 0 {
		return fmt.Errorf("structure uniforms: %d bytes is not a multiple of %d", len(data), indexer.UniformStride)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.structureUniforms = append(b.structureUniforms[:0], data...)
	// flat indices may have been renumbered
	clear(b.occlusion)
	return nil
}

func (b *softwareRendererBackend) WriteFrameUniforms(f gpu.FrameUniforms) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frameUniforms = f
}

func (b *softwareRendererBackend) UploadGlyphAtlas(img *image.Alpha) error {
	if img == nil {
		return fmt.Errorf("glyph atlas: nil image")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := image.NewAlpha(img.Bounds())
	copy(cp.Pix, img.Pix)
	b.atlas = cp
	return nil
}

func (b *softwareRendererBackend) BeginFrame(target gpu.FrameTarget) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return errFrameInProgress
	}
	if target.Width <= 0 || target.Height <= 0 {
		return fmt.Errorf("renderer: invalid frame size %dx%d", target.Width, target.Height)
	}
	if target.Width != b.frameWidth || target.Height != b.frameHeight {
		n := target.Width * target.Height
		for i := range b.targets {
			b.targets[i] = make([]mgl32.Vec4, n)
		}
		b.depth = make([]float32, n)
		b.stencil = make([]uint8, n)
		b.frameWidth, b.frameHeight = target.Width, target.Height
	}
	b.inFrame = true
	return nil
}

func (b *softwareRendererBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return gpu.ErrNotInFrame
	}
	b.inFrame = false
	b.passOpen = false
	return nil
}

func (b *softwareRendererBackend) BeginPass(target gpu.Target, load gpu.LoadOp) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return gpu.ErrNotInFrame
	}
	if target < 0 || int(target) >= len(b.targets) {
		return fmt.Errorf("renderer: unknown target %d", target)
	}
	if load == gpu.LoadClear {
		clear(b.targets[target])
		if target == gpu.TargetScene {
			for i := range b.depth {
				b.depth[i] = 1
			}
			clear(b.stencil)
		}
	}
	b.passTarget = target
	b.passOpen = true
	return nil
}

func (b *softwareRendererBackend) EndPass() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.passOpen = false
}

func (b *softwareRendererBackend) Draw(program gpu.Program, d gpu.Draw) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.passOpen {
		return
	}
	p, c, ok := b.prepare(program, d)
	if !ok {
		return
	}
	t := &colorTarget{
		width:   b.frameWidth,
		height:  b.frameHeight,
		color:   b.targets[b.passTarget],
		stencil: b.stencil,
	}
	if b.passTarget == gpu.TargetScene || b.passTarget == gpu.TargetGlow {
		t.depth = b.depth
	}
	switch p.Stencil() {
	case pipeline.StencilWrite:
		t.stencilRef = 1
	case pipeline.StencilTest:
		if c.s.Flags&indexer.FlagClipBonds != 0 {
			t.stencilRef = 1
		}
	}
	b.rasterize(p, c, d, t)
}

func (b *softwareRendererBackend) DrawFullscreen(program gpu.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.passOpen || program < 0 || int(program) >= len(b.pipelines) {
		return
	}
	p := b.pipelines[program]
	stage, ok := softwareFullscreenStages[stageKey(p.Module(), p.FragmentEntry())]
	if !ok {
		return
	}
	dst := b.targets[b.passTarget]
	w, h := b.frameWidth, b.frameHeight
	out := make([]mgl32.Vec4, len(dst))
	for y := range h {
		for x := range w {
			uv := mgl32.Vec2{(float32(x) + 0.5) / float32(w), (float32(y) + 0.5) / float32(h)}
			src := stage(b, uv)
			if p.BlendEnabled() {
				src = blend(p.BlendState(), src, dst[y*w+x])
			}
			out[y*w+x] = src
		}
	}
	copy(dst, out)
}

func (b *softwareRendererBackend) BeginPicking(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("picking: invalid target size %dx%d", width, height)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := &pickTarget{
		width:  width,
		height: height,
		ids:    make([][4]uint32, width*height),
		depth:  make([]float32, width*height),
	}
	for i := range t.depth {
		t.depth[i] = 1
	}
	b.pick = t
	return nil
}

func (b *softwareRendererBackend) DrawPicking(program gpu.Program, d gpu.Draw) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pick == nil {
		return
	}
	p, c, ok := b.prepare(program, d)
	if !ok {
		return
	}
	b.rasterize(p, c, d, b.pick)
}

func (b *softwareRendererBackend) EndPicking() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pick == nil {
		return fmt.Errorf("picking: no picking pass in progress")
	}
	return nil
}

func (b *softwareRendererBackend) ReadPickingTexel(x, y int) ([4]uint32, float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.pick
	if t == nil {
		return [4]uint32{}, 0, fmt.Errorf("picking: id buffer was never rendered")
	}
	if x < 0 || y < 0 || x >= t.width || y >= t.height {
		return [4]uint32{}, 0, fmt.Errorf("picking: texel (%d, %d) outside %dx%d target", x, y, t.width, t.height)
	}
	i := y*t.width + x
	return t.ids[i], t.depth[i], nil
}

func (b *softwareRendererBackend) BeginOcclusionBake(flat, textureSize, shadowResolution int) error {
	if textureSize <= 0 || shadowResolution <= 0 {
		return fmt.Errorf("occlusion: invalid texture size %d or shadow resolution %d", textureSize, shadowResolution)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	res := min(shadowResolution, b.maxShadowResolution)
	b.bake = &softwareBake{
		flat:        flat,
		textureSize: textureSize,
		accum:       make([]float32, textureSize*textureSize),
		shadowMap:   &depthTarget{width: res, height: res, depth: make([]float32, res*res)},
	}
	return nil
}

func (b *softwareRendererBackend) DrawShadowDepth(shadow gpu.ShadowUniforms, draws []gpu.Draw) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bake == nil {
		return
	}
	sm := b.bake.shadowMap
	for i := range sm.depth {
		sm.depth[i] = 1
	}
	for _, d := range draws {
		p, c, ok := b.prepare(gpu.ProgramShadowDepth, d)
		if !ok {
			continue
		}
		c.shadow = shadow
		b.rasterize(p, c, d, sm)
	}
}

func (b *softwareRendererBackend) AccumulateOcclusion(shadow gpu.ShadowUniforms, d gpu.Draw) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bake == nil {
		return
	}
	_, c, ok := b.prepare(gpu.ProgramOcclusionAccumulate, d)
	if !ok {
		return
	}
	c.shadow = shadow

	lightView := common.Mul4(common.Mul4(shadow.View, shadow.Rotation), c.s.Model)
	lightClip := common.Mul4(shadow.Projection, lightView)
	count := uint32(max(shadow.PatchCount, 1))
	patch := int(shadow.PatchSize)
	size := b.bake.textureSize

	first, n := d.InstanceRange()
	for inst := first; inst < first+n && inst < len(c.atoms); inst++ {
		a := c.atoms[inst]
		cx, cy := int(a.Tag%count)*patch, int(a.Tag/count)*patch
		for py := range patch {
			ty := cy + py
			if ty >= size {
				break
			}
			for px := range patch {
				tx := cx + px
				if tx >= size {
					break
				}
				uv := mgl32.Vec2{(float32(px) + 0.5) / float32(patch), (float32(py) + 0.5) / float32(patch)}
				b.bake.accum[ty*size+tx] += accumulateTexel(c, b.bake.shadowMap, lightView, lightClip, a, uv)
			}
		}
	}
}

func (b *softwareRendererBackend) EndOcclusionBake() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bake := b.bake
	if bake == nil {
		return nil, fmt.Errorf("occlusion: no bake in progress")
	}
	b.bake = nil
	texels := encodeR16F(bake.accum)
	b.occlusion[bake.flat] = &occlusionTexture{size: bake.textureSize, texels: decodeR16F(texels)}
	return texels, nil
}

func (b *softwareRendererBackend) UploadAmbientOcclusion(flat, textureSize int, texels []byte) error {
	if want := textureSize * textureSize * 2; len(texels) != want {
		return fmt.Errorf("occlusion: %d texel bytes for a %d texture, want %d", len(texels), textureSize, want)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.occlusion[flat] = &occlusionTexture{size: textureSize, texels: decodeR16F(texels)}
	return nil
}

func (b *softwareRendererBackend) ReadFrame() (*image.RGBA64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	final := b.targets[gpu.TargetFinal]
	if final == nil {
		return nil, fmt.Errorf("renderer: no frame has been rendered")
	}
	img := image.NewRGBA64(image.Rect(0, 0, b.frameWidth, b.frameHeight))
	for y := range b.frameHeight {
		for x := range b.frameWidth {
			c := final[y*b.frameWidth+x]
			img.SetRGBA64(x, y, color.RGBA64{R: unorm16(c[0]), G: unorm16(c[1]), B: unorm16(c[2]), A: 0xffff})
		}
	}
	return img, nil
}

func (b *softwareRendererBackend) Present() {}

func (b *softwareRendererBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.targets {
		b.targets[i] = nil
	}
	b.depth, b.stencil = nil, nil
	b.frameWidth, b.frameHeight = 0, 0
	b.pick, b.bake = nil, nil
	b.structureUniforms = nil
	clear(b.occlusion)
}

// prepare resolves the pipeline of a program and binds the uniforms and instances of a draw.
func (b *softwareRendererBackend) prepare(program gpu.Program, d gpu.Draw) (pipeline.Pipeline, *drawContext, bool) {
	if program < 0 || int(program) >= len(b.pipelines) {
		return nil, nil, false
	}
	p := b.pipelines[program]
	s, ok := b.structureRecord(d)
	if !ok {
		return nil, nil, false
	}
	c := newDrawContext(b.frameUniforms, s)
	c.atlas = b.atlas
	c.ao = b.occlusion[d.FlatIndex]

	var data []byte
	if buf, ok := d.Instances.(*softwareBuffer); ok {
		if buf.released {
			return nil, nil, false
		}
		data = buf.data
	}
	switch p.Module() {
	case shader.ModuleAtoms, shader.ModuleShadow, shader.ModuleOcclusion:
		c.atoms = gpu.DecodeAtomInstances(data)
	case shader.ModuleBonds:
		c.bonds = gpu.DecodeBondInstances(data)
	case shader.ModulePrimitives:
		c.primitives = gpu.DecodePrimitiveInstances(data)
	case shader.ModuleIsosurface:
		c.surface = gpu.DecodeSurfaceVertices(data)
	case shader.ModuleText:
		c.glyphs = gpu.DecodeGlyphInstances(data)
	}
	return p, c, true
}

// structureRecord decodes the structure uniforms bound at the draw's dynamic offset.
func (b *softwareRendererBackend) structureRecord(d gpu.Draw) (indexer.StructureUniforms, bool) {
	if d.FlatIndex < 0 {
		return indexer.GlobalUniforms(), true
	}
	end := d.UniformOffset + indexer.UniformStride
	if end > uint64(len(b.structureUniforms)) {
		return indexer.StructureUniforms{}, false
	}
	return indexer.DecodeStructureUniforms(b.structureUniforms[d.UniformOffset:end]), true
}

// instanceLimit is the number of records the vertex stage of a module can index.
func instanceLimit(m shader.Module, c *drawContext) int {
	switch m {
	case shader.ModuleAtoms, shader.ModuleShadow, shader.ModuleOcclusion:
		return len(c.atoms)
	case shader.ModuleBonds:
		return len(c.bonds)
	case shader.ModulePrimitives:
		return len(c.primitives)
	case shader.ModuleText:
		return len(c.glyphs)
	}
	return 1
}

func stageKey(m shader.Module, entry string) string {
	return m.String() + "." + entry
}

func (b *softwareRendererBackend) rasterize(p pipeline.Pipeline, c *drawContext, d gpu.Draw, t rasterTarget) {
	vs, ok := softwareVertexStages[stageKey(p.Module(), p.VertexEntry())]
	if !ok {
		return
	}
	var fs fragmentStage
	if p.FragmentEntry() != "" {
		if fs, ok = softwareFragmentStages[stageKey(p.Module(), p.FragmentEntry())]; !ok {
			return
		}
	}
	w, h := t.size()
	r := rasterizer{width: w, height: h, cull: p.CullMode()}
	shade := func(inst int) func(x, y int, z float32, v varyings, front bool) {
		return func(x, y int, z float32, v varyings, front bool) {
			var out fragmentOut
			if fs != nil {
				var keep bool
				if out, keep = fs(c, inst, v, front); !keep {
					return
				}
			}
			t.write(p, y*w+x, z, out)
		}
	}

	first, count := d.InstanceRange()
	if d.Mesh == gpu.MeshNone {
		if p.Module() != shader.ModuleIsosurface {
			return
		}
		last := min(first+count, len(c.surface))
		for i := first; i+2 < last; i += 3 {
			tri := [3]vertexOut{vs(c, 0, i, model.Vertex{}), vs(c, 0, i+1, model.Vertex{}), vs(c, 0, i+2, model.Vertex{})}
			r.triangle(tri, shade(0))
		}
		return
	}

	mesh := b.meshes[d.Mesh]
	if mesh == nil {
		return
	}
	last := min(first+count, instanceLimit(p.Module(), c))
	for inst := first; inst < last; inst++ {
		fn := shade(inst)
		for i := range mesh.TriangleCount() {
			v := mesh.Triangle(i)
			r.triangle([3]vertexOut{vs(c, inst, 0, v[0]), vs(c, inst, 0, v[1]), vs(c, inst, 0, v[2])}, fn)
		}
	}
}

func encodeR16F(values []float32) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], float16.Fromfloat32(v).Bits())
	}
	return out
}

func decodeR16F(texels []byte) []float32 {
	out := make([]float32, len(texels)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(texels[i*2:])).Float32()
	}
	return out
}

func unorm16(v float32) uint16 {
	return uint16(common.Clamp(v, 0, 1)*0xffff + 0.5)
}
