package renderer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"maps"
	"math"
	"runtime"
	"slices"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-crystal/engine/model"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/x448/float16"
)

const (
	hdrFormat        = wgpu.TextureFormatRGBA16Float
	pickFormat       = wgpu.TextureFormatRGBA32Uint
	sceneDepthFormat = wgpu.TextureFormatDepth24PlusStencil8
	depthOnlyFormat  = wgpu.TextureFormatDepth32Float
	occlusionFormat  = wgpu.TextureFormatR16Float
	atlasFormat      = wgpu.TextureFormatR8Unorm
)

type wgpuBuffer struct {
	label    string
	buffer   *wgpu.Buffer
	size     int
	count    int
	released bool
}

var _ gpu.Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Len() int      { return b.size }
func (b *wgpuBuffer) Count() int    { return b.count }
func (b *wgpuBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}

type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	width   int
	height  int
}

func (t *wgpuTexture) release() {
	if t == nil {
		return
	}
	if t.view != nil {
		t.view.Release()
	}
	if t.texture != nil {
		t.texture.Release()
	}
}

type wgpuMesh struct {
	vertex     *wgpu.Buffer
	index      *wgpu.Buffer
	indexCount uint32
}

// wgpuProgram is a compiled pipeline with the layouts and binding names needed to build its bind groups.
type wgpuProgram struct {
	pipeline    pipeline.Pipeline
	layouts     []*wgpu.BindGroupLayout
	varNames    map[int]map[int]string
	vertexSlots int
	dynamic     bool
}

type wgpuRendererBackendImpl struct {
	mu *sync.Mutex

	instance      *wgpu.Instance
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surface       *wgpu.Surface
	surfaceFormat wgpu.TextureFormat
	surfaceWidth  int
	surfaceHeight int
	presentMode   wgpu.PresentMode
	sampleCount   MSAASampleCount

	modules            map[string]*wgpu.ShaderModule
	programs           []*wgpuProgram
	offscreenComposite *wgpuProgram
	meshes             map[gpu.Mesh]*wgpuMesh
	sampler            *wgpu.Sampler

	frameBuffer     *wgpu.Buffer
	shadowBuffer    *wgpu.Buffer
	structureBuffer *wgpu.Buffer
	structureSize   int
	structureData   []byte
	globalOffset    uint64
	frameGroups     map[*wgpuProgram]*wgpu.BindGroup

	atlas             *wgpuTexture
	fallbackAtlas     *wgpuTexture
	fallbackOcclusion *wgpuTexture
	occlusion         map[int]*wgpuTexture

	frameWidth  int
	frameHeight int
	sceneMSAA   *wgpuTexture
	glowMSAA    *wgpuTexture
	scene       *wgpuTexture
	glow        *wgpuTexture
	blurH       *wgpuTexture
	blurV       *wgpuTexture
	depth       *wgpuTexture
	offscreen   *wgpuTexture
	hasPicture  bool

	frameTarget  gpu.FrameTarget
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	transient    []*wgpu.BindGroup

	pickColor   *wgpuTexture
	pickDepth   *wgpuTexture
	pickEncoder *wgpu.CommandEncoder
	pickPass    *wgpu.RenderPassEncoder
	pickReady   bool

	baking    bool
	bakeFlat  int
	bakeSize  int
	bakeErr   error // first failed pass of the bake in progress
	shadowMap *wgpuTexture
}

// wgpuRendererBackend is the WebGPU implementation of RendererBackend. It exposes the device
// objects so windowing code can share them.
type wgpuRendererBackend interface {
	RendererBackend

	// Device returns the WebGPU device.
	Device() *wgpu.Device

	// Queue returns the command queue of the device.
	Queue() *wgpu.Queue

	// Surface returns the window surface, or nil for a headless backend.
	Surface() *wgpu.Surface
}

var _ wgpuRendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend requests an adapter and device and compiles every standard pipeline.
// A nil surfaceDescriptor creates a headless backend that can only render offscreen frames.
// Failure to acquire the device or compile a pipeline panics, the renderer cannot run without them.
//
// Parameters:
//   - surfaceDescriptor: the window surface, nil for headless rendering
//   - forceFallbackAdapter: whether to request the software fallback adapter
//   - sampleCount: the MSAA sample count of the scene targets
//
// Returns:
//   - wgpuRendererBackend: the created backend
func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount) wgpuRendererBackend {
	runtime.LockOSThread()
	if sampleCount != MSAA4x {
		sampleCount = MSAAOff
	}
	w := &wgpuRendererBackendImpl{
		mu:            &sync.Mutex{},
		instance:      wgpu.CreateInstance(nil),
		presentMode:   wgpu.PresentModeFifo,
		sampleCount:   sampleCount,
		surfaceFormat: wgpu.TextureFormatBGRA8Unorm,
		modules:       make(map[string]*wgpu.ShaderModule),
		meshes:        make(map[gpu.Mesh]*wgpuMesh),
		frameGroups:   make(map[*wgpuProgram]*wgpu.BindGroup),
		occlusion:     make(map[int]*wgpuTexture),
	}
	if surfaceDescriptor != nil {
		w.surface = w.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Crystal Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()

	if w.surface != nil {
		capabilities := w.surface.GetCapabilities(w.adapter)
		if len(capabilities.Formats) > 0 {
			w.surfaceFormat = capabilities.Formats[0]
		}
	}

	if err := w.init(); err != nil {
		panic(fmt.Sprintf("renderer: failed to initialize WebGPU backend: %v", err))
	}
	return w
}

// init creates the shared buffers, meshes and fallback textures and compiles the pipelines.
func (b *wgpuRendererBackendImpl) init() error {
	var err error
	if b.frameBuffer, err = b.createUniformBuffer("Frame Uniforms", gpu.FrameUniformsSize); err != nil {
		return err
	}
	if b.shadowBuffer, err = b.createUniformBuffer("Shadow Uniforms", gpu.ShadowUniformsSize); err != nil {
		return err
	}
	if err = b.writeStructureUniforms(nil); err != nil {
		return err
	}

	b.sampler, err = b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Linear Clamp Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}

	for kind, m := range standardMeshes() {
		mesh, err := b.createMesh(m)
		if err != nil {
			return fmt.Errorf("mesh %s: %w", m.Name, err)
		}
		b.meshes[kind] = mesh
	}

	if b.fallbackAtlas, err = b.createTexture("Fallback Atlas", 1, 1, atlasFormat, wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst, 1); err != nil {
		return err
	}
	b.writeTexture(b.fallbackAtlas, []byte{0}, 1)
	if b.fallbackOcclusion, err = b.createTexture("Fallback Occlusion", 1, 1, occlusionFormat, wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst, 1); err != nil {
		return err
	}
	// unoccluded: half-float 1.0
	b.writeTexture(b.fallbackOcclusion, []byte{0x00, 0x3c}, 2)

	for _, p := range pipeline.Standard() {
		prog, err := b.registerRenderPipeline(p, b.colorFormat(p.Attachment()))
		if err != nil {
			panic(fmt.Sprintf("renderer: failed to create %s pipeline: %v", p.PipelineKey(), err))
		}
		b.programs = append(b.programs, prog)
	}
	// pictures composite into a 16-bit float target instead of the surface
	offscreen := pipeline.Standard()[gpu.ProgramComposite]
	if b.offscreenComposite, err = b.registerRenderPipeline(offscreen, hdrFormat); err != nil {
		panic(fmt.Sprintf("renderer: failed to create %s pipeline: %v", offscreen.PipelineKey()+" offscreen", err))
	}
	return nil
}

func (b *wgpuRendererBackendImpl) Type() RendererBackendType {
	return BackendTypeWGPU
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil || width <= 0 || height <= 0 {
		return
	}
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.surfaceWidth, b.surfaceHeight = width, height
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	case PresentModeVSync:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
	w, h := b.surfaceWidth, b.surfaceHeight
	b.mu.Unlock()

	if w > 0 && h > 0 {
		b.ConfigureSurface(w, h)
	}
}

func (b *wgpuRendererBackendImpl) CreateInstanceBuffer(label string, data []byte, count int) (gpu.Buffer, error) {
	if count < 0 {
		return nil, fmt.Errorf("buffer %s: negative record count %d", label, count)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	// zero-sized buffers cannot be bound as vertex buffers
	size := max(alignUp(len(data), 4), 4)
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("buffer %s: %w", label, err)
	}
	if len(data) > 0 {
		padded := data
		if len(data) != size {
			padded = make([]byte, size)
			copy(padded, data)
		}
		b.queue.WriteBuffer(buf, 0, padded)
	}
	return &wgpuBuffer{label: label, buffer: buf, size: len(data), count: count}, nil
}

func (b *wgpuRendererBackendImpl) WriteStructureUniforms(data []byte) error {
	if len(data)%indexer.UniformStride != 0 {
		return fmt.Errorf("structure uniforms: %d bytes is not a multiple of %d", len(data), indexer.UniformStride)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writeStructureUniforms(data); err != nil {
		return err
	}
	// flat indices may have been renumbered
	for flat, t := range b.occlusion {
		t.release()
		delete(b.occlusion, flat)
	}
	return nil
}

// writeStructureUniforms uploads the records followed by the global record bound by scene-wide draws.
func (b *wgpuRendererBackendImpl) writeStructureUniforms(data []byte) error {
	size := len(data) + indexer.UniformStride
	if b.structureBuffer == nil || size > b.structureSize {
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Structure Uniforms",
			Size:  uint64(size),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("structure uniforms: %w", err)
		}
		if b.structureBuffer != nil {
			b.structureBuffer.Release()
		}
		b.structureBuffer = buf
		b.structureSize = size
		for p, g := range b.frameGroups {
			g.Release()
			delete(b.frameGroups, p)
		}
	}
	buf := make([]byte, size)
	copy(buf, data)
	global := indexer.GlobalUniforms()
	global.MarshalTo(buf[len(data):])
	b.queue.WriteBuffer(b.structureBuffer, 0, buf)
	b.structureData = append(b.structureData[:0], data...)
	b.globalOffset = uint64(len(data))
	return nil
}

func (b *wgpuRendererBackendImpl) WriteFrameUniforms(f gpu.FrameUniforms) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue.WriteBuffer(b.frameBuffer, 0, f.Marshal())
}

func (b *wgpuRendererBackendImpl) UploadGlyphAtlas(img *image.Alpha) error {
	if img == nil {
		return errors.New("glyph atlas: nil image")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if b.atlas == nil || b.atlas.width != w || b.atlas.height != h {
		t, err := b.createTexture("Glyph Atlas", w, h, atlasFormat, wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst, 1)
		if err != nil {
			return fmt.Errorf("glyph atlas: %w", err)
		}
		b.atlas.release()
		b.atlas = t
	}
	pix := make([]byte, w*h)
	for y := range h {
		copy(pix[y*w:(y+1)*w], img.Pix[y*img.Stride:])
	}
	b.writeTexture(b.atlas, pix, w)
	return nil
}

func (b *wgpuRendererBackendImpl) BeginFrame(target gpu.FrameTarget) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder != nil {
		return errFrameInProgress
	}
	// a previous window frame that was never presented still holds the surface image
	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}
	if target.Width <= 0 || target.Height <= 0 {
		return fmt.Errorf("renderer: invalid frame size %dx%d", target.Width, target.Height)
	}
	if !target.Offscreen && b.surface == nil {
		return errors.New("renderer: headless backend can only render offscreen frames")
	}
	if err := b.ensureFrameTargets(target.Width, target.Height); err != nil {
		return err
	}

	if target.Offscreen {
		if b.offscreen == nil || b.offscreen.width != target.Width || b.offscreen.height != target.Height {
			t, err := b.createTexture("Picture Target", target.Width, target.Height, hdrFormat,
				wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageCopySrc, 1)
			if err != nil {
				return err
			}
			b.offscreen.release()
			b.offscreen = t
		}
	} else {
		surfaceTexture, err := b.surface.GetCurrentTexture()
		if err != nil {
			return err
		}
		view, err := surfaceTexture.CreateView(nil)
		if err != nil {
			surfaceTexture.Release()
			return err
		}
		b.frameSurface = surfaceTexture
		b.frameView = view
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		b.releaseSurfaceTexture()
		return err
	}
	b.frameEncoder = encoder
	b.frameTarget = target
	return nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return gpu.ErrNotInFrame
	}
	if b.framePass != nil {
		b.endPass()
	}
	commandBuffer, err := b.frameEncoder.Finish(nil)
	b.frameEncoder.Release()
	b.frameEncoder = nil
	if err != nil {
		b.releaseTransient()
		b.releaseSurfaceTexture()
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.releaseTransient()
	if b.frameTarget.Offscreen {
		b.hasPicture = true
	}
	return nil
}

func (b *wgpuRendererBackendImpl) BeginPass(target gpu.Target, load gpu.LoadOp) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return gpu.ErrNotInFrame
	}
	if b.framePass != nil {
		b.endPass()
	}

	loadOp := wgpu.LoadOpLoad
	if load == gpu.LoadClear {
		loadOp = wgpu.LoadOpClear
	}
	color := wgpu.RenderPassColorAttachment{
		LoadOp:     loadOp,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: wgpu.Color{},
	}
	desc := &wgpu.RenderPassDescriptor{Label: fmt.Sprintf("target %d", target)}

	switch target {
	case gpu.TargetScene, gpu.TargetGlow:
		multi, resolved := b.sceneMSAA, b.scene
		if target == gpu.TargetGlow {
			multi, resolved = b.glowMSAA, b.glow
		}
		if b.sampleCount > 1 {
			color.View = multi.view
			color.ResolveTarget = resolved.view
		} else {
			color.View = resolved.view
		}
		depthLoad := wgpu.LoadOpLoad
		if target == gpu.TargetScene && load == gpu.LoadClear {
			depthLoad = wgpu.LoadOpClear
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:              b.depth.view,
			DepthLoadOp:       depthLoad,
			DepthStoreOp:      wgpu.StoreOpStore,
			DepthClearValue:   1,
			StencilLoadOp:     depthLoad,
			StencilStoreOp:    wgpu.StoreOpStore,
			StencilClearValue: 0,
		}
	case gpu.TargetBlurHorizontal:
		color.View = b.blurH.view
	case gpu.TargetBlurVertical:
		color.View = b.blurV.view
	case gpu.TargetFinal:
		if b.frameTarget.Offscreen {
			color.View = b.offscreen.view
		} else {
			color.View = b.frameView
		}
	default:
		return fmt.Errorf("renderer: unknown target %d", target)
	}
	desc.ColorAttachments = []wgpu.RenderPassColorAttachment{color}

	b.framePass = b.frameEncoder.BeginRenderPass(desc)
	return nil
}

func (b *wgpuRendererBackendImpl) EndPass() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.framePass != nil {
		b.endPass()
	}
}

func (b *wgpuRendererBackendImpl) endPass() {
	b.framePass.End()
	b.framePass.Release()
	b.framePass = nil
}

func (b *wgpuRendererBackendImpl) Draw(program gpu.Program, d gpu.Draw) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	prog := b.program(program)
	if prog == nil {
		return
	}
	b.draw(b.framePass, prog, d)
}

func (b *wgpuRendererBackendImpl) DrawFullscreen(program gpu.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	prog := b.program(program)
	if prog == nil {
		return
	}
	if program == gpu.ProgramComposite && b.frameTarget.Offscreen {
		prog = b.offscreenComposite
	}
	if !b.bind(b.framePass, prog, gpu.Draw{FlatIndex: -1}) {
		return
	}
	b.framePass.Draw(3, 1, 0, 0)
}

func (b *wgpuRendererBackendImpl) BeginPicking(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("picking: invalid target size %dx%d", width, height)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pickEncoder != nil {
		return errors.New("picking: picking pass already in progress")
	}
	if b.pickColor == nil || b.pickColor.width != width || b.pickColor.height != height {
		color, err := b.createTexture("Picking Ids", width, height, pickFormat, wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageCopySrc, 1)
		if err != nil {
			return err
		}
		depth, err := b.createTexture("Picking Depth", width, height, depthOnlyFormat, wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageCopySrc, 1)
		if err != nil {
			color.release()
			return err
		}
		b.pickColor.release()
		b.pickDepth.release()
		b.pickColor, b.pickDepth = color, depth
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.pickEncoder = encoder
	b.pickPass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Picking Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       b.pickColor.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.pickDepth.view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	b.pickReady = false
	return nil
}

func (b *wgpuRendererBackendImpl) DrawPicking(program gpu.Program, d gpu.Draw) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pickPass == nil {
		return
	}
	prog := b.program(program)
	if prog == nil {
		return
	}
	b.draw(b.pickPass, prog, d)
}

func (b *wgpuRendererBackendImpl) EndPicking() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pickEncoder == nil {
		return errors.New("picking: no picking pass in progress")
	}
	b.pickPass.End()
	b.pickPass.Release()
	b.pickPass = nil

	commandBuffer, err := b.pickEncoder.Finish(nil)
	b.pickEncoder.Release()
	b.pickEncoder = nil
	if err != nil {
		b.releaseTransient()
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.releaseTransient()
	b.pickReady = true
	return nil
}

func (b *wgpuRendererBackendImpl) ReadPickingTexel(x, y int) ([4]uint32, float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.pickReady || b.pickColor == nil {
		return [4]uint32{}, 0, errors.New("picking: id buffer was never rendered")
	}
	if x < 0 || y < 0 || x >= b.pickColor.width || y >= b.pickColor.height {
		return [4]uint32{}, 0, fmt.Errorf("picking: texel (%d, %d) outside %dx%d target", x, y, b.pickColor.width, b.pickColor.height)
	}
	origin := wgpu.Origin3D{X: uint32(x), Y: uint32(y)}
	ids, err := b.readTexture(b.pickColor.texture, wgpu.TextureAspectAll, origin, 1, 1, 16)
	if err != nil {
		return [4]uint32{}, 0, fmt.Errorf("picking: %w", err)
	}
	depth, err := b.readTexture(b.pickDepth.texture, wgpu.TextureAspectDepthOnly, origin, 1, 1, 4)
	if err != nil {
		return [4]uint32{}, 0, fmt.Errorf("picking: %w", err)
	}
	var id [4]uint32
	for i := range id {
		id[i] = leUint32(ids[i*4:])
	}
	return id, leFloat32(depth), nil
}

func (b *wgpuRendererBackendImpl) BeginOcclusionBake(flat, textureSize, shadowResolution int) error {
	if textureSize <= 0 || shadowResolution <= 0 {
		return fmt.Errorf("occlusion: invalid texture size %d or shadow resolution %d", textureSize, shadowResolution)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.occlusionTexture(flat, textureSize)
	if err != nil {
		return err
	}
	if b.shadowMap == nil || b.shadowMap.width != shadowResolution {
		sm, err := b.createTexture("Shadow Map", shadowResolution, shadowResolution, depthOnlyFormat,
			wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding, 1)
		if err != nil {
			return fmt.Errorf("occlusion: %w", err)
		}
		b.shadowMap.release()
		b.shadowMap = sm
	}

	err = b.submitPass("Occlusion Clear", &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       t.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{},
		}},
	}, nil)
	if err != nil {
		return fmt.Errorf("occlusion: %w", err)
	}
	b.baking = true
	b.bakeErr = nil
	b.bakeFlat, b.bakeSize = flat, textureSize
	return nil
}

func (b *wgpuRendererBackendImpl) DrawShadowDepth(shadow gpu.ShadowUniforms, draws []gpu.Draw) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.baking || b.bakeErr != nil {
		return
	}
	b.queue.WriteBuffer(b.shadowBuffer, 0, shadow.Marshal())
	prog := b.programs[gpu.ProgramShadowDepth]
	b.bakeErr = b.submitPass("Shadow Depth", &wgpu.RenderPassDescriptor{
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.shadowMap.view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	}, func(pass *wgpu.RenderPassEncoder) {
		for _, d := range draws {
			b.draw(pass, prog, d)
		}
	})
}

func (b *wgpuRendererBackendImpl) AccumulateOcclusion(shadow gpu.ShadowUniforms, d gpu.Draw) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.baking || b.bakeErr != nil {
		return
	}
	t := b.occlusion[b.bakeFlat]
	b.queue.WriteBuffer(b.shadowBuffer, 0, shadow.Marshal())
	prog := b.programs[gpu.ProgramOcclusionAccumulate]
	b.bakeErr = b.submitPass("Occlusion Accumulate", &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    t.view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	}, func(pass *wgpu.RenderPassEncoder) {
		b.draw(pass, prog, d)
	})
}

func (b *wgpuRendererBackendImpl) EndOcclusionBake() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.baking {
		return nil, errors.New("occlusion: no bake in progress")
	}
	b.baking = false
	if err := b.bakeErr; err != nil {
		b.bakeErr = nil
		return nil, fmt.Errorf("occlusion: %w", err)
	}
	t := b.occlusion[b.bakeFlat]
	texels, err := b.readTexture(t.texture, wgpu.TextureAspectAll, wgpu.Origin3D{}, b.bakeSize, b.bakeSize, 2)
	if err != nil {
		return nil, fmt.Errorf("occlusion: %w", err)
	}
	return texels, nil
}

func (b *wgpuRendererBackendImpl) UploadAmbientOcclusion(flat, textureSize int, texels []byte) error {
	if want := textureSize * textureSize * 2; len(texels) != want {
		return fmt.Errorf("occlusion: %d texel bytes for a %d texture, want %d", len(texels), textureSize, want)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.occlusionTexture(flat, textureSize)
	if err != nil {
		return err
	}
	b.writeTexture(t, texels, textureSize*2)
	return nil
}

func (b *wgpuRendererBackendImpl) ReadFrame() (*image.RGBA64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.hasPicture || b.offscreen == nil {
		return nil, errors.New("renderer: no offscreen frame has been rendered")
	}
	w, h := b.offscreen.width, b.offscreen.height
	raw, err := b.readTexture(b.offscreen.texture, wgpu.TextureAspectAll, wgpu.Origin3D{}, w, h, 8)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	return decodeRGBA16F(raw, w, h), nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil || b.frameEncoder != nil {
		return
	}
	b.surface.Present()
	b.releaseSurfaceTexture()
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass != nil {
		b.endPass()
	}
	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	b.releaseTransient()
	b.releaseSurfaceTexture()
	for _, t := range []*wgpuTexture{
		b.sceneMSAA, b.glowMSAA, b.scene, b.glow, b.blurH, b.blurV, b.depth, b.offscreen,
		b.pickColor, b.pickDepth, b.shadowMap, b.atlas, b.fallbackAtlas, b.fallbackOcclusion,
	} {
		t.release()
	}
	for _, t := range b.occlusion {
		t.release()
	}
	clear(b.occlusion)
	for _, g := range b.frameGroups {
		g.Release()
	}
	clear(b.frameGroups)
	for _, m := range b.meshes {
		m.vertex.Release()
		m.index.Release()
	}
	clear(b.meshes)
	for _, m := range b.modules {
		m.Release()
	}
	clear(b.modules)
	for _, buf := range []*wgpu.Buffer{b.frameBuffer, b.shadowBuffer, b.structureBuffer} {
		if buf != nil {
			buf.Release()
		}
	}
	if b.sampler != nil {
		b.sampler.Release()
	}
	b.device.Release()
	b.adapter.Release()
	if b.surface != nil {
		b.surface.Release()
	}
	b.instance.Release()
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) Surface() *wgpu.Surface {
	return b.surface
}

func (b *wgpuRendererBackendImpl) program(program gpu.Program) *wgpuProgram {
	if program < 0 || int(program) >= len(b.programs) {
		return nil
	}
	return b.programs[program]
}

// draw binds a program and records one instanced draw into pass.
func (b *wgpuRendererBackendImpl) draw(pass *wgpu.RenderPassEncoder, prog *wgpuProgram, d gpu.Draw) {
	first, count := d.InstanceRange()
	if count == 0 {
		return
	}
	var instances *wgpu.Buffer
	if buf, ok := d.Instances.(*wgpuBuffer); ok {
		if buf.released || buf.buffer == nil {
			return
		}
		instances = buf.buffer
	}
	if d.Instances != nil && instances == nil {
		return
	}
	if !b.bind(pass, prog, d) {
		return
	}

	switch prog.pipeline.Stencil() {
	case pipeline.StencilWrite:
		pass.SetStencilReference(1)
	case pipeline.StencilTest:
		pass.SetStencilReference(b.stencilReference(d))
	}

	if d.Mesh == gpu.MeshNone {
		if instances == nil {
			return
		}
		pass.SetVertexBuffer(0, instances, 0, wgpu.WholeSize)
		pass.Draw(uint32(count), 1, uint32(first), 0)
		return
	}
	mesh, ok := b.meshes[d.Mesh]
	if !ok {
		return
	}
	pass.SetVertexBuffer(0, mesh.vertex, 0, wgpu.WholeSize)
	if prog.vertexSlots > 1 {
		if instances == nil {
			return
		}
		pass.SetVertexBuffer(1, instances, 0, wgpu.WholeSize)
	}
	pass.SetIndexBuffer(mesh.index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	pass.DrawIndexed(mesh.indexCount, uint32(count), 0, 0, uint32(first))
}

// stencilReference is 1 for structures that clip bonds to the unit cell, so only texels marked
// by the unit cell stencil pass. Other structures compare against 0 and always pass.
func (b *wgpuRendererBackendImpl) stencilReference(d gpu.Draw) uint32 {
	end := d.UniformOffset + indexer.UniformStride
	if d.FlatIndex < 0 || end > uint64(len(b.structureData)) {
		return 0
	}
	s := indexer.DecodeStructureUniforms(b.structureData[d.UniformOffset:end])
	if s.Flags&indexer.FlagClipBonds != 0 {
		return 1
	}
	return 0
}

// bind sets the pipeline and its bind groups for a draw.
func (b *wgpuRendererBackendImpl) bind(pass *wgpu.RenderPassEncoder, prog *wgpuProgram, d gpu.Draw) bool {
	frame, err := b.frameGroup(prog)
	if err != nil {
		return false
	}
	pass.SetPipeline(prog.pipeline.Pipeline())
	var offsets []uint32
	if prog.dynamic {
		offset := d.UniformOffset
		if d.FlatIndex < 0 {
			offset = b.globalOffset
		}
		if offset+indexer.UniformStride > uint64(b.structureSize) {
			return false
		}
		offsets = []uint32{uint32(offset)}
	}
	pass.SetBindGroup(0, frame, offsets)

	for group := 1; group < len(prog.layouts); group++ {
		bg, err := b.createBindGroup(prog, group, d)
		if err != nil {
			return false
		}
		b.transient = append(b.transient, bg)
		pass.SetBindGroup(uint32(group), bg, nil)
	}
	return true
}

// frameGroup returns the cached group 0 bind group of a program, which holds only uniform buffers.
func (b *wgpuRendererBackendImpl) frameGroup(prog *wgpuProgram) (*wgpu.BindGroup, error) {
	if g, ok := b.frameGroups[prog]; ok {
		return g, nil
	}
	g, err := b.createBindGroup(prog, 0, gpu.Draw{FlatIndex: -1})
	if err != nil {
		return nil, err
	}
	b.frameGroups[prog] = g
	return g, nil
}

func (b *wgpuRendererBackendImpl) createBindGroup(prog *wgpuProgram, group int, d gpu.Draw) (*wgpu.BindGroup, error) {
	names := prog.varNames[group]
	entries := make([]wgpu.BindGroupEntry, 0, len(names))
	for _, binding := range slices.Sorted(maps.Keys(names)) {
		entry, err := b.bindingEntry(prog.pipeline.Program(), names[binding], d)
		if err != nil {
			return nil, err
		}
		entry.Binding = uint32(binding)
		entries = append(entries, entry)
	}
	return b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s group %d", prog.pipeline.PipelineKey(), group),
		Layout:  prog.layouts[group],
		Entries: entries,
	})
}

// bindingEntry resolves a shader variable name to the resource bound for it.
func (b *wgpuRendererBackendImpl) bindingEntry(program gpu.Program, name string, d gpu.Draw) (wgpu.BindGroupEntry, error) {
	switch name {
	case "frame":
		return wgpu.BindGroupEntry{Buffer: b.frameBuffer, Size: gpu.FrameUniformsSize}, nil
	case "shadow":
		return wgpu.BindGroupEntry{Buffer: b.shadowBuffer, Size: gpu.ShadowUniformsSize}, nil
	case "structure":
		return wgpu.BindGroupEntry{Buffer: b.structureBuffer, Size: indexer.UniformStride}, nil
	case "ao_sampler", "atlas_sampler", "src_sampler":
		return wgpu.BindGroupEntry{Sampler: b.sampler}, nil
	case "ao_texture":
		if t, ok := b.occlusion[d.FlatIndex]; ok && !(b.baking && d.FlatIndex == b.bakeFlat) {
			return wgpu.BindGroupEntry{TextureView: t.view}, nil
		}
		return wgpu.BindGroupEntry{TextureView: b.fallbackOcclusion.view}, nil
	case "atlas":
		if b.atlas != nil {
			return wgpu.BindGroupEntry{TextureView: b.atlas.view}, nil
		}
		return wgpu.BindGroupEntry{TextureView: b.fallbackAtlas.view}, nil
	case "shadow_map":
		if b.shadowMap == nil {
			return wgpu.BindGroupEntry{}, errors.New("shadow map not created")
		}
		return wgpu.BindGroupEntry{TextureView: b.shadowMap.view}, nil
	case "src_a", "src_b":
		a, c := b.postSources(program)
		if a == nil || c == nil {
			return wgpu.BindGroupEntry{}, fmt.Errorf("%s has no post sources", program)
		}
		if name == "src_a" {
			return wgpu.BindGroupEntry{TextureView: a.view}, nil
		}
		return wgpu.BindGroupEntry{TextureView: c.view}, nil
	}
	return wgpu.BindGroupEntry{}, fmt.Errorf("unknown binding %q", name)
}

// postSources are the resolved targets a full-screen post program samples.
func (b *wgpuRendererBackendImpl) postSources(program gpu.Program) (*wgpuTexture, *wgpuTexture) {
	switch program {
	case gpu.ProgramBlurHorizontal:
		return b.glow, b.blurV
	case gpu.ProgramBlurVertical:
		return b.blurH, b.glow
	case gpu.ProgramComposite:
		return b.scene, b.blurV
	}
	return nil, nil
}

// registerRenderPipeline compiles a pipeline's shaders into a render pipeline writing colorFormat.
func (b *wgpuRendererBackendImpl) registerRenderPipeline(p pipeline.Pipeline, colorFormat wgpu.TextureFormat) (*wgpuProgram, error) {
	vertexShader, fragmentShader := shader.Compile(p.Module(), p.VertexEntry(), p.FragmentEntry())
	p.SetShader(vertexShader)
	if fragmentShader != nil {
		p.SetShader(fragmentShader)
	}

	vs, err := b.shaderModule(vertexShader)
	if err != nil {
		return nil, err
	}

	var fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor
	var fragment *wgpu.FragmentState
	if fragmentShader != nil {
		fs, err := b.shaderModule(fragmentShader)
		if err != nil {
			return nil, err
		}
		fragmentLayouts = fragmentShader.BindGroupLayoutDescriptors()
		state := wgpu.ColorTargetState{
			Format:    colorFormat,
			WriteMask: p.WriteMask(),
		}
		if p.BlendEnabled() {
			state.Blend = p.BlendState()
		}
		fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{state},
		}
	}

	merged := mergeBindGroupLayouts(vertexShader.BindGroupLayoutDescriptors(), fragmentLayouts)
	maxGroup := -1
	for g := range merged {
		maxGroup = max(maxGroup, g)
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := range bindGroupLayouts {
		desc := merged[g]
		desc.Label = fmt.Sprintf("%s group %d", p.PipelineKey(), g)
		layout, layoutErr := b.device.CreateBindGroupLayout(&desc)
		if layoutErr != nil {
			return nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, layoutErr)
		}
		bindGroupLayouts[g] = layout
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return nil, err
	}

	layouts := vertexShader.VertexLayouts()
	vertexLayouts := make([]wgpu.VertexBufferLayout, 0, len(layouts))
	for i := range len(layouts) {
		vertexLayouts = append(vertexLayouts, vertexShader.VertexLayout(i)...)
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    vertexLayouts,
		},
		Fragment: fragment,
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: b.attachmentSamples(p.Attachment()),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: b.depthStencilState(p),
	})
	if err != nil {
		return nil, err
	}
	p.SetRenderPipeline(created)

	names := mergeVarNames(vertexShader.BindGroupVarNames(), nil)
	if fragmentShader != nil {
		names = mergeVarNames(names, fragmentShader.BindGroupVarNames())
	}
	dynamic := false
	for _, n := range names[0] {
		dynamic = dynamic || n == "structure"
	}
	return &wgpuProgram{
		pipeline:    p,
		layouts:     bindGroupLayouts,
		varNames:    names,
		vertexSlots: len(layouts),
		dynamic:     dynamic,
	}, nil
}

func (b *wgpuRendererBackendImpl) shaderModule(s shader.Shader) (*wgpu.ShaderModule, error) {
	key := s.Key()
	if m, ok := b.modules[key]; ok {
		return m, nil
	}
	m, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.Source(),
		},
	})
	if err != nil {
		return nil, err
	}
	b.modules[key] = m
	return m, nil
}

// depthStencilState maps the pipeline's depth and stencil modes onto the attachment's depth format.
// The depth test is LessEqual so overlays of the same geometry pass.
func (b *wgpuRendererBackendImpl) depthStencilState(p pipeline.Pipeline) *wgpu.DepthStencilState {
	var format wgpu.TextureFormat
	switch p.Attachment() {
	case pipeline.AttachmentScene, pipeline.AttachmentGlow:
		format = sceneDepthFormat
	case pipeline.AttachmentPick, pipeline.AttachmentShadow:
		format = depthOnlyFormat
	default:
		return nil
	}
	depthCompare := wgpu.CompareFunctionLessEqual
	if !p.DepthTestEnabled() {
		depthCompare = wgpu.CompareFunctionAlways
	}
	if p.Attachment() == pipeline.AttachmentPick {
		depthCompare = wgpu.CompareFunctionLess
	}
	face := wgpu.StencilFaceState{
		Compare:     wgpu.CompareFunctionAlways,
		FailOp:      wgpu.StencilOperationKeep,
		DepthFailOp: wgpu.StencilOperationKeep,
		PassOp:      wgpu.StencilOperationKeep,
	}
	switch p.Stencil() {
	case pipeline.StencilWrite:
		face.PassOp = wgpu.StencilOperationReplace
	case pipeline.StencilTest:
		// passes where the reference is not greater than the stored value
		face.Compare = wgpu.CompareFunctionLessEqual
	}
	state := &wgpu.DepthStencilState{
		Format:              format,
		DepthWriteEnabled:   p.DepthWriteEnabled(),
		DepthCompare:        depthCompare,
		DepthBias:           p.DepthBias(),
		DepthBiasSlopeScale: p.DepthBiasSlopeScale(),
		StencilFront:        face,
		StencilBack:         face,
	}
	if format == sceneDepthFormat {
		state.StencilReadMask = 0xFF
		state.StencilWriteMask = 0xFF
	}
	return state
}

func (b *wgpuRendererBackendImpl) colorFormat(a pipeline.Attachment) wgpu.TextureFormat {
	switch a {
	case pipeline.AttachmentFinal:
		return b.surfaceFormat
	case pipeline.AttachmentPick:
		return pickFormat
	case pipeline.AttachmentOcclusion:
		return occlusionFormat
	}
	return hdrFormat
}

func (b *wgpuRendererBackendImpl) attachmentSamples(a pipeline.Attachment) uint32 {
	if a == pipeline.AttachmentScene || a == pipeline.AttachmentGlow {
		return uint32(b.sampleCount)
	}
	return 1
}

// ensureFrameTargets recreates the intermediate targets when the frame size changes.
func (b *wgpuRendererBackendImpl) ensureFrameTargets(width, height int) error {
	if b.scene != nil && b.frameWidth == width && b.frameHeight == height {
		return nil
	}
	for _, t := range []*wgpuTexture{b.sceneMSAA, b.glowMSAA, b.scene, b.glow, b.blurH, b.blurV, b.depth} {
		t.release()
	}
	b.sceneMSAA, b.glowMSAA = nil, nil

	sampled := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	samples := uint32(b.sampleCount)
	var err error
	if samples > 1 {
		if b.sceneMSAA, err = b.createTexture("Scene MSAA", width, height, hdrFormat, wgpu.TextureUsageRenderAttachment, samples); err != nil {
			return err
		}
		if b.glowMSAA, err = b.createTexture("Glow MSAA", width, height, hdrFormat, wgpu.TextureUsageRenderAttachment, samples); err != nil {
			return err
		}
	}
	if b.scene, err = b.createTexture("Scene", width, height, hdrFormat, sampled, 1); err != nil {
		return err
	}
	if b.glow, err = b.createTexture("Glow", width, height, hdrFormat, sampled, 1); err != nil {
		return err
	}
	if b.blurH, err = b.createTexture("Blur Horizontal", width, height, hdrFormat, sampled, 1); err != nil {
		return err
	}
	if b.blurV, err = b.createTexture("Blur Vertical", width, height, hdrFormat, sampled, 1); err != nil {
		return err
	}
	if b.depth, err = b.createTexture("Scene Depth", width, height, sceneDepthFormat, wgpu.TextureUsageRenderAttachment, samples); err != nil {
		return err
	}
	b.frameWidth, b.frameHeight = width, height
	return nil
}

// occlusionTexture returns the live occlusion texture of a structure, recreating it when the size changes.
func (b *wgpuRendererBackendImpl) occlusionTexture(flat, size int) (*wgpuTexture, error) {
	if t, ok := b.occlusion[flat]; ok && t.width == size {
		return t, nil
	}
	t, err := b.createTexture(fmt.Sprintf("Ambient Occlusion %d", flat), size, size, occlusionFormat,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopySrc|wgpu.TextureUsageCopyDst, 1)
	if err != nil {
		return nil, fmt.Errorf("occlusion: %w", err)
	}
	b.occlusion[flat].release()
	b.occlusion[flat] = t
	return t, nil
}

func (b *wgpuRendererBackendImpl) createTexture(label string, width, height int, format wgpu.TextureFormat, usage wgpu.TextureUsage, samples uint32) (*wgpuTexture, error) {
	texture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", label, err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("texture %s: %w", label, err)
	}
	return &wgpuTexture{texture: texture, view: view, width: width, height: height}, nil
}

func (b *wgpuRendererBackendImpl) writeTexture(t *wgpuTexture, data []byte, bytesPerRow int) {
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Aspect:   wgpu.TextureAspectAll,
			Texture:  t.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(bytesPerRow),
			RowsPerImage: uint32(t.height),
		},
		&wgpu.Extent3D{
			Width:              uint32(t.width),
			Height:             uint32(t.height),
			DepthOrArrayLayers: 1,
		},
	)
}

// readTexture copies a region of a texture into a mappable buffer and blocks until it can be read.
// Row padding required by the copy is stripped from the result.
func (b *wgpuRendererBackendImpl) readTexture(t *wgpu.Texture, aspect wgpu.TextureAspect, origin wgpu.Origin3D, width, height, bytesPerPixel int) ([]byte, error) {
	row := width * bytesPerPixel
	padded := alignUp(row, int(wgpu.CopyBytesPerRowAlignment))
	size := uint64(padded * height)

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Readback Buffer",
		Size:  size,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, err
	}
	defer buf.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: t, MipLevel: 0, Origin: origin, Aspect: aspect},
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{Offset: 0, BytesPerRow: uint32(padded), RowsPerImage: uint32(height)},
		},
		&wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
	)
	commandBuffer, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return nil, err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	var status wgpu.BufferMapAsyncStatus
	done := false
	if err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status, done = s, true
	}); err != nil {
		return nil, err
	}
	b.device.Poll(true, nil)
	if !done || status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("readback buffer map failed: %v", status)
	}
	mapped := buf.GetMappedRange(0, uint(size))
	out := make([]byte, row*height)
	for y := range height {
		copy(out[y*row:(y+1)*row], mapped[y*padded:y*padded+row])
	}
	buf.Unmap()
	return out, nil
}

// submitPass records one render pass in its own command buffer and submits it.
func (b *wgpuRendererBackendImpl) submitPass(label string, desc *wgpu.RenderPassDescriptor, record func(pass *wgpu.RenderPassEncoder)) error {
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	desc.Label = label
	pass := encoder.BeginRenderPass(desc)
	if record != nil {
		record(pass)
	}
	pass.End()
	pass.Release()
	commandBuffer, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		b.releaseTransient()
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.releaseTransient()
	return nil
}

func (b *wgpuRendererBackendImpl) createUniformBuffer(label string, size int) (*wgpu.Buffer, error) {
	return b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
}

func (b *wgpuRendererBackendImpl) createMesh(m *model.Mesh) (*wgpuMesh, error) {
	vertexData, indexData := m.VertexBytes(), m.IndexBytes()
	vertex, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: m.Name + " Vertices",
		Size:  uint64(len(vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	b.queue.WriteBuffer(vertex, 0, vertexData)
	index, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: m.Name + " Indices",
		Size:  uint64(len(indexData)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vertex.Release()
		return nil, err
	}
	b.queue.WriteBuffer(index, 0, indexData)
	return &wgpuMesh{vertex: vertex, index: index, indexCount: uint32(len(m.Indices))}, nil
}

func (b *wgpuRendererBackendImpl) releaseTransient() {
	for _, g := range b.transient {
		g.Release()
	}
	b.transient = b.transient[:0]
}

func (b *wgpuRendererBackendImpl) releaseSurfaceTexture() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func leUint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func leFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// decodeRGBA16F converts tightly packed RGBA16Float texels into an opaque 16-bit image.
func decodeRGBA16F(raw []byte, width, height int) *image.RGBA64 {
	img := image.NewRGBA64(image.Rect(0, 0, width, height))
	half := func(i int) uint16 {
		return unorm16(float16.Frombits(binary.LittleEndian.Uint16(raw[i:])).Float32())
	}
	for y := range height {
		for x := range width {
			i := (y*width + x) * 8
			img.SetRGBA64(x, y, color.RGBA64{R: half(i), G: half(i + 2), B: half(i + 4), A: 0xffff})
		}
	}
	return img
}

func alignUp(n, alignment int) int {
	return (n + alignment - 1) / alignment * alignment
}

// mergeVarNames combines the binding variable names of two shader stages.
func mergeVarNames(a, b map[int]map[int]string) map[int]map[int]string {
	out := make(map[int]map[int]string, len(a))
	for _, src := range []map[int]map[int]string{a, b} {
		for g, bindings := range src {
			if out[g] == nil {
				out[g] = make(map[int]string, len(bindings))
			}
			maps.Copy(out[g], bindings)
		}
	}
	return out
}

// mergeBindGroupLayouts combines bind group layout descriptors from vertex and fragment shaders
// into a unified set of descriptors suitable for a render pipeline layout.
//
// For each group index present in either shader:
//   - Entries with the same binding number have their Visibility flags ORed together
//   - Entries unique to one shader are included with their original visibility
//
// Parameters:
//   - vertexLayouts: bind group layout descriptors from the vertex shader
//   - fragmentLayouts: bind group layout descriptors from the fragment shader, nil for depth-only pipelines
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(
	vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor,
) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)

	groupIndices := make(map[int]bool)
	for g := range vertexLayouts {
		groupIndices[g] = true
	}
	for g := range fragmentLayouts {
		groupIndices[g] = true
	}

	for g := range groupIndices {
		vDesc, hasV := vertexLayouts[g]
		fDesc, hasF := fragmentLayouts[g]

		switch {
		case hasV && !hasF:
			merged[g] = vDesc
		case hasF && !hasV:
			merged[g] = fDesc
		default:
			entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
			for _, e := range vDesc.Entries {
				entryMap[e.Binding] = e
			}
			for _, e := range fDesc.Entries {
				if existing, ok := entryMap[e.Binding]; ok {
					existing.Visibility |= e.Visibility
					entryMap[e.Binding] = existing
				} else {
					entryMap[e.Binding] = e
				}
			}

			entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
			for _, e := range entryMap {
				entries = append(entries, e)
			}
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Binding < entries[j].Binding
			})

			merged[g] = wgpu.BindGroupLayoutDescriptor{
				Label:   vDesc.Label,
				Entries: entries,
			}
		}
	}

	return merged
}
