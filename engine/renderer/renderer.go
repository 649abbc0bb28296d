package renderer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/camera"
	"github.com/Carmen-Shannon/oxy-crystal/engine/export"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/occlusion"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/picking"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/text"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/Carmen-Shannon/oxy-crystal/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"golang.org/x/image/font"
)

// ErrNoSource is returned when a frame, picture or pick is requested before the first Reload.
var ErrNoSource = errors.New("renderer: no scene source loaded")

// DefaultGlowRadius is the selection glow blur radius in pixels.
const DefaultGlowRadius = 8

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend
	window      window.Window

	orchestrator *pass.Orchestrator
	picker       *picking.Picker
	baker        *occlusion.Baker
	resources    *resource.Table
	atlas        text.Atlas

	src     scene.Source
	index   *indexer.Table
	camera  camera.Camera
	quality *scene.RenderQuality
	width   int
	height  int
	start   time.Time

	// the id buffer no longer matches the camera or the scene
	pickStale bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
	trace                pass.TraceFunc
	workers              int
	face                 font.Face
	shadowResolution     int
	softwareShadowLimit  int
	glowRadius           float32
	showBoundingBox      bool
	bakeOnReload         bool
}

// Renderer defines the interface for the rendering system.
//
// The Renderer keeps the GPU resources of an external scene description in sync, draws the pass list
// every frame, bakes and caches ambient occlusion per structure, resolves picks and renders offscreen pictures.
// Reload, RenderFrame, RenderPicture, Pick and the occlusion bakes are mutually exclusive.
type Renderer interface {
	// Reload rebuilds the uniform index and every per-structure resource from src. Cached ambient occlusion
	// is uploaded again for structures that kept their ID.
	//
	// Parameters:
	//   - src: the scene description
	//
	// Returns:
	//   - error: error if the uniforms or resources cannot be created, in which case the previous
	//     source keeps rendering
	Reload(src scene.Source) error

	// RenderFrame draws one frame with the renderer's camera and presents it. Headless renderers draw offscreen.
	//
	// Returns:
	//   - error: ErrNoSource before the first Reload, or the first pass failure
	RenderFrame() error

	// RenderPicture draws the scene offscreen at any resolution and reads it back.
	// The camera is resized for the picture and restored afterwards.
	//
	// Parameters:
	//   - width: the picture width in pixels
	//   - height: the picture height in pixels
	//   - cam: the camera to draw with, or nil for the renderer's camera
	//   - imageQuality: the requested output format
	//   - renderQuality: the geometry quality to draw at
	//
	// Returns:
	//   - *export.Picture: the rendered picture
	//   - error: ErrNoSource before the first Reload, or a rendering or readback failure
	RenderPicture(width, height int, cam camera.Camera, imageQuality scene.ImageQuality, renderQuality scene.RenderQuality) (*export.Picture, error)

	// Pick returns the object under a pixel of the viewport. The id buffer is redrawn when the camera or scene changed.
	//
	// Parameters:
	//   - x: column, 0 at the left edge
	//   - y: row, 0 at the top edge
	//
	// Returns:
	//   - *picking.ID: the object, or nil on a miss or out of bounds
	//   - error: ErrNoSource before the first Reload, or a readback failure
	Pick(x, y int) (*picking.ID, error)

	// PickDepth returns the depth of the atom under a pixel of the viewport.
	//
	// Parameters:
	//   - x: column, 0 at the left edge
	//   - y: row, 0 at the top edge
	//
	// Returns:
	//   - *float32: the depth in [0, 1], or nil when no atom is there
	//   - error: ErrNoSource before the first Reload, or a readback failure
	PickDepth(x, y int) (*float32, error)

	// PickWithDepth is Pick and PickDepth from one id buffer, so a frame drawn in between cannot
	// pair the object of one frame with the depth of another.
	PickWithDepth(x, y int) (*picking.ID, *float32, error)

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// SetRenderQuality overrides the quality requested by the scene source.
	// Cached ambient occlusion stays valid.
	SetRenderQuality(q scene.RenderQuality)

	// RenderQuality returns the quality frames are drawn at.
	RenderQuality() scene.RenderQuality

	// SetCamera replaces the camera used by RenderFrame and Pick.
	SetCamera(cam camera.Camera)

	// Camera returns the camera used by RenderFrame and Pick.
	Camera() camera.Camera

	// InvalidateAmbientOcclusion drops the cached occlusion of the given structures. The next bake redoes them.
	InvalidateAmbientOcclusion(structures ...scene.Structure)

	// InvalidateAmbientOcclusionAll drops every cached occlusion texture.
	InvalidateAmbientOcclusionAll()

	// BakeAmbientOcclusion bakes every structure that wants occlusion and has no cache entry.
	// It holds the renderer for the whole bake.
	//
	// Parameters:
	//   - ctx: cancels the remaining structures
	//
	// Returns:
	//   - error: ErrNoSource, the context error or the first bake failure
	BakeAmbientOcclusion(ctx context.Context) error

	// BakeAmbientOcclusionAsync bakes on a goroutine, holding the renderer for one structure at a time so
	// frames interleave with the bake. A Reload during the bake ends it early.
	//
	// Parameters:
	//   - ctx: cancels the remaining structures
	//
	// Returns:
	//   - <-chan error: receives the result once, then closes
	BakeAmbientOcclusionAsync(ctx context.Context) <-chan error

	// AmbientOcclusionBakes returns the number of bakes performed. Cache hits do not count.
	AmbientOcclusionBakes() int

	// Type reports the backend in use.
	Type() RendererBackendType

	// Release frees every GPU resource. The renderer cannot be used afterwards.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer on the given backend. A nil window gives a headless renderer that draws
// every frame offscreen; the software backend is always headless.
//
// Parameters:
//   - backendType: the backend implementation
//   - win: the window to present to, or nil
//   - options: variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: the created renderer
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:               &sync.Mutex{},
		backendType:      backendType,
		window:           win,
		width:            800,
		height:           600,
		start:            time.Now(),
		workers:          max(runtime.NumCPU()-1, 1),
		shadowResolution: occlusion.ShadowMapResolution,
		glowRadius:       DefaultGlowRadius,
	}
	for _, option := range options {
		option(r)
	}
	if backendType == BackendTypeSoftware {
		r.window = nil
	}
	if r.window != nil {
		r.width, r.height = r.window.Width(), r.window.Height()
	}

	msaa := MSAA4x
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	switch {
	case r.backend != nil:
		// supplied by an option
	case backendType == BackendTypeWGPU:
		var desc *wgpu.SurfaceDescriptor
		if r.window != nil {
			desc = r.window.SurfaceDescriptor()
		}
		r.backend = newWGPURendererBackend(desc, r.forceFallbackAdapter, msaa)
	case backendType == BackendTypeSoftware:
		r.backend = NewSoftwareRendererBackend(WithMaxShadowResolution(r.softwareShadowLimit))
	default:
		panic(fmt.Sprintf("renderer: unknown backend type %d", backendType))
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	r.backend.ConfigureSurface(r.width, r.height)

	atlasOptions := []text.AtlasBuilderOption{}
	if r.face != nil {
		atlasOptions = append(atlasOptions, text.WithFace(r.face))
	}
	r.atlas = text.NewAtlas(atlasOptions...)
	if err := r.backend.UploadGlyphAtlas(r.atlas.Image()); err != nil {
		panic(fmt.Sprintf("renderer: failed to upload glyph atlas: %v", err))
	}

	r.resources = resource.NewTable(resource.WithWorkers(r.workers), resource.WithGlyphLayout(r.atlas))
	r.orchestrator = pass.NewOrchestrator(r.backend, pass.WithTrace(r.trace))
	r.picker = picking.NewPicker(r.backend)
	r.baker = occlusion.NewBaker(r.backend, occlusion.WithShadowResolution(r.shadowResolution))

	if r.camera == nil {
		r.camera = camera.NewCamera(camera.WithViewport(r.width, r.height), camera.WithController(camera.NewCameraController()))
	} else {
		r.camera.UpdateForWindowResize(r.width, r.height)
	}

	common.Logger().Info("renderer created", "backend", backendType, "msaa", uint32(msaa),
		"width", r.width, "height", r.height, "headless", r.window == nil)
	return r
}

func (r *renderer) Reload(src scene.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if src == nil {
		return ErrNoSource
	}
	start := time.Now()
	idx := indexer.FromSource(src, indexer.WithUniformHook(occlusion.Hook))
	// a failed rebuild keeps the previous arena, so nothing has changed yet
	if err := r.resources.Rebuild(src, idx, r.backend); err != nil {
		return fmt.Errorf("failed to rebuild resources: %w", err)
	}
	if err := r.backend.WriteStructureUniforms(idx.UniformBytes()); err != nil {
		r.rollbackResources()
		return fmt.Errorf("failed to write structure uniforms: %w", err)
	}

	r.src = src
	r.index = idx
	r.baker.SetInputs(occlusion.Inputs{Index: idx, Resources: r.resources, BoundingBox: src.RenderBoundingBox()})
	r.picker.SetInputs(idx, r.resources)
	r.pickStale = true

	// flat indices may have moved: push cached textures into their new slots
	restored := 0
	var restoreErr error
	idx.Each(func(flat, _, _ int, s scene.Structure) {
		if restoreErr != nil || !occlusion.Wanted(s) || !r.baker.Cached(s.ID()) {
			return
		}
		if _, err := r.baker.GetOrBake(s, flat, r.renderQuality()); err != nil {
			restoreErr = err
			return
		}
		restored++
	})
	if restoreErr != nil {
		return fmt.Errorf("failed to restore ambient occlusion: %w", restoreErr)
	}
	if r.bakeOnReload {
		if err := r.baker.BakeAll(context.Background(), r.renderQuality()); err != nil {
			return fmt.Errorf("failed to bake ambient occlusion: %w", err)
		}
	}

	common.Logger().Debug("scene reloaded", "structures", idx.Len(), "scenes", idx.NumberOfScenes(),
		"restoredOcclusion", restored, "elapsed", time.Since(start))
	return nil
}

// rollbackResources rebuilds the arena of the source loaded before a failed Reload, so arena and
// uniforms share one flat numbering again. Caller must hold the mutex.
func (r *renderer) rollbackResources() {
	if r.src == nil {
		return
	}
	if err := r.resources.Rebuild(r.src, r.index, r.backend); err != nil {
		common.Logger().Warn("failed to restore resources after a failed reload", "error", err)
	}
}

func (r *renderer) RenderFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.src == nil {
		return ErrNoSource
	}
	r.camera.Update()
	quality := r.renderQuality()
	r.backend.WriteFrameUniforms(r.frameUniforms(r.camera, r.width, r.height, quality, float32(time.Since(r.start).Seconds())))
	r.pickStale = true

	if err := r.drawFrame(gpu.FrameTarget{Width: r.width, Height: r.height, Offscreen: r.window == nil}, quality); err != nil {
		return err
	}
	if r.window != nil {
		r.backend.Present()
	}
	return nil
}

func (r *renderer) RenderPicture(width, height int, cam camera.Camera, imageQuality scene.ImageQuality, renderQuality scene.RenderQuality) (*export.Picture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("renderer: invalid picture size %dx%d", width, height)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.src == nil {
		return nil, ErrNoSource
	}
	if cam == nil {
		cam = r.camera
	}
	prevW, prevH := cam.ViewportSize()
	cam.UpdateForWindowResize(width, height)
	defer cam.UpdateForWindowResize(prevW, prevH)

	start := time.Now()
	// time stays at zero so animated selection styles do not change the picture
	r.backend.WriteFrameUniforms(r.frameUniforms(cam, width, height, renderQuality, 0))
	r.pickStale = true
	if err := r.drawFrame(gpu.FrameTarget{Width: width, Height: height, Offscreen: true}, renderQuality); err != nil {
		return nil, err
	}
	pixels, err := r.backend.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("failed to read picture: %w", err)
	}

	common.Logger().Info("picture rendered", "width", width, "height", height,
		"imageQuality", imageQuality, "renderQuality", renderQuality, "elapsed", time.Since(start))
	return export.NewPicture(pixels, imageQuality), nil
}

// drawFrame runs the pass list inside a backend frame. Caller must hold the mutex.
func (r *renderer) drawFrame(target gpu.FrameTarget, quality scene.RenderQuality) error {
	if err := r.backend.BeginFrame(target); err != nil {
		return fmt.Errorf("failed to begin frame: %w", err)
	}
	err := r.orchestrator.RenderFrame(&pass.Frame{
		Index:           r.index,
		Resources:       r.resources,
		Quality:         quality,
		ShowBoundingBox: r.showBoundingBox,
	})
	if endErr := r.backend.EndFrame(); err == nil && endErr != nil {
		err = fmt.Errorf("failed to end frame: %w", endErr)
	}
	return err
}

// frameUniforms builds the per-frame record for a camera and viewport. Caller must hold the mutex.
func (r *renderer) frameUniforms(cam camera.Camera, width, height int, quality scene.RenderQuality, t float32) gpu.FrameUniforms {
	bg := r.src.Background()
	return gpu.FrameUniforms{
		View:           cam.ModelViewMatrix(),
		Projection:     cam.ProjectionMatrix(),
		Width:          float32(width),
		Height:         float32(height),
		BackgroundType: uint32(bg.Type),
		Background1:    bg.Color1,
		Background2:    bg.Color2,
		Orthographic:   cam.FrustumType() == camera.FrustumOrthographic,
		Quality:        uint32(quality),
		GlowRadius:     r.glowRadius,
		Time:           t,
	}
}

// renderQuality returns the override or the source's quality. Caller must hold the mutex.
func (r *renderer) renderQuality() scene.RenderQuality {
	if r.quality != nil {
		return *r.quality
	}
	if r.src != nil {
		return r.src.RenderQuality()
	}
	return scene.QualityMedium
}

// ensureIDBuffer redraws the id buffer with the live camera when it is stale. Caller must hold the mutex.
func (r *renderer) ensureIDBuffer() error {
	if r.src == nil {
		return ErrNoSource
	}
	if !r.pickStale {
		return nil
	}
	r.backend.WriteFrameUniforms(r.frameUniforms(r.camera, r.width, r.height, r.renderQuality(), 0))
	if err := r.picker.RenderIDBuffer(r.width, r.height); err != nil {
		return err
	}
	r.pickStale = false
	return nil
}

func (r *renderer) Pick(x, y int) (*picking.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureIDBuffer(); err != nil {
		return nil, err
	}
	return r.picker.Pick(x, y)
}

func (r *renderer) PickDepth(x, y int) (*float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureIDBuffer(); err != nil {
		return nil, err
	}
	return r.picker.PickDepth(x, y)
}

func (r *renderer) PickWithDepth(x, y int) (*picking.ID, *float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureIDBuffer(); err != nil {
		return nil, nil, err
	}
	return r.picker.PickWithDepth(x, y)
}

func (r *renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = width, height
	r.backend.ConfigureSurface(width, height)
	r.camera.UpdateForWindowResize(width, height)
	r.pickStale = true
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.SetPresentMode(mode)
}

func (r *renderer) SetRenderQuality(q scene.RenderQuality) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quality = &q
	r.pickStale = true
}

func (r *renderer) RenderQuality() scene.RenderQuality {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renderQuality()
}

func (r *renderer) SetCamera(cam camera.Camera) {
	if cam == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cam.UpdateForWindowResize(r.width, r.height)
	r.camera = cam
	r.pickStale = true
}

func (r *renderer) Camera() camera.Camera {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.camera
}

func (r *renderer) InvalidateAmbientOcclusion(structures ...scene.Structure) {
	ids := make([]scene.StructureID, 0, len(structures))
	for _, s := range structures {
		if s != nil {
			ids = append(ids, s.ID())
		}
	}
	r.baker.Invalidate(ids...)
}

func (r *renderer) InvalidateAmbientOcclusionAll() {
	r.baker.InvalidateAll()
}

func (r *renderer) BakeAmbientOcclusion(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.src == nil {
		return ErrNoSource
	}
	return r.baker.BakeAll(ctx, r.renderQuality())
}

func (r *renderer) BakeAmbientOcclusionAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	r.mu.Lock()
	idx := r.index
	r.mu.Unlock()
	if idx == nil {
		done <- ErrNoSource
		close(done)
		return done
	}

	go func() {
		defer close(done)
		for flat := range idx.Len() {
			if err := ctx.Err(); err != nil {
				done <- err
				return
			}
			replaced, err := r.bakeOne(idx, flat)
			if err != nil || replaced {
				done <- err
				return
			}
		}
		done <- nil
	}()
	return done
}

// bakeOne bakes a single structure of idx. It reports replaced when a reload swapped the index table.
func (r *renderer) bakeOne(idx *indexer.Table, flat int) (replaced bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != idx {
		return true, nil
	}
	s := idx.Structure(flat)
	if !occlusion.Wanted(s) || r.baker.Cached(s.ID()) {
		return false, nil
	}
	_, err = r.baker.GetOrBake(s, flat, r.renderQuality())
	return false, err
}

func (r *renderer) AmbientOcclusionBakes() int {
	return r.baker.BakeCount()
}

func (r *renderer) Type() RendererBackendType {
	return r.backendType
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources.Release()
	r.backend.Release()
	r.src = nil
	r.index = nil
}
