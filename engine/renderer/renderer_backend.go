package renderer

import (
	"image"

	"github.com/Carmen-Shannon/oxy-crystal/engine/model"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/occlusion"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/picking"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/resource"
)

// RendererBackendType identifies the backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the deterministic CPU rasteriser. It needs no window or GPU.
	BackendTypeSoftware
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	}
	return "unknown"
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing of the scene target.
// WebGPU guarantees support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4
)

// RendererBackend is the device surface the Renderer drives. It carries the contracts of the
// resource table, the pass orchestrator, the picker and the occlusion baker, plus frame setup.
type RendererBackend interface {
	resource.Allocator
	pass.Backend
	picking.Backend
	occlusion.Backend

	// Type reports which implementation this is.
	Type() RendererBackendType

	// ConfigureSurface resizes the window surface. Offscreen frames ignore it.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets how frames are delivered to the display.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// WriteStructureUniforms replaces the structure uniform buffer with the indexer's records.
	// Live ambient occlusion textures are dropped because flat indices may have changed.
	//
	// Parameters:
	//   - data: UniformStride-aligned records in flat order
	//
	// Returns:
	//   - error: error if the buffer cannot be created or data is misaligned
	WriteStructureUniforms(data []byte) error

	// WriteFrameUniforms uploads the camera, viewport and background record.
	WriteFrameUniforms(f gpu.FrameUniforms)

	// UploadGlyphAtlas uploads the coverage atlas sampled by the text pass.
	//
	// Parameters:
	//   - img: the atlas image
	//
	// Returns:
	//   - error: error if the texture cannot be created
	UploadGlyphAtlas(img *image.Alpha) error

	// BeginFrame sizes the frame targets and starts recording. Passes may only begin inside a frame.
	//
	// Parameters:
	//   - target: the frame size and whether it renders offscreen
	//
	// Returns:
	//   - error: error if the surface texture cannot be acquired or a frame is already open
	BeginFrame(target gpu.FrameTarget) error

	// EndFrame submits the recorded passes.
	//
	// Returns:
	//   - error: gpu.ErrNotInFrame when no frame is open
	EndFrame() error

	// ReadFrame blocks until the last frame completes and reads its final target back.
	//
	// Returns:
	//   - *image.RGBA64: the final pixels, opaque
	//   - error: error if no offscreen frame was rendered or the readback fails
	ReadFrame() (*image.RGBA64, error)

	// Present shows the last window frame. Offscreen frames and the software backend ignore it.
	Present()

	// Release frees every device object owned by the backend.
	Release()
}

// standardMeshes builds the shared geometry instanced draws expand into.
func standardMeshes() map[gpu.Mesh]*model.Mesh {
	return map[gpu.Mesh]*model.Mesh{
		gpu.MeshSphere:   model.Sphere(),
		gpu.MeshImpostor: model.Impostor(),
		gpu.MeshCylinder: model.Cylinder(),
		gpu.MeshCube:     model.Cube(),
		gpu.MeshPrism:    model.Prism(6),
		gpu.MeshQuad:     model.Quad(),
	}
}
