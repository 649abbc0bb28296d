package renderer

import (
	"github.com/Carmen-Shannon/oxy-crystal/engine/camera"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/pass"
	"golang.org/x/image/font"
)

// RendererBuilderOption configures a renderer before NewRenderer creates its backend.
type RendererBuilderOption func(*renderer)

// WithPresentMode chooses between vsync and uncapped presentation for a windowed renderer.
// Headless renderers never present.
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithMSAA sets the sample count of the scene and glow targets, MSAA4x unless given. The picking
// and occlusion targets are always single-sampled, and the software backend ignores the option.
//
// Parameters:
//   - count: MSAAOff or MSAA4x
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingMSAA = &count
	}
}

// WithForceSoftwareRenderer asks wgpu for its fallback adapter, such as lavapipe or SwiftShader.
// The WGSL programs still run, unlike with BackendTypeSoftware.
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithSize sets the viewport of a headless renderer. Windowed renderers take the window size instead.
// Defaults to 800x600.
//
// Parameters:
//   - width: viewport width in pixels
//   - height: viewport height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the size option to a renderer
func WithSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		if width > 0 && height > 0 {
			r.width, r.height = width, height
		}
	}
}

// WithCamera sets the camera used by RenderFrame and Pick. Without it the renderer creates
// a perspective camera with an orbit controller.
//
// Parameters:
//   - cam: the camera
//
// Returns:
//   - RendererBuilderOption: a function that applies the camera option to a renderer
func WithCamera(cam camera.Camera) RendererBuilderOption {
	return func(r *renderer) {
		r.camera = cam
	}
}

// WithTrace receives the duration of every pass, e.g. for a profiler.
//
// Parameters:
//   - fn: called after each pass with its name and elapsed time
//
// Returns:
//   - RendererBuilderOption: a function that applies the trace option to a renderer
func WithTrace(fn pass.TraceFunc) RendererBuilderOption {
	return func(r *renderer) {
		r.trace = fn
	}
}

// WithWorkers sets how many goroutines encode instance records on Reload.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - RendererBuilderOption: a function that applies the workers option to a renderer
func WithWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.workers = max(n, 1)
	}
}

// WithFace sets the font rasterised into the annotation glyph atlas.
func WithFace(face font.Face) RendererBuilderOption {
	return func(r *renderer) {
		r.face = face
	}
}

// WithGlowRadius sets the blur radius of the selection glow in pixels. Defaults to DefaultGlowRadius.
func WithGlowRadius(radius float32) RendererBuilderOption {
	return func(r *renderer) {
		if radius > 0 {
			r.glowRadius = radius
		}
	}
}

// WithShadowResolution sets the depth map edge length used by ambient occlusion bakes.
func WithShadowResolution(resolution int) RendererBuilderOption {
	return func(r *renderer) {
		if resolution > 0 {
			r.shadowResolution = resolution
		}
	}
}

// WithSoftwareShadowLimit raises or lowers the shadow map cap of the software backend, which is
// DefaultSoftwareShadowResolution unless given. The wgpu backend ignores it.
func WithSoftwareShadowLimit(resolution int) RendererBuilderOption {
	return func(r *renderer) {
		if resolution > 0 {
			r.softwareShadowLimit = resolution
		}
	}
}

// WithShowBoundingBox draws the render bounding box outline.
func WithShowBoundingBox(show bool) RendererBuilderOption {
	return func(r *renderer) {
		r.showBoundingBox = show
	}
}

// WithAmbientOcclusionOnReload makes Reload bake every structure that wants ambient occlusion and has
// no cache entry before it returns. Without it occlusion is baked only on request.
//
// Parameters:
//   - bake: true to bake during Reload
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithAmbientOcclusionOnReload(bake bool) RendererBuilderOption {
	return func(r *renderer) {
		r.bakeOnReload = bake
	}
}
