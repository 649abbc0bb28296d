package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-crystal/engine/profiler"
	"github.com/Carmen-Shannon/oxy-crystal/engine/window"
)

// EngineBuilderOption configures an engine before NewEngine wires its window.
type EngineBuilderOption func(*engine)

// WithWindow sets the window whose messages Run processes and whose input drives the camera and
// picking. It should be the window the renderer presents to.
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithProfiler replaces the engine's profiler, typically with one whose RecordPass was handed to
// renderer.WithTrace so its reports include per-pass timings.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		if p != nil {
			e.profiler = p
		}
	}
}

// WithProfiling turns the profiler's periodic log line on or off.
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithAsyncAmbientOcclusion makes SetSource and Reload start a background occlusion bake. Frames
// drawn before it finishes show the structures without occlusion.
func WithAsyncAmbientOcclusion(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.asyncOcclusion = enabled
	}
}

// WithTickRate sets how often the tick callback runs.
//
// Parameters:
//   - hz: ticks per second; values <= 0 mean 60
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(hz float64) EngineBuilderOption {
	return func(e *engine) {
		e.tickPeriod = perSecond(hz, time.Second/60)
	}
}

// WithRenderFrameLimit caps the render loop.
//
// Parameters:
//   - fps: frames per second; values <= 0 leave the loop uncapped
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.minFrame = perSecond(fps, 0)
	}
}

// perSecond converts a rate to a period, returning fallback for rates <= 0.
func perSecond(rate float64, fallback time.Duration) time.Duration {
	if rate <= 0 {
		return fallback
	}
	return time.Duration(float64(time.Second) / rate)
}
