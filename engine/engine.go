package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/profiler"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/picking"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/Carmen-Shannon/oxy-crystal/engine/window"
)

// engine drives one renderer from two goroutines, a fixed-rate tick loop and a free-running render
// loop, while the calling goroutine pumps window messages.
type engine struct {
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup

	done      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once

	window   window.Window
	renderer renderer.Renderer
	source   scene.Source

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	tickPeriod  time.Duration
	rateUpdates chan time.Duration // latest tick period while running, capacity 1
	minFrame    time.Duration      // 0 leaves the render loop uncapped

	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)
	pickCallback   func(id *picking.ID, depth *float32)

	asyncOcclusion bool
	cancelBake     context.CancelFunc

	drag dragState
}

// Engine is the main entry point of the viewer.
// It orchestrates the tick loop, the render loop, camera input and picking around a single renderer.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance, or nil for a headless engine
	Window() window.Window

	// Renderer returns the renderer frames are drawn with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer instance
	Renderer() renderer.Renderer

	// SetSource loads a scene description into the renderer and starts a background ambient occlusion
	// bake when asynchronous occlusion is enabled. A bake still running for the previous source is cancelled.
	//
	// Parameters:
	//   - src: the scene description
	//
	// Returns:
	//   - error: error if the renderer cannot load the source
	SetSource(src scene.Source) error

	// Source returns the scene description currently loaded.
	Source() scene.Source

	// Reload loads the current source again after its structures were edited.
	//
	// Returns:
	//   - error: renderer.ErrNoSource without a source, or the reload failure
	Reload() error

	// SetProfiling turns the profiler's once-per-second log line on or off. It may be called from
	// any goroutine, including input callbacks while Run is active.
	SetProfiling(enabled bool)

	// Profiling reports whether the profiler logs.
	Profiling() bool

	// SetTickRate changes how often the tick callback runs. A running engine picks the new rate up
	// on its next tick.
	//
	// Parameters:
	//   - hz: ticks per second; values <= 0 mean 60
	SetTickRate(hz float64)

	// SetTickCallback registers the application update run by the tick loop. It receives the seconds
	// since the previous tick.
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers a function run after every frame with the seconds since the
	// previous frame. The viewer applies pending configuration changes here.
	SetRenderCallback(callback func(deltaTime float32))

	// SetPickCallback registers the function called when the left mouse button is clicked without dragging.
	//
	// Parameters:
	//   - callback: receives the object under the cursor and its depth; both are nil on a miss
	SetPickCallback(callback func(id *picking.ID, depth *float32))

	// SetRenderFrameLimit caps the render loop at fps frames per second; 0 removes the cap.
	SetRenderFrameLimit(fps float64)

	// Run starts the engine loops and processes window messages on the calling goroutine, which must be
	// the one that created the window. Blocks until the window closes or Quit is called, then destroys
	// the window. Without a window Run returns immediately.
	Run()

	// Quit stops both loops and cancels a running bake. Calls after the first do nothing.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine around a renderer.
// Window input is wired to the renderer's camera controller: left drag orbits, middle drag pans,
// the scroll wheel zooms and a left click picks.
//
// Parameters:
//   - r: the renderer to draw with
//   - options: functional options for engine configuration (window, profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(r renderer.Renderer, options ...EngineBuilderOption) Engine {
	e := &engine{
		done:        make(chan struct{}),
		rateUpdates: make(chan time.Duration, 1),
		renderer:    r,
		profiler:    profiler.NewProfiler(),
		tickPeriod:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		// GLFW windows may only be destroyed on the thread that processes their messages
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.done:
				e.closeWindow()
			default:
			}
		})
		e.window.SetResizeCallback(func(width, height int) {
			e.renderer.Resize(width, height)
		})
		e.window.SetPointerCallback(e.handlePointer)
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) SetSource(src scene.Source) error {
	e.mu.Lock()
	if e.cancelBake != nil {
		e.cancelBake()
		e.cancelBake = nil
	}
	e.source = src
	e.mu.Unlock()

	if err := e.renderer.Reload(src); err != nil {
		return err
	}
	if e.asyncOcclusion {
		e.startBake()
	}
	return nil
}

func (e *engine) Source() scene.Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

func (e *engine) Reload() error {
	src := e.Source()
	if src == nil {
		return renderer.ErrNoSource
	}
	return e.SetSource(src)
}

// startBake runs an asynchronous occlusion bake and logs its outcome.
func (e *engine) startBake() {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancelBake = cancel
	e.mu.Unlock()

	done := e.renderer.BakeAmbientOcclusionAsync(ctx)
	go func() {
		defer cancel()
		err := <-done
		switch {
		case err == nil:
			common.Logger().Debug("background ambient occlusion bake finished", "bakes", e.renderer.AmbientOcclusionBakes())
		case errors.Is(err, context.Canceled):
		default:
			common.Logger().Warn("background ambient occlusion bake failed", "error", err)
		}
	}()
}

func (e *engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.wg.Add(2)
	go e.tickLoop()
	go e.renderLoop()

	if e.window != nil {
		e.window.ProcessMessages()
	}
	e.stop()
	e.wg.Wait()
	e.closeWindow()
}

func (e *engine) Quit() {
	e.stop()
}

// closeWindow destroys the window once. It must run on the message loop thread.
func (e *engine) closeWindow() {
	if e.window == nil {
		return
	}
	e.closeOnce.Do(func() {
		if err := e.window.Close(); err != nil {
			common.Logger().Warn("failed to close window", "error", err)
		}
	})
}

// stop closes done and cancels a running bake, once.
func (e *engine) stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		if e.cancelBake != nil {
			e.cancelBake()
			e.cancelBake = nil
		}
		e.mu.Unlock()
		close(e.done)
	})
}

// tickLoop calls the tick callback every tickPeriod until done closes.
func (e *engine) tickLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tickPeriod)
	defer ticker.Stop()
	prev := time.Now()

	for {
		select {
		case <-e.done:
			return
		case period := <-e.rateUpdates:
			e.tickPeriod = period
			ticker.Reset(period)
		case now := <-ticker.C:
			dt := float32(now.Sub(prev).Seconds())
			prev = now
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		}
	}
}

// renderLoop draws frames back to back, or no faster than minFrame, until done closes. A panic
// in a frame is logged and stops the engine.
func (e *engine) renderLoop() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("render loop panicked", "panic", r)
			e.stop()
		}
	}()

	var lastErr error
	prev := time.Now()
	for {
		select {
		case <-e.done:
			return
		default:
		}

		start := time.Now()
		lastErr = e.frame(float32(start.Sub(prev).Seconds()), lastErr)
		prev = start

		if e.minFrame > 0 {
			if wait := e.minFrame - time.Since(start); wait > 0 {
				time.Sleep(wait)
			}
		}
	}
}

// frame renders once and runs the per-frame hooks. Frames without a source are not failures, and
// an error equal to the previous frame's is not logged again.
func (e *engine) frame(dt float32, lastErr error) error {
	err := e.renderer.RenderFrame()
	if err != nil && !errors.Is(err, renderer.ErrNoSource) && (lastErr == nil || err.Error() != lastErr.Error()) {
		common.Logger().Warn("frame failed", "error", err)
	}
	if e.renderCallback != nil {
		e.renderCallback(dt)
	}
	if e.profiler != nil && e.profilingEnabled.Load() {
		e.profiler.Tick()
	}
	return err
}

// pick resolves a click and hands the result to the pick callback.
func (e *engine) pick(x, y int) {
	id, depth, err := e.renderer.PickWithDepth(x, y)
	if err != nil {
		if !errors.Is(err, renderer.ErrNoSource) {
			common.Logger().Warn("pick failed", "x", x, "y", y, "error", err)
		}
		return
	}
	if e.pickCallback != nil {
		e.pickCallback(id, depth)
	}
}

func (e *engine) SetProfiling(enabled bool) {
	e.profilingEnabled.Store(enabled)
}

func (e *engine) Profiling() bool {
	return e.profilingEnabled.Load()
}

func (e *engine) SetTickRate(hz float64) {
	period := perSecond(hz, time.Second/60)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		e.tickPeriod = period
		return
	}
	// keep only the newest period queued
	select {
	case <-e.rateUpdates:
	default:
	}
	e.rateUpdates <- period
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetPickCallback(callback func(id *picking.ID, depth *float32)) {
	e.pickCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.minFrame = perSecond(fps, 0)
}
