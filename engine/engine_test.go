package engine

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-crystal/engine/camera"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/picking"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/Carmen-Shannon/oxy-crystal/engine/window"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const viewport = 64

func newTestEngine(t *testing.T, options ...EngineBuilderOption) *engine {
	t.Helper()
	cam := camera.NewCamera(
		camera.WithViewport(viewport, viewport),
		camera.WithController(camera.NewCameraController(camera.WithRadius(20))),
	)
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, nil,
		renderer.WithSize(viewport, viewport),
		renderer.WithCamera(cam),
		renderer.WithWorkers(2),
		renderer.WithShadowResolution(16),
	)
	t.Cleanup(r.Release)
	return NewEngine(r, options...).(*engine)
}

func testSource(ao bool) scene.Source {
	style := scene.DefaultStyle()
	style.AmbientOcclusion = ao
	s := scene.NewStructure(1,
		scene.WithAtoms(scene.Atom{Position: mgl32.Vec3{0, 0, 0}, Radius: 1.5, Color: [4]float32{0.9, 0.2, 0.2, 1}, Element: "O"}),
		scene.WithStyle(style),
	)
	return scene.NewSource(scene.WithScene(s), scene.WithRenderQuality(scene.QualityHigh))
}

func press(e *engine, b window.Button, x, y int32) {
	e.handlePointer(window.PointerEvent{Action: window.PointerPress, Button: b, X: x, Y: y})
}

func release(e *engine, b window.Button, x, y int32) {
	e.handlePointer(window.PointerEvent{Action: window.PointerRelease, Button: b, X: x, Y: y})
}

func move(e *engine, x, y int32) {
	e.handlePointer(window.PointerEvent{Action: window.PointerMove, X: x, Y: y})
}

func TestReloadWithoutSource(t *testing.T) {
	e := newTestEngine(t)
	assert.ErrorIs(t, e.Reload(), renderer.ErrNoSource)
	assert.Nil(t, e.Source())
}

func TestClickPicks(t *testing.T) {
	e := newTestEngine(t)
	src := testSource(false)
	require.NoError(t, e.SetSource(src))
	assert.Same(t, src, e.Source())

	var picked []*picking.ID
	var depths []*float32
	e.SetPickCallback(func(id *picking.ID, depth *float32) {
		picked = append(picked, id)
		depths = append(depths, depth)
	})

	// a small wobble is still a click
	press(e, window.ButtonLeft, viewport/2, viewport/2)
	move(e, viewport/2+1, viewport/2+1)
	release(e, window.ButtonLeft, viewport/2+1, viewport/2+1)

	press(e, window.ButtonLeft, 1, 1)
	release(e, window.ButtonLeft, 1, 1)

	require.Len(t, picked, 2)
	require.NotNil(t, picked[0])
	assert.Equal(t, picking.KindAtom, picked[0].Kind)
	require.NotNil(t, depths[0])
	assert.Nil(t, picked[1])
	assert.Nil(t, depths[1])
}

func TestDragOrbitsWithoutPicking(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.SetSource(testSource(false)))
	picks := 0
	e.SetPickCallback(func(*picking.ID, *float32) { picks++ })

	ctrl := e.Renderer().Camera().Controller()
	before := ctrl.Azimuth()

	press(e, window.ButtonLeft, 10, 10)
	move(e, 30, 10)
	release(e, window.ButtonLeft, 30, 10)

	assert.Zero(t, picks)
	assert.InDelta(t, before-20*0.005, ctrl.Azimuth(), 1e-5)
}

func TestMiddleDragPans(t *testing.T) {
	e := newTestEngine(t)
	ctrl := e.Renderer().Camera().Controller()
	target := ctrl.Target()

	press(e, window.ButtonMiddle, 10, 10)
	move(e, 20, 10)
	release(e, window.ButtonMiddle, 20, 10)
	move(e, 40, 10)

	moved := ctrl.Target().Sub(target)
	assert.NotZero(t, moved.Len())
	assert.InDelta(t, 0, moved.Y(), 1e-5)
}

func TestSecondButtonIgnoredWhileDragging(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.SetSource(testSource(false)))
	picks := 0
	e.SetPickCallback(func(*picking.ID, *float32) { picks++ })
	ctrl := e.Renderer().Camera().Controller()
	target := ctrl.Target()

	press(e, window.ButtonLeft, viewport/2, viewport/2)
	press(e, window.ButtonMiddle, viewport/2, viewport/2)
	release(e, window.ButtonMiddle, viewport/2, viewport/2)
	assert.Zero(t, picks)
	release(e, window.ButtonLeft, viewport/2, viewport/2)
	assert.Equal(t, 1, picks)
	assert.Equal(t, target, ctrl.Target())

	// a right click does nothing
	press(e, window.ButtonRight, viewport/2, viewport/2)
	release(e, window.ButtonRight, viewport/2, viewport/2)
	assert.Equal(t, 1, picks)
}

func TestScrollZooms(t *testing.T) {
	e := newTestEngine(t)
	ctrl := e.Renderer().Camera().Controller()
	e.handlePointer(window.PointerEvent{Action: window.PointerScroll, Scroll: 2})
	assert.InDelta(t, 18, ctrl.Radius(), 1e-5)
}

func TestAsyncAmbientOcclusion(t *testing.T) {
	e := newTestEngine(t, WithAsyncAmbientOcclusion(true))
	require.NoError(t, e.SetSource(testSource(true)))

	require.Eventually(t, func() bool {
		return e.Renderer().AmbientOcclusionBakes() == 1
	}, 10*time.Second, 10*time.Millisecond)

	// the structure is cached, so reloading starts a bake with nothing to do
	require.NoError(t, e.Reload())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, e.Renderer().AmbientOcclusionBakes())
	e.Quit()
}

func TestSetTickRate(t *testing.T) {
	e := newTestEngine(t, WithTickRate(30))
	assert.Equal(t, time.Second/30, e.tickPeriod)
	e.SetTickRate(0)
	assert.Equal(t, time.Second/60, e.tickPeriod)
	e.SetRenderFrameLimit(120)
	assert.Equal(t, time.Second/120, e.minFrame)
	e.SetRenderFrameLimit(0)
	assert.Zero(t, e.minFrame)
}

func TestSetProfiling(t *testing.T) {
	e := newTestEngine(t, WithProfiling(true))
	assert.True(t, e.Profiling())
	e.SetProfiling(false)
	assert.False(t, e.Profiling())
}
