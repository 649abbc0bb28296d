package renderer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-crystal/engine/camera"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/picking"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const viewport = 64

func atomStructure(id scene.StructureID, x float32, ao bool) scene.EditableStructure {
	style := scene.DefaultStyle()
	style.AmbientOcclusion = ao
	return scene.NewStructure(id,
		scene.WithAtoms(scene.Atom{Position: mgl32.Vec3{x, 0, 0}, Radius: 1.5, Color: [4]float32{0.9, 0.2, 0.2, 1}, Element: "O"}),
		scene.WithStyle(style),
	)
}

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) Renderer {
	t.Helper()
	cam := camera.NewCamera(
		camera.WithViewport(viewport, viewport),
		camera.WithController(camera.NewCameraController(camera.WithRadius(20))),
	)
	options = append([]RendererBuilderOption{
		WithSize(viewport, viewport),
		WithCamera(cam),
		WithWorkers(2),
		WithShadowResolution(16),
	}, options...)
	r := NewRenderer(BackendTypeSoftware, nil, options...)
	t.Cleanup(r.Release)
	return r
}

func background() scene.Background {
	return scene.Background{Type: scene.BackgroundColor, Color1: [4]float32{0.1, 0.2, 0.3, 1}}
}

func TestRequiresSource(t *testing.T) {
	r := newTestRenderer(t)

	assert.ErrorIs(t, r.RenderFrame(), ErrNoSource)
	_, err := r.RenderPicture(8, 8, nil, scene.ImageRGB8, scene.QualityHigh)
	assert.ErrorIs(t, err, ErrNoSource)
	_, err = r.Pick(1, 1)
	assert.ErrorIs(t, err, ErrNoSource)
	assert.ErrorIs(t, r.BakeAmbientOcclusion(context.Background()), ErrNoSource)
	assert.ErrorIs(t, <-r.BakeAmbientOcclusionAsync(context.Background()), ErrNoSource)
	assert.ErrorIs(t, r.Reload(nil), ErrNoSource)
}

func TestPickRoundTrip(t *testing.T) {
	r := newTestRenderer(t)
	src := scene.NewSource(
		scene.WithScene(atomStructure(1, 0, false)),
		scene.WithBackground(background()),
		scene.WithRenderQuality(scene.QualityHigh),
	)
	require.NoError(t, r.Reload(src))
	require.NoError(t, r.RenderFrame())

	id, err := r.Pick(viewport/2, viewport/2)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, picking.ID{Kind: picking.KindAtom, SceneIndex: 0, StructureFlatIndex: 0, LocalIndex: 0}, *id)

	depth, err := r.PickDepth(viewport/2, viewport/2)
	require.NoError(t, err)
	require.NotNil(t, depth)
	assert.Greater(t, *depth, float32(0))
	assert.Less(t, *depth, float32(1))

	// background
	id, err = r.Pick(0, 0)
	assert.NoError(t, err)
	assert.Nil(t, id)
	depth, err = r.PickDepth(0, 0)
	assert.NoError(t, err)
	assert.Nil(t, depth)

	// out of bounds
	id, err = r.Pick(-1, viewport/2)
	assert.NoError(t, err)
	assert.Nil(t, id)
	id, err = r.Pick(viewport, viewport/2)
	assert.NoError(t, err)
	assert.Nil(t, id)
}

func TestPickWithDepthMatchesSeparateCalls(t *testing.T) {
	r := newTestRenderer(t)
	src := scene.NewSource(
		scene.WithScene(atomStructure(1, 0, false)),
		scene.WithBackground(background()),
	)
	require.NoError(t, r.Reload(src))
	require.NoError(t, r.RenderFrame())

	id, depth, err := r.PickWithDepth(viewport/2, viewport/2)
	require.NoError(t, err)
	require.NotNil(t, id)
	require.NotNil(t, depth)
	wantID, err := r.Pick(viewport/2, viewport/2)
	require.NoError(t, err)
	wantDepth, err := r.PickDepth(viewport/2, viewport/2)
	require.NoError(t, err)
	assert.Equal(t, *wantID, *id)
	assert.Equal(t, *wantDepth, *depth)

	id, depth, err = r.PickWithDepth(0, 0)
	assert.NoError(t, err)
	assert.Nil(t, id)
	assert.Nil(t, depth)
}

func TestPickAcrossScenes(t *testing.T) {
	r := newTestRenderer(t)
	src := scene.NewSource(
		scene.WithScene(atomStructure(1, -3, false)),
		scene.WithScene(atomStructure(2, 3, false)),
		scene.WithBackground(background()),
	)
	require.NoError(t, r.Reload(src))

	seen := map[picking.ID]bool{}
	for x := range viewport {
		id, err := r.Pick(x, viewport/2)
		require.NoError(t, err)
		if id != nil {
			seen[*id] = true
		}
	}
	assert.Equal(t, map[picking.ID]bool{
		{Kind: picking.KindAtom, SceneIndex: 0, StructureFlatIndex: 0, LocalIndex: 0}: true,
		{Kind: picking.KindAtom, SceneIndex: 1, StructureFlatIndex: 1, LocalIndex: 0}: true,
	}, seen)
}

func TestPickAfterReloadHidesStructure(t *testing.T) {
	r := newTestRenderer(t)
	s := atomStructure(1, 0, false)
	src := scene.NewSource(scene.WithScene(s), scene.WithBackground(background()))
	require.NoError(t, r.Reload(src))

	id, err := r.Pick(viewport/2, viewport/2)
	require.NoError(t, err)
	require.NotNil(t, id)

	s.SetVisible(false)
	require.NoError(t, r.Reload(src))
	id, err = r.Pick(viewport/2, viewport/2)
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestRenderPictureIsDeterministic(t *testing.T) {
	src := scene.NewSource(
		scene.WithScene(atomStructure(1, -2, false), atomStructure(2, 2, false)),
		scene.WithBackground(background()),
	)

	r := newTestRenderer(t)
	require.NoError(t, r.Reload(src))
	first, err := r.RenderPicture(48, 32, nil, scene.ImageRGB16, scene.QualityHigh)
	require.NoError(t, err)
	assert.Equal(t, 48, first.Width())
	assert.Equal(t, 32, first.Height())
	assert.Equal(t, scene.ImageRGB16, first.Quality)

	// an interactive frame in between must not leak into the next picture
	require.NoError(t, r.RenderFrame())
	second, err := r.RenderPicture(48, 32, nil, scene.ImageRGB16, scene.QualityHigh)
	require.NoError(t, err)
	assert.Equal(t, first.Pixels.Pix, second.Pixels.Pix)

	other := newTestRenderer(t)
	require.NoError(t, other.Reload(src))
	third, err := other.RenderPicture(48, 32, nil, scene.ImageRGB16, scene.QualityHigh)
	require.NoError(t, err)
	assert.Equal(t, first.Pixels.Pix, third.Pixels.Pix)

	center := first.Pixels.RGBA64At(24, 16)
	corner := first.Pixels.RGBA64At(0, 0)
	assert.NotEqual(t, center, corner)
	assert.Equal(t, uint16(0xffff), corner.A)

	// the live camera keeps its viewport
	w, h := r.Camera().ViewportSize()
	assert.Equal(t, viewport, w)
	assert.Equal(t, viewport, h)
}

func TestRenderPictureRejectsEmptySize(t *testing.T) {
	r := newTestRenderer(t)
	_, err := r.RenderPicture(0, 10, nil, scene.ImageRGB8, scene.QualityHigh)
	assert.Error(t, err)
}

func TestAmbientOcclusionCache(t *testing.T) {
	r := newTestRenderer(t)
	withAO := atomStructure(1, -2, true)
	withoutAO := atomStructure(2, 2, false)
	src := scene.NewSource(scene.WithScene(withAO, withoutAO), scene.WithBackground(background()))
	require.NoError(t, r.Reload(src))
	ctx := context.Background()

	require.NoError(t, r.BakeAmbientOcclusion(ctx))
	assert.Equal(t, 1, r.AmbientOcclusionBakes())

	// cache hit
	require.NoError(t, r.BakeAmbientOcclusion(ctx))
	assert.Equal(t, 1, r.AmbientOcclusionBakes())

	// reload restores from the cache
	require.NoError(t, r.Reload(src))
	require.NoError(t, r.BakeAmbientOcclusion(ctx))
	assert.Equal(t, 1, r.AmbientOcclusionBakes())

	r.InvalidateAmbientOcclusion(withAO)
	require.NoError(t, r.BakeAmbientOcclusion(ctx))
	assert.Equal(t, 2, r.AmbientOcclusionBakes())

	// invalidating a structure without occlusion changes nothing
	r.InvalidateAmbientOcclusion(withoutAO)
	require.NoError(t, r.BakeAmbientOcclusion(ctx))
	assert.Equal(t, 2, r.AmbientOcclusionBakes())

	r.InvalidateAmbientOcclusionAll()
	require.NoError(t, <-r.BakeAmbientOcclusionAsync(ctx))
	assert.Equal(t, 3, r.AmbientOcclusionBakes())
}

func TestAmbientOcclusionCachedPictureIsStable(t *testing.T) {
	r := newTestRenderer(t)
	s := atomStructure(1, 0, true)
	src := scene.NewSource(scene.WithScene(s), scene.WithBackground(background()))
	require.NoError(t, r.Reload(src))
	require.NoError(t, r.BakeAmbientOcclusion(context.Background()))

	baked, err := r.RenderPicture(32, 32, nil, scene.ImageRGB16, scene.QualityHigh)
	require.NoError(t, err)

	require.NoError(t, r.Reload(src))
	restored, err := r.RenderPicture(32, 32, nil, scene.ImageRGB16, scene.QualityHigh)
	require.NoError(t, err)
	assert.Equal(t, baked.Pixels.Pix, restored.Pixels.Pix)
	assert.Equal(t, 1, r.AmbientOcclusionBakes())
}

func TestBakeOnReload(t *testing.T) {
	r := newTestRenderer(t, WithAmbientOcclusionOnReload(true))
	src := scene.NewSource(scene.WithScene(atomStructure(1, 0, true)), scene.WithBackground(background()))
	require.NoError(t, r.Reload(src))
	assert.Equal(t, 1, r.AmbientOcclusionBakes())
	require.NoError(t, r.Reload(src))
	assert.Equal(t, 1, r.AmbientOcclusionBakes())
}

func TestAsyncBakeCancelled(t *testing.T) {
	r := newTestRenderer(t)
	src := scene.NewSource(scene.WithScene(atomStructure(1, 0, true)), scene.WithBackground(background()))
	require.NoError(t, r.Reload(src))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, <-r.BakeAmbientOcclusionAsync(ctx), context.Canceled)
	assert.Zero(t, r.AmbientOcclusionBakes())
}

func TestRenderQualityOverride(t *testing.T) {
	r := newTestRenderer(t)
	src := scene.NewSource(scene.WithScene(atomStructure(1, 0, false)), scene.WithRenderQuality(scene.QualityLow))
	require.NoError(t, r.Reload(src))
	assert.Equal(t, scene.QualityLow, r.RenderQuality())

	r.SetRenderQuality(scene.QualityPicture)
	assert.Equal(t, scene.QualityPicture, r.RenderQuality())
	assert.NoError(t, r.RenderFrame())
	assert.Equal(t, BackendTypeSoftware, r.Type())
}

func TestResizeMovesPickBounds(t *testing.T) {
	r := newTestRenderer(t)
	src := scene.NewSource(scene.WithScene(atomStructure(1, 0, false)))
	require.NoError(t, r.Reload(src))

	r.Resize(128, 128)
	id, err := r.Pick(64, 64)
	require.NoError(t, err)
	assert.NotNil(t, id)
	w, h := r.Camera().ViewportSize()
	assert.Equal(t, 128, w)
	assert.Equal(t, 128, h)
}

// flakyBackend fails instance buffer creation while failing is set.
type flakyBackend struct {
	RendererBackend
	failing atomic.Bool
}

func (b *flakyBackend) CreateInstanceBuffer(label string, data []byte, count int) (gpu.Buffer, error) {
	if b.failing.Load() {
		return nil, errors.New("out of device memory")
	}
	return b.RendererBackend.CreateInstanceBuffer(label, data, count)
}

func withBackend(b RendererBackend) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = b
	}
}

func TestFailedReloadKeepsPreviousScene(t *testing.T) {
	backend := &flakyBackend{RendererBackend: NewSoftwareRendererBackend()}
	r := newTestRenderer(t, withBackend(backend))
	first := scene.NewSource(scene.WithScene(atomStructure(1, 0, false)), scene.WithBackground(background()))
	require.NoError(t, r.Reload(first))

	before, err := r.RenderPicture(viewport, viewport, nil, scene.ImageRGB8, scene.QualityHigh)
	require.NoError(t, err)
	uniforms := append([]byte(nil), backend.RendererBackend.(*softwareRendererBackend).structureUniforms...)

	second := scene.NewSource(
		scene.WithScene(atomStructure(2, -4, false)),
		scene.WithScene(atomStructure(3, 4, false), atomStructure(4, 0, false)),
		scene.WithBackground(background()),
	)
	backend.failing.Store(true)
	require.Error(t, r.Reload(second))
	backend.failing.Store(false)

	assert.Equal(t, uniforms, backend.RendererBackend.(*softwareRendererBackend).structureUniforms,
		"uniforms still hold the previous numbering")
	after, err := r.RenderPicture(viewport, viewport, nil, scene.ImageRGB8, scene.QualityHigh)
	require.NoError(t, err)
	assert.Equal(t, before.Pixels.Pix, after.Pixels.Pix)

	id, err := r.Pick(viewport/2, viewport/2)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, picking.ID{Kind: picking.KindAtom, SceneIndex: 0, StructureFlatIndex: 0, LocalIndex: 0}, *id)
}

func TestSoftwareShadowMapCap(t *testing.T) {
	shadowEdge := func(b RendererBackend, requested int) int {
		t.Helper()
		sw := b.(*softwareRendererBackend)
		require.NoError(t, sw.BeginOcclusionBake(0, 8, requested))
		edge := sw.bake.shadowMap.width
		_, err := sw.EndOcclusionBake()
		require.NoError(t, err)
		return edge
	}

	assert.Equal(t, DefaultSoftwareShadowResolution, shadowEdge(NewSoftwareRendererBackend(), 2048))
	assert.Equal(t, 100, shadowEdge(NewSoftwareRendererBackend(), 100))
	assert.Equal(t, 1024, shadowEdge(NewSoftwareRendererBackend(WithMaxShadowResolution(1024)), 2048))
	assert.Equal(t, DefaultSoftwareShadowResolution, shadowEdge(NewSoftwareRendererBackend(WithMaxShadowResolution(0)), 2048))

	r := newTestRenderer(t, WithShadowResolution(2048), WithSoftwareShadowLimit(32))
	assert.Equal(t, 32, shadowEdge(r.(*renderer).backend, 2048))
}
