package occlusion

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuffer struct {
	label string
	count int
}

func (b *fakeBuffer) Label() string { return b.label }
func (b *fakeBuffer) Len() int      { return b.count * gpu.AtomInstanceSize }
func (b *fakeBuffer) Count() int    { return b.count }
func (b *fakeBuffer) Release()      {}

type fakeAllocator struct{}

func (fakeAllocator) CreateInstanceBuffer(label string, _ []byte, count int) (gpu.Buffer, error) {
	return &fakeBuffer{label: label, count: count}, nil
}

type upload struct {
	flat, size int
	texels     []byte
}

type fakeBackend struct {
	mu          sync.Mutex
	begun       []int
	textureSize int
	shadowDraws [][]gpu.Draw
	accumulated []gpu.Draw
	weightSum   float32
	uploads     []upload
	passErr     error
}

func (f *fakeBackend) BeginOcclusionBake(flat, textureSize, shadowResolution int) error {
	f.begun = append(f.begun, flat)
	f.textureSize = textureSize
	f.weightSum = 0
	return nil
}

func (f *fakeBackend) DrawShadowDepth(shadow gpu.ShadowUniforms, draws []gpu.Draw) {
	f.shadowDraws = append(f.shadowDraws, draws)
}

func (f *fakeBackend) AccumulateOcclusion(shadow gpu.ShadowUniforms, d gpu.Draw) {
	f.accumulated = append(f.accumulated, d)
	f.weightSum += shadow.Weight
}

func (f *fakeBackend) EndOcclusionBake() ([]byte, error) {
	if f.passErr != nil {
		return nil, f.passErr
	}
	texels := make([]byte, f.textureSize*f.textureSize*2)
	for i := range texels {
		texels[i] = byte(i + len(f.begun))
	}
	return texels, nil
}

func (f *fakeBackend) UploadAmbientOcclusion(flat, textureSize int, texels []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, upload{flat: flat, size: textureSize, texels: texels})
	return nil
}

func atomsAt(positions ...mgl32.Vec3) []scene.Atom {
	out := make([]scene.Atom, len(positions))
	for i, p := range positions {
		out[i] = scene.Atom{Position: p, Radius: 0.5, Color: [4]float32{1, 1, 1, 1}}
	}
	return out
}

type fixture struct {
	backend *fakeBackend
	baker   *Baker
	src     scene.EditableSource
	a, b, c scene.EditableStructure
}

// newFixture loads two scenes: {a, b} and {c}. b is hidden unless showB is set.
func newFixture(t *testing.T, showB bool) *fixture {
	t.Helper()
	f := &fixture{
		backend: &fakeBackend{},
		a:       scene.NewStructure(1, scene.WithAtoms(atomsAt(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0})...)),
		b:       scene.NewStructure(2, scene.WithAtoms(atomsAt(mgl32.Vec3{0, 2, 0})...), scene.WithVisible(showB)),
		c:       scene.NewStructure(3, scene.WithAtoms(atomsAt(mgl32.Vec3{5, 5, 5})...)),
	}
	f.src = scene.NewSource(scene.WithScene(f.a, f.b), scene.WithScene(f.c))
	f.baker = NewBaker(f.backend)
	f.reload(t)
	return f
}

func (f *fixture) reload(t *testing.T) {
	idx := indexer.FromSource(f.src, indexer.WithUniformHook(Hook))
	res := resource.NewTable(resource.WithWorkers(1))
	t.Cleanup(res.Release)
	require.NoError(t, res.Rebuild(f.src, idx, fakeAllocator{}))
	f.baker.SetInputs(Inputs{Index: idx, Resources: res, BoundingBox: f.src.RenderBoundingBox()})
}

func TestGetOrBakeCachesPerStructure(t *testing.T) {
	f := newFixture(t, true)

	first, err := f.baker.GetOrBake(f.a, 0, scene.QualityHigh)
	require.NoError(t, err)
	assert.Equal(t, 1, f.baker.BakeCount())
	assert.Equal(t, 256, first.TextureSize)
	assert.Len(t, first.Texels, 256*256*2)
	assert.Equal(t, 2, first.AtomCount)
	assert.True(t, f.baker.Cached(1))

	second, err := f.baker.GetOrBake(f.a, 0, scene.QualityHigh)
	require.NoError(t, err)
	assert.Equal(t, 1, f.baker.BakeCount(), "cache hit must not bake")
	assert.Equal(t, first.Texels, second.Texels)
	require.Len(t, f.backend.uploads, 1)
	assert.Equal(t, first.Texels, f.backend.uploads[0].texels)

	f.baker.Invalidate(1)
	assert.False(t, f.baker.Cached(1))
	_, err = f.baker.GetOrBake(f.a, 0, scene.QualityHigh)
	require.NoError(t, err)
	assert.Equal(t, 2, f.baker.BakeCount())

	_, err = f.baker.GetOrBake(f.c, 2, scene.QualityHigh)
	require.NoError(t, err)
	f.baker.InvalidateAll()
	assert.False(t, f.baker.Cached(1))
	assert.False(t, f.baker.Cached(3))
}

func TestFailedPassIsNotCached(t *testing.T) {
	f := newFixture(t, true)
	f.backend.passErr = errors.New("shadow depth pass: device lost")

	_, err := f.baker.GetOrBake(f.a, 0, scene.QualityHigh)
	assert.ErrorContains(t, err, "device lost")
	assert.False(t, f.baker.Cached(1))
	assert.Zero(t, f.baker.BakeCount())

	f.backend.passErr = nil
	entry, err := f.baker.GetOrBake(f.a, 0, scene.QualityHigh)
	require.NoError(t, err)
	assert.True(t, f.baker.Cached(1))
	assert.Equal(t, 1, f.baker.BakeCount())
	assert.Len(t, entry.Texels, entry.TextureSize*entry.TextureSize*2)
}

func TestBakeDrawsSameSceneCasters(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.baker.GetOrBake(f.a, 0, scene.QualityLow)
	require.NoError(t, err)

	require.Len(t, f.backend.shadowDraws, 360)
	require.Len(t, f.backend.accumulated, 360)
	assert.InDelta(t, 4.0, f.backend.weightSum, 1e-3)

	casters := f.backend.shadowDraws[0]
	require.Len(t, casters, 1, "hidden structure b and structure c of another scene cast no shadow")
	assert.Equal(t, 0, casters[0].FlatIndex)
	assert.Equal(t, uint64(0), f.backend.accumulated[0].UniformOffset)

	f.b.SetVisible(true)
	f.reload(t)
	f.baker.InvalidateAll()
	f.backend.shadowDraws = nil
	_, err = f.baker.GetOrBake(f.a, 0, scene.QualityLow)
	require.NoError(t, err)
	casters = f.backend.shadowDraws[0]
	require.Len(t, casters, 2)
	assert.Equal(t, uint64(indexer.UniformStride), casters[1].UniformOffset)
}

func TestPictureQualityUsesHighSet(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.baker.GetOrBake(f.c, 2, scene.QualityPicture)
	require.NoError(t, err)
	assert.Len(t, f.backend.accumulated, 1992)
}

func TestBakeWithoutAtoms(t *testing.T) {
	f := newFixture(t, true)
	empty := scene.NewStructure(9)
	_, err := f.baker.GetOrBake(empty, 0, scene.QualityHigh)
	assert.ErrorIs(t, err, ErrNoAtoms)
	assert.Zero(t, f.baker.BakeCount())
}

func TestStaleEntryWarns(t *testing.T) {
	var logs bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { common.SetLogger(nil) })

	f := newFixture(t, true)
	_, err := f.baker.GetOrBake(f.a, 0, scene.QualityHigh)
	require.NoError(t, err)

	f.a.SetAtoms(atomsAt(mgl32.Vec3{0, 0, 0}))
	entry, err := f.baker.GetOrBake(f.a, 0, scene.QualityHigh)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.AtomCount, "stale entries are not auto-invalidated")
	assert.Equal(t, 1, f.baker.BakeCount())
	assert.Contains(t, logs.String(), "ambient occlusion cache entry is stale")
}

func TestShadowFramesAreDeterministic(t *testing.T) {
	box := scene.Bounds{Min: mgl32.Vec3{-1, -2, -1}, Max: mgl32.Vec3{1, 2, 1}}
	set := Directions(scene.QualityLow)
	a := ShadowFrames(box, set)
	b := ShadowFrames(box, set)
	require.Len(t, a, 360)
	assert.Equal(t, a, b)

	// tall box: aspect 0.5 widens the frustum to radius/aspect
	r := box.Radius()
	assert.InDelta(t, 2/(2*r/0.5), a[0].Projection[0], 1e-5)

	center := common.TransformPoint(a[7].Rotation, box.Center()).Vec3()
	assert.InDelta(t, 0, center.Sub(box.Center()).Len(), 1e-5, "rotation keeps the scene center fixed")
	assert.NotEqual(t, a[0].Rotation, a[1].Rotation)
}

func TestBakeAllHonorsContextAndFlags(t *testing.T) {
	f := newFixture(t, true)
	style := f.c.Style()
	style.AmbientOcclusion = false
	f.c.SetStyle(style)

	require.NoError(t, f.baker.BakeAll(context.Background(), scene.QualityLow))
	assert.Equal(t, 2, f.baker.BakeCount())
	assert.True(t, f.baker.Cached(1))
	assert.True(t, f.baker.Cached(2))
	assert.False(t, f.baker.Cached(3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.baker.InvalidateAll()
	assert.ErrorIs(t, f.baker.BakeAll(ctx, scene.QualityLow), context.Canceled)
	assert.Equal(t, 2, f.baker.BakeCount())
}

func TestHookFillsPatchLayout(t *testing.T) {
	s := scene.NewStructure(1, scene.WithAtoms(atomsAt(make([]mgl32.Vec3, 10)...)...))
	var u indexer.StructureUniforms
	Hook(0, s, &u)
	assert.Equal(t, int32(4), u.AOPatchCount)
	assert.Equal(t, float32(64), u.AOPatchSize)
	assert.InDelta(t, 1.0/256, u.AOInverseTextureSize, 1e-9)
}
