package picking

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuffer struct{ count int }

func (b *fakeBuffer) Label() string { return "fake" }
func (b *fakeBuffer) Len() int      { return b.count }
func (b *fakeBuffer) Count() int    { return b.count }
func (b *fakeBuffer) Release()      {}

type fakeAllocator struct{}

func (fakeAllocator) CreateInstanceBuffer(_ string, _ []byte, count int) (gpu.Buffer, error) {
	return &fakeBuffer{count: count}, nil
}

type drawn struct {
	program gpu.Program
	flat    int
	scene   int
	offset  uint64
}

type fakeBackend struct {
	width, height int
	draws         []drawn
	texels        map[[2]int][4]uint32
	depth         float32
	readErr       error
	reads         int
}

func (f *fakeBackend) BeginPicking(width, height int) error {
	f.width, f.height = width, height
	f.draws = nil
	return nil
}

func (f *fakeBackend) DrawPicking(program gpu.Program, d gpu.Draw) {
	f.draws = append(f.draws, drawn{program: program, flat: d.FlatIndex, scene: d.SceneIndex, offset: d.UniformOffset})
}

func (f *fakeBackend) EndPicking() error { return nil }

func (f *fakeBackend) ReadPickingTexel(x, y int) ([4]uint32, float32, error) {
	f.reads++
	if f.readErr != nil {
		return [4]uint32{}, 0, f.readErr
	}
	return f.texels[[2]int{x, y}], f.depth, nil
}

func setup(t *testing.T) (*Picker, *fakeBackend) {
	t.Helper()
	atoms := []scene.Atom{{Position: mgl32.Vec3{0, 0, 0}, Radius: 1}, {Position: mgl32.Vec3{1, 0, 0}, Radius: 1}}
	withBonds := scene.NewStructure(1, scene.WithAtoms(atoms...), scene.WithBonds(
		scene.Bond{Atom1: 0, Atom2: 1, Order: scene.BondSingle},
		scene.Bond{Atom1: 0, Atom2: 1, Order: scene.BondTriple},
		scene.Bond{Atom1: 0, Atom2: 1, Order: scene.BondSingle, External: true},
	))
	hidden := scene.NewStructure(2, scene.WithAtoms(atoms...), scene.WithVisible(false))
	plain := scene.NewStructure(3, scene.WithAtoms(atoms...))
	src := scene.NewSource(scene.WithScene(withBonds, hidden), scene.WithScene(plain))

	idx := indexer.FromSource(src)
	res := resource.NewTable(resource.WithWorkers(1))
	t.Cleanup(res.Release)
	require.NoError(t, res.Rebuild(src, idx, fakeAllocator{}))

	backend := &fakeBackend{texels: map[[2]int][4]uint32{}}
	p := NewPicker(backend)
	p.SetInputs(idx, res)
	return p, backend
}

func TestRenderIDBufferDrawOrder(t *testing.T) {
	p, backend := setup(t)
	require.NoError(t, p.RenderIDBuffer(8, 300))

	assert.Equal(t, MinTargetSize, backend.width)
	assert.Equal(t, 300, backend.height)
	assert.Equal(t, []drawn{
		{gpu.ProgramPickAtom, 0, 0, 0},
		{gpu.ProgramPickInternalBond, 0, 0, 0},
		{gpu.ProgramPickInternalBond, 0, 0, 0},
		{gpu.ProgramPickExternalBond, 0, 0, 0},
		{gpu.ProgramPickAtom, 2, 1, 2 * indexer.UniformStride},
	}, backend.draws)
}

func TestPickBeforeRender(t *testing.T) {
	p, backend := setup(t)
	id, err := p.Pick(1, 1)
	assert.NoError(t, err)
	assert.Nil(t, id)
	assert.Zero(t, backend.reads)
}

func TestPickBounds(t *testing.T) {
	p, backend := setup(t)
	require.NoError(t, p.RenderIDBuffer(100, 50))

	for _, xy := range [][2]int{{-1, 0}, {0, -1}, {100, 0}, {0, 50}} {
		id, err := p.Pick(xy[0], xy[1])
		assert.NoError(t, err)
		assert.Nil(t, id, "pick at %v", xy)
		depth, err := p.PickDepth(xy[0], xy[1])
		assert.NoError(t, err)
		assert.Nil(t, depth)
	}
	assert.Zero(t, backend.reads)
}

func TestPickResolvesTexels(t *testing.T) {
	p, backend := setup(t)
	require.NoError(t, p.RenderIDBuffer(100, 50))
	backend.depth = 0.25
	backend.texels[[2]int{10, 10}] = [4]uint32{uint32(KindAtom), 1, 2, 1}
	backend.texels[[2]int{20, 20}] = [4]uint32{uint32(KindInternalBond), 0, 0, 1}

	id, err := p.Pick(10, 10)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, ID{Kind: KindAtom, SceneIndex: 1, StructureFlatIndex: 2, LocalIndex: 1}, *id)

	depth, err := p.PickDepth(10, 10)
	require.NoError(t, err)
	require.NotNil(t, depth)
	assert.Equal(t, float32(0.25), *depth)

	id, err = p.Pick(20, 20)
	require.NoError(t, err)
	assert.Equal(t, KindInternalBond, id.Kind)
	depth, err = p.PickDepth(20, 20)
	require.NoError(t, err)
	assert.Nil(t, depth, "depth is only reported for atoms")

	id, err = p.Pick(30, 30)
	require.NoError(t, err)
	assert.Nil(t, id, "background is a miss")
}

func TestPickWithDepthReadsOnce(t *testing.T) {
	p, backend := setup(t)
	require.NoError(t, p.RenderIDBuffer(100, 50))
	backend.depth = 0.5
	backend.texels[[2]int{10, 10}] = [4]uint32{uint32(KindAtom), 0, 3, 7}
	backend.texels[[2]int{20, 20}] = [4]uint32{uint32(KindExternalBond), 0, 3, 2}

	id, depth, err := p.PickWithDepth(10, 10)
	require.NoError(t, err)
	require.NotNil(t, id)
	require.NotNil(t, depth)
	assert.Equal(t, ID{Kind: KindAtom, SceneIndex: 0, StructureFlatIndex: 3, LocalIndex: 7}, *id)
	assert.Equal(t, float32(0.5), *depth)
	assert.Equal(t, 1, backend.reads)

	id, depth, err = p.PickWithDepth(20, 20)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, KindExternalBond, id.Kind)
	assert.Nil(t, depth)
	assert.Equal(t, 2, backend.reads)

	id, depth, err = p.PickWithDepth(30, 30)
	assert.NoError(t, err)
	assert.Nil(t, id)
	assert.Nil(t, depth)
}

func TestPickReadbackError(t *testing.T) {
	p, backend := setup(t)
	require.NoError(t, p.RenderIDBuffer(100, 50))
	backend.readErr = errors.New("device lost")

	id, err := p.Pick(1, 1)
	assert.Nil(t, id)
	assert.ErrorContains(t, err, "device lost")
}

func TestSetInputsMarksStale(t *testing.T) {
	p, backend := setup(t)
	require.NoError(t, p.RenderIDBuffer(100, 50))
	p.SetInputs(nil, nil)
	id, err := p.Pick(1, 1)
	assert.NoError(t, err)
	assert.Nil(t, id)
	assert.Zero(t, backend.reads)
	assert.Equal(t, "atom", KindAtom.String())
}
