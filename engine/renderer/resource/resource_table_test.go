package resource

import (
	"errors"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuffer struct {
	label    string
	data     []byte
	count    int
	released bool
}

func (b *fakeBuffer) Label() string { return b.label }
func (b *fakeBuffer) Len() int      { return len(b.data) }
func (b *fakeBuffer) Count() int    { return b.count }
func (b *fakeBuffer) Release()      { b.released = true }

type fakeAllocator struct {
	mu      sync.Mutex
	created []*fakeBuffer
	failAt  int
}

func (a *fakeAllocator) CreateInstanceBuffer(label string, data []byte, count int) (gpu.Buffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failAt > 0 && len(a.created)+1 == a.failAt {
		return nil, errors.New("out of memory")
	}
	b := &fakeBuffer{label: label, data: data, count: count}
	a.created = append(a.created, b)
	return b, nil
}

type fakeGlyphs struct{}

func (fakeGlyphs) Layout(a scene.Annotation) []gpu.GlyphInstance {
	out := make([]gpu.GlyphInstance, len(a.Text))
	for i := range out {
		out[i].Anchor = a.Position
	}
	return out
}

func crystal(id scene.StructureID) scene.EditableStructure {
	return scene.NewStructure(id,
		scene.WithAtoms(
			scene.Atom{Position: mgl32.Vec3{0, 0, 0}, Radius: 0.5, Color: [4]float32{1, 0, 0, 1}, Element: "Na"},
			scene.Atom{Position: mgl32.Vec3{1, 0, 0}, Radius: 0.5, Color: [4]float32{0, 1, 0, 1}, Element: "Cl", Selected: true},
			scene.Atom{Position: mgl32.Vec3{0, 1, 0}, Radius: 0.5, Color: [4]float32{0, 0, 1, 1}, Element: "O"},
		),
		scene.WithBonds(
			scene.Bond{Atom1: 0, Atom2: 1, Order: scene.BondSingle},
			scene.Bond{Atom1: 0, Atom2: 2, Order: scene.BondDouble},
			scene.Bond{Atom1: 1, Atom2: 2, Order: scene.BondSingle},
			scene.Bond{Atom1: 2, Atom2: 0, Order: scene.BondSingle, External: true, Offset: mgl32.Vec3{0, 4, 0}},
			scene.Bond{Atom1: 0, Atom2: 9, Order: scene.BondSingle},
		),
	)
}

func build(t *testing.T, src scene.Source, alloc Allocator, options ...TableBuilderOption) (*Table, *indexer.Table) {
	t.Helper()
	table := NewTable(append([]TableBuilderOption{WithWorkers(2)}, options...)...)
	t.Cleanup(table.Release)
	idx := indexer.FromSource(src)
	require.NoError(t, table.Rebuild(src, idx, alloc))
	return table, idx
}

func TestRebuildSkipsEmptyCategories(t *testing.T) {
	src := scene.NewSource(scene.WithScene(crystal(1)))
	table, _ := build(t, src, &fakeAllocator{})

	e := table.Entry(0)
	for _, c := range []Category{CategoryAtoms, CategorySelectedAtoms, CategoryInternalSingleBonds, CategoryInternalDoubleBonds, CategoryExternalSingleBonds} {
		_, ok := e.Buffer(c)
		assert.True(t, ok, "%s should have records", c)
	}
	for _, c := range []Category{CategoryInternalTripleBonds, CategoryUnitCellSpheres, CategoryLocalAxes, CategoryPrimitives, CategoryOpaqueIsosurface, CategoryGlyphs} {
		b, ok := e.Buffer(c)
		assert.False(t, ok, "%s should be empty", c)
		assert.Nil(t, b)
	}

	atoms, _ := e.Buffer(CategoryAtoms)
	assert.Equal(t, 3, atoms.Count())
	selected, _ := e.Buffer(CategorySelectedAtoms)
	decoded := gpu.DecodeAtomInstances(selected.(*fakeBuffer).data)
	require.Len(t, decoded, 1)
	assert.Equal(t, uint32(1), decoded[0].Tag, "selected atoms keep their atom index")
}

func TestBondTagsAreStructureBondIndices(t *testing.T) {
	src := scene.NewSource(scene.WithScene(crystal(1)))
	table, _ := build(t, src, &fakeAllocator{})
	entry := table.Entry(0)

	tags := func(c Category) []uint32 {
		buf, ok := entry.Buffer(c)
		require.True(t, ok, c.String())
		var out []uint32
		for _, b := range gpu.DecodeBondInstances(buf.(*fakeBuffer).data) {
			out = append(out, b.Tag)
		}
		return out
	}

	assert.Equal(t, []uint32{0, 2}, tags(CategoryInternalSingleBonds), "bond to a missing atom is dropped")
	assert.Equal(t, []uint32{1}, tags(CategoryInternalDoubleBonds))
	assert.Equal(t, []uint32{3}, tags(CategoryExternalSingleBonds))

	seen := map[uint32]bool{}
	for _, c := range []Category{CategoryInternalSingleBonds, CategoryInternalDoubleBonds, CategoryExternalSingleBonds} {
		for _, tag := range tags(c) {
			assert.False(t, seen[tag], "tag %d drawn twice", tag)
			seen[tag] = true
		}
	}

	external, _ := entry.Buffer(CategoryExternalSingleBonds)
	ext := gpu.DecodeBondInstances(external.(*fakeBuffer).data)
	assert.Equal(t, [3]float32{0, 4, 0}, ext[0].P2)
	assert.Equal(t, gpu.BondFlagExternal, ext[0].Flags)
}

func TestRebuildIdempotent(t *testing.T) {
	src := scene.NewSource(scene.WithScene(crystal(1), crystal(2)), scene.WithScene(), scene.WithScene(crystal(3)))
	alloc := &fakeAllocator{}
	table, idx := build(t, src, alloc)

	first := table.Layout()
	firstBuffers := append([]*fakeBuffer(nil), alloc.created...)
	require.NoError(t, table.Rebuild(src, idx, alloc))
	assert.Equal(t, first, table.Layout())

	for _, b := range firstBuffers {
		assert.True(t, b.released, "%s from the previous arena must be released", b.label)
	}
	assert.Len(t, first, 4)
	assert.Equal(t, -1, first[3].Flat)
	assert.True(t, first[3].Present[CategoryUnitCellCylinders])
}

func TestInvisibleStructureHasNoBuffers(t *testing.T) {
	hidden := crystal(1)
	hidden.SetVisible(false)
	src := scene.NewSource(scene.WithScene(hidden, crystal(2)))
	table, _ := build(t, src, &fakeAllocator{})

	layout := table.Layout()
	assert.Equal(t, [CategoryCount]bool{}, layout[0].Present)
	assert.True(t, layout[1].Present[CategoryAtoms])
}

func TestOutOfRangeEntryIsEmpty(t *testing.T) {
	src := scene.NewSource(scene.WithScene(crystal(1)))
	table, _ := build(t, src, &fakeAllocator{})

	for _, flat := range []int{-1, 1, 100} {
		_, ok := table.Entry(flat).Buffer(CategoryAtoms)
		assert.False(t, ok)
	}
	_, ok := table.Entry(0).Buffer(Category(-3))
	assert.False(t, ok)
}

func TestFailedRebuildKeepsPreviousArena(t *testing.T) {
	src := scene.NewSource(scene.WithScene(crystal(1)))
	alloc := &fakeAllocator{}
	table, idx := build(t, src, alloc)
	before := table.Layout()
	live := append([]*fakeBuffer(nil), alloc.created...)

	failing := &fakeAllocator{failAt: 3}
	err := table.Rebuild(src, idx, failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")

	assert.Equal(t, before, table.Layout())
	for _, b := range live {
		assert.False(t, b.released)
	}
	for _, b := range failing.created {
		assert.True(t, b.released, "partial arena buffer %s must be released", b.label)
	}
}

func TestPrimitiveSpansGroupShapes(t *testing.T) {
	s := scene.NewStructure(1, scene.WithPrimitives(
		scene.Primitive{Shape: scene.ShapePrism, Scale: mgl32.Vec3{1, 1, 1}, Color: [4]float32{1, 1, 1, 1}},
		scene.Primitive{Shape: scene.ShapeEllipsoid, Scale: mgl32.Vec3{1, 1, 1}, Color: [4]float32{1, 1, 1, 1}},
		scene.Primitive{Shape: scene.ShapeEllipsoid, Scale: mgl32.Vec3{1, 1, 1}, Color: [4]float32{1, 1, 1, 0.5}},
		scene.Primitive{Shape: scene.ShapeEllipsoid, Scale: mgl32.Vec3{1, 1, 1}, Color: [4]float32{1, 1, 1, 1}, Crystal: true},
	))
	src := scene.NewSource(scene.WithScene(s))
	table, _ := build(t, src, &fakeAllocator{})

	e := table.Entry(0)
	assert.Equal(t, []Span{{Shape: scene.ShapeEllipsoid, First: 0, Count: 2}, {Shape: scene.ShapePrism, First: 2, Count: 1}}, e.Spans(CategoryPrimitives))

	buf, ok := e.Buffer(CategoryPrimitives)
	require.True(t, ok)
	prims := gpu.DecodePrimitiveInstances(buf.(*fakeBuffer).data)
	assert.Equal(t, []uint32{1, 3, 0}, []uint32{prims[0].Tag, prims[1].Tag, prims[2].Tag})
	assert.Equal(t, gpu.PrimitiveFlagCrystal, prims[1].Flags)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, prims[0].Orientation)

	transparent, ok := e.Buffer(CategoryTransparentPrimitives)
	require.True(t, ok)
	assert.Equal(t, 1, transparent.Count())
}

func TestUnitCellAndGlyphs(t *testing.T) {
	style := scene.DefaultStyle()
	style.Annotation = scene.AnnotationElement
	style.LocalAxes = true
	s := crystal(1)
	s.SetStyle(style)
	box := mgl32.Ident4()
	box[0], box[5], box[10] = 2, 3, 4
	s.SetUnitCell(box)
	src := scene.NewSource(scene.WithScene(s))
	table, _ := build(t, src, &fakeAllocator{}, WithGlyphLayout(fakeGlyphs{}))

	e := table.Entry(0)
	spheres, ok := e.Buffer(CategoryUnitCellSpheres)
	require.True(t, ok)
	assert.Equal(t, 8, spheres.Count())
	cylinders, ok := e.Buffer(CategoryUnitCellCylinders)
	require.True(t, ok)
	assert.Equal(t, 12, cylinders.Count())

	axes, ok := e.Buffer(CategoryLocalAxes)
	require.True(t, ok)
	decoded := gpu.DecodeBondInstances(axes.(*fakeBuffer).data)
	require.Len(t, decoded, 3)
	assert.Equal(t, [3]float32{0, 0, 4}, decoded[2].P2)

	glyphs, ok := e.Buffer(CategoryGlyphs)
	require.True(t, ok)
	assert.Equal(t, len("Na")+len("Cl")+len("O"), glyphs.Count())
}
