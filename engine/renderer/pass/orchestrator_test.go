package pass

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBuffer struct {
	label string
	count int
}

func (b *stubBuffer) Label() string { return b.label }
func (b *stubBuffer) Len() int      { return b.count }
func (b *stubBuffer) Count() int    { return b.count }
func (b *stubBuffer) Release()      {}

type stubAllocator struct{}

func (stubAllocator) CreateInstanceBuffer(label string, data []byte, count int) (gpu.Buffer, error) {
	return &stubBuffer{label: label, count: count}, nil
}

type recorded struct {
	program gpu.Program
	draw    gpu.Draw
}

type recordingBackend struct {
	passes []gpu.Target
	loads  []gpu.LoadOp
	draws  []recorded
	open   bool
	failOn gpu.Target
}

func (b *recordingBackend) BeginPass(target gpu.Target, load gpu.LoadOp) error {
	if b.failOn == target {
		return gpu.ErrNotInFrame
	}
	b.passes = append(b.passes, target)
	b.loads = append(b.loads, load)
	b.open = true
	return nil
}

func (b *recordingBackend) Draw(program gpu.Program, d gpu.Draw) {
	b.draws = append(b.draws, recorded{program: program, draw: d})
}

func (b *recordingBackend) DrawFullscreen(program gpu.Program) {
	b.draws = append(b.draws, recorded{program: program})
}

func (b *recordingBackend) EndPass() { b.open = false }

func (b *recordingBackend) programs() []gpu.Program {
	out := make([]gpu.Program, len(b.draws))
	for i, d := range b.draws {
		out[i] = d.program
	}
	return out
}

func molecule(id scene.StructureID, options ...scene.StructureBuilderOption) scene.EditableStructure {
	base := []scene.StructureBuilderOption{
		scene.WithAtoms(
			scene.Atom{Position: mgl32.Vec3{0, 0, 0}, Radius: 0.5, Element: "C"},
			scene.Atom{Position: mgl32.Vec3{1.2, 0, 0}, Radius: 0.5, Element: "C", Selected: true},
		),
		scene.WithBonds(scene.Bond{Atom1: 0, Atom2: 1, Order: scene.BondSingle}),
	}
	return scene.NewStructure(id, append(base, options...)...)
}

func frameFor(t *testing.T, src scene.Source, quality scene.RenderQuality) *Frame {
	t.Helper()
	idx := indexer.FromSource(src)
	res := resource.NewTable(resource.WithWorkers(1))
	t.Cleanup(res.Release)
	require.NoError(t, res.Rebuild(src, idx, stubAllocator{}))
	return &Frame{Index: idx, Resources: res, Quality: quality}
}

func traceNames(o *Orchestrator, f *Frame) ([]string, error) {
	var names []string
	o.trace = func(name string, _ time.Duration) { names = append(names, name) }
	err := o.RenderFrame(f)
	return names, err
}

func TestStandardPassOrder(t *testing.T) {
	var names []string
	for _, p := range StandardPasses() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		"background", "opaque", "bonds", "selection", "glow",
		"blur_horizontal", "blur_vertical", "transparent", "text", "composite",
	}, names)
}

func TestRenderFrameSkipsEmptyPasses(t *testing.T) {
	src := scene.NewSource(scene.WithScene(molecule(1)))
	backend := &recordingBackend{failOn: -1}
	o := NewOrchestrator(backend)

	names, err := traceNames(o, frameFor(t, src, scene.QualityHigh))
	require.NoError(t, err)
	assert.Equal(t, []string{"background", "opaque", "bonds", "glow", "blur_horizontal", "blur_vertical", "composite"}, names)
	assert.False(t, backend.open)
	assert.Equal(t, gpu.LoadClear, backend.loads[0])
	assert.Equal(t, gpu.TargetFinal, backend.passes[len(backend.passes)-1])

	assert.Equal(t, []gpu.Program{
		gpu.ProgramBackground,
		gpu.ProgramAtomSphere,
		gpu.ProgramInternalBond,
		gpu.ProgramAtomSelectionGlow,
		gpu.ProgramBlurHorizontal,
		gpu.ProgramBlurVertical,
		gpu.ProgramComposite,
	}, backend.programs())
}

func TestAtomProgramFollowsQuality(t *testing.T) {
	src := scene.NewSource(scene.WithScene(molecule(1)))
	for quality, want := range map[scene.RenderQuality]gpu.Program{
		scene.QualityLow:     gpu.ProgramAtomImpostor,
		scene.QualityMedium:  gpu.ProgramAtomImpostor,
		scene.QualityHigh:    gpu.ProgramAtomSphere,
		scene.QualityPicture: gpu.ProgramAtomSphere,
	} {
		backend := &recordingBackend{failOn: -1}
		require.NoError(t, NewOrchestrator(backend).RenderFrame(frameFor(t, src, quality)))
		assert.Equal(t, want, backend.draws[1].program, quality.String())
	}
}

func TestDrawsAreCategoryMajor(t *testing.T) {
	hidden := molecule(2, scene.WithVisible(false))
	src := scene.NewSource(scene.WithScene(molecule(1), hidden), scene.WithScene(molecule(3)))
	backend := &recordingBackend{failOn: -1}
	f := frameFor(t, src, scene.QualityHigh)
	require.NoError(t, NewOrchestrator(backend).RenderFrame(f))

	var atoms, bonds []int
	for _, d := range backend.draws {
		switch d.program {
		case gpu.ProgramAtomSphere:
			atoms = append(atoms, d.draw.FlatIndex)
			assert.Equal(t, f.Index.UniformOffset(d.draw.FlatIndex), d.draw.UniformOffset)
		case gpu.ProgramInternalBond:
			bonds = append(bonds, d.draw.FlatIndex)
		}
	}
	assert.Equal(t, []int{0, 2}, atoms, "hidden structures draw nothing")
	assert.Equal(t, []int{0, 2}, bonds)

	last := -1
	for i, d := range backend.draws {
		if d.program == gpu.ProgramAtomSphere {
			last = i
		}
		if d.program == gpu.ProgramInternalBond {
			assert.Greater(t, i, last, "every atom draw precedes the first bond draw")
			break
		}
	}
	sceneOf := map[int]int{}
	for _, d := range backend.draws {
		if d.program == gpu.ProgramAtomSphere {
			sceneOf[d.draw.FlatIndex] = d.draw.SceneIndex
		}
	}
	assert.Equal(t, map[int]int{0: 0, 2: 1}, sceneOf)
}

func TestPrimitiveSpansUseShapeMeshes(t *testing.T) {
	s := molecule(1, scene.WithPrimitives(
		scene.Primitive{Shape: scene.ShapePrism, Scale: mgl32.Vec3{1, 1, 1}, Color: [4]float32{1, 1, 1, 1}},
		scene.Primitive{Shape: scene.ShapeEllipsoid, Scale: mgl32.Vec3{1, 1, 1}, Color: [4]float32{1, 1, 1, 1}},
		scene.Primitive{Shape: scene.ShapePrism, Scale: mgl32.Vec3{1, 1, 1}, Color: [4]float32{1, 1, 1, 1}},
	))
	backend := &recordingBackend{failOn: -1}
	require.NoError(t, NewOrchestrator(backend).RenderFrame(frameFor(t, scene.NewSource(scene.WithScene(s)), scene.QualityHigh)))

	var got []gpu.Draw
	for _, d := range backend.draws {
		if d.program == gpu.ProgramPrimitiveOpaque {
			got = append(got, d.draw)
		}
	}
	require.Len(t, got, 2)
	assert.Equal(t, gpu.MeshSphere, got[0].Mesh)
	assert.Equal(t, 0, got[0].First)
	assert.Equal(t, 1, got[0].Count)
	assert.Equal(t, gpu.MeshPrism, got[1].Mesh)
	assert.Equal(t, 1, got[1].First)
	assert.Equal(t, 2, got[1].Count)
}

func TestStripedSelectionUsesOverlayPass(t *testing.T) {
	style := scene.DefaultStyle()
	style.Selection = scene.SelectionStriped
	src := scene.NewSource(scene.WithScene(molecule(1, scene.WithStyle(style))))
	backend := &recordingBackend{failOn: -1}
	names, err := traceNames(NewOrchestrator(backend), frameFor(t, src, scene.QualityHigh))
	require.NoError(t, err)

	assert.Contains(t, names, "selection")
	assert.Contains(t, backend.programs(), gpu.ProgramAtomSelection)
	assert.NotContains(t, backend.programs(), gpu.ProgramAtomSelectionGlow)
}

func TestBoundingBoxDrawsGlobalEntry(t *testing.T) {
	src := scene.NewSource(scene.WithScene(molecule(1)))
	f := frameFor(t, src, scene.QualityHigh)
	f.ShowBoundingBox = true
	backend := &recordingBackend{failOn: -1}
	require.NoError(t, NewOrchestrator(backend).RenderFrame(f))

	found := 0
	for _, d := range backend.draws {
		if d.program == gpu.ProgramBoundingBoxCylinder || d.program == gpu.ProgramBoundingBoxSphere {
			assert.Equal(t, -1, d.draw.FlatIndex)
			found++
		}
	}
	assert.Equal(t, 2, found)
}

func TestRenderFrameReportsBeginFailure(t *testing.T) {
	src := scene.NewSource(scene.WithScene(molecule(1)))
	backend := &recordingBackend{failOn: gpu.TargetGlow}
	err := NewOrchestrator(backend).RenderFrame(frameFor(t, src, scene.QualityHigh))
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrNotInFrame))
	assert.Contains(t, err.Error(), "glow")
}

func TestRenderFrameRejectsEmptyFrame(t *testing.T) {
	assert.Error(t, NewOrchestrator(&recordingBackend{failOn: -1}).RenderFrame(&Frame{}))
}
