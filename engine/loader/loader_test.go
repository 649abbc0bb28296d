package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const water = `3
water molecule
O   0.000  0.000  0.117
H   0.000  0.757 -0.469
h1  0.000 -0.757 -0.469
`

func TestLoadXYZWater(t *testing.T) {
	s, err := LoadXYZ(strings.NewReader(water), 7)
	require.NoError(t, err)

	assert.Equal(t, scene.StructureID(7), s.ID())
	atoms := s.Atoms()
	require.Len(t, atoms, 3)
	assert.Equal(t, "O", atoms[0].Element)
	assert.Equal(t, "H", atoms[2].Element)
	assert.Equal(t, "h1", atoms[2].Name)
	assert.InDelta(t, 0.66, atoms[0].Radius, 1e-6)
	assert.Equal(t, mgl32.Vec3{0, 0.757, -0.469}, atoms[1].Position)

	// O-H at 0.96 Å bonds; H-H at 1.51 Å is above 0.32+0.32+0.4
	assert.Equal(t, []scene.Bond{
		{Atom1: 0, Atom2: 1, Order: scene.BondSingle},
		{Atom1: 0, Atom2: 2, Order: scene.BondSingle},
	}, s.Bonds())
	assert.True(t, s.Capabilities().Bonds)
	assert.False(t, s.Capabilities().UnitCell)
}

func TestLoadXYZErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad count", "three\ncomment\n"},
		{"missing comment", "1"},
		{"short", "2\ncomment\nC 0 0 0\n"},
		{"bad coordinate", "1\ncomment\nC 0 x 0\n"},
		{"too few fields", "1\ncomment\nC 0 0\n"},
		{"bad lattice", "1\nLattice=\"1 0 0 0 1 0\"\nC 0 0 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadXYZ(strings.NewReader(tt.input), 1)
			assert.Error(t, err)
		})
	}
}

func TestLoadXYZLattice(t *testing.T) {
	input := "2\nLattice=\"4 0 0 0 5 0 0 0 6\" Properties=species:S:1:pos:R:3\nNa 0 0 0\nCl 2 2.5 3\n"
	s, err := LoadXYZ(strings.NewReader(input), 1)
	require.NoError(t, err)

	assert.True(t, s.Capabilities().UnitCell)
	box := s.Transform().Box
	assert.Equal(t, [16]float32{4, 0, 0, 0, 0, 5, 0, 0, 0, 0, 6, 0, 0, 0, 0, 1}, box)
	assert.Equal(t, "Cl", s.Atoms()[1].Element)
}

func TestResolveSymbol(t *testing.T) {
	tests := map[string]string{
		"C":   "C",
		"CL":  "Cl",
		"cl":  "Cl",
		"Fe2": "Fe",
		"Cx2": "C",
		"Zz":  "Zz",
		"1":   "1",
	}
	for in, want := range tests {
		assert.Equal(t, want, resolveSymbol(in), in)
	}
}

func TestDetectBondsMatchesSerialScan(t *testing.T) {
	pool := worker.NewDynamicWorkerPool(4, 16, time.Second)
	t.Cleanup(pool.Stop)

	// a chain longer than one chunk so several tasks run
	var atoms []scene.Atom
	for i := range 3*bondChunk + 5 {
		atoms = append(atoms, scene.Atom{Position: mgl32.Vec3{float32(i) * 1.5, 0, 0}, Radius: 0.77})
	}
	bonds := detectBonds(atoms, DefaultBondTolerance, pool)
	require.Len(t, bonds, len(atoms)-1)
	for i, b := range bonds {
		assert.Equal(t, scene.Bond{Atom1: i, Atom2: i + 1, Order: scene.BondSingle}, b)
	}
	assert.Equal(t, bondsFrom(atoms, 0, len(atoms), DefaultBondTolerance), bonds)
}

func TestDetectBondsSkipsDuplicates(t *testing.T) {
	pool := worker.NewDynamicWorkerPool(1, 4, time.Second)
	t.Cleanup(pool.Stop)
	atoms := []scene.Atom{{Radius: 1}, {Radius: 1}}
	assert.Empty(t, detectBonds(atoms, DefaultBondTolerance, pool))
	assert.Nil(t, detectBonds(atoms[:1], DefaultBondTolerance, pool))
}

func TestLoaderCache(t *testing.T) {
	l := NewLoader(BackendTypeXYZ, WithWorkers(2))
	t.Cleanup(l.Release)

	dir := t.TempDir()
	path := filepath.Join(dir, "water.xyz")
	require.NoError(t, os.WriteFile(path, []byte(water), 0o644))

	first, err := l.Load(path)
	require.NoError(t, err)
	second, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, l.Get(path))

	other, err := l.LoadReader("copy", strings.NewReader(water))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), other.ID())
	assert.Len(t, l.Structures(), 2)
	assert.Nil(t, l.Get("missing"))

	_, err = l.Load(filepath.Join(dir, "water.pdb"))
	assert.Error(t, err)
	_, err = l.Load(filepath.Join(dir, "absent.xyz"))
	assert.Error(t, err)
}

func TestLoaderOptions(t *testing.T) {
	seeded := scene.NewStructure(41)
	style := scene.DefaultStyle()
	style.AmbientOcclusion = false
	l := NewLoader(BackendTypeXYZ, WithStructure("seed", seeded), WithStyle(style), WithBondTolerance(0))
	t.Cleanup(l.Release)

	assert.Same(t, seeded, l.Get("seed"))
	s, err := l.LoadReader("water", strings.NewReader(water))
	require.NoError(t, err)
	assert.Equal(t, scene.StructureID(42), s.ID())
	assert.False(t, s.Style().AmbientOcclusion)
	// O-H at 0.96 Å is inside 0.66+0.32 without any tolerance
	assert.Len(t, s.Bonds(), 2)
}
