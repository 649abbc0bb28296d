package indexer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func structures(ids ...scene.StructureID) []scene.Structure {
	out := make([]scene.Structure, len(ids))
	for i, id := range ids {
		out[i] = scene.NewStructure(id, scene.WithAtoms(scene.Atom{Radius: 1}))
	}
	return out
}

func TestRebuildNumbersDepthFirst(t *testing.T) {
	scenes := [][]scene.Structure{
		structures(10, 11),
		nil,
		structures(20),
		structures(30, 31, 32),
	}
	table := Rebuild(scenes)

	require.Equal(t, 6, table.Len())
	assert.Equal(t, 4, table.NumberOfScenes())

	tests := []struct {
		scene, structure, flat int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{2, 0, 2},
		{3, 0, 3},
		{3, 2, 5},
	}
	for _, tt := range tests {
		flat, ok := table.FlatIndex(tt.scene, tt.structure)
		require.True(t, ok)
		assert.Equal(t, tt.flat, flat)

		sc, st, ok := table.Location(flat)
		require.True(t, ok)
		assert.Equal(t, tt.scene, sc)
		assert.Equal(t, tt.structure, st)
		assert.Equal(t, uint64(tt.flat*UniformStride), table.UniformOffset(flat))
	}

	_, ok := table.FlatIndex(1, 0)
	assert.False(t, ok, "empty scene has no structures")
	_, ok = table.FlatIndex(0, 2)
	assert.False(t, ok)
	_, _, ok = table.Location(6)
	assert.False(t, ok)
	assert.Nil(t, table.Structure(-1))
	assert.Equal(t, []int{3, 4, 5}, table.SceneStructures(3))
}

func TestRebuildIsStable(t *testing.T) {
	scenes := [][]scene.Structure{structures(1, 2), nil, structures(3)}
	a := Rebuild(scenes)
	b := Rebuild(scenes)
	assert.Equal(t, a.Signature(), b.Signature())
	assert.Equal(t, a.UniformBytes(), b.UniformBytes())
	assert.Equal(t, []scene.StructureID{1, 2, 3}, a.Signature())
}

func TestEachVisitsFlatOrder(t *testing.T) {
	table := Rebuild([][]scene.Structure{structures(1), structures(2, 3)})
	var flats []int
	var ids []scene.StructureID
	table.Each(func(flat, sceneIndex, structureIndex int, s scene.Structure) {
		flats = append(flats, flat)
		ids = append(ids, s.ID())
	})
	assert.Equal(t, []int{0, 1, 2}, flats)
	assert.Equal(t, []scene.StructureID{1, 2, 3}, ids)
}

func TestUniformRecords(t *testing.T) {
	style := scene.DefaultStyle()
	style.AmbientOcclusion = true
	style.ClipBonds = true
	style.Selection = scene.SelectionStriped
	moved := scene.NewStructure(7,
		scene.WithStyle(style),
		scene.WithTranslation(mgl32.Vec3{1, 2, 3}),
		scene.WithUnitCell(common.Identity4()),
	)
	table := Rebuild([][]scene.Structure{structures(1), {moved}}, WithUniformHook(func(flat int, s scene.Structure, u *StructureUniforms) {
		u.AOPatchCount = int32(flat + 1)
	}))

	require.Len(t, table.UniformBytes(), 2*UniformStride)
	assert.Zero(t, UniformStride%256)

	u := DecodeStructureUniforms(table.UniformBytes()[table.UniformOffset(1):])
	assert.Equal(t, int32(1), u.SceneID)
	assert.Equal(t, int32(1), u.FlatIndex)
	assert.Equal(t, int32(2), u.AOPatchCount)
	assert.Equal(t, FlagAmbientOcclusion|FlagClipBonds, u.Flags)
	assert.Equal(t, uint32(scene.SelectionStriped), u.SelectionStyle)
	assert.Equal(t, float32(1), u.Model[12])
	assert.Equal(t, float32(2), u.Model[13])
	assert.Equal(t, float32(3), u.Model[14])
	assert.InDelta(t, -1, u.InverseModel[12], 1e-6)
	assert.Equal(t, style.PrimitiveBackColor, u.PrimitiveBackColor)
}

func TestClipBondsNeedsUnitCell(t *testing.T) {
	style := scene.DefaultStyle()
	style.ClipBonds = true
	loose := scene.NewStructure(1, scene.WithStyle(style))
	table := Rebuild([][]scene.Structure{{loose}})

	u := DecodeStructureUniforms(table.UniformBytes())
	assert.Zero(t, u.Flags&FlagClipBonds)
}

func TestGlobalUniforms(t *testing.T) {
	u := GlobalUniforms()
	assert.Equal(t, int32(-1), u.FlatIndex)
	assert.Equal(t, common.Identity4(), u.Model)
	assert.Equal(t, float32(1), u.BondScaling)

	buf := make([]byte, UniformStride)
	u.MarshalTo(buf)
	assert.Equal(t, u, DecodeStructureUniforms(buf))
}

func TestFromSource(t *testing.T) {
	src := scene.NewSource(scene.WithScene(structures(5)...), scene.WithScene(), scene.WithScene(structures(6, 7)...))
	table := FromSource(src)
	assert.Equal(t, []scene.StructureID{5, 6, 7}, table.Signature())
	flat, ok := table.FlatIndex(2, 1)
	require.True(t, ok)
	assert.Equal(t, 2, flat)
}
