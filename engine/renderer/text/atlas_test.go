package text

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtlasCellsCoverPrintableASCII(t *testing.T) {
	a := NewAtlas()
	w, h := a.CellSize()
	assert.Equal(t, 7, w)
	assert.Equal(t, 13, h)

	b := a.Image().Bounds()
	assert.Equal(t, columns*w, b.Dx())
	assert.Equal(t, 6*h, b.Dy(), "95 glyphs in rows of 16")
}

func TestLayoutCentresLabel(t *testing.T) {
	a := NewAtlas()
	label := scene.Annotation{Position: mgl32.Vec3{1, 2, 3}, Text: "NaCl", Color: [4]float32{1, 1, 1, 1}}
	glyphs := a.Layout(label)
	require.Len(t, glyphs, 4)

	assert.Equal(t, float32(-14), glyphs[0].Rect[0])
	assert.Equal(t, float32(7), glyphs[3].Rect[0])
	for _, g := range glyphs {
		assert.Equal(t, [3]float32{1, 2, 3}, g.Anchor)
		assert.Equal(t, label.Color, g.Color)
		assert.Less(t, g.UV[0], g.UV[2])
		assert.Less(t, g.UV[1], g.UV[3])
	}
	assert.NotEqual(t, glyphs[0].UV, glyphs[1].UV)
}

func TestLayoutSkipsSpacesAndReplacesUnknownRunes(t *testing.T) {
	a := NewAtlas()
	glyphs := a.Layout(scene.Annotation{Text: "O é"})
	require.Len(t, glyphs, 2)
	question := a.Layout(scene.Annotation{Text: "?"})
	require.Len(t, question, 1)
	assert.Equal(t, question[0].UV, glyphs[1].UV)

	assert.Nil(t, a.Layout(scene.Annotation{}))
}

func TestCoverageHasInk(t *testing.T) {
	a := NewAtlas()
	g := a.Layout(scene.Annotation{Text: "H"})[0]

	ink := float32(0)
	for i := 0; i < 16; i++ {
		for j := 0; j < 16; j++ {
			u := g.UV[0] + (g.UV[2]-g.UV[0])*(float32(i)+0.5)/16
			v := g.UV[1] + (g.UV[3]-g.UV[1])*(float32(j)+0.5)/16
			ink += a.Coverage(u, v)
		}
	}
	assert.Greater(t, ink, float32(0))
	assert.Zero(t, a.Coverage(-0.1, 0.5))
}
