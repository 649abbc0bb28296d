package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Programs() {
		name := p.String()
		assert.False(t, seen[name], "duplicate program name %q", name)
		seen[name] = true
	}
	assert.Len(t, seen, int(programCount))
	assert.Equal(t, "program(-1)", Program(-1).String())
}

func TestFrameUniformsViewport(t *testing.T) {
	f := FrameUniforms{Width: 200, Height: 100, Orthographic: true, GlowRadius: 3}
	buf := f.Marshal()
	require.Len(t, buf, FrameUniformsSize)

	assert.InDelta(t, 0.005, getF32(buf, 136), 1e-9)
	assert.InDelta(t, 0.01, getF32(buf, 140), 1e-9)

	got := UnmarshalFrameUniforms(buf)
	assert.True(t, got.Orthographic)
	assert.Equal(t, float32(3), got.GlowRadius)
}

func TestFrameUniformsZeroViewport(t *testing.T) {
	f := FrameUniforms{}
	buf := f.Marshal()
	assert.Zero(t, getF32(buf, 136))
	assert.Zero(t, getF32(buf, 140))
}

func TestInstanceStrides(t *testing.T) {
	atoms := []AtomInstance{
		{Position: [3]float32{1, 2, 3}, Radius: 0.5, Tag: 0},
		{Position: [3]float32{4, 5, 6}, Radius: 0.7, Tag: 1, Flags: AtomFlagSelected},
	}
	buf := make([]byte, len(atoms)*AtomInstanceSize)
	for i := range atoms {
		atoms[i].MarshalTo(buf[i*AtomInstanceSize:])
	}
	decoded := DecodeAtomInstances(buf)
	require.Len(t, decoded, 2)
	assert.Equal(t, uint32(1), decoded[1].Tag)
	assert.Equal(t, [3]float32{4, 5, 6}, decoded[1].Position)
	assert.Equal(t, AtomFlagSelected, decoded[1].Flags)

	var b BondInstance
	var p PrimitiveInstance
	var v SurfaceVertex
	var g GlyphInstance
	assert.Equal(t, BondInstanceSize, b.Size())
	assert.Equal(t, PrimitiveInstanceSize, p.Size())
	assert.Equal(t, SurfaceVertexSize, v.Size())
	assert.Equal(t, GlyphInstanceSize, g.Size())
}

type countBuffer int

func (c countBuffer) Label() string { return "count" }
func (c countBuffer) Len() int      { return int(c) }
func (c countBuffer) Count() int    { return int(c) }
func (c countBuffer) Release()      {}

func TestDrawInstanceRange(t *testing.T) {
	tests := []struct {
		name                 string
		draw                 Draw
		wantFirst, wantCount int
	}{
		{"no buffer draws one", Draw{}, 0, 1},
		{"whole buffer", Draw{Instances: countBuffer(10)}, 0, 10},
		{"span", Draw{Instances: countBuffer(10), First: 2, Count: 3}, 2, 3},
		{"open span", Draw{Instances: countBuffer(10), First: 7}, 7, 3},
		{"clamped", Draw{Instances: countBuffer(10), First: 8, Count: 5}, 8, 2},
		{"past end", Draw{Instances: countBuffer(10), First: 12}, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, count := tt.draw.InstanceRange()
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantCount, count)
		})
	}
}
