package model

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outward reports whether every triangle winds counter-clockwise when seen from outside centre.
func outward(t *testing.T, m *Mesh, centre func(p mgl32.Vec3) mgl32.Vec3) {
	t.Helper()
	for i := 0; i < m.TriangleCount(); i++ {
		tri := m.Triangle(i)
		a, b, c := mgl32.Vec3(tri[0].Position), mgl32.Vec3(tri[1].Position), mgl32.Vec3(tri[2].Position)
		n := b.Sub(a).Cross(c.Sub(a))
		if n.Len() < 1e-7 {
			continue
		}
		mid := a.Add(b).Add(c).Mul(1.0 / 3)
		require.Greater(t, n.Dot(mid.Sub(centre(mid))), float32(0), "%s triangle %d faces inward", m.Name, i)
	}
}

func TestSphereIsClosedAndOutward(t *testing.T) {
	m := Sphere(WithSegments(8), WithRings(4))
	assert.Len(t, m.Vertices, 9*5)
	assert.Equal(t, 2*8*4-2*8, m.TriangleCount())
	for _, v := range m.Vertices {
		assert.InDelta(t, 1, mgl32.Vec3(v.Position).Len(), 1e-5)
	}
	outward(t, m, func(mgl32.Vec3) mgl32.Vec3 { return mgl32.Vec3{} })
}

func TestCylinderAndPrismAreOutward(t *testing.T) {
	axis := func(p mgl32.Vec3) mgl32.Vec3 { return mgl32.Vec3{0, 0, 0.5} }
	cyl := Cylinder(WithSegments(12))
	assert.Equal(t, 12*2+12*2, cyl.TriangleCount())
	outward(t, cyl, axis)

	hex := Prism(6)
	assert.Equal(t, 6*2+6*2, hex.TriangleCount())
	outward(t, hex, axis)
	assert.Equal(t, 3*2+3*2, Prism(1).TriangleCount(), "fewer than three sides clamps to a triangle")
}

func TestCubeSpansUnitCell(t *testing.T) {
	m := Cube()
	assert.Equal(t, 12, m.TriangleCount())
	for _, v := range m.Vertices {
		for _, c := range v.Position {
			assert.True(t, c == 0 || c == 1)
		}
	}
	outward(t, m, func(mgl32.Vec3) mgl32.Vec3 { return mgl32.Vec3{0.5, 0.5, 0.5} })
}

func TestMeshBytes(t *testing.T) {
	m := Impostor()
	assert.Equal(t, "impostor", m.Name)
	assert.Len(t, m.VertexBytes(), 4*VertexSize)
	assert.Len(t, m.IndexBytes(), 6*4)
	assert.Equal(t, byte(2), m.IndexBytes()[8])
}
