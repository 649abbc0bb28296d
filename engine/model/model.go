// Package model generates the unit meshes that instanced draws scale and place:
// spheres, impostor quads, capped cylinders, cubes and prisms.
package model

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is an indexed triangle list in model space.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

// TriangleCount returns the number of triangles in the mesh.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Triangle returns the positions and normals of triangle i.
//
// Parameters:
//   - i: triangle index
//
// Returns:
//   - [3]Vertex: the three corners in winding order
func (m *Mesh) Triangle(i int) [3]Vertex {
	return [3]Vertex{
		m.Vertices[m.Indices[3*i]],
		m.Vertices[m.Indices[3*i+1]],
		m.Vertices[m.Indices[3*i+2]],
	}
}

type generator struct {
	segments int
	rings    int
}

func newGenerator(options []MeshBuilderOption) generator {
	g := generator{segments: 24, rings: 12}
	for _, opt := range options {
		opt(&g)
	}
	g.segments = max(g.segments, 3)
	g.rings = max(g.rings, 2)
	return g
}

// Sphere builds a unit-radius UV sphere centred at the origin.
//
// Parameters:
//   - options: variadic list of MeshBuilderOption functions
//
// Returns:
//   - *Mesh: the sphere mesh
func Sphere(options ...MeshBuilderOption) *Mesh {
	g := newGenerator(options)
	m := &Mesh{Name: "sphere"}
	for r := 0; r <= g.rings; r++ {
		v := float32(r) / float32(g.rings)
		theta := v * math32.Pi
		for s := 0; s <= g.segments; s++ {
			u := float32(s) / float32(g.segments)
			phi := u * 2 * math32.Pi
			n := [3]float32{math32.Sin(theta) * math32.Cos(phi), math32.Cos(theta), math32.Sin(theta) * math32.Sin(phi)}
			m.Vertices = append(m.Vertices, Vertex{Position: n, Normal: n, TexCoord: [2]float32{u, v}})
		}
	}
	stride := uint32(g.segments + 1)
	for r := 0; r < g.rings; r++ {
		for s := 0; s < g.segments; s++ {
			a := uint32(r)*stride + uint32(s)
			b := a + stride
			if r != 0 {
				m.Indices = append(m.Indices, a, a+1, b)
			}
			if r != g.rings-1 {
				m.Indices = append(m.Indices, a+1, b+1, b)
			}
		}
	}
	return m
}

// Impostor builds the camera-facing quad used for billboard atoms. Corners span [-1, 1].
//
// Returns:
//   - *Mesh: the impostor mesh
func Impostor() *Mesh {
	m := Quad()
	m.Name = "impostor"
	return m
}

// Quad builds a unit quad in the XY plane facing +Z with texture coordinates in [0, 1].
//
// Returns:
//   - *Mesh: the quad mesh
func Quad() *Mesh {
	n := [3]float32{0, 0, 1}
	return &Mesh{
		Name: "quad",
		Vertices: []Vertex{
			{Position: [3]float32{-1, -1, 0}, Normal: n, TexCoord: [2]float32{0, 1}},
			{Position: [3]float32{1, -1, 0}, Normal: n, TexCoord: [2]float32{1, 1}},
			{Position: [3]float32{1, 1, 0}, Normal: n, TexCoord: [2]float32{1, 0}},
			{Position: [3]float32{-1, 1, 0}, Normal: n, TexCoord: [2]float32{0, 0}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// Cylinder builds a capped unit-radius cylinder along +Z from z=0 to z=1.
//
// Parameters:
//   - options: variadic list of MeshBuilderOption functions
//
// Returns:
//   - *Mesh: the cylinder mesh
func Cylinder(options ...MeshBuilderOption) *Mesh {
	g := newGenerator(options)
	m := prism(g.segments, true)
	m.Name = "cylinder"
	return m
}

// Prism builds a capped n-sided prism along +Z from z=0 to z=1 with flat side normals.
//
// Parameters:
//   - sides: number of side faces, at least 3
//
// Returns:
//   - *Mesh: the prism mesh
func Prism(sides int) *Mesh {
	m := prism(max(sides, 3), false)
	m.Name = "prism"
	return m
}

func prism(sides int, smooth bool) *Mesh {
	m := &Mesh{}
	ring := func(i int) (float32, float32) {
		a := 2 * math32.Pi * float32(i%sides) / float32(sides)
		return math32.Cos(a), math32.Sin(a)
	}
	for i := 0; i < sides; i++ {
		x0, y0 := ring(i)
		x1, y1 := ring(i + 1)
		n0 := [3]float32{x0, y0, 0}
		n1 := [3]float32{x1, y1, 0}
		if !smooth {
			mid := mgl32.Vec3{x0 + x1, y0 + y1, 0}.Normalize()
			n0, n1 = mid, mid
		}
		base := uint32(len(m.Vertices))
		u0, u1 := float32(i)/float32(sides), float32(i+1)/float32(sides)
		m.Vertices = append(m.Vertices,
			Vertex{Position: [3]float32{x0, y0, 0}, Normal: n0, TexCoord: [2]float32{u0, 0}},
			Vertex{Position: [3]float32{x1, y1, 0}, Normal: n1, TexCoord: [2]float32{u1, 0}},
			Vertex{Position: [3]float32{x1, y1, 1}, Normal: n1, TexCoord: [2]float32{u1, 1}},
			Vertex{Position: [3]float32{x0, y0, 1}, Normal: n0, TexCoord: [2]float32{u0, 1}},
		)
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	for _, z := range []float32{0, 1} {
		n := [3]float32{0, 0, 2*z - 1}
		centre := uint32(len(m.Vertices))
		m.Vertices = append(m.Vertices, Vertex{Position: [3]float32{0, 0, z}, Normal: n, TexCoord: [2]float32{0.5, 0.5}})
		for i := 0; i < sides; i++ {
			x, y := ring(i)
			m.Vertices = append(m.Vertices, Vertex{Position: [3]float32{x, y, z}, Normal: n, TexCoord: [2]float32{0.5 + x/2, 0.5 + y/2}})
		}
		for i := 0; i < sides; i++ {
			a := centre + 1 + uint32(i)
			b := centre + 1 + uint32((i+1)%sides)
			if z == 0 {
				m.Indices = append(m.Indices, centre, b, a)
			} else {
				m.Indices = append(m.Indices, centre, a, b)
			}
		}
	}
	return m
}

// Cube builds an axis-aligned cube spanning [0, 1] on every axis, the unit cell in fractional coordinates.
//
// Returns:
//   - *Mesh: the cube mesh
func Cube() *Mesh {
	m := &Mesh{Name: "cube"}
	faces := [6]struct {
		normal [3]float32
		corner [4][3]float32
	}{
		{[3]float32{-1, 0, 0}, [4][3]float32{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
		{[3]float32{1, 0, 0}, [4][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},
		{[3]float32{0, 0, 1}, [4][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
	}
	uvs := [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for _, f := range faces {
		base := uint32(len(m.Vertices))
		for i, c := range f.corner {
			m.Vertices = append(m.Vertices, Vertex{Position: c, Normal: f.normal, TexCoord: uvs[i]})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}
