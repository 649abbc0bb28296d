package model

// MeshBuilderOption is a functional option for configuring the tessellation of generated meshes.
type MeshBuilderOption func(g *generator)

// WithSegments sets the number of segments around the circumference of spheres and cylinders.
//
// Parameters:
//   - n: the segment count, at least 3
//
// Returns:
//   - MeshBuilderOption: option function to apply
func WithSegments(n int) MeshBuilderOption {
	return func(g *generator) {
		g.segments = n
	}
}

// WithRings sets the number of latitude rings of a sphere.
//
// Parameters:
//   - n: the ring count, at least 2
//
// Returns:
//   - MeshBuilderOption: option function to apply
func WithRings(n int) MeshBuilderOption {
	return func(g *generator) {
		g.rings = n
	}
}
