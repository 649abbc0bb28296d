package scene

import "github.com/go-gl/mathgl/mgl32"

// StructureBuilderOption is a functional option for configuring a Structure.
// Use the With* functions to create options.
type StructureBuilderOption func(s *structure)

// WithAtoms sets the initial atom list.
//
// Parameters:
//   - atoms: the atoms
//
// Returns:
//   - StructureBuilderOption: option function to apply
func WithAtoms(atoms ...Atom) StructureBuilderOption {
	return func(s *structure) {
		s.atoms = atoms
	}
}

// WithBonds sets the initial bond list.
//
// Parameters:
//   - bonds: the bonds
//
// Returns:
//   - StructureBuilderOption: option function to apply
func WithBonds(bonds ...Bond) StructureBuilderOption {
	return func(s *structure) {
		s.bonds = bonds
	}
}

// WithPrimitives sets the initial primitive list.
func WithPrimitives(primitives ...Primitive) StructureBuilderOption {
	return func(s *structure) {
		s.primitives = primitives
	}
}

// WithIsosurface sets the initial isosurface.
func WithIsosurface(surface Isosurface) StructureBuilderOption {
	return func(s *structure) {
		s.isosurface = surface
	}
}

// WithUnitCell sets the unit cell box matrix and enables the unit cell capability.
//
// Parameters:
//   - box: column-major matrix whose columns are the a, b, c lattice vectors and the cell origin
//
// Returns:
//   - StructureBuilderOption: option function to apply
func WithUnitCell(box [16]float32) StructureBuilderOption {
	return func(s *structure) {
		s.transform.Box = box
		s.caps.UnitCell = true
	}
}

// WithStyle replaces the default style.
//
// Parameters:
//   - style: the appearance settings
//
// Returns:
//   - StructureBuilderOption: option function to apply
func WithStyle(style Style) StructureBuilderOption {
	return func(s *structure) {
		s.style = style
	}
}

// WithOrientation sets the rotation applied about the structure origin.
func WithOrientation(q mgl32.Quat) StructureBuilderOption {
	return func(s *structure) {
		s.transform.Orientation = q
	}
}

// WithOrigin sets the rotation center in structure space.
func WithOrigin(origin mgl32.Vec3) StructureBuilderOption {
	return func(s *structure) {
		s.transform.Origin = origin
	}
}

// WithTranslation sets the offset applied after rotation.
func WithTranslation(t mgl32.Vec3) StructureBuilderOption {
	return func(s *structure) {
		s.transform.Translation = t
	}
}

// WithVisible sets the initial visibility. Structures are visible by default.
func WithVisible(visible bool) StructureBuilderOption {
	return func(s *structure) {
		s.visible = visible
	}
}
