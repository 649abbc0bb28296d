package resource

import "fmt"

// Category is one kind of per-structure instance buffer.
type Category int

const (
	CategoryAtoms Category = iota
	CategorySelectedAtoms
	CategoryInternalSingleBonds
	CategoryInternalDoubleBonds
	CategoryInternalTripleBonds
	CategoryExternalSingleBonds
	CategoryExternalDoubleBonds
	CategoryExternalTripleBonds
	CategorySelectedBonds
	CategoryUnitCellSpheres
	CategoryUnitCellCylinders
	CategoryLocalAxes
	CategoryPrimitives
	CategoryTransparentPrimitives
	CategorySelectedPrimitives
	CategoryOpaqueIsosurface
	CategoryTransparentIsosurface
	CategoryGlyphs

	// CategoryCount is the number of categories.
	CategoryCount
)

var categoryNames = [CategoryCount]string{
	"atoms",
	"selected_atoms",
	"internal_single_bonds",
	"internal_double_bonds",
	"internal_triple_bonds",
	"external_single_bonds",
	"external_double_bonds",
	"external_triple_bonds",
	"selected_bonds",
	"unit_cell_spheres",
	"unit_cell_cylinders",
	"local_axes",
	"primitives",
	"transparent_primitives",
	"selected_primitives",
	"opaque_isosurface",
	"transparent_isosurface",
	"glyphs",
}

func (c Category) String() string {
	if c < 0 || c >= CategoryCount {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// InternalBondCategories lists the internal bond categories in draw order (single, double, triple).
var InternalBondCategories = []Category{CategoryInternalSingleBonds, CategoryInternalDoubleBonds, CategoryInternalTripleBonds}

// ExternalBondCategories lists the external bond categories in draw order (single, double, triple).
var ExternalBondCategories = []Category{CategoryExternalSingleBonds, CategoryExternalDoubleBonds, CategoryExternalTripleBonds}
