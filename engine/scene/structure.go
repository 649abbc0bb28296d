package scene

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Structure is a read-only view of one renderable crystal or molecule.
// The renderer holds structures only by ID between reloads and reads them through this interface.
// Content accessors return nil when the matching capability flag is false.
type Structure interface {
	// ID returns the stable identity used as the ambient occlusion cache key.
	//
	// Returns:
	//   - StructureID: the structure identity
	ID() StructureID

	// Visible reports whether the structure takes part in rendering, picking and shadow casting.
	Visible() bool

	// Capabilities reports which content kinds the structure carries.
	//
	// Returns:
	//   - Capabilities: the flag set
	Capabilities() Capabilities

	// Style returns the appearance settings of the structure.
	Style() Style

	// Transform returns the placement of the structure in its scene.
	Transform() Transform

	// ModelMatrix returns the structure-to-scene matrix derived from Transform.
	//
	// Returns:
	//   - [16]float32: the column-major model matrix
	ModelMatrix() [16]float32

	// AtomCount returns len(Atoms()) without copying.
	AtomCount() int

	// Atoms returns the atom list. The index of an atom is its picking local index.
	Atoms() []Atom

	// Bonds returns the bond list.
	Bonds() []Bond

	// Primitives returns the geometric primitives.
	Primitives() []Primitive

	// Isosurface returns the isosurface triangle list.
	Isosurface() Isosurface

	// Annotations returns the text labels derived from the atoms and the annotation style.
	Annotations() []Annotation
}

// EditableStructure is a Structure whose content can be replaced by the application.
// Each setter replaces the whole field; callers that change atoms must invalidate
// ambient occlusion for the structure themselves.
type EditableStructure interface {
	Structure

	// SetVisible shows or hides the structure.
	SetVisible(visible bool)

	// SetStyle replaces the appearance settings.
	SetStyle(style Style)

	// SetTransform replaces the placement.
	SetTransform(t Transform)

	// SetOrientation replaces only the orientation quaternion.
	SetOrientation(q mgl32.Quat)

	// SetAtoms replaces the atom list and recomputes the bounding box.
	SetAtoms(atoms []Atom)

	// SetBonds replaces the bond list.
	SetBonds(bonds []Bond)

	// SetPrimitives replaces the primitive list.
	SetPrimitives(primitives []Primitive)

	// SetIsosurface replaces the isosurface.
	SetIsosurface(surface Isosurface)

	// SetUnitCell replaces the unit cell box matrix and enables the unit cell capability.
	SetUnitCell(box [16]float32)

	// Select marks the atoms at the given indices as selected and clears every other atom.
	Select(indices ...int)
}

type structure struct {
	mu *sync.Mutex

	id         StructureID
	visible    bool
	caps       Capabilities
	style      Style
	transform  Transform
	atoms      []Atom
	bonds      []Bond
	primitives []Primitive
	isosurface Isosurface
}

var _ EditableStructure = &structure{}

// NewStructure creates an in-memory structure.
//
// Parameters:
//   - id: the stable structure identity
//   - options: variadic list of StructureBuilderOption functions
//
// Returns:
//   - EditableStructure: the created structure
func NewStructure(id StructureID, options ...StructureBuilderOption) EditableStructure {
	s := &structure{
		mu:      &sync.Mutex{},
		id:      id,
		visible: true,
		style:   DefaultStyle(),
		transform: Transform{
			Orientation: mgl32.QuatIdent(),
			Box:         common.Identity4(),
			BoundingBox: EmptyBounds(),
		},
	}
	for _, opt := range options {
		opt(s)
	}
	s.refreshBounds()
	return s
}

func (s *structure) ID() StructureID { return s.id }

func (s *structure) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *structure) Capabilities() Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	caps := s.caps
	caps.Atoms = len(s.atoms) > 0
	caps.Bonds = len(s.bonds) > 0
	caps.Primitives = len(s.primitives) > 0
	caps.Isosurface = len(s.isosurface.Vertices) > 0
	caps.Annotations = caps.Atoms && s.style.Annotation != AnnotationNone
	return caps
}

func (s *structure) Style() Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

func (s *structure) Transform() Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transform
}

func (s *structure) ModelMatrix() [16]float32 {
	t := s.Transform()
	return common.RotationAroundPoint(t.Orientation, t.Origin, t.Translation)
}

func (s *structure) AtomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.atoms)
}

func (s *structure) Atoms() []Atom {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.atoms
}

func (s *structure) Bonds() []Bond {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bonds
}

func (s *structure) Primitives() []Primitive {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primitives
}

func (s *structure) Isosurface() Isosurface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isosurface
}

func (s *structure) Annotations() []Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.style.Annotation == AnnotationNone {
		return nil
	}
	out := make([]Annotation, 0, len(s.atoms))
	for _, a := range s.atoms {
		out = append(out, Annotation{
			Position: a.Position,
			Text:     annotationText(s.style.Annotation, a),
			Color:    s.style.AnnotationColor,
		})
	}
	return out
}

func annotationText(t AnnotationType, a Atom) string {
	switch t {
	case AnnotationDisplayName:
		return common.Coalesce(a.Name, a.Element)
	case AnnotationElement:
		return a.Element
	case AnnotationPosition:
		return fmt.Sprintf("%.2f %.2f %.2f", a.Position[0], a.Position[1], a.Position[2])
	}
	return ""
}

func (s *structure) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = visible
}

func (s *structure) SetStyle(style Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.style = style
}

func (s *structure) SetTransform(t Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform = t
}

func (s *structure) SetOrientation(q mgl32.Quat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform.Orientation = q
}

func (s *structure) SetAtoms(atoms []Atom) {
	s.mu.Lock()
	s.atoms = atoms
	s.mu.Unlock()
	s.refreshBounds()
}

func (s *structure) SetBonds(bonds []Bond) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bonds = bonds
}

func (s *structure) SetPrimitives(primitives []Primitive) {
	s.mu.Lock()
	s.primitives = primitives
	s.mu.Unlock()
	s.refreshBounds()
}

func (s *structure) SetIsosurface(surface Isosurface) {
	s.mu.Lock()
	s.isosurface = surface
	s.mu.Unlock()
	s.refreshBounds()
}

func (s *structure) SetUnitCell(box [16]float32) {
	s.mu.Lock()
	s.transform.Box = box
	s.caps.UnitCell = true
	s.mu.Unlock()
	s.refreshBounds()
}

func (s *structure) Select(indices ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	atoms := make([]Atom, len(s.atoms))
	copy(atoms, s.atoms)
	for i := range atoms {
		atoms[i].Selected = false
	}
	for _, i := range indices {
		if i >= 0 && i < len(atoms) {
			atoms[i].Selected = true
		}
	}
	s.atoms = atoms
}

// refreshBounds recomputes the bounding box from atoms, primitives, the isosurface and the unit cell.
func (s *structure) refreshBounds() {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := EmptyBounds()
	for _, a := range s.atoms {
		r := mgl32.Vec3{a.Radius, a.Radius, a.Radius}
		b = b.Union(Bounds{Min: a.Position.Sub(r), Max: a.Position.Add(r)})
	}
	for _, p := range s.primitives {
		pos := p.Position
		if p.Crystal {
			pos = common.TransformPoint(s.transform.Box, pos).Vec3()
		}
		b = b.Union(Bounds{Min: pos.Sub(p.Scale), Max: pos.Add(p.Scale)})
	}
	for _, v := range s.isosurface.Vertices {
		b = b.Union(Bounds{Min: v.Position, Max: v.Position})
	}
	if s.caps.UnitCell {
		for _, c := range UnitCellCorners(s.transform.Box) {
			b = b.Union(Bounds{Min: c, Max: c})
		}
	}
	s.transform.BoundingBox = b
}

// UnitCellCorners returns the eight corners of the parallelepiped described by a box matrix.
// Bit 0 of the index selects the a vector, bit 1 b and bit 2 c.
//
// Parameters:
//   - box: column-major matrix whose columns are a, b, c and the origin
//
// Returns:
//   - [8]mgl32.Vec3: the corners
func UnitCellCorners(box [16]float32) [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i := range 8 {
		f := mgl32.Vec3{float32(i & 1), float32((i >> 1) & 1), float32((i >> 2) & 1)}
		out[i] = common.TransformPoint(box, f).Vec3()
	}
	return out
}

// BoxEdges lists the corner index pairs of the twelve edges of a box, using the UnitCellCorners
// and Bounds.Corners numbering.
var BoxEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}
