package scene

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// StructureID identifies a structure across reloads. Caches keyed by structure use it.
type StructureID uint64

// RenderQuality selects geometry detail and the ambient occlusion direction set.
type RenderQuality int

const (
	QualityLow RenderQuality = iota
	QualityMedium
	QualityHigh
	QualityPicture
)

var renderQualityNames = [...]string{"low", "medium", "high", "picture"}

func (q RenderQuality) String() string {
	if q < 0 || int(q) >= len(renderQualityNames) {
		return fmt.Sprintf("RenderQuality(%d)", int(q))
	}
	return renderQualityNames[q]
}

// UsesImpostors reports whether atoms are drawn as camera-facing billboards instead of sphere meshes.
func (q RenderQuality) UsesImpostors() bool {
	return q == QualityLow || q == QualityMedium
}

// ParseRenderQuality converts a case-insensitive name into a RenderQuality.
//
// Parameters:
//   - s: one of "low", "medium", "high", "picture"
//
// Returns:
//   - RenderQuality: the parsed quality
//   - error: error if the name is unknown
func ParseRenderQuality(s string) (RenderQuality, error) {
	for i, name := range renderQualityNames {
		if strings.EqualFold(s, name) {
			return RenderQuality(i), nil
		}
	}
	return 0, fmt.Errorf("unknown render quality %q", s)
}

// ImageQuality selects the pixel format of an exported picture.
type ImageQuality int

const (
	ImageRGB16 ImageQuality = iota
	ImageRGB8
	ImageCMYK16
	ImageCMYK8
)

var imageQualityNames = [...]string{"rgb16", "rgb8", "cmyk16", "cmyk8"}

func (q ImageQuality) String() string {
	if q < 0 || int(q) >= len(imageQualityNames) {
		return fmt.Sprintf("ImageQuality(%d)", int(q))
	}
	return imageQualityNames[q]
}

// ParseImageQuality converts a case-insensitive name into an ImageQuality.
//
// Parameters:
//   - s: one of "rgb16", "rgb8", "cmyk16", "cmyk8"
//
// Returns:
//   - ImageQuality: the parsed quality
//   - error: error if the name is unknown
func ParseImageQuality(s string) (ImageQuality, error) {
	for i, name := range imageQualityNames {
		if strings.EqualFold(s, name) {
			return ImageQuality(i), nil
		}
	}
	return 0, fmt.Errorf("unknown image quality %q", s)
}

// SelectionStyle controls how selected atoms and bonds are highlighted.
type SelectionStyle int

const (
	SelectionNone SelectionStyle = iota
	SelectionWorleyNoise3D
	SelectionStriped
	SelectionGlow
)

// BondColorMode controls how a bond takes its color from the two atoms it joins.
type BondColorMode int

const (
	// BondColorUniform paints the whole bond with the bond color.
	BondColorUniform BondColorMode = iota
	// BondColorSplit paints each half with its atom's color.
	BondColorSplit
	// BondColorSmoothedSplit blends the two atom colors along the bond.
	BondColorSmoothedSplit
)

// BackgroundType selects how the background pass fills the scene target.
type BackgroundType int

const (
	BackgroundColor BackgroundType = iota
	BackgroundLinearGradient
	BackgroundRadialGradient
)

var backgroundTypeNames = [...]string{"color", "linear", "radial"}

func (b BackgroundType) String() string {
	if b < 0 || int(b) >= len(backgroundTypeNames) {
		return fmt.Sprintf("BackgroundType(%d)", int(b))
	}
	return backgroundTypeNames[b]
}

// ParseBackgroundType converts "color", "linear" or "radial" into a BackgroundType.
func ParseBackgroundType(s string) (BackgroundType, error) {
	for i, name := range backgroundTypeNames {
		if strings.EqualFold(s, name) {
			return BackgroundType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown background type %q", s)
}

// AnnotationType selects the text drawn next to each atom.
type AnnotationType int

const (
	AnnotationNone AnnotationType = iota
	AnnotationDisplayName
	AnnotationElement
	AnnotationPosition
)

// BondOrder is the multiplicity of a bond.
type BondOrder int

const (
	BondSingle BondOrder = iota + 1
	BondDouble
	BondTriple
)

// PrimitiveShape is the mesh used by a geometric primitive.
type PrimitiveShape int

const (
	ShapeEllipsoid PrimitiveShape = iota
	ShapeCylinder
	ShapePrism
)

// Capabilities lists which kinds of renderable content a structure carries.
// Renderer components test these flags instead of inspecting concrete types.
type Capabilities struct {
	Atoms       bool
	Bonds       bool
	UnitCell    bool
	Primitives  bool
	Isosurface  bool
	Annotations bool
}

// Bounds is an axis-aligned box.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Center returns the midpoint of the box.
func (b Bounds) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extent returns the size of the box along each axis.
func (b Bounds) Extent() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Radius returns the radius of the bounding sphere of the box.
func (b Bounds) Radius() float32 {
	return b.Extent().Len() * 0.5
}

// Empty reports whether the box has no volume in any axis.
func (b Bounds) Empty() bool {
	return b.Max[0] < b.Min[0] || b.Max[1] < b.Min[1] || b.Max[2] < b.Min[2]
}

// Union returns the smallest box containing both b and o. An empty box is ignored.
func (b Bounds) Union(o Bounds) Bounds {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	return Bounds{
		Min: mgl32.Vec3{min(b.Min[0], o.Min[0]), min(b.Min[1], o.Min[1]), min(b.Min[2], o.Min[2])},
		Max: mgl32.Vec3{max(b.Max[0], o.Max[0]), max(b.Max[1], o.Max[1]), max(b.Max[2], o.Max[2])},
	}
}

// EmptyBounds returns a box that Union treats as absent.
func EmptyBounds() Bounds {
	return Bounds{Min: mgl32.Vec3{1, 1, 1}, Max: mgl32.Vec3{-1, -1, -1}}
}

// Corners returns the eight corners of the box. Bit 0 of the index selects x, bit 1 y, bit 2 z.
func (b Bounds) Corners() [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i := range 8 {
		for axis := range 3 {
			if i&(1<<axis) != 0 {
				out[i][axis] = b.Max[axis]
			} else {
				out[i][axis] = b.Min[axis]
			}
		}
	}
	return out
}

// Background describes the clear fill of the scene target.
type Background struct {
	Type   BackgroundType
	Color1 [4]float32
	Color2 [4]float32
}

// Transform places a structure in the scene.
type Transform struct {
	Orientation mgl32.Quat  // rotation about Origin
	Origin      mgl32.Vec3  // rotation center in structure space
	Translation mgl32.Vec3  // offset applied after rotation
	Box         [16]float32 // unit cell: columns are the a, b, c lattice vectors and the cell origin
	BoundingBox Bounds      // structure-space bounds of all content
}

// Atom is a single atom of a structure.
type Atom struct {
	Position mgl32.Vec3
	Radius   float32
	Color    [4]float32
	Element  string
	Name     string
	Selected bool
}

// Bond joins two atoms by index. External bonds cross the unit cell boundary:
// Offset is added to the second atom's position.
type Bond struct {
	Atom1    int
	Atom2    int
	Order    BondOrder
	External bool
	Selected bool
	Offset   mgl32.Vec3
}

// Primitive is a free-standing or cell-attached geometric shape.
// Crystal primitives are expressed in fractional coordinates of the unit cell.
type Primitive struct {
	Shape       PrimitiveShape
	Crystal     bool
	Position    mgl32.Vec3
	Scale       mgl32.Vec3
	Orientation mgl32.Quat
	Color       [4]float32
	Selected    bool
}

// Opaque reports whether the primitive is drawn in the opaque pass.
func (p Primitive) Opaque() bool {
	return p.Color[3] >= 1
}

// IsosurfaceVertex is one vertex of an isosurface triangle list.
type IsosurfaceVertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
}

// Isosurface is a triangle list with a single color. Alpha below one makes it transparent.
type Isosurface struct {
	Vertices []IsosurfaceVertex
	Color    [4]float32
}

// Opaque reports whether the surface is drawn in the opaque pass.
func (i Isosurface) Opaque() bool {
	return i.Color[3] >= 1
}

// Annotation is a text label anchored at a structure-space position.
type Annotation struct {
	Position mgl32.Vec3
	Text     string
	Color    [4]float32
}

// Style holds the per-structure appearance settings that feed the structure uniforms.
type Style struct {
	AmbientOcclusion bool

	AtomScale               float32
	AtomHSV                 [4]float32 // hue shift, saturation, value, exposure
	AtomHDR                 bool
	BondHSV                 [4]float32
	BondHDR                 bool
	BondRadius              float32
	BondScaling             float32
	BondColorMode           BondColorMode
	BondColor               [4]float32
	ColorAtomsWithBondColor bool

	UnitCellScaling float32
	UnitCellColor   [4]float32
	ClipAtoms       bool
	ClipBonds       bool
	ClipPlanes      [6][4]float32 // plane equations (nx, ny, nz, d) in structure space
	LocalAxes       bool

	Selection              SelectionStyle
	SelectionScaling       float32
	AtomSelectionIntensity float32
	BondSelectionIntensity float32
	BondSelectionScaling   float32
	StripesDensity         float32
	StripesFrequency       float32
	NoiseFrequency         float32
	NoiseJitter            float32

	PrimitiveOpacity   float32
	PrimitiveColor     [4]float32
	PrimitiveBackColor [4]float32

	Annotation      AnnotationType
	AnnotationColor [4]float32
}

// DefaultStyle returns the appearance used when a structure does not override it.
//
// Returns:
//   - Style: the default style
func DefaultStyle() Style {
	return Style{
		AmbientOcclusion:       true,
		AtomScale:              1,
		AtomHSV:                [4]float32{0, 1, 1, 1},
		BondHSV:                [4]float32{0, 1, 1, 1},
		BondRadius:             0.15,
		BondScaling:            1,
		BondColorMode:          BondColorSplit,
		BondColor:              [4]float32{0.7, 0.7, 0.7, 1},
		UnitCellScaling:        1,
		UnitCellColor:          [4]float32{0.3, 0.3, 0.3, 1},
		Selection:              SelectionGlow,
		SelectionScaling:       1.2,
		AtomSelectionIntensity: 0.5,
		BondSelectionIntensity: 0.5,
		BondSelectionScaling:   1.2,
		StripesDensity:         0.5,
		StripesFrequency:       8,
		NoiseFrequency:         4,
		NoiseJitter:            1,
		PrimitiveOpacity:       1,
		PrimitiveColor:         [4]float32{0.8, 0.8, 0.2, 1},
		PrimitiveBackColor:     [4]float32{0.5, 0.5, 0.1, 1},
		AnnotationColor:        [4]float32{1, 1, 1, 1},
	}
}
