// Package gpu holds the record layouts and enums shared by the renderer's components and its backends.
package gpu

import (
	"errors"
	"fmt"
)

// ErrNotInFrame is returned when a draw or pass call is issued outside BeginFrame/EndFrame.
var ErrNotInFrame = errors.New("gpu: no frame in progress")

// Program identifies a render pipeline. Each backend compiles one pipeline per program.
type Program int

const (
	ProgramBackground Program = iota
	ProgramIsosurfaceOpaque
	ProgramLocalAxes
	ProgramAtomSphere
	ProgramAtomImpostor
	ProgramPrimitiveOpaque
	ProgramUnitCellStencil
	ProgramInternalBond
	ProgramExternalBond
	ProgramUnitCellCylinder
	ProgramUnitCellSphere
	ProgramBoundingBoxCylinder
	ProgramBoundingBoxSphere
	ProgramBondSelection
	ProgramAtomSelection
	ProgramPrimitiveSelection
	ProgramBondSelectionGlow
	ProgramAtomSelectionGlow
	ProgramBlurHorizontal
	ProgramBlurVertical
	ProgramPrimitiveBackFaces
	ProgramPrimitiveFrontFaces
	ProgramIsosurfaceBackFaces
	ProgramIsosurfaceFrontFaces
	ProgramText
	ProgramComposite
	ProgramPickAtom
	ProgramPickInternalBond
	ProgramPickExternalBond
	ProgramShadowDepth
	ProgramOcclusionAccumulate

	programCount
)

var programNames = [...]string{
	"background",
	"isosurface_opaque",
	"local_axes",
	"atom_sphere",
	"atom_impostor",
	"primitive_opaque",
	"unit_cell_stencil",
	"internal_bond",
	"external_bond",
	"unit_cell_cylinder",
	"unit_cell_sphere",
	"bounding_box_cylinder",
	"bounding_box_sphere",
	"bond_selection",
	"atom_selection",
	"primitive_selection",
	"bond_selection_glow",
	"atom_selection_glow",
	"blur_horizontal",
	"blur_vertical",
	"primitive_back_faces",
	"primitive_front_faces",
	"isosurface_back_faces",
	"isosurface_front_faces",
	"text",
	"composite",
	"pick_atom",
	"pick_internal_bond",
	"pick_external_bond",
	"shadow_depth",
	"occlusion_accumulate",
}

// String returns the pipeline cache key of the program.
func (p Program) String() string {
	if p < 0 || p >= programCount {
		return fmt.Sprintf("program(%d)", int(p))
	}
	return programNames[p]
}

// Programs returns every program in declaration order.
func Programs() []Program {
	out := make([]Program, programCount)
	for i := range out {
		out[i] = Program(i)
	}
	return out
}

// Mesh identifies the shared geometry an instanced draw expands each instance into.
type Mesh int

const (
	MeshNone Mesh = iota // instance buffer holds raw vertices
	MeshSphere
	MeshImpostor
	MeshCylinder
	MeshCube
	MeshPrism
	MeshQuad
)

// Target identifies a color attachment of the frame.
type Target int

const (
	TargetScene Target = iota
	TargetGlow
	TargetBlurHorizontal
	TargetBlurVertical
	TargetFinal
)

// LoadOp selects whether a pass clears its target or keeps the previous contents.
type LoadOp int

const (
	LoadClear LoadOp = iota
	LoadKeep
)

// Buffer is a backend-owned GPU buffer holding tightly packed instance records.
type Buffer interface {
	// Label returns the debug label given at creation.
	Label() string

	// Len returns the size of the buffer in bytes.
	Len() int

	// Count returns the number of records in the buffer.
	Count() int

	// Release frees the GPU memory. Calling Release twice is a no-op.
	Release()
}

// Draw describes one instanced draw of a structure category.
// FlatIndex -1 marks a global draw whose model matrix is the identity.
// A nil Instances buffer draws a single instance of Mesh.
type Draw struct {
	Mesh          Mesh
	Instances     Buffer
	FlatIndex     int
	SceneIndex    int
	UniformOffset uint64
	First         int // first instance
	Count         int // instance count; 0 draws every instance from First on
}

// InstanceRange resolves First and Count against the buffer size.
//
// Returns:
//   - int: first instance
//   - int: number of instances to draw
func (d Draw) InstanceRange() (int, int) {
	total := 1
	if d.Instances != nil {
		total = d.Instances.Count()
	}
	first := min(max(d.First, 0), total)
	count := total - first
	if d.Count > 0 {
		count = min(d.Count, count)
	}
	return first, count
}

// FrameTarget sizes the attachments of a frame. Offscreen frames render to a texture
// that can be read back instead of the window surface.
type FrameTarget struct {
	Width     int
	Height    int
	Offscreen bool
}
