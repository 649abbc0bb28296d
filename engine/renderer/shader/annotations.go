package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Module sources are plain WGSL plus comment lines of the form
//
//	//@crystal:include <name>
//	//@crystal:group <group> <binding> <address_space> <var_name> <record>
//
// The first pastes a shared record struct or function library once per source. The second
// declares a variable of a record type, which lets the uniform_dynamic address space mark
// the per-structure record as dynamically offset, something plain WGSL cannot express.
const annotationPrefix = "@crystal:"

// AnnotationType is the directive of an annotation line.
type AnnotationType string

const (
	annotationTypeInclude      AnnotationType = "include"
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// Annotation is one parsed annotation line.
type Annotation struct {
	Type AnnotationType

	// Args is [name] for include and [address space, var name, record] for group.
	Args []AnnotationArg

	// Line is 1-based.
	Line int

	// Group and Binding are set for group annotations only.
	Group   *int
	Binding *int
}

// Dynamic reports whether the annotation declares a uniform bound with a dynamic offset.
func (a Annotation) Dynamic() bool {
	return a.Type == AnnotationTypeBindingGroup && a.Args[0] == annotationArgUniformDynamic
}

// AnnotationArg is a record name, library name or address space used in an annotation.
type AnnotationArg string

// Records shared with the Go side. Each one's WGSL struct matches the byte layout its Go
// record marshals to.
const (
	AnnotationArgFrame             AnnotationArg = "frame"     // gpu.FrameUniforms
	AnnotationArgShadow            AnnotationArg = "shadow"    // gpu.ShadowUniforms
	AnnotationArgStructure         AnnotationArg = "structure" // indexer record, 512 bytes per structure
	annotationArgVertex            AnnotationArg = "vertex"    // model.Vertex
	annotationArgAtomInstance      AnnotationArg = "atom_instance"
	annotationArgBondInstance      AnnotationArg = "bond_instance"
	annotationArgPrimitiveInstance AnnotationArg = "primitive_instance"
	annotationArgSurfaceVertex     AnnotationArg = "surface_vertex"
	annotationArgGlyphInstance     AnnotationArg = "glyph_instance"
)

// annotationArgShading names the lighting, coloring and clipping functions. It can be
// included but declares no record.
const annotationArgShading AnnotationArg = "shading"

// Address spaces. Both expand to var<uniform>.
const (
	annotationArgUniform        AnnotationArg = "uniform"
	annotationArgUniformDynamic AnnotationArg = "uniform_dynamic"
)

var records = []AnnotationArg{
	AnnotationArgFrame,
	AnnotationArgShadow,
	AnnotationArgStructure,
	annotationArgVertex,
	annotationArgAtomInstance,
	annotationArgBondInstance,
	annotationArgPrimitiveInstance,
	annotationArgSurfaceVertex,
	annotationArgGlyphInstance,
}

// parseAnnotation parses one source line. Lines without the prefix return nil and no error.
//
// Parameters:
//   - line: the raw source line
//   - lineNum: the 1-based line number used in errors
//
// Returns:
//   - *Annotation: the annotation, or nil for ordinary lines
//   - error: error if the line carries the prefix but is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	_, after, ok := strings.Cut(strings.TrimSpace(line), annotationPrefix)
	if !ok {
		return nil, nil
	}
	f := strings.Fields(after)
	if len(f) == 0 {
		return nil, fmt.Errorf("line %d: annotation without directive", lineNum)
	}

	switch AnnotationType(f[0]) {
	case annotationTypeInclude:
		if len(f) != 2 {
			return nil, fmt.Errorf("line %d: include takes one name, got %d", lineNum, len(f)-1)
		}
		name := AnnotationArg(f[1])
		if name != annotationArgShading && !slices.Contains(records, name) {
			return nil, fmt.Errorf("line %d: cannot include %q", lineNum, f[1])
		}
		return &Annotation{Type: annotationTypeInclude, Args: []AnnotationArg{name}, Line: lineNum}, nil

	case AnnotationTypeBindingGroup:
		if len(f) != 6 {
			return nil, fmt.Errorf("line %d: group takes group, binding, address space, name and record, got %d arguments", lineNum, len(f)-1)
		}
		group, err := strconv.Atoi(f[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: group index: %w", lineNum, err)
		}
		binding, err := strconv.Atoi(f[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: binding index: %w", lineNum, err)
		}
		space := AnnotationArg(f[3])
		if space != annotationArgUniform && space != annotationArgUniformDynamic {
			return nil, fmt.Errorf("line %d: address space %q is not uniform or uniform_dynamic", lineNum, f[3])
		}
		record := AnnotationArg(f[5])
		if !slices.Contains(records, record) {
			return nil, fmt.Errorf("line %d: %q is not a record", lineNum, f[5])
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{space, AnnotationArg(f[4]), record},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	}
	return nil, fmt.Errorf("line %d: unknown directive %q", lineNum, f[0])
}
