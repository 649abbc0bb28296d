package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-crystal/engine/model"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
)

// snippet is the WGSL an include pastes, and the struct name a group declaration refers to.
// typeName is empty for function libraries.
type snippet struct {
	source   string
	typeName string
}

// snippets holds everything an annotation can name. The record sources are owned by the packages
// that marshal the records so the two layouts are edited together.
var snippets = map[AnnotationArg]snippet{
	AnnotationArgFrame:             {gpu.GPUFrameUniformsSource, "FrameUniforms"},
	AnnotationArgShadow:            {gpu.GPUShadowUniformsSource, "ShadowUniforms"},
	AnnotationArgStructure:         {indexer.GPUStructureUniformsSource, "StructureUniforms"},
	annotationArgVertex:            {model.GPUVertexSource, "VertexInput"},
	annotationArgAtomInstance:      {gpu.GPUAtomInstanceSource, "AtomInstance"},
	annotationArgBondInstance:      {gpu.GPUBondInstanceSource, "BondInstance"},
	annotationArgPrimitiveInstance: {gpu.GPUPrimitiveInstanceSource, "PrimitiveInstance"},
	annotationArgSurfaceVertex:     {gpu.GPUSurfaceVertexSource, "SurfaceVertex"},
	annotationArgGlyphInstance:     {gpu.GPUGlyphInstanceSource, "GlyphInstance"},
	annotationArgShading:           {source: shadingSource},
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	declarations []Annotation
}

// PreProcessor expands @crystal: annotations in WGSL source.
type PreProcessor interface {
	// Process expands every annotation in source and returns plain WGSL. Repeated includes of
	// the same name paste it once.
	//
	// Parameters:
	//   - source: the annotated WGSL source
	//
	// Returns:
	//   - string: the expanded WGSL source
	//   - error: error if an annotation is malformed
	Process(source string) (string, error)

	// Declarations returns the group annotations found by the last Process call.
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a pre-processor.
func NewPreProcessor() PreProcessor {
	return &preProcessor{}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = nil
	seen := make(map[AnnotationArg]bool)

	var b strings.Builder
	b.Grow(len(source))
	for i, line := range strings.Split(source, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		switch {
		case a == nil:
			b.WriteString(line)
		case a.Type == annotationTypeInclude:
			if !seen[a.Args[0]] {
				seen[a.Args[0]] = true
				b.WriteString(snippets[a.Args[0]].source)
			}
		default:
			fmt.Fprintf(&b, "@group(%d) @binding(%d) var<uniform> %s: %s;",
				*a.Group, *a.Binding, a.Args[1], snippets[a.Args[2]].typeName)
			p.declarations = append(p.declarations, *a)
		}
	}
	return b.String(), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
