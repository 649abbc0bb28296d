package shader

import (
	_ "embed"
	"fmt"
)

// Module identifies one WGSL source file holding the entry points of a family of programs.
type Module int

const (
	ModuleAtoms Module = iota
	ModuleBonds
	ModulePrimitives
	ModuleIsosurface
	ModuleStencil
	ModuleBackground
	ModulePost
	ModuleText
	ModuleShadow
	ModuleOcclusion

	moduleCount
)

var (
	//go:embed assets/shading.wgsl
	shadingSource string

	//go:embed assets/atoms.wgsl
	atomsSource string

	//go:embed assets/bonds.wgsl
	bondsSource string

	//go:embed assets/primitives.wgsl
	primitivesSource string

	//go:embed assets/isosurface.wgsl
	isosurfaceSource string

	//go:embed assets/stencil.wgsl
	stencilSource string

	//go:embed assets/background.wgsl
	backgroundSource string

	//go:embed assets/post.wgsl
	postSource string

	//go:embed assets/text.wgsl
	textSource string

	//go:embed assets/shadow.wgsl
	shadowSource string

	//go:embed assets/occlusion.wgsl
	occlusionSource string
)

var moduleNames = [moduleCount]string{
	"atoms",
	"bonds",
	"primitives",
	"isosurface",
	"stencil",
	"background",
	"post",
	"text",
	"shadow",
	"occlusion",
}

func (m Module) String() string {
	if m < 0 || m >= moduleCount {
		return fmt.Sprintf("module(%d)", int(m))
	}
	return moduleNames[m]
}

// Modules returns every module in declaration order.
func Modules() []Module {
	out := make([]Module, moduleCount)
	for i := range out {
		out[i] = Module(i)
	}
	return out
}

// ModuleSource returns the annotated WGSL source of a module, or "" for an unknown module.
func ModuleSource(m Module) string {
	switch m {
	case ModuleAtoms:
		return atomsSource
	case ModuleBonds:
		return bondsSource
	case ModulePrimitives:
		return primitivesSource
	case ModuleIsosurface:
		return isosurfaceSource
	case ModuleStencil:
		return stencilSource
	case ModuleBackground:
		return backgroundSource
	case ModulePost:
		return postSource
	case ModuleText:
		return textSource
	case ModuleShadow:
		return shadowSource
	case ModuleOcclusion:
		return occlusionSource
	}
	return ""
}

// Compile parses the vertex and, when fragmentEntry is not empty, the fragment stage of a module.
//
// Parameters:
//   - m: the module
//   - vertexEntry: the vertex entry point
//   - fragmentEntry: the fragment entry point, "" for depth-only programs
//
// Returns:
//   - Shader: the vertex stage
//   - Shader: the fragment stage, nil for depth-only programs
func Compile(m Module, vertexEntry, fragmentEntry string) (Shader, Shader) {
	src := ModuleSource(m)
	vs := NewShader(m.String()+"."+vertexEntry, ShaderTypeVertex, src, WithEntryPoint(vertexEntry))
	if fragmentEntry == "" {
		return vs, nil
	}
	fs := NewShader(m.String()+"."+fragmentEntry, ShaderTypeFragment, src, WithEntryPoint(fragmentEntry))
	return vs, fs
}
