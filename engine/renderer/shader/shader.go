package shader

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage a shader feeds.
type ShaderType int

const (
	// ShaderTypeVertex runs once per vertex or instance corner.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment runs once per covered sample and pairs with a vertex stage of the same module.
	ShaderTypeFragment
)

// shader is the implementation of the Shader interface.
type shader struct {
	key        string
	source     string
	shaderType ShaderType
	entryPoint string
	buffers    []wgpu.VertexBufferLayout
	bindings   []Binding
}

// Shader is one reflected stage of a module: the expanded WGSL plus the layouts a render pipeline
// needs to consume it.
type Shader interface {
	// Key identifies the stage as "<module>.<entry>". The wgpu backend caches shader modules by it.
	Key() string

	// Source returns the WGSL with every annotation expanded.
	Source() string

	// EntryPoint returns the WGSL function the stage starts at.
	EntryPoint() string

	// ShaderType returns the stage.
	ShaderType() ShaderType

	// VertexLayout returns the buffer layout bound at vertex slot key, or nil.
	//
	// Parameters:
	//   - key: the vertex buffer slot
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: a single layout, or nil when the slot is unused
	VertexLayout(key int) []wgpu.VertexBufferLayout

	// VertexLayouts returns the buffer layouts keyed by vertex slot. Slot i holds the i-th struct
	// parameter of the entry point. Fragment stages and vertex stages that only read builtins have none.
	VertexLayouts() map[int][]wgpu.VertexBufferLayout

	// Bindings returns every resource the module declares, ordered by group and binding.
	Bindings() []Binding

	// BindGroupLayoutDescriptor returns the layout of one group, empty when the stage declares nothing in it.
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupLayoutDescriptors groups Bindings into descriptors keyed by group index.
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupFromVarName finds the binding of a variable.
	//
	// Parameters:
	//   - group: the group to search
	//   - varName: the WGSL variable name
	//
	// Returns:
	//   - int: the binding index, -1 if absent
	//   - bool: whether the variable was found
	BindGroupFromVarName(group int, varName string) (int, bool)

	// BindGroupVarNames returns the variable names keyed by group and then binding.
	BindGroupVarNames() map[int]map[int]string
}

var _ Shader = &shader{}

// NewShader expands the annotations of source and reflects one of its stages. Uniforms declared
// with the uniform_dynamic address space are bound with a dynamic offset.
// It panics when the source is empty or does not expand and reflect, since module sources are
// embedded in the binary.
//
// Parameters:
//   - key: a unique identifier for the stage
//   - shaderType: the stage to reflect
//   - source: the annotated WGSL source
//   - opts: variadic list of ShaderBuilderOption functions
//
// Returns:
//   - Shader: the reflected stage
func NewShader(key string, shaderType ShaderType, source string, opts ...ShaderBuilderOption) Shader {
	if source == "" {
		panic(fmt.Sprintf("shader: %s has no source", key))
	}
	s := &shader{key: key, shaderType: shaderType}
	for _, opt := range opts {
		opt(s)
	}

	pp := NewPreProcessor()
	expanded, err := pp.Process(source)
	if err != nil {
		panic(fmt.Sprintf("shader: %s: %v", key, err))
	}
	r, err := reflectStage(expanded, shaderType, s.entryPoint)
	if err != nil {
		panic(fmt.Sprintf("shader: %s: %v", key, err))
	}
	s.source = expanded
	s.entryPoint = r.entry
	s.buffers = r.buffers
	s.bindings = r.bindings

	for _, d := range pp.Declarations() {
		if !d.Dynamic() {
			continue
		}
		for i := range s.bindings {
			if s.bindings[i].Group == *d.Group && s.bindings[i].Binding == *d.Binding {
				s.bindings[i].Entry.Buffer.HasDynamicOffset = true
			}
		}
	}
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) VertexLayout(key int) []wgpu.VertexBufferLayout {
	if key < 0 || key >= len(s.buffers) {
		return nil
	}
	return s.buffers[key : key+1]
}

func (s *shader) VertexLayouts() map[int][]wgpu.VertexBufferLayout {
	out := make(map[int][]wgpu.VertexBufferLayout, len(s.buffers))
	for i := range s.buffers {
		out[i] = s.buffers[i : i+1]
	}
	return out
}

func (s *shader) Bindings() []Binding {
	return s.bindings
}

func (s *shader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.BindGroupLayoutDescriptors()[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	out := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for _, b := range s.bindings {
		desc := out[b.Group]
		desc.Entries = append(desc.Entries, b.Entry)
		out[b.Group] = desc
	}
	return out
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	for _, b := range s.bindings {
		if b.Group == group && b.Name == varName {
			return b.Binding, true
		}
	}
	return -1, false
}

func (s *shader) BindGroupVarNames() map[int]map[int]string {
	out := make(map[int]map[int]string)
	for _, b := range s.bindings {
		if out[b.Group] == nil {
			out[b.Group] = make(map[int]string)
		}
		out[b.Group][b.Binding] = b.Name
	}
	return out
}
