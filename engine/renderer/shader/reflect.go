package shader

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// typeInfo is the host-shareable layout of a WGSL type. format is zero for types that cannot
// feed a vertex attribute.
type typeInfo struct {
	size   uint64
	align  uint64
	format wgpu.VertexFormat
}

// scalarTypes covers the plain types the record structs and vertex inputs are made of.
var scalarTypes = map[string]typeInfo{
	"f32":         {4, 4, wgpu.VertexFormatFloat32},
	"i32":         {4, 4, wgpu.VertexFormatSint32},
	"u32":         {4, 4, wgpu.VertexFormatUint32},
	"vec2<f32>":   {8, 8, wgpu.VertexFormatFloat32x2},
	"vec3<f32>":   {12, 16, wgpu.VertexFormatFloat32x3},
	"vec4<f32>":   {16, 16, wgpu.VertexFormatFloat32x4},
	"vec2<i32>":   {8, 8, wgpu.VertexFormatSint32x2},
	"vec3<i32>":   {12, 16, wgpu.VertexFormatSint32x3},
	"vec4<i32>":   {16, 16, wgpu.VertexFormatSint32x4},
	"vec2<u32>":   {8, 8, wgpu.VertexFormatUint32x2},
	"vec3<u32>":   {12, 16, wgpu.VertexFormatUint32x3},
	"vec4<u32>":   {16, 16, wgpu.VertexFormatUint32x4},
	"mat3x3<f32>": {48, 16, 0},
	"mat4x4<f32>": {64, 16, 0},
}

// shorthand aliases of WGSL, expanded before lookups.
var typeAliases = map[string]string{
	"vec2f": "vec2<f32>", "vec3f": "vec3<f32>", "vec4f": "vec4<f32>",
	"vec2i": "vec2<i32>", "vec3i": "vec3<i32>", "vec4i": "vec4<i32>",
	"vec2u": "vec2<u32>", "vec3u": "vec3<u32>", "vec4u": "vec4<u32>",
	"mat3x3f": "mat3x3<f32>", "mat4x4f": "mat4x4<f32>",
}

var (
	structRe  = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	bindingRe = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+);`)
	attrRe    = regexp.MustCompile(`@(\w+)(?:\(([^)]*)\))?`)
	arrayRe   = regexp.MustCompile(`^array<(.+),\s*(\d+)>$`)
	vertexRe  = regexp.MustCompile(`@vertex\s+fn\s+(\w+)`)
	fragRe    = regexp.MustCompile(`@fragment\s+fn\s+(\w+)`)
)

// member is one field of a WGSL struct, or one parameter of an entry point.
type member struct {
	name     string
	typ      string
	location int // -1 when the member has no @location attribute
	builtin  bool
}

// wgslStruct is a struct declaration found in a source.
type wgslStruct struct {
	name    string
	members []member
}

// Binding is one resource variable a stage declares.
type Binding struct {
	Group   int
	Binding int
	Name    string
	Entry   wgpu.BindGroupLayoutEntry
}

// reflection is what a stage exposes to the pipeline layout.
type reflection struct {
	entry    string
	buffers  []wgpu.VertexBufferLayout
	bindings []Binding
}

// reflectStage reads the entry point, vertex buffers and resource bindings of one stage of expanded WGSL.
// The vertex buffers are the struct parameters of the entry point in declaration order, one buffer
// per parameter. Structs whose name ends in "Instance" advance per instance.
//
// Parameters:
//   - source: the expanded WGSL source
//   - stage: the stage to reflect
//   - entry: the entry point, "" for the first one of the stage
//
// Returns:
//   - reflection: the stage metadata
//   - error: error if the entry point is missing or a declaration uses a type the renderer does not bind
func reflectStage(source string, stage ShaderType, entry string) (reflection, error) {
	src := stripComments(source)
	structs := parseStructs(src)

	if entry == "" {
		re := vertexRe
		if stage == ShaderTypeFragment {
			re = fragRe
		}
		m := re.FindStringSubmatch(src)
		if m == nil {
			return reflection{}, fmt.Errorf("no %s entry point", stageName(stage))
		}
		entry = m[1]
	}
	params, ok := entryParams(src, entry)
	if !ok {
		return reflection{}, fmt.Errorf("entry point %q not found", entry)
	}

	out := reflection{entry: entry}
	if stage == ShaderTypeVertex {
		for _, p := range params {
			if p.builtin {
				continue
			}
			s, ok := structs[p.typ]
			if !ok {
				return reflection{}, fmt.Errorf("%s: vertex parameter %s has non-struct type %s", entry, p.name, p.typ)
			}
			layout, err := vertexBuffer(s)
			if err != nil {
				return reflection{}, fmt.Errorf("%s: %w", entry, err)
			}
			out.buffers = append(out.buffers, layout)
		}
	}

	visibility := wgpu.ShaderStageVertex
	if stage == ShaderTypeFragment {
		visibility = wgpu.ShaderStageFragment
	}
	for _, m := range bindingRe.FindAllStringSubmatch(src, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		e, err := layoutEntry(uint32(binding), visibility, m[3], strings.TrimSpace(m[5]), structs)
		if err != nil {
			return reflection{}, fmt.Errorf("binding %s: %w", m[4], err)
		}
		out.bindings = append(out.bindings, Binding{Group: group, Binding: binding, Name: m[4], Entry: e})
	}
	sort.Slice(out.bindings, func(i, j int) bool {
		if out.bindings[i].Group != out.bindings[j].Group {
			return out.bindings[i].Group < out.bindings[j].Group
		}
		return out.bindings[i].Binding < out.bindings[j].Binding
	})
	return out, nil
}

func stageName(stage ShaderType) string {
	if stage == ShaderTypeFragment {
		return "fragment"
	}
	return "vertex"
}

// vertexBuffer packs the located members of s one after another.
func vertexBuffer(s wgslStruct) (wgpu.VertexBufferLayout, error) {
	layout := wgpu.VertexBufferLayout{StepMode: wgpu.VertexStepModeVertex}
	if strings.HasSuffix(s.name, "Instance") {
		layout.StepMode = wgpu.VertexStepModeInstance
	}
	for _, m := range s.members {
		info, ok := scalarTypes[m.typ]
		if m.location < 0 || !ok || info.format == 0 {
			return wgpu.VertexBufferLayout{}, fmt.Errorf("%s.%s is not a vertex attribute", s.name, m.name)
		}
		layout.Attributes = append(layout.Attributes, wgpu.VertexAttribute{
			Format:         info.format,
			Offset:         layout.ArrayStride,
			ShaderLocation: uint32(m.location),
		})
		layout.ArrayStride += info.size
	}
	return layout, nil
}

// layoutEntry classifies one resource declaration.
func layoutEntry(binding uint32, visibility wgpu.ShaderStage, space, typ string, structs map[string]wgslStruct) (wgpu.BindGroupLayoutEntry, error) {
	e := wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: visibility}
	switch space = strings.ReplaceAll(space, " ", ""); space {
	case "uniform", "storage,read":
		info, err := typeLayout(typ, structs)
		if err != nil {
			return e, err
		}
		e.Buffer.Type = wgpu.BufferBindingTypeUniform
		if space != "uniform" {
			e.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		}
		e.Buffer.MinBindingSize = info.size
		return e, nil
	case "":
	default:
		return e, fmt.Errorf("unsupported address space %q", space)
	}

	switch typ {
	case "sampler":
		e.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case "sampler_comparison":
		e.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case "texture_2d<f32>":
		e.Texture = wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat, ViewDimension: wgpu.TextureViewDimension2D}
	case "texture_2d<u32>":
		e.Texture = wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeUint, ViewDimension: wgpu.TextureViewDimension2D}
	case "texture_depth_2d":
		e.Texture = wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeDepth, ViewDimension: wgpu.TextureViewDimension2D}
	default:
		return e, fmt.Errorf("unsupported resource type %s", typ)
	}
	return e, nil
}

// typeLayout computes size and alignment with the uniform buffer rules: struct members are placed at
// multiples of their alignment and a struct is padded to a multiple of its largest member alignment.
func typeLayout(typ string, structs map[string]wgslStruct) (typeInfo, error) {
	if alias, ok := typeAliases[typ]; ok {
		typ = alias
	}
	if info, ok := scalarTypes[typ]; ok {
		return info, nil
	}
	if m := arrayRe.FindStringSubmatch(typ); m != nil {
		elem, err := typeLayout(strings.TrimSpace(m[1]), structs)
		if err != nil {
			return typeInfo{}, err
		}
		n, _ := strconv.ParseUint(m[2], 10, 64)
		stride := common.AlignUp(elem.size, elem.align)
		return typeInfo{size: stride * n, align: elem.align}, nil
	}
	s, ok := structs[typ]
	if !ok {
		return typeInfo{}, fmt.Errorf("unknown type %s", typ)
	}
	var offset, align uint64 = 0, 1
	for _, m := range s.members {
		info, err := typeLayout(m.typ, structs)
		if err != nil {
			return typeInfo{}, fmt.Errorf("%s.%s: %w", s.name, m.name, err)
		}
		offset = common.AlignUp(offset, info.align) + info.size
		align = max(align, info.align)
	}
	return typeInfo{size: common.AlignUp(offset, align), align: align}, nil
}

func parseStructs(src string) map[string]wgslStruct {
	out := make(map[string]wgslStruct)
	for _, m := range structRe.FindAllStringSubmatch(src, -1) {
		s := wgslStruct{name: m[1]}
		for _, field := range splitTopLevel(m[2]) {
			if mem, ok := parseMember(field); ok {
				s.members = append(s.members, mem)
			}
		}
		out[s.name] = s
	}
	return out
}

// entryParams returns the parameters of fn name.
func entryParams(src, name string) ([]member, bool) {
	_, rest, ok := strings.Cut(src, "fn "+name+"(")
	if !ok {
		return nil, false
	}
	depth := 1
	end := strings.IndexFunc(rest, func(r rune) bool {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		return depth == 0
	})
	if end < 0 {
		return nil, false
	}
	var params []member
	for _, p := range splitTopLevel(rest[:end]) {
		if mem, ok := parseMember(p); ok {
			params = append(params, mem)
		}
	}
	return params, true
}

// parseMember reads "[@attr...] name: type".
func parseMember(text string) (member, bool) {
	mem := member{location: -1}
	for _, a := range attrRe.FindAllStringSubmatch(text, -1) {
		switch a[1] {
		case "location":
			mem.location, _ = strconv.Atoi(strings.TrimSpace(a[2]))
		case "builtin":
			mem.builtin = true
		}
	}
	text = strings.TrimSpace(attrRe.ReplaceAllString(text, ""))
	name, typ, ok := strings.Cut(text, ":")
	if !ok {
		return member{}, false
	}
	mem.name = strings.TrimSpace(name)
	mem.typ = strings.Join(strings.Fields(typ), " ")
	if alias, ok := typeAliases[mem.typ]; ok {
		mem.typ = alias
	}
	return mem, mem.name != ""
}

// splitTopLevel splits at commas outside <> and () nesting.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// stripComments blanks // and /* */ comments. Block comments nest in WGSL.
func stripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	depth := 0
	for i := 0; i < len(src); i++ {
		switch {
		case depth == 0 && strings.HasPrefix(src[i:], "//"):
			nl := strings.IndexByte(src[i:], '\n')
			if nl < 0 {
				return b.String()
			}
			i += nl - 1
		case strings.HasPrefix(src[i:], "/*"):
			depth++
			i++
		case depth > 0 && strings.HasPrefix(src[i:], "*/"):
			depth--
			i++
		case depth == 0:
			b.WriteByte(src[i])
		}
	}
	return b.String()
}
