// Package indexer maps every (scene, structure) pair onto a dense flat index and builds the
// contiguous structure uniform buffer addressed by that index.
package indexer

import (
	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
)

// UniformHook lets the owner of derived per-structure state (ambient occlusion patch layout)
// fill its part of a record while the table is built.
type UniformHook func(flat int, s scene.Structure, u *StructureUniforms)

type entry struct {
	scene     int
	structure int
	s         scene.Structure
}

// Table is an immutable mapping between (scene, structure) positions and flat indices,
// together with the structure uniform array in flat order.
type Table struct {
	entries     []entry
	sceneStarts []int
	sceneSizes  []int
	uniforms    []byte
}

// RebuildOption is a functional option for Rebuild.
type RebuildOption func(o *rebuildOptions)

type rebuildOptions struct {
	hooks []UniformHook
}

// WithUniformHook registers a hook that is called once per structure after the record has been filled.
//
// Parameters:
//   - hook: the hook to call
//
// Returns:
//   - RebuildOption: option function to apply
func WithUniformHook(hook UniformHook) RebuildOption {
	return func(o *rebuildOptions) {
		o.hooks = append(o.hooks, hook)
	}
}

// Rebuild numbers the structures depth-first, scene by scene, and builds one uniform record per structure.
// Empty scenes take no indices.
//
// Parameters:
//   - scenes: the structures of each scene in scene order
//   - options: variadic list of RebuildOption functions
//
// Returns:
//   - *Table: the new table
func Rebuild(scenes [][]scene.Structure, options ...RebuildOption) *Table {
	opts := &rebuildOptions{}
	for _, opt := range options {
		opt(opts)
	}

	t := &Table{
		sceneStarts: make([]int, len(scenes)),
		sceneSizes:  make([]int, len(scenes)),
	}
	for i, structures := range scenes {
		t.sceneStarts[i] = len(t.entries)
		t.sceneSizes[i] = len(structures)
		for j, s := range structures {
			t.entries = append(t.entries, entry{scene: i, structure: j, s: s})
		}
	}

	t.uniforms = make([]byte, len(t.entries)*UniformStride)
	for flat, e := range t.entries {
		u := buildUniforms(flat, e)
		for _, hook := range opts.hooks {
			hook(flat, e.s, &u)
		}
		u.MarshalTo(t.uniforms[flat*UniformStride:])
	}
	return t
}

// FromSource reads every scene of src and calls Rebuild.
func FromSource(src scene.Source, options ...RebuildOption) *Table {
	scenes := make([][]scene.Structure, src.NumberOfScenes())
	for i := range scenes {
		scenes[i] = src.StructuresForScene(i)
	}
	return Rebuild(scenes, options...)
}

func buildUniforms(flat int, e entry) StructureUniforms {
	style := e.s.Style()
	transform := e.s.Transform()
	model := e.s.ModelMatrix()
	invModel, _ := common.Invert4(model)
	invBox, _ := common.Invert4(transform.Box)

	var flags uint32
	if style.AmbientOcclusion {
		flags |= FlagAmbientOcclusion
	}
	if style.ClipAtoms {
		flags |= FlagClipAtoms
	}
	if style.ClipBonds && e.s.Capabilities().UnitCell {
		flags |= FlagClipBonds
	}
	if style.AtomHDR {
		flags |= FlagAtomHDR
	}
	if style.BondHDR {
		flags |= FlagBondHDR
	}
	if style.ColorAtomsWithBondColor {
		flags |= FlagColorAtomsWithBondColor
	}

	return StructureUniforms{
		SceneID:                int32(e.scene),
		FlatIndex:              int32(flat),
		AtomScale:              style.AtomScale,
		Flags:                  flags,
		AtomSelectionIntensity: style.AtomSelectionIntensity,
		AtomHSV:                style.AtomHSV,
		BondHSV:                style.BondHSV,
		BondScaling:            style.BondScaling,
		BondColorMode:          uint32(style.BondColorMode),
		BondSelectionIntensity: style.BondSelectionIntensity,
		UnitCellScaling:        style.UnitCellScaling,
		UnitCellColor:          style.UnitCellColor,
		ClipPlanes:             style.ClipPlanes,
		Model:                  model,
		InverseModel:           invModel,
		Box:                    transform.Box,
		InverseBox:             invBox,
		SelectionStyle:         uint32(style.Selection),
		SelectionScaling:       style.SelectionScaling,
		StripesDensity:         style.StripesDensity,
		StripesFrequency:       style.StripesFrequency,
		NoiseFrequency:         style.NoiseFrequency,
		NoiseJitter:            style.NoiseJitter,
		BondSelectionScaling:   style.BondSelectionScaling,
		PrimitiveOpacity:       style.PrimitiveOpacity,
		PrimitiveColor:         style.PrimitiveColor,
		PrimitiveBackColor:     style.PrimitiveBackColor,
	}
}

// GlobalUniforms returns the record bound for scene-wide draws such as the bounding box:
// identity transforms, unit scales and the default unit cell color.
//
// Returns:
//   - StructureUniforms: the global record
func GlobalUniforms() StructureUniforms {
	style := scene.DefaultStyle()
	return StructureUniforms{
		SceneID:          -1,
		FlatIndex:        -1,
		AtomScale:        1,
		AtomHSV:          style.AtomHSV,
		BondHSV:          style.BondHSV,
		BondScaling:      1,
		UnitCellScaling:  1,
		UnitCellColor:    style.UnitCellColor,
		Model:            common.Identity4(),
		InverseModel:     common.Identity4(),
		Box:              common.Identity4(),
		InverseBox:       common.Identity4(),
		SelectionScaling: 1,
		PrimitiveOpacity: 1,
	}
}

// Len returns the number of structures across all scenes.
func (t *Table) Len() int {
	return len(t.entries)
}

// NumberOfScenes returns the number of scenes the table was built from, including empty ones.
func (t *Table) NumberOfScenes() int {
	return len(t.sceneStarts)
}

// FlatIndex returns the flat index of structure j in scene i.
//
// Parameters:
//   - sceneIndex: the scene index
//   - structureIndex: the position of the structure inside the scene
//
// Returns:
//   - int: the flat index
//   - bool: false when the pair does not exist
func (t *Table) FlatIndex(sceneIndex, structureIndex int) (int, bool) {
	if sceneIndex < 0 || sceneIndex >= len(t.sceneStarts) {
		return 0, false
	}
	if structureIndex < 0 || structureIndex >= t.sceneSizes[sceneIndex] {
		return 0, false
	}
	return t.sceneStarts[sceneIndex] + structureIndex, true
}

// Location returns the (scene, structure) pair of a flat index.
//
// Parameters:
//   - flat: the flat index
//
// Returns:
//   - int: the scene index
//   - int: the structure index inside the scene
//   - bool: false when flat is out of range
func (t *Table) Location(flat int) (int, int, bool) {
	if flat < 0 || flat >= len(t.entries) {
		return 0, 0, false
	}
	e := t.entries[flat]
	return e.scene, e.structure, true
}

// Structure returns the structure at a flat index, or nil when out of range.
func (t *Table) Structure(flat int) scene.Structure {
	if flat < 0 || flat >= len(t.entries) {
		return nil
	}
	return t.entries[flat].s
}

// SceneStructures returns the flat indices of every structure in scene i.
func (t *Table) SceneStructures(sceneIndex int) []int {
	if sceneIndex < 0 || sceneIndex >= len(t.sceneStarts) {
		return nil
	}
	out := make([]int, t.sceneSizes[sceneIndex])
	for j := range out {
		out[j] = t.sceneStarts[sceneIndex] + j
	}
	return out
}

// UniformOffset returns the dynamic uniform offset of a flat index.
func (t *Table) UniformOffset(flat int) uint64 {
	return uint64(flat) * UniformStride
}

// UniformBytes returns the contiguous uniform array. The slice must not be modified.
func (t *Table) UniformBytes() []byte {
	return t.uniforms
}

// Each calls fn for every structure in flat order.
//
// Parameters:
//   - fn: callback receiving the flat index, scene index, structure index and structure
func (t *Table) Each(fn func(flat, sceneIndex, structureIndex int, s scene.Structure)) {
	for flat, e := range t.entries {
		fn(flat, e.scene, e.structure, e.s)
	}
}

// Signature returns the structure IDs in flat order. Two tables with equal signatures number
// their structures identically.
func (t *Table) Signature() []scene.StructureID {
	out := make([]scene.StructureID, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.s.ID()
	}
	return out
}
