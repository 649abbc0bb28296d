// Package picking renders an offscreen id buffer and resolves window coordinates to atoms and bonds.
package picking

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
)

// MinTargetSize is the smallest edge length of the id and depth targets.
const MinTargetSize = 16

// Kind is the first component of an id texel.
type Kind uint32

const (
	KindMiss Kind = iota
	KindAtom
	KindInternalBond
	KindExternalBond
)

func (k Kind) String() string {
	switch k {
	case KindMiss:
		return "miss"
	case KindAtom:
		return "atom"
	case KindInternalBond:
		return "internal bond"
	case KindExternalBond:
		return "external bond"
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

// ID identifies the object under a pixel.
// LocalIndex is the atom's index in the structure's atom list, or the bond's index in its bond list.
type ID struct {
	Kind               Kind
	SceneIndex         uint32
	StructureFlatIndex uint32
	LocalIndex         uint32
}

// Backend is the GPU surface the picker drives.
type Backend interface {
	// BeginPicking sizes the RGBA32Uint id target and the Depth32Float depth target, clearing ids to zero and depth to one.
	//
	// Parameters:
	//   - width: target width in pixels
	//   - height: target height in pixels
	//
	// Returns:
	//   - error: error if the targets cannot be created
	BeginPicking(width, height int) error

	// DrawPicking draws one instanced category with a picking program.
	DrawPicking(program gpu.Program, d gpu.Draw)

	// EndPicking submits the picking pass.
	EndPicking() error

	// ReadPickingTexel blocks until the GPU finishes and reads one id texel and its depth.
	//
	// Parameters:
	//   - x: column, 0 at the left edge
	//   - y: row, 0 at the top edge
	//
	// Returns:
	//   - [4]uint32: kind, scene index, flat structure index, local index
	//   - float32: the depth value
	//   - error: error if the readback fails
	ReadPickingTexel(x, y int) ([4]uint32, float32, error)
}

// Picker owns the picking pass. It is not safe for concurrent use; the renderer serializes access.
type Picker struct {
	mu *sync.Mutex

	backend  Backend
	index    *indexer.Table
	res      *resource.Table
	width    int
	height   int
	rendered bool
}

// NewPicker creates a picker.
//
// Parameters:
//   - backend: the GPU backend
//
// Returns:
//   - *Picker: the created picker
func NewPicker(backend Backend) *Picker {
	return &Picker{mu: &sync.Mutex{}, backend: backend}
}

// SetInputs replaces the tables used by RenderIDBuffer and marks the id buffer stale.
func (p *Picker) SetInputs(idx *indexer.Table, res *resource.Table) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = idx
	p.res = res
	p.rendered = false
}

// RenderIDBuffer draws every visible atom and bond into the id target using the same flat-index
// uniform offsets as the main passes.
//
// Parameters:
//   - width: viewport width in pixels
//   - height: viewport height in pixels
//
// Returns:
//   - error: error if the targets cannot be created or submitted
func (p *Picker) RenderIDBuffer(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.backend.BeginPicking(max(MinTargetSize, width), max(MinTargetSize, height)); err != nil {
		return fmt.Errorf("failed to begin picking pass: %w", err)
	}
	if p.index != nil && p.res != nil {
		p.index.Each(func(flat, sceneIndex, _ int, s scene.Structure) {
			if !s.Visible() {
				return
			}
			entry := p.res.Entry(flat)
			draw := func(program gpu.Program, mesh gpu.Mesh, c resource.Category) {
				buf, ok := entry.Buffer(c)
				if !ok {
					return
				}
				p.backend.DrawPicking(program, gpu.Draw{
					Mesh:          mesh,
					Instances:     buf,
					FlatIndex:     flat,
					SceneIndex:    sceneIndex,
					UniformOffset: p.index.UniformOffset(flat),
				})
			}
			if s.Capabilities().Atoms {
				draw(gpu.ProgramPickAtom, gpu.MeshSphere, resource.CategoryAtoms)
			}
			for _, c := range resource.InternalBondCategories {
				draw(gpu.ProgramPickInternalBond, gpu.MeshCylinder, c)
			}
			for _, c := range resource.ExternalBondCategories {
				draw(gpu.ProgramPickExternalBond, gpu.MeshCylinder, c)
			}
		})
	}
	if err := p.backend.EndPicking(); err != nil {
		return fmt.Errorf("failed to submit picking pass: %w", err)
	}

	p.width, p.height = width, height
	p.rendered = true
	return nil
}

func (p *Picker) read(x, y int) ([4]uint32, float32, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.rendered || x < 0 || y < 0 || x >= p.width || y >= p.height {
		return [4]uint32{}, 0, false, nil
	}
	texel, depth, err := p.backend.ReadPickingTexel(x, y)
	if err != nil {
		return [4]uint32{}, 0, false, fmt.Errorf("failed to read picking texel (%d, %d): %w", x, y, err)
	}
	return texel, depth, true, nil
}

// Pick resolves a pixel of the last rendered id buffer.
//
// Parameters:
//   - x: column, 0 at the left edge
//   - y: row, 0 at the top edge
//
// Returns:
//   - *ID: the object under the pixel, or nil on a miss or out of bounds
//   - error: error if the readback fails
func (p *Picker) Pick(x, y int) (*ID, error) {
	id, _, err := p.PickWithDepth(x, y)
	return id, err
}

// PickDepth returns the depth under a pixel when an atom was hit there.
//
// Parameters:
//   - x: column, 0 at the left edge
//   - y: row, 0 at the top edge
//
// Returns:
//   - *float32: the depth, or nil when no atom is under the pixel
//   - error: error if the readback fails
func (p *Picker) PickDepth(x, y int) (*float32, error) {
	_, depth, err := p.PickWithDepth(x, y)
	return depth, err
}

// PickWithDepth reads the id and the depth of one pixel from the same readback. The depth follows
// PickDepth's rule and is nil unless an atom was hit.
func (p *Picker) PickWithDepth(x, y int) (*ID, *float32, error) {
	texel, depth, ok, err := p.read(x, y)
	if err != nil || !ok || Kind(texel[0]) == KindMiss {
		return nil, nil, err
	}
	id := &ID{
		Kind:               Kind(texel[0]),
		SceneIndex:         texel[1],
		StructureFlatIndex: texel[2],
		LocalIndex:         texel[3],
	}
	if id.Kind != KindAtom {
		return id, nil, nil
	}
	return id, &depth, nil
}
