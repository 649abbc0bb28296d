package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Source is the renderer's view of the application's scene description.
// Scenes are ordered lists of structures; both the scene index and the position of a
// structure inside its scene are part of the contract and drive the flat uniform numbering.
type Source interface {
	// NumberOfScenes returns the number of scenes.
	NumberOfScenes() int

	// StructuresForScene returns the ordered structures of scene i, or nil when i is out of range.
	//
	// Parameters:
	//   - i: the scene index
	//
	// Returns:
	//   - []Structure: the structures in render order
	StructuresForScene(i int) []Structure

	// RenderBoundingBox returns the scene-space box that frames the camera and the ambient occlusion light.
	RenderBoundingBox() Bounds

	// RenderQuality returns the quality the application asks frames to be drawn at.
	RenderQuality() RenderQuality

	// Background returns the background fill.
	Background() Background
}

// EditableSource is a Source whose scenes and settings can be changed at runtime.
// Changes become visible to the renderer on its next Reload.
type EditableSource interface {
	Source

	// AddScene appends a scene and returns its index.
	//
	// Parameters:
	//   - structures: the ordered structures of the new scene
	//
	// Returns:
	//   - int: the index of the new scene
	AddScene(structures ...Structure) int

	// SetScene replaces the structures of scene i. Out of range indices are ignored.
	SetScene(i int, structures ...Structure)

	// SetRenderQuality changes the requested quality.
	SetRenderQuality(q RenderQuality)

	// SetBackground changes the background fill.
	SetBackground(b Background)

	// SetRenderBoundingBox fixes the render box. A zero-volume box restores the computed union of all structures.
	SetRenderBoundingBox(b Bounds)
}

type source struct {
	mu *sync.Mutex

	scenes      [][]Structure
	quality     RenderQuality
	background  Background
	boundingBox *Bounds
}

var _ EditableSource = &source{}

// NewSource creates an in-memory scene source.
//
// Parameters:
//   - options: variadic list of SourceBuilderOption functions
//
// Returns:
//   - EditableSource: the created source
func NewSource(options ...SourceBuilderOption) EditableSource {
	s := &source{
		mu:      &sync.Mutex{},
		quality: QualityHigh,
		background: Background{
			Type:   BackgroundColor,
			Color1: [4]float32{0, 0, 0, 1},
			Color2: [4]float32{0.2, 0.2, 0.3, 1},
		},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *source) NumberOfScenes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scenes)
}

func (s *source) StructuresForScene(i int) []Structure {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.scenes) {
		return nil
	}
	return s.scenes[i]
}

func (s *source) RenderBoundingBox() Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boundingBox != nil {
		return *s.boundingBox
	}

	b := EmptyBounds()
	for _, structures := range s.scenes {
		for _, st := range structures {
			if !st.Visible() {
				continue
			}
			b = b.Union(sceneBounds(st))
		}
	}
	if b.Empty() {
		return Bounds{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	}
	return b
}

// sceneBounds maps a structure's bounding box into scene space with its model matrix.
func sceneBounds(st Structure) Bounds {
	local := st.Transform().BoundingBox
	if local.Empty() {
		return local
	}
	model := st.ModelMatrix()
	out := EmptyBounds()
	for _, c := range local.Corners() {
		p := common.TransformPoint(model, c).Vec3()
		out = out.Union(Bounds{Min: p, Max: p})
	}
	return out
}

func (s *source) RenderQuality() RenderQuality {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quality
}

func (s *source) Background() Background {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.background
}

func (s *source) AddScene(structures ...Structure) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes = append(s.scenes, structures)
	return len(s.scenes) - 1
}

func (s *source) SetScene(i int, structures ...Structure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.scenes) {
		return
	}
	s.scenes[i] = structures
}

func (s *source) SetRenderQuality(q RenderQuality) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quality = q
}

func (s *source) SetBackground(b Background) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.background = b
}

func (s *source) SetRenderBoundingBox(b Bounds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Empty() || b.Extent().Len() == 0 {
		s.boundingBox = nil
		return
	}
	s.boundingBox = &b
}
