package scene

// SourceBuilderOption is a functional option for configuring a Source.
// Use the With* functions to create options.
type SourceBuilderOption func(s *source)

// WithScene appends a scene holding the given structures. Repeat the option to add more scenes.
//
// Parameters:
//   - structures: the ordered structures of the scene
//
// Returns:
//   - SourceBuilderOption: option function to apply
func WithScene(structures ...Structure) SourceBuilderOption {
	return func(s *source) {
		s.scenes = append(s.scenes, structures)
	}
}

// WithRenderQuality sets the initial render quality. Default is QualityHigh.
//
// Parameters:
//   - q: the render quality
//
// Returns:
//   - SourceBuilderOption: option function to apply
func WithRenderQuality(q RenderQuality) SourceBuilderOption {
	return func(s *source) {
		s.quality = q
	}
}

// WithBackground sets the background fill. Default is a black solid color.
func WithBackground(b Background) SourceBuilderOption {
	return func(s *source) {
		s.background = b
	}
}

// WithRenderBoundingBox fixes the render bounding box instead of computing it from the structures.
func WithRenderBoundingBox(b Bounds) SourceBuilderOption {
	return func(s *source) {
		s.boundingBox = &b
	}
}
