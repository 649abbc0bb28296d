package text

import "golang.org/x/image/font"

// AtlasBuilderOption is a functional option for configuring an Atlas.
// Use the With* functions to create options.
type AtlasBuilderOption func(a *atlas)

// WithFace replaces the default 7x13 bitmap face.
//
// Parameters:
//   - face: the font face to rasterise
//
// Returns:
//   - AtlasBuilderOption: option function to apply
func WithFace(face font.Face) AtlasBuilderOption {
	return func(a *atlas) {
		if face != nil {
			a.face = face
		}
	}
}
