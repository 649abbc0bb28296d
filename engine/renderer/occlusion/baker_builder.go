package occlusion

// BakerBuilderOption is a functional option for configuring a Baker.
// Use the With* functions to create options.
type BakerBuilderOption func(b *Baker)

// WithShadowResolution overrides the requested depth map edge length. Default is ShadowMapResolution.
//
// Parameters:
//   - resolution: depth map width and height in texels
//
// Returns:
//   - BakerBuilderOption: option function to apply
func WithShadowResolution(resolution int) BakerBuilderOption {
	return func(b *Baker) {
		if resolution > 0 {
			b.shadowResolution = resolution
		}
	}
}
