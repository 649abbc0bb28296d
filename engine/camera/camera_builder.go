package camera

// CameraBuilderOption configures a camera before its matrices are first computed.
type CameraBuilderOption func(*cameraImpl)

// WithFrustumType selects perspective or orthographic projection.
func WithFrustumType(f FrustumType) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.frustum = f
	}
}

// WithFov sets the vertical field of view in radians. The orthographic frustum uses it too, to size
// the view volume at the target distance so switching projection keeps the structure the same size.
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if fov > 0 {
			c.fov = fov
		}
	}
}

// WithViewport sets the framebuffer size the aspect ratio is derived from.
//
// Parameters:
//   - width: framebuffer width in pixels
//   - height: framebuffer height in pixels
//
// Returns:
//   - CameraBuilderOption: a function that sets the viewport
func WithViewport(width, height int) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.width, c.height = width, height
		if width > 0 && height > 0 {
			c.aspect = float32(width) / float32(height)
		}
	}
}

// WithClipPlanes sets the near and far clipping distances.
//
// Parameters:
//   - near: near plane distance, positive
//   - far: far plane distance, beyond near
//
// Returns:
//   - CameraBuilderOption: a function that sets both planes
func WithClipPlanes(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if near > 0 && far > near {
			c.near, c.far = near, far
		}
	}
}

// WithController attaches the controller the view matrix follows.
func WithController(ctrl CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}
