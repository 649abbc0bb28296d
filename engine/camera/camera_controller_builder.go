package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraControllerOption configures a controller before its first position is computed.
type CameraControllerOption func(*cameraControllerImpl)

// Sensitivity scales the controller's inputs.
type Sensitivity struct {
	Orbit float32 // radians per OrbitLeft/Right/Up/Down call
	Drag  float32 // radians per dragged pixel
	Zoom  float32 // radius change per scroll step
	Pan   float32 // fraction of the radius per pan unit, so panning feels the same at any zoom
}

// DefaultSensitivity returns the sensitivity of a new controller.
func DefaultSensitivity() Sensitivity {
	return Sensitivity{Orbit: 0.03, Drag: 0.005, Zoom: 1, Pan: 0.05}
}

// WithRadius sets the starting distance from the target.
func WithRadius(radius float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.orbit.radius = radius
	}
}

// WithAngles sets the starting azimuth around +Y, measured from +Z, and the elevation above the XZ plane.
//
// Parameters:
//   - azimuth: radians
//   - elevation: radians, clamped just short of the poles
//
// Returns:
//   - CameraControllerOption: functional option to set the angles
func WithAngles(azimuth, elevation float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.orbit.azimuth, cc.orbit.elevation = azimuth, elevation
	}
}

// WithTarget sets the point the camera orbits and looks at.
func WithTarget(target mgl32.Vec3) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.target = target
	}
}

// WithRadiusBounds limits how close and how far zooming and FitBounds may place the camera.
//
// Parameters:
//   - near: smallest radius
//   - far: largest radius
//
// Returns:
//   - CameraControllerOption: functional option to set radius bounds
func WithRadiusBounds(near, far float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.minRadius, cc.maxRadius = near, far
	}
}

// WithSensitivity replaces the input scales. Zero fields keep their defaults.
func WithSensitivity(s Sensitivity) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		d := &cc.speed
		for _, f := range []struct {
			dst *float32
			v   float32
		}{
			{&d.Orbit, s.Orbit}, {&d.Drag, s.Drag}, {&d.Zoom, s.Zoom}, {&d.Pan, s.Pan},
		} {
			if f.v != 0 {
				*f.dst = f.v
			}
		}
	}
}
