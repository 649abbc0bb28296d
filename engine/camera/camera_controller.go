package camera

import (
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraController orbits the eye around a target on a sphere. It owns the eye and target; the
// camera only reads them. Angles are in radians: azimuth turns around +Y starting from +Z and
// elevation rises above the XZ plane, kept just short of the poles.
type CameraController interface {
	// Position returns the eye in world space.
	Position() mgl32.Vec3

	// Target returns the point the eye looks at and orbits.
	Target() mgl32.Vec3

	// SetTarget moves the orbit centre, keeping radius and angles.
	SetTarget(target mgl32.Vec3)

	// FitBounds centres the orbit on b and sets the radius so b's bounding sphere fits the vertical
	// field of view. Empty bounds leave the controller unchanged.
	//
	// Parameters:
	//   - b: the bounds to frame, usually Source.RenderBoundingBox
	//   - fov: the camera's vertical field of view in radians
	FitBounds(b scene.Bounds, fov float32)

	// Drag orbits by a cursor motion in pixels. Moving right turns the view left around the target.
	//
	// Parameters:
	//   - dx: horizontal motion
	//   - dy: vertical motion
	Drag(dx, dy float32)

	// OrbitLeft, OrbitRight, OrbitUp and OrbitDown step the angles by the orbit sensitivity.
	OrbitLeft()
	OrbitRight()
	OrbitUp()
	OrbitDown()

	// Zoom moves the eye toward the target by delta times the zoom sensitivity, within the radius bounds.
	Zoom(delta float32)

	// PanRight and PanUp slide eye and target together along the view's right and up axes. The step
	// scales with the radius.
	PanRight(delta float32)
	PanUp(delta float32)

	Radius() float32
	SetRadius(radius float32)
	Azimuth() float32
	Elevation() float32

	// SetAngles places the eye at the given azimuth and elevation; elevation is clamped.
	SetAngles(azimuth, elevation float32)
}
