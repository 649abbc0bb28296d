package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// poleMargin keeps the elevation away from ±90 degrees, where the view's right axis degenerates.
const poleMargin = 0.01

// spherical is an eye offset from the target.
type spherical struct {
	radius, azimuth, elevation float32
}

// offset converts s to a vector from the target to the eye.
func (s spherical) offset() mgl32.Vec3 {
	ce, se := math32.Cos(s.elevation), math32.Sin(s.elevation)
	ca, sa := math32.Cos(s.azimuth), math32.Sin(s.azimuth)
	return mgl32.Vec3{s.radius * ce * sa, s.radius * se, s.radius * ce * ca}
}

type cameraControllerImpl struct {
	mu sync.Mutex

	eye, target mgl32.Vec3
	orbit       spherical

	minRadius, maxRadius float32
	speed                Sensitivity
}

var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates an orbit controller 20 units in front of the origin on +Z.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the new controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		orbit:     spherical{radius: 20},
		minRadius: 0.5,
		maxRadius: 5000,
		speed:     DefaultSensitivity(),
	}
	for _, option := range options {
		option(cc)
	}
	cc.orbit.radius = cc.clampRadius(cc.orbit.radius)
	cc.orbit.elevation = clampElevation(cc.orbit.elevation)
	cc.eye = cc.target.Add(cc.orbit.offset())
	return cc
}

func clampElevation(e float32) float32 {
	const limit = math32.Pi/2 - poleMargin
	return common.Clamp(e, -limit, limit)
}

func (cc *cameraControllerImpl) clampRadius(r float32) float32 {
	return common.Clamp(r, cc.minRadius, cc.maxRadius)
}

// update applies fn under the lock and moves the eye back onto the orbit.
func (cc *cameraControllerImpl) update(fn func(o *spherical)) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	fn(&cc.orbit)
	cc.orbit.radius = cc.clampRadius(cc.orbit.radius)
	cc.orbit.elevation = clampElevation(cc.orbit.elevation)
	cc.eye = cc.target.Add(cc.orbit.offset())
}

// read returns a snapshot of the orbit.
func (cc *cameraControllerImpl) read() spherical {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.orbit
}

func (cc *cameraControllerImpl) Position() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.eye
}

func (cc *cameraControllerImpl) Target() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *cameraControllerImpl) SetTarget(target mgl32.Vec3) {
	cc.update(func(*spherical) { cc.target = target })
}

func (cc *cameraControllerImpl) FitBounds(b scene.Bounds, fov float32) {
	if b.Empty() {
		return
	}
	cc.update(func(o *spherical) {
		cc.target = b.Center()
		o.radius = max(b.Radius(), 1e-3) / math32.Sin(fov/2)
	})
}

func (cc *cameraControllerImpl) Drag(dx, dy float32) {
	cc.update(func(o *spherical) {
		o.azimuth -= dx * cc.speed.Drag
		o.elevation += dy * cc.speed.Drag
	})
}

func (cc *cameraControllerImpl) OrbitLeft() {
	cc.update(func(o *spherical) { o.azimuth -= cc.speed.Orbit })
}

func (cc *cameraControllerImpl) OrbitRight() {
	cc.update(func(o *spherical) { o.azimuth += cc.speed.Orbit })
}

func (cc *cameraControllerImpl) OrbitUp() {
	cc.update(func(o *spherical) { o.elevation += cc.speed.Orbit })
}

func (cc *cameraControllerImpl) OrbitDown() {
	cc.update(func(o *spherical) { o.elevation -= cc.speed.Orbit })
}

func (cc *cameraControllerImpl) Zoom(delta float32) {
	cc.update(func(o *spherical) { o.radius -= delta * cc.speed.Zoom })
}

// PanRight and PanUp move along the LookAt basis built from worldUp, so a pan is always parallel
// to the screen.
func (cc *cameraControllerImpl) PanRight(delta float32) {
	cc.pan(delta, func(right, _ mgl32.Vec3) mgl32.Vec3 { return right })
}

func (cc *cameraControllerImpl) PanUp(delta float32) {
	cc.pan(delta, func(_, up mgl32.Vec3) mgl32.Vec3 { return up })
}

func (cc *cameraControllerImpl) pan(delta float32, axis func(right, up mgl32.Vec3) mgl32.Vec3) {
	cc.update(func(o *spherical) {
		back := o.offset()
		if back.Len() < 1e-8 {
			return
		}
		back = back.Normalize()
		right := worldUp.Cross(back).Normalize()
		up := back.Cross(right)
		cc.target = cc.target.Add(axis(right, up).Mul(delta * cc.speed.Pan * o.radius))
	})
}

func (cc *cameraControllerImpl) Radius() float32 {
	return cc.read().radius
}

func (cc *cameraControllerImpl) SetRadius(radius float32) {
	cc.update(func(o *spherical) { o.radius = radius })
}

func (cc *cameraControllerImpl) Azimuth() float32 {
	return cc.read().azimuth
}

func (cc *cameraControllerImpl) Elevation() float32 {
	return cc.read().elevation
}

func (cc *cameraControllerImpl) SetAngles(azimuth, elevation float32) {
	cc.update(func(o *spherical) { o.azimuth, o.elevation = azimuth, elevation })
}
