package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// FrustumType selects the projection of a camera.
type FrustumType int

const (
	FrustumPerspective FrustumType = iota
	FrustumOrthographic
)

func (f FrustumType) String() string {
	if f == FrustumOrthographic {
		return "orthographic"
	}
	return "perspective"
}

// worldUp is the up vector of every view; the controller keeps the elevation short of the poles.
var worldUp = mgl32.Vec3{0, 1, 0}

type cameraImpl struct {
	mu sync.Mutex

	frustum       FrustumType
	fov           float32
	aspect        float32
	near, far     float32
	width, height int

	view, projection, viewProjection [16]float32

	controller CameraController
}

// Camera turns a controller's eye and target into the view and projection matrices the frame
// uniforms carry. All methods are safe for concurrent use.
type Camera interface {
	// FrustumType reports the current projection.
	FrustumType() FrustumType

	// SetFrustumType switches between perspective and orthographic projection.
	SetFrustumType(f FrustumType)

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns width / height of the viewport.
	Aspect() float32

	// ViewportSize returns the framebuffer size the projection was built for.
	//
	// Returns:
	//   - int: width in pixels
	//   - int: height in pixels
	ViewportSize() (int, int)

	// ViewMatrix returns the column-major world-to-view matrix. Structures carry their own model
	// matrices, so this is also the model-view matrix of an untransformed structure.
	ViewMatrix() [16]float32

	// ModelViewMatrix is ViewMatrix under the name the frame uniforms use.
	ModelViewMatrix() [16]float32

	// ProjectionMatrix returns the column-major projection matrix.
	ProjectionMatrix() [16]float32

	// ViewProjectionMatrix returns ProjectionMatrix times ViewMatrix.
	ViewProjectionMatrix() [16]float32

	// Controller returns the attached controller, or nil.
	Controller() CameraController

	// Update recomputes the matrices from the controller. The renderer calls it once per frame.
	Update()

	// UpdateForWindowResize rebuilds the projection for a new framebuffer size. Zero sizes keep
	// the previous aspect ratio.
	//
	// Parameters:
	//   - width: framebuffer width in pixels
	//   - height: framebuffer height in pixels
	UpdateForWindowResize(width, height int)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a perspective camera with a 45 degree field of view.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		fov:    mgl32.DegToRad(45),
		aspect: 1,
		near:   0.1,
		far:    1000,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) FrustumType() FrustumType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustum
}

func (c *cameraImpl) SetFrustumType(f FrustumType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frustum = f
	c.updateMatrices()
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) ViewportSize() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *cameraImpl) ModelViewMatrix() [16]float32 {
	return c.ViewMatrix()
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjection
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices()
}

func (c *cameraImpl) UpdateForWindowResize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = width, height
	if width > 0 && height > 0 {
		c.aspect = float32(width) / float32(height)
	}
	c.updateMatrices()
}

// updateMatrices rebuilds every matrix. Without a controller the view stays at identity and the
// target distance is 1. The far plane grows with the target distance so a fitted structure is
// never clipped. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.view = common.Identity4()
	distance := float32(1)
	if c.controller != nil {
		eye, target := c.controller.Position(), c.controller.Target()
		c.view = common.LookAt(eye, target, worldUp)
		distance = max(eye.Sub(target).Len(), 1e-3)
	}
	far := max(c.far, 4*distance)

	if c.frustum == FrustumOrthographic {
		// same cross-section as the perspective frustum at the target
		halfH := distance * math32.Tan(c.fov/2)
		halfW := halfH * c.aspect
		c.projection = common.Ortho(-halfW, halfW, -halfH, halfH, c.near, far)
	} else {
		c.projection = common.Perspective(c.fov, c.aspect, c.near, far)
	}
	c.viewProjection = common.Mul4(c.projection, c.view)
}
