package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerStartsOnPositiveZ(t *testing.T) {
	cc := NewCameraController(WithRadius(10))
	assert.InDeltaSlice(t, []float32{0, 0, 10}, cc.Position()[:], 1e-5)
	assert.Equal(t, mgl32.Vec3{}, cc.Target())
}

func TestFitBoundsCentresOnBox(t *testing.T) {
	cc := NewCameraController()
	b := scene.Bounds{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{4, 4, 4}}
	cc.FitBounds(b, mgl32.DegToRad(45))

	assert.Equal(t, mgl32.Vec3{2, 2, 2}, cc.Target())
	assert.Greater(t, cc.Radius(), b.Radius())

	before := cc.Position()
	cc.FitBounds(scene.EmptyBounds(), 1)
	assert.Equal(t, before, cc.Position(), "empty bounds leave the camera unchanged")
}

func TestDragClampsElevation(t *testing.T) {
	cc := NewCameraController(WithSensitivity(Sensitivity{Drag: 1}))
	cc.Drag(0, 100)
	assert.InDelta(t, mgl32.DegToRad(90)-0.01, cc.Elevation(), 1e-5)
	cc.Drag(0.5, 0)
	assert.InDelta(t, -0.5, cc.Azimuth(), 1e-6)
}

func TestPanKeepsOrbitRelationship(t *testing.T) {
	cc := NewCameraController(WithRadius(10))
	offset := cc.Position().Sub(cc.Target())
	cc.PanRight(1)
	cc.PanUp(-1)
	assert.InDeltaSlice(t, offset[:], cc.Position().Sub(cc.Target())[:], 1e-4)
	assert.NotEqual(t, mgl32.Vec3{}, cc.Target())
}

func TestCameraProjectsTargetToCentre(t *testing.T) {
	for _, f := range []FrustumType{FrustumPerspective, FrustumOrthographic} {
		cam := NewCamera(
			WithFrustumType(f),
			WithViewport(800, 400),
			WithController(NewCameraController(WithTarget(mgl32.Vec3{1, 2, 3}))),
		)
		assert.Equal(t, float32(2), cam.Aspect())
		assert.Equal(t, cam.ViewMatrix(), cam.ModelViewMatrix())

		clip := common.TransformPoint(cam.ViewProjectionMatrix(), mgl32.Vec3{1, 2, 3})
		require.NotZero(t, clip.W(), f.String())
		assert.InDelta(t, 0, clip.X()/clip.W(), 1e-5, f.String())
		assert.InDelta(t, 0, clip.Y()/clip.W(), 1e-5, f.String())
		depth := clip.Z() / clip.W()
		assert.True(t, depth > 0 && depth < 1, "%s depth %v", f, depth)
	}
}

func TestUpdateForWindowResize(t *testing.T) {
	cam := NewCamera()
	before := cam.ProjectionMatrix()
	cam.UpdateForWindowResize(1920, 1080)
	w, h := cam.ViewportSize()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
	assert.InDelta(t, 1920.0/1080.0, cam.Aspect(), 1e-6)
	assert.NotEqual(t, before, cam.ProjectionMatrix())

	cam.UpdateForWindowResize(0, 0)
	assert.InDelta(t, 1920.0/1080.0, cam.Aspect(), 1e-6, "zero sizes keep the last aspect")
}

func TestFarPlaneFollowsRadius(t *testing.T) {
	cam := NewCamera(WithController(NewCameraController(WithRadius(3000))))
	clip := common.TransformPoint(cam.ViewProjectionMatrix(), mgl32.Vec3{})
	depth := clip.Z() / clip.W()
	assert.True(t, depth > 0 && depth < 1, "depth %v", depth)
}
