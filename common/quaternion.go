package common

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// RotationAroundPoint builds the matrix that rotates by q about center and then
// translates by offset: T(center+offset) * R(q) * T(-center).
//
// Parameters:
//   - q: the orientation
//   - center: the fixed point of the rotation
//   - offset: translation applied after the rotation
//
// Returns:
//   - [16]float32: the column-major transform
func RotationAroundPoint(q mgl32.Quat, center, offset mgl32.Vec3) [16]float32 {
	r := [16]float32(q.Normalize().Mat4())
	return Mul4(Translate4(center.Add(offset)), Mul4(r, Translate4(center.Mul(-1))))
}

// SmallRandomQuaternion draws a rotation about a uniformly distributed axis with an
// angle in [0, angleRange). All randomness comes from rng so a fixed seed reproduces the sequence.
//
// Parameters:
//   - rng: the random source
//   - angleRange: maximum rotation angle in radians
//
// Returns:
//   - mgl32.Quat: the unit quaternion
func SmallRandomQuaternion(rng *rand.Rand, angleRange float64) mgl32.Quat {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	s := math.Sqrt(1 - z*z)
	axis := mgl32.Vec3{float32(s * math.Cos(phi)), float32(s * math.Sin(phi)), float32(z)}
	angle := rng.Float64() * angleRange
	return mgl32.QuatRotate(float32(angle), axis)
}
