package common

// Key codes consumed by the viewer. Values match GLFW key codes, which use ASCII for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyA   = 65 // toggle ambient occlusion
	KeyB   = 66 // cycle background type
	KeyF   = 70 // toggle frame statistics
	KeyI   = 73 // invalidate ambient occlusion
	KeyO   = 79 // toggle orthographic projection
	KeyP   = 80 // export picture
	KeyR   = 82 // reset camera
	KeyEsc = 256

	KeyRight = 262 // orbit right
	KeyLeft  = 263 // orbit left
	KeyDown  = 264 // orbit down
	KeyUp    = 265 // orbit up

	Key1 = 49 // low quality
	Key2 = 50 // medium quality
	Key3 = 51 // high quality
	Key4 = 52 // picture quality
)
