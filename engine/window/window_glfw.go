package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow is the GLFW side of an engineWindow.
type glfwWindow struct {
	owner  *engineWindow
	handle *glfw.Window
	closed bool
}

var glfwButtons = map[glfw.MouseButton]Button{
	glfw.MouseButtonLeft:   ButtonLeft,
	glfw.MouseButtonMiddle: ButtonMiddle,
	glfw.MouseButtonRight:  ButtonRight,
}

// newPlatformWindow opens a GLFW window without a client API, since wgpu drives the surface, and
// wires its callbacks into w.
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	handle, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("glfw window: %w", err)
	}
	gw := &glfwWindow{owner: w, handle: handle}
	w.platform = gw

	handle.SetKeyCallback(gw.key)
	handle.SetMouseButtonCallback(gw.button)
	handle.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		px, py := gw.toPixels(x, y)
		w.pointer(PointerEvent{Action: PointerMove, X: px, Y: py})
	})
	handle.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		px, py := gw.toPixels(handle.GetCursorPos())
		w.pointer(PointerEvent{Action: PointerScroll, X: px, Y: py, Scroll: float32(yoff)})
	})
	// the framebuffer size, not the window size, is what the surface is configured with
	handle.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width, w.height = width, height
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})
	handle.SetSizeLimits(w.limits.minWidth, w.limits.minHeight, w.limits.maxWidth, w.limits.maxHeight)

	w.width, w.height = handle.GetFramebufferSize()
	return nil
}

// key closes the window on Escape and forwards other presses and repeats.
func (gw *glfwWindow) key(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action == glfw.Release {
		return
	}
	if key == glfw.KeyEscape {
		gw.handle.SetShouldClose(true)
		return
	}
	if gw.owner.onKeyDown != nil {
		gw.owner.onKeyDown(uint32(key))
	}
}

func (gw *glfwWindow) button(_ *glfw.Window, b glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	button, ok := glfwButtons[b]
	if !ok || action == glfw.Repeat {
		return
	}
	ev := PointerEvent{Action: PointerPress, Button: button}
	if action == glfw.Release {
		ev.Action = PointerRelease
	}
	ev.X, ev.Y = gw.toPixels(gw.handle.GetCursorPos())
	gw.owner.pointer(ev)
}

// toPixels scales a cursor position from screen coordinates to framebuffer pixels.
func (gw *glfwWindow) toPixels(x, y float64) (int32, int32) {
	ww, wh := gw.handle.GetSize()
	if ww <= 0 || wh <= 0 {
		return int32(x), int32(y)
	}
	return int32(x * float64(gw.owner.width) / float64(ww)), int32(y * float64(gw.owner.height) / float64(wh))
}

func (gw *glfwWindow) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(gw.handle)
}

func (gw *glfwWindow) isRunning() bool {
	return !gw.closed && !gw.handle.ShouldClose()
}

func (gw *glfwWindow) poll() {
	glfw.PollEvents()
}

func (gw *glfwWindow) destroy() {
	gw.closed = true
	gw.handle.Destroy()
	glfw.Terminate()
}
