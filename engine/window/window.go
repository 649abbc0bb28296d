// Package window opens the viewer's GLFW window and turns its input into key and pointer events.
package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// PointerAction is what happened to the pointer.
type PointerAction int

const (
	PointerPress PointerAction = iota
	PointerRelease
	PointerMove
	PointerScroll
)

// Button is a mouse button. Move and scroll events carry ButtonNone.
type Button int

const (
	ButtonNone Button = iota
	ButtonLeft
	ButtonMiddle
	ButtonRight
)

// PointerEvent is one mouse event. X and Y are framebuffer pixels from the top left corner, the
// coordinates picking reads, which differ from screen coordinates on high-DPI displays.
type PointerEvent struct {
	Action PointerAction
	Button Button
	X, Y   int32

	// Scroll is the vertical wheel offset of scroll events; positive scrolls away from the user.
	Scroll float32
}

// Window is a desktop window a wgpu surface can be created on.
type Window interface {
	// SetUpdateCallback sets the function called once per message loop iteration on the loop's thread.
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called with the new framebuffer size after a resize.
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the function called for key presses and repeats.
	//
	// Parameters:
	//   - callback: receives the GLFW key code, see the common.Key constants
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetPointerCallback sets the function called for every mouse event.
	SetPointerCallback(callback func(PointerEvent))

	// SurfaceDescriptor describes the native window for wgpu surface creation.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform descriptor, or nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	IsRunning() bool

	// Close destroys the window. It must be called on the thread that created it.
	//
	// Returns:
	//   - error: error if the window was already closed
	Close() error

	// ProcessMessages polls events until the window closes, calling the update callback after each poll.
	ProcessMessages()

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

// sizeLimits bounds interactive resizing.
type sizeLimits struct {
	minWidth, minHeight int
	maxWidth, maxHeight int
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title         string
	width, height int // framebuffer pixels
	limits        sizeLimits

	platform *glfwWindow

	onUpdate  func()
	onResize  func(width, height int)
	onKeyDown func(keyCode uint32)
	onPointer func(PointerEvent)
}

var _ Window = &engineWindow{}

// NewWindow opens a window on the calling goroutine, which it locks to its OS thread. ProcessMessages
// and Close must run on the same goroutine.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
func NewWindow(options ...WindowBuilderOption) Window {
	w := &engineWindow{
		title:  "oxy-crystal",
		width:  1280,
		height: 720,
		limits: sizeLimits{minWidth: 320, minHeight: 240, maxWidth: 7680, maxHeight: 4320},
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("window: %v", err))
	}
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetPointerCallback(callback func(PointerEvent)) {
	w.onPointer = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.platform == nil {
		return nil
	}
	return w.platform.surfaceDescriptor()
}

func (w *engineWindow) IsRunning() bool {
	return w.platform != nil && w.platform.isRunning()
}

func (w *engineWindow) Close() error {
	if w.platform == nil {
		return fmt.Errorf("window is already closed")
	}
	w.platform.destroy()
	w.platform = nil
	return nil
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		w.platform.poll()
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

// pointer forwards an event to the pointer callback.
func (w *engineWindow) pointer(ev PointerEvent) {
	if w.onPointer != nil {
		w.onPointer(ev)
	}
}
