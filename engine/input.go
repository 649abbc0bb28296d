package engine

import "github.com/Carmen-Shannon/oxy-crystal/engine/window"

const (
	// clickSlop is the largest travel in pixels between press and release that still counts as a click.
	clickSlop = 4

	// panScale converts a middle drag in pixels into controller pan units.
	panScale = 0.02
)

// dragState tracks the button held down since the last press. Only one button drags at a time;
// presses of another button while dragging are ignored.
type dragState struct {
	button         window.Button
	pressX, pressY int32
	lastX, lastY   int32
	moved          bool // left the click slop since the press
}

// handlePointer turns window pointer events into camera motion and picks. Left drag orbits,
// middle drag pans, the wheel zooms, and a left press released within clickSlop picks.
func (e *engine) handlePointer(ev window.PointerEvent) {
	d := &e.drag
	switch ev.Action {
	case window.PointerScroll:
		if ctrl := e.renderer.Camera().Controller(); ctrl != nil {
			ctrl.Zoom(ev.Scroll)
		}

	case window.PointerPress:
		if d.button != window.ButtonNone || (ev.Button != window.ButtonLeft && ev.Button != window.ButtonMiddle) {
			return
		}
		*d = dragState{button: ev.Button, pressX: ev.X, pressY: ev.Y, lastX: ev.X, lastY: ev.Y}

	case window.PointerRelease:
		if ev.Button != d.button {
			return
		}
		click := d.button == window.ButtonLeft && !d.moved
		d.button = window.ButtonNone
		if click {
			e.pick(int(ev.X), int(ev.Y))
		}

	case window.PointerMove:
		if d.button == window.ButtonNone {
			return
		}
		dx, dy := ev.X-d.lastX, ev.Y-d.lastY
		if !d.moved {
			px, py := ev.X-d.pressX, ev.Y-d.pressY
			if px*px+py*py <= clickSlop*clickSlop {
				return
			}
			// the motion held back inside the slop is applied at once
			d.moved = true
			dx, dy = px, py
		}
		d.lastX, d.lastY = ev.X, ev.Y

		ctrl := e.renderer.Camera().Controller()
		if ctrl == nil {
			return
		}
		if d.button == window.ButtonLeft {
			ctrl.Drag(float32(dx), float32(dy))
		} else {
			ctrl.PanRight(-float32(dx) * panScale)
			ctrl.PanUp(float32(dy) * panScale)
		}
	}
}
