package window

// WindowBuilderOption configures a window before it opens.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the title bar text.
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithSize sets the requested client size in screen coordinates. The framebuffer, which Width and
// Height report once the window is open, can be larger on high-DPI displays.
//
// Parameters:
//   - width: requested width, ignored unless positive
//   - height: requested height, ignored unless positive
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		if width > 0 {
			w.width = width
		}
		if height > 0 {
			w.height = height
		}
	}
}

// WithSizeLimits bounds interactive resizing. A zero bound keeps the default.
//
// Parameters:
//   - minWidth, minHeight: the smallest client size
//   - maxWidth, maxHeight: the largest client size
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSizeLimits(minWidth, minHeight, maxWidth, maxHeight int) WindowBuilderOption {
	return func(w *engineWindow) {
		for _, l := range []struct {
			dst *int
			v   int
		}{
			{&w.limits.minWidth, minWidth},
			{&w.limits.minHeight, minHeight},
			{&w.limits.maxWidth, maxWidth},
			{&w.limits.maxHeight, maxHeight},
		} {
			if l.v > 0 {
				*l.dst = l.v
			}
		}
	}
}
