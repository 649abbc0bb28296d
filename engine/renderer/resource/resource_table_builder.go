package resource

// TableBuilderOption is a functional option for configuring a Table.
// Use the With* functions to create options.
type TableBuilderOption func(t *Table)

// WithWorkers sets the number of goroutines that encode instance records during Rebuild.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - TableBuilderOption: option function to apply
func WithWorkers(n int) TableBuilderOption {
	return func(t *Table) {
		t.workers = max(n, 1)
	}
}

// WithGlyphLayout sets the layout used to turn annotations into glyph quads.
// Without it the glyph category stays empty.
//
// Parameters:
//   - l: the glyph layout
//
// Returns:
//   - TableBuilderOption: option function to apply
func WithGlyphLayout(l GlyphLayout) TableBuilderOption {
	return func(t *Table) {
		t.glyphs = l
	}
}
