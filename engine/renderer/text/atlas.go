// Package text rasterises a bitmap font into a glyph atlas and lays out annotation labels as glyph quads.
package text

import (
	"image"
	"sync"

	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	firstRune = ' '
	lastRune  = '~'
	columns   = 16
)

// Atlas is a single-channel texture holding one cell per printable ASCII glyph.
type Atlas interface {
	resource.GlyphLayout

	// Image returns the coverage texture. Backends upload it once.
	//
	// Returns:
	//   - *image.Alpha: the atlas texture
	Image() *image.Alpha

	// CellSize returns the pixel size of one glyph cell.
	//
	// Returns:
	//   - int: cell width
	//   - int: cell height
	CellSize() (int, int)

	// Coverage samples the atlas at normalized texture coordinates with nearest filtering.
	//
	// Parameters:
	//   - u: horizontal coordinate in [0, 1]
	//   - v: vertical coordinate in [0, 1]
	//
	// Returns:
	//   - float32: glyph coverage in [0, 1]
	Coverage(u, v float32) float32
}

type glyph struct {
	uv      [4]float32
	advance int
}

type atlas struct {
	mu *sync.Mutex

	face    font.Face
	img     *image.Alpha
	cellW   int
	cellH   int
	ascent  int
	glyphs  map[rune]glyph
	missing glyph
}

var _ Atlas = &atlas{}

// NewAtlas rasterises the face into a new atlas.
//
// Parameters:
//   - options: variadic list of AtlasBuilderOption functions
//
// Returns:
//   - Atlas: the created atlas
func NewAtlas(options ...AtlasBuilderOption) Atlas {
	a := &atlas{
		mu:   &sync.Mutex{},
		face: basicfont.Face7x13,
	}
	for _, opt := range options {
		opt(a)
	}
	a.rasterise()
	return a
}

func (a *atlas) rasterise() {
	metrics := a.face.Metrics()
	a.ascent = metrics.Ascent.Ceil()
	a.cellH = metrics.Height.Ceil()
	if a.cellH < a.ascent+metrics.Descent.Ceil() {
		a.cellH = a.ascent + metrics.Descent.Ceil()
	}
	a.cellW = 1
	for r := firstRune; r <= lastRune; r++ {
		if adv, ok := a.face.GlyphAdvance(r); ok && adv.Ceil() > a.cellW {
			a.cellW = adv.Ceil()
		}
	}

	count := int(lastRune-firstRune) + 1
	rows := (count + columns - 1) / columns
	a.img = image.NewAlpha(image.Rect(0, 0, columns*a.cellW, rows*a.cellH))
	a.glyphs = make(map[rune]glyph, count)

	width, height := float32(a.img.Bounds().Dx()), float32(a.img.Bounds().Dy())
	for i := 0; i < count; i++ {
		r := firstRune + rune(i)
		x0, y0 := (i%columns)*a.cellW, (i/columns)*a.cellH
		dot := fixed.P(x0, y0+a.ascent)
		dr, mask, maskp, adv, ok := a.face.Glyph(dot, r)
		if !ok {
			continue
		}
		draw.DrawMask(a.img, dr, image.Opaque, image.Point{}, mask, maskp, draw.Over)
		a.glyphs[r] = glyph{
			uv: [4]float32{
				float32(x0) / width, float32(y0) / height,
				float32(x0+a.cellW) / width, float32(y0+a.cellH) / height,
			},
			advance: adv.Ceil(),
		}
	}
	a.missing = a.glyphs['?']
}

func (a *atlas) Image() *image.Alpha {
	return a.img
}

func (a *atlas) CellSize() (int, int) {
	return a.cellW, a.cellH
}

func (a *atlas) Coverage(u, v float32) float32 {
	b := a.img.Bounds()
	x := int(u * float32(b.Dx()))
	y := int(v * float32(b.Dy()))
	if x < 0 || y < 0 || x >= b.Dx() || y >= b.Dy() {
		return 0
	}
	return float32(a.img.AlphaAt(x, y).A) / 255
}

// Layout centres the label horizontally on the annotation anchor with the baseline at the anchor.
// Rect holds the pixel offset of each glyph quad from the projected anchor.
func (a *atlas) Layout(an scene.Annotation) []gpu.GlyphInstance {
	if an.Text == "" {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	runes := []rune(an.Text)
	cells := make([]glyph, len(runes))
	total := 0
	for i, r := range runes {
		g, ok := a.glyphs[r]
		if !ok {
			g = a.missing
		}
		cells[i] = g
		total += g.advance
	}

	out := make([]gpu.GlyphInstance, 0, len(runes))
	pen := -total / 2
	for i, g := range cells {
		if runes[i] != ' ' {
			out = append(out, gpu.GlyphInstance{
				Anchor: an.Position,
				Rect:   [4]float32{float32(pen), float32(-a.ascent), float32(a.cellW), float32(a.cellH)},
				UV:     g.uv,
				Color:  an.Color,
			})
		}
		pen += g.advance
	}
	return out
}
