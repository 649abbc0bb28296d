// Package export converts rendered pictures into the pixel layout of an image quality and encodes them.
package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"golang.org/x/image/tiff"
)

// Picture is an offscreen render at full 16-bit precision together with the quality it was requested at.
type Picture struct {
	Pixels  *image.RGBA64
	Quality scene.ImageQuality
}

// NewPicture wraps rendered pixels.
//
// Parameters:
//   - pixels: the opaque 16-bit pixels read back from the final target
//   - quality: the requested output quality
//
// Returns:
//   - *Picture: the picture
func NewPicture(pixels *image.RGBA64, quality scene.ImageQuality) *Picture {
	return &Picture{Pixels: pixels, Quality: quality}
}

// Width returns the picture width in pixels.
func (p *Picture) Width() int {
	return p.Pixels.Bounds().Dx()
}

// Height returns the picture height in pixels.
func (p *Picture) Height() int {
	return p.Pixels.Bounds().Dy()
}

// Image converts the pixels into the in-memory layout of an image quality:
// *image.RGBA64 for RGB16, *image.RGBA for RGB8 and *image.CMYK for both CMYK qualities.
// CMYK16 keeps its full precision only through Encode.
//
// Parameters:
//   - q: the image quality
//
// Returns:
//   - image.Image: the converted image
//   - error: error if the quality is unknown
func (p *Picture) Image(q scene.ImageQuality) (image.Image, error) {
	switch q {
	case scene.ImageRGB16:
		return p.Pixels, nil
	case scene.ImageRGB8:
		return p.rgb8(), nil
	case scene.ImageCMYK16, scene.ImageCMYK8:
		return p.cmyk8(), nil
	}
	return nil, fmt.Errorf("export: unknown image quality %v", q)
}

func (p *Picture) rgb8() *image.RGBA {
	b := p.Pixels.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := p.Pixels.RGBA64At(x, y)
			out.SetRGBA(x, y, color.RGBA{R: uint8(c.R >> 8), G: uint8(c.G >> 8), B: uint8(c.B >> 8), A: 0xff})
		}
	}
	return out
}

func (p *Picture) cmyk8() *image.CMYK {
	b := p.Pixels.Bounds()
	out := image.NewCMYK(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := p.Pixels.RGBA64At(x, y)
			cc, m, yy, k := color.RGBToCMYK(uint8(c.R>>8), uint8(c.G>>8), uint8(c.B>>8))
			out.SetCMYK(x, y, color.CMYK{C: cc, M: m, Y: yy, K: k})
		}
	}
	return out
}

// cmyk16 converts a 16-bit RGB pixel with the same formula as color.RGBToCMYK.
func cmyk16(c color.RGBA64) [4]uint16 {
	r, g, b := uint32(c.R), uint32(c.G), uint32(c.B)
	w := max(r, g, b)
	if w == 0 {
		return [4]uint16{0, 0, 0, 0xffff}
	}
	return [4]uint16{
		uint16((w - r) * 0xffff / w),
		uint16((w - g) * 0xffff / w),
		uint16((w - b) * 0xffff / w),
		uint16(0xffff - w),
	}
}

// Encode writes a picture in the file format of an image quality: a 16-bit TIFF for RGB16, a PNG for RGB8,
// and raw interleaved CMYK samples for the CMYK qualities (one byte per channel for CMYK8,
// big-endian 16-bit words for CMYK16), rows top to bottom.
//
// Parameters:
//   - w: the destination
//   - p: the picture
//   - q: the image quality
//
// Returns:
//   - error: error if the quality is unknown or the write fails
func Encode(w io.Writer, p *Picture, q scene.ImageQuality) error {
	switch q {
	case scene.ImageRGB16:
		return tiff.Encode(w, p.Pixels, &tiff.Options{Compression: tiff.Deflate})
	case scene.ImageRGB8:
		return png.Encode(w, p.rgb8())
	case scene.ImageCMYK8:
		img := p.cmyk8()
		b := img.Bounds()
		for y := range b.Dy() {
			row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
			if _, err := w.Write(row); err != nil {
				return fmt.Errorf("export: %w", err)
			}
		}
		return nil
	case scene.ImageCMYK16:
		b := p.Pixels.Bounds()
		row := make([]byte, b.Dx()*8)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := cmyk16(p.Pixels.RGBA64At(x, y))
				i := (x - b.Min.X) * 8
				for ch, v := range c {
					binary.BigEndian.PutUint16(row[i+ch*2:], v)
				}
			}
			if _, err := w.Write(row); err != nil {
				return fmt.Errorf("export: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("export: unknown image quality %v", q)
}

// Extension returns the file extension Encode's output is conventionally stored under.
func Extension(q scene.ImageQuality) string {
	switch q {
	case scene.ImageRGB16:
		return ".tiff"
	case scene.ImageRGB8:
		return ".png"
	}
	return ".cmyk"
}

// Save encodes a picture at its own quality into a new file.
//
// Parameters:
//   - p: the picture
//   - filename: the destination path
//
// Returns:
//   - error: error if the file cannot be created or encoding fails
func Save(p *Picture, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	bw := bufio.NewWriter(file)
	if err := Encode(bw, p, p.Quality); err != nil {
		file.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("export: %w", err)
	}
	return file.Close()
}
