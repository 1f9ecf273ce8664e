package chipper

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Chip is one tile of a planned image.
type Chip struct {
	// Index is the row-major position of the chip in its Tiles.
	Index int
	// Row and Col locate the chip in the grid.
	Row int
	Col int
	// Origin is the top-left pixel of the chip in the downsampled frame.
	Origin image.Point
	// Scale is the downsample factor applied before cropping (>= 1).
	Scale int
	// Size is the chip width and height in pixels.
	Size image.Point
	// Pixels is the cropped chip image with bounds starting at (0,0).
	// It is nil for chips obtained from Tiles.Chip.
	Pixels image.Image

	sourceSize image.Point
}

// Rect returns the chip rectangle in the downsampled frame.
func (c Chip) Rect() image.Rectangle {
	return image.Rectangle{Min: c.Origin, Max: c.Origin.Add(c.Size)}
}

// SourceRect returns the chip rectangle reprojected into source pixel
// coordinates and clamped to the source bounds.
func (c Chip) SourceRect() image.Rectangle {
	r := image.Rectangle{
		Min: c.Origin.Mul(c.Scale),
		Max: c.Origin.Add(c.Size).Mul(c.Scale),
	}
	return r.Intersect(image.Rectangle{Max: c.sourceSize})
}

// String identifies the chip by index and origin.
func (c Chip) String() string {
	return fmt.Sprintf("chip %d at (%d,%d)", c.Index, c.Origin.X, c.Origin.Y)
}

// Tiles is the planned chip grid for one image. Pixels are cropped only when
// a chip is requested through At or Each. Tiles is safe for concurrent use
// because it never mutates after Plan returns.
type Tiles struct {
	scaled     image.Image
	scale      int
	rects      []image.Rectangle
	cols       int
	sourceSize image.Point
}

// Len returns the number of chips.
func (t *Tiles) Len() int {
	return len(t.rects)
}

// Scale returns the downsample factor shared by every chip.
func (t *Tiles) Scale() int {
	return t.scale
}

// Columns returns the number of chips per grid row.
func (t *Tiles) Columns() int {
	return t.cols
}

// Rows returns the number of grid rows.
func (t *Tiles) Rows() int {
	if t.cols == 0 {
		return 0
	}
	return len(t.rects) / t.cols
}

// SourceSize returns the width and height of the source image.
func (t *Tiles) SourceSize() image.Point {
	return t.sourceSize
}

// ScaledSize returns the width and height of the downsampled image.
func (t *Tiles) ScaledSize() image.Point {
	b := t.scaled.Bounds()
	return image.Pt(b.Dx(), b.Dy())
}

// Chip returns chip i without cropping its pixels.
func (t *Tiles) Chip(i int) Chip {
	r := t.rects[i]
	return Chip{
		Index:      i,
		Row:        i / t.cols,
		Col:        i % t.cols,
		Origin:     r.Min,
		Scale:      t.scale,
		Size:       r.Size(),
		sourceSize: t.sourceSize,
	}
}

// At returns chip i with its pixels cropped from the (downsampled) image.
func (t *Tiles) At(i int) Chip {
	c := t.Chip(i)
	off := t.scaled.Bounds().Min
	c.Pixels = imaging.Crop(t.scaled, c.Rect().Add(off))
	return c
}

// Chips returns every chip in row-major order without pixels.
func (t *Tiles) Chips() []Chip {
	out := make([]Chip, t.Len())
	for i := range out {
		out[i] = t.Chip(i)
	}
	return out
}

// Each calls fn for every chip in row-major order, cropping pixels one chip
// at a time. Iteration stops at the first error, which is returned.
func (t *Tiles) Each(fn func(Chip) error) error {
	for i := range t.rects {
		if err := fn(t.At(i)); err != nil {
			return err
		}
	}
	return nil
}
