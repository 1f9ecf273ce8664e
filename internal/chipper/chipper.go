package chipper

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Layout selects how an axis longer than MaxSide is split into tiles.
type Layout int

const (
	// LayoutFixed uses MaxSide-long tiles and clips the last one.
	LayoutFixed Layout = iota
	// LayoutBalanced uses the fewest equal-length tiles that fit in MaxSide.
	LayoutBalanced
)

// String returns the layout name used in configuration.
func (l Layout) String() string {
	switch l {
	case LayoutFixed:
		return "fixed"
	case LayoutBalanced:
		return "balanced"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// ParseLayout converts a configuration name into a Layout.
func ParseLayout(name string) (Layout, error) {
	switch name {
	case "", "fixed":
		return LayoutFixed, nil
	case "balanced":
		return LayoutBalanced, nil
	default:
		return LayoutFixed, fmt.Errorf("unknown chip layout: %s", name)
	}
}

// Options configures a Chipper.
type Options struct {
	// MaxSide is the maximum chip width and height in pixels.
	MaxSide int
	// Downsample is the integer reduction applied before tiling (>= 1).
	Downsample int
	// Overlap is the number of pixels adjacent chips share (>= 0, < MaxSide).
	Overlap int
	// Layout selects the tile splitting strategy.
	Layout Layout
}

// InvalidGeometryError reports chip parameters or an image that cannot be
// tiled.
type InvalidGeometryError struct {
	Param  string
	Value  int
	Reason string
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid chip geometry: %s=%d: %s", e.Param, e.Value, e.Reason)
}

// Chipper plans chip grids for images.
type Chipper struct {
	opts Options
}

// New validates opts and returns a Chipper.
func New(opts Options) (*Chipper, error) {
	if opts.MaxSide <= 0 {
		return nil, &InvalidGeometryError{Param: "max_chip_side", Value: opts.MaxSide, Reason: "must be positive"}
	}
	if opts.Downsample <= 0 {
		return nil, &InvalidGeometryError{Param: "downsample_factor", Value: opts.Downsample, Reason: "must be positive"}
	}
	if opts.Overlap < 0 {
		return nil, &InvalidGeometryError{Param: "overlap_margin", Value: opts.Overlap, Reason: "must not be negative"}
	}
	if opts.Overlap >= opts.MaxSide {
		return nil, &InvalidGeometryError{Param: "overlap_margin", Value: opts.Overlap, Reason: "must be smaller than max_chip_side"}
	}
	if opts.Layout != LayoutFixed && opts.Layout != LayoutBalanced {
		return nil, &InvalidGeometryError{Param: "layout", Value: int(opts.Layout), Reason: "unknown layout"}
	}
	return &Chipper{opts: opts}, nil
}

// Options returns the configuration the Chipper was built with.
func (c *Chipper) Options() Options {
	return c.opts
}

// Plan downsamples img if required and computes its chip grid.
func (c *Chipper) Plan(img image.Image) (*Tiles, error) {
	if img == nil {
		return nil, &InvalidGeometryError{Param: "image_area", Value: 0, Reason: "image is nil"}
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, &InvalidGeometryError{Param: "image_area", Value: bounds.Dx() * bounds.Dy(), Reason: "image has zero area"}
	}

	scaled := img
	if c.opts.Downsample > 1 {
		scaled = Downsample(img, c.opts.Downsample)
	}
	sb := scaled.Bounds()

	xs := c.spans(sb.Dx())
	ys := c.spans(sb.Dy())

	rects := make([]image.Rectangle, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			rects = append(rects, image.Rect(x[0], y[0], x[1], y[1]))
		}
	}

	return &Tiles{
		scaled:     scaled,
		scale:      c.opts.Downsample,
		rects:      rects,
		cols:       len(xs),
		sourceSize: image.Pt(bounds.Dx(), bounds.Dy()),
	}, nil
}

// spans splits an axis of the given length into [start, end) pairs.
func (c *Chipper) spans(length int) [][2]int {
	side := c.opts.MaxSide
	if length <= side {
		return [][2]int{{0, length}}
	}

	tile := side
	if c.opts.Layout == LayoutBalanced {
		ov := c.opts.Overlap
		n := ceilDiv(length-ov, side-ov)
		tile = ceilDiv(length+(n-1)*ov, n)
	}
	stride := tile - c.opts.Overlap

	out := make([][2]int, 0, ceilDiv(length, stride))
	for start := 0; start < length; start += stride {
		end := start + tile
		if end > length {
			end = length
		}
		out = append(out, [2]int{start, end})
		if end == length {
			break
		}
	}
	return out
}

// Downsample reduces img by the integer factor using area averaging. The
// result is ceil(w/factor) x ceil(h/factor) with its origin at (0,0). Output
// pixel (x, y) averages exactly the factor x factor source block starting at
// (x*factor, y*factor), clipped at the right and bottom edges, so a
// downsampled coordinate times factor is always its source coordinate.
func Downsample(img image.Image, factor int) *image.NRGBA {
	src := imaging.Clone(img)
	if factor <= 1 {
		return src
	}
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	w := ceilDiv(sw, factor)
	h := ceilDiv(sh, factor)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		y0, y1 := y*factor, min((y+1)*factor, sh)
		for x := 0; x < w; x++ {
			x0, x1 := x*factor, min((x+1)*factor, sw)

			// Colors are weighted by alpha so transparent pixels do not
			// darken the block.
			var r, g, b, a, n uint64
			for sy := y0; sy < y1; sy++ {
				i := sy*src.Stride + x0*4
				for sx := x0; sx < x1; sx++ {
					pa := uint64(src.Pix[i+3])
					r += uint64(src.Pix[i]) * pa
					g += uint64(src.Pix[i+1]) * pa
					b += uint64(src.Pix[i+2]) * pa
					a += pa
					n++
					i += 4
				}
			}

			j := y*dst.Stride + x*4
			if a > 0 {
				dst.Pix[j] = uint8((r + a/2) / a)
				dst.Pix[j+1] = uint8((g + a/2) / a)
				dst.Pix[j+2] = uint8((b + a/2) / a)
			}
			dst.Pix[j+3] = uint8((a + n/2) / n)
		}
	}
	return dst
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
