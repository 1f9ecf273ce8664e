// Package blob implements a reference detector that reports dark connected
// regions. It needs no model and is deterministic, which makes it useful for
// local runs and for exercising the pipeline end to end.
package blob

import (
	"context"
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"

	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

// ClassDark is the class ID of every blob detection.
const ClassDark = 0

// Label is the label of every blob detection.
const Label = "blob"

// Options configure a Detector.
type Options struct {
	// Threshold is the luminance (0-255) below which a pixel is dark.
	Threshold uint8
	// MinArea drops components with fewer pixels.
	MinArea int
	// BlurRadius smooths the chip before thresholding when > 0.
	BlurRadius float64
}

// DefaultOptions returns a threshold of 64 and a minimum area of 16 pixels.
func DefaultOptions() Options {
	return Options{Threshold: 64, MinArea: 16}
}

// Detector finds dark 4-connected components.
type Detector struct {
	opts Options
}

// New creates a blob detector.
func New(opts Options) *Detector {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultOptions().Threshold
	}
	return &Detector{opts: opts}
}

// Detect returns one detection per dark component. Confidence grows with the
// contrast between the component and the threshold: a black component scores
// 1 and one just under the threshold scores close to 0.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detect.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := img
	if d.opts.BlurRadius > 0 {
		src = blur.Gaussian(src, d.opts.BlurRadius)
	}
	gray := effect.Grayscale(src)
	mask := segment.Threshold(gray, d.opts.Threshold)

	b := mask.Bounds()
	gb := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	seen := make([]bool, w*h)
	queue := make([]image.Point, 0, 64)

	var out []detect.Raw
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if seen[idx] {
				continue
			}
			seen[idx] = true
			if !dark(mask, b, x, y) {
				continue
			}

			x0, y0, x1, y1 := x, y, x, y
			var area, lumSum int
			queue = append(queue[:0], image.Pt(x, y))
			for len(queue) > 0 {
				p := queue[len(queue)-1]
				queue = queue[:len(queue)-1]

				area++
				lumSum += int(gray.RGBAAt(p.X+gb.Min.X, p.Y+gb.Min.Y).R)
				x0, y0 = min(x0, p.X), min(y0, p.Y)
				x1, y1 = max(x1, p.X), max(y1, p.Y)

				for _, n := range [4]image.Point{{p.X, p.Y - 1}, {p.X, p.Y + 1}, {p.X - 1, p.Y}, {p.X + 1, p.Y}} {
					if n.X < 0 || n.Y < 0 || n.X >= w || n.Y >= h {
						continue
					}
					ni := n.Y*w + n.X
					if seen[ni] {
						continue
					}
					seen[ni] = true
					if dark(mask, b, n.X, n.Y) {
						queue = append(queue, n)
					}
				}
			}

			if area < d.opts.MinArea {
				continue
			}
			mean := float64(lumSum) / float64(area)
			out = append(out, detect.Raw{
				ClassID:    ClassDark,
				Label:      Label,
				Confidence: 1 - mean/float64(d.opts.Threshold),
				Box:        geometry.NewBox(float64(x0), float64(y0), float64(x1+1), float64(y1+1)),
			})
		}
	}
	return out, nil
}

func dark(mask *image.Gray, b image.Rectangle, x, y int) bool {
	return mask.GrayAt(x+b.Min.X, y+b.Min.Y).Y == 0
}
