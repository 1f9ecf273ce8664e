// Package render draws detection results and chip grids onto images for
// human review.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

var (
	fontOnce sync.Once
	ttf      *truetype.Font
	fontErr  error
)

// Font returns the parsed Go Regular font used for labels.
func Font() (*truetype.Font, error) {
	fontOnce.Do(func() {
		ttf, fontErr = truetype.Parse(goregular.TTF)
	})
	return ttf, fontErr
}

// Options control annotation style.
type Options struct {
	// LineWidth is the box outline width in pixels.
	LineWidth float64
	// FontSize is the label size in points.
	FontSize float64
	// HideLabels draws boxes only.
	HideLabels bool
}

// DefaultOptions returns 3 pixel outlines and 12 point labels.
func DefaultOptions() Options {
	return Options{LineWidth: 3, FontSize: 12}
}

// ClassColor returns the outline color of a class. Hues are spread by the
// golden angle so that neighbouring class IDs stay distinguishable.
func ClassColor(classID int) color.Color {
	h := math.Mod(float64(classID)*137.508, 360)
	if h < 0 {
		h += 360
	}
	return colorful.Hcl(h, 0.8, 0.55).Clamped()
}

// Detections returns a copy of img with every detection outlined and
// labelled "name confidence".
func Detections(img image.Image, dets []detect.Detection, opts Options) (image.Image, error) {
	dc := gg.NewContextForImage(img)
	off := img.Bounds().Min
	if err := setFont(dc, opts.FontSize); err != nil {
		return nil, err
	}

	for _, d := range dets {
		c := ClassColor(d.ClassID)
		box := d.Box.Translate(float64(-off.X), float64(-off.Y))
		drawBox(dc, box, c, opts.LineWidth)
		if !opts.HideLabels {
			drawLabel(dc, box.XMin, box.YMin, labelText(d), c)
		}
	}
	return dc.Image(), nil
}

func labelText(d detect.Detection) string {
	name := d.Label
	if name == "" {
		name = fmt.Sprintf("%d", d.ClassID)
	}
	return fmt.Sprintf("%s %.2f", name, d.Confidence)
}

func setFont(dc *gg.Context, size float64) error {
	if size <= 0 {
		size = DefaultOptions().FontSize
	}
	f, err := Font()
	if err != nil {
		return fmt.Errorf("failed to load font: %w", err)
	}
	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: size}))
	return nil
}

func drawBox(dc *gg.Context, b geometry.Box, c color.Color, width float64) {
	if width <= 0 {
		width = 1
	}
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(b.XMin, b.YMin, b.Width(), b.Height())
	dc.Stroke()
}

// drawLabel fills a background in c above (x, y), or below it when there is
// no room, and writes text in white.
func drawLabel(dc *gg.Context, x, y float64, text string, c color.Color) {
	w, h := dc.MeasureString(text)
	top := y - h - 4
	if top < 0 {
		top = y
	}
	dc.SetColor(c)
	dc.DrawRectangle(x, top, w+4, h+4)
	dc.Fill()
	dc.SetColor(color.White)
	dc.DrawString(text, x+2, top+h+1)
}

// Save writes img to path. The format follows the file extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
