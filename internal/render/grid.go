package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/chipdetect-mcp/internal/chipper"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

// DefaultGridColor is semi-transparent red.
const DefaultGridColor = "#FF000080"

// GridOptions control the chip grid overlay.
type GridOptions struct {
	// Color is a "#RRGGBB" or "#RRGGBBAA" hex string.
	Color string
	// ShowIndex labels every chip with its index.
	ShowIndex bool
	// Skipped chips are filled with a translucent tint.
	Skipped []int
}

// ChipGrid returns a copy of img with the source rectangle of every chip
// outlined. Overlapping chips show as doubled lines.
func ChipGrid(img image.Image, chips []chipper.Chip, opts GridOptions) (image.Image, error) {
	c, err := parseHexColor(opts.Color)
	if err != nil {
		c, _ = parseHexColor(DefaultGridColor)
	}

	dc := gg.NewContextForImage(img)
	off := img.Bounds().Min
	if err := setFont(dc, 11); err != nil {
		return nil, err
	}

	skipped := make(map[int]bool, len(opts.Skipped))
	for _, i := range opts.Skipped {
		skipped[i] = true
	}

	for _, chip := range chips {
		r := geometry.BoxFromRect(chip.SourceRect()).Translate(float64(-off.X), float64(-off.Y))
		if skipped[chip.Index] {
			dc.SetColor(color.NRGBA{0, 0, 0, 96})
			dc.DrawRectangle(r.XMin, r.YMin, r.Width(), r.Height())
			dc.Fill()
		}
		drawBox(dc, r, c, 1)
		if opts.ShowIndex {
			drawLabel(dc, r.XMin+1, r.YMin+1, fmt.Sprintf("%d", chip.Index), color.NRGBA{0, 0, 0, 180})
		}
	}
	return dc.Image(), nil
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080".
func parseHexColor(hex string) (color.Color, error) {
	if len(hex) == 0 {
		return nil, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}

	switch len(hex) {
	case 7:
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, err
		}
		return c.Clamped(), nil
	case 9:
		c, err := colorful.Hex(hex[:7])
		if err != nil {
			return nil, err
		}
		var a uint8
		if _, err := fmt.Sscanf(hex[7:], "%02x", &a); err != nil {
			return nil, fmt.Errorf("invalid alpha: %w", err)
		}
		r, g, b := c.Clamped().RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: a}, nil
	default:
		return nil, fmt.Errorf("invalid hex color length")
	}
}
