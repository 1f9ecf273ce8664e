// Package remap converts chip-local detections into full-resolution source
// image coordinates.
//
// The transform for a chip with origin (ox, oy) in the downsampled frame and
// downsample factor s is
//
//	x' = (x + ox) * s
//	y' = (y + oy) * s
//
// It is pure and stateless, so chips can be remapped concurrently.
package remap

import (
	"fmt"
	"image"

	"github.com/ironsheep/chipdetect-mcp/internal/chipper"
	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

// Remap returns a copy of d in source image coordinates. d must be
// chip-local. ClassID, Label and Confidence are preserved.
func Remap(d detect.Detection, origin image.Point, scale int) (detect.Detection, error) {
	if d.Frame != detect.ChipLocal {
		return detect.Detection{}, fmt.Errorf("remap: detection is in %q frame, want %q", d.Frame, detect.ChipLocal)
	}
	if scale < 1 {
		return detect.Detection{}, fmt.Errorf("remap: scale must be >= 1, got %d", scale)
	}

	box := d.Box.
		Translate(float64(origin.X), float64(origin.Y)).
		Scale(float64(scale))
	if err := geometry.Check("remap", box); err != nil {
		return detect.Detection{}, err
	}

	out := d
	out.Box = box
	out.Frame = detect.ImageGlobal
	return out, nil
}

// Chip remaps every detection reported for chip.
func Chip(dets []detect.Detection, chip chipper.Chip) ([]detect.Detection, error) {
	out := make([]detect.Detection, 0, len(dets))
	for _, d := range dets {
		g, err := Remap(d, chip.Origin, chip.Scale)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", chip, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// ClampToImage clips a global detection to the source image size. Boxes on
// the last partial block of a downsampled image can extend past the source
// edge by less than one downsample factor.
func ClampToImage(d detect.Detection, size image.Point) (detect.Detection, error) {
	out := d
	out.Box = d.Box.Clamp(float64(size.X), float64(size.Y))
	if err := geometry.Check("clamp", out.Box); err != nil {
		return detect.Detection{}, err
	}
	return out, nil
}
