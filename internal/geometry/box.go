package geometry

import (
	"fmt"
	"image"
	"math"
)

// Box is an axis-aligned bounding box in pixel units.
type Box struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Point is an integer pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PointFrom converts an image.Point.
func PointFrom(p image.Point) Point {
	return Point{X: p.X, Y: p.Y}
}

// NewBox builds a Box from its corners.
func NewBox(xMin, yMin, xMax, yMax float64) Box {
	return Box{XMin: xMin, YMin: yMin, XMax: xMax, YMax: yMax}
}

// BoxFromRect converts an image.Rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{
		XMin: float64(r.Min.X),
		YMin: float64(r.Min.Y),
		XMax: float64(r.Max.X),
		YMax: float64(r.Max.Y),
	}
}

// Valid reports whether the box corners are ordered and finite.
func (b Box) Valid() bool {
	for _, v := range [4]float64{b.XMin, b.YMin, b.XMax, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.XMin <= b.XMax && b.YMin <= b.YMax
}

// Width returns XMax - XMin.
func (b Box) Width() float64 {
	return b.XMax - b.XMin
}

// Height returns YMax - YMin.
func (b Box) Height() float64 {
	return b.YMax - b.YMin
}

// Area returns the box area, or 0 for an inverted box.
func (b Box) Area() float64 {
	w := b.Width()
	h := b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Empty reports whether the box has zero area.
func (b Box) Empty() bool {
	return b.Area() == 0
}

// Translate shifts the box by (dx, dy).
func (b Box) Translate(dx, dy float64) Box {
	return Box{XMin: b.XMin + dx, YMin: b.YMin + dy, XMax: b.XMax + dx, YMax: b.YMax + dy}
}

// Scale multiplies every coordinate by s.
func (b Box) Scale(s float64) Box {
	return Box{XMin: b.XMin * s, YMin: b.YMin * s, XMax: b.XMax * s, YMax: b.YMax * s}
}

// Clamp restricts the box to the rectangle [0,w] x [0,h]. A box entirely
// outside the rectangle collapses onto its nearest edge.
func (b Box) Clamp(w, h float64) Box {
	return Box{
		XMin: clampFloat(b.XMin, 0, w),
		YMin: clampFloat(b.YMin, 0, h),
		XMax: clampFloat(b.XMax, 0, w),
		YMax: clampFloat(b.YMax, 0, h),
	}
}

// Intersection returns the overlapping region of a and b. The result is
// empty (zero area) when the boxes do not overlap.
func (b Box) Intersection(o Box) Box {
	x1 := math.Max(b.XMin, o.XMin)
	y1 := math.Max(b.YMin, o.YMin)
	x2 := math.Min(b.XMax, o.XMax)
	y2 := math.Min(b.YMax, o.YMax)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return Box{XMin: x1, YMin: y1, XMax: x2, YMax: y2}
}

// Rect rounds the box outward to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(b.XMin)),
		int(math.Floor(b.YMin)),
		int(math.Ceil(b.XMax)),
		int(math.Ceil(b.YMax)),
	)
}

// String formats the box as (x_min,y_min,x_max,y_max).
func (b Box) String() string {
	return fmt.Sprintf("(%g,%g,%g,%g)", b.XMin, b.YMin, b.XMax, b.YMax)
}

// IntersectionArea returns the pixel area shared by a and b.
func IntersectionArea(a, b Box) float64 {
	return a.Intersection(b).Area()
}

// IoU returns the intersection-over-union of a and b in [0,1]. Two boxes
// whose union is empty have an IoU of 0.
func IoU(a, b Box) float64 {
	inter := IntersectionArea(a, b)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
