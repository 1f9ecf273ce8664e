// Package shape implements a detector for axis-aligned rectangles, circles
// and text-like regions drawn on a contrasting background, such as markers,
// plates, symbols and labels in scanned maps and diagrams.
//
// # Algorithm
//
//  1. Edge detection: grayscale gradient against the right and lower
//     neighbour, thresholded at 30.
//  2. Contours: 8-connected components of edge pixels; components shorter
//     than 10 pixels are noise.
//  3. Rectangles: the bounding box of every contour scores
//     1 - |len(contour) - perimeter| / perimeter and is kept when the score
//     reaches Tolerance.
//  4. Circles (when MaxRadius > 0): Hough voting every 10 degrees per radius,
//     local maxima above 60% of the expected circumference.
//  5. Text regions (when TextRegions is set): sliding windows whose edge
//     density lies between 5% and 40% and whose edges run mostly
//     horizontally. Overlapping windows are merged into one region.
//
// Only axis-aligned rectangles are found. Rounded corners lower the score.
package shape

import (
	"context"
	"image"
	"math"

	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

// Class IDs reported by the detector.
const (
	ClassRectangle = 0
	ClassCircle    = 1
	ClassText      = 2
)

// Labels names the shape classes by ID.
var Labels = detect.Labels{"rectangle", "circle", "text"}

// Options configure a Detector.
type Options struct {
	// MinArea is the smallest rectangle area in square pixels.
	MinArea int
	// Tolerance is the minimum rectangularity score (0-1).
	Tolerance float64
	// MinRadius and MaxRadius bound the circle search. Circles are not
	// searched when MaxRadius is 0.
	MinRadius int
	MaxRadius int
	// TextRegions enables the text region search.
	TextRegions bool
	// MinTextConfidence drops text regions scoring below it.
	MinTextConfidence float64
}

// DefaultOptions returns rectangle detection with a minimum area of 100 and
// a tolerance of 0.85, without circles.
func DefaultOptions() Options {
	return Options{MinArea: 100, Tolerance: 0.85}
}

// Detector finds rectangles and circles.
type Detector struct {
	opts Options
}

// New creates a shape detector.
func New(opts Options) *Detector {
	if opts.MinRadius < 1 {
		opts.MinRadius = 1
	}
	return &Detector{opts: opts}
}

// Detect returns the shapes found in img, with boxes relative to its
// top-left corner.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detect.Raw, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	edges := detectEdges(img, width, height)

	out := d.rectangles(edges, width, height)
	if d.opts.MaxRadius > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, d.circles(ctx, edges, width, height)...)
	}
	if d.opts.TextRegions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, d.textRegions(edges, width, height)...)
	}
	return out, ctx.Err()
}

func (d *Detector) rectangles(edges [][]bool, width, height int) []detect.Raw {
	var out []detect.Raw
	for _, contour := range findContours(edges, width, height) {
		if len(contour) < 4 {
			continue
		}

		minX, minY := width, height
		maxX, maxY := 0, 0
		for _, p := range contour {
			minX, minY = min(minX, p.X), min(minY, p.Y)
			maxX, maxY = max(maxX, p.X), max(maxY, p.Y)
		}

		w, h := maxX-minX, maxY-minY
		if w*h < d.opts.MinArea {
			continue
		}

		perimeter := 2 * (w + h)
		score := 1.0 - math.Abs(float64(len(contour)-perimeter))/float64(perimeter)
		if score < d.opts.Tolerance {
			continue
		}

		out = append(out, detect.Raw{
			ClassID:    ClassRectangle,
			Label:      Labels.Name(ClassRectangle),
			Confidence: score,
			Box:        geometry.NewBox(float64(minX), float64(minY), float64(maxX+1), float64(maxY+1)),
		})
	}
	return out
}

type circle struct {
	x, y, r int
	score   float64
}

func (d *Detector) circles(ctx context.Context, edges [][]bool, width, height int) []detect.Raw {
	var found []circle
	acc := make([][]int, height)
	for y := range acc {
		acc[y] = make([]int, width)
	}

	for radius := d.opts.MinRadius; radius <= d.opts.MaxRadius; radius++ {
		if ctx.Err() != nil {
			return nil
		}
		for y := range acc {
			clear(acc[y])
		}

		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				if !edges[y][x] {
					continue
				}
				for angle := 0; angle < 360; angle += 10 {
					rad := float64(angle) * math.Pi / 180
					cx := x - int(float64(radius)*math.Cos(rad))
					cy := y - int(float64(radius)*math.Sin(rad))
					if cx >= 0 && cx < width && cy >= 0 && cy < height {
						acc[cy][cx]++
					}
				}
			}
		}

		threshold := int(float64(2*radius) * 0.6)
		for y := radius; y < height-radius; y++ {
			for x := radius; x < width-radius; x++ {
				if acc[y][x] < threshold || !localMax(acc, x, y, width, height) {
					continue
				}
				found = append(found, circle{
					x: x, y: y, r: radius,
					score: math.Min(float64(acc[y][x])/float64(2*radius), 1),
				})
			}
		}
	}

	var out []detect.Raw
	for _, c := range dedupCircles(found) {
		out = append(out, detect.Raw{
			ClassID:    ClassCircle,
			Label:      Labels.Name(ClassCircle),
			Confidence: c.score,
			Box: geometry.NewBox(
				float64(c.x-c.r), float64(c.y-c.r),
				float64(c.x+c.r+1), float64(c.y+c.r+1),
			),
		})
	}
	return out
}

func localMax(acc [][]int, x, y, width, height int) bool {
	for dy := -5; dy <= 5; dy++ {
		for dx := -5; dx <= 5; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx >= 0 && nx < width && ny >= 0 && ny < height && acc[ny][nx] > acc[y][x] {
				return false
			}
		}
	}
	return true
}

// dedupCircles drops circles whose center lies within the mean radius of an
// earlier one.
func dedupCircles(circles []circle) []circle {
	var kept []circle
	for _, c := range circles {
		dup := false
		for _, k := range kept {
			dx, dy := float64(c.x-k.x), float64(c.y-k.y)
			if math.Hypot(dx, dy) < float64(c.r+k.r)/2 {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
		}
	}
	return kept
}

// detectEdges marks pixels whose gray value differs from the right or lower
// neighbour by more than 30. Border pixels are never edges.
func detectEdges(img image.Image, width, height int) [][]bool {
	b := img.Bounds()
	edges := make([][]bool, height)
	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
		if y == 0 || y == height-1 {
			continue
		}
		for x := 1; x < width-1; x++ {
			c := grayValue(img, x+b.Min.X, y+b.Min.Y)
			cx := grayValue(img, x+1+b.Min.X, y+b.Min.Y)
			cy := grayValue(img, x+b.Min.X, y+1+b.Min.Y)
			if math.Abs(c-cx) > 30 || math.Abs(c-cy) > 30 {
				edges[y][x] = true
			}
		}
	}
	return edges
}

// findContours groups edge pixels into 8-connected components of at least
// 10 pixels.
func findContours(edges [][]bool, width, height int) [][]image.Point {
	visited := make([][]bool, height)
	for y := range visited {
		visited[y] = make([]bool, width)
	}

	var contours [][]image.Point
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !edges[y][x] || visited[y][x] {
				continue
			}
			contour := floodFill(edges, visited, x, y, width, height)
			if len(contour) >= 10 {
				contours = append(contours, contour)
			}
		}
	}
	return contours
}

// floodFill collects the component containing (startX, startY) with an
// explicit stack.
func floodFill(edges, visited [][]bool, startX, startY, width, height int) []image.Point {
	var contour []image.Point
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !edges[p.Y][p.X] {
			continue
		}
		visited[p.Y][p.X] = true
		contour = append(contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx != 0 || dy != 0 {
					stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
				}
			}
		}
	}
	return contour
}

// grayValue returns the ITU-R BT.601 luminance of a pixel.
func grayValue(img image.Image, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114
}
