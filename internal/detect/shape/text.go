package shape

import (
	"math"

	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

// textWindows are the sliding window sizes, from small to large print.
var textWindows = []struct{ w, h int }{
	{80, 25},
	{100, 30},
	{150, 40},
	{200, 50},
}

type textRegion struct {
	x1, y1, x2, y2 int
	score          float64
}

func (d *Detector) textRegions(edges [][]bool, width, height int) []detect.Raw {
	var candidates []textRegion
	for _, ws := range textWindows {
		stepX, stepY := ws.w/2, ws.h/2
		for y := 0; y <= height-ws.h; y += stepY {
			for x := 0; x <= width-ws.w; x += stepX {
				count := 0
				for wy := 0; wy < ws.h; wy++ {
					for wx := 0; wx < ws.w; wx++ {
						if edges[y+wy][x+wx] {
							count++
						}
					}
				}

				// Text has medium edge density: neither blank nor noise.
				density := float64(count) / float64(ws.w*ws.h)
				if density < 0.05 || density > 0.4 {
					continue
				}
				score := horizontalScore(edges, x, y, ws.w, ws.h) * (1 - math.Abs(density-0.2)/0.2)
				if score < d.opts.MinTextConfidence {
					continue
				}
				candidates = append(candidates, textRegion{x, y, x + ws.w, y + ws.h, score})
			}
		}
	}

	merged := mergeRegions(candidates)
	out := make([]detect.Raw, 0, len(merged))
	for _, r := range merged {
		out = append(out, detect.Raw{
			ClassID:    ClassText,
			Label:      Labels.Name(ClassText),
			Confidence: r.score,
			Box:        geometry.NewBox(float64(r.x1), float64(r.y1), float64(r.x2), float64(r.y2)),
		})
	}
	return out
}

// horizontalScore is the share of horizontal edge runs among all edge runs
// in the window.
func horizontalScore(edges [][]bool, x, y, w, h int) float64 {
	var horizontal, vertical int
	for row := y; row < y+h; row++ {
		inRun := false
		for col := x; col < x+w; col++ {
			if edges[row][col] && !inRun {
				horizontal++
			}
			inRun = edges[row][col]
		}
	}
	for col := x; col < x+w; col++ {
		inRun := false
		for row := y; row < y+h; row++ {
			if edges[row][col] && !inRun {
				vertical++
			}
			inRun = edges[row][col]
		}
	}
	if horizontal+vertical == 0 {
		return 0
	}
	return float64(horizontal) / float64(horizontal+vertical)
}

// mergeRegions folds every region into the first earlier region it
// overlaps, keeping the union box and the higher score.
func mergeRegions(regions []textRegion) []textRegion {
	var merged []textRegion
	for _, r := range regions {
		found := false
		for i := range merged {
			m := &merged[i]
			if r.x1 < m.x2 && r.x2 > m.x1 && r.y1 < m.y2 && r.y2 > m.y1 {
				m.x1, m.y1 = min(m.x1, r.x1), min(m.y1, r.y1)
				m.x2, m.y2 = max(m.x2, r.x2), max(m.y2, r.y2)
				m.score = math.Max(m.score, r.score)
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, r)
		}
	}
	return merged
}
