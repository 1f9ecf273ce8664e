// Package merge removes duplicate detections of the same object reported by
// neighbouring chips.
package merge

import (
	"sort"

	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

// DefaultIoUThreshold is the suppression threshold used when none is given.
const DefaultIoUThreshold = 0.5

// Options controls suppression.
type Options struct {
	// IoUThreshold suppresses a same-class detection whose IoU with a kept,
	// higher-confidence detection exceeds it.
	IoUThreshold float64
	// SmallBoxOverlap, when > 0, also suppresses a same-class detection when
	// more than this fraction of its own area lies inside a kept detection.
	// It catches the partial boxes left by objects cut at a chip seam.
	SmallBoxOverlap float64
}

// NMS runs class-aware greedy non-maximum suppression over global
// detections and returns the survivors ordered by descending confidence.
// Equal confidences keep their input order, so feeding detections in chip
// row-major order makes the result reproducible. dets is not modified.
//
// Detections of different classes never suppress each other.
func NMS(dets []detect.Detection, opts Options) []detect.Detection {
	if len(dets) == 0 {
		return []detect.Detection{}
	}

	sorted := make([]detect.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	n := len(sorted)
	suppressed := make([]bool, n)
	keep := make([]detect.Detection, 0, n)

	for i, base := range sorted {
		if suppressed[i] {
			continue
		}
		keep = append(keep, base)

		for j := i + 1; j < n; j++ {
			if suppressed[j] || sorted[j].ClassID != base.ClassID {
				continue
			}
			if duplicate(base.Box, sorted[j].Box, opts) {
				suppressed[j] = true
			}
		}
	}

	return keep
}

// duplicate reports whether other should be suppressed by kept.
func duplicate(kept, other geometry.Box, opts Options) bool {
	if geometry.IoU(kept, other) > opts.IoUThreshold {
		return true
	}
	if opts.SmallBoxOverlap > 0 {
		area := other.Area()
		if area > 0 && geometry.IntersectionArea(kept, other)/area > opts.SmallBoxOverlap {
			return true
		}
	}
	return false
}
