package detect

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/chipdetect-mcp/internal/chipper"
)

// InferenceFailure reports a backend error for one chip.
type InferenceFailure struct {
	Index  int
	Origin image.Point
	Err    error
}

func (e *InferenceFailure) Error() string {
	return fmt.Sprintf("inference failed for chip %d at (%d,%d): %v", e.Index, e.Origin.X, e.Origin.Y, e.Err)
}

func (e *InferenceFailure) Unwrap() error {
	return e.Err
}

// Adapter is the boundary between an opaque Detector and the pipeline. It
// guarantees that every detection it returns has a confidence in [0,1] and a
// non-empty box inside the chip, and tags backend errors with the chip that
// produced them.
type Adapter struct {
	detector Detector
	labels   Labels
}

// NewAdapter wraps detector. labels may be nil; when set, class IDs without a
// backend-provided label are named from it.
func NewAdapter(detector Detector, labels Labels) *Adapter {
	return &Adapter{detector: detector, labels: labels}
}

// Detect runs the backend on chip and returns chip-local detections.
func (a *Adapter) Detect(ctx context.Context, chip chipper.Chip) ([]Detection, error) {
	if chip.Pixels == nil {
		return nil, &InferenceFailure{Index: chip.Index, Origin: chip.Origin, Err: fmt.Errorf("chip has no pixels")}
	}

	raw, err := a.detector.Detect(ctx, chip.Pixels)
	if err != nil {
		return nil, &InferenceFailure{Index: chip.Index, Origin: chip.Origin, Err: err}
	}

	w := float64(chip.Size.X)
	h := float64(chip.Size.Y)

	out := make([]Detection, 0, len(raw))
	for _, r := range raw {
		if math.IsNaN(r.Confidence) || !r.Box.Valid() {
			continue
		}
		box := r.Box.Clamp(w, h)
		if box.Empty() {
			continue
		}
		label := r.Label
		if label == "" {
			label = a.labels.Name(r.ClassID)
		}
		out = append(out, Detection{
			ClassID:    r.ClassID,
			Label:      label,
			Confidence: clampUnit(r.Confidence),
			Box:        box,
			Frame:      ChipLocal,
		})
	}
	return out, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
