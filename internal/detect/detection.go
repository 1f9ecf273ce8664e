package detect

import (
	"context"
	"fmt"
	"image"

	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

// Frame names the coordinate frame a detection box is expressed in.
type Frame string

const (
	// ChipLocal boxes are relative to the top-left corner of their chip.
	ChipLocal Frame = "chip"
	// ImageGlobal boxes are in full-resolution source image pixels.
	ImageGlobal Frame = "image"
)

// Raw is a detection as reported by a backend, before the adapter boundary
// validates it.
type Raw struct {
	ClassID    int
	Label      string
	Confidence float64
	Box        geometry.Box
}

// Detection is a validated detection record. It is a value type; pipeline
// stages replace detections with transformed copies rather than mutating
// them.
type Detection struct {
	ClassID    int          `json:"class_id"`
	Label      string       `json:"name,omitempty"`
	Confidence float64      `json:"confidence"`
	Box        geometry.Box `json:"box"`
	Frame      Frame        `json:"frame"`
}

// String formats the detection for logs.
func (d Detection) String() string {
	name := d.Label
	if name == "" {
		name = fmt.Sprintf("class %d", d.ClassID)
	}
	return fmt.Sprintf("%s %.2f %s [%s]", name, d.Confidence, d.Box, d.Frame)
}

// Detector is an object detection backend. Detect receives one chip whose
// bounds start at (0,0) and returns boxes in that chip's pixel coordinates.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Raw, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, img image.Image) ([]Raw, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]Raw, error) {
	return f(ctx, img)
}
