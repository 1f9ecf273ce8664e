package pipeline

import (
	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

// Result is the detection set for one image.
type Result struct {
	// Width and Height are the source image dimensions in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Detections is the merged detection set in source image coordinates,
	// ordered by descending confidence.
	Detections []detect.Detection `json:"detections"`

	// Count is len(Detections).
	Count int `json:"count"`

	// ChipCount is the number of chips the image was split into.
	ChipCount int `json:"chip_count"`

	// Scale is the downsample factor used for every chip.
	Scale int `json:"scale"`

	// Partial is true when at least one chip was skipped.
	Partial bool `json:"partial"`

	// Skipped lists the chips that produced no detections because inference
	// failed or the run was cancelled before they were dispatched.
	Skipped []SkippedChip `json:"skipped,omitempty"`

	// Chips holds the per-chip artifacts when Config.PerChipOutput is set.
	Chips []ChipArtifact `json:"chips,omitempty"`

	// Transform is the source image's pixel-to-world transform, if any.
	// It is passed through untouched.
	Transform *geometry.Affine `json:"transform,omitempty"`
}

// SkippedChip identifies a chip missing from a partial result.
type SkippedChip struct {
	Index  int            `json:"index"`
	Origin geometry.Point `json:"origin"`
	Reason string         `json:"reason"`
}

// ChipArtifact is the intermediate output of one chip.
type ChipArtifact struct {
	Index int `json:"index"`
	// Origin is the chip's top-left pixel in the downsampled frame.
	Origin geometry.Point `json:"origin"`
	Scale  int            `json:"scale"`
	// Source is the chip's region in source image pixels.
	Source geometry.Box `json:"source"`
	// Detections are the chip-local detections before merging.
	Detections []detect.Detection `json:"detections"`
	// Failed is set when the chip was skipped.
	Failed bool `json:"failed,omitempty"`
}
