package pipeline

import (
	"fmt"
	"runtime"

	"github.com/ironsheep/chipdetect-mcp/internal/chipper"
	"github.com/ironsheep/chipdetect-mcp/internal/merge"
)

// Policy decides what a per-chip inference failure does to the whole image.
type Policy int

const (
	// Lenient skips failed chips and marks the result as partial.
	Lenient Policy = iota
	// Strict aborts the image on the first failed chip.
	Strict
)

// String returns the policy name used in configuration.
func (p Policy) String() string {
	if p == Strict {
		return "strict"
	}
	return "lenient"
}

// ParsePolicy converts a configuration name into a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "lenient":
		return Lenient, nil
	case "strict":
		return Strict, nil
	default:
		return Lenient, fmt.Errorf("unknown failure policy: %s", name)
	}
}

// Config holds the options of one pipeline run. It is passed by value to
// every call; the pipeline keeps no configuration of its own.
type Config struct {
	// MaxChipSide is the largest chip width/height in pixels.
	MaxChipSide int `json:"max_chip_side"`
	// DownsampleFactor reduces the image before tiling (>= 1).
	DownsampleFactor int `json:"downsample_factor"`
	// ConfidenceThreshold drops detections below it before merging.
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	// IoUThreshold is the suppression threshold of the merger.
	IoUThreshold float64 `json:"iou_threshold"`
	// OverlapMargin is the number of pixels adjacent chips share.
	OverlapMargin int `json:"overlap_margin"`
	// PerChipOutput also returns the chip-local detections of every chip.
	PerChipOutput bool `json:"per_chip_output"`
	// Policy selects strict or lenient failure handling.
	Policy Policy `json:"-"`
	// Workers bounds the number of chips in flight.
	Workers int `json:"workers"`
	// Layout selects the chip grid layout.
	Layout chipper.Layout `json:"-"`
	// SmallBoxOverlap enables the partial-box suppression of the merger
	// when > 0.
	SmallBoxOverlap float64 `json:"small_box_overlap"`
}

// DefaultConfig returns the defaults: 512 pixel chips, no downsampling, no
// confidence filter, IoU 0.5, no overlap, lenient failures and one worker per
// CPU.
func DefaultConfig() Config {
	return Config{
		MaxChipSide:         512,
		DownsampleFactor:    1,
		ConfidenceThreshold: 0,
		IoUThreshold:        merge.DefaultIoUThreshold,
		OverlapMargin:       0,
		Policy:              Lenient,
		Workers:             runtime.NumCPU(),
		Layout:              chipper.LayoutFixed,
	}
}

// Validate checks the thresholds and chip geometry. Geometry problems are
// returned as *chipper.InvalidGeometryError.
func (c Config) Validate() error {
	if _, err := chipper.New(c.ChipperOptions()); err != nil {
		return err
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("iou_threshold must be within [0,1], got %v", c.IoUThreshold)
	}
	if c.SmallBoxOverlap < 0 || c.SmallBoxOverlap > 1 {
		return fmt.Errorf("small_box_overlap must be within [0,1], got %v", c.SmallBoxOverlap)
	}
	if c.Policy != Lenient && c.Policy != Strict {
		return fmt.Errorf("unknown failure policy: %d", int(c.Policy))
	}
	return nil
}

// ChipperOptions returns the tiling options of c.
func (c Config) ChipperOptions() chipper.Options {
	return chipper.Options{
		MaxSide:    c.MaxChipSide,
		Downsample: c.DownsampleFactor,
		Overlap:    c.OverlapMargin,
		Layout:     c.Layout,
	}
}

func (c Config) mergeOptions() merge.Options {
	return merge.Options{
		IoUThreshold:    c.IoUThreshold,
		SmallBoxOverlap: c.SmallBoxOverlap,
	}
}

func (c Config) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}
