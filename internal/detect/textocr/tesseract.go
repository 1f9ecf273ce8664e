package textocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

// ClassText is the class ID of every text detection.
const ClassText = 0

// Label is the label of every text detection.
const Label = "text"

// Level selects the Tesseract iterator level.
type Level int

const (
	// Words reports one detection per word.
	Words Level = iota
	// Blocks reports one detection per paragraph-like block.
	Blocks
)

// Options configure a Detector.
type Options struct {
	// Language is the Tesseract language code, "eng" when empty.
	Language string
	// Level selects word or block boxes.
	Level Level
	// Upscale enlarges the chip by this integer factor before recognition,
	// which helps with small print. Boxes are scaled back.
	Upscale int
}

// Detector runs Tesseract on each chip.
type Detector struct {
	opts Options
}

// New creates a text detector.
func New(opts Options) *Detector {
	if opts.Language == "" {
		opts.Language = "eng"
	}
	if opts.Upscale < 1 {
		opts.Upscale = 1
	}
	return &Detector{opts: opts}
}

// Detect recognizes text in img and returns one detection per box. Empty
// words are skipped.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detect.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := d.prepare(img)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(d.opts.Language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	level := gosseract.RIL_WORD
	if d.opts.Level == Blocks {
		level = gosseract.RIL_BLOCK
	}
	boxes, err := client.GetBoundingBoxes(level)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	return toRaw(boxes, d.opts.Level, d.opts.Upscale), nil
}

// prepare converts the chip to grayscale, upscales it if requested and
// encodes it as PNG for Tesseract.
func (d *Detector) prepare(img image.Image) ([]byte, error) {
	gray := imaging.Grayscale(img)
	if d.opts.Upscale > 1 {
		b := gray.Bounds()
		gray = imaging.Resize(gray, b.Dx()*d.opts.Upscale, b.Dy()*d.opts.Upscale, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("failed to encode chip: %w", err)
	}
	return buf.Bytes(), nil
}

func toRaw(boxes []gosseract.BoundingBox, level Level, upscale int) []detect.Raw {
	s := float64(upscale)
	out := make([]detect.Raw, 0, len(boxes))
	for _, box := range boxes {
		if level == Words && box.Word == "" {
			continue
		}
		out = append(out, detect.Raw{
			ClassID:    ClassText,
			Label:      Label,
			Confidence: box.Confidence / 100.0,
			Box: geometry.NewBox(
				float64(box.Box.Min.X)/s, float64(box.Box.Min.Y)/s,
				float64(box.Box.Max.X)/s, float64(box.Box.Max.Y)/s,
			),
		})
	}
	return out
}
