package textocr

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

// createImageWithText renders text with basicfont and scales it up so that
// Tesseract can read it.
func createImageWithText(text string, scale int) *image.RGBA {
	w, h := len(text)*7+40, 40
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(20), Y: fixed.I(25)},
	}
	d.DrawString(text)

	img := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h*scale; y++ {
		for x := 0; x < w*scale; x++ {
			img.Set(x, y, small.At(x/scale, y/scale))
		}
	}
	return img
}

func tesseractUnavailable(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "tesseract") || strings.Contains(msg, "library") || strings.Contains(msg, "language")
}

func TestDetect_RecognizesWords(t *testing.T) {
	got, err := New(Options{}).Detect(context.Background(), createImageWithText("HELLO WORLD", 4))
	if err != nil {
		if tesseractUnavailable(err) {
			t.Skip("Tesseract not available")
		}
		t.Fatalf("Detect failed: %v", err)
	}
	if len(got) == 0 {
		t.Log("No words recognized - rendering may be too coarse for this Tesseract build")
	}
	for _, d := range got {
		if d.Label != Label || d.ClassID != ClassText {
			t.Errorf("unexpected class: %+v", d)
		}
		if !d.Box.Valid() {
			t.Errorf("invalid box: %v", d.Box)
		}
	}
}

func TestDetect_InvalidLanguage(t *testing.T) {
	_, err := New(Options{Language: "xxx_invalid"}).Detect(context.Background(), createImageWithText("A", 2))
	if err == nil {
		t.Error("Detect should fail for an unknown language")
	}
}

func TestToRaw(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Box: image.Rect(10, 20, 50, 40), Word: "ship", Confidence: 87},
		{Box: image.Rect(0, 0, 5, 5), Word: "", Confidence: 30},
	}

	got := toRaw(boxes, Words, 2)
	if len(got) != 1 {
		t.Fatalf("got %d detections, want 1", len(got))
	}
	if got[0].Box != geometry.NewBox(5, 10, 25, 20) {
		t.Errorf("box: got %v, want upscale undone", got[0].Box)
	}
	if got[0].Confidence != 0.87 {
		t.Errorf("confidence: got %v", got[0].Confidence)
	}

	if got := toRaw(boxes, Blocks, 1); len(got) != 2 {
		t.Errorf("blocks keep empty words: got %d", len(got))
	}
}

func TestDetect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(Options{}).Detect(ctx, createImageWithText("A", 1)); err == nil {
		t.Error("expected error for cancelled context")
	}
}
