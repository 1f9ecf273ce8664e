package shape

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/chipdetect-mcp/internal/detect"
)

// createTextPatternImage draws rows of short strokes that look like print.
func createTextPatternImage(width, height int) *image.RGBA {
	img := createTestImage(width, height, color.White)
	for y := 20; y < 80; y += 10 {
		for x := 20; x < width-20; x++ {
			if x%15 < 5 {
				img.Set(x, y, color.Black)
				img.Set(x, y+1, color.Black)
				img.Set(x, y+5, color.Black)
			}
		}
	}
	return img
}

// detectText runs text region detection and returns only the text results.
func detectText(t *testing.T, img image.Image, minConf float64) []detect.Raw {
	t.Helper()
	d := New(Options{MinArea: 100, Tolerance: 0.85, TextRegions: true, MinTextConfidence: minConf})
	raws, err := d.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	b := img.Bounds()
	var out []detect.Raw
	for _, r := range raws {
		if r.ClassID != ClassText {
			continue
		}
		if r.Label != "text" {
			t.Errorf("text label: got %q", r.Label)
		}
		if r.Box.XMin < 0 || r.Box.YMin < 0 || r.Box.XMax > float64(b.Dx()) || r.Box.YMax > float64(b.Dy()) {
			t.Errorf("text box %v outside %v", r.Box, b)
		}
		if r.Confidence < minConf || r.Confidence > 1 {
			t.Errorf("confidence %v outside [%v,1]", r.Confidence, minConf)
		}
		out = append(out, r)
	}
	return out
}

func TestDetect_TextRegions(t *testing.T) {
	img := createTextPatternImage(200, 150)
	raws := detectText(t, img, 0.3)
	t.Logf("Detected %d text regions", len(raws))
}

func TestDetect_TextRegions_MinConfidence(t *testing.T) {
	img := createTextPatternImage(300, 200)

	low := len(detectText(t, img, 0.1))
	high := len(detectText(t, img, 0.8))
	if high > low {
		t.Errorf("Higher minConfidence should give fewer results: low=%d, high=%d", low, high)
	}
}

func TestDetect_TextRegions_EmptyImage(t *testing.T) {
	img := createTestImage(200, 150, color.White)
	if n := len(detectText(t, img, 0)); n != 0 {
		t.Errorf("Expected 0 text regions in empty image, got %d", n)
	}
}

func TestDetect_TextRegionsDisabled(t *testing.T) {
	img := createTextPatternImage(200, 150)
	raws, err := New(DefaultOptions()).Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	for _, r := range raws {
		if r.ClassID == ClassText {
			t.Fatal("text regions reported without TextRegions")
		}
	}
}

func TestHorizontalScore(t *testing.T) {
	edges := make([][]bool, 10)
	for i := range edges {
		edges[i] = make([]bool, 10)
	}
	if s := horizontalScore(edges, 0, 0, 10, 10); s != 0 {
		t.Errorf("empty window: got %v, want 0", s)
	}

	// One horizontal line: 1 horizontal run, 10 vertical runs of length 1.
	for x := 0; x < 10; x++ {
		edges[5][x] = true
	}
	if s := horizontalScore(edges, 0, 0, 10, 10); s != 1.0/11.0 {
		t.Errorf("horizontal line: got %v, want %v", s, 1.0/11.0)
	}
}

func TestMergeRegions(t *testing.T) {
	regions := []textRegion{
		{0, 0, 10, 10, 0.5},
		{5, 5, 20, 20, 0.7},
		{50, 50, 60, 60, 0.4},
	}
	merged := mergeRegions(regions)
	if len(merged) != 2 {
		t.Fatalf("merged: got %d, want 2", len(merged))
	}
	if m := merged[0]; m.x1 != 0 || m.y1 != 0 || m.x2 != 20 || m.y2 != 20 || m.score != 0.7 {
		t.Errorf("union: got %+v", m)
	}
	if mergeRegions(nil) != nil {
		t.Error("nil input should give nil")
	}
}
