package remap

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/ironsheep/chipdetect-mcp/internal/chipper"
	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

func local(box geometry.Box) detect.Detection {
	return detect.Detection{ClassID: 3, Label: "ship", Confidence: 0.77, Box: box, Frame: detect.ChipLocal}
}

func TestRemap(t *testing.T) {
	tests := []struct {
		name   string
		box    geometry.Box
		origin image.Point
		scale  int
		want   geometry.Box
	}{
		{"reference", geometry.NewBox(10, 10, 50, 50), image.Pt(100, 200), 2, geometry.NewBox(220, 420, 300, 500)},
		{"offset zero", geometry.NewBox(1, 2, 3, 4), image.Pt(0, 0), 1, geometry.NewBox(1, 2, 3, 4)},
		{"no scale", geometry.NewBox(0, 0, 10, 10), image.Pt(512, 512), 1, geometry.NewBox(512, 512, 522, 522)},
		{"fractional", geometry.NewBox(0.5, 0.25, 1, 1), image.Pt(2, 2), 4, geometry.NewBox(10, 9, 12, 12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := local(tt.box)
			got, err := Remap(in, tt.origin, tt.scale)
			if err != nil {
				t.Fatalf("Remap failed: %v", err)
			}
			if got.Box != tt.want {
				t.Errorf("box: got %v, want %v", got.Box, tt.want)
			}
			if got.ClassID != in.ClassID || got.Label != in.Label || got.Confidence != in.Confidence {
				t.Errorf("metadata changed: %v", got)
			}
			if got.Frame != detect.ImageGlobal {
				t.Errorf("frame: got %s", got.Frame)
			}
			if in.Frame != detect.ChipLocal || in.Box != tt.box {
				t.Error("input detection was modified")
			}
		})
	}
}

func TestRemap_RejectsGlobalFrame(t *testing.T) {
	d := local(geometry.NewBox(0, 0, 1, 1))
	d.Frame = detect.ImageGlobal
	if _, err := Remap(d, image.Pt(0, 0), 1); err == nil {
		t.Error("expected error remapping a global detection")
	}
}

func TestRemap_RejectsBadScale(t *testing.T) {
	if _, err := Remap(local(geometry.NewBox(0, 0, 1, 1)), image.Pt(0, 0), 0); err == nil {
		t.Error("expected error for zero scale")
	}
}

func TestRemap_GeometryError(t *testing.T) {
	_, err := Remap(local(geometry.NewBox(0, 0, math.Inf(1), 1)), image.Pt(0, 0), 1)
	var ge *geometry.GeometryError
	if !errors.As(err, &ge) {
		t.Fatalf("expected *GeometryError, got %v", err)
	}

	_, err = Remap(local(geometry.NewBox(5, 0, 1, 1)), image.Pt(0, 0), 1)
	if !errors.As(err, &ge) {
		t.Fatalf("expected *GeometryError for inverted box, got %v", err)
	}
}

func TestChip(t *testing.T) {
	c, err := chipper.New(chipper.Options{MaxSide: 50, Downsample: 2})
	if err != nil {
		t.Fatalf("chipper.New failed: %v", err)
	}
	tiles, err := c.Plan(image.NewRGBA(image.Rect(0, 0, 200, 100)))
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	chip := tiles.Chip(1) // origin (50,0) in the 100x50 downsampled frame
	got, err := Chip([]detect.Detection{local(geometry.NewBox(0, 0, 10, 10))}, chip)
	if err != nil {
		t.Fatalf("Chip failed: %v", err)
	}
	if len(got) != 1 || got[0].Box != geometry.NewBox(100, 0, 120, 20) {
		t.Errorf("got %v", got)
	}
}

func TestClampToImage(t *testing.T) {
	d := local(geometry.NewBox(90, 90, 104, 101))
	d.Frame = detect.ImageGlobal
	got, err := ClampToImage(d, image.Pt(101, 99))
	if err != nil {
		t.Fatalf("ClampToImage failed: %v", err)
	}
	if got.Box != geometry.NewBox(90, 90, 101, 99) {
		t.Errorf("box: got %v", got.Box)
	}
}
