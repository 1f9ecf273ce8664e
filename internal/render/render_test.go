package render

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/chipdetect-mcp/internal/chipper"
	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

func createInMemoryImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 == 255 && g>>8 == 255 && b>>8 == 255
}

func TestDetections(t *testing.T) {
	img := createInMemoryImage(100, 100)
	dets := []detect.Detection{{
		ClassID: 0, Label: "car", Confidence: 0.9,
		Box: geometry.NewBox(20, 20, 60, 60), Frame: detect.ImageGlobal,
	}}

	out, err := Detections(img, dets, DefaultOptions())
	if err != nil {
		t.Fatalf("Detections failed: %v", err)
	}
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 100 {
		t.Errorf("size changed: %v", out.Bounds())
	}
	if isWhite(out.At(20, 40)) {
		t.Error("box outline not drawn")
	}
	if !isWhite(out.At(40, 40)) {
		t.Error("box interior should stay untouched")
	}
	if !isWhite(img.At(20, 40)) {
		t.Error("input image was modified")
	}
}

func TestClassColor(t *testing.T) {
	if ClassColor(3) != ClassColor(3) {
		t.Error("class color not deterministic")
	}
	if ClassColor(0) == ClassColor(1) {
		t.Error("neighbouring classes share a color")
	}
}

func TestChipGrid(t *testing.T) {
	img := createInMemoryImage(200, 100)
	c, err := chipper.New(chipper.Options{MaxSide: 100, Downsample: 1})
	if err != nil {
		t.Fatalf("chipper.New failed: %v", err)
	}
	tiles, err := c.Plan(img)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	out, err := ChipGrid(img, tiles.Chips(), GridOptions{Color: "#0000FF", ShowIndex: true, Skipped: []int{1}})
	if err != nil {
		t.Fatalf("ChipGrid failed: %v", err)
	}
	if isWhite(out.At(100, 50)) {
		t.Error("chip seam not drawn")
	}
	if !isWhite(out.At(50, 50)) {
		t.Error("chip 0 interior should stay untouched")
	}
	if isWhite(out.At(150, 50)) {
		t.Error("skipped chip should be tinted")
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#FF0000", color.NRGBA{255, 0, 0, 255}, false},
		{"00ff00", color.NRGBA{0, 255, 0, 255}, false},
		{"#0000FF80", color.NRGBA{0, 0, 255, 128}, false},
		{"", color.NRGBA{}, true},
		{"#12345", color.NRGBA{}, true},
		{"#GGGGGG", color.NRGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseHexColor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHexColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if c := color.NRGBAModel.Convert(got).(color.NRGBA); c != tt.want {
				t.Errorf("parseHexColor(%q) = %v, want %v", tt.in, c, tt.want)
			}
		})
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotated.png")
	if err := Save(createInMemoryImage(8, 6), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
		t.Errorf("saved size: got %v", img.Bounds())
	}
}
