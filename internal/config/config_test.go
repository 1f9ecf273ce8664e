package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ironsheep/chipdetect-mcp/internal/chipper"
	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/detect/blob"
	"github.com/ironsheep/chipdetect-mcp/internal/detect/remote"
	"github.com/ironsheep/chipdetect-mcp/internal/detect/shape"
	"github.com/ironsheep/chipdetect-mcp/internal/detect/textocr"
	"github.com/ironsheep/chipdetect-mcp/internal/imaging"
	"github.com/ironsheep/chipdetect-mcp/internal/pipeline"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(pipeline.DefaultConfig(), cfg.Pipeline); diff != "" {
		t.Errorf("pipeline defaults mismatch (-want +got):\n%s", diff)
	}
	if cfg.Detector != BackendBlob {
		t.Errorf("detector: got %q, want %q", cfg.Detector, BackendBlob)
	}
	if cfg.MaxDownloadBytes != imaging.DefaultMaxDownloadBytes || cfg.FetchTimeout != imaging.DefaultFetchTimeout {
		t.Errorf("loader defaults: %d bytes, %v", cfg.MaxDownloadBytes, cfg.FetchTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level: got %q", cfg.LogLevel)
	}
	if cfg.ShapeText {
		t.Error("shape text regions should be off by default")
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CHIPDETECT_MAX_CHIP_SIDE", "256")
	t.Setenv("CHIPDETECT_DOWNSAMPLE", "2")
	t.Setenv("CHIPDETECT_CONFIDENCE", "0.25")
	t.Setenv("CHIPDETECT_IOU", "0.4")
	t.Setenv("CHIPDETECT_OVERLAP", "32")
	t.Setenv("CHIPDETECT_PER_CHIP_OUTPUT", "true")
	t.Setenv("CHIPDETECT_POLICY", "Strict")
	t.Setenv("CHIPDETECT_WORKERS", "3")
	t.Setenv("CHIPDETECT_LAYOUT", "balanced")
	t.Setenv("CHIPDETECT_SMALL_BOX_OVERLAP", "0.8")
	t.Setenv("CHIPDETECT_DETECTOR", "remote")
	t.Setenv("CHIPDETECT_DETECTOR_URL", "http://localhost:5000/predict")
	t.Setenv("CHIPDETECT_FETCH_TIMEOUT", "30s")
	t.Setenv("CHIPDETECT_MAX_DOWNLOAD_BYTES", "1048576")
	t.Setenv("CHIPDETECT_SHAPE_TEXT", "1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := pipeline.Config{
		MaxChipSide:         256,
		DownsampleFactor:    2,
		ConfidenceThreshold: 0.25,
		IoUThreshold:        0.4,
		OverlapMargin:       32,
		PerChipOutput:       true,
		Policy:              pipeline.Strict,
		Workers:             3,
		Layout:              chipper.LayoutBalanced,
		SmallBoxOverlap:     0.8,
	}
	if diff := cmp.Diff(want, cfg.Pipeline); diff != "" {
		t.Errorf("pipeline config mismatch (-want +got):\n%s", diff)
	}
	if cfg.FetchTimeout != 30*time.Second || cfg.MaxDownloadBytes != 1<<20 {
		t.Errorf("loader settings: %v, %d", cfg.FetchTimeout, cfg.MaxDownloadBytes)
	}
	if !cfg.ShapeText {
		t.Error("shape text regions not enabled")
	}

	lo := cfg.LoaderOptions()
	if lo.Timeout != 30*time.Second || lo.MaxDownloadBytes != 1<<20 {
		t.Errorf("LoaderOptions: %+v", lo)
	}
}

func TestLoad_MalformedNumberFallsBack(t *testing.T) {
	t.Setenv("CHIPDETECT_MAX_CHIP_SIDE", "large")
	t.Setenv("CHIPDETECT_CONFIDENCE", "high")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.MaxChipSide != 512 || cfg.Pipeline.ConfidenceThreshold != 0 {
		t.Errorf("expected defaults, got %+v", cfg.Pipeline)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("CHIPDETECT_MAX_CHIP_SIDE")
		os.Unsetenv("CHIPDETECT_DETECTOR")
	})
	// Set variables win over the file.
	t.Setenv("CHIPDETECT_IOU", "0.3")

	path := filepath.Join(t.TempDir(), "chipdetect.env")
	content := "CHIPDETECT_MAX_CHIP_SIDE=128\nCHIPDETECT_DETECTOR=shape\nCHIPDETECT_IOU=0.7\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.MaxChipSide != 128 || cfg.Detector != BackendShape {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Pipeline.IoUThreshold != 0.3 {
		t.Errorf("iou: got %v, want 0.3", cfg.Pipeline.IoUThreshold)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing env file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"policy", "CHIPDETECT_POLICY", "sometimes"},
		{"layout", "CHIPDETECT_LAYOUT", "spiral"},
		{"detector", "CHIPDETECT_DETECTOR", "yolo"},
		{"remote without url", "CHIPDETECT_DETECTOR", "remote"},
		{"iou", "CHIPDETECT_IOU", "1.5"},
		{"blob threshold", "CHIPDETECT_BLOB_THRESHOLD", "300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(""); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}

	t.Run("geometry", func(t *testing.T) {
		t.Setenv("CHIPDETECT_OVERLAP", "600")
		_, err := Load("")
		var ige *chipper.InvalidGeometryError
		if !errors.As(err, &ige) {
			t.Errorf("expected InvalidGeometryError, got %v", err)
		}
	})
}

func TestNewDetector(t *testing.T) {
	tests := []struct {
		backend    string
		wantLabels detect.Labels
		check      func(detect.Detector) bool
	}{
		{BackendBlob, detect.Labels{blob.Label}, func(d detect.Detector) bool { _, ok := d.(*blob.Detector); return ok }},
		{BackendShape, shape.Labels, func(d detect.Detector) bool { _, ok := d.(*shape.Detector); return ok }},
		{BackendOCR, detect.Labels{textocr.Label}, func(d detect.Detector) bool { _, ok := d.(*textocr.Detector); return ok }},
		{BackendRemote, nil, func(d detect.Detector) bool { _, ok := d.(*remote.Client); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := &Config{
				Detector:      tt.backend,
				DetectorURL:   "http://localhost:5000/predict",
				APIKey:        "secret",
				BlobThreshold: 64,
			}
			d, labels, err := cfg.NewDetector()
			if err != nil {
				t.Fatalf("NewDetector failed: %v", err)
			}
			if !tt.check(d) {
				t.Errorf("unexpected detector type %T", d)
			}
			if diff := cmp.Diff(tt.wantLabels, labels); diff != "" {
				t.Errorf("labels mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewDetector_LabelsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	if err := os.WriteFile(path, []byte("car\ntruck\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{Detector: BackendShape, LabelsFile: path}
	_, labels, err := cfg.NewDetector()
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	if diff := cmp.Diff(detect.Labels{"car", "truck"}, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	cfg.LabelsFile = filepath.Join(t.TempDir(), "missing.txt")
	if _, _, err := cfg.NewDetector(); err == nil {
		t.Error("expected error for missing labels file")
	}
}
