// Package config reads the process configuration from CHIPDETECT_*
// environment variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ironsheep/chipdetect-mcp/internal/chipper"
	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/detect/blob"
	"github.com/ironsheep/chipdetect-mcp/internal/detect/remote"
	"github.com/ironsheep/chipdetect-mcp/internal/detect/shape"
	"github.com/ironsheep/chipdetect-mcp/internal/detect/textocr"
	"github.com/ironsheep/chipdetect-mcp/internal/imaging"
	"github.com/ironsheep/chipdetect-mcp/internal/pipeline"
)

// Detector backend names.
const (
	BackendRemote = "remote"
	BackendOCR    = "ocr"
	BackendBlob   = "blob"
	BackendShape  = "shape"
)

// Config is the process configuration.
type Config struct {
	Pipeline pipeline.Config

	Detector      string
	DetectorURL   string
	APIKey        string
	LabelsFile    string
	OCRLanguage   string
	BlobThreshold int
	ShapeText     bool

	MaxDownloadBytes int64
	FetchTimeout     time.Duration
	TempDir          string

	LogLevel string
}

// Load reads the configuration. When envFile is empty a .env file in the
// working directory is loaded if present. Variables already set in the
// environment take precedence over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	p := pipeline.DefaultConfig()
	p.MaxChipSide = getEnvAsInt("CHIPDETECT_MAX_CHIP_SIDE", p.MaxChipSide)
	p.DownsampleFactor = getEnvAsInt("CHIPDETECT_DOWNSAMPLE", p.DownsampleFactor)
	p.ConfidenceThreshold = getEnvAsFloat("CHIPDETECT_CONFIDENCE", p.ConfidenceThreshold)
	p.IoUThreshold = getEnvAsFloat("CHIPDETECT_IOU", p.IoUThreshold)
	p.OverlapMargin = getEnvAsInt("CHIPDETECT_OVERLAP", p.OverlapMargin)
	p.PerChipOutput = getEnvAsBool("CHIPDETECT_PER_CHIP_OUTPUT", p.PerChipOutput)
	p.Workers = getEnvAsInt("CHIPDETECT_WORKERS", p.Workers)
	p.SmallBoxOverlap = getEnvAsFloat("CHIPDETECT_SMALL_BOX_OVERLAP", p.SmallBoxOverlap)

	policy, err := pipeline.ParsePolicy(strings.ToLower(getEnv("CHIPDETECT_POLICY", p.Policy.String())))
	if err != nil {
		return nil, err
	}
	p.Policy = policy

	layout, err := chipper.ParseLayout(strings.ToLower(getEnv("CHIPDETECT_LAYOUT", p.Layout.String())))
	if err != nil {
		return nil, err
	}
	p.Layout = layout

	cfg := &Config{
		Pipeline:         p,
		Detector:         strings.ToLower(getEnv("CHIPDETECT_DETECTOR", BackendBlob)),
		DetectorURL:      getEnv("CHIPDETECT_DETECTOR_URL", ""),
		APIKey:           getEnv("CHIPDETECT_API_KEY", ""),
		LabelsFile:       getEnv("CHIPDETECT_LABELS", ""),
		OCRLanguage:      getEnv("CHIPDETECT_OCR_LANGUAGE", "eng"),
		BlobThreshold:    getEnvAsInt("CHIPDETECT_BLOB_THRESHOLD", int(blob.DefaultOptions().Threshold)),
		ShapeText:        getEnvAsBool("CHIPDETECT_SHAPE_TEXT", false),
		MaxDownloadBytes: getEnvAsInt64("CHIPDETECT_MAX_DOWNLOAD_BYTES", imaging.DefaultMaxDownloadBytes),
		FetchTimeout:     getEnvAsDuration("CHIPDETECT_FETCH_TIMEOUT", imaging.DefaultFetchTimeout),
		TempDir:          getEnv("CHIPDETECT_TEMP_DIR", ""),
		LogLevel:         getEnv("CHIPDETECT_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the pipeline options and the detector selection.
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	switch c.Detector {
	case BackendRemote:
		if c.DetectorURL == "" {
			return fmt.Errorf("detector %q requires CHIPDETECT_DETECTOR_URL", c.Detector)
		}
	case BackendOCR, BackendShape:
	case BackendBlob:
		if c.BlobThreshold < 1 || c.BlobThreshold > 255 {
			return fmt.Errorf("blob threshold must be within [1,255], got %d", c.BlobThreshold)
		}
	default:
		return fmt.Errorf("unknown detector backend: %s", c.Detector)
	}
	return nil
}

// LoaderOptions returns the image loader settings.
func (c *Config) LoaderOptions() imaging.LoaderOptions {
	return imaging.LoaderOptions{
		Timeout:          c.FetchTimeout,
		MaxDownloadBytes: c.MaxDownloadBytes,
		TempDir:          c.TempDir,
	}
}

// NewDetector builds the configured detector backend and its labels. A
// labels file, when configured, replaces the backend's built-in labels.
func (c *Config) NewDetector() (detect.Detector, detect.Labels, error) {
	var (
		d      detect.Detector
		labels detect.Labels
	)
	switch c.Detector {
	case BackendRemote:
		var opts []remote.Option
		if c.APIKey != "" {
			opts = append(opts, remote.WithHeader("Authorization", "Bearer "+c.APIKey))
		}
		d = remote.New(c.DetectorURL, opts...)
	case BackendOCR:
		d = textocr.New(textocr.Options{Language: c.OCRLanguage})
		labels = detect.Labels{textocr.Label}
	case BackendBlob:
		opts := blob.DefaultOptions()
		opts.Threshold = uint8(c.BlobThreshold)
		d = blob.New(opts)
		labels = detect.Labels{blob.Label}
	case BackendShape:
		opts := shape.DefaultOptions()
		opts.TextRegions = c.ShapeText
		d = shape.New(opts)
		labels = shape.Labels
	default:
		return nil, nil, fmt.Errorf("unknown detector backend: %s", c.Detector)
	}

	if c.LabelsFile != "" {
		l, err := detect.LoadLabels(c.LabelsFile)
		if err != nil {
			return nil, nil, err
		}
		labels = l
	}
	return d, labels, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
