package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ironsheep/chipdetect-mcp/internal/chipper"
	"github.com/ironsheep/chipdetect-mcp/internal/config"
	"github.com/ironsheep/chipdetect-mcp/internal/imaging"
	"github.com/ironsheep/chipdetect-mcp/internal/logging"
	"github.com/ironsheep/chipdetect-mcp/internal/pipeline"
	"github.com/ironsheep/chipdetect-mcp/internal/render"
)

// setup loads the environment configuration, applies the command-line
// overrides and builds the logger.
func setup(c *cli.Context) (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load(c.String(flagEnvFile))
	if err != nil {
		return nil, nil, err
	}

	p := &cfg.Pipeline
	if c.IsSet(flagMaxChipSide) {
		p.MaxChipSide = c.Int(flagMaxChipSide)
	}
	if c.IsSet(flagDownsample) {
		p.DownsampleFactor = c.Int(flagDownsample)
	}
	if c.IsSet(flagOverlap) {
		p.OverlapMargin = c.Int(flagOverlap)
	}
	if c.IsSet(flagLayout) {
		if p.Layout, err = chipper.ParseLayout(c.String(flagLayout)); err != nil {
			return nil, nil, err
		}
	}
	if c.IsSet(flagConf) {
		p.ConfidenceThreshold = c.Float64(flagConf)
	}
	if c.IsSet(flagIoU) {
		p.IoUThreshold = c.Float64(flagIoU)
	}
	if c.IsSet(flagSmallBox) {
		p.SmallBoxOverlap = c.Float64(flagSmallBox)
	}
	if c.IsSet(flagWorkers) {
		p.Workers = c.Int(flagWorkers)
	}
	if c.Bool(flagStrict) {
		p.Policy = pipeline.Strict
	}
	if c.IsSet(flagDetector) {
		cfg.Detector = c.String(flagDetector)
	}
	if c.IsSet(flagDetectorURL) {
		cfg.DetectorURL = c.String(flagDetectorURL)
	}
	if c.IsSet(flagLabels) {
		cfg.LabelsFile = c.String(flagLabels)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	if c.Bool(flagDebug) {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func loadImage(c *cli.Context, cfg *config.Config, logger *zap.SugaredLogger) (*imaging.Raster, error) {
	opts := cfg.LoaderOptions()
	opts.Logger = logger
	loader := imaging.NewLoader(opts)
	return loader.Load(c.Context, c.String(flagImage), imaging.LoadOptions{ForceFetch: c.Bool(flagForceDownload)})
}

// DetectAction runs the detection pipeline on one image.
func DetectAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	chipDir := c.String(flagAnnotateChips)
	if chipDir != "" {
		cfg.Pipeline.PerChipOutput = true
	}

	detector, labels, err := cfg.NewDetector()
	if err != nil {
		return err
	}
	r, err := loadImage(c, cfg, logger)
	if err != nil {
		return err
	}

	res, err := pipeline.New(detector, labels, logger).Run(c.Context, r, cfg.Pipeline)
	if err != nil {
		return err
	}

	if out := c.String(flagOutput); out != "" {
		img, err := render.Detections(r.Image, res.Detections, render.DefaultOptions())
		if err != nil {
			return err
		}
		if err := render.Save(img, out); err != nil {
			return err
		}
		logger.Infow("wrote annotated image", "file", out)
	}
	if chipDir != "" {
		if err := writeChipAnnotations(chipDir, r, res, cfg.Pipeline); err != nil {
			return err
		}
		logger.Infow("wrote annotated chips", "dir", chipDir, "chips", len(res.Chips))
	}

	if c.Bool(flagJSON) {
		return writeJSON(c, res)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "%s: %dx%d, %d chips (scale %d), %d detections\n",
		r.Source, res.Width, res.Height, res.ChipCount, res.Scale, res.Count)
	for _, d := range res.Detections {
		fmt.Fprintf(w, "  %s\n", d)
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "  skipped chip %d at (%d,%d): %s\n", s.Index, s.Origin.X, s.Origin.Y, s.Reason)
	}
	return nil
}

// writeChipAnnotations saves every chip with its chip-local detections drawn
// as chip_<n>_annotated.png, numbering chips from 1.
func writeChipAnnotations(dir string, r *imaging.Raster, res *pipeline.Result, cfg pipeline.Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	c, err := chipper.New(cfg.ChipperOptions())
	if err != nil {
		return err
	}
	tiles, err := c.Plan(r.Image)
	if err != nil {
		return err
	}

	for _, a := range res.Chips {
		chip := tiles.At(a.Index)
		img, err := render.Detections(chip.Pixels, a.Detections, render.DefaultOptions())
		if err != nil {
			return err
		}
		name := filepath.Join(dir, fmt.Sprintf("chip_%d_annotated.png", a.Index+1))
		if err := render.Save(img, name); err != nil {
			return err
		}
	}
	return nil
}

// ChipsAction prints the chip grid of one image.
func ChipsAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ch, err := chipper.New(cfg.Pipeline.ChipperOptions())
	if err != nil {
		return err
	}
	r, err := loadImage(c, cfg, logger)
	if err != nil {
		return err
	}
	tiles, err := ch.Plan(r.Image)
	if err != nil {
		return err
	}
	chips := tiles.Chips()

	if out := c.String(flagOverlay); out != "" {
		img, err := render.ChipGrid(r.Image, chips, render.GridOptions{Color: render.DefaultGridColor, ShowIndex: true})
		if err != nil {
			return err
		}
		if err := render.Save(img, out); err != nil {
			return err
		}
	}

	if c.Bool(flagJSON) {
		type chipJSON struct {
			Index  int    `json:"index"`
			Row    int    `json:"row"`
			Col    int    `json:"col"`
			Origin [2]int `json:"origin"`
			Source [4]int `json:"source"`
		}
		out := make([]chipJSON, 0, len(chips))
		for _, chip := range chips {
			sr := chip.SourceRect()
			out = append(out, chipJSON{
				Index:  chip.Index,
				Row:    chip.Row,
				Col:    chip.Col,
				Origin: [2]int{chip.Origin.X, chip.Origin.Y},
				Source: [4]int{sr.Min.X, sr.Min.Y, sr.Max.X, sr.Max.Y},
			})
		}
		return writeJSON(c, out)
	}

	w := c.App.Writer
	size := tiles.SourceSize()
	fmt.Fprintf(w, "%s: %dx%d, scale %d, %d x %d chips\n",
		r.Source, size.X, size.Y, tiles.Scale(), tiles.Columns(), tiles.Rows())
	for _, chip := range chips {
		fmt.Fprintf(w, "  %s source %v\n", chip, chip.SourceRect())
	}
	return nil
}

func writeJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
