// Package pipeline runs tiled object detection over one image: it splits the
// image into chips, runs the detector on every chip through a bounded worker
// pool, remaps the chip-local detections into source coordinates and merges
// duplicates across chip seams.
package pipeline

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/chipdetect-mcp/internal/chipper"
	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
	"github.com/ironsheep/chipdetect-mcp/internal/imaging"
	"github.com/ironsheep/chipdetect-mcp/internal/merge"
	"github.com/ironsheep/chipdetect-mcp/internal/remap"
)

// Pipeline binds a detector backend to the tiling and merge stages. It is
// safe for concurrent use; every Run gets its own chip grid and result slots.
type Pipeline struct {
	adapter *detect.Adapter
	logger  *zap.SugaredLogger
}

// New creates a pipeline around detector. labels may be nil.
func New(detector detect.Detector, labels detect.Labels, logger *zap.SugaredLogger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{
		adapter: detect.NewAdapter(detector, labels),
		logger:  logger,
	}
}

// chipOutcome is the result slot owned by one chip. Only the worker that
// handles the chip writes it, and it is read after the pool has drained.
type chipOutcome struct {
	done   bool
	local  []detect.Detection
	global []detect.Detection
	err    error
}

// Run detects objects in r.
//
// Geometry errors from the chipper are returned before any inference runs.
// Under the Strict policy the first chip failure cancels the remaining chips
// and is returned. Under the Lenient policy failed chips are listed in
// Result.Skipped, as are chips that never ran because ctx was cancelled.
// A *geometry.GeometryError after remapping is fatal under both policies.
func (p *Pipeline) Run(ctx context.Context, r *imaging.Raster, cfg Config) (*Result, error) {
	if r == nil || r.Image == nil {
		return nil, fmt.Errorf("no image to process")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ch, err := chipper.New(cfg.ChipperOptions())
	if err != nil {
		return nil, err
	}
	tiles, err := ch.Plan(r.Image)
	if err != nil {
		return nil, err
	}

	size := tiles.SourceSize()
	n := tiles.Len()
	p.logger.Debugw("planned chips",
		"source", r.Source,
		"width", size.X, "height", size.Y,
		"chips", n, "rows", tiles.Rows(), "cols", tiles.Columns(),
		"scale", tiles.Scale(), "workers", cfg.workers())

	outcomes := make([]chipOutcome, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return p.runChip(gctx, tiles, i, cfg.Policy, &outcomes[i])
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if cfg.Policy == Strict {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return p.assemble(r, tiles, outcomes, cfg, ctx.Err()), nil
}

// RunImage runs the pipeline on an in-memory image without a geotransform.
func (p *Pipeline) RunImage(ctx context.Context, img image.Image, cfg Config) (*Result, error) {
	return p.Run(ctx, &imaging.Raster{Image: img, Source: "memory"}, cfg)
}

func (p *Pipeline) runChip(ctx context.Context, tiles *chipper.Tiles, i int, policy Policy, out *chipOutcome) error {
	chip := tiles.At(i)

	local, err := p.adapter.Detect(ctx, chip)
	if err != nil {
		out.done = true
		out.err = err
		if policy == Strict {
			return err
		}
		p.logger.Warnw("skipping chip", "index", chip.Index, "origin", chip.Origin.String(), "error", err)
		return nil
	}

	global, err := remap.Chip(local, chip)
	if err != nil {
		return err
	}
	for j, d := range global {
		clamped, err := remap.ClampToImage(d, tiles.SourceSize())
		if err != nil {
			return fmt.Errorf("%s: %w", chip, err)
		}
		global[j] = clamped
	}

	out.done = true
	out.local = local
	out.global = global
	p.logger.Debugw("chip done", "index", chip.Index, "origin", chip.Origin.String(), "detections", len(local))
	return nil
}

// assemble concatenates chip outputs in row-major order, applies the
// confidence pre-filter and merges.
func (p *Pipeline) assemble(r *imaging.Raster, tiles *chipper.Tiles, outcomes []chipOutcome, cfg Config, ctxErr error) *Result {
	size := tiles.SourceSize()
	res := &Result{
		Width:     size.X,
		Height:    size.Y,
		ChipCount: tiles.Len(),
		Scale:     tiles.Scale(),
		Transform: r.Transform,
	}

	var pooled []detect.Detection
	for i, o := range outcomes {
		chip := tiles.Chip(i)

		if !o.done || o.err != nil {
			reason := "not dispatched"
			if o.err != nil {
				reason = o.err.Error()
			} else if ctxErr != nil {
				reason = fmt.Sprintf("not dispatched: %v", ctxErr)
			}
			res.Skipped = append(res.Skipped, SkippedChip{
				Index:  i,
				Origin: geometry.PointFrom(chip.Origin),
				Reason: reason,
			})
		}

		if cfg.PerChipOutput {
			local := o.local
			if local == nil {
				local = []detect.Detection{}
			}
			res.Chips = append(res.Chips, ChipArtifact{
				Index:      i,
				Origin:     geometry.PointFrom(chip.Origin),
				Scale:      chip.Scale,
				Source:     geometry.BoxFromRect(chip.SourceRect()),
				Detections: local,
				Failed:     !o.done || o.err != nil,
			})
		}

		for _, d := range o.global {
			if d.Confidence >= cfg.ConfidenceThreshold {
				pooled = append(pooled, d)
			}
		}
	}

	res.Detections = merge.NMS(pooled, cfg.mergeOptions())
	res.Count = len(res.Detections)
	res.Partial = len(res.Skipped) > 0

	if res.Partial {
		p.logger.Warnw("partial result", "source", r.Source, "skipped", len(res.Skipped), "chips", res.ChipCount)
	}
	p.logger.Infow("detection complete",
		"source", r.Source,
		"chips", res.ChipCount,
		"candidates", len(pooled),
		"detections", res.Count)

	return res
}
