// Command chipdetect runs tiled object detection on one image from the
// command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	flagEnvFile       = "env-file"
	flagDebug         = "debug"
	flagImage         = "image"
	flagForceDownload = "force-download"
	flagDetector      = "detector"
	flagDetectorURL   = "detector-url"
	flagLabels        = "labels"
	flagMaxChipSide   = "max-chip-side"
	flagDownsample    = "downsample"
	flagOverlap       = "overlap"
	flagLayout        = "layout"
	flagConf          = "conf"
	flagIoU           = "iou"
	flagSmallBox      = "small-box-overlap"
	flagStrict        = "strict"
	flagWorkers       = "workers"
	flagOutput        = "output"
	flagAnnotateChips = "annotate-chips"
	flagJSON          = "json"
	flagOverlay       = "overlay"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	sourceFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     flagImage,
			Aliases:  []string{"i"},
			Usage:    "image `PATH` or http(s) URL",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  flagForceDownload,
			Usage: "allow downloading a remote GeoTIFF",
		},
		&cli.IntFlag{
			Name:  flagMaxChipSide,
			Usage: "largest chip side in pixels",
		},
		&cli.IntFlag{
			Name:  flagDownsample,
			Usage: "downsample `FACTOR` applied before tiling",
		},
		&cli.IntFlag{
			Name:  flagOverlap,
			Usage: "pixels shared by adjacent chips",
		},
		&cli.StringFlag{
			Name:  flagLayout,
			Usage: "chip layout: fixed or balanced",
		},
	}

	detectFlags := append([]cli.Flag{
		&cli.StringFlag{
			Name:  flagDetector,
			Usage: "detector backend: remote, ocr, blob or shape",
		},
		&cli.StringFlag{
			Name:  flagDetectorURL,
			Usage: "inference endpoint `URL` for the remote backend",
		},
		&cli.StringFlag{
			Name:  flagLabels,
			Usage: "labels `FILE`, one class name per line",
		},
		&cli.Float64Flag{
			Name:  flagConf,
			Usage: "drop detections below this confidence before merging",
		},
		&cli.Float64Flag{
			Name:  flagIoU,
			Usage: "IoU above which same-class boxes are merged",
		},
		&cli.Float64Flag{
			Name:  flagSmallBox,
			Usage: "also merge boxes covered by more than this fraction (0 disables)",
		},
		&cli.BoolFlag{
			Name:  flagStrict,
			Usage: "abort on the first failed chip instead of skipping it",
		},
		&cli.IntFlag{
			Name:  flagWorkers,
			Usage: "number of chips processed concurrently",
		},
		&cli.StringFlag{
			Name:    flagOutput,
			Aliases: []string{"o"},
			Usage:   "write the annotated image to `FILE`",
		},
		&cli.StringFlag{
			Name:  flagAnnotateChips,
			Usage: "write every annotated chip to `DIR`",
		},
		&cli.BoolFlag{
			Name:  flagJSON,
			Usage: "print the result as JSON",
		},
	}, sourceFlags...)

	chipsFlags := append([]cli.Flag{
		&cli.StringFlag{
			Name:  flagOverlay,
			Usage: "write the image with the chip grid drawn to `FILE`",
		},
		&cli.BoolFlag{
			Name:  flagJSON,
			Usage: "print the plan as JSON",
		},
	}, sourceFlags...)

	return &cli.App{
		Name:            "chipdetect",
		Usage:           "tiled object detection for large images",
		Version:         fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit),
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagEnvFile,
				Usage: "load environment variables from `FILE` (default .env)",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "detect objects in an image",
				UsageText: "chipdetect detect --image PATH|URL [options]",
				Flags:     detectFlags,
				Action:    DetectAction,
			},
			{
				Name:      "chips",
				Usage:     "print the chip grid of an image",
				UsageText: "chipdetect chips --image PATH|URL [options]",
				Flags:     chipsFlags,
				Action:    ChipsAction,
			},
		},
	}
}
