package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/chipdetect-mcp/internal/config"
	"github.com/ironsheep/chipdetect-mcp/internal/imaging"
	"github.com/ironsheep/chipdetect-mcp/internal/logging"
	"github.com/ironsheep/chipdetect-mcp/internal/pipeline"
	"github.com/ironsheep/chipdetect-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	envFile := ""

	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("chipdetect-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("chipdetect-mcp - MCP server for tiled object detection")
			fmt.Println()
			fmt.Println("Usage: chipdetect-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v      Print version information")
			fmt.Println("  --help, -h         Print this help message")
			fmt.Println("  --env-file FILE    Load environment variables from FILE (default .env)")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  CHIPDETECT_DETECTOR=remote|ocr|blob|shape   Detector backend (default blob)")
			fmt.Println("  CHIPDETECT_DETECTOR_URL=URL                 Inference endpoint for the remote backend")
			fmt.Println("  CHIPDETECT_MAX_CHIP_SIDE=512                Largest chip side in pixels")
			fmt.Println("  CHIPDETECT_POLICY=lenient|strict            Chip failure policy")
			fmt.Println("  CHIPDETECT_LOG_LEVEL=debug                  Enable debug logging")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		case "--env-file":
			if len(os.Args) < 3 {
				fmt.Fprintln(os.Stderr, "--env-file requires a file name")
				os.Exit(2)
			}
			envFile = os.Args[2]
		}
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr (stdout is for MCP protocol)
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Debugw("starting chipdetect-mcp",
		"version", Version, "built", BuildTime, "commit", GitCommit,
		"detector", cfg.Detector, "max_chip_side", cfg.Pipeline.MaxChipSide,
		"policy", cfg.Pipeline.Policy.String())

	detector, labels, err := cfg.NewDetector()
	if err != nil {
		logger.Fatalw("failed to create detector", "error", err)
	}

	loaderOpts := cfg.LoaderOptions()
	loaderOpts.Logger = logger

	srv := server.New(server.Options{
		Loader:   imaging.NewLoader(loaderOpts),
		Pipeline: pipeline.New(detector, labels, logger),
		Config:   cfg.Pipeline,
		Logger:   logger,
		Version:  Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatalw("server error", "error", err)
	}
}
