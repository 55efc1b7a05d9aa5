package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"iso-slope-tiles/internal/batch"
	"iso-slope-tiles/internal/config"
	"iso-slope-tiles/internal/imageio"
	"iso-slope-tiles/internal/montage"
	"iso-slope-tiles/internal/texture"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config.json file")
	inputDir := flag.String("input", "", "Folder of slope masks (default: ./Input)")
	outputDir := flag.String("output", "", "Output folder (default: ./Output)")
	texturePath := flag.String("texture", "", "Texture image (default: ./texture.png)")
	size := flag.String("size", "", "Tile size WxH (default: 256x128)")
	intensity := flag.Float64("intensity", config.DefaultIntensity, "Base shading intensity; 0 applies the texture unshaded")
	tolerance := flag.Float64("tolerance", 0, "Marker color tolerance, 0-255 (default: 75)")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: 1)")
	format := flag.String("format", "", "Output format: png or webp (default: png)")
	montageTool := flag.String("montage", "", "Montage tool: magick, native, auto or none (default: magick)")
	grid := flag.String("grid", "", "Montage grid CxR (default: 4x6)")
	quiet := flag.Bool("quiet", false, "Only print the summary")

	flag.Parse()

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	flags := config.Flags{
		InputDir:    *inputDir,
		OutputDir:   *outputDir,
		Texture:     *texturePath,
		Tolerance:   *tolerance,
		Workers:     *workers,
		Format:      *format,
		MontageTool: *montageTool,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "intensity" {
			flags.Intensity = intensity
		}
	})
	if *size != "" {
		w, h, err := config.ParseDims(*size)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: -size: %v\n", err)
			os.Exit(2)
		}
		flags.TileWidth, flags.TileHeight = w, h
	}
	if *grid != "" {
		c, r, err := config.ParseDims(*grid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: -grid: %v\n", err)
			os.Exit(2)
		}
		flags.Columns, flags.Rows = c, r
	}

	// CLI flags override config file
	cfg.Resolve(flags)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	outFormat, _ := imageio.ParseFormat(cfg.OutputFormat)

	var builder montage.Builder
	if cfg.MontageTool != "none" {
		var err error
		builder, err = montage.New(cfg.MontageTool)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
	}

	fmt.Printf("Slope masks → textured tiles\n")
	fmt.Printf("Input: %s, Texture: %s\n", cfg.InputDir, cfg.Texture)
	fmt.Printf("Tile: %dx%d, Intensity: %.2f, Tolerance: %.0f/255, Workers: %d\n",
		cfg.TileWidth, cfg.TileHeight, cfg.Intensity(), cfg.ColorTolerance, cfg.Workers)
	fmt.Printf("Output: %s (%s)\n", cfg.OutputDir, outFormat)
	fmt.Println("------------------------------------------------------------")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	batchCfg := batch.Config{
		InputDir:       cfg.InputDir,
		OutputDir:      cfg.OutputDir,
		Texture:        cfg.Texture,
		Textures:       texture.NewCache(),
		Extensions:     cfg.Extensions,
		TileWidth:      cfg.TileWidth,
		TileHeight:     cfg.TileHeight,
		Intensity:      cfg.Intensity(),
		Tolerance:      cfg.Tolerance(),
		Format:         outFormat,
		Workers:        cfg.Workers,
		Montage:        builder,
		MontageColumns: cfg.MontageColumns,
		MontageRows:    cfg.MontageRows,
		MontageFile:    cfg.MontageFile,
	}
	if !*quiet {
		batchCfg.Logf = func(format string, args ...any) {
			fmt.Printf(format+"\n", args...)
		}
	}

	report, err := batch.Run(ctx, batchCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", report.Elapsed.Seconds())

	failed := report.Failed()
	fmt.Printf("Processed: %d/%d\n", len(report.Results)-len(failed), len(report.Results))

	if len(failed) > 0 {
		fmt.Printf("\nFailed (%d):\n", len(failed))
		limit := min(20, len(failed))
		for _, r := range failed[:limit] {
			fmt.Printf("  %s: %s\n", r.Name, r.Error)
		}
	}

	manifest := filepath.Join(cfg.OutputDir, batch.ManifestFile)
	if entries, err := batch.ReadManifest(manifest); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s (%d entries)\n", manifest, len(entries))
	}
	if len(report.Skipped) > 0 {
		fmt.Printf("Skipped %d earlier outputs in the input folder\n", len(report.Skipped))
	}

	if report.MontageErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: montage failed: %v\n", report.MontageErr)
	} else if report.Montage != "" {
		fmt.Printf("Montage: %s\n", report.Montage)
	}

	if len(failed) > 0 {
		os.Exit(1)
	}
}
