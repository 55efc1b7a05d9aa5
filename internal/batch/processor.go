package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"iso-slope-tiles/internal/imageio"
	"iso-slope-tiles/internal/montage"
	"iso-slope-tiles/internal/shading"
	"iso-slope-tiles/internal/texture"
)

// Output file name prefixes.
const (
	ShadermapPrefix = "shadermap_"
	TilePrefix      = "processed_"
	ManifestFile    = "manifest.json"
)

// Config holds all shared resources for a batch run.
type Config struct {
	InputDir   string
	OutputDir  string
	Texture    string
	Textures   texture.Resolver
	Extensions []string

	TileWidth  int
	TileHeight int
	Intensity  float64
	Tolerance  float64 // normalized to [0,1]
	Format     imageio.Format
	Workers    int

	// Montage is skipped when nil.
	Montage        montage.Builder
	MontageColumns int
	MontageRows    int
	MontageFile    string

	// Logf receives progress and diagnostic lines. Nil is silent.
	Logf func(format string, args ...any)
}

// Result holds the outcome of processing one mask.
type Result struct {
	Name      string
	Shadermap string
	Tile      string
	Stats     shading.Stats
	Success   bool
	Error     string
}

// Report summarizes a run.
type Report struct {
	Results []Result
	Elapsed time.Duration

	// Skipped lists earlier outputs left out because InputDir == OutputDir.
	Skipped []string

	Montage    string
	MontageErr error
}

// Failed returns the results that did not produce a tile.
func (r Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Success {
			failed = append(failed, res)
		}
	}
	return failed
}

// Run processes every mask in cfg.InputDir using a worker pool, writes the
// manifest, then builds the montage from the tiles that succeeded.
//
// When the input and output folders are the same, files named like earlier
// outputs are left out and listed in Report.Skipped.
//
// The returned error is non-nil only when the run cannot start: the output
// directory cannot be created, the texture cannot be loaded, or the input
// directory cannot be read. Per-file failures land in Report.Results and a
// montage failure in Report.MontageErr.
func Run(ctx context.Context, cfg Config) (Report, error) {
	start := time.Now()
	if cfg.Format == "" {
		cfg.Format = imageio.PNG
	}
	if cfg.MontageFile == "" {
		cfg.MontageFile = "terrain.png"
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".png", ".jpg", ".jpeg"}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return Report{}, fmt.Errorf("batch: output dir: %w", err)
	}

	textures := cfg.Textures
	if textures == nil {
		textures = texture.NewCache()
	}
	tex, err := textures.Resolve(cfg.Texture, cfg.TileWidth, cfg.TileHeight)
	if err != nil {
		return Report{}, fmt.Errorf("batch: texture: %w", err)
	}

	names, err := Discover(cfg.InputDir, cfg.Extensions)
	if err != nil {
		return Report{}, err
	}

	// Earlier outputs in a shared folder are not masks.
	var skipped []string
	if sameDir(cfg.InputDir, cfg.OutputDir) {
		names, skipped = SplitOutputs(names)
		for _, name := range skipped {
			cfg.logf("Skipping %s: output of an earlier run", name)
		}
	}

	results := runPool(ctx, cfg, tex, names)
	report := Report{Results: results, Skipped: skipped}

	if err := WriteManifest(filepath.Join(cfg.OutputDir, ManifestFile), results); err != nil {
		cfg.logf("Warning: manifest write failed: %v", err)
	}

	if cfg.Montage != nil {
		report.Montage, report.MontageErr = buildMontage(ctx, cfg, results)
		if report.MontageErr != nil {
			cfg.logf("Error creating montage: %v", report.MontageErr)
		} else {
			cfg.logf("Montage created: %s", report.Montage)
		}
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

func runPool(ctx context.Context, cfg Config, tex *image.NRGBA, names []string) []Result {
	total := len(names)
	results := make([]Result, total)
	var processed atomic.Int64

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					rate := float64(p) / time.Since(start).Seconds()
					cfg.logf("  [%d/%d] %.1f masks/sec", p, total, rate)
				}
			}
		}
	}()

	// Worker pool
	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = processMask(cfg, tex, names[idx])
				processed.Add(1)
			}
		}()
	}

	// Send work
	sent := 0
send:
	for i := range names {
		select {
		case <-ctx.Done():
			break send
		case jobs <- i:
			sent++
		}
	}
	close(jobs)

	wg.Wait()
	close(done)

	for i := sent; i < total; i++ {
		results[i] = Result{Name: names[i], Error: fmt.Sprintf("skipped: %v", ctx.Err())}
	}
	return results
}

func processMask(cfg Config, tex *image.NRGBA, name string) Result {
	res := Result{Name: name}
	fail := func(err error) Result {
		res.Error = err.Error()
		return res
	}

	img, err := imageio.Load(filepath.Join(cfg.InputDir, name))
	if err != nil {
		return fail(err)
	}
	mask := shading.NewMask(imageio.Resize(img, cfg.TileWidth, cfg.TileHeight))

	factors, stats, err := shading.Classify(mask, cfg.Tolerance)
	if err != nil {
		return fail(err)
	}
	res.Stats = stats

	sm, err := shading.BuildShadermap(factors, mask, cfg.Intensity)
	if err != nil {
		return fail(err)
	}
	res.Shadermap = filepath.Join(cfg.OutputDir, OutputName(ShadermapPrefix, name, cfg.Format))
	if err := imageio.Save(res.Shadermap, sm.Image(), cfg.Format); err != nil {
		return fail(err)
	}

	tile, err := shading.Composite(mask, tex, sm)
	if err != nil {
		return fail(err)
	}
	res.Tile = filepath.Join(cfg.OutputDir, OutputName(TilePrefix, name, cfg.Format))
	if err := imageio.Save(res.Tile, tile, cfg.Format); err != nil {
		return fail(err)
	}

	if cfg.Logf != nil {
		for _, c := range shading.Categories {
			if stats.Direct[c] > 0 {
				cfg.logf("%s: %s: %.2f%% of pixels", name, c, stats.Coverage(c))
			}
		}
		for _, l := range shading.GrayLevels(mask, sm, cfg.Tolerance) {
			cfg.logf("%s: shadermap gray for %s %s: %.3f", name, l.Category, l.Category.Reference().Hex(), l.Gray)
		}
		cfg.logf("Processed %s", name)
	}

	res.Success = true
	return res
}

func buildMontage(ctx context.Context, cfg Config, results []Result) (string, error) {
	var tiles []string
	for _, r := range results {
		if r.Success {
			tiles = append(tiles, r.Tile)
		}
	}
	if len(tiles) == 0 {
		return "", errors.New("batch: no tiles to assemble")
	}

	out := filepath.Join(cfg.OutputDir, cfg.MontageFile)
	layout := montage.Layout{
		CellWidth:  cfg.TileWidth,
		CellHeight: cfg.TileHeight,
		Columns:    cfg.MontageColumns,
		Rows:       cfg.MontageRows,
	}
	if err := cfg.Montage.Build(ctx, tiles, layout, out); err != nil {
		return "", err
	}
	return out, nil
}

// Discover lists mask files in dir with one of exts, sorted by name.
func Discover(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("batch: input dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !imageio.HasExt(name, exts) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SplitOutputs separates names carrying a tile or shadermap prefix from the
// rest. Run applies it only when the input and output folders are the same.
func SplitOutputs(names []string) (masks, outputs []string) {
	for _, name := range names {
		if strings.HasPrefix(name, TilePrefix) || strings.HasPrefix(name, ShadermapPrefix) {
			outputs = append(outputs, name)
		} else {
			masks = append(masks, name)
		}
	}
	return masks, outputs
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// OutputName builds "<prefix><stem><ext>" for an input file name.
func OutputName(prefix, name string, format imageio.Format) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return prefix + stem + format.Ext()
}

func (c Config) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}
