package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"iso-slope-tiles/internal/imageio"
	"iso-slope-tiles/internal/montage"
	"iso-slope-tiles/internal/shading"
)

type fixture struct {
	in, out, texture string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		in:      filepath.Join(root, "Input"),
		out:     filepath.Join(root, "Output"),
		texture: filepath.Join(root, "texture.png"),
	}
	if err := os.MkdirAll(f.in, 0755); err != nil {
		t.Fatal(err)
	}

	mask := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	mask.SetNRGBA(0, 0, color.NRGBA{0, 255, 255, 255})
	mask.SetNRGBA(1, 0, color.NRGBA{255, 0, 255, 255})
	mask.SetNRGBA(0, 1, color.NRGBA{255, 255, 0, 255})
	mustSave(t, filepath.Join(f.in, "slope_a.png"), mask)

	tex := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range tex.Pix {
		tex.Pix[i] = 255
	}
	mustSave(t, f.texture, tex)

	if err := os.WriteFile(filepath.Join(f.in, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	return f
}

func mustSave(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := imageio.Save(path, img, imageio.PNG); err != nil {
		t.Fatalf("Save %s: %v", path, err)
	}
}

func (f fixture) config() Config {
	return Config{
		InputDir:       f.in,
		OutputDir:      f.out,
		Texture:        f.texture,
		TileWidth:      2,
		TileHeight:     2,
		Intensity:      shading.DefaultIntensity,
		Tolerance:      shading.DefaultTolerance,
		Format:         imageio.PNG,
		Workers:        2,
		Montage:        montage.Native{},
		MontageColumns: 2,
		MontageRows:    1,
		MontageFile:    "terrain.png",
	}
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(filepath.Join(f.in, "slope_b.png"), []byte("broken"), 0644); err != nil {
		t.Fatal(err)
	}

	var (
		mu    sync.Mutex
		lines []string
	)
	cfg := f.config()
	cfg.Workers = 1
	cfg.Logf = func(format string, args ...any) {
		mu.Lock()
		lines = append(lines, format)
		mu.Unlock()
	}

	report, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}

	a, b := report.Results[0], report.Results[1]
	if a.Name != "slope_a.png" || !a.Success {
		t.Fatalf("slope_a: %+v", a)
	}
	if b.Name != "slope_b.png" || b.Success || !strings.Contains(b.Error, "decode") {
		t.Fatalf("slope_b: %+v", b)
	}
	if len(report.Failed()) != 1 {
		t.Errorf("Failed() = %d, want 1", len(report.Failed()))
	}
	if len(lines) == 0 {
		t.Error("Logf was never called")
	}

	tile, err := imageio.Load(filepath.Join(f.out, "processed_slope_a.png"))
	if err != nil {
		t.Fatalf("load tile: %v", err)
	}
	want := []struct {
		x, y int
		c    color.NRGBA
	}{
		{0, 0, color.NRGBA{255, 255, 255, 255}},
		{1, 0, color.NRGBA{102, 102, 102, 255}},
		{0, 1, color.NRGBA{153, 153, 153, 255}},
		{1, 1, color.NRGBA{0, 0, 0, 0}},
	}
	for _, w := range want {
		if got := tile.NRGBAAt(w.x, w.y); got != w.c {
			t.Errorf("tile(%d,%d) = %v, want %v", w.x, w.y, got, w.c)
		}
	}

	sm, err := imageio.Load(filepath.Join(f.out, "shadermap_slope_a.png"))
	if err != nil {
		t.Fatalf("load shadermap: %v", err)
	}
	if got := sm.NRGBAAt(1, 0); got != (color.NRGBA{102, 102, 102, 255}) {
		t.Errorf("shadermap(1,0) = %v", got)
	}

	if report.MontageErr != nil {
		t.Fatalf("montage: %v", report.MontageErr)
	}
	sheet, err := imageio.Load(report.Montage)
	if err != nil {
		t.Fatalf("load montage: %v", err)
	}
	if sheet.Bounds() != image.Rect(0, 0, 4, 2) {
		t.Errorf("montage bounds = %v, want 4x2", sheet.Bounds())
	}

	entries, err := ReadManifest(filepath.Join(f.out, ManifestFile))
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("manifest has %d entries", len(entries))
	}
	if entries[0].Tile != "processed_slope_a.png" || entries[0].Coverage["unshaded"] != 25 {
		t.Errorf("manifest[0] = %+v", entries[0])
	}
	if entries[1].Error == "" {
		t.Errorf("manifest[1] should carry the error")
	}
}

type failingMontage struct{}

func (failingMontage) Name() string { return "failing" }

func (failingMontage) Build(context.Context, []string, montage.Layout, string) error {
	return errors.New("exit status 1")
}

func TestRunMontageFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Montage = failingMontage{}

	report, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.MontageErr == nil {
		t.Fatal("MontageErr = nil, want the montage failure")
	}
	if report.Montage != "" {
		t.Errorf("Montage = %q, want empty", report.Montage)
	}
	for _, name := range []string{"processed_slope_a.png", "shadermap_slope_a.png"} {
		if _, err := os.Stat(filepath.Join(f.out, name)); err != nil {
			t.Errorf("%s should survive the montage failure: %v", name, err)
		}
	}
}

func TestRunMissingTextureIsFatal(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Texture = filepath.Join(f.in, "missing.png")

	_, err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "cannot open image") {
		t.Fatalf("err = %v, want cannot open image", err)
	}
}

func TestRunMissingInputDir(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.InputDir = filepath.Join(f.in, "nope")

	if _, err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error for missing input dir")
	}
}

func TestRunOutputDirIdempotent(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Montage = nil

	for i := 0; i < 2; i++ {
		report, err := Run(context.Background(), cfg)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if len(report.Failed()) != 0 {
			t.Fatalf("run %d: failures %+v", i, report.Failed())
		}
	}
}

func TestRunWebP(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Format = imageio.WebP
	cfg.Montage = nil

	report, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := filepath.Base(report.Results[0].Tile); got != "processed_slope_a.webp" {
		t.Errorf("tile = %s", got)
	}
	if _, err := imageio.Load(report.Results[0].Tile); err != nil {
		t.Errorf("load webp tile: %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Montage = nil
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, r := range report.Results {
		if !r.Success && !strings.HasPrefix(r.Error, "skipped") {
			t.Errorf("%s: unexpected error %q", r.Name, r.Error)
		}
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.PNG", "a.jpg", "c.jpeg", "d.gif", "processed_a.png", "shadermap_a.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := Discover(dir, []string{".png", ".jpg", ".jpeg"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{"a.jpg", "b.PNG", "c.jpeg", "processed_a.png", "shadermap_a.png"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestSplitOutputs(t *testing.T) {
	masks, outputs := SplitOutputs([]string{"a.png", "processed_ramp.png", "ramp.png", "shadermap_edge.png"})
	if got := strings.Join(masks, ","); got != "a.png,ramp.png" {
		t.Errorf("masks = %v", masks)
	}
	if got := strings.Join(outputs, ","); got != "processed_ramp.png,shadermap_edge.png" {
		t.Errorf("outputs = %v", outputs)
	}
}

func TestRunProcessesPrefixedInputs(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"processed_ramp.png", "shadermap_edge.png"} {
		data, err := os.ReadFile(filepath.Join(f.in, "slope_a.png"))
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(f.in, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := f.config()
	cfg.Montage = nil

	report, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != 3 || len(report.Failed()) != 0 {
		t.Fatalf("results = %+v", report.Results)
	}
	if len(report.Skipped) != 0 {
		t.Errorf("Skipped = %v, want none", report.Skipped)
	}
	if _, err := os.Stat(filepath.Join(f.out, "processed_processed_ramp.png")); err != nil {
		t.Errorf("prefixed input was not processed: %v", err)
	}
}

func TestRunSharedFolderSkipsEarlierOutputs(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.OutputDir = f.in
	cfg.Montage = nil

	var (
		mu    sync.Mutex
		lines []string
	)
	cfg.Logf = func(format string, args ...any) {
		mu.Lock()
		lines = append(lines, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	for run := 0; run < 2; run++ {
		report, err := Run(context.Background(), cfg)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if len(report.Results) != 1 || report.Results[0].Name != "slope_a.png" {
			t.Fatalf("run %d: results = %+v", run, report.Results)
		}
		wantSkipped := 0
		if run == 1 {
			wantSkipped = 2
		}
		if len(report.Skipped) != wantSkipped {
			t.Errorf("run %d: Skipped = %v, want %d", run, report.Skipped, wantSkipped)
		}
	}

	logged := strings.Join(lines, "\n")
	for _, name := range []string{"processed_slope_a.png", "shadermap_slope_a.png"} {
		if !strings.Contains(logged, "Skipping "+name) {
			t.Errorf("no skip line for %s", name)
		}
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		prefix, name string
		format       imageio.Format
		want         string
	}{
		{TilePrefix, "slope.png", imageio.PNG, "processed_slope.png"},
		{TilePrefix, "slope.jpg", imageio.PNG, "processed_slope.png"},
		{ShadermapPrefix, "slope.v2.png", imageio.WebP, "shadermap_slope.v2.webp"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.prefix, tt.name, tt.format); got != tt.want {
			t.Errorf("OutputName(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}
