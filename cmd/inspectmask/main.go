package main

import (
	"flag"
	"fmt"
	"image"
	"os"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"

	"iso-slope-tiles/internal/config"
	"iso-slope-tiles/internal/imageio"
	"iso-slope-tiles/internal/shading"
)

func main() {
	size := flag.String("size", "", "Resize to WxH before classifying (default: native size)")
	tolerance := flag.Float64("tolerance", config.DefaultTolerance, "Marker color tolerance, 0-255")
	intensity := flag.Float64("intensity", config.DefaultIntensity, "Base shading intensity")
	top := flag.Int("top", 5, "Number of dominant colors to list")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: inspectmask [flags] mask.png...")
		os.Exit(2)
	}

	var w, h int
	if *size != "" {
		var err error
		w, h, err = config.ParseDims(*size)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
	}

	status := 0
	for _, path := range flag.Args() {
		if err := inspect(path, w, h, *tolerance/255.0, *intensity, *top); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			status = 1
		}
	}
	os.Exit(status)
}

func inspect(path string, w, h int, tol, intensity float64, top int) error {
	img, err := imageio.Load(path)
	if err != nil {
		return err
	}
	if w > 0 && h > 0 {
		img = imageio.Resize(img, w, h)
	}
	b := img.Bounds()
	fmt.Printf("%s: %dx%d\n", path, b.Dx(), b.Dy())

	opaque := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 0 {
			opaque++
		}
	}
	fmt.Printf("  Footprint: %d/%d pixels (%.1f%%)\n", opaque, b.Dx()*b.Dy(), 100*float64(opaque)/float64(b.Dx()*b.Dy()))
	fmt.Printf("  Unique RGB values: %d\n", uniqueColors(img))

	fmt.Println("  Dominant colors:")
	for _, c := range dominantcolor.FindWeight(img, top) {
		col, _ := colorful.MakeColor(c.RGBA)
		fmt.Printf("    %s  %5.1f%%  nearest=%s\n", col.Hex(), c.Weight*100, nearest(col))
	}

	mask := shading.NewMask(img)
	factors, stats, err := shading.Classify(mask, tol)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Println("  Classification:")
	for _, c := range shading.Categories {
		fmt.Printf("    %-15s direct %6.2f%%  snapped %d\n", c, stats.Coverage(c), stats.Snapped[c])
	}
	for _, p := range []shading.Pair{shading.PairUnshadedLightly, shading.PairLightlyHeavily, shading.PairUnshadedHeavily} {
		if n := stats.Interpolated[p]; n > 0 {
			fmt.Printf("    blended %-30s %d\n", p, n)
		}
	}
	if stats.Degenerate > 0 {
		fmt.Printf("    degenerate %d\n", stats.Degenerate)
	}

	sm, err := shading.BuildShadermap(factors, mask, intensity)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Println("  Shadermap gray:")
	for _, l := range shading.GrayLevels(mask, sm, tol) {
		fmt.Printf("    %-15s %s  %.3f (%d px)\n", l.Category, l.Category.Reference().Hex(), l.Gray, l.Pixels)
	}
	return nil
}

func uniqueColors(img *image.NRGBA) int {
	seen := make(map[[3]uint8]struct{})
	for i := 0; i < len(img.Pix); i += 4 {
		seen[[3]uint8{img.Pix[i], img.Pix[i+1], img.Pix[i+2]}] = struct{}{}
	}
	return len(seen)
}

func nearest(c colorful.Color) shading.Category {
	best := shading.Unshaded
	bestDist := c.DistanceRgb(best.Reference())
	for _, cat := range shading.Categories[1:] {
		if d := c.DistanceRgb(cat.Reference()); d < bestDist {
			best, bestDist = cat, d
		}
	}
	return best
}
