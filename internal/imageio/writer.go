package imageio

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
)

// Format is an output encoding.
type Format string

const (
	PNG  Format = "png"
	WebP Format = "webp"
)

// ParseFormat accepts "png" or "webp", case-insensitively. Empty means PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// Save encodes img to path, creating parent directories as needed.
func Save(path string, img image.Image, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("imageio: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imageio: create %s: %w", path, err)
	}

	switch format {
	case WebP:
		err = nativewebp.Encode(f, img, nil)
	case PNG:
		err = png.Encode(f, img)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("imageio: encode %s: %w", path, err)
	}
	return nil
}

// HasExt reports whether name ends in one of exts, ignoring case.
func HasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
