package imageio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/draw"
)

// ErrUnsupportedFormat is returned for an unknown output format name.
var ErrUnsupportedFormat = errors.New("imageio: unsupported format")

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// Load reads and decodes a raster file (png, jpeg, tga or webp) and returns
// it as NRGBA with bounds starting at the origin.
func Load(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: cannot open image %s: %w", path, err)
	}
	defer f.Close()

	img, err := decode(bufio.NewReader(f), strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("imageio: decode %s: %w", path, err)
	}
	return ToNRGBA(img), nil
}

// decode picks a decoder from the leading bytes. TGA has no signature, so
// it is chosen by extension.
func decode(r *bufio.Reader, ext string) (image.Image, error) {
	head, err := r.Peek(12)
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, pngMagic):
		return png.Decode(r)
	case len(head) >= 2 && head[0] == 0xFF && head[1] == 0xD8:
		return jpeg.Decode(r)
	case len(head) >= 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == "WEBP":
		return nativewebp.Decode(r)
	case ext == ".tga":
		return tga.Decode(r)
	}
	img, _, err := image.Decode(r)
	return img, err
}

// ToNRGBA converts any image to NRGBA. Sources without an alpha channel
// come out fully opaque.
func ToNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
