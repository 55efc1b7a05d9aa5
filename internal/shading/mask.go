package shading

import (
	"errors"
	"fmt"
	"image"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	// ErrSizeMismatch is returned when two rasters that must line up pixel
	// for pixel have different dimensions.
	ErrSizeMismatch = errors.New("shading: size mismatch")

	// ErrEmptyMask is returned for a mask with no pixels.
	ErrEmptyMask = errors.New("shading: empty mask")
)

// Mask is a slope mask with every component normalized to [0,1].
// Pixels are stored row-major; index = y*Width + x.
type Mask struct {
	Width  int
	Height int
	RGB    []colorful.Color
	Alpha  []float64
}

// NewMask normalizes an 8-bit NRGBA image into a Mask.
func NewMask(img *image.NRGBA) Mask {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	m := Mask{
		Width:  w,
		Height: h,
		RGB:    make([]colorful.Color, w*h),
		Alpha:  make([]float64, w*h),
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			i := y*w + x
			m.RGB[i] = colorful.Color{
				R: float64(img.Pix[si]) / 255.0,
				G: float64(img.Pix[si+1]) / 255.0,
				B: float64(img.Pix[si+2]) / 255.0,
			}
			m.Alpha[i] = float64(img.Pix[si+3]) / 255.0
		}
	}
	return m
}

// Len returns the number of pixels.
func (m Mask) Len() int { return m.Width * m.Height }

func (m Mask) validate() error {
	n := m.Width * m.Height
	if n <= 0 {
		return ErrEmptyMask
	}
	if len(m.RGB) != n || len(m.Alpha) != n {
		return fmt.Errorf("%w: mask %dx%d has %d colors and %d alpha values",
			ErrSizeMismatch, m.Width, m.Height, len(m.RGB), len(m.Alpha))
	}
	return nil
}
