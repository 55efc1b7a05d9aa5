package shading

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/stat"
)

// DefaultIntensity scales shading factors into shadermap darkness.
const DefaultIntensity = 0.4

// Shadermap is the per-pixel multiplier applied to the texture.
// All three color channels share Gray. Values are not clamped.
type Shadermap struct {
	Width  int
	Height int
	Gray   []float64
	Alpha  []float64
}

// BuildShadermap turns shading factors into multipliers of
// 1 - factor*intensity. Alpha is copied from the mask.
func BuildShadermap(f *FactorMap, m Mask, intensity float64) (*Shadermap, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	w, h := f.Dims()
	if w != m.Width || h != m.Height {
		return nil, fmt.Errorf("%w: factors %dx%d, mask %dx%d", ErrSizeMismatch, w, h, m.Width, m.Height)
	}

	factors := f.Values()
	sm := &Shadermap{
		Width:  w,
		Height: h,
		Gray:   make([]float64, len(factors)),
		Alpha:  make([]float64, len(factors)),
	}
	for i, v := range factors {
		sm.Gray[i] = 1.0 - v*intensity
	}
	copy(sm.Alpha, m.Alpha)
	return sm, nil
}

// Image renders the shadermap as an 8-bit grayscale-with-alpha image.
func (s *Shadermap) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			i := y*s.Width + x
			di := img.PixOffset(x, y)
			g := clamp8(s.Gray[i] * 255.0)
			img.Pix[di] = g
			img.Pix[di+1] = g
			img.Pix[di+2] = g
			img.Pix[di+3] = clamp8(s.Alpha[i] * 255.0)
		}
	}
	return img
}

// GrayLevel is the mean shadermap value over one category's direct matches.
type GrayLevel struct {
	Category Category
	Gray     float64
	Pixels   int
}

// GrayLevels reports the mean shadermap gray for pixels within tolerance of
// each marker color. Categories with no matching pixel are omitted.
func GrayLevels(m Mask, sm *Shadermap, tolerance float64) []GrayLevel {
	var levels []GrayLevel
	for _, c := range Categories {
		ref := c.Reference()
		var grays []float64
		for i, px := range m.RGB {
			if i < len(sm.Gray) && px.DistanceRgb(ref) < tolerance {
				grays = append(grays, sm.Gray[i])
			}
		}
		if len(grays) == 0 {
			continue
		}
		levels = append(levels, GrayLevel{
			Category: c,
			Gray:     stat.Mean(grays, nil),
			Pixels:   len(grays),
		})
	}
	return levels
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
