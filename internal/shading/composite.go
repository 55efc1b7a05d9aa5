package shading

import (
	"fmt"
	"image"
)

// Composite paints the texture onto the mask footprint and darkens it by
// the shadermap. Output alpha is the mask alpha; pixels outside the
// footprint are transparent black.
func Composite(m Mask, tex *image.NRGBA, sm *Shadermap) (*image.NRGBA, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	tb := tex.Bounds()
	if tb.Dx() != m.Width || tb.Dy() != m.Height {
		return nil, fmt.Errorf("%w: texture %dx%d, mask %dx%d", ErrSizeMismatch, tb.Dx(), tb.Dy(), m.Width, m.Height)
	}
	if sm.Width != m.Width || sm.Height != m.Height {
		return nil, fmt.Errorf("%w: shadermap %dx%d, mask %dx%d", ErrSizeMismatch, sm.Width, sm.Height, m.Width, m.Height)
	}

	out := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			i := y*m.Width + x
			a := m.Alpha[i]

			var r, g, b float64
			if a > 0 {
				ti := tex.PixOffset(tb.Min.X+x, tb.Min.Y+y)
				r = float64(tex.Pix[ti]) / 255.0
				g = float64(tex.Pix[ti+1]) / 255.0
				b = float64(tex.Pix[ti+2]) / 255.0
			}
			if sm.Alpha[i] > 0 {
				s := sm.Gray[i]
				r *= s
				g *= s
				b *= s
			}

			di := out.PixOffset(x, y)
			out.Pix[di] = clamp8(r * 255.0)
			out.Pix[di+1] = clamp8(g * 255.0)
			out.Pix[di+2] = clamp8(b * 255.0)
			out.Pix[di+3] = clamp8(a * 255.0)
		}
	}
	return out, nil
}
