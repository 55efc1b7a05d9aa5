package imageio

import (
	"image"

	"golang.org/x/image/draw"
)

// Resize scales img to w x h with CatmullRom filtering. The scaler
// premultiplies NRGBA sources itself, so transparent pixels never bleed
// their color into the tile edge.
func Resize(img *image.NRGBA, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}

	dst := image.NewRGBA64(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return unpremultiply(dst)
}

// unpremultiply converts a 16-bit premultiplied buffer back to 8-bit NRGBA.
// Every pixel with nonzero alpha gets its color back, alpha 1 included:
// antialiased mask edges still need a marker color to classify. Working
// from 16 bits keeps the division from amplifying quantization error at
// low alpha.
func unpremultiply(src *image.RGBA64) *image.NRGBA {
	b := src.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.RGBA64At(x, y)
			i := out.PixOffset(x, y)
			out.Pix[i+3] = clamp8(float64(c.A) / 257)
			if c.A == 0 {
				continue
			}
			inv := 255.0 / float64(c.A)
			out.Pix[i] = clamp8(float64(c.R) * inv)
			out.Pix[i+1] = clamp8(float64(c.G) * inv)
			out.Pix[i+2] = clamp8(float64(c.B) * inv)
		}
	}
	return out
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
