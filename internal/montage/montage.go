package montage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strings"

	"golang.org/x/image/draw"

	"iso-slope-tiles/internal/imageio"
)

// ErrToolNotFound is returned when the external montage program is not on PATH.
var ErrToolNotFound = errors.New("montage: tool not found")

// Layout describes the sheet grid.
type Layout struct {
	CellWidth  int
	CellHeight int
	Columns    int
	Rows       int
}

// Builder assembles tile files into a single sheet at out.
type Builder interface {
	Build(ctx context.Context, tiles []string, layout Layout, out string) error
	Name() string
}

// New returns the builder for tool: "magick", "native" or "auto".
// "auto" prefers magick when it is installed.
func New(tool string) (Builder, error) {
	switch tool {
	case "magick", "":
		return Magick{}, nil
	case "native":
		return Native{}, nil
	case "auto":
		if _, err := exec.LookPath("magick"); err == nil {
			return Magick{}, nil
		}
		return Native{}, nil
	}
	return nil, fmt.Errorf("montage: unknown tool %q", tool)
}

// Magick shells out to ImageMagick's montage.
type Magick struct {
	// Program overrides the executable; empty means "magick".
	Program string
}

func (m Magick) Name() string { return "magick" }

func (m Magick) program() string {
	if m.Program != "" {
		return m.Program
	}
	return "magick"
}

// Args returns the full argument list passed to the program.
func (m Magick) Args(tiles []string, layout Layout, out string) []string {
	args := []string{"montage"}
	args = append(args, tiles...)
	return append(args,
		"-background", "transparent",
		"-geometry", fmt.Sprintf("%dx%d", layout.CellWidth, layout.CellHeight),
		"-tile", fmt.Sprintf("%dx%d", layout.Columns, layout.Rows),
		out,
	)
}

func (m Magick) Build(ctx context.Context, tiles []string, layout Layout, out string) error {
	if len(tiles) == 0 {
		return errors.New("montage: no tiles")
	}
	prog, err := exec.LookPath(m.program())
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrToolNotFound, m.program(), err)
	}

	cmd := exec.CommandContext(ctx, prog, m.Args(tiles, layout, out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("montage: %s: %w: %s", m.program(), err, msg)
		}
		return fmt.Errorf("montage: %s: %w", m.program(), err)
	}
	return nil
}

// Native lays tiles out in-process on a transparent sheet.
// Tiles are placed row-major, centered in their cell, and scaled down to
// fit when larger than the cell. More tiles than cells is an error.
type Native struct{}

func (Native) Name() string { return "native" }

func (Native) Build(ctx context.Context, tiles []string, layout Layout, out string) error {
	if len(tiles) == 0 {
		return errors.New("montage: no tiles")
	}
	sheet, err := Compose(ctx, tiles, layout)
	if err != nil {
		return err
	}
	return imageio.Save(out, sheet, imageio.PNG)
}

// Compose draws the tiles into a new sheet image.
func Compose(ctx context.Context, tiles []string, layout Layout) (*image.NRGBA, error) {
	if layout.CellWidth <= 0 || layout.CellHeight <= 0 || layout.Columns <= 0 || layout.Rows <= 0 {
		return nil, fmt.Errorf("montage: invalid layout %+v", layout)
	}
	cells := layout.Columns * layout.Rows
	if len(tiles) > cells {
		return nil, fmt.Errorf("montage: %d tiles do not fit a %dx%d grid", len(tiles), layout.Columns, layout.Rows)
	}

	sheet := image.NewNRGBA(image.Rect(0, 0, layout.CellWidth*layout.Columns, layout.CellHeight*layout.Rows))
	for i, path := range tiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tile, err := imageio.Load(path)
		if err != nil {
			return nil, fmt.Errorf("montage: %w", err)
		}
		tile = fit(tile, layout.CellWidth, layout.CellHeight)

		tb := tile.Bounds()
		cx := (i % layout.Columns) * layout.CellWidth
		cy := (i / layout.Columns) * layout.CellHeight
		off := image.Pt(cx+(layout.CellWidth-tb.Dx())/2, cy+(layout.CellHeight-tb.Dy())/2)
		draw.Draw(sheet, tb.Add(off), tile, tb.Min, draw.Over)
	}
	return sheet, nil
}

// fit scales img down, keeping aspect, so it fits inside w x h.
func fit(img *image.NRGBA, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() <= w && b.Dy() <= h {
		return img
	}
	sx := float64(w) / float64(b.Dx())
	sy := float64(h) / float64(b.Dy())
	s := min(sx, sy)
	nw := max(1, int(float64(b.Dx())*s))
	nh := max(1, int(float64(b.Dy())*s))
	return imageio.Resize(img, nw, nh)
}
