// Package render draws field of view results as text or images.
package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/fov"
	"github.com/aukilabs/kenaz/grid"
	"golang.org/x/image/colornames"
	"golang.org/x/image/draw"
)

const (
	GlyphOrigin          = "@"
	GlyphVisibleEmpty    = "."
	GlyphVisibleObstacle = "#"
	GlyphHiddenEmpty     = "░"
	GlyphHiddenObstacle  = "█"

	GlyphMaskVisible = 'O'
	GlyphMaskHidden  = 'X'
)

// Palette is the color of each kind of cell in images.
type Palette struct {
	Origin          color.Color
	VisibleEmpty    color.Color
	VisibleObstacle color.Color
	HiddenEmpty     color.Color
	HiddenObstacle  color.Color
}

var DefaultPalette = Palette{
	Origin:          colornames.Gold,
	VisibleEmpty:    colornames.Beige,
	VisibleObstacle: colornames.Sienna,
	HiddenEmpty:     colornames.Dimgray,
	HiddenObstacle:  colornames.Black,
}

// Text draws the grid with one glyph per cell, each followed by a space, and
// one line per row.
func Text(g *grid.Grid, visible fov.Set, origin fov.Position) string {
	var b strings.Builder

	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			p := fov.Position{X: x, Y: y}

			switch {
			case p == origin:
				b.WriteString(GlyphOrigin)
			case visible.Contains(p) && g.Blocked(p):
				b.WriteString(GlyphVisibleObstacle)
			case visible.Contains(p):
				b.WriteString(GlyphVisibleEmpty)
			case g.Blocked(p):
				b.WriteString(GlyphHiddenObstacle)
			default:
				b.WriteString(GlyphHiddenEmpty)
			}
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}

	return b.String()
}

// Mask returns one row per line where 'O' is a visible cell and 'X' a hidden
// one.
func Mask(width, height int, visible fov.Set) []string {
	rows := make([]string, height)
	for y := range rows {
		var b strings.Builder
		b.Grow(width)

		for x := 0; x < width; x++ {
			if visible.Contains(fov.Position{X: x, Y: y}) {
				b.WriteByte(GlyphMaskVisible)
			} else {
				b.WriteByte(GlyphMaskHidden)
			}
		}
		rows[y] = b.String()
	}
	return rows
}

// Image draws one scale x scale block per cell.
func Image(g *grid.Grid, visible fov.Set, origin fov.Position, scale int, palette Palette) *image.RGBA {
	scale = max(scale, 1)

	small := image.NewRGBA(image.Rect(0, 0, g.Width(), g.Height()))
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			p := fov.Position{X: x, Y: y}

			var c color.Color
			switch {
			case p == origin:
				c = palette.Origin
			case visible.Contains(p) && g.Blocked(p):
				c = palette.VisibleObstacle
			case visible.Contains(p):
				c = palette.VisibleEmpty
			case g.Blocked(p):
				c = palette.HiddenObstacle
			default:
				c = palette.HiddenEmpty
			}
			small.Set(x, y, c)
		}
	}

	if scale == 1 {
		return small
	}

	img := image.NewRGBA(image.Rect(0, 0, g.Width()*scale, g.Height()*scale))
	draw.NearestNeighbor.Scale(img, img.Bounds(), small, small.Bounds(), draw.Src, nil)
	return img
}

// WritePNG encodes img as a PNG image.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return errors.New("encoding png failed").Wrap(err)
	}
	return nil
}
