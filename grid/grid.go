// Package grid provides the tile map field of view queries run against.
package grid

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/fov"
)

const (
	// The error type returned when a text map cannot be parsed.
	ErrTypeInvalidMap = "invalid_map"

	// The error type returned when a position is outside the grid.
	ErrTypeOutOfBounds = "out_of_bounds"
)

const (
	RuneEmpty    = '.'
	RuneObstacle = '#'
	RuneOrigin   = '@'
)

// Tile is the content of a grid cell.
type Tile uint8

const (
	TileEmpty Tile = iota
	TileObstacle
)

func (t Tile) Rune() rune {
	if t == TileObstacle {
		return RuneObstacle
	}
	return RuneEmpty
}

// Grid is a rectangular tile map stored row by row.
type Grid struct {
	width  int
	height int
	tiles  []Tile
}

// New creates an empty grid. Dimensions below 1 are raised to 1.
func New(width, height int) *Grid {
	width = max(width, 1)
	height = max(height, 1)

	return &Grid{
		width:  width,
		height: height,
		tiles:  make([]Tile, width*height),
	}
}

// Parse creates a grid from a text map. See FromRows.
func Parse(text string) (*Grid, error) {
	return FromRows(SplitRows(text))
}

// FromRows creates a grid from text rows where '.' is an empty tile, '#' an
// obstacle and '@' an empty tile marking the origin. Every row must have the
// same length.
func FromRows(rows []string) (*Grid, error) {
	if len(rows) == 0 {
		return nil, errors.New("map has no rows").WithType(ErrTypeInvalidMap)
	}

	width := utf8.RuneCountInString(rows[0])
	if width == 0 {
		return nil, errors.New("map has an empty row").WithType(ErrTypeInvalidMap)
	}

	g := New(width, len(rows))
	for y, row := range rows {
		if n := utf8.RuneCountInString(row); n != width {
			return nil, errors.New("map rows have different lengths").
				WithType(ErrTypeInvalidMap).
				WithTag("row", y).
				WithTag("expected_width", width).
				WithTag("width", n)
		}

		x := 0
		for _, r := range row {
			switch r {
			case RuneEmpty, RuneOrigin:
			case RuneObstacle:
				g.tiles[g.index(x, y)] = TileObstacle
			default:
				return nil, errors.New("map contains an unknown tile").
					WithType(ErrTypeInvalidMap).
					WithTag("tile", string(r)).
					WithTag("x", x).
					WithTag("y", y)
			}
			x++
		}
	}

	return g, nil
}

// SplitRows splits a text map into rows, dropping blank lines and the
// whitespace used to align cells.
func SplitRows(text string) []string {
	var rows []string
	for _, line := range strings.Split(text, "\n") {
		row := strings.Map(func(r rune) rune {
			switch r {
			case ' ', '\t', '\r':
				return -1
			}
			return r
		}, line)

		if row != "" {
			rows = append(rows, row)
		}
	}
	return rows
}

// FindOrigin returns the position of the first '@' marker in rows.
func FindOrigin(rows []string) (fov.Position, bool) {
	for y, row := range rows {
		x := 0
		for _, r := range row {
			if r == RuneOrigin {
				return fov.Position{X: x, Y: y}, true
			}
			x++
		}
	}
	return fov.Position{}, false
}

func (g *Grid) Width() int {
	return g.width
}

func (g *Grid) Height() int {
	return g.height
}

func (g *Grid) InBounds(p fov.Position) bool {
	return p.X >= 0 && p.X < g.width && p.Y >= 0 && p.Y < g.height
}

// At returns the tile at p. Positions outside the grid are obstacles.
func (g *Grid) At(p fov.Position) Tile {
	if !g.InBounds(p) {
		return TileObstacle
	}
	return g.tiles[g.index(p.X, p.Y)]
}

// Set replaces the tile at p.
func (g *Grid) Set(p fov.Position, t Tile) error {
	if !g.InBounds(p) {
		return errors.New("position is outside the grid").
			WithType(ErrTypeOutOfBounds).
			WithTag("position", p.String()).
			WithTag("width", g.width).
			WithTag("height", g.height)
	}

	g.tiles[g.index(p.X, p.Y)] = t
	return nil
}

// Blocked reports whether p stops sight. It is safe for concurrent use as
// long as the grid is not modified.
func (g *Grid) Blocked(p fov.Position) bool {
	return g.At(p) == TileObstacle
}

// Obstacles returns the obstacle positions row by row.
func (g *Grid) Obstacles() []fov.Position {
	var obstacles []fov.Position
	for i, t := range g.tiles {
		if t == TileObstacle {
			obstacles = append(obstacles, fov.Position{X: i % g.width, Y: i / g.width})
		}
	}
	return obstacles
}

// Rows returns the grid as text rows that FromRows accepts.
func (g *Grid) Rows() []string {
	rows := make([]string, g.height)
	for y := range rows {
		var b strings.Builder
		b.Grow(g.width)

		for x := 0; x < g.width; x++ {
			b.WriteRune(g.tiles[g.index(x, y)].Rune())
		}
		rows[y] = b.String()
	}
	return rows
}

// Query returns the field of view query from origin over the whole grid.
func (g *Grid) Query(origin fov.Position, radius int) fov.Query {
	return fov.Query{
		Origin: origin,
		Width:  g.width,
		Height: g.height,
		Radius: radius,
	}
}

// Visible returns the positions visible from origin.
func (g *Grid) Visible(origin fov.Position, radius int) (fov.Set, error) {
	return fov.Compute(g.Query(origin, radius), g.Blocked)
}

// VisibleParallel is Visible with the quadrants computed concurrently.
func (g *Grid) VisibleParallel(ctx context.Context, origin fov.Position, radius int) (fov.Set, error) {
	return fov.ComputeParallel(ctx, g.Query(origin, radius), g.Blocked)
}

func (g *Grid) index(x, y int) int {
	return y*g.width + x
}
