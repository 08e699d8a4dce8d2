package fov

import (
	"cmp"
	"fmt"
	"slices"
)

// Position is a cell coordinate. X grows to the right and Y grows downward,
// rows first as in a text map.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y}
}

// Chebyshev returns the king-move distance between p and o, which is the
// metric the radius of a query is expressed in.
func (p Position) Chebyshev(o Position) int {
	return max(abs(p.X-o.X), abs(p.Y-o.Y))
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Set is a set of positions.
type Set map[Position]struct{}

func (s Set) Add(p Position) {
	s[p] = struct{}{}
}

func (s Set) Contains(p Position) bool {
	_, ok := s[p]
	return ok
}

func (s Set) Len() int {
	return len(s)
}

// Merge adds every position of o to s.
func (s Set) Merge(o Set) {
	for p := range o {
		s[p] = struct{}{}
	}
}

// Sorted returns the positions ordered row by row.
func (s Set) Sorted() []Position {
	positions := make([]Position, 0, len(s))
	for p := range s {
		positions = append(positions, p)
	}

	slices.SortFunc(positions, func(a, b Position) int {
		if c := cmp.Compare(a.Y, b.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.X, b.X)
	})
	return positions
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
