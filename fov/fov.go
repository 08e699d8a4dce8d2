// Package fov computes precise permissive field of view on a tile grid.
//
// A cell is visible from the origin when at least one straight line joins the
// interior of the origin cell to the interior of the cell without crossing
// the interior of an obstacle. Boundaries are tracked with integer lines and
// compared with exact int64 arithmetic, so results do not depend on floating
// point rounding.
package fov

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// MaxExtent is the largest map dimension or radius a query accepts. It keeps
// every slope product within int64.
const MaxExtent = 1 << 30

const (
	// The error type returned when a query is malformed.
	ErrTypeInvalidQuery = "invalid_query"

	// The error type returned when a query exceeds MaxExtent.
	ErrTypeOverflow = "coordinate_overflow"
)

// BlockedFunc reports whether the cell at the given position stops sight.
// It is only called for positions inside the queried bounds.
type BlockedFunc func(Position) bool

// VisitFunc receives every visible position exactly once.
type VisitFunc func(Position)

// Query describes a field of view computation.
type Query struct {
	// The cell the view is computed from.
	Origin Position

	// The map bounds. Visible positions are within [0,Width)x[0,Height).
	Width  int
	Height int

	// The maximum Chebyshev distance from the origin. Zero only sees the
	// origin.
	Radius int
}

// Validate checks that q can be computed.
func (q Query) Validate() error {
	if q.Width > MaxExtent || q.Height > MaxExtent || q.Radius > MaxExtent {
		return errors.New("query exceeds the supported coordinate range").
			WithType(ErrTypeOverflow).
			WithTag("width", q.Width).
			WithTag("height", q.Height).
			WithTag("radius", q.Radius).
			WithTag("max_extent", MaxExtent)
	}

	if q.Width <= 0 || q.Height <= 0 {
		return errors.New("map size must be positive").
			WithType(ErrTypeInvalidQuery).
			WithTag("width", q.Width).
			WithTag("height", q.Height)
	}

	if q.Radius < 0 {
		return errors.New("radius must not be negative").
			WithType(ErrTypeInvalidQuery).
			WithTag("radius", q.Radius)
	}

	if q.Origin.X < 0 || q.Origin.X >= q.Width ||
		q.Origin.Y < 0 || q.Origin.Y >= q.Height {
		return errors.New("origin is out of bounds").
			WithType(ErrTypeInvalidQuery).
			WithTag("origin", q.Origin.String()).
			WithTag("width", q.Width).
			WithTag("height", q.Height)
	}

	return nil
}

func (q Query) extents() (minX, maxX, minY, maxY int) {
	minX = min(q.Origin.X, q.Radius)
	maxX = min(q.Width-q.Origin.X-1, q.Radius)
	minY = min(q.Origin.Y, q.Radius)
	maxY = min(q.Height-q.Origin.Y-1, q.Radius)
	return
}

func (q Query) quadrants() [4]quadrant {
	minX, maxX, minY, maxY := q.extents()

	return [4]quadrant{
		{dx: 1, dy: 1, extentX: maxX, extentY: maxY},
		{dx: 1, dy: -1, extentX: maxX, extentY: minY},
		{dx: -1, dy: -1, extentX: minX, extentY: minY},
		{dx: -1, dy: 1, extentX: minX, extentY: maxY},
	}
}

// Walk calls visit for the origin and then for every other visible position
// of q. Each position is visited at most once.
func Walk(q Query, blocked BlockedFunc, visit VisitFunc) error {
	if err := q.Validate(); err != nil {
		return err
	}

	visited := make(Set)
	mark := func(p Position) {
		if visited.Contains(p) {
			return
		}
		visited.Add(p)
		visit(p)
	}

	mark(q.Origin)

	s := sweep{
		ctx:     context.Background(),
		origin:  q.Origin,
		blocked: blocked,
		mark:    mark,
	}
	for _, quad := range q.quadrants() {
		if err := s.run(quad); err != nil {
			return err
		}
	}

	walkCorridor(q, blocked, mark)
	return nil
}

// Compute returns the set of positions visible for q.
func Compute(q Query, blocked BlockedFunc) (Set, error) {
	visible := make(Set)
	if err := Walk(q, blocked, visible.Add); err != nil {
		return nil, err
	}
	return visible, nil
}

// ComputeParallel returns the same set as Compute, sweeping the four
// quadrants concurrently. Each quadrant collects into its own set and the
// sets are merged once every sweep returned. blocked must be safe for
// concurrent use.
func ComputeParallel(ctx context.Context, q Query, blocked BlockedFunc) (Set, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	quads := q.quadrants()
	sets := make([]Set, len(quads))

	g, gctx := errgroup.WithContext(ctx)
	for i, quad := range quads {
		sets[i] = make(Set)

		g.Go(func() error {
			s := sweep{
				ctx:     gctx,
				origin:  q.Origin,
				blocked: blocked,
				mark:    sets[i].Add,
			}
			return s.run(quad)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	visible := Set{q.Origin: {}}
	for _, s := range sets {
		visible.Merge(s)
	}
	walkCorridor(q, blocked, visible.Add)
	return visible, nil
}

// walkCorridor covers one cell wide maps. When both extents of an axis are
// zero every quadrant is degenerate, so the other axis is walked directly
// until the first obstacle in each direction.
func walkCorridor(q Query, blocked BlockedFunc, mark func(Position)) {
	minX, maxX, minY, maxY := q.extents()

	switch {
	case minX == 0 && maxX == 0:
		walkRay(q.Origin, Position{Y: 1}, maxY, blocked, mark)
		walkRay(q.Origin, Position{Y: -1}, minY, blocked, mark)

	case minY == 0 && maxY == 0:
		walkRay(q.Origin, Position{X: 1}, maxX, blocked, mark)
		walkRay(q.Origin, Position{X: -1}, minX, blocked, mark)
	}
}

func walkRay(origin, step Position, extent int, blocked BlockedFunc, mark func(Position)) {
	p := origin
	for i := 0; i < extent; i++ {
		p = p.Add(step)
		mark(p)
		if blocked(p) {
			return
		}
	}
}
