package fov

import (
	"context"
	"slices"
)

// quadrant is one of the four sweep directions from the origin with the
// number of cells reachable along each axis.
type quadrant struct {
	dx, dy           int
	extentX, extentY int
}

// sweep walks quadrants one band at a time, keeping the ordered list of
// views that are still open. A sweep is reused across quadrants of the same
// query; it is not safe for concurrent use.
type sweep struct {
	ctx     context.Context
	origin  Position
	blocked BlockedFunc
	mark    func(Position)

	views []view
	bumps bumpArena
}

func (s *sweep) run(q quadrant) error {
	if q.extentX == 0 || q.extentY == 0 {
		return nil
	}

	s.views = append(s.views[:0], newView(q.extentX, q.extentY))
	s.bumps.reset()

	maxI := q.extentX + q.extentY
	for i := 1; i <= maxI && len(s.views) != 0; i++ {
		if err := s.ctx.Err(); err != nil {
			return err
		}

		// Cells of a band are visited from the x axis toward the y axis so
		// the cursor never has to move back.
		cursor := 0
		maxJ := min(i, q.extentY)
		for j := max(0, i-q.extentX); j <= maxJ && cursor < len(s.views); j++ {
			cursor = s.visitCell(q, Position{X: i - j, Y: j}, cursor)
		}
	}
	return nil
}

func (s *sweep) visitCell(q quadrant, cell Position, cursor int) int {
	topLeft := Position{X: cell.X, Y: cell.Y + 1}
	bottomRight := Position{X: cell.X + 1, Y: cell.Y}

	for cursor < len(s.views) && s.views[cursor].steep.isBelowOrCollinear(bottomRight) {
		cursor++
	}
	if cursor == len(s.views) {
		return cursor
	}

	v := &s.views[cursor]
	if v.shallow.isAboveOrCollinear(topLeft) {
		return cursor
	}

	p := Position{
		X: s.origin.X + cell.X*q.dx,
		Y: s.origin.Y + cell.Y*q.dy,
	}
	s.mark(p)
	if !s.blocked(p) {
		return cursor
	}

	shallowAbove := v.shallow.isAbove(bottomRight)
	steepBelow := v.steep.isBelow(topLeft)

	switch {
	case shallowAbove && steepBelow:
		s.removeView(cursor)

	case shallowAbove:
		v.tightenShallow(&s.bumps, topLeft)
		s.keepIfValid(cursor)

	case steepBelow:
		v.tightenSteep(&s.bumps, bottomRight)
		s.keepIfValid(cursor)

	default:
		// The obstacle sits inside the view: the copy inserted at the cursor
		// keeps the part below the obstacle, the original the part above.
		s.views = slices.Insert(s.views, cursor, s.views[cursor])

		steepIndex := cursor + 1
		s.views[cursor].tightenSteep(&s.bumps, bottomRight)
		if !s.keepIfValid(cursor) {
			steepIndex--
		}

		s.views[steepIndex].tightenShallow(&s.bumps, topLeft)
		s.keepIfValid(steepIndex)
	}

	return cursor
}

func (s *sweep) keepIfValid(i int) bool {
	if s.views[i].isDegenerate() {
		s.removeView(i)
		return false
	}
	return true
}

func (s *sweep) removeView(i int) {
	s.views = slices.Delete(s.views, i, i+1)
}
