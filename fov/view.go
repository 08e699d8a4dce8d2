package fov

// view is a wedge of the quadrant that is still visible, bounded by a shallow
// line (toward the x axis) and a steep line (toward the y axis).
type view struct {
	shallow     line
	steep       line
	shallowBump int32
	steepBump   int32
}

func newView(extentX, extentY int) view {
	return view{
		shallow:     line{xi: 0, yi: 1, xf: extentX, yf: 0},
		steep:       line{xi: 1, yi: 0, xf: 0, yf: extentY},
		shallowBump: noBump,
		steepBump:   noBump,
	}
}

// tightenShallow moves the far end of the shallow line to p and records p as
// a shallow bump. The near end is then pulled onto every steep bump that
// would otherwise lie outside the view.
func (v *view) tightenShallow(a *bumpArena, p Position) {
	v.shallow.xf = p.X
	v.shallow.yf = p.Y
	v.shallowBump = a.push(p, v.shallowBump)

	for i := v.steepBump; i != noBump; {
		b := a.at(i)
		if v.shallow.isAbove(b.pos) {
			v.shallow.xi = b.pos.X
			v.shallow.yi = b.pos.Y
		}
		i = b.parent
	}
}

// tightenSteep is the mirror of tightenShallow.
func (v *view) tightenSteep(a *bumpArena, p Position) {
	v.steep.xf = p.X
	v.steep.yf = p.Y
	v.steepBump = a.push(p, v.steepBump)

	for i := v.shallowBump; i != noBump; {
		b := a.at(i)
		if v.steep.isBelow(b.pos) {
			v.steep.xi = b.pos.X
			v.steep.yi = b.pos.Y
		}
		i = b.parent
	}
}

// isDegenerate reports whether the view collapsed into a line that starts at
// a corner of the origin cell. Such a view cannot contain any cell.
func (v *view) isDegenerate() bool {
	return v.shallow.isLineCollinear(v.steep) &&
		(v.shallow.isCollinear(Position{X: 0, Y: 1}) ||
			v.shallow.isCollinear(Position{X: 1, Y: 0}))
}
