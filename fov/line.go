package fov

// line is a boundary of a view, expressed in the quadrant-local frame where
// the origin cell spans [0,1]x[0,1].
type line struct {
	xi, yi int
	xf, yf int
}

// relativeSlope returns the signed side of p relative to the line. Products
// are evaluated in int64, which is exact for coordinates up to MaxExtent.
func (l line) relativeSlope(p Position) int64 {
	dx := int64(l.xf) - int64(l.xi)
	dy := int64(l.yf) - int64(l.yi)
	return dy*(int64(l.xf)-int64(p.X)) - dx*(int64(l.yf)-int64(p.Y))
}

func (l line) isBelow(p Position) bool {
	return l.relativeSlope(p) > 0
}

func (l line) isBelowOrCollinear(p Position) bool {
	return l.relativeSlope(p) >= 0
}

func (l line) isAbove(p Position) bool {
	return l.relativeSlope(p) < 0
}

func (l line) isAboveOrCollinear(p Position) bool {
	return l.relativeSlope(p) <= 0
}

func (l line) isCollinear(p Position) bool {
	return l.relativeSlope(p) == 0
}

// isLineCollinear reports whether both endpoints of o lie on l.
func (l line) isLineCollinear(o line) bool {
	return l.isCollinear(Position{X: o.xi, Y: o.yi}) &&
		l.isCollinear(Position{X: o.xf, Y: o.yf})
}
