package fov

// noBump is the index of the empty bump chain.
const noBump int32 = -1

// bump is an obstacle corner that constrains a view boundary. Bumps form
// parent-linked chains and are never modified once pushed, so views split
// from one another share the same chain indices.
type bump struct {
	pos    Position
	parent int32
}

// bumpArena owns every bump created during a quadrant sweep.
type bumpArena struct {
	bumps []bump
}

func (a *bumpArena) push(p Position, parent int32) int32 {
	a.bumps = append(a.bumps, bump{pos: p, parent: parent})
	return int32(len(a.bumps) - 1)
}

func (a *bumpArena) at(i int32) bump {
	return a.bumps[i]
}

func (a *bumpArena) reset() {
	a.bumps = a.bumps[:0]
}
