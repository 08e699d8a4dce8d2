package models

import (
	"slices"
	"sync"
)

// SequentialIDGenerator hands out increasing ids, recycling released ones
// lowest first.
type SequentialIDGenerator struct {
	mutex    sync.Mutex
	last     uint32
	released []uint32
}

func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if len(g.released) != 0 {
		id := g.released[0]
		g.released = g.released[1:]
		return id
	}

	g.last++
	return g.last
}

// Reuse releases id so that New can return it again.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	i, found := slices.BinarySearch(g.released, id)
	if found || id == 0 || id > g.last {
		return
	}
	g.released = slices.Insert(g.released, i, id)
}
