package fog

import (
	"sync"

	"github.com/aukilabs/kenaz/fov"
)

// State is the explored memory shared by the participants of a session.
type State struct {
	mutex    sync.RWMutex
	explored fov.Set
}

// Explore adds the given positions to the explored memory and returns the
// ones that were not explored yet, in row major order.
func (s *State) Explore(visible fov.Set) []fov.Position {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.explored == nil {
		s.explored = make(fov.Set, len(visible))
	}

	discovered := make(fov.Set)
	for p := range visible {
		if !s.explored.Contains(p) {
			discovered.Add(p)
		}
	}
	s.explored.Merge(discovered)
	return discovered.Sorted()
}

// Explored returns the explored positions in row major order.
func (s *State) Explored() []fov.Position {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.explored.Sorted()
}
