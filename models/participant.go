package models

import (
	"sync"

	"github.com/aukilabs/kenaz/fov"
	"github.com/aukilabs/kenaz/wire"
)

// A session participant.
type Participant struct {
	ID        uint32
	Responder wire.ResponseSender

	// The format visibility updates are sent with.
	Encoding wire.Encoding

	mutex   sync.Mutex
	placed  bool
	origin  fov.Position
	radius  int
	visible fov.Set
	stale   bool
}

// Move places the participant viewer.
func (p *Participant) Move(origin fov.Position, radius int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.placed = true
	p.origin = origin
	p.radius = radius
}

// Viewer returns the viewer position and radius. ok is false when the
// participant has not moved yet.
func (p *Participant) Viewer() (origin fov.Position, radius int, ok bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.origin, p.radius, p.placed
}

// SetVisible stores the last computed field of view and clears the stale
// flag.
func (p *Participant) SetVisible(visible fov.Set) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.visible = visible
	p.stale = false
}

func (p *Participant) Visible() fov.Set {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.visible
}

// MarkStale flags the field of view for recomputation. Participants that
// have not moved yet are ignored.
func (p *Participant) MarkStale() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.placed {
		p.stale = true
	}
}

// TakeStale reports whether the field of view is stale and clears the flag.
func (p *Participant) TakeStale() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	stale := p.stale
	p.stale = false
	return stale
}

func (p *Participant) ToWire() wire.Participant {
	origin, radius, ok := p.Viewer()

	res := wire.Participant{
		ID: p.ID,
	}
	if ok {
		res.Origin = &origin
		res.Radius = radius
	}
	return res
}

func ParticipantsToWire(participants []*Participant) []wire.Participant {
	res := make([]wire.Participant, len(participants))
	for i, p := range participants {
		res[i] = p.ToWire()
	}
	return res
}
