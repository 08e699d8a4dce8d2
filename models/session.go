package models

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/fov"
	"github.com/aukilabs/kenaz/grid"
	"github.com/aukilabs/kenaz/wire"
	"github.com/google/uuid"
)

const (
	// Sessions created from a map sent by a client.
	SessionSourceMap = "map"

	// Sessions created from a generated map.
	SessionSourceGenerated = "generated"
)

// Session represents a shared map that participants look at and edit.
type Session struct {
	ID          uint32
	SessionUUID string

	// How the session map was created.
	Source string

	participantIDs   SequentialIDGenerator
	participantMutex sync.RWMutex
	participants     map[uint32]*Participant

	gridMutex sync.RWMutex
	grid      *grid.Grid

	moduleStates map[string]any
	moduleMutex  sync.RWMutex

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func()
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

func NewSession(id uint32, g *grid.Grid, frameDuration time.Duration) *Session {
	return &Session{
		ID:             id,
		SessionUUID:    uuid.New().String(),
		Source:         SessionSourceMap,
		grid:           g,
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(frameDuration),
		participants:   make(map[uint32]*Participant),
		moduleStates:   make(map[string]any),
		frameHandlers:  make(map[uint32]func()),
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		s.closeFrameChan <- struct{}{}
	})
}

func (s *Session) NewParticipantID() uint32 {
	return s.participantIDs.New()
}

func (s *Session) AddParticipant(p *Participant) {
	s.participantMutex.Lock()
	defer s.participantMutex.Unlock()

	s.participants[p.ID] = p
}

func (s *Session) RemoveParticipant(p *Participant) {
	s.participantMutex.Lock()
	defer s.participantMutex.Unlock()

	delete(s.participants, p.ID)
}

func (s *Session) GetParticipants() []*Participant {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	participants := make([]*Participant, 0, len(s.participants))
	for _, p := range s.participants {
		participants = append(participants, p)
	}
	return participants
}

func (s *Session) GetParticipantsByIDs(ids ...uint32) []*Participant {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	participants := make([]*Participant, 0, len(ids))
	for _, id := range ids {
		p, ok := s.participants[id]
		if ok {
			participants = append(participants, p)
		}
	}
	return participants
}

func (s *Session) ParticipantCount() int {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	return len(s.participants)
}

// Size returns the width and height of the session map.
func (s *Session) Size() (width, height int) {
	s.gridMutex.RLock()
	defer s.gridMutex.RUnlock()

	return s.grid.Width(), s.grid.Height()
}

// Rows returns the session map in the grid text format.
func (s *Session) Rows() []string {
	s.gridMutex.RLock()
	defer s.gridMutex.RUnlock()

	return s.grid.Rows()
}

// Blocked reports whether the tile at p blocks sight.
func (s *Session) Blocked(p fov.Position) bool {
	s.gridMutex.RLock()
	defer s.gridMutex.RUnlock()

	return s.grid.Blocked(p)
}

// SetTile changes the tile at p and marks the visibility of every placed
// participant as stale. It reports whether the tile changed.
func (s *Session) SetTile(p fov.Position, blocked bool) (bool, error) {
	tile := grid.TileEmpty
	if blocked {
		tile = grid.TileObstacle
	}

	s.gridMutex.Lock()
	if s.grid.InBounds(p) && s.grid.At(p) == tile {
		s.gridMutex.Unlock()
		return false, nil
	}
	err := s.grid.Set(p, tile)
	s.gridMutex.Unlock()

	if err != nil {
		return false, errors.New("setting session tile failed").
			WithTag("session_id", s.ID).
			Wrap(err)
	}

	s.MarkStale()
	return true, nil
}

// MarkStale flags the visibility of every placed participant for
// recomputation on the next frame.
func (s *Session) MarkStale() {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	for _, p := range s.participants {
		p.MarkStale()
	}
}

// Visible computes the field of view of a viewer standing at origin. The grid
// is read locked for the duration of the computation.
func (s *Session) Visible(ctx context.Context, origin fov.Position, radius int, parallel bool) (fov.Set, error) {
	s.gridMutex.RLock()
	defer s.gridMutex.RUnlock()

	if parallel {
		return s.grid.VisibleParallel(ctx, origin, radius)
	}
	return s.grid.Visible(origin, radius)
}

// Broadcast sends a payload to every participant but the sender.
func (s *Session) Broadcast(sender *Participant, payload any) {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	msg, err := wire.MsgFromPayload(payload)
	if err != nil {
		logs.WithTag("message", payload).Debug(err)
		return
	}

	for _, p := range s.participants {
		if p == sender {
			continue
		}
		p.Responder.SendMsg(msg)
	}
}

// BroadcastTo sends a payload once to each of the given participants but the
// sender.
func (s *Session) BroadcastTo(sender *Participant, payload any, participantIds ...uint32) {
	participants := s.GetParticipantsByIDs(participantIds...)
	isParticipantHandled := make(map[uint32]struct{}, len(participantIds))

	msg, err := wire.MsgFromPayload(payload)
	if err != nil {
		logs.WithTag("message", payload).Debug(err)
		return
	}

	for _, p := range participants {
		if p == sender {
			continue
		}

		if _, ok := isParticipantHandled[p.ID]; ok {
			continue
		}
		isParticipantHandled[p.ID] = struct{}{}

		p.Responder.SendMsg(msg)
	}
}

func (s *Session) SetModuleState(moduleName string, state any) {
	s.moduleMutex.Lock()
	defer s.moduleMutex.Unlock()

	s.moduleStates[moduleName] = state
}

func (s *Session) ModuleState(moduleName string) (any, bool) {
	s.moduleMutex.RLock()
	defer s.moduleMutex.RUnlock()

	state, ok := s.moduleStates[moduleName]
	return state, ok
}

func (s *Session) HandleFrame(h func()) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
	}
}

func (s *Session) StartDispatchFrames() {
	s.startFrameOnce.Do(func() {
		for {
			select {
			case <-s.closeFrameChan:
				return

			case <-s.frameTicker.C:
				s.frameMutex.RLock()
				for _, h := range s.frameHandlers {
					h()
				}
				s.frameMutex.RUnlock()
			}
		}
	})
}

type SessionStore struct {
	// The prefix of global session ids. Defaults to "kenaz".
	ServerID string

	initOnce sync.Once
	mutex    sync.RWMutex
	sessions map[string]*Session
	ids      SequentialIDGenerator
}

func (s *SessionStore) init() {
	s.sessions = map[string]*Session{}

	if s.ServerID == "" {
		s.ServerID = "kenaz"
	}
}

func (s *SessionStore) NewID() uint32 {
	return s.ids.New()
}

func (s *SessionStore) Add(ctx context.Context, session *Session) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	globalID := s.globalSessionID(session.ID)
	if _, ok := s.sessions[globalID]; ok {
		return errors.New("session already exists").
			WithTag("session_id", globalID)
	}
	s.sessions[globalID] = session

	instrumentIncreaseSessionGauge(session.Source)
	instrumentCountSession(session.Source)
	return nil
}

func (s *SessionStore) Remove(ctx context.Context, session *Session) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	globalID := s.globalSessionID(session.ID)
	if _, ok := s.sessions[globalID]; !ok {
		return
	}

	delete(s.sessions, globalID)
	session.Close()

	s.ids.Reuse(session.ID)

	instrumentDecreaseSessionGauge(session.Source)
}

func (s *SessionStore) GetByGlobalID(v string) (*Session, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[v]
	return session, ok
}

// Len returns the number of sessions.
func (s *SessionStore) Len() int {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.sessions)
}

func (s *SessionStore) GlobalSessionID(sessionID uint32) string {
	s.initOnce.Do(s.init)
	return s.globalSessionID(sessionID)
}

func (s *SessionStore) globalSessionID(sessionID uint32) string {
	return fmt.Sprintf("%sx%x", s.ServerID, sessionID)
}
