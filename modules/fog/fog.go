// Package fog implements fog of war: every position seen by a participant of
// a session stays explored for the whole session.
package fog

import (
	"context"

	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/wire"
)

type Module struct {
	currentSession     *models.Session
	currentParticipant *models.Participant
	state              *State
}

func (m *Module) Name() string {
	return "fog"
}

func (m *Module) Init(s *models.Session, p *models.Participant) {
	m.currentSession = s
	m.currentParticipant = p

	state, ok := s.ModuleState(m.Name())
	if !ok {
		state = &State{}
		s.SetModuleState(m.Name(), state)
	}
	m.state = state.(*State)
}

func (m *Module) HandleMsg(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	switch msg.Type {
	case wire.MsgTypeViewerMove:
		m.explore()
		return nil

	case wire.MsgTypeFogRequest:
		return m.handleFogRequest(respond, msg)

	default:
		return wire.ErrModuleMsgSkip
	}
}

func (m *Module) HandleDisconnect() {
}

// explore records the current participant view and sends the newly explored
// positions to the other participants that are viewing the map.
func (m *Module) explore() {
	discovered := m.state.Explore(m.currentParticipant.Visible())
	if len(discovered) == 0 {
		return
	}

	var viewers []uint32
	for _, p := range m.currentSession.GetParticipants() {
		if _, _, ok := p.Viewer(); ok && p != m.currentParticipant {
			viewers = append(viewers, p.ID)
		}
	}
	if len(viewers) == 0 {
		return
	}

	m.currentSession.BroadcastTo(m.currentParticipant, wire.FogUpdate{
		Type:          wire.MsgTypeFogUpdate,
		ParticipantID: m.currentParticipant.ID,
		Explored:      discovered,
	}, viewers...)
}

func (m *Module) handleFogRequest(respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.FogRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(wire.FogResponse{
		Type:      wire.MsgTypeFogResponse,
		RequestID: req.RequestID,
		Explored:  m.state.Explored(),
		Visible:   m.currentParticipant.Visible().Sorted(),
	})
	return nil
}
