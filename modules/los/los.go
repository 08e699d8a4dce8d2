// Package los answers line of sight queries between two positions of the
// session map.
package los

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/fov"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/wire"
)

type Module struct {
	currentSession     *models.Session
	currentParticipant *models.Participant
}

func (m *Module) Name() string {
	return "los"
}

func (m *Module) Init(s *models.Session, p *models.Participant) {
	m.currentSession = s
	m.currentParticipant = p
}

func (m *Module) HandleMsg(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	if msg.Type != wire.MsgTypeLineOfSightRequest {
		return wire.ErrModuleMsgSkip
	}

	var req wire.LineOfSightRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	width, height := m.currentSession.Size()
	if !inBounds(req.From, width, height) || !inBounds(req.To, width, height) {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			RequestID: req.RequestID,
			Code:      wire.ErrorCodeOutOfBounds,
		})
		return nil
	}

	visible, err := Visible(ctx, m.currentSession, req.From, req.To)
	if err != nil {
		return errors.New("computing line of sight failed").
			WithTag("from", req.From.String()).
			WithTag("to", req.To.String()).
			Wrap(err)
	}

	respond.Send(wire.LineOfSightResponse{
		Type:      wire.MsgTypeLineOfSightResponse,
		RequestID: req.RequestID,
		Visible:   visible,
	})
	return nil
}

func (m *Module) HandleDisconnect() {
}

// Visible reports whether to is visible from a viewer standing at from. The
// field of view radius is the smallest one that can contain to.
func Visible(ctx context.Context, s *models.Session, from, to fov.Position) (bool, error) {
	if from == to {
		return true, nil
	}

	visible, err := s.Visible(ctx, from, from.Chebyshev(to), false)
	if err != nil {
		return false, err
	}
	return visible.Contains(to), nil
}

func inBounds(p fov.Position, width, height int) bool {
	return p.X >= 0 && p.X < width && p.Y >= 0 && p.Y < height
}
