package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/featureflag"
	"github.com/aukilabs/kenaz/fov"
	"github.com/aukilabs/kenaz/grid"
	kenazhttp "github.com/aukilabs/kenaz/http"
	"github.com/aukilabs/kenaz/mapgen"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules"
	"github.com/aukilabs/kenaz/wire"
	"golang.org/x/net/websocket"
)

// RealtimeHandler represents a service that manages multiple client connections
// sharing maps and relays their actions in realtime.
type RealtimeHandler struct {
	// The interval between each sync clock message sent to the connected
	// client.
	ClientSyncClockInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The duration of a frame.
	FrameDuration time.Duration

	// The maximum number of tiles of a session map. Zero means unlimited.
	MaxMapSize int

	// The maximum radius of a viewer. Zero means unlimited.
	MaxRadius int

	// The store that contains all the server sessions.
	Sessions *models.SessionStore

	// The modules that expand the server features.
	Modules []modules.Module

	FeatureFlags featureflag.FeatureFlag

	conn               *websocket.Conn
	currentSession     *models.Session
	currentParticipant *models.Participant

	stopFrameHandling func()

	clientID string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = kenazhttp.ClientID(conn.Request())
	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(wire.Response{
		Type:      wire.MsgTypePingResponse,
		Timestamp: time.Now(),
		RequestID: req.RequestID,
	})
	return nil
}

func (h *RealtimeHandler) HandleSessionJoin(ctx context.Context, handleFrame func(), respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.SessionJoinRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.currentSession != nil && h.Sessions.GlobalSessionID(h.currentSession.ID) == req.SessionID {
		sendError(respond, req.RequestID, wire.ErrorCodeSessionAlreadyJoined)
		return nil
	}

	encoding := req.Encoding
	switch encoding {
	case "":
		encoding = wire.EncodingJSON
	case wire.EncodingJSON, wire.EncodingProtobuf:
	default:
		sendError(respond, req.RequestID, wire.ErrorCodeBadRequest)
		return nil
	}

	var session *models.Session
	if req.SessionID != "" {
		s, ok := h.Sessions.GetByGlobalID(req.SessionID)
		if !ok {
			sendError(respond, req.RequestID, wire.ErrorCodeNotFound)
			return nil
		}
		session = s
	}

	var newSession bool
	if session == nil {
		g, source, code := h.newSessionMap(req)
		if code != "" {
			sendError(respond, req.RequestID, code)
			return nil
		}

		session = models.NewSession(h.Sessions.NewID(), g, h.FrameDuration)
		session.Source = source
		newSession = true
	}

	if h.currentParticipant != nil {
		h.leaveSession()
	}

	if newSession {
		if err := h.Sessions.Add(ctx, session); err != nil {
			session.Close()
			sendError(respond, req.RequestID, wire.ErrorCodeInternalServerError)
			return nil
		}
		go session.StartDispatchFrames()
	}

	participant := &models.Participant{
		ID:        session.NewParticipantID(),
		Responder: respond,
		Encoding:  encoding,
	}

	session.AddParticipant(participant)
	h.stopFrameHandling = session.HandleFrame(handleFrame)

	width, height := session.Size()
	respond.Send(wire.SessionJoinResponse{
		Type:          wire.MsgTypeSessionJoinResponse,
		RequestID:     req.RequestID,
		SessionID:     h.Sessions.GlobalSessionID(session.ID),
		SessionUUID:   session.SessionUUID,
		ParticipantID: participant.ID,
		Width:         width,
		Height:        height,
	})

	h.currentSession = session
	h.currentParticipant = participant

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableSessionState, func() {
		respond.Send(wire.SessionState{
			Type:         wire.MsgTypeSessionState,
			Width:        width,
			Height:       height,
			Map:          session.Rows(),
			Participants: models.ParticipantsToWire(session.GetParticipants()),
		})
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantJoinBroadcast, func() {
		session.Broadcast(participant, wire.ParticipantBroadcast{
			Type:          wire.MsgTypeParticipantJoin,
			ParticipantID: participant.ID,
		})
	})

	for _, m := range h.Modules {
		m.Init(session, participant)
	}

	return nil
}

// newSessionMap builds the map of a session created by req. A non empty error
// code is returned when the map cannot be built.
func (h *RealtimeHandler) newSessionMap(req wire.SessionJoinRequest) (*grid.Grid, string, wire.ErrorCode) {
	switch {
	case req.Generate != nil:
		opts := req.Generate
		if h.tooLarge(opts.Width, opts.Height) {
			return nil, "", wire.ErrorCodeTooLarge
		}

		g, err := mapgen.Generate(mapgen.Options{
			Width:   opts.Width,
			Height:  opts.Height,
			Seed:    opts.Seed,
			Density: opts.Density,
			Mode:    mapgen.Mode(opts.Mode),
		})
		if err != nil {
			return nil, "", wire.ErrorCodeBadRequest
		}
		return g, models.SessionSourceGenerated, ""

	case len(req.Map) != 0:
		if h.tooLarge(len(req.Map[0]), len(req.Map)) {
			return nil, "", wire.ErrorCodeTooLarge
		}

		g, err := grid.FromRows(req.Map)
		if err != nil {
			return nil, "", wire.ErrorCodeBadRequest
		}
		return g, models.SessionSourceMap, ""

	default:
		return nil, "", wire.ErrorCodeBadRequest
	}
}

func (h *RealtimeHandler) tooLarge(width, height int) bool {
	if h.MaxMapSize <= 0 {
		return false
	}
	return width > h.MaxMapSize || height > h.MaxMapSize || width*height > h.MaxMapSize
}

func (h *RealtimeHandler) HandleViewerMove(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.ViewerMove
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant := h.currentParticipant
	session := h.currentSession
	if participant == nil || session == nil {
		return errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	if req.Radius < 0 || req.Radius > fov.MaxExtent || (h.MaxRadius > 0 && req.Radius > h.MaxRadius) {
		sendError(respond, req.RequestID, wire.ErrorCodeBadRequest)
		return nil
	}

	width, height := session.Size()
	if !inBounds(req.Origin, width, height) {
		sendError(respond, req.RequestID, wire.ErrorCodeOutOfBounds)
		return nil
	}

	participant.Move(req.Origin, req.Radius)
	return h.updateVisibility(ctx, respond, req.RequestID)
}

func (h *RealtimeHandler) HandleTileSet(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.TileSetRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant := h.currentParticipant
	session := h.currentSession
	if participant == nil || session == nil {
		return errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	changed, err := session.SetTile(req.Position, req.Blocked)
	if errors.IsType(err, grid.ErrTypeOutOfBounds) {
		sendError(respond, req.RequestID, wire.ErrorCodeOutOfBounds)
		return nil
	}
	if err != nil {
		return err
	}

	respond.Send(wire.TileSetResponse{
		Type:      wire.MsgTypeTileSetResponse,
		RequestID: req.RequestID,
	})

	if !changed {
		return nil
	}

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableTileUpdateBroadcast, func() {
		session.Broadcast(participant, wire.TileUpdateBroadcast{
			Type:          wire.MsgTypeTileUpdateBroadcast,
			ParticipantID: participant.ID,
			Position:      req.Position,
			Blocked:       req.Blocked,
		})
	})
	return nil
}

// HandleFrame recomputes the field of view of the current participant when a
// map change made it stale.
func (h *RealtimeHandler) HandleFrame(ctx context.Context, respond wire.ResponseSender) error {
	participant := h.currentParticipant
	if participant == nil || !participant.TakeStale() {
		return nil
	}
	return h.updateVisibility(ctx, respond, 0)
}

func (h *RealtimeHandler) updateVisibility(ctx context.Context, respond wire.ResponseSender, requestID uint32) error {
	participant := h.currentParticipant
	session := h.currentSession

	origin, radius, ok := participant.Viewer()
	if !ok {
		return nil
	}

	visible, err := session.Visible(ctx, origin, radius, h.FeatureFlags.IsSet(featureflag.FlagParallelQuadrants))
	if err != nil {
		return errors.New("computing field of view failed").
			WithTag("origin", origin.String()).
			WithTag("radius", radius).
			Wrap(err)
	}
	participant.SetVisible(visible)

	width, _ := session.Size()
	v := wire.Visibility{
		Type:          wire.MsgTypeVisibility,
		RequestID:     requestID,
		ParticipantID: participant.ID,
		Origin:        origin,
		Radius:        radius,
		Width:         width,
		Visible:       visible.Sorted(),
	}

	if participant.Encoding == wire.EncodingProtobuf {
		respond.SendMsg(wire.BinaryMsg(wire.MsgTypeVisibility, wire.EncodeVisibility(v)))
		return nil
	}
	respond.Send(v)
	return nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	if h.currentParticipant != nil {
		h.leaveSession()
	}
}

func (h *RealtimeHandler) HandleWithModule(ctx context.Context, m modules.Module, respond wire.ResponseSender, msg wire.Msg) error {
	if h.CurrentParticipant() == nil || h.CurrentSession() == nil {
		return nil
	}

	err := m.HandleMsg(ctx, respond, msg)
	if errors.IsType(err, wire.ErrTypeMsgSkip) {
		return nil
	}
	if err != nil {
		return errors.New("handling message with module failed").
			WithTag("module", m.Name()).
			Wrap(err)
	}
	return nil
}

func (h *RealtimeHandler) SendSyncClock(ctx context.Context, respond wire.ResponseSender) error {
	respond.Send(wire.SyncClock{
		Type:      wire.MsgTypeSyncClock,
		Timestamp: time.Now(),
	})
	return nil
}

func (h *RealtimeHandler) Receiver() wire.Receiver {
	return func() (wire.Msg, int, error) {
		return wire.Receive(h.conn)
	}
}

func (h *RealtimeHandler) Sender() wire.Sender {
	return func(msg wire.Msg) (int, error) {
		return wire.Send(h.conn, msg)
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) SyncClockInterval() time.Duration {
	return h.ClientSyncClockInterval
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetSessions() *models.SessionStore {
	return h.Sessions
}

func (h *RealtimeHandler) GetModules() []modules.Module {
	return h.Modules
}

func (h *RealtimeHandler) CurrentSession() *models.Session {
	return h.currentSession
}

func (h *RealtimeHandler) CurrentParticipant() *models.Participant {
	return h.currentParticipant
}

func (h *RealtimeHandler) leaveSession() {
	session := h.currentSession
	participant := h.currentParticipant

	if participant == nil || session == nil {
		return
	}

	for _, m := range h.Modules {
		m.HandleDisconnect()
	}

	if h.stopFrameHandling != nil {
		h.stopFrameHandling()
		h.stopFrameHandling = nil
	}
	session.RemoveParticipant(participant)

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantLeaveBroadcast, func() {
		session.Broadcast(participant, wire.ParticipantBroadcast{
			Type:          wire.MsgTypeParticipantLeave,
			ParticipantID: participant.ID,
		})
	})

	if session.ParticipantCount() == 0 {
		h.Sessions.Remove(context.Background(), session)
	}

	h.currentParticipant = nil
	h.currentSession = nil
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

func sendError(respond wire.ResponseSender, requestID uint32, code wire.ErrorCode) {
	respond.Send(wire.ErrorResponse{
		Type:      wire.MsgTypeErrorResponse,
		RequestID: requestID,
		Code:      code,
	})
}

func inBounds(p fov.Position, width, height int) bool {
	return p.X >= 0 && p.X < width && p.Y >= 0 && p.Y < height
}
