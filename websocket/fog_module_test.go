package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/aukilabs/kenaz/fov"
	"github.com/aukilabs/kenaz/modules"
	"github.com/aukilabs/kenaz/modules/fog"
	"github.com/aukilabs/kenaz/wire"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func newFogTestModule() modules.Module {
	return &fog.Module{}
}

func requestFog(t *testing.T, conn *websocket.Conn, requestID uint32) wire.FogResponse {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var res wire.FogResponse
	err := NewExchange(conn).
		Send(func() any {
			return wire.FogRequest{
				Type:      wire.MsgTypeFogRequest,
				RequestID: requestID,
			}
		}).
		ReceiveInto(&res,
			FilterByType(wire.MsgTypeFogResponse),
			FilterByRequestID(requestID),
		).
		Run(ctx)
	require.NoError(t, err)
	return res
}

func TestFogModule(t *testing.T) {
	clientA, clientB, close := NewTestingEnv(t, newTestHandler(newFogTestModule))
	defer close()

	join := joinSession(t, clientA, wire.SessionJoinRequest{
		RequestID: 1,
		Map:       corridorMap,
	})

	res := requestFog(t, clientA, 2)
	require.Empty(t, res.Explored)
	require.Empty(t, res.Visible)

	moveViewer(t, clientA, 3, fov.Position{}, 10)
	res = requestFog(t, clientA, 4)
	require.Equal(t, []fov.Position{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}, res.Explored)
	require.Equal(t, res.Explored, res.Visible)

	moveViewer(t, clientA, 5, fov.Position{X: 4, Y: 0}, 0)
	res = requestFog(t, clientA, 6)
	require.Equal(t, []fov.Position{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 4, Y: 0}}, res.Explored)
	require.Equal(t, []fov.Position{{X: 4, Y: 0}}, res.Visible)

	t.Run("explored positions are shared by the session", func(t *testing.T) {
		joinSession(t, clientB, wire.SessionJoinRequest{
			RequestID: 1,
			SessionID: join.SessionID,
		})

		res := requestFog(t, clientB, 2)
		require.Len(t, res.Explored, 4)
		require.Empty(t, res.Visible)
	})
}

func TestFogModuleUpdate(t *testing.T) {
	clientA, clientB, close := NewTestingEnv(t, newTestHandler(newFogTestModule))
	defer close()

	joinA := joinSession(t, clientA, wire.SessionJoinRequest{
		RequestID: 1,
		Map:       corridorMap,
	})
	joinSession(t, clientB, wire.SessionJoinRequest{
		RequestID: 1,
		SessionID: joinA.SessionID,
	})

	moveViewer(t, clientB, 2, fov.Position{X: 4, Y: 0}, 0)
	moveViewer(t, clientA, 2, fov.Position{}, 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var update wire.FogUpdate
	err := NewExchange(clientB).
		ReceiveInto(&update, FilterByType(wire.MsgTypeFogUpdate)).
		Run(ctx)
	require.NoError(t, err)
	require.Equal(t, joinA.ParticipantID, update.ParticipantID)
	require.Equal(t, []fov.Position{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}, update.Explored)

	t.Run("already explored positions are not sent again", func(t *testing.T) {
		moveViewer(t, clientA, 3, fov.Position{X: 4, Y: 0}, 0)
		moveViewer(t, clientB, 3, fov.Position{X: 1, Y: 0}, 1)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err := NewExchange(clientA).
			Receive(FilterByType(wire.MsgTypeFogUpdate)).
			Run(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
