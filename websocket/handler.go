// Package websocket serves realtime sessions where participants move viewers
// over a shared map, edit its tiles and receive their field of view.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules"
	"github.com/aukilabs/kenaz/wire"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64
)

// Handler represents a realtime connection handler.
type Handler interface {
	// Handles a ping request.
	HandlePing(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error

	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a request to create or join a session. handleFrame is called
	// at each session frame.
	HandleSessionJoin(ctx context.Context, handleFrame func(), respond wire.ResponseSender, msg wire.Msg) error

	// Handles a viewer move and responds with its field of view.
	HandleViewerMove(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error

	// Handles a request to change a tile of the session map.
	HandleTileSet(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error

	// Handles a session frame on the connection goroutine.
	HandleFrame(ctx context.Context, respond wire.ResponseSender) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handle a message with a module.
	HandleWithModule(ctx context.Context, module modules.Module, respond wire.ResponseSender, msg wire.Msg) error

	// Sends a sync clock message to the client.
	SendSyncClock(ctx context.Context, respond wire.ResponseSender) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() wire.Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() wire.Sender

	// Closes the service and releases its allocated resources.
	Close()

	// The interval between each sync clock message sent to the connected
	// client.
	SyncClockInterval() time.Duration

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Returns the session store.
	GetSessions() *models.SessionStore

	// Returns the modules.
	GetModules() []modules.Module

	// The currently joined session.
	CurrentSession() *models.Session

	// The current participant.
	CurrentParticipant() *models.Participant

	// Get ClientID
	GetClientID() string
}

// Handle serves conn with h until the client disconnects or ctx is done.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The realtime handler.
	Handler Handler

	sendChan       chan wire.Msg
	sender         wire.Sender
	receiveChan    chan wire.Msg
	receiver       wire.Receiver
	frameChan      chan struct{}
	disconnectChan chan error
	done           <-chan struct{}
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	h.done = ctx.Done()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan wire.Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	// Frames are coalesced: a frame that fires while another one is pending
	// is dropped.
	h.frameChan = make(chan struct{}, 1)

	h.receiveChan = make(chan wire.Msg, receiveChanSize)
	h.receiver = h.Handler.Receiver()
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	syncClockTicker := time.NewTicker(h.Handler.SyncClockInterval())
	defer syncClockTicker.Stop()

	var responder = responseSender{
		send:    h.send,
		sendMsg: h.sendMsg,
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", h.Handler.IdleTimeout()))

		case <-syncClockTicker.C:
			if err := h.Handler.SendSyncClock(ctx, responder); err != nil {
				h.disconnect(errors.New("sending sync clock failed").Wrap(err))
			}

		case <-h.frameChan:
			if err := h.Handler.HandleFrame(ctx, responder); err != nil {
				h.disconnect(errors.New("handling frame failed").Wrap(err))
			}

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	wg.Wait()
}

func (h *handler) send(payload any) {
	msg, err := wire.MsgFromPayload(payload)
	if err != nil {
		logs.WithTag("message", payload).
			WithClientID(h.Handler.GetClientID()).
			Debug(err)
		return
	}
	h.sendMsg(msg)
}

// sendMsg queues msg for the sender goroutine. Messages sent to a closed
// connection are dropped so that broadcasting participants never block.
func (h *handler) sendMsg(msg wire.Msg) {
	select {
	case h.sendChan <- msg:
	case <-h.done:
	}
}

// handleFrame is registered as a session frame handler. It runs on the
// session ticker goroutine and must not block.
func (h *handler) handleFrame() {
	select {
	case h.frameChan <- struct{}{}:
	default:
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	var failed bool
	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if failed {
				continue
			}

			// Messages are still consumed after a failure until the
			// connection is torn down.
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				failed = true
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if errors.IsType(err, wire.ErrTypeInvalidMsg) {
				logs.WithClientID(h.Handler.GetClientID()).Debug(err)
				continue
			}
			if err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			select {
			case <-ctx.Done():
				return
			case h.receiveChan <- msg:
			}
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg wire.Msg, responder wire.ResponseSender) error {
	var err error

	switch msg.Type {
	case wire.MsgTypePingRequest:
		err = h.Handler.HandlePing(ctx, responder, msg)

	case wire.MsgTypeSessionJoinRequest:
		err = h.Handler.HandleSessionJoin(ctx,
			h.handleFrame,
			responder,
			msg,
		)

	case wire.MsgTypeViewerMove:
		err = h.Handler.HandleViewerMove(ctx, responder, msg)

	case wire.MsgTypeTileSetRequest:
		err = h.Handler.HandleTileSet(ctx, responder, msg)
	}

	if err != nil {
		return err
	}

	if h.Handler.CurrentParticipant() == nil || h.Handler.CurrentSession() == nil {
		return nil
	}

	for _, m := range h.Handler.GetModules() {
		if err = h.Handler.HandleWithModule(ctx, m, responder, msg); err != nil {
			return err
		}
	}
	return nil
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send    func(any)
	sendMsg func(wire.Msg)
}

func (r responseSender) Send(payload any) {
	r.send(payload)
}

func (r responseSender) SendMsg(msg wire.Msg) {
	r.sendMsg(msg)
}
