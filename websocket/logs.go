package websocket

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/wire"
	"golang.org/x/net/websocket"
)

const (
	sessionIDTag     = "session_id"
	sessionUUIDTag   = "session_uuid"
	participantIDTag = "participant_id"
)

// HandlerWithLogs wraps h with connection logs and a periodic summary of the
// received messages.
func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	originalRequest *http.Request

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int

	stateMutex    sync.RWMutex
	sessionID     string
	sessionUUID   string
	participantID uint32
}

type httpHeaders struct {
	UserAgent     string `json:"user_agent,omitempty"`
	XForwardedFor string `json:"x_forwarded_for,omitempty"`
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)
	h.originalRequest = conn.Request()

	logs.WithClientID(h.GetClientID()).
		Info("new client is connected")
}

func (h *handlerWithLogs) HandleSessionJoin(ctx context.Context, handleFrame func(), respond wire.ResponseSender, msg wire.Msg) error {
	previousSession := h.CurrentSession()

	if err := h.Handler.HandleSessionJoin(ctx, handleFrame, respond, msg); err != nil {
		return err
	}

	headers := httpHeaders{}
	if h.originalRequest != nil {
		headers.UserAgent = h.originalRequest.UserAgent()
		headers.XForwardedFor = h.originalRequest.Header.Get("X-Forwarded-For")
	}

	session := h.CurrentSession()
	participant := h.CurrentParticipant()
	if session == nil || participant == nil || session == previousSession {
		var req wire.SessionJoinRequest
		// Parsing already succeeded in the wrapped handler.
		msg.DataTo(&req)

		logs.WithClientID(h.GetClientID()).
			WithTag(sessionIDTag, req.SessionID).
			WithTag("request_id", req.RequestID).
			WithTag("http_headers", headers).
			Info("participant failed to join a session")
		return nil
	}

	h.stateMutex.Lock()
	h.sessionID = h.GetSessions().GlobalSessionID(session.ID)
	h.sessionUUID = session.SessionUUID
	h.participantID = participant.ID
	h.stateMutex.Unlock()

	width, height := session.Size()
	h.entry().
		WithTag("source", session.Source).
		WithTag("width", width).
		WithTag("height", height).
		WithTag("encoding", participant.Encoding).
		WithTag("http_headers", headers).
		Info("participant joined a session")
	return nil
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	entry := h.entry()
	if err != nil {
		entry = entry.WithTag("reason", err.Error())
	}
	entry.Info("client disconnected")
}

func (h *handlerWithLogs) Receiver() wire.Receiver {
	receive := h.Handler.Receiver()

	return func() (wire.Msg, int, error) {
		msg, n, err := receive()
		if err != nil && !stderrors.Is(err, io.EOF) && !stderrors.Is(err, net.ErrClosed) {
			h.entry().
				Error(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			h.entry().
				WithTag("msg_type", msg.TypeString()).
				Debug("message received")
			h.incCounter(msg.TypeString())
		}
		return msg, n, err
	}
}

func (h *handlerWithLogs) Sender() wire.Sender {
	sender := h.Handler.Sender()

	return func(msg wire.Msg) (int, error) {
		msgType := msg.TypeString()

		n, err := sender(msg)
		if err != nil && !stderrors.Is(err, net.ErrClosed) {
			h.entry().
				WithTag("msg_type", msgType).
				Error(errors.New("sending message failed").Wrap(err))
		} else if err == nil {
			h.entry().
				WithTag("msg_type", msgType).
				Debug("message sent")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

// entry returns a log entry tagged with the client and its session.
func (h *handlerWithLogs) entry() logs.Entry {
	h.stateMutex.RLock()
	defer h.stateMutex.RUnlock()

	return logs.WithClientID(h.GetClientID()).
		WithTag(sessionIDTag, h.sessionID).
		WithTag(sessionUUIDTag, h.sessionUUID).
		WithTag(participantIDTag, h.participantID)
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := h.entry().
		WithTag("time_interval", h.summaryInterval)

	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("inbound message summary")
}
