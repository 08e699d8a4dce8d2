package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	kenazhttp "github.com/aukilabs/kenaz/http"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules"
	"github.com/aukilabs/kenaz/wire"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Creates a testing environement to unit test handlers and modules.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, *websocket.Conn, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	clientA, clientB, close := newTestingEnv(t, newHandler)
	return clientA, clientB, func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
		close()
	}
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, *websocket.Conn, func()) {
	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	newConn := func() *websocket.Conn {
		config, err := websocket.NewConfig(
			strings.ReplaceAll(server.URL, "http://", "ws://"),
			"http://localhost",
		)
		if err != nil {
			t.Fatalf("error initializing web socket: %s", err)
		}

		config.Header.Set("User-Agent", "ted")
		config.Header.Set("X-Forwarded-For", "192.0.0.0")
		config.Header.Set(kenazhttp.HeaderClientID, uuid.NewString())

		conn, err := websocket.DialConfig(config)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}

		return conn
	}

	clientA := newConn()
	clientB := newConn()

	return clientA, clientB, func() {
		clientA.Close()
		clientB.Close()
		server.Close()
	}
}

func newTestHandler(newModule ...func() modules.Module) func() Handler {
	return newTestHandlerWithOptions(func(h *RealtimeHandler) {}, newModule...)
}

func newTestHandlerWithOptions(configure func(*RealtimeHandler), newModule ...func() modules.Module) func() Handler {
	sessionStore := &models.SessionStore{
		ServerID: "ted",
	}

	return func() Handler {
		modules := make([]modules.Module, len(newModule))
		for i, nm := range newModule {
			modules[i] = nm()
		}

		rh := &RealtimeHandler{
			ClientSyncClockInterval: time.Millisecond * 250,
			ClientIdleTimeout:       time.Minute,
			FrameDuration:           time.Millisecond * 10,
			MaxMapSize:              4096,
			MaxRadius:               64,
			Sessions:                sessionStore,
			Modules:                 modules,
		}
		configure(rh)

		var h Handler = rh
		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "https://kenaz-test.com")
		return h
	}
}

// Filter reports whether a received message is the one an exchange waits
// for.
type Filter func(wire.Msg) bool

func FilterByType(t wire.MsgType) Filter {
	return func(msg wire.Msg) bool {
		return msg.Type == t
	}
}

func FilterByRequestID(id uint32) Filter {
	return func(msg wire.Msg) bool {
		if msg.Binary {
			v, err := wire.DecodeVisibility(msg.Data)
			return err == nil && v.RequestID == id
		}

		var req wire.Request
		return msg.DataTo(&req) == nil && req.RequestID == id
	}
}

// Exchange is a scripted conversation with a server. Received messages that
// do not match the awaited filters are ignored.
type Exchange struct {
	conn  *websocket.Conn
	steps []exchangeStep
}

type exchangeStep struct {
	send    func() any
	filters []Filter
	into    any
}

func NewExchange(conn *websocket.Conn) *Exchange {
	return &Exchange{conn: conn}
}

// Send sends the payload returned by f.
func (e *Exchange) Send(f func() any) *Exchange {
	e.steps = append(e.steps, exchangeStep{send: f})
	return e
}

// Receive waits for a message that matches all the filters.
func (e *Exchange) Receive(filters ...Filter) *Exchange {
	return e.ReceiveInto(nil, filters...)
}

// ReceiveInto waits for a message that matches all the filters and decodes
// it into v. Binary messages are decoded into a *wire.Visibility.
func (e *Exchange) ReceiveInto(v any, filters ...Filter) *Exchange {
	e.steps = append(e.steps, exchangeStep{
		filters: filters,
		into:    v,
	})
	return e
}

func (e *Exchange) Run(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		e.conn.SetReadDeadline(deadline)
		defer e.conn.SetReadDeadline(time.Time{})
	}

	for i, s := range e.steps {
		if s.send != nil {
			msg, err := wire.MsgFromPayload(s.send())
			if err != nil {
				return errors.New("encoding exchange message failed").
					WithTag("step", i).
					Wrap(err)
			}
			if _, err = wire.Send(e.conn, msg); err != nil {
				return errors.New("sending exchange message failed").
					WithTag("step", i).
					Wrap(err)
			}
			continue
		}

		msg, err := e.receive(ctx, s.filters)
		if err != nil {
			return errors.New("receiving exchange message failed").
				WithTag("step", i).
				Wrap(err)
		}

		if err := decodeInto(msg, s.into); err != nil {
			return errors.New("decoding exchange message failed").
				WithTag("step", i).
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}
	}

	return nil
}

func (e *Exchange) receive(ctx context.Context, filters []Filter) (wire.Msg, error) {
	for {
		if err := ctx.Err(); err != nil {
			return wire.Msg{}, err
		}

		msg, _, err := wire.Receive(e.conn)
		if errors.IsType(err, wire.ErrTypeInvalidMsg) {
			continue
		}
		if err != nil && deadlineReached(ctx) {
			return wire.Msg{}, context.DeadlineExceeded
		}
		if err != nil {
			return wire.Msg{}, err
		}

		if matchAll(msg, filters) {
			return msg, nil
		}
	}
}

func deadlineReached(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	return ok && !time.Now().Before(deadline)
}

func matchAll(msg wire.Msg, filters []Filter) bool {
	for _, f := range filters {
		if !f(msg) {
			return false
		}
	}
	return true
}

func decodeInto(msg wire.Msg, v any) error {
	if v == nil {
		return nil
	}

	if msg.Binary {
		visibility, ok := v.(*wire.Visibility)
		if !ok {
			return errors.New("binary message can only be decoded into a visibility")
		}

		decoded, err := wire.DecodeVisibility(msg.Data)
		if err != nil {
			return err
		}
		*visibility = decoded
		return nil
	}

	return msg.DataTo(v)
}
