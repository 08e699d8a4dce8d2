// Package smoketest checks that the field of view computed by a server matches
// the reference scenarios.
package smoketest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/fov"
	kenazhttp "github.com/aukilabs/kenaz/http"
	"github.com/aukilabs/kenaz/scenario"
	"github.com/aukilabs/kenaz/wire"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	defaultTimeout = 10 * time.Second
	maxTimeout     = 30 * time.Second
)

type Options struct {
	// The public endpoint of the server running the smoke test.
	Endpoint string

	UserAgent string

	// The token sent to remote endpoints.
	Token string

	// Called with the results of each smoke test. Optional.
	SendResult func(context.Context, Results) error
}

// Request is the optional body of a smoke test request. The reference
// scenarios are run in process when Endpoint is empty, or against the
// WebSocket server at Endpoint otherwise.
type Request struct {
	Endpoint string        `json:"endpoint,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

type Results struct {
	FromEndpoint    string           `json:"from_endpoint"`
	ToEndpoint      string           `json:"to_endpoint,omitempty"`
	Status          string           `json:"status"`
	LatencyMilliSec float64          `json:"latency_ms"`
	Error           string           `json:"error,omitempty"`
	Scenarios       []ScenarioResult `json:"scenarios"`
}

type ScenarioResult struct {
	Name       string         `json:"name"`
	Passed     bool           `json:"passed"`
	Missing    []fov.Position `json:"missing,omitempty"`
	Unexpected []fov.Position `json:"unexpected,omitempty"`
}

func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}

		req.Timeout = requestTimeout(req)

		ctx, cancel := context.WithTimeout(ctx, req.Timeout)
		defer cancel()

		res := Run(ctx, opts, req)

		if opts.SendResult != nil {
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}

		status := http.StatusOK
		if res.Status != StatusSuccess {
			status = http.StatusInternalServerError
		}

		w.Header().Set("Content-Type", kenazhttp.ContentTypeJSON)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(res)
	}
}

// requestTimeout bounds the client supplied timeout, which also bounds the
// remote connection deadline.
func requestTimeout(req Request) time.Duration {
	switch {
	case req.Timeout <= 0:
		return defaultTimeout
	case req.Timeout > maxTimeout:
		return maxTimeout
	default:
		return req.Timeout
	}
}

// Run runs the reference scenarios described by req.
func Run(ctx context.Context, opts Options, req Request) Results {
	start := time.Now()

	res := Results{
		FromEndpoint: opts.Endpoint,
		ToEndpoint:   req.Endpoint,
		Status:       StatusFailed,
	}

	scenarios, err := scenario.Reference()
	if err != nil {
		res.Error = err.Error()
		return res
	}

	if req.Endpoint == "" {
		res.Scenarios, err = runLocal(scenarios)
	} else {
		res.Scenarios, err = runRemote(ctx, opts, req.Endpoint, scenarios)
	}
	if err != nil {
		logs.WithTag("to_endpoint", req.Endpoint).Warn(err)
		res.Error = err.Error()
		return res
	}

	res.LatencyMilliSec = float64(time.Since(start).Microseconds()) / 1000
	res.Status = StatusSuccess
	for _, s := range res.Scenarios {
		if !s.Passed {
			res.Status = StatusFailed
		}
	}
	return res
}

func runLocal(scenarios []scenario.Scenario) ([]ScenarioResult, error) {
	results := make([]ScenarioResult, 0, len(scenarios))
	for _, s := range scenarios {
		r, err := s.Run()
		if err != nil {
			return nil, err
		}

		results = append(results, ScenarioResult{
			Name:       r.Name,
			Passed:     r.Passed(),
			Missing:    r.Missing,
			Unexpected: r.Unexpected,
		})
	}
	return results, nil
}

// runRemote replays the scenarios on a server and compares its visibility
// updates with the fields of view computed in process.
func runRemote(ctx context.Context, opts Options, endpoint string, scenarios []scenario.Scenario) ([]ScenarioResult, error) {
	conn, err := dial(endpoint, opts)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	results := make([]ScenarioResult, 0, len(scenarios))
	for i, s := range scenarios {
		expected, err := s.Run()
		if err != nil {
			return nil, err
		}

		requestID := uint32(i*2 + 1)
		visible, err := remoteVisible(conn, requestID, s, expected)
		if err != nil {
			return nil, errors.New("running remote scenario failed").
				WithTag("scenario", s.Name).
				Wrap(err)
		}

		r := ScenarioResult{Name: s.Name}
		for _, p := range expected.Visible.Sorted() {
			if !visible.Contains(p) {
				r.Missing = append(r.Missing, p)
			}
		}
		for _, p := range visible.Sorted() {
			if !expected.Visible.Contains(p) {
				r.Unexpected = append(r.Unexpected, p)
			}
		}
		r.Passed = len(r.Missing) == 0 && len(r.Unexpected) == 0
		results = append(results, r)
	}
	return results, nil
}

func dial(endpoint string, opts Options) (*websocket.Conn, error) {
	origin := opts.Endpoint
	if origin == "" {
		origin = "http://localhost"
	}

	config, err := websocket.NewConfig(toWebSocketURL(endpoint), origin)
	if err != nil {
		return nil, errors.New("creating websocket config failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}

	if opts.UserAgent != "" {
		config.Header.Set("User-Agent", opts.UserAgent)
	}
	if opts.Token != "" {
		config.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, errors.New("dialing endpoint failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}
	return conn, nil
}

func remoteVisible(conn *websocket.Conn, requestID uint32, s scenario.Scenario, expected scenario.Result) (fov.Set, error) {
	err := send(conn, wire.SessionJoinRequest{
		Type:      wire.MsgTypeSessionJoinRequest,
		RequestID: requestID,
		Map:       expected.Grid.Rows(),
	})
	if err != nil {
		return nil, err
	}

	if _, err := receive(conn, wire.MsgTypeSessionJoinResponse, requestID); err != nil {
		return nil, err
	}

	err = send(conn, wire.ViewerMove{
		Type:      wire.MsgTypeViewerMove,
		RequestID: requestID + 1,
		Origin:    expected.Origin,
		Radius:    s.Radius,
	})
	if err != nil {
		return nil, err
	}

	msg, err := receive(conn, wire.MsgTypeVisibility, requestID+1)
	if err != nil {
		return nil, err
	}

	var v wire.Visibility
	if msg.Binary {
		v, err = wire.DecodeVisibility(msg.Data)
	} else {
		err = msg.DataTo(&v)
	}
	if err != nil {
		return nil, err
	}

	visible := make(fov.Set, len(v.Visible))
	for _, p := range v.Visible {
		visible.Add(p)
	}
	return visible, nil
}

func send(conn *websocket.Conn, payload any) error {
	msg, err := wire.MsgFromPayload(payload)
	if err != nil {
		return err
	}

	_, err = wire.Send(conn, msg)
	return err
}

// receive waits for the response of the given type and request id. An error
// response to the request fails the scenario.
func receive(conn *websocket.Conn, msgType wire.MsgType, requestID uint32) (wire.Msg, error) {
	for {
		msg, _, err := wire.Receive(conn)
		if errors.IsType(err, wire.ErrTypeInvalidMsg) {
			continue
		}
		if err != nil {
			return wire.Msg{}, err
		}

		if msg.Type != msgType && msg.Type != wire.MsgTypeErrorResponse {
			continue
		}

		if msg.Binary {
			v, err := wire.DecodeVisibility(msg.Data)
			if err == nil && v.RequestID == requestID {
				return msg, nil
			}
			continue
		}

		var res wire.ErrorResponse
		if err := msg.DataTo(&res); err != nil || res.RequestID != requestID {
			continue
		}

		if msg.Type == wire.MsgTypeErrorResponse {
			return wire.Msg{}, errors.New("request failed").
				WithTag("request_id", requestID).
				WithTag("code", res.Code)
		}
		return msg, nil
	}
}

func toWebSocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}
