// Package wire defines the realtime protocol spoken over WebSocket
// connections: JSON text frames carrying a "type" field, and binary frames
// carrying protobuf encoded visibility updates.
package wire

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	// The error type returned by modules to indicate that a message is not
	// handled by them.
	ErrTypeMsgSkip = "msg_skip"

	// The error type returned when a message requires a joined session.
	ErrTypeSessionNotJoined = "session_not_joined"

	// The error type returned when a frame cannot be decoded.
	ErrTypeInvalidMsg = "invalid_msg"
)

// ErrModuleMsgSkip is returned by modules that do not handle a message.
var ErrModuleMsgSkip = errors.New("message skipped by module").WithType(ErrTypeMsgSkip)

// Msg is a message received from or sent to a client.
type Msg struct {
	Type MsgType

	// When the message was received or created.
	Time time.Time

	// The encoded payload.
	Data []byte

	// Whether Data is sent as a binary frame.
	Binary bool
}

func (m Msg) TypeString() string {
	return string(m.Type)
}

// DataTo decodes the payload into v.
func (m Msg) DataTo(v any) error {
	if m.Binary {
		return errors.New("binary message cannot be decoded as json").
			WithType(ErrTypeInvalidMsg).
			WithTag("msg_type", m.Type)
	}

	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message failed").
			WithType(ErrTypeInvalidMsg).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

type header struct {
	Type MsgType `json:"type"`
}

// MsgFromBytes creates a message from a JSON frame.
func MsgFromBytes(data []byte) (Msg, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return Msg{}, errors.New("decoding message header failed").
			WithType(ErrTypeInvalidMsg).
			Wrap(err)
	}

	if h.Type == "" {
		return Msg{}, errors.New("message has no type").WithType(ErrTypeInvalidMsg)
	}

	return Msg{
		Type: h.Type,
		Time: time.Now(),
		Data: data,
	}, nil
}

// MsgFromPayload encodes one of the payloads of this package.
func MsgFromPayload(payload any) (Msg, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Msg{}, errors.New("encoding payload failed").
			WithType(ErrTypeInvalidMsg).
			Wrap(err)
	}
	return MsgFromBytes(data)
}

// BinaryMsg creates a message sent as a binary frame.
func BinaryMsg(t MsgType, data []byte) Msg {
	return Msg{
		Type:   t,
		Time:   time.Now(),
		Data:   data,
		Binary: true,
	}
}

// ResponseSender sends messages to the client being served.
type ResponseSender interface {
	// Encodes and sends a payload.
	Send(payload any)

	// Sends an already encoded message.
	SendMsg(Msg)
}

// Receiver reads the next message and returns the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender writes a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

type frame struct {
	data   []byte
	binary bool
}

var frameCodec = websocket.Codec{
	Marshal: func(v any) ([]byte, byte, error) {
		f := v.(frame)
		if f.binary {
			return f.data, websocket.BinaryFrame, nil
		}
		return f.data, websocket.TextFrame, nil
	},
	Unmarshal: func(data []byte, payloadType byte, v any) error {
		f := v.(*frame)
		f.data = data
		f.binary = payloadType == websocket.BinaryFrame
		return nil
	},
}

// Receive reads a frame from conn. Binary frames are visibility messages.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var f frame
	if err := frameCodec.Receive(conn, &f); err != nil {
		return Msg{}, 0, err
	}

	if f.binary {
		return BinaryMsg(MsgTypeVisibility, f.data), len(f.data), nil
	}

	msg, err := MsgFromBytes(f.data)
	return msg, len(f.data), err
}

// Send writes msg to conn as a text or binary frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	if err := frameCodec.Send(conn, frame{data: msg.Data, binary: msg.Binary}); err != nil {
		return 0, err
	}
	return len(msg.Data), nil
}
