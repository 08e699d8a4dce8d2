package wire

import (
	"time"

	"github.com/aukilabs/kenaz/fov"
)

// MsgType identifies a message.
type MsgType string

const (
	MsgTypePingRequest         MsgType = "ping_request"
	MsgTypePingResponse        MsgType = "ping_response"
	MsgTypeSyncClock           MsgType = "sync_clock"
	MsgTypeErrorResponse       MsgType = "error_response"
	MsgTypeSessionJoinRequest  MsgType = "session_join_request"
	MsgTypeSessionJoinResponse MsgType = "session_join_response"
	MsgTypeSessionState        MsgType = "session_state"
	MsgTypeViewerMove          MsgType = "viewer_move"
	MsgTypeVisibility          MsgType = "visibility"
	MsgTypeTileSetRequest      MsgType = "tile_set_request"
	MsgTypeTileSetResponse     MsgType = "tile_set_response"
	MsgTypeTileUpdateBroadcast MsgType = "tile_update"
	MsgTypeFogRequest          MsgType = "fog_request"
	MsgTypeFogResponse         MsgType = "fog_response"
	MsgTypeFogUpdate           MsgType = "fog_update"
	MsgTypeLineOfSightRequest  MsgType = "los_request"
	MsgTypeLineOfSightResponse MsgType = "los_response"
	MsgTypeParticipantLeave    MsgType = "participant_leave"
	MsgTypeParticipantJoin     MsgType = "participant_join"
	MsgTypeUnknown             MsgType = "unknown"
)

// ErrorCode describes why a request failed.
type ErrorCode string

const (
	ErrorCodeBadRequest           ErrorCode = "bad_request"
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeOutOfBounds          ErrorCode = "out_of_bounds"
	ErrorCodeTooLarge             ErrorCode = "too_large"
	ErrorCodeSessionAlreadyJoined ErrorCode = "session_already_joined"
	ErrorCodeInternalServerError  ErrorCode = "internal_server_error"
)

// Encoding is the format visibility updates are sent with.
type Encoding string

const (
	EncodingJSON     Encoding = "json"
	EncodingProtobuf Encoding = "protobuf"
)

type Request struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id"`
}

type Response struct {
	Type      MsgType   `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
}

type SyncClock struct {
	Type      MsgType   `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Type      MsgType   `json:"type"`
	RequestID uint32    `json:"request_id,omitempty"`
	Code      ErrorCode `json:"code"`
}

// GenerateOptions asks the server to generate the session map.
type GenerateOptions struct {
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Seed    int64    `json:"seed"`
	Density *float64 `json:"density,omitempty"`
	Mode    string   `json:"mode,omitempty"`
}

// SessionJoinRequest joins the session with the given id, or creates a new
// session from Map or Generate when the id is empty.
type SessionJoinRequest struct {
	Type      MsgType          `json:"type"`
	RequestID uint32           `json:"request_id"`
	SessionID string           `json:"session_id,omitempty"`
	Map       []string         `json:"map,omitempty"`
	Generate  *GenerateOptions `json:"generate,omitempty"`
	Encoding  Encoding         `json:"encoding,omitempty"`
}

type SessionJoinResponse struct {
	Type          MsgType `json:"type"`
	RequestID     uint32  `json:"request_id"`
	SessionID     string  `json:"session_id"`
	SessionUUID   string  `json:"session_uuid"`
	ParticipantID uint32  `json:"participant_id"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
}

type Participant struct {
	ID     uint32        `json:"id"`
	Origin *fov.Position `json:"origin,omitempty"`
	Radius int           `json:"radius,omitempty"`
}

type SessionState struct {
	Type         MsgType       `json:"type"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Map          []string      `json:"map"`
	Participants []Participant `json:"participants"`
}

type ParticipantBroadcast struct {
	Type          MsgType `json:"type"`
	ParticipantID uint32  `json:"participant_id"`
}

// ViewerMove places the viewer of the sender and requests its visibility.
type ViewerMove struct {
	Type      MsgType      `json:"type"`
	RequestID uint32       `json:"request_id"`
	Origin    fov.Position `json:"origin"`
	Radius    int          `json:"radius"`
}

// Visibility is the set of cells a participant sees. RequestID is zero when
// the update follows a map change rather than a move.
type Visibility struct {
	Type          MsgType        `json:"type"`
	RequestID     uint32         `json:"request_id,omitempty"`
	ParticipantID uint32         `json:"participant_id"`
	Origin        fov.Position   `json:"origin"`
	Radius        int            `json:"radius"`
	Width         int            `json:"width"`
	Visible       []fov.Position `json:"visible"`
}

type TileSetRequest struct {
	Type      MsgType      `json:"type"`
	RequestID uint32       `json:"request_id"`
	Position  fov.Position `json:"position"`
	Blocked   bool         `json:"blocked"`
}

type TileSetResponse struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id"`
}

type TileUpdateBroadcast struct {
	Type          MsgType      `json:"type"`
	ParticipantID uint32       `json:"participant_id"`
	Position      fov.Position `json:"position"`
	Blocked       bool         `json:"blocked"`
}

type FogRequest struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id"`
}

type FogResponse struct {
	Type      MsgType        `json:"type"`
	RequestID uint32         `json:"request_id"`
	Explored  []fov.Position `json:"explored"`
	Visible   []fov.Position `json:"visible"`
}

// FogUpdate lists the positions a participant explored for the first time.
type FogUpdate struct {
	Type          MsgType        `json:"type"`
	ParticipantID uint32         `json:"participant_id"`
	Explored      []fov.Position `json:"explored"`
}

type LineOfSightRequest struct {
	Type      MsgType      `json:"type"`
	RequestID uint32       `json:"request_id"`
	From      fov.Position `json:"from"`
	To        fov.Position `json:"to"`
}

type LineOfSightResponse struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id"`
	Visible   bool    `json:"visible"`
}
