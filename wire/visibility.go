package wire

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/fov"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the binary visibility message:
//
//	message Visibility {
//	  uint32 request_id = 1;
//	  uint32 participant_id = 2;
//	  uint32 origin_x = 3;
//	  uint32 origin_y = 4;
//	  uint32 radius = 5;
//	  uint32 width = 6;
//	  repeated uint64 cells = 7 [packed = true]; // y * width + x
//	}
const (
	visibilityRequestID     protowire.Number = 1
	visibilityParticipantID protowire.Number = 2
	visibilityOriginX       protowire.Number = 3
	visibilityOriginY       protowire.Number = 4
	visibilityRadius        protowire.Number = 5
	visibilityWidth         protowire.Number = 6
	visibilityCells         protowire.Number = 7
)

// EncodeVisibility returns the protobuf encoding of v. Width must be set and
// every visible position must be within it.
func EncodeVisibility(v Visibility) []byte {
	b := make([]byte, 0, 16+len(v.Visible)*2)
	b = appendVarintField(b, visibilityRequestID, uint64(v.RequestID))
	b = appendVarintField(b, visibilityParticipantID, uint64(v.ParticipantID))
	b = appendVarintField(b, visibilityOriginX, uint64(v.Origin.X))
	b = appendVarintField(b, visibilityOriginY, uint64(v.Origin.Y))
	b = appendVarintField(b, visibilityRadius, uint64(v.Radius))
	b = appendVarintField(b, visibilityWidth, uint64(v.Width))

	if len(v.Visible) == 0 {
		return b
	}

	var cells []byte
	for _, p := range v.Visible {
		cells = protowire.AppendVarint(cells, uint64(p.Y)*uint64(v.Width)+uint64(p.X))
	}
	b = protowire.AppendTag(b, visibilityCells, protowire.BytesType)
	return protowire.AppendBytes(b, cells)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// DecodeVisibility decodes a message produced by EncodeVisibility. Unknown
// fields are skipped.
func DecodeVisibility(b []byte) (Visibility, error) {
	v := Visibility{Type: MsgTypeVisibility}
	var cells []byte

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Visibility{}, decodeError(n)
		}
		b = b[n:]

		if num == visibilityCells && typ == protowire.BytesType {
			value, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Visibility{}, decodeError(n)
			}
			cells = append(cells, value...)
			b = b[n:]
			continue
		}

		if typ != protowire.VarintType || num > visibilityWidth {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Visibility{}, decodeError(n)
			}
			b = b[n:]
			continue
		}

		value, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return Visibility{}, decodeError(n)
		}
		b = b[n:]

		switch num {
		case visibilityRequestID:
			v.RequestID = uint32(value)
		case visibilityParticipantID:
			v.ParticipantID = uint32(value)
		case visibilityOriginX:
			v.Origin.X = int(value)
		case visibilityOriginY:
			v.Origin.Y = int(value)
		case visibilityRadius:
			v.Radius = int(value)
		case visibilityWidth:
			v.Width = int(value)
		}
	}

	if len(cells) != 0 && v.Width <= 0 {
		return Visibility{}, errors.New("visibility cells without width").WithType(ErrTypeInvalidMsg)
	}

	for len(cells) > 0 {
		index, n := protowire.ConsumeVarint(cells)
		if n < 0 {
			return Visibility{}, decodeError(n)
		}
		cells = cells[n:]

		v.Visible = append(v.Visible, fov.Position{
			X: int(index % uint64(v.Width)),
			Y: int(index / uint64(v.Width)),
		})
	}

	return v, nil
}

func decodeError(n int) error {
	return errors.New("decoding visibility failed").
		WithType(ErrTypeInvalidMsg).
		Wrap(protowire.ParseError(n))
}
