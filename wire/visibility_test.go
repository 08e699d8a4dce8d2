package wire

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/fov"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestVisibilityEncoding(t *testing.T) {
	t.Run("encoded visibility is decoded", func(t *testing.T) {
		v := Visibility{
			Type:          MsgTypeVisibility,
			RequestID:     42,
			ParticipantID: 3,
			Origin:        fov.Position{X: 4, Y: 1},
			Radius:        8,
			Width:         300,
			Visible: []fov.Position{
				{X: 0, Y: 0},
				{X: 4, Y: 1},
				{X: 299, Y: 1},
				{X: 12, Y: 250},
			},
		}

		res, err := DecodeVisibility(EncodeVisibility(v))
		require.NoError(t, err)
		require.Equal(t, v, res)
	})

	t.Run("empty visibility", func(t *testing.T) {
		v := Visibility{
			Type:  MsgTypeVisibility,
			Width: 10,
		}

		res, err := DecodeVisibility(EncodeVisibility(v))
		require.NoError(t, err)
		require.Equal(t, v, res)
	})

	t.Run("unknown fields are skipped", func(t *testing.T) {
		b := EncodeVisibility(Visibility{
			ParticipantID: 9,
			Width:         2,
			Visible:       []fov.Position{{X: 1, Y: 1}},
		})
		b = protowire.AppendTag(b, 42, protowire.BytesType)
		b = protowire.AppendString(b, "ignored")
		b = protowire.AppendTag(b, 43, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, 7)

		res, err := DecodeVisibility(b)
		require.NoError(t, err)
		require.Equal(t, uint32(9), res.ParticipantID)
		require.Equal(t, []fov.Position{{X: 1, Y: 1}}, res.Visible)
	})

	t.Run("truncated message", func(t *testing.T) {
		b := EncodeVisibility(Visibility{
			Width:   5,
			Visible: []fov.Position{{X: 1, Y: 2}, {X: 3, Y: 4}},
		})

		_, err := DecodeVisibility(b[:len(b)-1])
		require.True(t, errors.IsType(err, ErrTypeInvalidMsg))
	})

	t.Run("cells without width", func(t *testing.T) {
		b := protowire.AppendTag(nil, visibilityCells, protowire.BytesType)
		b = protowire.AppendBytes(b, protowire.AppendVarint(nil, 3))

		_, err := DecodeVisibility(b)
		require.True(t, errors.IsType(err, ErrTypeInvalidMsg))
	})
}
