package fov

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineRelativeSlope(t *testing.T) {
	diagonal := line{xi: 0, yi: 0, xf: 2, yf: 2}

	t.Run("point on the y side", func(t *testing.T) {
		p := Position{X: 0, Y: 1}
		require.Positive(t, diagonal.relativeSlope(p))
		require.True(t, diagonal.isBelow(p))
		require.True(t, diagonal.isBelowOrCollinear(p))
		require.False(t, diagonal.isAbove(p))
		require.False(t, diagonal.isAboveOrCollinear(p))
		require.False(t, diagonal.isCollinear(p))
	})

	t.Run("point on the x side", func(t *testing.T) {
		p := Position{X: 1, Y: 0}
		require.Negative(t, diagonal.relativeSlope(p))
		require.False(t, diagonal.isBelow(p))
		require.False(t, diagonal.isBelowOrCollinear(p))
		require.True(t, diagonal.isAbove(p))
		require.True(t, diagonal.isAboveOrCollinear(p))
		require.False(t, diagonal.isCollinear(p))
	})

	t.Run("point on the line", func(t *testing.T) {
		p := Position{X: 7, Y: 7}
		require.Zero(t, diagonal.relativeSlope(p))
		require.False(t, diagonal.isBelow(p))
		require.True(t, diagonal.isBelowOrCollinear(p))
		require.False(t, diagonal.isAbove(p))
		require.True(t, diagonal.isAboveOrCollinear(p))
		require.True(t, diagonal.isCollinear(p))
	})

	t.Run("large coordinates do not overflow", func(t *testing.T) {
		l := line{xi: 0, yi: 1, xf: MaxExtent, yf: 0}
		require.True(t, l.isCollinear(Position{X: MaxExtent, Y: 0}))
		require.True(t, l.isAbove(Position{X: MaxExtent - 1, Y: 0}))
		require.True(t, l.isBelow(Position{X: MaxExtent, Y: 1}))
		require.True(t, l.isBelow(Position{X: 0, Y: MaxExtent}))
	})
}

func TestLineIsLineCollinear(t *testing.T) {
	diagonal := line{xi: 0, yi: 0, xf: 2, yf: 2}

	t.Run("line on the same support", func(t *testing.T) {
		require.True(t, diagonal.isLineCollinear(line{xi: 3, yi: 3, xf: 5, yf: 5}))
	})

	t.Run("parallel line", func(t *testing.T) {
		require.False(t, diagonal.isLineCollinear(line{xi: 0, yi: 1, xf: 1, yf: 2}))
	})

	t.Run("crossing line", func(t *testing.T) {
		require.False(t, diagonal.isLineCollinear(line{xi: 1, yi: 1, xf: 2, yf: 0}))
	})
}
