package fov

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBumpArena(t *testing.T) {
	var a bumpArena

	first := a.push(Position{X: 1, Y: 2}, noBump)
	second := a.push(Position{X: 3, Y: 4}, first)
	require.Equal(t, int32(0), first)
	require.Equal(t, int32(1), second)
	require.Equal(t, first, a.at(second).parent)
	require.Equal(t, noBump, a.at(first).parent)

	a.reset()
	require.Empty(t, a.bumps)
}

func TestViewTightenSteep(t *testing.T) {
	var a bumpArena
	v := newView(4, 4)

	v.tightenSteep(&a, Position{X: 3, Y: 1})
	require.Equal(t, line{xi: 1, yi: 0, xf: 3, yf: 1}, v.steep)
	require.Equal(t, Position{X: 3, Y: 1}, a.at(v.steepBump).pos)
	require.Equal(t, noBump, v.shallowBump)
}

func TestViewTightenShallow(t *testing.T) {
	t.Run("start point is kept without steep bumps", func(t *testing.T) {
		var a bumpArena
		v := newView(4, 4)

		v.tightenShallow(&a, Position{X: 2, Y: 3})
		require.Equal(t, line{xi: 0, yi: 1, xf: 2, yf: 3}, v.shallow)
		require.Equal(t, Position{X: 2, Y: 3}, a.at(v.shallowBump).pos)
	})

	t.Run("start point is pulled onto a steep bump", func(t *testing.T) {
		var a bumpArena
		v := newView(4, 4)

		v.tightenSteep(&a, Position{X: 3, Y: 1})
		v.tightenShallow(&a, Position{X: 4, Y: 3})
		require.Equal(t, line{xi: 3, yi: 1, xf: 4, yf: 3}, v.shallow)
	})

	t.Run("split views share bump chains", func(t *testing.T) {
		var a bumpArena
		v := newView(4, 4)
		v.tightenSteep(&a, Position{X: 3, Y: 1})

		copied := v
		copied.tightenShallow(&a, Position{X: 4, Y: 3})
		require.Equal(t, v.steepBump, copied.steepBump)
		require.Equal(t, noBump, v.shallowBump)
		require.NotEqual(t, noBump, copied.shallowBump)
	})
}

func TestViewIsDegenerate(t *testing.T) {
	t.Run("initial view is not degenerate", func(t *testing.T) {
		v := newView(3, 3)
		require.False(t, v.isDegenerate())
	})

	t.Run("collinear boundaries through a corner of the origin", func(t *testing.T) {
		v := view{
			shallow: line{xi: 0, yi: 1, xf: 1, yf: 1},
			steep:   line{xi: 2, yi: 1, xf: 3, yf: 1},
		}
		require.True(t, v.isDegenerate())
	})

	t.Run("collinear boundaries away from the origin", func(t *testing.T) {
		v := view{
			shallow: line{xi: 0, yi: 2, xf: 1, yf: 2},
			steep:   line{xi: 2, yi: 2, xf: 3, yf: 2},
		}
		require.False(t, v.isDegenerate())
	})
}
