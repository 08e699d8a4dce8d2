package fog

import (
	"testing"

	"github.com/aukilabs/kenaz/fov"
	"github.com/stretchr/testify/require"
)

func TestStateExplore(t *testing.T) {
	t.Run("empty state", func(t *testing.T) {
		var s State
		require.Empty(t, s.Explored())
	})

	t.Run("explored positions accumulate", func(t *testing.T) {
		var s State

		discovered := s.Explore(fov.Set{{X: 1, Y: 0}: {}, {X: 0, Y: 0}: {}})
		require.Equal(t, []fov.Position{{X: 0, Y: 0}, {X: 1, Y: 0}}, discovered)

		discovered = s.Explore(fov.Set{{X: 0, Y: 1}: {}, {X: 0, Y: 0}: {}})
		require.Equal(t, []fov.Position{{X: 0, Y: 1}}, discovered)

		require.Empty(t, s.Explore(nil))
		require.Empty(t, s.Explore(fov.Set{{X: 1, Y: 0}: {}}))
		require.Equal(t, []fov.Position{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}, s.Explored())
	})
}
