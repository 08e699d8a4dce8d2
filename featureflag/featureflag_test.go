package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{"FEATURE1"})

	t.Run("run if enabled", func(t *testing.T) {
		var runFeature1 bool
		f.IfSet("FEATURE1", func() {
			runFeature1 = true
		})
		require.True(t, runFeature1)

		var runFeature2 bool
		f.IfSet("FEATURE2", func() {
			runFeature2 = true
		})
		require.False(t, runFeature2)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runFeature1 bool
		f.IfNotSet("FEATURE1", func() {
			runFeature1 = true
		})
		require.False(t, runFeature1)

		var runFeature2 bool
		f.IfNotSet("FEATURE2", func() {
			runFeature2 = true
		})
		require.True(t, runFeature2)
	})
}

func TestNew(t *testing.T) {
	f := New([]string{" parallel_quadrants ", "", "DISABLE_SESSION_STATE"})
	require.Len(t, f, 2)
	require.True(t, f.IsSet(FlagParallelQuadrants))
	require.True(t, f.IsSet(FlagDisableSessionState))
	require.False(t, f.IsSet(FlagDisableTileUpdateBroadcast))

	var empty FeatureFlag
	require.False(t, empty.IsSet(FlagParallelQuadrants))
}
