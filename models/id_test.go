package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequentialIDGeneratorNew(t *testing.T) {
	t.Run("returns a new id", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			id := idGen.New()
			require.Equal(t, uint32(i), id)
		}
	})

	t.Run("returns a reusable id", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			idGen.New()
		}

		idGen.Reuse(2)
		id := idGen.New()
		require.Equal(t, uint32(2), id)
		require.Equal(t, uint32(6), idGen.New())
	})

	t.Run("released ids are returned lowest first", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			idGen.New()
		}

		idGen.Reuse(4)
		idGen.Reuse(2)
		idGen.Reuse(4)
		idGen.Reuse(9)
		require.Equal(t, uint32(2), idGen.New())
		require.Equal(t, uint32(4), idGen.New())
		require.Equal(t, uint32(6), idGen.New())
	})

	t.Run("concurrent ids are unique", func(t *testing.T) {
		var idGen SequentialIDGenerator
		var mutex sync.Mutex
		var wg sync.WaitGroup
		ids := make(map[uint32]struct{})

		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				id := idGen.New()
				mutex.Lock()
				ids[id] = struct{}{}
				mutex.Unlock()
			}()
		}

		wg.Wait()
		require.Len(t, ids, 64)
	})
}
