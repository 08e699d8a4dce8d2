package fov

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

type testMap struct {
	width     int
	height    int
	origin    Position
	obstacles Set
}

func parseTestMap(rows ...string) testMap {
	m := testMap{
		width:     len(rows[0]),
		height:    len(rows),
		obstacles: make(Set),
	}

	for y, row := range rows {
		for x, c := range row {
			switch c {
			case '#':
				m.obstacles.Add(Position{X: x, Y: y})
			case '@':
				m.origin = Position{X: x, Y: y}
			}
		}
	}
	return m
}

func randomTestMap(seed uint64, width, height int, density float64) testMap {
	r := rand.New(rand.NewPCG(seed, seed))
	m := testMap{
		width:     width,
		height:    height,
		obstacles: make(Set),
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if r.Float64() < density {
				m.obstacles.Add(Position{X: x, Y: y})
			}
		}
	}
	return m
}

func (m testMap) blocked(p Position) bool {
	return m.obstacles.Contains(p)
}

func (m testMap) query(origin Position, radius int) Query {
	return Query{
		Origin: origin,
		Width:  m.width,
		Height: m.height,
		Radius: radius,
	}
}

func (m testMap) compute(t *testing.T, radius int) []string {
	visible, err := Compute(m.query(m.origin, radius), m.blocked)
	require.NoError(t, err)
	return mask(visible, m.width, m.height)
}

func mask(visible Set, width, height int) []string {
	rows := make([]string, height)
	for y := range rows {
		var b strings.Builder
		for x := 0; x < width; x++ {
			if visible.Contains(Position{X: x, Y: y}) {
				b.WriteByte('O')
			} else {
				b.WriteByte('X')
			}
		}
		rows[y] = b.String()
	}
	return rows
}

func TestQueryValidate(t *testing.T) {
	t.Run("valid query", func(t *testing.T) {
		q := Query{Origin: Position{X: 2, Y: 3}, Width: 5, Height: 6, Radius: 4}
		require.NoError(t, q.Validate())
	})

	tests := []struct {
		name    string
		query   Query
		errType string
	}{
		{
			name:    "zero width",
			query:   Query{Width: 0, Height: 4},
			errType: ErrTypeInvalidQuery,
		},
		{
			name:    "negative height",
			query:   Query{Width: 4, Height: -1},
			errType: ErrTypeInvalidQuery,
		},
		{
			name:    "negative radius",
			query:   Query{Width: 4, Height: 4, Radius: -1},
			errType: ErrTypeInvalidQuery,
		},
		{
			name:    "origin left of the map",
			query:   Query{Origin: Position{X: -1}, Width: 4, Height: 4},
			errType: ErrTypeInvalidQuery,
		},
		{
			name:    "origin below the map",
			query:   Query{Origin: Position{Y: 4}, Width: 4, Height: 4},
			errType: ErrTypeInvalidQuery,
		},
		{
			name:    "width beyond max extent",
			query:   Query{Width: MaxExtent + 1, Height: 4},
			errType: ErrTypeOverflow,
		},
		{
			name:    "radius beyond max extent",
			query:   Query{Width: 4, Height: 4, Radius: MaxExtent + 1},
			errType: ErrTypeOverflow,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.query.Validate()
			require.Error(t, err)
			require.True(t, errors.IsType(err, test.errType))
		})
	}

	t.Run("walk does not visit anything for an invalid query", func(t *testing.T) {
		var visits int
		err := Walk(Query{Width: 4, Height: 4, Radius: -2}, func(Position) bool { return false }, func(Position) {
			visits++
		})
		require.Error(t, err)
		require.Zero(t, visits)
	})
}

func TestComputeOrigin(t *testing.T) {
	t.Run("radius zero only sees the origin", func(t *testing.T) {
		m := parseTestMap(
			"...",
			".@.",
			"...",
		)
		require.Equal(t, []string{
			"XXX",
			"XOX",
			"XXX",
		}, m.compute(t, 0))
	})

	t.Run("origin is visible when it is an obstacle", func(t *testing.T) {
		m := parseTestMap("#")
		visible, err := Compute(m.query(Position{}, 3), m.blocked)
		require.NoError(t, err)
		require.Equal(t, []Position{{}}, visible.Sorted())
	})

	t.Run("origin surrounded by obstacles", func(t *testing.T) {
		m := parseTestMap(
			".....",
			".###.",
			".#@#.",
			".###.",
			".....",
		)
		require.Equal(t, []string{
			"XXXXX",
			"XOOOX",
			"XOOOX",
			"XOOOX",
			"XXXXX",
		}, m.compute(t, 5))
	})
}

func TestComputeOpenMap(t *testing.T) {
	sizes := []struct {
		width  int
		height int
	}{
		{width: 7, height: 5},
		{width: 1, height: 6},
		{width: 6, height: 1},
		{width: 2, height: 2},
	}

	for _, size := range sizes {
		m := testMap{width: size.width, height: size.height, obstacles: make(Set)}

		for y := 0; y < m.height; y++ {
			for x := 0; x < m.width; x++ {
				for radius := 0; radius <= 4; radius++ {
					origin := Position{X: x, Y: y}

					visible, err := Compute(m.query(origin, radius), m.blocked)
					require.NoError(t, err)

					expected := make(Set)
					for py := 0; py < m.height; py++ {
						for px := 0; px < m.width; px++ {
							p := Position{X: px, Y: py}
							if p.Chebyshev(origin) <= radius {
								expected.Add(p)
							}
						}
					}
					require.Equal(t, expected, visible, "size %dx%d origin %s radius %d",
						m.width, m.height, origin, radius)
				}
			}
		}
	}
}

func TestComputeColumnObstacles(t *testing.T) {
	m := parseTestMap(
		"@....",
		"#....",
		".....",
		".....",
		"#....",
		".....",
	)

	require.Equal(t, []string{
		"OOOOO",
		"OOOOO",
		"XOOOO",
		"XOOOO",
		"XOOOO",
		"XOOOO",
	}, m.compute(t, 10))
}

func TestComputeAdjacentObstacle(t *testing.T) {
	tests := []struct {
		name     string
		rows     []string
		expected []string
	}{
		{
			name: "east",
			rows: []string{
				".....",
				".....",
				"..@#.",
				".....",
				".....",
			},
			expected: []string{
				"OOOOO",
				"OOOOO",
				"OOOOX",
				"OOOOO",
				"OOOOO",
			},
		},
		{
			name: "west",
			rows: []string{
				".....",
				".....",
				".#@..",
				".....",
				".....",
			},
			expected: []string{
				"OOOOO",
				"OOOOO",
				"XOOOO",
				"OOOOO",
				"OOOOO",
			},
		},
		{
			name: "north",
			rows: []string{
				".....",
				"..#..",
				"..@..",
				".....",
				".....",
			},
			expected: []string{
				"OOXOO",
				"OOOOO",
				"OOOOO",
				"OOOOO",
				"OOOOO",
			},
		},
		{
			name: "south",
			rows: []string{
				".....",
				".....",
				"..@..",
				"..#..",
				".....",
			},
			expected: []string{
				"OOOOO",
				"OOOOO",
				"OOOOO",
				"OOOOO",
				"OOXOO",
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := parseTestMap(test.rows...)
			require.Equal(t, test.expected, m.compute(t, 2))
		})
	}
}

func TestComputeCorridor(t *testing.T) {
	t.Run("vertical corridor", func(t *testing.T) {
		m := parseTestMap(
			".",
			"@",
			".",
			"#",
			".",
		)
		require.Equal(t, []string{"O", "O", "O", "O", "X"}, m.compute(t, 10))
	})

	t.Run("horizontal corridor", func(t *testing.T) {
		m := parseTestMap("..@#.")
		require.Equal(t, []string{"OOOOX"}, m.compute(t, 10))
	})

	t.Run("corridor limited by radius", func(t *testing.T) {
		m := parseTestMap("@.....")
		require.Equal(t, []string{"OOOXXX"}, m.compute(t, 2))
	})
}

func TestWalkStaysInBounds(t *testing.T) {
	for seed := uint64(1); seed <= 8; seed++ {
		m := randomTestMap(seed, 9, 7, 0.3)

		for y := 0; y < m.height; y++ {
			for x := 0; x < m.width; x++ {
				origin := Position{X: x, Y: y}
				visits := make(map[Position]int)

				blocked := func(p Position) bool {
					require.True(t, p.X >= 0 && p.X < m.width && p.Y >= 0 && p.Y < m.height,
						"blocked queried out of bounds at %s", p)
					return m.blocked(p)
				}

				err := Walk(m.query(origin, 5), blocked, func(p Position) {
					require.True(t, p.X >= 0 && p.X < m.width && p.Y >= 0 && p.Y < m.height,
						"visited out of bounds at %s", p)
					require.LessOrEqual(t, p.Chebyshev(origin), 5)
					visits[p]++
				})
				require.NoError(t, err)
				require.Equal(t, 1, visits[origin])

				for p, n := range visits {
					require.Equal(t, 1, n, "%s visited %d times", p, n)
				}
			}
		}
	}
}

func TestComputeIsMonotonicInRadius(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		m := randomTestMap(seed, 16, 12, 0.25)
		origin := Position{X: 7, Y: 5}

		previous, err := Compute(m.query(origin, 0), m.blocked)
		require.NoError(t, err)

		for radius := 1; radius <= 16; radius++ {
			current, err := Compute(m.query(origin, radius), m.blocked)
			require.NoError(t, err)

			for p := range previous {
				require.True(t, current.Contains(p),
					"seed %d: %s visible with radius %d but not %d", seed, p, radius-1, radius)
			}
			previous = current
		}
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	m := randomTestMap(42, 20, 20, 0.3)
	q := m.query(Position{X: 10, Y: 10}, 12)

	first, err := Compute(q, m.blocked)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		visible, err := Compute(q, m.blocked)
		require.NoError(t, err)
		require.Equal(t, first, visible)
	}
}

func TestComputeParallel(t *testing.T) {
	t.Run("same result as the sequential computation", func(t *testing.T) {
		for seed := uint64(1); seed <= 6; seed++ {
			m := randomTestMap(seed, 15, 11, 0.3)

			for _, origin := range []Position{{X: 0, Y: 0}, {X: 7, Y: 5}, {X: 14, Y: 10}, {X: 3, Y: 9}} {
				q := m.query(origin, 8)

				sequential, err := Compute(q, m.blocked)
				require.NoError(t, err)

				parallel, err := ComputeParallel(context.Background(), q, m.blocked)
				require.NoError(t, err)
				require.Equal(t, sequential, parallel)
			}
		}
	})

	t.Run("corridor", func(t *testing.T) {
		m := parseTestMap(".@..#.")
		parallel, err := ComputeParallel(context.Background(), m.query(m.origin, 10), m.blocked)
		require.NoError(t, err)
		require.Equal(t, []string{"OOOOOX"}, mask(parallel, m.width, m.height))
	})

	t.Run("invalid query", func(t *testing.T) {
		_, err := ComputeParallel(context.Background(), Query{}, func(Position) bool { return false })
		require.True(t, errors.IsType(err, ErrTypeInvalidQuery))
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		m := randomTestMap(1, 10, 10, 0.1)
		_, err := ComputeParallel(ctx, m.query(Position{X: 5, Y: 5}, 5), m.blocked)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestSetSorted(t *testing.T) {
	s := Set{
		{X: 2, Y: 1}: {},
		{X: 0, Y: 1}: {},
		{X: 5, Y: 0}: {},
	}

	require.Equal(t, []Position{
		{X: 5, Y: 0},
		{X: 0, Y: 1},
		{X: 2, Y: 1},
	}, s.Sorted())
}
