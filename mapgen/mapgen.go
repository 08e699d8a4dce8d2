// Package mapgen generates random tile maps for demos, load tests and
// property checks.
package mapgen

import (
	"math/rand/v2"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/fov"
	"github.com/aukilabs/kenaz/grid"
	"github.com/ojrac/opensimplex-go"
)

// The error type returned when generation options are invalid.
const ErrTypeInvalidOptions = "invalid_mapgen_options"

const (
	DefaultDensity = 0.3
	DefaultScale   = 0.15
)

// Mode selects how obstacles are placed.
type Mode string

const (
	// ModeScatter places each obstacle independently.
	ModeScatter Mode = "scatter"

	// ModeCaves thresholds OpenSimplex noise, which produces connected walls
	// and open rooms.
	ModeCaves Mode = "caves"
)

type Options struct {
	Width  int
	Height int
	Seed   int64

	// The obstacle probability in scatter mode, or the noise threshold under
	// which a tile is a wall in caves mode. Defaults to DefaultDensity when
	// nil, so zero asks for a map without obstacles.
	Density *float64

	// Defaults to ModeScatter.
	Mode Mode

	// The noise frequency in caves mode. Defaults to DefaultScale.
	Scale float64

	// Positions that are always left empty, typically the viewer.
	Keep []fov.Position
}

func (o Options) withDefaults() Options {
	if o.Density == nil {
		density := DefaultDensity
		o.Density = &density
	}
	if o.Mode == "" {
		o.Mode = ModeScatter
	}
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	return o
}

func (o Options) validate() error {
	if o.Width <= 0 || o.Height <= 0 || o.Width > fov.MaxExtent || o.Height > fov.MaxExtent {
		return errors.New("invalid map size").
			WithType(ErrTypeInvalidOptions).
			WithTag("width", o.Width).
			WithTag("height", o.Height)
	}

	if *o.Density < 0 || *o.Density > 1 {
		return errors.New("density must be between 0 and 1").
			WithType(ErrTypeInvalidOptions).
			WithTag("density", *o.Density)
	}

	if o.Mode != ModeScatter && o.Mode != ModeCaves {
		return errors.New("unknown generation mode").
			WithType(ErrTypeInvalidOptions).
			WithTag("mode", o.Mode)
	}

	return nil
}

// Generate creates a map. The same options always produce the same map.
func Generate(opts Options) (*grid.Grid, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	density := *opts.Density
	var isObstacle func(x, y int) bool

	switch opts.Mode {
	case ModeCaves:
		noise := opensimplex.NewNormalized(opts.Seed)
		isObstacle = func(x, y int) bool {
			return noise.Eval2(float64(x)*opts.Scale, float64(y)*opts.Scale) < density
		}

	default:
		r := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)))
		isObstacle = func(x, y int) bool {
			return r.Float64() < density
		}
	}

	g := grid.New(opts.Width, opts.Height)
	for y := 0; y < opts.Height; y++ {
		for x := 0; x < opts.Width; x++ {
			if isObstacle(x, y) {
				g.Set(fov.Position{X: x, Y: y}, grid.TileObstacle)
			}
		}
	}

	for _, p := range opts.Keep {
		if err := g.Set(p, grid.TileEmpty); err != nil {
			return nil, errors.New("kept position is outside the map").
				WithType(ErrTypeInvalidOptions).
				Wrap(err)
		}
	}

	return g, nil
}
