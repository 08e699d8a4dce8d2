// Package scenario loads field of view scenarios from YAML documents and
// checks computed results against their expected visibility masks.
package scenario

import (
	"embed"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/fov"
	"github.com/aukilabs/kenaz/grid"
	"github.com/aukilabs/kenaz/render"
	"gopkg.in/yaml.v3"
)

// The error type returned when a scenario document is invalid.
const ErrTypeInvalidScenario = "invalid_scenario"

//go:embed reference/*.yaml
var referenceFS embed.FS

// Scenario is a map, a viewer and optionally the expected result.
//
//	name: column obstacles
//	radius: 10
//	map: |
//	  @....
//	  #....
//	visible: |
//	  OOOOO
//	  OOOOO
type Scenario struct {
	Name   string `yaml:"name"`
	Radius int    `yaml:"radius"`

	// The viewer position. When omitted, the '@' marker of the map is used.
	Origin *fov.Position `yaml:"origin,omitempty"`

	// The map in the grid text format.
	Map string `yaml:"map"`

	// The expected mask where 'O' is visible and 'X' hidden. Optional.
	Visible string `yaml:"visible,omitempty"`
}

// Load decodes a scenario.
func Load(r io.Reader) (Scenario, error) {
	var s Scenario
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return Scenario{}, errors.New("decoding scenario failed").
			WithType(ErrTypeInvalidScenario).
			Wrap(err)
	}
	return s, nil
}

// LoadFile decodes the scenario stored at the given path.
func LoadFile(filename string) (Scenario, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Scenario{}, errors.New("opening scenario file failed").
			WithTag("file_name", filename).
			Wrap(err)
	}
	defer f.Close()

	s, err := Load(f)
	if err != nil {
		return Scenario{}, errors.New("loading scenario file failed").
			WithTag("file_name", filename).
			Wrap(err)
	}
	return s, nil
}

// Reference returns the scenarios shipped with the server. They are used by
// the smoke test.
func Reference() ([]Scenario, error) {
	filenames, err := fs.Glob(referenceFS, "reference/*.yaml")
	if err != nil {
		return nil, err
	}

	scenarios := make([]Scenario, 0, len(filenames))
	for _, filename := range filenames {
		f, err := referenceFS.Open(filename)
		if err != nil {
			return nil, err
		}

		s, err := Load(f)
		f.Close()
		if err != nil {
			return nil, errors.New("loading reference scenario failed").
				WithTag("file_name", path.Base(filename)).
				Wrap(err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Grid parses the scenario map and resolves the viewer position.
func (s Scenario) Grid() (*grid.Grid, fov.Position, error) {
	rows := grid.SplitRows(s.Map)

	g, err := grid.FromRows(rows)
	if err != nil {
		return nil, fov.Position{}, errors.New("parsing scenario map failed").
			WithType(ErrTypeInvalidScenario).
			WithTag("scenario", s.Name).
			Wrap(err)
	}

	if s.Origin != nil {
		return g, *s.Origin, nil
	}

	origin, ok := grid.FindOrigin(rows)
	if !ok {
		return nil, fov.Position{}, errors.New("scenario has no origin").
			WithType(ErrTypeInvalidScenario).
			WithTag("scenario", s.Name)
	}
	return g, origin, nil
}

// Result is the outcome of running a scenario.
type Result struct {
	Name    string
	Grid    *grid.Grid
	Origin  fov.Position
	Visible fov.Set

	// Whether the scenario has an expected mask to compare against.
	Checked bool

	// Positions expected visible but not computed as such.
	Missing []fov.Position

	// Positions computed visible but expected hidden.
	Unexpected []fov.Position
}

func (r Result) Passed() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0
}

// Run computes the scenario field of view and compares it with the expected
// mask when there is one.
func (s Scenario) Run() (Result, error) {
	g, origin, err := s.Grid()
	if err != nil {
		return Result{}, err
	}

	visible, err := g.Visible(origin, s.Radius)
	if err != nil {
		return Result{}, errors.New("computing scenario field of view failed").
			WithTag("scenario", s.Name).
			Wrap(err)
	}

	res := Result{
		Name:    s.Name,
		Grid:    g,
		Origin:  origin,
		Visible: visible,
	}

	if s.Visible == "" {
		return res, nil
	}

	expected := grid.SplitRows(s.Visible)
	if len(expected) != g.Height() {
		return Result{}, errors.New("expected mask height does not match the map").
			WithType(ErrTypeInvalidScenario).
			WithTag("scenario", s.Name).
			WithTag("mask_height", len(expected)).
			WithTag("map_height", g.Height())
	}

	computed := render.Mask(g.Width(), g.Height(), visible)
	for y, row := range expected {
		if len(row) != g.Width() {
			return Result{}, errors.New("expected mask width does not match the map").
				WithType(ErrTypeInvalidScenario).
				WithTag("scenario", s.Name).
				WithTag("row", y)
		}

		for x := 0; x < len(row); x++ {
			want, got := row[x], computed[y][x]
			if want == got {
				continue
			}

			p := fov.Position{X: x, Y: y}
			switch want {
			case render.GlyphMaskVisible:
				res.Missing = append(res.Missing, p)
			case render.GlyphMaskHidden:
				res.Unexpected = append(res.Unexpected, p)
			default:
				return Result{}, errors.New("expected mask contains an unknown glyph").
					WithType(ErrTypeInvalidScenario).
					WithTag("scenario", s.Name).
					WithTag("glyph", string(want))
			}
		}
	}

	res.Checked = true
	return res, nil
}
