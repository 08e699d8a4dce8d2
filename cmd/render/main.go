package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"reflect"
	"syscall"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/fov"
	"github.com/aukilabs/kenaz/grid"
	"github.com/aukilabs/kenaz/mapgen"
	"github.com/aukilabs/kenaz/render"
	"github.com/aukilabs/kenaz/scenario"
	"github.com/segmentio/encoding/json"
)

// Keeps the config keys readable when the binary is obfuscated.
var _ = reflect.TypeOf(config{})

type config struct {
	Scenario string  `cli:"" env:"KENAZ_RENDER_SCENARIO" help:"The scenario file to render. A map is generated when empty."`
	Width    int     `cli:"" env:"KENAZ_RENDER_WIDTH"    help:"The generated map width."`
	Height   int     `cli:"" env:"KENAZ_RENDER_HEIGHT"   help:"The generated map height."`
	Seed     int64   `cli:"" env:"KENAZ_RENDER_SEED"     help:"The generated map seed."`
	Density  float64 `cli:"" env:"KENAZ_RENDER_DENSITY"  help:"The generated map obstacle density."`
	Mode     string  `cli:"" env:"KENAZ_RENDER_MODE"     help:"The generated map mode (scatter|caves)."`
	Radius   int     `cli:"" env:"KENAZ_RENDER_RADIUS"   help:"The field of view radius of generated maps."`
	Parallel bool    `cli:"" env:"KENAZ_RENDER_PARALLEL" help:"Sweep the quadrants concurrently."`
	PNG      string  `cli:"" env:"KENAZ_RENDER_PNG"      help:"Writes a PNG rendering to the given file."`
	Scale    int     `cli:"" env:"KENAZ_RENDER_SCALE"    help:"The PNG pixel size of a tile."`
	Help     bool    `cli:"" env:"-"                     help:"Show help."`
}

func main() {
	conf := config{
		Width:   48,
		Height:  24,
		Seed:    1,
		Density: mapgen.DefaultDensity,
		Mode:    string(mapgen.ModeCaves),
		Radius:  16,
		Scale:   8,
	}

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Renders the field of view of a scenario or of a generated map.").
		Options(&conf)
	cli.Load()

	logs.Encoder = json.Marshal
	errors.Encoder = json.Marshal

	g, origin, radius, err := load(conf)
	if err != nil {
		logs.Fatal(err)
	}

	var visible fov.Set
	if conf.Parallel {
		visible, err = g.VisibleParallel(ctx, origin, radius)
	} else {
		visible, err = g.Visible(origin, radius)
	}
	if err != nil {
		logs.Fatal(errors.New("computing field of view failed").Wrap(err))
	}

	fmt.Print(render.Text(g, visible, origin))
	fmt.Printf("%d visible cells\n", visible.Len())

	if conf.PNG == "" {
		return
	}

	if err := writePNG(conf.PNG, render.Image(g, visible, origin, conf.Scale, render.DefaultPalette)); err != nil {
		logs.Fatal(err)
	}
}

func load(conf config) (*grid.Grid, fov.Position, int, error) {
	if conf.Scenario != "" {
		s, err := scenario.LoadFile(conf.Scenario)
		if err != nil {
			return nil, fov.Position{}, 0, err
		}

		g, origin, err := s.Grid()
		return g, origin, s.Radius, err
	}

	origin := fov.Position{X: conf.Width / 2, Y: conf.Height / 2}
	g, err := mapgen.Generate(mapgen.Options{
		Width:   conf.Width,
		Height:  conf.Height,
		Seed:    conf.Seed,
		Density: &conf.Density,
		Mode:    mapgen.Mode(conf.Mode),
		Keep:    []fov.Position{origin},
	})
	return g, origin, conf.Radius, err
}

func writePNG(filename string, img image.Image) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.New("creating png file failed").
			WithTag("file_name", filename).
			Wrap(err)
	}
	defer f.Close()

	if err := render.WritePNG(f, img); err != nil {
		return errors.New("writing png file failed").
			WithTag("file_name", filename).
			Wrap(err)
	}
	return f.Close()
}
