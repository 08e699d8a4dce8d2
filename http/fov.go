package http

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/fov"
	"github.com/aukilabs/kenaz/grid"
	"github.com/aukilabs/kenaz/render"
	"github.com/aukilabs/kenaz/wire"
	"github.com/segmentio/encoding/json"
)

const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
	ContentTypeText     = "text/plain; charset=utf-8"
	ContentTypePNG      = "image/png"

	formatJSON     = "json"
	formatProtobuf = "protobuf"
	formatText     = "text"
	formatPNG      = "png"

	pngScale = 8

	// The largest PNG rendering, in pixels. Large maps are drawn with smaller
	// blocks, down to one pixel per tile.
	maxPNGPixels = 1 << 22

	defaultMaxBodySize = 1 << 26
)

// FOVRequest is the body of a field of view request.
type FOVRequest struct {
	// The map rows in the grid text format.
	Map []string `json:"map"`

	// The viewer position. The '@' marker of the map is used when omitted.
	Origin *fov.Position `json:"origin,omitempty"`

	Radius int `json:"radius"`

	// Sweeps the quadrants concurrently.
	Parallel bool `json:"parallel,omitempty"`
}

type FOVResponse struct {
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Origin  fov.Position   `json:"origin"`
	Radius  int            `json:"radius"`
	Count   int            `json:"count"`
	Visible []fov.Position `json:"visible"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// FOVOptions limits the work a single field of view request can ask for.
type FOVOptions struct {
	// The maximum number of tiles of a map.
	MaxMapSize int

	// The maximum radius. Zero means unlimited.
	MaxRadius int
}

// HandleFOV computes the field of view described by a FOVRequest body.
//
// The response is JSON unless the request accepts application/x-protobuf,
// or the format query parameter is "text" or "png".
func HandleFOV(opts FOVOptions) http.HandlerFunc {
	maxBodySize := int64(defaultMaxBodySize)
	if opts.MaxMapSize > 0 {
		// A map of one tile wide rows costs 4 bytes per tile: the tile, the
		// quotes and the comma.
		maxBodySize = int64(opts.MaxMapSize)*4 + 4096
	}

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		format := responseFormat(r)

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}

		if r.ContentLength > maxBodySize {
			writeError(w, http.StatusRequestEntityTooLarge, errors.New("request body is too large"))
			return
		}

		var req FOVRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
			var maxBytesErr *http.MaxBytesError
			if stderrors.As(err, &maxBytesErr) {
				writeError(w, http.StatusRequestEntityTooLarge, errors.New("request body is too large").Wrap(err))
				return
			}
			writeError(w, http.StatusBadRequest, errors.New("decoding request failed").Wrap(err))
			return
		}

		g, origin, status, err := parseFOVRequest(req, opts)
		if err != nil {
			writeError(w, status, err)
			return
		}

		scale := pngScale
		if format == formatPNG {
			if scale = pngScaleFor(g.Width(), g.Height()); scale == 0 {
				writeError(w, http.StatusRequestEntityTooLarge, errors.New("map is too large for a png rendering").
					WithTag("max_png_pixels", maxPNGPixels))
				return
			}
		}

		var visible fov.Set
		if req.Parallel {
			visible, err = g.VisibleParallel(r.Context(), origin, req.Radius)
		} else {
			visible, err = g.Visible(origin, req.Radius)
		}
		if errors.IsType(err, fov.ErrTypeInvalidQuery) || errors.IsType(err, fov.ErrTypeOverflow) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err != nil {
			logs.WithClientID(ClientID(r)).Error(errors.New("computing field of view failed").Wrap(err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		instrumentFOV(format, req.Parallel, visible.Len(), time.Since(start))

		switch format {
		case formatText:
			w.Header().Set("Content-Type", ContentTypeText)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(render.Text(g, visible, origin)))

		case formatPNG:
			w.Header().Set("Content-Type", ContentTypePNG)
			w.WriteHeader(http.StatusOK)
			img := render.Image(g, visible, origin, scale, render.DefaultPalette)
			if err := render.WritePNG(w, img); err != nil {
				logs.WithClientID(ClientID(r)).Debug(err)
			}

		case formatProtobuf:
			w.Header().Set("Content-Type", ContentTypeProtobuf)
			w.WriteHeader(http.StatusOK)
			w.Write(wire.EncodeVisibility(wire.Visibility{
				Type:    wire.MsgTypeVisibility,
				Origin:  origin,
				Radius:  req.Radius,
				Width:   g.Width(),
				Visible: visible.Sorted(),
			}))

		default:
			writeJSON(w, http.StatusOK, FOVResponse{
				Width:   g.Width(),
				Height:  g.Height(),
				Origin:  origin,
				Radius:  req.Radius,
				Count:   visible.Len(),
				Visible: visible.Sorted(),
			})
		}
	}
}

func parseFOVRequest(req FOVRequest, opts FOVOptions) (*grid.Grid, fov.Position, int, error) {
	if len(req.Map) == 0 {
		return nil, fov.Position{}, http.StatusBadRequest, errors.New("map is empty")
	}

	if opts.MaxMapSize > 0 && len(req.Map)*len(req.Map[0]) > opts.MaxMapSize {
		return nil, fov.Position{}, http.StatusRequestEntityTooLarge, errors.New("map is too large").
			WithTag("max_map_size", opts.MaxMapSize)
	}

	if opts.MaxRadius > 0 && req.Radius > opts.MaxRadius {
		return nil, fov.Position{}, http.StatusBadRequest, errors.New("radius is too large").
			WithTag("max_radius", opts.MaxRadius)
	}

	g, err := grid.FromRows(req.Map)
	if err != nil {
		return nil, fov.Position{}, http.StatusBadRequest, err
	}

	if req.Origin != nil {
		return g, *req.Origin, 0, nil
	}

	origin, ok := grid.FindOrigin(req.Map)
	if !ok {
		return nil, fov.Position{}, http.StatusBadRequest, errors.New("map has no origin")
	}
	return g, origin, 0, nil
}

// pngScaleFor returns the largest block size, up to pngScale, that keeps a
// width x height map within maxPNGPixels. It returns 0 when even one pixel
// per tile does not fit.
func pngScaleFor(width, height int) int {
	tiles := int64(width) * int64(height)
	for scale := int64(pngScale); scale > 0; scale-- {
		if tiles*scale*scale <= maxPNGPixels {
			return int(scale)
		}
	}
	return 0
}

func responseFormat(r *http.Request) string {
	switch format := r.URL.Query().Get("format"); format {
	case formatText, formatPNG, formatProtobuf, formatJSON:
		return format
	}

	if strings.Contains(r.Header.Get("Accept"), ContentTypeProtobuf) {
		return formatProtobuf
	}
	return formatJSON
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
