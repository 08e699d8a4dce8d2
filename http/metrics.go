package http

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	formatLabel   = "format"
	parallelLabel = "parallel"
)

var (
	fovRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "fov_request_latency",
		Help: "The time to compute and encode a field of view requested over HTTP.",
	}, []string{
		formatLabel,
		parallelLabel,
	})

	fovVisibleCells = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fov_visible_cells",
		Help:    "The number of visible cells of fields of view requested over HTTP.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 12),
	})
)

func instrumentFOV(format string, parallel bool, visibleCells int, latency time.Duration) {
	fovRequestLatency.
		With(prometheus.Labels{
			formatLabel:   format,
			parallelLabel: strconv.FormatBool(parallel),
		}).
		Observe(latency.Seconds())

	fovVisibleCells.Observe(float64(visibleCells))
}
