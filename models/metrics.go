package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sourceLabel = "source"
)

var (
	kenazSessionCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "session_count",
		Help: "The number of sessions.",
	}, []string{sourceLabel})

	kenazSessionCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_count_total",
		Help: "The total number of sessions.",
	}, []string{sourceLabel})
)

func instrumentIncreaseSessionGauge(source string) {
	kenazSessionCount.
		With(prometheus.Labels{sourceLabel: source}).
		Inc()
}

func instrumentDecreaseSessionGauge(source string) {
	kenazSessionCount.
		With(prometheus.Labels{sourceLabel: source}).
		Dec()
}

func instrumentCountSession(source string) {
	kenazSessionCountTotal.
		With(prometheus.Labels{sourceLabel: source}).
		Inc()
}
