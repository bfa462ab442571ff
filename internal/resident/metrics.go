package resident

import "github.com/prometheus/client_golang/prometheus"

var (
	residentGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ttsd",
			Subsystem: "resident",
			Name:      "resident",
			Help:      "1 when the artifact is held in memory, 0 otherwise",
		},
		[]string{"name"},
	)

	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ttsd",
			Subsystem: "resident",
			Name:      "loads_total",
			Help:      "Total artifact constructions by result",
		},
		[]string{"name", "result"},
	)

	loadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ttsd",
			Subsystem: "resident",
			Name:      "load_duration_seconds",
			Help:      "Duration of artifact construction in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"name"},
	)

	releasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ttsd",
			Subsystem: "resident",
			Name:      "releases_total",
			Help:      "Total artifact releases by reason",
		},
		[]string{"name", "reason"},
	)
)

func init() {
	prometheus.MustRegister(residentGauge, loadsTotal, loadDuration, releasesTotal)
}
