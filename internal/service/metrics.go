package service

import "github.com/prometheus/client_golang/prometheus"

var (
	synthesisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ttsd",
			Subsystem: "synthesis",
			Name:      "requests_total",
			Help:      "Synthesis requests by mode and result",
		},
		[]string{"mode", "result"},
	)

	synthesisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ttsd",
			Subsystem: "synthesis",
			Name:      "duration_seconds",
			Help:      "Wall time of synthesis requests, including any model load",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	audioSecondsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ttsd",
			Subsystem: "synthesis",
			Name:      "audio_seconds_total",
			Help:      "Seconds of audio produced",
		},
	)

	embeddingLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ttsd",
			Subsystem: "voices",
			Name:      "embedding_lookups_total",
			Help:      "Custom voice embedding cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(synthesisTotal, synthesisDuration, audioSecondsTotal, embeddingLookups)
}
