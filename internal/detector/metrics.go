package detector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_reports_total",
			Help: "Total number of processed listings by outcome",
		},
		[]string{"status"},
	)

	processingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detector_processing_duration_seconds",
			Help:    "Time spent processing one listing end to end",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)

func recordReport(status string) {
	reportsTotal.WithLabelValues(status).Inc()
}

func observeProcessing(d time.Duration) {
	processingDuration.Observe(d.Seconds())
}
