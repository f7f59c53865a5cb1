package matcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

var (
	matchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_matches_total",
			Help: "Total number of resolved identity matches",
		},
		[]string{"method"},
	)

	noMatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "identity_no_match_total",
			Help: "Total number of listings the cascade could not match",
		},
	)
)

func recordMatch(method models.MatchMethod) {
	matchesTotal.WithLabelValues(string(method)).Inc()
}

func recordNoMatch() {
	noMatchTotal.Inc()
}
