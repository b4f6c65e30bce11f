package navigation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	staleResultsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clouseau_stale_results_discarded_total",
			Help: "Fetch completions dropped because a newer request superseded them",
		},
		[]string{"kind"},
	)

	loadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clouseau_load_failures_total",
			Help: "Catalog and dataset loads that failed for the current selection",
		},
		[]string{"kind"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clouseau_active_sessions",
			Help: "Number of live dashboard sessions",
		},
	)
)
