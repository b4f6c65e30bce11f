package repository

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	fetchKindCatalog = "catalog"
	fetchKindDataset = "dataset"
)

var (
	upstreamFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clouseau_upstream_fetch_total",
			Help: "Total number of upstream fetches",
		},
		[]string{"kind", "outcome"},
	)

	upstreamFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clouseau_upstream_fetch_duration_seconds",
			Help:    "Upstream fetch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clouseau_cache_lookups_total",
			Help: "Upstream response cache lookups",
		},
		[]string{"kind", "result"},
	)
)

func observeFetch(kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamFetchTotal.WithLabelValues(kind, outcome).Inc()
	upstreamFetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
