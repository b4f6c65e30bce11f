package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LoadingKey is set on the gin context by handlers that answered before the
// session's fetches settled
const LoadingKey = "render_loading"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clouseau_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "surface", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clouseau_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, including the wait for upstream fetches",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "surface"},
	)

	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clouseau_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6), // 100B to 10MB
		},
		[]string{"method", "route", "surface"},
	)

	loadingResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clouseau_http_loading_responses_total",
			Help: "Responses rendered before the session's fetches settled",
		},
		[]string{"surface"},
	)

	activeRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clouseau_http_active_requests",
			Help: "Number of currently active HTTP requests",
		},
	)
)

// Metrics returns a gin middleware that collects Prometheus metrics
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		activeRequests.Inc()
		defer activeRequests.Dec()

		c.Next()

		route := routePath(c)
		surf := surface(route)
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, surf, status).Inc()
		if c.GetBool(LoadingKey) {
			loadingResponses.WithLabelValues(surf).Inc()
		}

		// a hijacked socket has neither a meaningful duration nor size
		if surf == "push" {
			return
		}
		httpRequestDuration.WithLabelValues(c.Request.Method, route, surf).Observe(time.Since(start).Seconds())
		httpResponseSize.WithLabelValues(c.Request.Method, route, surf).Observe(float64(c.Writer.Size()))
	}
}

// routePath returns the route template so unmatched URLs share one label
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}

// surface groups a route into the part of the dashboard it serves
func surface(route string) string {
	switch {
	case route == "/":
		return "page"
	case route == "/ws":
		return "push"
	case strings.HasPrefix(route, "/api/"):
		return "api"
	case route == "unmatched":
		return "unmatched"
	default:
		return "ops"
	}
}
