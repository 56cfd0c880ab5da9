package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peekfs_http_requests_total",
			Help: "HTTP requests served, by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peekfs_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	gatewayOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peekfs_gateway_requests_total",
			Help: "Token lookups by outcome: served, unknown, expired, unavailable or error.",
		},
		[]string{"outcome"},
	)

	activeGrants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "peekfs_active_grants",
		Help: "Authorizations that have not yet expired, updated on each sweep.",
	})
)

// MetricsMiddleware records a count and duration for every request.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// normalizePath folds token-bearing routes into one label value each.
// Anything unrecognized collapses to "other" so probes cannot grow the
// label set without bound.
func normalizePath(path string) string {
	switch {
	case path == "/healthz" || path == "/metrics":
		return path
	case strings.HasPrefix(path, "/f/"):
		return "/f/{token}"
	case strings.HasPrefix(path, "/git/"):
		return "/git/{token}"
	}
	return "other"
}
