package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// CacheOperationsTotal counts cache calls by operation (get, set, invalidate)
	// and result (hit, miss, ok, error, skipped).
	CacheOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_operations_total",
		Help: "Cache operations by operation and result.",
	}, []string{"op", "result"})

	// VoteTransitionsTotal counts vote state transitions (created, flipped, retracted).
	VoteTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votes_transitions_total",
		Help: "Vote state machine transitions.",
	}, []string{"transition"})

	// RefreshReuseDetectedTotal counts refresh tokens presented after revocation.
	RefreshReuseDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_reuse_detected_total",
		Help: "Revoked refresh tokens presented again (treated as theft).",
	})
)

// PrometheusMiddleware records request count and latency per matched route.
// Unmatched routes are reported as "unmatched" to bound label cardinality.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
