// Package metrics provides Prometheus metrics collection for the entity gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks HTTP request duration by method, path, and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// HTTPRequestTotal tracks total HTTP requests by method, path, and status code.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	// CacheOperationsTotal tracks cache store operations.
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"},
	)

	// CacheEntries tracks the number of entries observed by the last sweep.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Number of entries held by the cache backend",
		},
	)

	// GatewayRequestsTotal tracks gateway operations per entity type.
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of entity gateway operations",
		},
		[]string{"entity_type", "operation", "result"},
	)

	// GatewayQueryDuration tracks query evaluation time on cache misses.
	GatewayQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_query_duration_seconds",
			Help:    "Time spent loading candidates and evaluating a query",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"entity_type"},
	)

	// InvalidationsTotal tracks invalidation triggers.
	InvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidations_total",
			Help: "Total number of cache invalidation triggers",
		},
		[]string{"entity_type", "strategy", "result"},
	)

	// CircuitBreakerState reports breaker state (0 closed, 1 open, 2 half-open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		},
		[]string{"name"},
	)
)

// PrometheusMiddleware returns a Gin middleware that collects HTTP metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(duration)
		HTTPRequestTotal.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordCacheOperation records metrics for a cache operation.
func RecordCacheOperation(operation, result string) {
	CacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// UpdateCacheEntries sets the cache entries gauge.
func UpdateCacheEntries(n int) {
	CacheEntries.Set(float64(n))
}

// RecordGatewayOperation records a gateway call outcome.
func RecordGatewayOperation(entityType, operation, result string) {
	GatewayRequestsTotal.WithLabelValues(entityType, operation, result).Inc()
}

// ObserveQuery records how long a query miss took to evaluate.
func ObserveQuery(entityType string, d time.Duration) {
	GatewayQueryDuration.WithLabelValues(entityType).Observe(d.Seconds())
}

// RecordInvalidation records an invalidation outcome.
func RecordInvalidation(entityType, strategy, result string) {
	InvalidationsTotal.WithLabelValues(entityType, strategy, result).Inc()
}

// SetCircuitBreakerState publishes a breaker state value.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
