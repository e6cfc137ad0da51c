package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Gateway metrics
	GatewayRequestsTotal   *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec
	GatewayErrorsTotal     *prometheus.CounterVec
	GatewayBlockedTotal    *prometheus.CounterVec
	GatewayDedupedTotal    *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec
	CacheEntries        *prometheus.GaugeVec

	// Permission editor metrics
	MatrixSavesTotal   *prometheus.CounterVec
	MatrixSaveUpdates  prometheus.Histogram
	MatrixLoadsTotal   *prometheus.CounterVec

	// Dev server metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		GatewayRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockyard_gateway_requests_total",
				Help: "Total number of network requests issued by the gateway",
			},
			[]string{"method", "status"},
		),
		GatewayRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockyard_gateway_request_duration_seconds",
				Help:    "Gateway network request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		GatewayErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockyard_gateway_errors_total",
				Help: "Total number of classified gateway errors",
			},
			[]string{"method", "kind"},
		),
		GatewayBlockedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockyard_gateway_blocked_total",
				Help: "Requests rejected locally by the failure back-off",
			},
			[]string{"method"},
		),
		GatewayDedupedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockyard_gateway_deduplicated_total",
				Help: "GET calls served by joining an in-flight request",
			},
			[]string{"method"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockyard_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockyard_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockyard_cache_evictions_total",
				Help: "Total number of cache evictions",
			},
			[]string{"cache_type", "reason"},
		),
		CacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockyard_cache_entries",
				Help: "Current number of cache entries",
			},
			[]string{"cache_type"},
		),

		MatrixSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockyard_matrix_saves_total",
				Help: "Permission matrix batch saves",
			},
			[]string{"status"},
		),
		MatrixSaveUpdates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stockyard_matrix_save_updates",
				Help:    "Number of cell updates per batch save",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
			},
		),
		MatrixLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockyard_matrix_loads_total",
				Help: "Permission matrix collection loads",
			},
			[]string{"collection", "status"},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockyard_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockyard_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		m.GatewayRequestsTotal,
		m.GatewayRequestDuration,
		m.GatewayErrorsTotal,
		m.GatewayBlockedTotal,
		m.GatewayDedupedTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.CacheEntries,
		m.MatrixSavesTotal,
		m.MatrixSaveUpdates,
		m.MatrixLoadsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// NewUnregisteredMetrics builds a metrics set on a private registry, for
// components that were not handed one.
func NewUnregisteredMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// The route template is used as the path label when gorilla/mux matched one.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler returns the /metrics handler for a registry
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
