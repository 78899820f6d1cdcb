package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Policy engine metrics
	DecisionsTotal   *prometheus.CounterVec
	EvaluateDuration prometheus.Histogram
	RolesRegistered  prometheus.Gauge

	// Decision cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Workflow metrics
	TransitionsTotal  *prometheus.CounterVec
	WorkflowInstances prometheus.Gauge

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okrio_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "okrio_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okrio_policy_decisions_total",
				Help: "Total number of authorization decisions by outcome",
			},
			[]string{"decision"},
		),
		EvaluateDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "okrio_policy_evaluate_duration_seconds",
				Help:    "Policy evaluation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
		),
		RolesRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "okrio_policy_roles_registered",
				Help: "Number of roles in the catalogue",
			},
		),

		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "okrio_decision_cache_hits_total",
				Help: "Total number of decision cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "okrio_decision_cache_misses_total",
				Help: "Total number of decision cache misses",
			},
		),

		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okrio_workflow_transitions_total",
				Help: "Total number of workflow advance attempts by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		WorkflowInstances: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "okrio_workflow_instances",
				Help: "Number of workflow instances held by the engine",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "okrio_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "okrio_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DecisionsTotal,
		m.EvaluateDuration,
		m.RolesRegistered,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.TransitionsTotal,
		m.WorkflowInstances,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// ObserveDBStats records connection pool gauges from a database stats
// snapshot.
func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
