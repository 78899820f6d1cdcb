// Package observability provides Prometheus metrics, health checks, and log
// level parsing for the authorization and workflow service.
//
// # Prometheus Metrics
//
// Initialize and record:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.DecisionsTotal.WithLabelValues("allow").Inc()
//	metrics.TransitionsTotal.WithLabelValues("workflow:submit", "applied").Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db)
//	observability.RegisterHealthRoutes(mux, checker)
package observability
