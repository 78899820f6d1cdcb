package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/okrio/okrio/pkg/httputil"
	"github.com/okrio/okrio/pkg/observability"
)

// Server composes the policy and workflow handlers into one HTTP handler
type Server struct {
	router *mux.Router
}

// NewServer builds the versioned API router with the standard middleware
// chain. metrics may be nil.
func NewServer(policyHandlers *PolicyHandlers, workflowHandlers *WorkflowHandlers, metrics *observability.Metrics, logger *logrus.Logger) *Server {
	router := mux.NewRouter()
	policyHandlers.RegisterRoutes(router)
	workflowHandlers.RegisterRoutes(router)

	middlewares := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.MaxBytesMiddleware(1 << 20),
	}
	if metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(metrics))
	}
	router.Use(httputil.Chain(middlewares...))

	return &Server{router: router}
}

// Handler returns the composed HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}
