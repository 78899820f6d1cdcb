// Package httputil provides shared HTTP handler utilities: JSON response
// writers, request parsing, and the middleware the authorization API server
// is composed from.
//
// Every endpoint in pkg/api produces the same error envelope:
//
//	{"error": "message"}
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, payload)
//	httputil.WriteCreated(w, payload)
//	httputil.WriteBadRequest(w, "role name is required")
//	httputil.WriteForbidden(w, "workflow:approve denied")
//	httputil.WriteNotFoundError(w, "workflow not found")
//
// # Request Parsing
//
//	var req api.EvaluateRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
