// Package api exposes the policy and workflow engines over HTTP.
//
// Routes are versioned under /api/v1:
//
//	POST /api/v1/auth/roles/assign     assign a catalogue role to a user
//	POST /api/v1/auth/roles/revoke     revoke a catalogue role
//	POST /api/v1/auth/roles/object     grant or revoke an object-scoped role
//	POST /api/v1/auth/roles/evaluate   dry-run an authorization decision
//	GET  /api/v1/auth/roles/catalogue  list registered role definitions
//	GET  /api/v1/auth/health
//
//	POST /api/v1/workflow/instances               create a workflow instance
//	GET  /api/v1/workflow/instances               list instances
//	GET  /api/v1/workflow/instances/{id}          fetch one instance
//	POST /api/v1/workflow/instances/{id}/actions  apply a lifecycle action
//	GET  /api/v1/workflow/health
//
// A denied evaluation is a successful request: /evaluate returns 200 with
// decision "deny". Denials surface as 403 only on /actions, where the caller
// asked the service to change state.
//
// Error mapping: unknown workflow 404, denied action 403, invalid transition
// or malformed input 400. Bodies use the pkg/httputil error envelope.
package api
