package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/okrio/okrio/pkg/httputil"
	"github.com/okrio/okrio/pkg/observability"
	"github.com/okrio/okrio/pkg/policy"
)

// Evaluator is the decision surface the handlers evaluate against. Both
// *policy.Engine and *policy.DecisionCache satisfy it.
type Evaluator interface {
	Evaluate(userID, action string, ctx policy.AccessContext, resource policy.Attributes, objectRoles []policy.ObjectRole) (policy.Decision, []string)
}

// GrantStore is the write-through persistence surface for role mutations.
// *store.Store satisfies it; a nil store keeps the service memory-only.
type GrantStore interface {
	SaveAssignment(ctx context.Context, userID, roleName string) error
	DeleteAssignment(ctx context.Context, userID, roleName string) error
	SaveObjectGrant(ctx context.Context, userID, objectID string, role policy.ObjectRole) error
	DeleteObjectGrant(ctx context.Context, userID, objectID string, role policy.ObjectRole) error
}

// PolicyHandlers handles role management and evaluation endpoints
type PolicyHandlers struct {
	engine    *policy.Engine
	evaluator Evaluator
	grants    GrantStore
	metrics   *observability.Metrics
	logger    *logrus.Logger
}

// NewPolicyHandlers creates a new policy handlers instance. grants and
// metrics may be nil.
func NewPolicyHandlers(engine *policy.Engine, evaluator Evaluator, grants GrantStore, metrics *observability.Metrics, logger *logrus.Logger) *PolicyHandlers {
	if evaluator == nil {
		evaluator = engine
	}
	return &PolicyHandlers{
		engine:    engine,
		evaluator: evaluator,
		grants:    grants,
		metrics:   metrics,
		logger:    logger,
	}
}

// RegisterRoutes registers policy API routes
func (h *PolicyHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/auth/roles/assign", h.assignRole).Methods("POST")
	r.HandleFunc("/api/v1/auth/roles/revoke", h.revokeRole).Methods("POST")
	r.HandleFunc("/api/v1/auth/roles/object", h.objectRole).Methods("POST")
	r.HandleFunc("/api/v1/auth/roles/evaluate", h.evaluate).Methods("POST")
	r.HandleFunc("/api/v1/auth/roles/catalogue", h.catalogue).Methods("GET")
	r.HandleFunc("/api/v1/auth/health", h.health).Methods("GET")
}

// assignRole handles POST /api/v1/auth/roles/assign
func (h *PolicyHandlers) assignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") || !httputil.RequireNonEmpty(w, req.RoleName, "role_name") {
		return
	}

	if err := h.engine.AssignRole(req.UserID, req.RoleName); err != nil {
		if errors.Is(err, policy.ErrUnknownRole) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		h.logger.Errorf("Failed to assign role: %v", err)
		httputil.WriteInternalError(w, err)
		return
	}

	if h.grants != nil {
		if err := h.grants.SaveAssignment(r.Context(), req.UserID, req.RoleName); err != nil {
			h.logger.Errorf("Failed to persist assignment: %v", err)
			httputil.WriteInternalError(w, err)
			return
		}
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": req.UserID,
		"role":    req.RoleName,
	}).Info("role assigned")
	httputil.WriteNoContent(w)
}

// revokeRole handles POST /api/v1/auth/roles/revoke
func (h *PolicyHandlers) revokeRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") || !httputil.RequireNonEmpty(w, req.RoleName, "role_name") {
		return
	}

	h.engine.RevokeRole(req.UserID, req.RoleName)

	if h.grants != nil {
		if err := h.grants.DeleteAssignment(r.Context(), req.UserID, req.RoleName); err != nil {
			h.logger.Errorf("Failed to persist revocation: %v", err)
			httputil.WriteInternalError(w, err)
			return
		}
	}

	httputil.WriteNoContent(w)
}

// objectRole handles POST /api/v1/auth/roles/object
func (h *PolicyHandlers) objectRole(w http.ResponseWriter, r *http.Request) {
	var req ObjectRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") ||
		!httputil.RequireNonEmpty(w, req.ObjectID, "object_id") ||
		!httputil.RequireNonEmpty(w, req.Role, "role") {
		return
	}

	role := policy.ObjectRole(req.Role)
	switch role {
	case policy.ObjectRoleViewer, policy.ObjectRoleEditor, policy.ObjectRoleApprover:
	default:
		httputil.WriteBadRequest(w, "unknown object role: "+req.Role)
		return
	}

	switch req.Op {
	case "", "grant":
		h.engine.GrantObjectRole(req.UserID, req.ObjectID, role)
		if h.grants != nil {
			if err := h.grants.SaveObjectGrant(r.Context(), req.UserID, req.ObjectID, role); err != nil {
				h.logger.Errorf("Failed to persist object grant: %v", err)
				httputil.WriteInternalError(w, err)
				return
			}
		}
	case "revoke":
		h.engine.RevokeObjectRole(req.UserID, req.ObjectID, role)
		if h.grants != nil {
			if err := h.grants.DeleteObjectGrant(r.Context(), req.UserID, req.ObjectID, role); err != nil {
				h.logger.Errorf("Failed to persist object revocation: %v", err)
				httputil.WriteInternalError(w, err)
				return
			}
		}
	default:
		httputil.WriteBadRequest(w, "op must be grant or revoke")
		return
	}

	httputil.WriteNoContent(w)
}

// evaluate handles POST /api/v1/auth/roles/evaluate
func (h *PolicyHandlers) evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Context.UserID, "context.user_id") || !httputil.RequireNonEmpty(w, req.Action, "action") {
		return
	}

	start := time.Now()
	decision, permissions := h.evaluator.Evaluate(req.Context.UserID, req.Action, req.Context, req.Resource, req.ObjectRoles)

	if h.metrics != nil {
		h.metrics.DecisionsTotal.WithLabelValues(string(decision)).Inc()
		h.metrics.EvaluateDuration.Observe(time.Since(start).Seconds())
	}
	h.logger.WithFields(logrus.Fields{
		"user_id":  req.Context.UserID,
		"action":   req.Action,
		"decision": decision,
	}).Debug("policy evaluated")

	httputil.WriteSuccess(w, EvaluateResponse{Decision: decision, Permissions: permissions})
}

// catalogue handles GET /api/v1/auth/roles/catalogue
func (h *PolicyHandlers) catalogue(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, CatalogueResponse{Roles: h.engine.DescribeRoles()})
}

// health handles GET /api/v1/auth/health
func (h *PolicyHandlers) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
