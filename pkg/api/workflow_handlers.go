package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/okrio/okrio/pkg/httputil"
	"github.com/okrio/okrio/pkg/observability"
	"github.com/okrio/okrio/pkg/workflow"
)

// InstanceStore is the write-through persistence surface for workflow
// instances. *store.Store satisfies it; nil keeps the service memory-only.
type InstanceStore interface {
	SaveInstance(ctx context.Context, instance *workflow.Instance) error
}

// WorkflowHandlers handles workflow lifecycle endpoints
type WorkflowHandlers struct {
	engine    *workflow.Engine
	instances InstanceStore
	metrics   *observability.Metrics
	logger    *logrus.Logger
}

// NewWorkflowHandlers creates a new workflow handlers instance. instances
// and metrics may be nil.
func NewWorkflowHandlers(engine *workflow.Engine, instances InstanceStore, metrics *observability.Metrics, logger *logrus.Logger) *WorkflowHandlers {
	return &WorkflowHandlers{
		engine:    engine,
		instances: instances,
		metrics:   metrics,
		logger:    logger,
	}
}

// RegisterRoutes registers workflow API routes
func (h *WorkflowHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/workflow/instances", h.createInstance).Methods("POST")
	r.HandleFunc("/api/v1/workflow/instances", h.listInstances).Methods("GET")
	r.HandleFunc("/api/v1/workflow/instances/{id}", h.getInstance).Methods("GET")
	r.HandleFunc("/api/v1/workflow/instances/{id}/actions", h.applyAction).Methods("POST")
	r.HandleFunc("/api/v1/workflow/health", h.health).Methods("GET")
}

// createInstance handles POST /api/v1/workflow/instances
func (h *WorkflowHandlers) createInstance(w http.ResponseWriter, r *http.Request) {
	var req CreateInstanceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.ObjectiveID, "objective_id") || !httputil.RequireNonEmpty(w, req.OwnerID, "owner_id") {
		return
	}

	instance := h.engine.CreateInstance(req.ObjectiveID, req.OwnerID, req.TenantID, req.WorkspaceIDs)

	if h.instances != nil {
		if err := h.instances.SaveInstance(r.Context(), instance); err != nil {
			h.logger.Errorf("Failed to persist instance %s: %v", instance.ID, err)
			httputil.WriteInternalError(w, err)
			return
		}
	}
	if h.metrics != nil {
		h.metrics.WorkflowInstances.Inc()
	}

	h.logger.WithFields(logrus.Fields{
		"workflow_id":  instance.ID,
		"objective_id": instance.ObjectiveID,
		"owner_id":     instance.OwnerID,
	}).Info("workflow created")
	httputil.WriteCreated(w, instance)
}

// listInstances handles GET /api/v1/workflow/instances
func (h *WorkflowHandlers) listInstances(w http.ResponseWriter, r *http.Request) {
	instances := h.engine.ListInstances()
	if instances == nil {
		instances = []*workflow.Instance{}
	}
	httputil.WriteSuccess(w, InstancesResponse{Instances: instances})
}

// getInstance handles GET /api/v1/workflow/instances/{id}
func (h *WorkflowHandlers) getInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	instance, err := h.engine.GetInstance(id)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			httputil.WriteNotFoundError(w, "workflow not found")
			return
		}
		h.logger.Errorf("Failed to get instance %s: %v", id, err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, instance)
}

// applyAction handles POST /api/v1/workflow/instances/{id}/actions
func (h *WorkflowHandlers) applyAction(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req ActionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Action, "action") || !httputil.RequireNonEmpty(w, req.Context.UserID, "context.user_id") {
		return
	}

	instance, err := h.engine.Advance(id, req.Action, req.Context, req.Comment, req.ObjectRoles)
	if err != nil {
		h.recordTransition(req.Action, err)

		var deniedErr *workflow.PermissionDeniedError
		var transitionErr *workflow.InvalidTransitionError
		switch {
		case errors.Is(err, workflow.ErrNotFound):
			httputil.WriteNotFoundError(w, "workflow not found")
		case errors.As(err, &deniedErr):
			h.logger.WithFields(logrus.Fields{
				"workflow_id": id,
				"user_id":     req.Context.UserID,
				"action":      req.Action,
			}).Warn("action denied")
			httputil.WriteForbidden(w, deniedErr.Error())
		case errors.As(err, &transitionErr):
			httputil.WriteBadRequest(w, transitionErr.Error())
		default:
			h.logger.Errorf("Failed to advance workflow %s: %v", id, err)
			httputil.WriteInternalError(w, err)
		}
		return
	}
	h.recordTransition(req.Action, nil)

	if h.instances != nil {
		if err := h.instances.SaveInstance(r.Context(), instance); err != nil {
			h.logger.Errorf("Failed to persist instance %s: %v", instance.ID, err)
			httputil.WriteInternalError(w, err)
			return
		}
	}

	h.logger.WithFields(logrus.Fields{
		"workflow_id": instance.ID,
		"action":      req.Action,
		"state":       instance.State,
		"user_id":     req.Context.UserID,
	}).Info("workflow advanced")
	httputil.WriteSuccess(w, instance)
}

func (h *WorkflowHandlers) recordTransition(action string, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "applied"
	var deniedErr *workflow.PermissionDeniedError
	var transitionErr *workflow.InvalidTransitionError
	switch {
	case err == nil:
	case errors.Is(err, workflow.ErrNotFound):
		return
	case errors.As(err, &deniedErr):
		outcome = "denied"
	case errors.As(err, &transitionErr):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	h.metrics.TransitionsTotal.WithLabelValues(action, outcome).Inc()
}

// health handles GET /api/v1/workflow/health
func (h *WorkflowHandlers) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
