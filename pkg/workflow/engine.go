package workflow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okrio/okrio/pkg/policy"
)

// Engine owns workflow instances and applies transitions. Every transition is
// authorized through the policy engine before any state is touched.
type Engine struct {
	mu        sync.Mutex
	policy    *policy.Engine
	instances map[string]*Instance

	// Injectable for tests.
	now   func() time.Time
	newID func() string
}

// NewEngine creates an engine gated by the given policy engine. Construct one
// per process and pass it by reference.
func NewEngine(policyEngine *policy.Engine) *Engine {
	return &Engine{
		policy:    policyEngine,
		instances: make(map[string]*Instance),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// CreateInstance allocates a new workflow in StateDraft with a synthetic
// creation history entry authored by the owner, and returns a copy of it.
func (e *Engine) CreateInstance(objectiveID, ownerID, tenantID string, workspaceIDs []string) *Instance {
	e.mu.Lock()
	defer e.mu.Unlock()

	instance := &Instance{
		ID:           e.newID(),
		ObjectiveID:  objectiveID,
		OwnerID:      ownerID,
		TenantID:     tenantID,
		WorkspaceIDs: append([]string(nil), workspaceIDs...),
		State:        StateDraft,
		History: []HistoryEntry{{
			Timestamp:      e.now(),
			Action:         policy.PermWorkflowCreate,
			ActorID:        ownerID,
			ResultingState: StateDraft,
			Comment:        "Workflow created",
		}},
	}
	e.instances[instance.ID] = instance
	return instance.Clone()
}

// Restore inserts a previously persisted instance, replacing any instance with
// the same id. Used when replaying durable state at process start.
func (e *Engine) Restore(instance *Instance) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.instances[instance.ID] = instance.Clone()
}

// GetInstance returns a copy of the instance, or ErrNotFound.
func (e *Engine) GetInstance(workflowID string) (*Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	instance, ok := e.instances[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", workflowID, ErrNotFound)
	}
	return instance.Clone(), nil
}

// ListInstances returns copies of all tracked instances, sorted by id for
// deterministic output.
func (e *Engine) ListInstances() []*Instance {
	e.mu.Lock()
	defer e.mu.Unlock()

	instances := make([]*Instance, 0, len(e.instances))
	for _, instance := range e.instances {
		instances = append(instances, instance.Clone())
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].ID < instances[j].ID })
	return instances
}

// Advance authorizes and applies one transition, returning a copy of the
// updated instance. On any failure the instance is left completely unchanged:
// no state mutation and no history append.
//
// The objectRoles parameter is forwarded to policy.Engine.Evaluate verbatim,
// keeping its nil-versus-empty semantics.
//
// The whole operation holds the engine lock, so two concurrent Advance calls
// on the same instance serialize: the second observes the state after the
// first transition, never a partially applied one.
func (e *Engine) Advance(workflowID, action string, actor policy.AccessContext, comment string, objectRoles []policy.ObjectRole) (*Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	instance, ok := e.instances[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", workflowID, ErrNotFound)
	}

	resource := policy.Attributes{
		"id":            {instance.ObjectiveID},
		"workspace_ids": append([]string(nil), instance.WorkspaceIDs...),
		"owner_id":      {instance.OwnerID},
	}
	decision, permissions := e.policy.Evaluate(actor.UserID, action, actor, resource, objectRoles)
	if decision != policy.DecisionAllow {
		return nil, &PermissionDeniedError{Action: action, UserID: actor.UserID, Permissions: permissions}
	}

	nextState, ok := transitions[instance.State][action]
	if !ok {
		return nil, &InvalidTransitionError{State: instance.State, Action: action}
	}

	instance.State = nextState
	instance.History = append(instance.History, HistoryEntry{
		Timestamp:      e.now(),
		Action:         action,
		ActorID:        actor.UserID,
		ResultingState: nextState,
		Comment:        comment,
	})
	return instance.Clone(), nil
}
