package workflow

import (
	"time"

	"github.com/okrio/okrio/pkg/policy"
)

// State is the lifecycle state of a workflow instance.
type State string

const (
	StateDraft           State = "draft"
	StateReview          State = "expert_review"
	StateManagerApproval State = "manager_approval"
	StateActive          State = "active"
	StateReturned        State = "returned"
)

// transitions is the fixed (state, action) → next-state table. Any pair not
// present is an invalid transition.
var transitions = map[State]map[string]State{
	StateDraft: {
		policy.PermWorkflowSubmit: StateReview,
	},
	StateReview: {
		policy.PermWorkflowReturn: StateDraft,
		policy.PermWorkflowReview: StateManagerApproval,
	},
	StateManagerApproval: {
		policy.PermWorkflowReturn:  StateReview,
		policy.PermWorkflowApprove: StateActive,
	},
	StateActive: {
		policy.PermWorkflowReopen: StateReturned,
	},
	StateReturned: {
		policy.PermWorkflowSubmit: StateReview,
	},
}

// HistoryEntry records one applied transition.
type HistoryEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	Action         string    `json:"action"`
	ActorID        string    `json:"actor_id"`
	ResultingState State     `json:"resulting_state"`
	Comment        string    `json:"comment,omitempty"`
}

// Instance is one workflow tracked by the engine. History is ordered and
// append-only: entries are added in the order transitions were applied and are
// never edited or removed.
type Instance struct {
	ID           string         `json:"id"`
	ObjectiveID  string         `json:"objective_id"`
	OwnerID      string         `json:"owner_id"`
	TenantID     string         `json:"tenant_id"`
	WorkspaceIDs []string       `json:"workspace_ids"`
	State        State          `json:"state"`
	History      []HistoryEntry `json:"history"`
}

// Clone returns a deep copy. The engine hands out clones so callers can never
// observe, or interfere with, an in-flight transition.
func (i *Instance) Clone() *Instance {
	clone := *i
	clone.WorkspaceIDs = append([]string(nil), i.WorkspaceIDs...)
	clone.History = append([]HistoryEntry(nil), i.History...)
	return &clone
}
