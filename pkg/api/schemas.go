package api

import (
	"github.com/okrio/okrio/pkg/policy"
	"github.com/okrio/okrio/pkg/workflow"
)

// AssignRoleRequest binds a catalogue role to a user
type AssignRoleRequest struct {
	UserID   string `json:"user_id"`
	RoleName string `json:"role_name"`
}

// ObjectRoleRequest grants or revokes an object-scoped role. Op is "grant"
// or "revoke"; an empty Op means grant.
type ObjectRoleRequest struct {
	UserID   string `json:"user_id"`
	ObjectID string `json:"object_id"`
	Role     string `json:"role"`
	Op       string `json:"op,omitempty"`
}

// EvaluateRequest is a dry-run authorization check. ObjectRoles distinguishes
// absent (nil, the engine consults its grant store) from explicitly empty
// (the caller asserts no object roles apply).
type EvaluateRequest struct {
	Context     policy.AccessContext `json:"context"`
	Action      string               `json:"action"`
	Resource    policy.Attributes    `json:"resource,omitempty"`
	ObjectRoles []policy.ObjectRole  `json:"object_roles,omitempty"`
}

// EvaluateResponse carries the decision and the caller's effective
// permissions for the evaluated resource.
type EvaluateResponse struct {
	Decision    policy.Decision `json:"decision"`
	Permissions []string        `json:"permissions"`
}

// CatalogueResponse lists the registered role definitions
type CatalogueResponse struct {
	Roles []policy.RoleDefinition `json:"roles"`
}

// CreateInstanceRequest starts a workflow for an objective
type CreateInstanceRequest struct {
	ObjectiveID  string   `json:"objective_id"`
	OwnerID      string   `json:"owner_id"`
	TenantID     string   `json:"tenant_id"`
	WorkspaceIDs []string `json:"workspace_ids,omitempty"`
}

// ActionRequest applies a lifecycle action to a workflow instance. The
// ObjectRoles semantics match EvaluateRequest.
type ActionRequest struct {
	Action      string               `json:"action"`
	Context     policy.AccessContext `json:"context"`
	Comment     string               `json:"comment,omitempty"`
	ObjectRoles []policy.ObjectRole  `json:"object_roles,omitempty"`
}

// InstancesResponse lists workflow instances
type InstancesResponse struct {
	Instances []*workflow.Instance `json:"instances"`
}
