package policy

// Built-in role names registered by RegisterDefaults.
const (
	RoleGlobalAdmin    = "global_admin"
	RoleWorkspaceOwner = "workspace_owner"
	RoleOKRExpert      = "okr_expert"
	RoleManager        = "manager"
)

// DefaultRoles returns the built-in role catalogue covering the workflow
// lifecycle: a global administrator, a workspace owner scoped to matching
// workspaces, an OKR expert gated on a directory label, and a manager scoped
// to their direct reports' resources.
func DefaultRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Name: RoleGlobalAdmin,
			Permissions: []string{
				PermWorkflowCreate,
				PermWorkflowEdit,
				PermWorkflowApprove,
				PermWorkflowView,
				PermWorkflowSubmit,
				PermWorkflowReturn,
				PermWorkflowReview,
				PermWorkflowReopen,
				PermSCIMManage,
				PermRolesAssign,
			},
		},
		{
			Name:        RoleWorkspaceOwner,
			Permissions: []string{PermWorkflowView, PermWorkflowEdit, PermWorkflowSubmit},
			Conditions: []AttributeCondition{
				{
					Attribute:         "workspace_ids",
					Operator:          OperatorMatchResource,
					ResourceAttribute: "workspace_ids",
				},
			},
		},
		{
			Name:        RoleOKRExpert,
			Permissions: []string{PermWorkflowView, PermWorkflowReview, PermWorkflowReturn},
			Conditions: []AttributeCondition{
				{
					Attribute: "labels",
					Operator:  OperatorContains,
					Values:    []string{"okr-expert"},
				},
			},
		},
		{
			Name:        RoleManager,
			Permissions: []string{PermWorkflowView, PermWorkflowApprove, PermWorkflowReturn},
			Conditions: []AttributeCondition{
				{
					Attribute:         "manager_of",
					Operator:          OperatorMatchResource,
					ResourceAttribute: "owner_id",
				},
			},
		},
	}
}

// RegisterDefaults registers the default role catalogue on the engine.
func RegisterDefaults(e *Engine) {
	for _, role := range DefaultRoles() {
		e.RegisterRole(role)
	}
}
