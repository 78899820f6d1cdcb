package policy

// Decision is the outcome of one authorization evaluation.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// ObjectRole is a per-resource role granted to a single user.
type ObjectRole string

const (
	ObjectRoleViewer   ObjectRole = "viewer"
	ObjectRoleEditor   ObjectRole = "editor"
	ObjectRoleApprover ObjectRole = "approver"
)

// ConditionOperator selects how an AttributeCondition compares the caller
// context against its configured values.
type ConditionOperator string

const (
	// OperatorAny holds when the context attribute is non-empty.
	OperatorAny ConditionOperator = "any"
	// OperatorEquals holds when the context attribute set exactly equals the
	// condition's value set.
	OperatorEquals ConditionOperator = "equals"
	// OperatorContains holds when the context attribute set intersects the
	// condition's value set.
	OperatorContains ConditionOperator = "contains"
	// OperatorMatchResource holds when the context attribute set intersects
	// the named resource attribute.
	OperatorMatchResource ConditionOperator = "match_resource"
)

// Permission names used by the workflow lifecycle and the default catalogue.
const (
	PermWorkflowCreate  = "workflow:create"
	PermWorkflowView    = "workflow:view"
	PermWorkflowEdit    = "workflow:edit"
	PermWorkflowSubmit  = "workflow:submit"
	PermWorkflowReview  = "workflow:review"
	PermWorkflowReturn  = "workflow:return"
	PermWorkflowApprove = "workflow:approve"
	PermWorkflowReopen  = "workflow:reopen"
	PermOKRView         = "okr:view"
	PermOKREdit         = "okr:edit"
	PermSCIMManage      = "scim:manage"
	PermRolesAssign     = "roles:assign"
)

// Attributes is an open-ended attribute map for resources and for context
// extension attributes not promoted to a named AccessContext field. Single
// values are one-element lists.
type Attributes map[string][]string

// First returns the first value for key, or "" when the key is absent.
func (a Attributes) First(key string) string {
	values := a[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// AccessContext carries the caller attributes used for ABAC evaluation. It is
// built by the authentication layer and trusted verbatim by the engine.
type AccessContext struct {
	UserID       string     `json:"user_id"`
	TenantID     string     `json:"tenant_id"`
	WorkspaceIDs []string   `json:"workspace_ids,omitempty"`
	ManagerOf    []string   `json:"manager_of,omitempty"`
	Labels       []string   `json:"labels,omitempty"`
	ADGroups     []string   `json:"ad_groups,omitempty"`
	Level        string     `json:"level,omitempty"`
	Attributes   Attributes `json:"attributes,omitempty"`
}

// contextAttribute resolves a named attribute against the fixed context fields
// first, then the open-ended attribute map. This is the only place the two are
// bridged; conditions never reach into the struct directly.
func contextAttribute(ctx AccessContext, name string) []string {
	switch name {
	case "user_id":
		return []string{ctx.UserID}
	case "tenant_id":
		return []string{ctx.TenantID}
	case "workspace_ids":
		return ctx.WorkspaceIDs
	case "manager_of":
		return ctx.ManagerOf
	case "labels":
		return ctx.Labels
	case "ad_groups":
		return ctx.ADGroups
	case "level":
		if ctx.Level == "" {
			return nil
		}
		return []string{ctx.Level}
	}
	return ctx.Attributes[name]
}

// AttributeCondition is a declarative ABAC rule bound to a role definition.
type AttributeCondition struct {
	Attribute         string            `json:"attribute" yaml:"attribute"`
	Operator          ConditionOperator `json:"operator" yaml:"operator"`
	Values            []string          `json:"values,omitempty" yaml:"values,omitempty"`
	ResourceAttribute string            `json:"resource_attribute,omitempty" yaml:"resource_attribute,omitempty"`
}

// Evaluate reports whether the condition holds for the given caller context and
// resource attributes. It never mutates its inputs.
func (c AttributeCondition) Evaluate(ctx AccessContext, resource Attributes) bool {
	contextValue := toSet(contextAttribute(ctx, c.Attribute))

	switch c.Operator {
	case OperatorAny:
		return len(contextValue) > 0
	case OperatorEquals:
		return len(contextValue) > 0 && contextValue.equals(toSet(c.Values))
	case OperatorContains:
		return contextValue.intersects(toSet(c.Values))
	case OperatorMatchResource:
		if c.ResourceAttribute == "" {
			return false
		}
		return contextValue.intersects(toSet(resource[c.ResourceAttribute]))
	}
	return false
}

// RoleDefinition is an RBAC role with optional ABAC conditions and implied
// roles. Definitions are treated as immutable once registered.
type RoleDefinition struct {
	Name         string               `json:"name" yaml:"name"`
	Permissions  []string             `json:"permissions" yaml:"permissions"`
	Conditions   []AttributeCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	ImpliedRoles []string             `json:"implied_roles,omitempty" yaml:"implied_roles,omitempty"`
}

type stringSet map[string]struct{}

func toSet(values []string) stringSet {
	if len(values) == 0 {
		return nil
	}
	set := make(stringSet, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func (s stringSet) intersects(other stringSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for v := range small {
		if _, ok := large[v]; ok {
			return true
		}
	}
	return false
}

func (s stringSet) equals(other stringSet) bool {
	if len(s) != len(other) {
		return false
	}
	for v := range s {
		if _, ok := other[v]; !ok {
			return false
		}
	}
	return true
}
