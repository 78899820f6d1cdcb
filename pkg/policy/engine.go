package policy

import (
	"fmt"
	"sort"
	"sync"
)

type grantKey struct {
	objectID string
	userID   string
}

// Engine is the runtime holding the role catalogue, role assignments, and
// object-role grants. Construct one per process and pass it by reference; all
// methods are safe for concurrent use.
type Engine struct {
	mu                    sync.RWMutex
	roles                 map[string]RoleDefinition
	assignments           map[string]map[string]struct{}
	objectRoles           map[grantKey]map[ObjectRole]struct{}
	objectRolePermissions map[ObjectRole]map[string]struct{}
	revision              uint64
}

// NewEngine creates an empty engine with the default object-role permission
// table.
func NewEngine() *Engine {
	return &Engine{
		roles:       make(map[string]RoleDefinition),
		assignments: make(map[string]map[string]struct{}),
		objectRoles: make(map[grantKey]map[ObjectRole]struct{}),
		objectRolePermissions: map[ObjectRole]map[string]struct{}{
			ObjectRoleViewer: {
				PermWorkflowView: {},
				PermOKRView:      {},
			},
			ObjectRoleEditor: {
				PermWorkflowView: {},
				PermWorkflowEdit: {},
				PermOKREdit:      {},
			},
			ObjectRoleApprover: {
				PermWorkflowView:    {},
				PermWorkflowApprove: {},
			},
		},
	}
}

// RegisterRole inserts or overwrites a role definition by name. Last write
// wins.
func (e *Engine) RegisterRole(role RoleDefinition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roles[role.Name] = role
	e.revision++
}

// DescribeRoles returns a snapshot of all registered role definitions, sorted
// by name.
func (e *Engine) DescribeRoles() []RoleDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()

	roles := make([]RoleDefinition, 0, len(e.roles))
	for _, role := range e.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles
}

// AssignRole adds a role to the user's assignment set. Assigning an already
// held role is a no-op. Assigning an unregistered role name fails with
// ErrUnknownRole.
func (e *Engine) AssignRole(userID, roleName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.roles[roleName]; !ok {
		return fmt.Errorf("assign role %q to %q: %w", roleName, userID, ErrUnknownRole)
	}
	set, ok := e.assignments[userID]
	if !ok {
		set = make(map[string]struct{})
		e.assignments[userID] = set
	}
	set[roleName] = struct{}{}
	e.revision++
	return nil
}

// RevokeRole removes a role from the user's assignment set. Revoking a role
// the user does not hold is a no-op.
func (e *Engine) RevokeRole(userID, roleName string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	set, ok := e.assignments[userID]
	if !ok {
		return
	}
	delete(set, roleName)
	if len(set) == 0 {
		delete(e.assignments, userID)
	}
	e.revision++
}

// Assignments returns a sorted copy of the role names assigned to the user.
func (e *Engine) Assignments(userID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.assignments[userID]))
	for name := range e.assignments[userID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GrantObjectRole grants an object-level role to a user for one resource.
func (e *Engine) GrantObjectRole(userID, objectID string, role ObjectRole) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := grantKey{objectID: objectID, userID: userID}
	set, ok := e.objectRoles[key]
	if !ok {
		set = make(map[ObjectRole]struct{})
		e.objectRoles[key] = set
	}
	set[role] = struct{}{}
	e.revision++
}

// RevokeObjectRole removes an object-level grant. Revoking an absent grant is
// a no-op.
func (e *Engine) RevokeObjectRole(userID, objectID string, role ObjectRole) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := grantKey{objectID: objectID, userID: userID}
	set, ok := e.objectRoles[key]
	if !ok {
		return
	}
	delete(set, role)
	if len(set) == 0 {
		delete(e.objectRoles, key)
	}
	e.revision++
}

// ObjectRoles returns the object roles granted to the user for one resource,
// sorted for deterministic output.
func (e *Engine) ObjectRoles(userID, objectID string) []ObjectRole {
	e.mu.RLock()
	defer e.mu.RUnlock()

	set := e.objectRoles[grantKey{objectID: objectID, userID: userID}]
	roles := make([]ObjectRole, 0, len(set))
	for role := range set {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// ConfigureObjectRolePermissions overrides the permission set granted by an
// object-level role.
func (e *Engine) ConfigureObjectRolePermissions(role ObjectRole, permissions []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	e.objectRolePermissions[role] = set
	e.revision++
}

// Revision returns a counter bumped by every mutating call. Caching layers use
// it to invalidate entries without coupling to individual mutations.
func (e *Engine) Revision() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.revision
}

// Evaluate decides whether action is allowed for userID given the caller
// context and resource attributes, and returns the decision together with the
// full resolved permission set (sorted).
//
// objectRoles controls the object-level source: nil consults the engine's
// grant store for (resource["id"], userID); a non-nil slice, including an
// empty one, is used as the sole source and the store is not consulted.
//
// Denial is a normal return value, never an error.
func (e *Engine) Evaluate(userID, action string, ctx AccessContext, resource Attributes, objectRoles []ObjectRole) (Decision, []string) {
	// Snapshot under the read lock; the recursive resolution below runs
	// lock-free on the snapshot.
	e.mu.RLock()
	roles := make(map[string]RoleDefinition, len(e.roles))
	for name, role := range e.roles {
		roles[name] = role
	}
	assigned := make([]string, 0, len(e.assignments[userID]))
	for name := range e.assignments[userID] {
		assigned = append(assigned, name)
	}
	var objectPermissions map[string]struct{}
	if objectRoles == nil {
		stored := e.objectRoles[grantKey{objectID: resource.First("id"), userID: userID}]
		objectPermissions = make(map[string]struct{})
		for role := range stored {
			for p := range e.objectRolePermissions[role] {
				objectPermissions[p] = struct{}{}
			}
		}
	} else {
		objectPermissions = make(map[string]struct{})
		for _, role := range objectRoles {
			for p := range e.objectRolePermissions[role] {
				objectPermissions[p] = struct{}{}
			}
		}
	}
	e.mu.RUnlock()

	// Sort assigned role names so the traversal, and with it any tie-broken
	// behaviour, is deterministic.
	sort.Strings(assigned)

	permissions := make(map[string]struct{})
	visited := make(map[string]struct{})
	for _, name := range assigned {
		resolvePermissions(roles, name, visited, ctx, resource, permissions)
	}
	for p := range objectPermissions {
		permissions[p] = struct{}{}
	}

	resolved := make([]string, 0, len(permissions))
	for p := range permissions {
		resolved = append(resolved, p)
	}
	sort.Strings(resolved)

	if _, ok := permissions[action]; ok {
		return DecisionAllow, resolved
	}
	return DecisionDeny, resolved
}

// resolvePermissions walks the implication graph depth-first. The shared
// visited set guarantees termination on cyclic graphs: each role contributes
// at most once per evaluation. A role whose conditions fail contributes
// nothing, including the subtree reachable only through it.
func resolvePermissions(roles map[string]RoleDefinition, name string, visited map[string]struct{}, ctx AccessContext, resource Attributes, out map[string]struct{}) {
	if _, seen := visited[name]; seen {
		return
	}
	visited[name] = struct{}{}

	role, ok := roles[name]
	if !ok {
		return
	}
	for _, condition := range role.Conditions {
		if !condition.Evaluate(ctx, resource) {
			return
		}
	}

	for _, p := range role.Permissions {
		out[p] = struct{}{}
	}
	for _, implied := range role.ImpliedRoles {
		resolvePermissions(roles, implied, visited, ctx, resource, out)
	}
}
