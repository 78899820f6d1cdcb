// Package policy implements the authorization decision engine for OKRio: role-based
// access control (RBAC), attribute-based conditions (ABAC), and object-scoped roles
// layered on top.
//
// # Overview
//
// The engine answers one question: is action A allowed for user U, given the
// caller's AccessContext and the attributes of the resource being touched. The
// answer combines three sources:
//
//   1. Roles: named RoleDefinitions assigned to the user, each carrying a
//      permission set. Roles may imply other roles; implied permissions are
//      resolved transitively and cycle-safely.
//   2. Conditions: each role optionally carries AttributeConditions. A role
//      (and anything it implies) grants nothing unless every one of its
//      conditions holds against the caller context and resource attributes.
//   3. Object roles: per-resource grants (viewer, editor, approver) that map to
//      configurable permission sets, independent of the role catalogue.
//
// # Usage
//
//	engine := policy.NewEngine()
//	policy.RegisterDefaults(engine)
//
//	if err := engine.AssignRole("u1", "manager"); err != nil {
//		// role name not registered
//	}
//
//	decision, permissions := engine.Evaluate("u1", policy.PermWorkflowApprove, ctx, policy.Attributes{
//		"id":       {"obj-1"},
//		"owner_id": {"u2"},
//	}, nil)
//
// Evaluate is a pure function of engine state and inputs: it performs no I/O,
// mutates nothing, and reports a denial as a normal return value rather than an
// error. Callers that need denial as an error (the workflow engine does) convert
// it themselves.
//
// Passing a nil object-role slice tells Evaluate to consult the engine's own
// grant store for (resource id, user). Passing a non-nil slice, including an
// empty one, uses exactly that slice instead; an explicit empty slice therefore
// suppresses stored grants for that call.
//
// All mutating operations and Evaluate are safe for concurrent use. Evaluate
// takes a consistent snapshot of the catalogue and assignments and resolves the
// implication graph without holding the engine lock.
package policy
