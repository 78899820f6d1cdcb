package policy

// CanViewObject evaluates the cross-cutting view rules that apply regardless
// of the role catalogue: owners, workspace members, and direct managers of the
// owner may view.
func CanViewObject(ctx AccessContext, objectWorkspaceID, ownerID string) bool {
	if ownerID == ctx.UserID {
		return true
	}
	for _, ws := range ctx.WorkspaceIDs {
		if ws == objectWorkspaceID {
			return true
		}
	}
	for _, report := range ctx.ManagerOf {
		if report == ownerID {
			return true
		}
	}
	return false
}

// CanEditObject evaluates edit access across object roles and the manager
// relationship. An editor or approver grant is sufficient on its own; a
// manager may edit only inside a shared workspace.
func CanEditObject(ctx AccessContext, objectWorkspaceID, ownerID string, objectRoles []ObjectRole) bool {
	for _, role := range objectRoles {
		if role == ObjectRoleEditor || role == ObjectRoleApprover {
			return true
		}
	}

	manages := false
	for _, report := range ctx.ManagerOf {
		if report == ownerID {
			manages = true
			break
		}
	}
	if !manages {
		return false
	}
	for _, ws := range ctx.WorkspaceIDs {
		if ws == objectWorkspaceID {
			return true
		}
	}
	return false
}
