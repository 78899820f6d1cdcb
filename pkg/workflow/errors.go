package workflow

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation references an unknown workflow id.
var ErrNotFound = errors.New("workflow not found")

// PermissionDeniedError is returned by Advance when the policy engine denies
// the attempted action. It carries the resolved permission set for
// diagnosability.
type PermissionDeniedError struct {
	Action      string
	UserID      string
	Permissions []string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("action %q not permitted for user %q (resolved permissions: %v)", e.Action, e.UserID, e.Permissions)
}

// InvalidTransitionError is returned by Advance when the action is not defined
// for the instance's current state.
type InvalidTransitionError struct {
	State  State
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("action %q is not valid from state %q", e.Action, e.State)
}
