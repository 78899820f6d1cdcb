package policy

import "errors"

var (
	// ErrUnknownRole is returned when an assignment references a role name
	// that has not been registered.
	ErrUnknownRole = errors.New("unknown role")

	// ErrUnknownOperator is returned when a loaded role definition uses a
	// condition operator the engine does not implement.
	ErrUnknownOperator = errors.New("unknown condition operator")
)
