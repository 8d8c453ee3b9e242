package models

import "fmt"

// ConsistencyError means the remote hierarchy violates an invariant the diff relies on,
// e.g. an account with zero or several parents. It aborts the whole run.
type ConsistencyError struct {
	Entity string
	Reason string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error for %s: %s", e.Entity, e.Reason)
}

// UnrecognizedTargetTypeError is returned for policy targets outside ROOT, ORGANIZATIONAL_UNIT and ACCOUNT
type UnrecognizedTargetTypeError struct {
	PolicyID   string
	TargetID   string
	TargetType string
}

func (e *UnrecognizedTargetTypeError) Error() string {
	return fmt.Sprintf("policy %s: unrecognized target type %q for %s", e.PolicyID, e.TargetType, e.TargetID)
}
