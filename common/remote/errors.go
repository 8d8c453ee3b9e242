package remote

import (
	"errors"
	"fmt"
)

// Provider error codes the engine reacts to
const (
	CodeAccountNotRegistered        = "AccountNotRegisteredException"
	CodeAccountAlreadyRegistered    = "AccountAlreadyRegisteredException"
	CodeDuplicateOrganizationalUnit = "DuplicateOrganizationalUnitException"
	CodeDuplicatePolicy             = "DuplicatePolicyException"
	CodeDuplicatePolicyAttachment   = "DuplicatePolicyAttachmentException"
	CodePolicyNotAttached           = "PolicyNotAttachedException"
	CodeChildNotFound               = "ChildNotFoundException"
	CodeParentNotFound              = "ParentNotFoundException"
	CodeSourceParentNotFound        = "SourceParentNotFoundException"
	CodeDestinationParentNotFound   = "DestinationParentNotFoundException"
	CodeAccountNotFound             = "AccountNotFoundException"
	CodeOrganizationalUnitNotFound  = "OrganizationalUnitNotFoundException"
	CodePolicyNotFound              = "PolicyNotFoundException"
	CodeTargetNotFound              = "TargetNotFoundException"
	CodeDuplicateAccount            = "DuplicateAccountException"
)

// ProviderError is a failure reported by the remote API, as opposed to a local bug
type ProviderError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError without an underlying cause
func NewProviderError(op, code, message string) *ProviderError {
	return &ProviderError{Op: op, Code: code, Message: message}
}

// IsProviderError reports whether err came from the remote API
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// HasCode reports whether err is a ProviderError with the given code
func HasCode(err error, code string) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == code
}

// IsAccountNotRegistered reports the "account delegates nothing" condition
func IsAccountNotRegistered(err error) bool {
	return HasCode(err, CodeAccountNotRegistered)
}
