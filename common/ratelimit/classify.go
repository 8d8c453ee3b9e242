package ratelimit

import "strings"

// CallClass is the throttling bucket of a remote API operation
type CallClass string

const (
	ClassRead   CallClass = "read"   // List*/Describe*
	ClassMutate CallClass = "mutate" // everything that changes the organization
)

var readPrefixes = []string{"List", "Describe", "Get"}

// Classify maps an operation name to its call class
func Classify(op string) CallClass {
	for _, prefix := range readPrefixes {
		if strings.HasPrefix(op, prefix) {
			return ClassRead
		}
	}
	return ClassMutate
}
