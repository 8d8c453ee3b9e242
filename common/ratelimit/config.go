package ratelimit

import "golang.org/x/time/rate"

// ClassConfig defines the token bucket for one call class
type ClassConfig struct {
	Class       CallClass
	Rate        rate.Limit // Tokens per second
	Burst       int
	Description string
}

// DefaultClassConfigs stay below the organizations API's documented per-account quotas
var DefaultClassConfigs = map[CallClass]ClassConfig{
	ClassRead: {
		Class:       ClassRead,
		Rate:        10,
		Burst:       5,
		Description: "List/Describe calls - 10 per second",
	},
	ClassMutate: {
		Class:       ClassMutate,
		Rate:        2,
		Burst:       1,
		Description: "Create/Update/Move/Attach/Register calls - 2 per second",
	},
}

// GetConfigForClass returns the bucket for a class
func GetConfigForClass(class CallClass) ClassConfig {
	if config, exists := DefaultClassConfigs[class]; exists {
		return config
	}
	// Fallback to most restrictive class
	return DefaultClassConfigs[ClassMutate]
}

// GetAllClasses returns all configured classes for documentation
func GetAllClasses() []ClassConfig {
	return []ClassConfig{
		DefaultClassConfigs[ClassRead],
		DefaultClassConfigs[ClassMutate],
	}
}
