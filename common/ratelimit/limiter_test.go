package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassRead, Classify("ListChildren"))
	assert.Equal(t, ClassRead, Classify("DescribePolicy"))
	assert.Equal(t, ClassMutate, Classify("MoveAccount"))
	assert.Equal(t, ClassMutate, Classify("RegisterDelegatedAdministrator"))
}

func TestRateLimiter_WaitHonoursCancelledContext(t *testing.T) {
	limiter := NewRateLimiter(nopLogger{}, ClassConfig{Class: ClassMutate, Rate: rate.Every(1e12), Burst: 1})

	require.NoError(t, limiter.Wait(context.Background(), "MoveAccount"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limiter.Wait(ctx, "MoveAccount"))
}

func TestGetConfigForClass_Fallback(t *testing.T) {
	assert.Equal(t, DefaultClassConfigs[ClassMutate], GetConfigForClass("unknown"))
}
