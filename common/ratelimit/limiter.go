package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Logger interface for logging
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
}

// RateLimiter throttles outgoing remote API calls with one token bucket per call class
type RateLimiter struct {
	buckets map[CallClass]*rate.Limiter
	logger  Logger
}

// NewRateLimiter creates a limiter; configs not given fall back to DefaultClassConfigs
func NewRateLimiter(logger Logger, configs ...ClassConfig) *RateLimiter {
	r := &RateLimiter{
		buckets: make(map[CallClass]*rate.Limiter),
		logger:  logger,
	}
	for _, cfg := range GetAllClasses() {
		r.buckets[cfg.Class] = rate.NewLimiter(cfg.Rate, cfg.Burst)
	}
	for _, cfg := range configs {
		r.buckets[cfg.Class] = rate.NewLimiter(cfg.Rate, cfg.Burst)
	}
	return r
}

// Wait blocks until op may proceed or ctx is done
func (r *RateLimiter) Wait(ctx context.Context, op string) error {
	class := Classify(op)
	bucket, ok := r.buckets[class]
	if !ok {
		bucket = r.buckets[ClassMutate]
	}

	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", op, err)
	}
	if waited := time.Since(start); waited > 10*time.Millisecond {
		r.logger.Debug("remote call throttled", "op", op, "class", class, "waited_ms", waited.Milliseconds())
	}
	return nil
}
