package middleware

import (
	"math"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimit rejects requests beyond the limiter's rate with 429.
// Health checks are never limited so probes keep working under load.
func RateLimit(limiter *rate.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/health" {
				return next(c)
			}

			if !limiter.Allow() {
				retryAfter := int(math.Ceil(1 / float64(limiter.Limit())))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "rate_limit_exceeded",
					"message": "Too many requests. Please try again later.",
					"details": map[string]interface{}{
						"limit_per_second":    float64(limiter.Limit()),
						"burst":               limiter.Burst(),
						"retry_after_seconds": retryAfter,
					},
				})
			}

			return next(c)
		}
	}
}
