package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRateLimit(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(rate.NewLimiter(rate.Limit(0.001), 2)))
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/health", ok)
	e.GET("/api/v1/roots/:root/migrations", ok)

	get := func(target string) int {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("/api/v1/roots/r-abcd/migrations"))
	assert.Equal(t, http.StatusOK, get("/api/v1/roots/r-abcd/migrations"))
	assert.Equal(t, http.StatusTooManyRequests, get("/api/v1/roots/r-abcd/migrations"))
	assert.Equal(t, http.StatusOK, get("/health"))
}
