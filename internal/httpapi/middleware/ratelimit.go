package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/httpapi/ratelimit"
)

// RateLimit throttles write verbs per repo (SPEC_FULL.md section 3.1),
// mirroring the teacher's GlobalRateLimitMiddleware shape: fail-open on a
// backend error, since availability beats strict enforcement here.
func RateLimit(limiter *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			method := c.Request().Method
			if method != http.MethodPut && method != http.MethodDelete {
				return next(c)
			}

			repo := Repo(c)
			if repo == "" {
				return next(c)
			}

			result, err := limiter.Allow(c.Request().Context(), repo)
			if err != nil {
				return next(c)
			}
			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error":               "write_rate_limit_exceeded",
					"limit":               result.Limit,
					"current_count":       result.CurrentCount,
					"retry_after_seconds": result.RetryAfterSeconds,
				})
			}
			return next(c)
		}
	}
}
