package trigger

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// rateLimitMiddleware throttles webhook traffic per trigger node
// identifier (the ":node_id" route param), failing open if the
// limiter itself errors (e.g. Redis is briefly unavailable) so an
// infra hiccup doesn't take the listener down with it.
func rateLimitMiddleware(limiter *RateLimiter, limit int64, windowSec int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			nodeID := c.Param("node_id")
			if nodeID == "" || limiter == nil {
				return next(c)
			}

			result, err := limiter.Allow(c.Request().Context(), nodeID, limit, windowSec)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error": "rate_limit_exceeded",
					"details": map[string]interface{}{
						"node_id":             nodeID,
						"limit":               result.Limit,
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
