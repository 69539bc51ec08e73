package ratelimit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/usethreadkit/threadkit/internal/observability"
)

// Middleware returns a Fiber handler enforcing rule against scope, keyed by
// id(c). On rejection it writes the 429 response shape
// {error, layer, retry_after} with the Retry-After/X-RateLimit-* headers.
func (l *Limiter) Middleware(scope Scope, bucket string, rule Rule, id func(c *fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, err := l.Allow(c.Context(), scope, id(c), bucket, rule)
		if err != nil {
			return err
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			observability.RateLimitRejectionsTotal.WithLabelValues(string(scope)).Inc()
			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate limit exceeded",
				"layer":       string(result.Layer),
				"retry_after": retryAfter,
			})
		}
		return c.Next()
	}
}

// IPScope keys by remote IP, honoring X-Forwarded-For only when trustProxy.
func IPScope(trustProxy bool) func(c *fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		if trustProxy {
			if fwd := c.Get("X-Forwarded-For"); fwd != "" {
				return fwd
			}
		}
		return c.IP()
	}
}

// UserScope keys by the authenticated user id stashed in c.Locals("userID").
func UserScope(c *fiber.Ctx) string {
	if uid := c.Locals("userID"); uid != nil {
		return fmt.Sprintf("%v", uid)
	}
	return c.IP()
}

// APIKeyScope keys by the site's public API key from the projectid header.
func APIKeyScope(c *fiber.Ctx) string {
	return c.Get("projectid")
}
