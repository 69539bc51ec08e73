package ratelimit

import (
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RetryAfterIsDeltaSeconds(t *testing.T) {
	l := newTestLimiter(t)
	rule := Rule{Limit: 1, Window: 30 * time.Second}

	app := fiber.New()
	app.Get("/x", l.Middleware(ScopeIP, "test", rule, IPScope(false)), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req1 := httptest.NewRequest("GET", "/x", nil)
	resp1, err := app.Test(req1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp1.StatusCode)

	req2 := httptest.NewRequest("GET", "/x", nil)
	resp2, err := app.Test(req2)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp2.StatusCode)

	retryAfter, err := strconv.Atoi(resp2.Header.Get("Retry-After"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, retryAfter, 0)
	require.LessOrEqual(t, retryAfter, 30)
}

func TestMiddleware_SetsRateLimitHeaders(t *testing.T) {
	l := newTestLimiter(t)
	rule := Rule{Limit: 5, Window: time.Minute}

	app := fiber.New()
	app.Get("/x", l.Middleware(ScopeIP, "test", rule, IPScope(false)), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/x", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "5", resp.Header.Get("X-RateLimit-Limit"))
	require.Equal(t, "4", resp.Header.Get("X-RateLimit-Remaining"))
}
