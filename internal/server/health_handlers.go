package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Health handles GET /health: pings Redis, the only datastore this service
// depends on, and reports 503 if it's unreachable.
func (s *Server) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	redisStatus := "healthy"
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overall := "healthy"
	if redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}

// OpenAPI handles GET /openapi.json: a small, hand-assembled description of
// the public surface, enough for a frontend generator to build a typed
// client against. Full schema generation is an external tool's job.
func (s *Server) OpenAPI(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"openapi": "3.0.3",
		"info": fiber.Map{
			"title":   "ThreadKit API",
			"version": "1.0.0",
		},
		"paths": fiber.Map{
			"/v1/auth/methods":         fiber.Map{"get": fiber.Map{"summary": "enabled auth methods"}},
			"/v1/auth/send-otp":        fiber.Map{"post": fiber.Map{"summary": "send one-time code"}},
			"/v1/auth/verify-otp":      fiber.Map{"post": fiber.Map{"summary": "verify one-time code"}},
			"/v1/auth/register":        fiber.Map{"post": fiber.Map{"summary": "local credential registration"}},
			"/v1/auth/login":           fiber.Map{"post": fiber.Map{"summary": "local credential login"}},
			"/v1/auth/refresh":         fiber.Map{"post": fiber.Map{"summary": "refresh a session token"}},
			"/v1/auth/logout":          fiber.Map{"post": fiber.Map{"summary": "revoke the current session"}},
			"/v1/auth/ethereum/nonce":  fiber.Map{"get": fiber.Map{"summary": "issue an Ethereum sign-in nonce"}},
			"/v1/auth/ethereum/verify": fiber.Map{"post": fiber.Map{"summary": "verify an Ethereum signature"}},
			"/v1/auth/solana/nonce":    fiber.Map{"get": fiber.Map{"summary": "issue a Solana sign-in nonce"}},
			"/v1/auth/solana/verify":   fiber.Map{"post": fiber.Map{"summary": "verify a Solana signature"}},
			"/v1/comments":             fiber.Map{"get": fiber.Map{"summary": "list a page's comment tree"}, "post": fiber.Map{"summary": "create a comment"}},
			"/v1/comments/{id}":        fiber.Map{"put": fiber.Map{"summary": "edit a comment"}, "delete": fiber.Map{"summary": "delete a comment"}},
			"/v1/comments/{id}/vote":   fiber.Map{"post": fiber.Map{"summary": "cast or change a vote"}},
			"/v1/comments/{id}/report": fiber.Map{"post": fiber.Map{"summary": "report a comment"}},
			"/v1/users/me":             fiber.Map{"get": fiber.Map{"summary": "current profile"}, "put": fiber.Map{"summary": "update current profile"}, "delete": fiber.Map{"summary": "erase account"}},
			"/v1/users/{id}":           fiber.Map{"get": fiber.Map{"summary": "public profile"}},
			"/v1/users/{id}/block":     fiber.Map{"post": fiber.Map{"summary": "block a user"}, "delete": fiber.Map{"summary": "unblock a user"}},
			"/v1/moderation/queue":     fiber.Map{"get": fiber.Map{"summary": "pending moderation queue"}},
			"/v1/moderation/reports":   fiber.Map{"get": fiber.Map{"summary": "open reports"}},
			"/v1/admin/admins":        fiber.Map{"get": fiber.Map{"summary": "list admins"}},
		},
	})
}
