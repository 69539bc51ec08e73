package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/middleware"
)

// GetMe handles GET /v1/users/me.
func (s *Server) GetMe(c *fiber.Ctx) error {
	principal, _ := middleware.PrincipalFromLocals(c)
	user, err := s.users.Get(c.Context(), principal.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(user)
}

// UpdateMe handles PUT /v1/users/me.
func (s *Server) UpdateMe(c *fiber.Ctx) error {
	principal, _ := middleware.PrincipalFromLocals(c)

	var req struct {
		Name        string   `json:"name"`
		AvatarURL   string   `json:"avatar_url"`
		SocialLinks []string `json:"social_links"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}

	if err := s.users.UpdateProfile(c.Context(), principal.UserID, req.Name, req.AvatarURL, req.SocialLinks); err != nil {
		return apperr.Respond(c, err)
	}
	user, err := s.users.Get(c.Context(), principal.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(user)
}

// DeleteMe handles DELETE /v1/users/me: GDPR account erasure.
func (s *Server) DeleteMe(c *fiber.Ctx) error {
	principal, _ := middleware.PrincipalFromLocals(c)
	result, err := s.users.DeleteAccount(c.Context(), principal.SiteID, principal.UserID, principal.SessionID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"comments_deleted": result.CommentsDeleted,
		"votes_deleted":    result.VotesDeleted,
	})
}

// Notifications handles GET /v1/users/me/notifications. Delivery of actual
// notifications is an external collaborator (email/push); this endpoint
// only reports that the feature has no in-core backing store yet.
func (s *Server) Notifications(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"notifications": []any{}})
}

// BlockUser handles POST /v1/users/{id}/block.
func (s *Server) BlockUser(c *fiber.Ctx) error {
	principal, _ := middleware.PrincipalFromLocals(c)
	targetID, err := parseUUIDParam(c, "id")
	if err != nil {
		return apperr.Respond(c, err)
	}
	if err := s.users.Block(c.Context(), principal.UserID, targetID); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UnblockUser handles DELETE /v1/users/{id}/block.
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	principal, _ := middleware.PrincipalFromLocals(c)
	targetID, err := parseUUIDParam(c, "id")
	if err != nil {
		return apperr.Respond(c, err)
	}
	if err := s.users.Unblock(c.Context(), principal.UserID, targetID); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetUser handles GET /v1/users/{id}: public profile lookup.
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return apperr.Respond(c, err)
	}
	user, err := s.users.Get(c.Context(), id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(user)
}
