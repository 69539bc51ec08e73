package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/middleware"
)

// ModQueue handles GET /v1/moderation/queue.
func (s *Server) ModQueue(c *fiber.Ctx) error {
	site := middleware.Site(c)
	offset, limit := pagination(c, 50)
	entries, err := s.moderation.Queue(c.Context(), site.ID, offset, limit)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"queue": entries})
}

// ModReports handles GET /v1/moderation/reports.
func (s *Server) ModReports(c *fiber.Ctx) error {
	site := middleware.Site(c)
	offset, limit := pagination(c, 50)
	reports, err := s.rdb.ZRevRange(c.Context(), cache.SiteReportsKey(site.ID),
		int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return apperr.Respond(c, apperr.Internal(err))
	}
	return c.JSON(fiber.Map{"reports": reports})
}

// ModApprove handles POST /v1/moderation/approve.
func (s *Server) ModApprove(c *fiber.Ctx) error {
	var req commentPathBody
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	site := middleware.Site(c)
	pageID, err := pageIDFor(site.ID, req.PageURL)
	if err != nil {
		return apperr.Respond(c, err)
	}
	path, err := req.path()
	if err != nil {
		return apperr.Respond(c, err)
	}
	moderator, err := s.actor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	if err := s.moderation.Approve(c.Context(), site.ID, pageID, path, moderator); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ModReject handles POST /v1/moderation/reject.
func (s *Server) ModReject(c *fiber.Ctx) error {
	var req commentPathBody
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	site := middleware.Site(c)
	pageID, err := pageIDFor(site.ID, req.PageURL)
	if err != nil {
		return apperr.Respond(c, err)
	}
	path, err := req.path()
	if err != nil {
		return apperr.Respond(c, err)
	}
	moderator, err := s.actor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	if err := s.moderation.Reject(c.Context(), site.ID, pageID, path, moderator); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type userTargetRequest struct {
	UserID string `json:"user_id"`
}

func (r userTargetRequest) parse() (uuid.UUID, error) {
	id, err := uuid.Parse(r.UserID)
	if err != nil {
		return uuid.Nil, apperr.BadRequest("user_id must be a uuid")
	}
	return id, nil
}

func (s *Server) toggleUserFlag(c *fiber.Ctx, action func(c *fiber.Ctx, site, target uuid.UUID) error) error {
	var req userTargetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	targetID, err := req.parse()
	if err != nil {
		return apperr.Respond(c, err)
	}
	site := middleware.Site(c)
	if err := action(c, site.ID, targetID); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ModBan handles POST /v1/moderation/ban.
func (s *Server) ModBan(c *fiber.Ctx) error {
	return s.toggleUserFlag(c, func(c *fiber.Ctx, site, target uuid.UUID) error {
		return s.moderation.Ban(c.Context(), site, target)
	})
}

// ModUnban handles POST /v1/moderation/unban.
func (s *Server) ModUnban(c *fiber.Ctx) error {
	return s.toggleUserFlag(c, func(c *fiber.Ctx, site, target uuid.UUID) error {
		return s.moderation.Unban(c.Context(), site, target)
	})
}

// ModShadowban handles POST /v1/moderation/shadowban.
func (s *Server) ModShadowban(c *fiber.Ctx) error {
	return s.toggleUserFlag(c, func(c *fiber.Ctx, site, target uuid.UUID) error {
		return s.moderation.Shadowban(c.Context(), site, target)
	})
}

// ModUnshadowban handles POST /v1/moderation/unshadowban.
func (s *Server) ModUnshadowban(c *fiber.Ctx) error {
	return s.toggleUserFlag(c, func(c *fiber.Ctx, site, target uuid.UUID) error {
		return s.moderation.Unshadowban(c.Context(), site, target)
	})
}
