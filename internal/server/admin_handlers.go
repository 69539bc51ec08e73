package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/middleware"
	"github.com/usethreadkit/threadkit/internal/models"
)

// ListAdmins handles GET /v1/admin/admins.
func (s *Server) ListAdmins(c *fiber.Ctx) error {
	site := middleware.Site(c)
	members, err := s.rdb.SMembers(c.Context(), cache.SiteAdminsKey(site.ID)).Result()
	if err != nil {
		return apperr.Respond(c, apperr.Internal(err))
	}
	return c.JSON(fiber.Map{"admins": members})
}

// GrantAdmin handles POST /v1/admin/admins/{id}.
func (s *Server) GrantAdmin(c *fiber.Ctx) error { return s.setRole(c, models.RoleAdmin, true) }

// RevokeAdmin handles DELETE /v1/admin/admins/{id}.
func (s *Server) RevokeAdmin(c *fiber.Ctx) error { return s.setRole(c, models.RoleAdmin, false) }

// ListModerators handles GET /v1/admin/moderators.
func (s *Server) ListModerators(c *fiber.Ctx) error {
	site := middleware.Site(c)
	members, err := s.rdb.SMembers(c.Context(), cache.SiteModeratorsKey(site.ID)).Result()
	if err != nil {
		return apperr.Respond(c, apperr.Internal(err))
	}
	return c.JSON(fiber.Map{"moderators": members})
}

// GrantModerator handles POST /v1/admin/moderators/{id}.
func (s *Server) GrantModerator(c *fiber.Ctx) error { return s.setRole(c, models.RoleModerator, true) }

// RevokeModerator handles DELETE /v1/admin/moderators/{id}.
func (s *Server) RevokeModerator(c *fiber.Ctx) error { return s.setRole(c, models.RoleModerator, false) }

func (s *Server) setRole(c *fiber.Ctx, role models.Role, grant bool) error {
	targetID, err := parseUUIDParam(c, "id")
	if err != nil {
		return apperr.Respond(c, err)
	}
	site := middleware.Site(c)
	if grant {
		err = s.moderation.GrantRole(c.Context(), site.ID, targetID, role)
	} else {
		err = s.moderation.RevokeRole(c.Context(), site.ID, targetID, role)
	}
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetPostingDisabled handles PUT /v1/admin/site/posting: toggles the
// site-wide posting switch.
func (s *Server) SetPostingDisabled(c *fiber.Ctx) error {
	var req struct {
		Disabled bool `json:"disabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}

	site := middleware.Site(c)
	site.Settings.PostingDisabled = req.Disabled
	raw, err := json.Marshal(site)
	if err != nil {
		return apperr.Respond(c, apperr.Internal(err))
	}
	if err := s.rdb.Set(c.Context(), cache.SiteConfigKey(site.ID), raw, 0).Err(); err != nil {
		return apperr.Respond(c, apperr.Internal(err))
	}
	return c.JSON(site)
}

// SetPagePosting handles PUT /v1/admin/pages/posting: locks or unlocks
// posting on a single page, independent of the site-wide switch
// SetPostingDisabled covers.
func (s *Server) SetPagePosting(c *fiber.Ctx) error {
	var req struct {
		PageURL string `json:"page_url"`
		Locked  bool   `json:"locked"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	site := middleware.Site(c)
	pageID, err := pageIDFor(site.ID, req.PageURL)
	if err != nil {
		return apperr.Respond(c, err)
	}
	if err := s.keeper.SetPageLocked(c.Context(), site.ID, pageID, req.Locked); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
