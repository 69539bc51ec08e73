package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/auth"
	"github.com/usethreadkit/threadkit/internal/middleware"
	"github.com/usethreadkit/threadkit/internal/models"
	"github.com/usethreadkit/threadkit/internal/service"
)

// ListComments handles GET /v1/comments?page_url=…&sort=…&offset=…&limit=…
func (s *Server) ListComments(c *fiber.Ctx) error {
	site := middleware.Site(c)
	pageID, err := pageIDFor(site.ID, c.Query("page_url"))
	if err != nil {
		return apperr.Respond(c, err)
	}

	sort := models.SortOrder(c.Query("sort", string(models.SortNew)))
	offset, limit := pagination(c, 50)

	viewer, err := s.actor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}

	result, err := s.comments.List(c.Context(), site.ID, service.ListParams{
		PageID: pageID, Sort: sort, Offset: offset, Limit: limit,
	}, viewer)
	if err != nil {
		return apperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{"comments": result.Comments, "total": result.Total, "views": result.Views})
}

// CreateComment handles POST /v1/comments.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	site := middleware.Site(c)

	var req struct {
		commentPathBody
		Text          string `json:"text"`
		HTML          string `json:"html"`
		TurnstileToken string `json:"-"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	req.TurnstileToken = c.Get("X-Turnstile-Token")

	pageID, err := pageIDFor(site.ID, req.PageURL)
	if err != nil {
		return apperr.Respond(c, err)
	}
	parentPath, err := req.path()
	if err != nil {
		return apperr.Respond(c, err)
	}

	actor, err := s.actor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}

	if s.turnstile != nil {
		rc, err := s.turnstileContext(c, actor, req.TurnstileToken)
		if err != nil {
			return apperr.Respond(c, err)
		}
		if err := auth.EnforceTurnstile(c.Context(), s.turnstile, site, rc); err != nil {
			return apperr.Respond(c, err)
		}
	}

	comment, err := s.comments.Create(c.Context(), site.ID, site, pageID, parentPath, req.Text, req.HTML, actor)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// EditComment handles PUT /v1/comments/{id}.
func (s *Server) EditComment(c *fiber.Ctx) error {
	var req struct {
		commentPathBody
		Text string `json:"text"`
		HTML string `json:"html"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	path, err := req.path()
	if err != nil {
		return apperr.Respond(c, err)
	}
	site := middleware.Site(c)
	pageID, err := pageIDFor(site.ID, req.PageURL)
	if err != nil {
		return apperr.Respond(c, err)
	}
	actor, err := s.actor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	if !actor.HasUser {
		return apperr.Respond(c, apperr.Unauthorized("editing requires an account"))
	}

	comment, err := s.comments.Edit(c.Context(), pageID, path, req.Text, req.HTML, actor)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /v1/comments/{id}.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	var req commentPathBody
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	path, err := req.path()
	if err != nil {
		return apperr.Respond(c, err)
	}
	site := middleware.Site(c)
	pageID, err := pageIDFor(site.ID, req.PageURL)
	if err != nil {
		return apperr.Respond(c, err)
	}
	actor, err := s.actor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	if !actor.HasUser {
		return apperr.Respond(c, apperr.Unauthorized("deleting requires an account"))
	}

	if err := s.comments.Delete(c.Context(), pageID, path, actor); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// VoteComment handles POST /v1/comments/{id}/vote.
func (s *Server) VoteComment(c *fiber.Ctx) error {
	var req struct {
		commentPathBody
		Direction string `json:"direction"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	path, err := req.path()
	if err != nil {
		return apperr.Respond(c, err)
	}
	site := middleware.Site(c)
	pageID, err := pageIDFor(site.ID, req.PageURL)
	if err != nil {
		return apperr.Respond(c, err)
	}
	actor, err := s.actor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}

	result, err := s.comments.Vote(c.Context(), site.ID, pageID, path, models.VoteDirection(req.Direction), actor)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"direction": result.Final,
		"upvotes":   result.Upvotes,
		"downvotes": result.Downvotes,
	})
}

// ReportComment handles POST /v1/comments/{id}/report.
func (s *Server) ReportComment(c *fiber.Ctx) error {
	var req struct {
		commentPathBody
		Reason  string `json:"reason"`
		Details string `json:"details"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	path, err := req.path()
	if err != nil {
		return apperr.Respond(c, err)
	}
	site := middleware.Site(c)
	pageID, err := pageIDFor(site.ID, req.PageURL)
	if err != nil {
		return apperr.Respond(c, err)
	}
	actor, err := s.actor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}

	if err := s.comments.Report(c.Context(), site.ID, pageID, path, req.Reason, req.Details, actor); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
