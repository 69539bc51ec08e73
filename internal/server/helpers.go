package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/auth"
	"github.com/usethreadkit/threadkit/internal/middleware"
	"github.com/usethreadkit/threadkit/internal/models"
	"github.com/usethreadkit/threadkit/internal/service"
)

const maxPaginationLimit = 100

// pagination extracts limit/offset query parameters with a given default.
func pagination(c *fiber.Ctx, defaultLimit int) (offset, limit int) {
	limit = c.QueryInt("limit", defaultLimit)
	if limit <= 0 || limit > maxPaginationLimit {
		limit = defaultLimit
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// actor resolves the request's Actor from whatever OptionalAuth/AuthRequired
// populated in locals, falling back to an anonymous poster.
func (s *Server) actor(c *fiber.Ctx) (service.Actor, error) {
	site := middleware.Site(c)
	principal, ok := middleware.PrincipalFromLocals(c)
	if !ok {
		return service.Actor{Anonymous: true}, nil
	}

	user, err := s.users.Get(c.Context(), principal.UserID)
	if err != nil {
		return service.Actor{}, err
	}
	role, err := s.roles.Resolve(c.Context(), site.ID, principal.UserID)
	if err != nil {
		return service.Actor{}, err
	}
	return service.Actor{
		UserID:  principal.UserID,
		Name:    user.Name,
		Avatar:  user.AvatarURL,
		Karma:   user.Karma,
		Role:    role,
		HasUser: true,
	}, nil
}

// commentPathBody is the shape every mutating comment route shares: the
// originating page and the ordered ancestor-id path to the target node.
type commentPathBody struct {
	PageURL string   `json:"page_url"`
	Path    []string `json:"path"`
}

func (b commentPathBody) path() (models.Path, error) {
	path := make(models.Path, 0, len(b.Path))
	for _, raw := range b.Path {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.BadRequest("path must be a list of comment ids")
		}
		path = append(path, id)
	}
	return path, nil
}

func pageIDFor(siteID uuid.UUID, pageURL string) (uuid.UUID, error) {
	if pageURL == "" {
		return uuid.Nil, apperr.BadRequest("page_url is required")
	}
	return models.PageID(siteID, pageURL), nil
}

func parseUUIDParam(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid " + param)
	}
	return id, nil
}

// turnstileContext loads the verification flags EnforceTurnstile needs.
// Actor itself doesn't carry email/phone-verified state, so an anonymous
// actor is trivially "unverified" and an authenticated one needs one more
// user lookup.
func (s *Server) turnstileContext(c *fiber.Ctx, a service.Actor, token string) (auth.RequestContext, error) {
	rc := auth.RequestContext{HasUser: a.HasUser, Token: token}
	if !a.HasUser {
		return rc, nil
	}
	user, err := s.users.Get(c.Context(), a.UserID)
	if err != nil {
		return auth.RequestContext{}, err
	}
	rc.EmailVerified = user.EmailVerified
	rc.PhoneVerified = user.PhoneVerified
	return rc, nil
}

func requestIP(c *fiber.Ctx, trustProxy bool) string {
	if trustProxy {
		if fwd := c.Get("X-Forwarded-For"); fwd != "" {
			return fwd
		}
	}
	return c.IP()
}
