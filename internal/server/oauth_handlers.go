package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/models"
)

// OAuthRedirect handles the browser-facing GET /auth/{provider} route. It
// lives outside the /v1 group — there's no Authorization header or
// projectid header on a top-level browser navigation — so the site is
// resolved from a project_id query parameter instead, the same convention
// the WebSocket upgrade route uses.
func (s *Server) OAuthRedirect(c *fiber.Ctx) error {
	provider, ok := s.oauth.Provider(c.Params("provider"))
	if !ok {
		return apperr.Respond(c, apperr.NotFound("oauth provider", c.Params("provider")))
	}
	site, _, err := s.sites.Resolve(c.Context(), c.Query("project_id"))
	if err != nil {
		return apperr.Respond(c, err)
	}

	state, err := s.oauth.IssueState(c.Context(), site.ID, c.Query("return_to"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Redirect(provider.AuthURL(state), fiber.StatusFound)
}

// OAuthCallback handles GET /auth/{provider}/callback: exchanges the
// authorization code, resolves or provisions the matching user, and
// redirects back to the caller-supplied return_to with the minted session
// token appended.
func (s *Server) OAuthCallback(c *fiber.Ctx) error {
	provider, ok := s.oauth.Provider(c.Params("provider"))
	if !ok {
		return apperr.Respond(c, apperr.NotFound("oauth provider", c.Params("provider")))
	}

	siteID, returnTo, err := s.oauth.ConsumeState(c.Context(), c.Query("state"))
	if err != nil {
		return apperr.Respond(c, err)
	}

	code := c.Query("code")
	if code == "" {
		return apperr.Respond(c, apperr.BadRequest("code is required"))
	}
	subject, name, email, err := provider.Exchange(c.Context(), code)
	if err != nil {
		return apperr.Respond(c, err)
	}

	providerName := c.Params("provider")
	userID, found, err := s.keeper.LookupByProvider(c.Context(), providerName, subject)
	if err != nil {
		return apperr.Respond(c, err)
	}
	if !found {
		user := &models.User{ID: models.NewUserID(), Name: name, Email: email, EmailVerified: email != ""}
		if err := s.keeper.CreateUser(c.Context(), user); err != nil {
			return apperr.Respond(c, err)
		}
		if err := s.keeper.BindProvider(c.Context(), providerName, subject, user.ID); err != nil {
			return apperr.Respond(c, err)
		}
		userID = user.ID
	}

	ip := requestIP(c, s.config.EnableProxyHeader)
	token, err := s.tokens.Mint(c.Context(), userID, siteID, ip, c.Get("User-Agent"))
	if err != nil {
		return apperr.Respond(c, err)
	}

	if returnTo == "" {
		return c.JSON(fiber.Map{"token": token})
	}
	return c.Redirect(returnTo+"?token="+token, fiber.StatusFound)
}
