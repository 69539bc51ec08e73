// Package middleware provides the Fiber request pipeline: authentication,
// site resolution, and structured request logging.
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/auth"
	"github.com/usethreadkit/threadkit/internal/models"
)

// localSite/localPrincipal/localRole/localIsSecret are the c.Locals keys
// set by SiteRequired/AuthRequired/OptionalAuth.
const (
	localSite      = "site"
	localPrincipal = "principal"
	localRole      = "role"
	localIsSecret  = "apiKeyIsSecret"
)

// SiteRequired resolves the `projectid` header to a site and validates the
// request origin for public keys. Secret keys skip origin validation.
func SiteRequired(sites *auth.Sites, localhostOriginAllow bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("projectid")
		site, isSecret, err := sites.Resolve(c.Context(), key)
		if err != nil {
			return apperr.Respond(c, err)
		}
		if !isSecret {
			if err := auth.ValidateOrigin(site, c.Get("Origin"), localhostOriginAllow); err != nil {
				return apperr.Respond(c, err)
			}
		}
		c.Locals(localSite, site)
		c.Locals(localIsSecret, isSecret)
		return c.Next()
	}
}

// AuthRequired parses the Authorization: Bearer token and rejects the
// request if missing, invalid, or its session has been revoked.
func AuthRequired(svc *auth.Service, roles *auth.Roles) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := verifyBearer(c, svc)
		if err != nil {
			return apperr.Respond(c, err)
		}
		role, err := roles.Resolve(c.Context(), principal.SiteID, principal.UserID)
		if err != nil {
			return apperr.Respond(c, err)
		}
		if role == models.RoleBlocked {
			return apperr.Respond(c, apperr.Forbidden("account is blocked"))
		}
		c.Locals(localPrincipal, principal)
		c.Locals(localRole, role)
		return c.Next()
	}
}

// OptionalAuth behaves like AuthRequired when a bearer token is present and
// valid, but falls through to an anonymous request (no principal in
// locals) rather than rejecting when it's absent or invalid — used by
// comment-read routes that serve both logged-in and anonymous viewers.
func OptionalAuth(svc *auth.Service, roles *auth.Roles) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Next()
		}
		principal, err := verifyBearer(c, svc)
		if err != nil {
			return c.Next()
		}
		role, err := roles.Resolve(c.Context(), principal.SiteID, principal.UserID)
		if err != nil {
			return c.Next()
		}
		c.Locals(localPrincipal, principal)
		c.Locals(localRole, role)
		return c.Next()
	}
}

func verifyBearer(c *fiber.Ctx, svc *auth.Service) (auth.Principal, error) {
	header := c.Get("Authorization")
	if header == "" {
		return auth.Principal{}, apperr.Unauthorized("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return auth.Principal{}, apperr.Unauthorized("invalid authorization header format")
	}
	return svc.Verify(c.Context(), parts[1])
}

// RequireRole enforces a minimum role on top of AuthRequired.
func RequireRole(minimum models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(localRole).(models.Role)
		if err := auth.RequireAtLeast(role, minimum); err != nil {
			return apperr.Respond(c, err)
		}
		return c.Next()
	}
}

// Site reads the resolved site out of locals. Panics if SiteRequired did
// not run first — a programmer error, not a request error.
func Site(c *fiber.Ctx) *models.Site {
	return c.Locals(localSite).(*models.Site)
}

// PrincipalFromLocals reads the verified principal, if AuthRequired or a
// successful OptionalAuth populated one.
func PrincipalFromLocals(c *fiber.Ctx) (auth.Principal, bool) {
	p, ok := c.Locals(localPrincipal).(auth.Principal)
	return p, ok
}

// RoleFromLocals reads the resolved role, defaulting to RoleUser for an
// anonymous request that only went through OptionalAuth.
func RoleFromLocals(c *fiber.Ctx) models.Role {
	if r, ok := c.Locals(localRole).(models.Role); ok {
		return r
	}
	return models.RoleUser
}

// UserIDOrAnonymous returns the authenticated user id, or the anonymous
// sentinel when the request carries no principal.
func UserIDOrAnonymous(c *fiber.Ctx) uuid.UUID {
	if p, ok := PrincipalFromLocals(c); ok {
		return p.UserID
	}
	return models.AnonymousUserSentinel
}
