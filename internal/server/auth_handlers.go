package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/middleware"
	"github.com/usethreadkit/threadkit/internal/models"
)

// AuthMethods handles GET /v1/auth/methods: reports which credential flows
// the site has enabled, so a frontend can render the right sign-in form.
func (s *Server) AuthMethods(c *fiber.Ctx) error {
	site := middleware.Site(c)
	return c.JSON(fiber.Map{"methods": site.Settings.EnabledAuthMethods})
}

// SendOTP handles POST /v1/auth/send-otp. destination is an email or phone
// number; the OTP collaborator decides how to deliver the code.
func (s *Server) SendOTP(c *fiber.Ctx) error {
	var req struct {
		Destination string `json:"destination"`
	}
	if err := c.BodyParser(&req); err != nil || req.Destination == "" {
		return apperr.Respond(c, apperr.BadRequest("destination is required"))
	}
	if err := s.otp.Send(c.Context(), req.Destination); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// VerifyOTP handles POST /v1/auth/verify-otp: verifies the code and either
// resolves the existing account bound to destination or provisions a new
// one, then mints a session.
func (s *Server) VerifyOTP(c *fiber.Ctx) error {
	var req struct {
		Destination string `json:"destination"`
		Code        string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	if err := s.otp.Verify(c.Context(), req.Destination, req.Code); err != nil {
		return apperr.Respond(c, err)
	}

	site := middleware.Site(c)
	isEmail := strings.Contains(req.Destination, "@")

	var userID uuid.UUID
	var found bool
	var err error
	if isEmail {
		userID, found, err = s.keeper.LookupByEmail(c.Context(), req.Destination)
	} else {
		userID, found, err = s.keeper.LookupByPhone(c.Context(), req.Destination)
	}
	if err != nil {
		return apperr.Respond(c, err)
	}

	if !found {
		user := &models.User{ID: models.NewUserID(), Name: req.Destination}
		if isEmail {
			user.Email = req.Destination
			user.EmailVerified = true
		} else {
			user.Phone = req.Destination
			user.PhoneVerified = true
		}
		if err := s.keeper.CreateUser(c.Context(), user); err != nil {
			return apperr.Respond(c, err)
		}
		userID = user.ID
	}

	return s.issueSession(c, site.ID, userID)
}

// Register handles POST /v1/auth/register: local email+password signup.
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return apperr.Respond(c, apperr.BadRequest("name, email, and password are required"))
	}

	user, err := s.credentials.Register(c.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return apperr.Respond(c, err)
	}

	site := middleware.Site(c)
	return s.issueSession(c, site.ID, user.ID)
}

// Login handles POST /v1/auth/login.
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}

	user, err := s.credentials.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return apperr.Respond(c, err)
	}

	site := middleware.Site(c)
	return s.issueSession(c, site.ID, user.ID)
}

// Refresh handles POST /v1/auth/refresh: re-verifies the bearer token and
// mints a fresh one, rolling the session forward without requiring the
// credential again.
func (s *Server) Refresh(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return apperr.Respond(c, apperr.Unauthorized("authorization header required"))
	}
	principal, err := s.tokens.Verify(c.Context(), parts[1])
	if err != nil {
		return apperr.Respond(c, err)
	}
	return s.issueSession(c, principal.SiteID, principal.UserID)
}

// Logout handles POST /v1/auth/logout: revokes the current session so its
// bearer token stops working immediately.
func (s *Server) Logout(c *fiber.Ctx) error {
	principal, _ := middleware.PrincipalFromLocals(c)
	if err := s.tokens.Revoke(c.Context(), principal.SessionID); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// issueSession mints a session token for userID under siteID and returns it
// alongside the caller's profile.
func (s *Server) issueSession(c *fiber.Ctx, siteID, userID uuid.UUID) error {
	ip := requestIP(c, s.config.EnableProxyHeader)
	token, err := s.tokens.Mint(c.Context(), userID, siteID, ip, c.Get("User-Agent"))
	if err != nil {
		return apperr.Respond(c, err)
	}

	user, err := s.users.Get(c.Context(), userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"token": token, "user": user})
}
