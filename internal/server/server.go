// Package server contains the HTTP routing and request handlers for the
// ThreadKit API node: auth, comments, users, moderation, admin, and health.
package server

import (
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/auth"
	"github.com/usethreadkit/threadkit/internal/config"
	"github.com/usethreadkit/threadkit/internal/index"
	"github.com/usethreadkit/threadkit/internal/middleware"
	"github.com/usethreadkit/threadkit/internal/models"
	"github.com/usethreadkit/threadkit/internal/ratelimit"
	"github.com/usethreadkit/threadkit/internal/service"
)

// Server wires every core subsystem into the HTTP surface. It carries no
// per-request state — one Server is shared by every goroutine handling a
// request.
type Server struct {
	config *config.Config
	rdb    *redis.Client

	sites       *auth.Sites
	tokens      *auth.Service
	roles       *auth.Roles
	credentials *auth.Credentials
	otp         *auth.OTP
	web3        *auth.Web3
	oauth       *auth.OAuth
	turnstile   auth.Verifier

	comments   *service.CommentService
	moderation *service.ModerationService
	users      *service.UserService
	keeper     *index.Keeper

	limiter *ratelimit.Limiter

	promMiddleware *fiberprometheus.FiberPrometheus
}

// Deps bundles every collaborator NewServer wires into route handlers — an
// explicit, test-friendly constructor shape rather than a long positional
// argument list.
type Deps struct {
	Config      *config.Config
	RDB         *redis.Client
	Sites       *auth.Sites
	Tokens      *auth.Service
	Roles       *auth.Roles
	Credentials *auth.Credentials
	OTP         *auth.OTP
	Web3        *auth.Web3
	OAuth       *auth.OAuth
	Turnstile   auth.Verifier
	Comments    *service.CommentService
	Moderation  *service.ModerationService
	Users       *service.UserService
	Keeper      *index.Keeper
	Limiter     *ratelimit.Limiter
}

func NewServer(d Deps) *Server {
	return &Server{
		config:      d.Config,
		rdb:         d.RDB,
		sites:       d.Sites,
		tokens:      d.Tokens,
		roles:       d.Roles,
		credentials: d.Credentials,
		otp:         d.OTP,
		web3:        d.Web3,
		oauth:       d.OAuth,
		turnstile:   d.Turnstile,
		comments:    d.Comments,
		moderation:  d.Moderation,
		users:       d.Users,
		keeper:      d.Keeper,
		limiter:     d.Limiter,
	}
}

// SetupMiddleware configures the global Fiber middleware chain: recovery,
// request id, context propagation, metrics, security headers, structured
// logging, then CORS last so it still decorates error responses from
// anything above it.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	s.promMiddleware = fiberprometheus.New("threadkit")
	s.promMiddleware.RegisterAt(app, "/metrics")
	app.Use(s.promMiddleware.Middleware)

	app.Use(helmet.New(helmet.Config{
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; base-uri 'none'",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		PermissionPolicy:      "geolocation=(), camera=(), microphone=()",
	}))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-store")
		return c.Next()
	})

	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, projectid, X-Turnstile-Token, If-None-Match",
		ExposeHeaders:    "ETag",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes configures the full /v1 API surface plus health/metrics/
// openapi endpoints, grouped and ordered so specific routes come before
// generic ones, public routes before the AuthRequired/SiteRequired
// group.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.Health)
	app.Get("/openapi.json", s.OpenAPI)
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "ThreadKit Metrics"}))

	if s.oauth != nil {
		app.Get("/auth/:provider", s.OAuthRedirect)
		app.Get("/auth/:provider/callback", s.OAuthCallback)
	}

	v1 := app.Group("/v1", middleware.SiteRequired(s.sites, s.config.LocalhostOriginAllow))

	authGroup := v1.Group("/auth")
	authGroup.Get("/methods", s.AuthMethods)
	authGroup.Post("/send-otp", s.ipLimit("send_otp", 3, 10*time.Minute), s.SendOTP)
	authGroup.Post("/verify-otp", s.ipLimit("verify_otp", 5, 10*time.Minute), s.VerifyOTP)
	authGroup.Post("/register", s.ipLimit("register", 3, 10*time.Minute), s.Register)
	authGroup.Post("/login", s.ipLimit("login", 10, 5*time.Minute), s.Login)
	authGroup.Post("/refresh", s.Refresh)
	authGroup.Post("/logout", middleware.AuthRequired(s.tokens, s.roles), s.Logout)
	authGroup.Get("/ethereum/nonce", s.EthereumNonce)
	authGroup.Post("/ethereum/verify", s.EthereumVerify)
	authGroup.Get("/solana/nonce", s.SolanaNonce)
	authGroup.Post("/solana/verify", s.SolanaVerify)

	comments := v1.Group("/comments", middleware.OptionalAuth(s.tokens, s.roles))
	comments.Get("", s.ListComments)
	comments.Post("", s.ipLimit("create_comment", 20, time.Minute), s.CreateComment)
	comments.Put("/:id", s.EditComment)
	comments.Delete("/:id", s.DeleteComment)
	comments.Post("/:id/vote", s.VoteComment)
	comments.Post("/:id/report", s.ipLimit("report", 5, 10*time.Minute), s.ReportComment)

	users := v1.Group("/users", middleware.AuthRequired(s.tokens, s.roles))
	users.Get("/me", s.GetMe)
	users.Put("/me", s.UpdateMe)
	users.Delete("/me", s.DeleteMe)
	users.Get("/me/notifications", s.Notifications)
	users.Post("/:id/block", s.BlockUser)
	users.Delete("/:id/block", s.UnblockUser)
	users.Get("/:id", s.GetUser)

	mod := v1.Group("/moderation", middleware.AuthRequired(s.tokens, s.roles), middleware.RequireRole(models.RoleModerator))
	mod.Get("/queue", s.ModQueue)
	mod.Get("/reports", s.ModReports)
	mod.Post("/approve", s.ModApprove)
	mod.Post("/reject", s.ModReject)
	mod.Post("/ban", s.ModBan)
	mod.Post("/unban", s.ModUnban)
	mod.Post("/shadowban", s.ModShadowban)
	mod.Post("/unshadowban", s.ModUnshadowban)

	admin := v1.Group("/admin", middleware.AuthRequired(s.tokens, s.roles), middleware.RequireRole(models.RoleAdmin))
	admin.Get("/admins", s.ListAdmins)
	admin.Post("/admins/:id", s.GrantAdmin)
	admin.Delete("/admins/:id", s.RevokeAdmin)
	admin.Get("/moderators", s.ListModerators)
	admin.Post("/moderators/:id", s.GrantModerator)
	admin.Delete("/moderators/:id", s.RevokeModerator)
	admin.Put("/site/posting", s.SetPostingDisabled)
	admin.Put("/pages/posting", s.SetPagePosting)
}

// ipLimit builds an IP-scoped rate-limit middleware for one named bucket,
// applied per-route at each call site below.
func (s *Server) ipLimit(bucket string, limit int, window time.Duration) fiber.Handler {
	return s.limiter.Middleware(ratelimit.ScopeIP, bucket, ratelimit.Rule{Limit: limit, Window: window},
		ratelimit.IPScope(s.config.EnableProxyHeader))
}
