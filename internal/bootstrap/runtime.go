// Package bootstrap wires the core subsystems (Redis, auth, index, page
// tree, services) that both the API node and the fanout node depend on, so
// neither cmd duplicates the dependency graph.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/auth"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/config"
	"github.com/usethreadkit/threadkit/internal/events"
	"github.com/usethreadkit/threadkit/internal/index"
	"github.com/usethreadkit/threadkit/internal/pagetree"
	"github.com/usethreadkit/threadkit/internal/ratelimit"
	"github.com/usethreadkit/threadkit/internal/service"
)

// Core bundles the collaborators shared by any process that touches the
// page tree: Redis, the index keeper, and the mutation engine wired
// together through the Hooks/EventPublisher seam.
type Core struct {
	RDB    *redis.Client
	Keeper *index.Keeper
	Engine *pagetree.Engine
}

// InitRedis connects the shared client singleton and returns it.
func InitRedis(cfg *config.Config) (*redis.Client, error) {
	if err := cache.Init(cfg.RedisURL); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return cache.Client(), nil
}

// InitCore wires the index keeper and page-tree engine against rdb.
func InitCore(rdb *redis.Client) *Core {
	keeper := index.New(rdb)
	publisher := events.New(rdb)
	engine := pagetree.New(rdb, keeper, publisher)
	return &Core{RDB: rdb, Keeper: keeper, Engine: engine}
}

// logOTPSender is the development-mode stand-in for the email/SMS provider
// a real deployment injects; it writes the code to the log instead of
// delivering it.
type logOTPSender struct{}

func (logOTPSender) Send(_ context.Context, destination, code string) error {
	log.Printf("otp: would send code %s to %s", code, destination)
	return nil
}

// APIServices bundles every collaborator cmd/api wires into the HTTP
// surface, built from a Core plus config.
type APIServices struct {
	Sites       *auth.Sites
	Tokens      *auth.Service
	Roles       *auth.Roles
	Credentials *auth.Credentials
	OTP         *auth.OTP
	Web3        *auth.Web3
	OAuth       *auth.OAuth
	Comments    *service.CommentService
	Moderation  *service.ModerationService
	Users       *service.UserService
	Limiter     *ratelimit.Limiter
}

// InitAPIServices wires the auth, moderation, comment, and user services
// that sit above a Core. Turnstile and the wallet-signature verifiers are
// external collaborators left for the operator to supply (see DESIGN.md);
// without them, Turnstile enforcement is disabled and web3 login reports
// "unsupported chain" until real verifiers are configured.
func InitAPIServices(cfg *config.Config, core *Core) *APIServices {
	roles := auth.NewRoles(core.RDB)
	tokens := auth.New(core.RDB, cfg.JWTSecret, cfg.JWTExpiry)

	providers := map[string]auth.OAuthProvider{}
	if cfg.OAuthGoogleClientID != "" && cfg.OAuthGoogleClientSecret != "" {
		providers["google"] = auth.NewGoogleProvider(
			cfg.OAuthGoogleClientID, cfg.OAuthGoogleClientSecret, cfg.PublicBaseURL+"/auth/google/callback")
	}

	return &APIServices{
		Sites:       auth.NewSites(core.RDB),
		Tokens:      tokens,
		Roles:       roles,
		Credentials: auth.NewCredentials(core.Keeper),
		OTP:         auth.NewOTP(core.RDB, logOTPSender{}),
		Web3:        auth.NewWeb3(core.RDB, map[string]auth.SignatureVerifier{}),
		OAuth:       auth.NewOAuth(core.RDB, providers),
		Comments:    service.NewCommentService(core.Engine, core.Keeper, roles),
		Moderation:  service.NewModerationService(core.RDB, core.Engine, core.Keeper),
		Users:       service.NewUserService(core.Keeper, tokens, core.Engine),
		Limiter:     ratelimit.New(core.RDB),
	}
}

// Ping verifies Redis reachability with a bounded timeout, used by the
// fanout node's /health handler.
func Ping(rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
