// Command api is the entry point for the ThreadKit API node: the HTTP
// surface for auth, comments, moderation, and admin. The WebSocket fanout
// node is a separate process (cmd/fanout) so the two scale independently.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/usethreadkit/threadkit/internal/bootstrap"
	"github.com/usethreadkit/threadkit/internal/config"
	"github.com/usethreadkit/threadkit/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	rdb, err := bootstrap.InitRedis(cfg)
	if err != nil {
		log.Fatalf("runtime initialization failed: %v", err)
	}

	core := bootstrap.InitCore(rdb)
	svc := bootstrap.InitAPIServices(cfg, core)

	srv := server.NewServer(server.Deps{
		Config:      cfg,
		RDB:         rdb,
		Sites:       svc.Sites,
		Tokens:      svc.Tokens,
		Roles:       svc.Roles,
		Credentials: svc.Credentials,
		OTP:         svc.OTP,
		Web3:        svc.Web3,
		OAuth:       svc.OAuth,
		Comments:    svc.Comments,
		Moderation:  svc.Moderation,
		Users:       svc.Users,
		Keeper:      core.Keeper,
		Limiter:     svc.Limiter,
	})

	app := fiber.New(fiber.Config{
		AppName:   "ThreadKit API",
		BodyLimit: 2 * 1024 * 1024,
	})

	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("shutting down api server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Printf("api server shutdown error: %v", err)
		}
	}()

	log.Printf("api server starting on port %s...", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
