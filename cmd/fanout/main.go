// Command fanout is the entry point for the ThreadKit WebSocket node: it
// terminates client connections, maintains presence and typing state, and
// relays structural mutations published by the API node over Redis
// pub/sub. It is a separate process from cmd/api so connection count and
// request throughput scale independently.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/usethreadkit/threadkit/internal/auth"
	"github.com/usethreadkit/threadkit/internal/batcher"
	"github.com/usethreadkit/threadkit/internal/bootstrap"
	"github.com/usethreadkit/threadkit/internal/config"
	"github.com/usethreadkit/threadkit/internal/fanout"
	"github.com/usethreadkit/threadkit/internal/pubsub"
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

	flushInterval := time.Duration(cfg.BatcherFlushIntervalMs) * time.Millisecond
	b := batcher.New(rdb, flushInterval)

	offlineGrace := time.Duration(cfg.PresenceOfflineGraceSeconds) * time.Second
	hub := fanout.NewHub(rdb, b, offlineGrace)

	tokens := auth.New(rdb, cfg.JWTSecret, cfg.JWTExpiry)
	ws := fanout.NewServer(hub, tokens, b, rdb)

	bridgeCtx, cancelBridge := context.WithCancel(context.Background())
	pubsub.New(rdb, hub).Start(bridgeCtx)

	app := fiber.New(fiber.Config{AppName: "ThreadKit Fanout"})

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := bootstrap.Ping(rdb); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy"})
		}
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	app.Get("/ws", websocket.New(ws.HandleConnection))

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("shutting down fanout server...")
		cancelBridge()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		hub.Shutdown(5 * time.Second)
		b.Stop()

		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Printf("fanout server shutdown error: %v", err)
		}
	}()

	log.Printf("fanout server starting on port %s...", cfg.WSPort)
	log.Fatal(app.Listen(":" + cfg.WSPort))
}
