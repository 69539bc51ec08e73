// Package cache owns the single Redis client singleton shared by every core
// subsystem, and the namespaced key builders for the data model.
package cache

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/usethreadkit/threadkit/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorsTotal.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorsTotal.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// Init initializes the Redis client singleton with the given address or URL.
func Init(addr string) error {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return err
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	c := redis.NewClient(opts)
	c.AddHook(metricsHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return err
	}

	client = c
	log.Println("redis connected")
	return nil
}

// Set installs an already-constructed client, used by tests wiring miniredis.
func Set(c *redis.Client) { client = c }

// Client returns the process-wide Redis client.
func Client() *redis.Client { return client }
