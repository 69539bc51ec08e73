// Package ratelimit implements the sliding-window request limiter backed by
// a per-scope/id/bucket Redis sorted set.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
)

// Scope names the layer a limit is enforced at.
type Scope string

const (
	ScopeIP     Scope = "ip"
	ScopeAPIKey Scope = "apikey"
	ScopeUser   Scope = "user"
)

// Rule defines a sliding window: limit requests per window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Result carries the headers a 429 (or a successful) response should set.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	Layer     Scope
}

// Limiter enforces sliding-window rules against Redis sorted sets keyed
// ratelimit:{scope}:{id}:{bucket}, scored by request timestamp.
type Limiter struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

// Allow records one request against scope/id/bucket and reports whether it
// is within rule's window+limit. Expired entries are trimmed from the set
// before counting so the window slides continuously rather than resetting
// on a fixed boundary.
func (l *Limiter) Allow(ctx context.Context, scope Scope, id, bucket string, rule Rule) (Result, error) {
	key := cache.RateLimitKey(string(scope), id, bucket)
	now := time.Now()
	windowStart := now.Add(-rule.Window)

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	member := uuid.NewString()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, apperr.Internal(err)
	}

	count := int(countCmd.Val())
	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	if count > rule.Limit {
		l.rdb.ZRem(ctx, key, member)
		return Result{
			Allowed:   false,
			Limit:     rule.Limit,
			Remaining: 0,
			ResetAt:   now.Add(rule.Window),
			Layer:     scope,
		}, nil
	}

	return Result{
		Allowed:   true,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetAt:   now.Add(rule.Window),
		Layer:     scope,
	}, nil
}
