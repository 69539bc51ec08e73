// Package locking implements the advisory per-page lock that serializes
// page-tree mutations.
package locking

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/observability"
)

// releaseScript is a compare-and-delete: only the holder that set the value
// may release the lock, so a slow writer can never clear another writer's
// lock after its own TTL has expired and someone else has acquired it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

const (
	defaultTTL        = 3 * time.Second
	defaultMaxRetries = 8
	defaultBaseDelay  = 10 * time.Millisecond
	defaultMaxDelay   = 250 * time.Millisecond
)

// PageLock represents one acquired advisory lock, holding the token needed
// to release it safely.
type PageLock struct {
	rdb   *redis.Client
	key   string
	token string
}

// Acquire takes the per-page lock with bounded exponential backoff. Returns
// apperr.Unavailable after defaultMaxRetries failed attempts.
func Acquire(ctx context.Context, rdb *redis.Client, pageID uuid.UUID) (*PageLock, error) {
	start := time.Now()
	key := cache.PageLockKey(pageID)
	token := uuid.NewString()

	delay := defaultBaseDelay
	for attempt := 0; attempt < defaultMaxRetries; attempt++ {
		ok, err := rdb.SetNX(ctx, key, token, defaultTTL).Result()
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if ok {
			observability.PageLockWaitSeconds.Observe(time.Since(start).Seconds())
			return &PageLock{rdb: rdb, key: key, token: token}, nil
		}

		select {
		case <-ctx.Done():
			return nil, apperr.Internal(ctx.Err())
		case <-time.After(jitter(delay)):
		}

		delay *= 2
		if delay > defaultMaxDelay {
			delay = defaultMaxDelay
		}
	}

	observability.PageLockExhaustedTotal.Inc()
	return nil, apperr.Unavailable("page lock acquisition exhausted", 1)
}

// Release gives up the lock via the compare-and-delete Lua script so a lock
// held by a different token (e.g. after this holder's TTL expired and
// another writer acquired it) is never clobbered.
func (l *PageLock) Release(ctx context.Context) {
	if l == nil {
		return
	}
	_ = releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	//nolint:gosec // non-cryptographic backoff jitter
	return d/2 + time.Duration(rand.Int63n(int64(d)))
}
