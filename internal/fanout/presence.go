package fanout

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/batcher"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
)

const lastSeenTTL = 25 * time.Second

type presenceKey struct {
	pageID uuid.UUID
	userID uuid.UUID
}

// Presence mirrors per-page viewer membership into Redis and emits
// user_joined as soon as a user's first connection to a page joins, and
// user_left only after a short offline grace period, so a reconnect within
// the window doesn't flap.
type Presence struct {
	rdb     *redis.Client
	batcher *batcher.Batcher
	grace   time.Duration
	emit    func(pageID uuid.UUID, method models.RPCMethod, userID uuid.UUID)

	mu        sync.Mutex
	connCount map[presenceKey]int
	timers    map[presenceKey]*time.Timer
}

// newPresence wires membership writes through b when given — per the
// fanout-side batching split, presence add/remove coalesce into the shared
// flush loop instead of issuing one SADD/SREM per connection event. b may be
// nil (falls back to direct Redis calls), which tests rely on.
func newPresence(rdb *redis.Client, b *batcher.Batcher, grace time.Duration, emit func(uuid.UUID, models.RPCMethod, uuid.UUID)) *Presence {
	if grace <= 0 {
		grace = 2 * time.Second
	}
	return &Presence{
		rdb:       rdb,
		batcher:   b,
		grace:     grace,
		emit:      emit,
		connCount: make(map[presenceKey]int),
		timers:    make(map[presenceKey]*time.Timer),
	}
}

// join registers one viewing connection for userID on pageID. Anonymous
// viewers are tracked locally for accurate counts but never written to the
// shared Redis presence set, since the anonymous sentinel is not a real
// identity to broadcast.
func (p *Presence) join(ctx context.Context, pageID, userID uuid.UUID, anonymous bool) {
	key := presenceKey{pageID: pageID, userID: userID}

	p.mu.Lock()
	if t, ok := p.timers[key]; ok {
		t.Stop()
		delete(p.timers, key)
	}
	wasOnline := p.connCount[key] > 0
	p.connCount[key]++
	p.mu.Unlock()

	if anonymous {
		return
	}
	if p.batcher != nil {
		p.batcher.QueuePresenceAdd(pageID.String(), userID.String())
	} else if p.rdb != nil {
		_ = p.rdb.SAdd(ctx, cache.PagePresenceKey(pageID), userID.String()).Err()
	}
	if p.rdb != nil {
		_ = p.rdb.Set(ctx, lastSeenKey(pageID, userID), strconv.FormatInt(time.Now().Unix(), 10), lastSeenTTL).Err()
	}
	if !wasOnline {
		p.emit(pageID, models.EventUserJoined, userID)
	}
}

// leave decrements the connection count and, once it reaches zero, starts a
// grace timer before emitting user_left and removing Redis membership.
func (p *Presence) leave(ctx context.Context, pageID, userID uuid.UUID, anonymous bool) {
	key := presenceKey{pageID: pageID, userID: userID}

	p.mu.Lock()
	n := p.connCount[key] - 1
	if n > 0 {
		p.connCount[key] = n
		p.mu.Unlock()
		return
	}
	delete(p.connCount, key)
	if t, ok := p.timers[key]; ok {
		t.Stop()
	}
	p.timers[key] = time.AfterFunc(p.grace, func() {
		p.finalizeLeave(context.Background(), pageID, userID, anonymous)
	})
	p.mu.Unlock()
}

func (p *Presence) finalizeLeave(ctx context.Context, pageID, userID uuid.UUID, anonymous bool) {
	key := presenceKey{pageID: pageID, userID: userID}

	p.mu.Lock()
	if p.connCount[key] > 0 {
		delete(p.timers, key)
		p.mu.Unlock()
		return
	}
	delete(p.timers, key)
	p.mu.Unlock()

	if anonymous {
		return
	}
	if p.batcher != nil {
		p.batcher.QueuePresenceRemove(pageID.String(), userID.String())
	} else if p.rdb != nil {
		_ = p.rdb.SRem(ctx, cache.PagePresenceKey(pageID), userID.String()).Err()
	}
	if p.rdb != nil {
		_ = p.rdb.Del(ctx, lastSeenKey(pageID, userID)).Err()
	}
	p.emit(pageID, models.EventUserLeft, userID)
}

// Viewers returns the current page presence set, preferring Redis so it
// reflects every fanout node sharing the instance, falling back to the
// local count when Redis is unreachable.
func (p *Presence) Viewers(ctx context.Context, pageID uuid.UUID) []string {
	if p.rdb != nil {
		members, err := p.rdb.SMembers(ctx, cache.PagePresenceKey(pageID)).Result()
		if err == nil {
			return members
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make([]string, 0)
	for key, n := range p.connCount {
		if key.pageID == pageID && n > 0 {
			seen = append(seen, key.userID.String())
		}
	}
	return seen
}

func lastSeenKey(pageID, userID uuid.UUID) string {
	return "page:" + pageID.String() + ":lastseen:" + userID.String()
}
