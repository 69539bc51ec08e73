// Package batcher coalesces per-request Redis work from many goroutines
// sharing one process into periodic pipelined flushes: writes are merged by
// key and fire-and-forget, reads are deduplicated across concurrent waiters
// and resolved off one shared pipeline call.
package batcher

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/observability"
)

// typingWindow is how long a typing indicator stays live without a fresh
// keystroke; entries older than this are pruned from the zset on flush.
const typingWindow = 5 * time.Second

func formatScore(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// typingEvent is one queued typing notice awaiting its flush.
type typingEvent struct {
	userID  string
	replyTo string
	ts      int64
}

// publishEvent is one queued PUBLISH awaiting its flush.
type publishEvent struct {
	channel string
	payload string
}

type readRequest struct {
	key   string
	reply chan readResult
}

type readResult struct {
	value string
	found bool
	err   error
}

// Batcher owns every coalescing queue and the single flush-loop goroutine
// that drains them.
type Batcher struct {
	rdb           *redis.Client
	flushInterval time.Duration

	mu             sync.Mutex
	presenceAdd    map[string]map[string]struct{}
	presenceRemove map[string]map[string]struct{}
	typing         map[string][]typingEvent
	publishes      []publishEvent
	counterDeltas  map[string]int64
	counterUsers   map[string]map[string]struct{}
	reads          map[string][]chan readResult

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func New(rdb *redis.Client, flushInterval time.Duration) *Batcher {
	if flushInterval <= 0 {
		flushInterval = 20 * time.Millisecond
	}
	b := &Batcher{
		rdb:            rdb,
		flushInterval:  flushInterval,
		presenceAdd:    make(map[string]map[string]struct{}),
		presenceRemove: make(map[string]map[string]struct{}),
		typing:         make(map[string][]typingEvent),
		counterDeltas:  make(map[string]int64),
		counterUsers:   make(map[string]map[string]struct{}),
		reads:          make(map[string][]chan readResult),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
	go b.flushLoop()
	return b
}

// Stop halts the flush loop after draining one final flush.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
	})
}

func (b *Batcher) flushLoop() {
	defer close(b.doneCh)
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			b.flush(context.Background())
			return
		case <-ticker.C:
			b.flush(context.Background())
		}
	}
}

// QueuePresenceAdd merges a presence addition into the pending flush for
// pageID. Fire-and-forget: submission returns immediately.
func (b *Batcher) QueuePresenceAdd(pageID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.presenceAdd[pageID]
	if !ok {
		set = make(map[string]struct{})
		b.presenceAdd[pageID] = set
	}
	set[userID] = struct{}{}
	delete(b.presenceRemove[pageID], userID)
}

// QueuePresenceRemove merges a presence removal into the pending flush.
func (b *Batcher) QueuePresenceRemove(pageID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.presenceRemove[pageID]
	if !ok {
		set = make(map[string]struct{})
		b.presenceRemove[pageID] = set
	}
	set[userID] = struct{}{}
	delete(b.presenceAdd[pageID], userID)
}

// QueueTyping appends a typing notice to the pending flush for pageID.
func (b *Batcher) QueueTyping(pageID, userID, replyTo string, ts int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typing[pageID] = append(b.typing[pageID], typingEvent{userID: userID, replyTo: replyTo, ts: ts})
}

// QueuePublish appends a channel publish to the pending flush.
func (b *Batcher) QueuePublish(channel, payload string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishes = append(b.publishes, publishEvent{channel: channel, payload: payload})
}

// QueueCounter merges an analytics counter delta, keyed `site_id:hour_bucket`,
// and records userID in that bucket's unique-visitor set.
func (b *Batcher) QueueCounter(bucketKey, userID string, delta int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counterDeltas[bucketKey] += delta
	set, ok := b.counterUsers[bucketKey]
	if !ok {
		set = make(map[string]struct{})
		b.counterUsers[bucketKey] = set
	}
	set[userID] = struct{}{}
}

// Read submits a deduplicated GET for key and blocks until the next flush
// resolves it. Multiple concurrent callers for the same key share one Redis
// round-trip.
func (b *Batcher) Read(ctx context.Context, key string) (string, bool, error) {
	reply := make(chan readResult, 1)

	b.mu.Lock()
	b.reads[key] = append(b.reads[key], reply)
	b.mu.Unlock()

	select {
	case res := <-reply:
		return res.value, res.found, res.err
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// flush drains every queue and issues one pipelined Redis batch. Draining
// collects the pending entries under the lock, then clears them in a second
// pass, so the lock is never held across the Redis round-trip.
func (b *Batcher) flush(ctx context.Context) {
	start := time.Now()
	defer func() {
		observability.BatcherFlushLatencySeconds.Observe(time.Since(start).Seconds())
	}()

	b.mu.Lock()
	presenceAdd := b.presenceAdd
	presenceRemove := b.presenceRemove
	typing := b.typing
	publishes := b.publishes
	counterDeltas := b.counterDeltas
	counterUsers := b.counterUsers
	readKeys := make([]string, 0, len(b.reads))
	readReplies := make(map[string][]chan readResult, len(b.reads))
	for k, chans := range b.reads {
		readKeys = append(readKeys, k)
		readReplies[k] = chans
	}

	observability.BatcherQueueDepth.WithLabelValues("presence_add").Set(float64(len(presenceAdd)))
	observability.BatcherQueueDepth.WithLabelValues("typing").Set(float64(len(typing)))
	observability.BatcherQueueDepth.WithLabelValues("publish").Set(float64(len(publishes)))
	observability.BatcherQueueDepth.WithLabelValues("read").Set(float64(len(readKeys)))

	b.presenceAdd = make(map[string]map[string]struct{})
	b.presenceRemove = make(map[string]map[string]struct{})
	b.typing = make(map[string][]typingEvent)
	b.publishes = nil
	b.counterDeltas = make(map[string]int64)
	b.counterUsers = make(map[string]map[string]struct{})
	b.reads = make(map[string][]chan readResult)
	b.mu.Unlock()

	if len(presenceAdd) == 0 && len(presenceRemove) == 0 && len(typing) == 0 &&
		len(publishes) == 0 && len(counterDeltas) == 0 && len(readKeys) == 0 {
		return
	}

	pipe := b.rdb.Pipeline()

	for pageID, users := range presenceAdd {
		members := make([]interface{}, 0, len(users))
		for u := range users {
			members = append(members, u)
		}
		pipe.SAdd(ctx, presenceSetKey(pageID), members...)
	}
	for pageID, users := range presenceRemove {
		members := make([]interface{}, 0, len(users))
		for u := range users {
			members = append(members, u)
		}
		pipe.SRem(ctx, presenceSetKey(pageID), members...)
	}
	for pageID, events := range typing {
		key := typingZsetKey(pageID)
		members := make([]redis.Z, 0, len(events))
		for _, ev := range events {
			members = append(members, redis.Z{Score: float64(ev.ts), Member: encodeTyping(ev)})
		}
		pipe.ZAdd(ctx, key, members...)
		pipe.ZRemRangeByScore(ctx, key, "-inf", formatScore(float64(time.Now().Add(-typingWindow).UnixMilli())))
	}
	for _, p := range publishes {
		pipe.Publish(ctx, p.channel, p.payload)
	}
	for bucketKey, delta := range counterDeltas {
		pipe.IncrBy(ctx, analyticsCountKey(bucketKey), delta)
	}
	for bucketKey, users := range counterUsers {
		members := make([]interface{}, 0, len(users))
		for u := range users {
			members = append(members, u)
		}
		pipe.SAdd(ctx, analyticsUsersKey(bucketKey), members...)
	}

	getCmds := make(map[string]*redis.StringCmd, len(readKeys))
	for _, key := range readKeys {
		getCmds[key] = pipe.Get(ctx, key)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		observability.RedisErrorsTotal.WithLabelValues("batcher_flush").Inc()
		for _, key := range readKeys {
			deliverRead(readReplies[key], "", false, err)
		}
		return
	}

	for _, key := range readKeys {
		cmd := getCmds[key]
		val, err := cmd.Result()
		switch {
		case err == redis.Nil:
			deliverRead(readReplies[key], "", false, nil)
		case err != nil:
			deliverRead(readReplies[key], "", false, err)
		default:
			deliverRead(readReplies[key], val, true, nil)
		}
	}
}

func deliverRead(chans []chan readResult, value string, found bool, err error) {
	res := readResult{value: value, found: found, err: err}
	for _, ch := range chans {
		ch <- res
		close(ch)
	}
}
