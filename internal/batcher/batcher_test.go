package batcher

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestBatcher(t *testing.T, interval time.Duration) (*Batcher, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	b := New(rdb, interval)
	t.Cleanup(b.Stop)
	return b, mr
}

func TestBatcher_PresenceAddFlushes(t *testing.T) {
	b, mr := newTestBatcher(t, 10*time.Millisecond)
	b.QueuePresenceAdd("page1", "user1")

	require.Eventually(t, func() bool {
		members, _ := mr.SMembers(presenceSetKey("page1"))
		return len(members) == 1 && members[0] == "user1"
	}, time.Second, 5*time.Millisecond)
}

func TestBatcher_PresenceAddThenRemoveCancelsOut(t *testing.T) {
	b, mr := newTestBatcher(t, 10*time.Millisecond)
	b.QueuePresenceAdd("page1", "user1")
	b.QueuePresenceRemove("page1", "user1")

	time.Sleep(50 * time.Millisecond)
	members, _ := mr.SMembers(presenceSetKey("page1"))
	require.Empty(t, members)
}

func TestBatcher_CounterDeltasCoalesce(t *testing.T) {
	b, mr := newTestBatcher(t, 10*time.Millisecond)
	b.QueueCounter("site1:2026073100", "u1", 1)
	b.QueueCounter("site1:2026073100", "u2", 1)
	b.QueueCounter("site1:2026073100", "u1", 1)

	require.Eventually(t, func() bool {
		v, _ := mr.Get(analyticsCountKey("site1:2026073100"))
		return v == "3"
	}, time.Second, 5*time.Millisecond)

	members, _ := mr.SMembers(analyticsUsersKey("site1:2026073100"))
	require.ElementsMatch(t, []string{"u1", "u2"}, members)
}

func TestBatcher_ReadDedupesConcurrentCallers(t *testing.T) {
	b, mr := newTestBatcher(t, 10*time.Millisecond)
	require.NoError(t, mr.Set("somekey", "someval"))

	ctx := context.Background()
	results := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			val, found, err := b.Read(ctx, "somekey")
			require.NoError(t, err)
			require.True(t, found)
			results <- val
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case v := <-results:
			require.Equal(t, "someval", v)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for read result")
		}
	}
}

func TestBatcher_ReadMissingKeyNotFound(t *testing.T) {
	b, _ := newTestBatcher(t, 10*time.Millisecond)
	ctx := context.Background()

	val, found, err := b.Read(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, val)
}

func TestBatcher_StopDrainsFinalFlush(t *testing.T) {
	b, mr := newTestBatcher(t, time.Hour)
	b.QueuePresenceAdd("page1", "user1")
	b.Stop()

	members, _ := mr.SMembers(presenceSetKey("page1"))
	require.Equal(t, []string{"user1"}, members)
}
