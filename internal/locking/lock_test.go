package locking

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestAcquireRelease_RoundTrip(t *testing.T) {
	rdb := newTestClient(t)
	pageID := uuid.New()

	lock, err := Acquire(context.Background(), rdb, pageID)
	require.NoError(t, err)
	require.NotNil(t, lock)

	lock.Release(context.Background())

	lock2, err := Acquire(context.Background(), rdb, pageID)
	require.NoError(t, err)
	require.NotNil(t, lock2)
	lock2.Release(context.Background())
}

func TestAcquire_ContentionExhaustsRetries(t *testing.T) {
	if testing.Short() {
		t.Skip("exercises the full retry/backoff schedule")
	}
	rdb := newTestClient(t)
	pageID := uuid.New()
	ctx := context.Background()

	first, err := Acquire(ctx, rdb, pageID)
	require.NoError(t, err)
	defer first.Release(ctx)

	_, err = Acquire(ctx, rdb, pageID)
	require.Error(t, err)
}

func TestRelease_NilLockIsNoop(t *testing.T) {
	var lock *PageLock
	require.NotPanics(t, func() { lock.Release(context.Background()) })
}
