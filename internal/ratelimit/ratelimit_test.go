package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb)
}

func TestLimiter_AllowsUnderLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		result, err := l.Allow(ctx, ScopeIP, "1.2.3.4", "comments", rule)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
}

func TestLimiter_RejectsOverLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Limit: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		result, err := l.Allow(ctx, ScopeIP, "1.2.3.4", "comments", rule)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := l.Allow(ctx, ScopeIP, "1.2.3.4", "comments", rule)
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Equal(t, 0, result.Remaining)
}

func TestLimiter_ScopesAreIndependent(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Limit: 1, Window: time.Minute}

	r1, err := l.Allow(ctx, ScopeIP, "1.2.3.4", "comments", rule)
	require.NoError(t, err)
	require.True(t, r1.Allowed)

	r2, err := l.Allow(ctx, ScopeUser, "1.2.3.4", "comments", rule)
	require.NoError(t, err)
	require.True(t, r2.Allowed)
}

func TestLimiter_RejectionResetAtInFuture(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Limit: 1, Window: 30 * time.Second}

	_, err := l.Allow(ctx, ScopeIP, "1.2.3.4", "comments", rule)
	require.NoError(t, err)

	result, err := l.Allow(ctx, ScopeIP, "1.2.3.4", "comments", rule)
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.True(t, result.ResetAt.After(time.Now()))
}
