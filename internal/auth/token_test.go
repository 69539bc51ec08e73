package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "test-secret", time.Hour), rdb
}

func TestMintVerify_RoundTrip(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	siteID := uuid.New()

	token, err := s.Mint(ctx, userID, siteID, "1.2.3.4", "test-agent")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	principal, err := s.Verify(ctx, token)
	require.NoError(t, err)
	require.Equal(t, userID, principal.UserID)
	require.Equal(t, siteID, principal.SiteID)
	require.NotEmpty(t, principal.SessionID)
}

func TestVerify_RevokedSessionRejected(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	token, err := s.Mint(ctx, uuid.New(), uuid.New(), "", "")
	require.NoError(t, err)

	principal, err := s.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, s.Revoke(ctx, principal.SessionID))

	_, err = s.Verify(ctx, token)
	require.Error(t, err)
}

func TestVerify_GarbageTokenRejected(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Verify(context.Background(), "not-a-real-token")
	require.Error(t, err)
}

func TestVerify_WrongSecretRejected(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s1 := New(rdb, "secret-one", time.Hour)
	s2 := New(rdb, "secret-two", time.Hour)

	token, err := s1.Mint(context.Background(), uuid.New(), uuid.New(), "", "")
	require.NoError(t, err)

	_, err = s2.Verify(context.Background(), token)
	require.Error(t, err)
}
