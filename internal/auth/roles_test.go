package auth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
)

func newTestRoles(t *testing.T) (*Roles, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRoles(rdb), rdb
}

func TestResolve_DefaultsToUser(t *testing.T) {
	r, _ := newTestRoles(t)
	role, err := r.Resolve(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, role)
}

func TestResolve_BlockedTakesPriorityOverAdmin(t *testing.T) {
	r, rdb := newTestRoles(t)
	ctx := context.Background()
	siteID := uuid.New()
	userID := uuid.New()

	require.NoError(t, rdb.SAdd(ctx, cache.SiteAdminsKey(siteID), userID.String()).Err())
	require.NoError(t, rdb.SAdd(ctx, cache.SiteBlockedKey(siteID), userID.String()).Err())

	role, err := r.Resolve(ctx, siteID, userID)
	require.NoError(t, err)
	require.Equal(t, models.RoleBlocked, role)
}

func TestResolve_Moderator(t *testing.T) {
	r, rdb := newTestRoles(t)
	ctx := context.Background()
	siteID := uuid.New()
	userID := uuid.New()

	require.NoError(t, rdb.SAdd(ctx, cache.SiteModeratorsKey(siteID), userID.String()).Err())

	role, err := r.Resolve(ctx, siteID, userID)
	require.NoError(t, err)
	require.Equal(t, models.RoleModerator, role)
}

func TestRequireAtLeast_BlockedAlwaysForbidden(t *testing.T) {
	err := RequireAtLeast(models.RoleBlocked, models.RoleUser)
	require.Error(t, err)
}

func TestRequireAtLeast_InsufficientRoleForbidden(t *testing.T) {
	err := RequireAtLeast(models.RoleUser, models.RoleModerator)
	require.Error(t, err)
}

func TestRequireAtLeast_SufficientRoleAllowed(t *testing.T) {
	err := RequireAtLeast(models.RoleAdmin, models.RoleModerator)
	require.NoError(t, err)
}

func TestIsShadowbanned(t *testing.T) {
	r, rdb := newTestRoles(t)
	ctx := context.Background()
	siteID := uuid.New()
	userID := uuid.New()

	banned, err := r.IsShadowbanned(ctx, siteID, userID)
	require.NoError(t, err)
	require.False(t, banned)

	require.NoError(t, rdb.SAdd(ctx, cache.SiteShadowbannedKey(siteID), userID.String()).Err())
	banned, err = r.IsShadowbanned(ctx, siteID, userID)
	require.NoError(t, err)
	require.True(t, banned)
}
