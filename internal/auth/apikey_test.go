package auth

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
)

func seedSite(t *testing.T, rdb *redis.Client, site *models.Site, publicKey, secretKey string) {
	t.Helper()
	ctx := context.Background()
	raw, err := json.Marshal(site)
	require.NoError(t, err)
	require.NoError(t, rdb.Set(ctx, cache.SiteConfigKey(site.ID), raw, 0).Err())
	if publicKey != "" {
		require.NoError(t, rdb.Set(ctx, cache.APIKeySiteKey(publicKey), site.ID.String(), 0).Err())
	}
	if secretKey != "" {
		require.NoError(t, rdb.Set(ctx, cache.APIKeySiteKey(secretKey), site.ID.String(), 0).Err())
	}
}

func TestSitesResolve_PublicKey(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	site := &models.Site{ID: uuid.New(), Name: "example", Settings: models.DefaultSettings()}
	seedSite(t, rdb, site, "tk_pub_abc123", "")

	sites := NewSites(rdb)
	resolved, isSecret, err := sites.Resolve(context.Background(), "tk_pub_abc123")
	require.NoError(t, err)
	require.False(t, isSecret)
	require.Equal(t, site.ID, resolved.ID)
}

func TestSitesResolve_SecretKey(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	site := &models.Site{ID: uuid.New(), Name: "example", Settings: models.DefaultSettings()}
	seedSite(t, rdb, site, "", "tk_sec_xyz789")

	sites := NewSites(rdb)
	_, isSecret, err := sites.Resolve(context.Background(), "tk_sec_xyz789")
	require.NoError(t, err)
	require.True(t, isSecret)
}

func TestSitesResolve_MalformedKeyRejected(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	sites := NewSites(rdb)
	_, _, err = sites.Resolve(context.Background(), "garbage-key")
	require.Error(t, err)
}

func TestSitesResolve_UnknownKeyRejected(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	sites := NewSites(rdb)
	_, _, err = sites.Resolve(context.Background(), "tk_pub_doesnotexist")
	require.Error(t, err)
}

func TestValidateOrigin_NoAllowlistMeansOpen(t *testing.T) {
	site := &models.Site{Settings: models.SiteSettings{AllowedOrigins: nil}}
	require.NoError(t, ValidateOrigin(site, "https://anything.example", false))
}

func TestValidateOrigin_AllowsListedOrigin(t *testing.T) {
	site := &models.Site{Settings: models.SiteSettings{AllowedOrigins: []string{"https://example.com"}}}
	require.NoError(t, ValidateOrigin(site, "https://example.com", false))
}

func TestValidateOrigin_RejectsUnlistedOrigin(t *testing.T) {
	site := &models.Site{Settings: models.SiteSettings{AllowedOrigins: []string{"https://example.com"}}}
	err := ValidateOrigin(site, "https://evil.example", false)
	require.Error(t, err)
}

func TestValidateOrigin_LocalhostAllowedWhenEnabled(t *testing.T) {
	site := &models.Site{Settings: models.SiteSettings{AllowedOrigins: []string{"https://example.com"}}}
	require.NoError(t, ValidateOrigin(site, "http://localhost:3000", true))
}
