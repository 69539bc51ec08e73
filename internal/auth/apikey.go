package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
)

const (
	publicKeyPrefix = "tk_pub_"
	secretKeyPrefix = "tk_sec_"
)

// Sites resolves the `projectid` request header to a tenant and applies the
// key-kind-specific validation rules: origin checks only apply to public
// keys, secret keys skip them entirely.
type Sites struct {
	rdb *redis.Client
}

func NewSites(rdb *redis.Client) *Sites {
	return &Sites{rdb: rdb}
}

// Resolve loads the site owning apiKey and reports whether the key is the
// secret variant (server-to-server, origin checks skipped).
func (s *Sites) Resolve(ctx context.Context, apiKey string) (*models.Site, bool, error) {
	if apiKey == "" {
		return nil, false, apperr.Unauthorized("api key required")
	}
	isSecret := strings.HasPrefix(apiKey, secretKeyPrefix)
	if !isSecret && !strings.HasPrefix(apiKey, publicKeyPrefix) {
		return nil, false, apperr.Unauthorized("malformed api key")
	}

	siteIDRaw, err := s.rdb.Get(ctx, cache.APIKeySiteKey(apiKey)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, apperr.Unauthorized("invalid api key")
	}
	if err != nil {
		return nil, false, apperr.Internal(err)
	}
	siteID, err := uuid.Parse(siteIDRaw)
	if err != nil {
		return nil, false, apperr.Internal(err)
	}

	raw, err := s.rdb.Get(ctx, cache.SiteConfigKey(siteID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, apperr.Unauthorized("site not found")
	}
	if err != nil {
		return nil, false, apperr.Internal(err)
	}
	var site models.Site
	if err := json.Unmarshal(raw, &site); err != nil {
		return nil, false, apperr.Internal(err)
	}
	return &site, isSecret, nil
}

// ValidateOrigin checks a public-key request's Origin header against the
// site's allowlist. Secret-key requests never call this.
func ValidateOrigin(site *models.Site, origin string, localhostAllow bool) error {
	if len(site.Settings.AllowedOrigins) == 0 {
		return nil
	}
	if localhostAllow && (strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1")) {
		return nil
	}
	for _, allowed := range site.Settings.AllowedOrigins {
		if allowed == origin {
			return nil
		}
	}
	return apperr.Forbidden("origin not allowed for this site")
}
