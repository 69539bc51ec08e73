package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
)

// Roles resolves a user's role under a site by set membership. Blocked
// short-circuits everything else; shadowbanned is checked separately since
// it is a flag, not a role, and must not block the user's own operations.
type Roles struct {
	rdb *redis.Client
}

func NewRoles(rdb *redis.Client) *Roles {
	return &Roles{rdb: rdb}
}

// Resolve returns the highest applicable role for userID under siteID.
func (r *Roles) Resolve(ctx context.Context, siteID, userID uuid.UUID) (models.Role, error) {
	blocked, err := r.rdb.SIsMember(ctx, cache.SiteBlockedKey(siteID), userID.String()).Result()
	if err != nil {
		return "", apperr.Internal(err)
	}
	if blocked {
		return models.RoleBlocked, nil
	}

	admin, err := r.rdb.SIsMember(ctx, cache.SiteAdminsKey(siteID), userID.String()).Result()
	if err != nil {
		return "", apperr.Internal(err)
	}
	if admin {
		return models.RoleAdmin, nil
	}

	mod, err := r.rdb.SIsMember(ctx, cache.SiteModeratorsKey(siteID), userID.String()).Result()
	if err != nil {
		return "", apperr.Internal(err)
	}
	if mod {
		return models.RoleModerator, nil
	}

	return models.RoleUser, nil
}

// IsShadowbanned reports whether userID is shadowbanned under siteID.
func (r *Roles) IsShadowbanned(ctx context.Context, siteID, userID uuid.UUID) (bool, error) {
	banned, err := r.rdb.SIsMember(ctx, cache.SiteShadowbannedKey(siteID), userID.String()).Result()
	if err != nil {
		return false, apperr.Internal(err)
	}
	return banned, nil
}

// RequireAtLeast returns apperr.Forbidden if role does not meet minimum.
func RequireAtLeast(role models.Role, minimum models.Role) error {
	if role == models.RoleBlocked {
		return apperr.Forbidden("account is blocked")
	}
	if !role.IsAtLeast(minimum) {
		return apperr.Forbidden("insufficient role")
	}
	return nil
}
