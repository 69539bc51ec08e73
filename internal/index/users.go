package index

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
)

// CreateUser persists a new user hash and claims its identity indexes.
// Callers must have already confirmed the identity isn't claimed (the auth
// flow does this via Lookup* before minting a new user).
func (k *Keeper) CreateUser(ctx context.Context, u *models.User) error {
	pipe := k.rdb.TxPipeline()
	pipe.HSet(ctx, cache.UserHashKey(u.ID), userHashFields(u))
	if u.Email != "" {
		pipe.SetNX(ctx, cache.EmailIndexKey(u.Email), u.ID.String(), 0)
	}
	if u.Phone != "" {
		pipe.SetNX(ctx, cache.PhoneIndexKey(u.Phone), u.ID.String(), 0)
	}
	pipe.SetNX(ctx, cache.UsernameIndexKey(u.Name), u.ID.String(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// GetUser loads a user by id. Returns NotFound if the hash is empty/absent.
func (k *Keeper) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	raw, err := k.rdb.HGetAll(ctx, cache.UserHashKey(userID)).Result()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if len(raw) == 0 {
		return nil, apperr.NotFound("user", userID)
	}
	return userFromHash(userID, raw), nil
}

// LookupByEmail/LookupByPhone/LookupByUsername resolve an identity index to
// a user id, used by the auth flow before provisioning a new account.
func (k *Keeper) LookupByEmail(ctx context.Context, email string) (uuid.UUID, bool, error) {
	return k.lookupIndex(ctx, cache.EmailIndexKey(email))
}

func (k *Keeper) LookupByPhone(ctx context.Context, phone string) (uuid.UUID, bool, error) {
	return k.lookupIndex(ctx, cache.PhoneIndexKey(phone))
}

func (k *Keeper) LookupByUsername(ctx context.Context, username string) (uuid.UUID, bool, error) {
	return k.lookupIndex(ctx, cache.UsernameIndexKey(username))
}

func (k *Keeper) LookupByProvider(ctx context.Context, provider, subject string) (uuid.UUID, bool, error) {
	return k.lookupIndex(ctx, cache.ProviderIndexKey(provider, subject))
}

func (k *Keeper) LookupByWallet(ctx context.Context, chain, addr string) (uuid.UUID, bool, error) {
	return k.lookupIndex(ctx, cache.WalletIndexKey(chain, addr))
}

func (k *Keeper) lookupIndex(ctx context.Context, key string) (uuid.UUID, bool, error) {
	raw, err := k.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, apperr.Internal(err)
	}
	id, perr := uuid.Parse(raw)
	if perr != nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// BindProvider claims a provider identity index for an existing user, used
// when an authenticated user links a new OAuth/web3 credential. The claimed
// "provider:subject" member is also recorded against the user so GDPR
// erasure can find and drop it later without a keyspace scan.
func (k *Keeper) BindProvider(ctx context.Context, provider, subject string, userID uuid.UUID) error {
	if err := k.rdb.SetNX(ctx, cache.ProviderIndexKey(provider, subject), userID.String(), 0).Err(); err != nil {
		return apperr.Internal(err)
	}
	if err := k.rdb.SAdd(ctx, cache.UserIdentitiesKey(userID), provider+":"+subject).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (k *Keeper) BindWallet(ctx context.Context, chain, addr string, userID uuid.UUID) error {
	if err := k.rdb.SetNX(ctx, cache.WalletIndexKey(chain, addr), userID.String(), 0).Err(); err != nil {
		return apperr.Internal(err)
	}
	if err := k.rdb.SAdd(ctx, cache.UserWalletsKey(userID), chain+":"+addr).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// SetPassword stores a user's password hash apart from the profile hash.
func (k *Keeper) SetPassword(ctx context.Context, userID uuid.UUID, hash string) error {
	if err := k.rdb.Set(ctx, cache.UserPasswordKey(userID), hash, 0).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// PasswordHash loads a user's stored password hash. Returns ("", false, nil)
// for an account that has no local-credential password set (OAuth/web3/OTP
// only).
func (k *Keeper) PasswordHash(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	hash, err := k.rdb.Get(ctx, cache.UserPasswordKey(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Internal(err)
	}
	return hash, true, nil
}

// UpdateProfile patches the mutable subset of a user's hash.
func (k *Keeper) UpdateProfile(ctx context.Context, userID uuid.UUID, name, avatarURL string, socialLinks []string) error {
	links, err := json.Marshal(socialLinks)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := k.rdb.HSet(ctx, cache.UserHashKey(userID), map[string]any{
		"name":         name,
		"avatar_url":   avatarURL,
		"social_links": string(links),
	}).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// SetShadowBanned toggles the shadowban flag, stored both on the user hash
// (for profile display) and the site's shadowbanned set (for fast checks
// during listing).
func (k *Keeper) SetShadowBanned(ctx context.Context, siteID, userID uuid.UUID, banned bool) error {
	pipe := k.rdb.TxPipeline()
	pipe.HSet(ctx, cache.UserHashKey(userID), "shadow_banned", strconv.FormatBool(banned))
	if banned {
		pipe.SAdd(ctx, cache.SiteShadowbannedKey(siteID), userID.String())
	} else {
		pipe.SRem(ctx, cache.SiteShadowbannedKey(siteID), userID.String())
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// SetRole grants or revokes admin/moderator role membership.
func (k *Keeper) SetRole(ctx context.Context, siteID, userID uuid.UUID, role models.Role, grant bool) error {
	var key string
	switch role {
	case models.RoleAdmin:
		key = cache.SiteAdminsKey(siteID)
	case models.RoleModerator:
		key = cache.SiteModeratorsKey(siteID)
	default:
		return apperr.BadRequest("role must be admin or moderator")
	}
	if grant {
		return k.setOp(ctx, k.rdb.SAdd(ctx, key, userID.String()).Err())
	}
	return k.setOp(ctx, k.rdb.SRem(ctx, key, userID.String()).Err())
}

// SetBlocked grants or revokes a site-wide block (distinct from one user
// blocking another; this is the moderator/admin ban).
func (k *Keeper) SetBlocked(ctx context.Context, siteID, userID uuid.UUID, blocked bool) error {
	if blocked {
		return k.setOp(ctx, k.rdb.SAdd(ctx, cache.SiteBlockedKey(siteID), userID.String()).Err())
	}
	return k.setOp(ctx, k.rdb.SRem(ctx, cache.SiteBlockedKey(siteID), userID.String()).Err())
}

func (k *Keeper) setOp(ctx context.Context, err error) error {
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// SetPageLocked grants or revokes the per-page posting lock, the per-page
// half of the admin posting toggles alongside the site-wide switch
// SetPostingDisabled covers.
func (k *Keeper) SetPageLocked(ctx context.Context, siteID, pageID uuid.UUID, locked bool) error {
	if locked {
		return k.setOp(ctx, k.rdb.SAdd(ctx, cache.SiteLockedPagesKey(siteID), pageID.String()).Err())
	}
	return k.setOp(ctx, k.rdb.SRem(ctx, cache.SiteLockedPagesKey(siteID), pageID.String()).Err())
}

// IsPageLocked reports whether a page has been individually locked for
// posting, independent of the site-wide posting_disabled flag.
func (k *Keeper) IsPageLocked(ctx context.Context, siteID, pageID uuid.UUID) (bool, error) {
	locked, err := k.rdb.SIsMember(ctx, cache.SiteLockedPagesKey(siteID), pageID.String()).Result()
	if err != nil {
		return false, apperr.Internal(err)
	}
	return locked, nil
}

// IncrementPageViews bumps a page's view counter, the only essential Page
// state besides the tree document.
func (k *Keeper) IncrementPageViews(ctx context.Context, pageID uuid.UUID) error {
	if err := k.rdb.Incr(ctx, cache.PageViewsKey(pageID)).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// PageViews returns a page's current view count.
func (k *Keeper) PageViews(ctx context.Context, pageID uuid.UUID) (int64, error) {
	n, err := k.rdb.Get(ctx, cache.PageViewsKey(pageID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

// ShadowbannedSet returns the shadowbanned user ids for a site, for use by
// pagetree.SortAndSlice's visibility filtering.
func (k *Keeper) ShadowbannedSet(ctx context.Context, siteID uuid.UUID) (map[uuid.UUID]bool, error) {
	members, err := k.rdb.SMembers(ctx, cache.SiteShadowbannedKey(siteID)).Result()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		if id, err := uuid.Parse(m); err == nil {
			out[id] = true
		}
	}
	return out, nil
}

func userHashFields(u *models.User) map[string]any {
	links, _ := json.Marshal(u.SocialLinks)
	return map[string]any{
		"id":             u.ID.String(),
		"name":           u.Name,
		"email":          u.Email,
		"phone":          u.Phone,
		"avatar_url":     u.AvatarURL,
		"karma":          u.Karma,
		"created_at":     u.CreatedAt.Unix(),
		"email_verified": strconv.FormatBool(u.EmailVerified),
		"phone_verified": strconv.FormatBool(u.PhoneVerified),
		"shadow_banned":  strconv.FormatBool(u.ShadowBanned),
		"social_links":   string(links),
		"total_comments": u.TotalComments,
	}
}

func userFromHash(id uuid.UUID, raw map[string]string) *models.User {
	u := &models.User{
		ID:        id,
		Name:      raw["name"],
		Email:     raw["email"],
		Phone:     raw["phone"],
		AvatarURL: raw["avatar_url"],
	}
	u.Karma, _ = strconv.ParseInt(raw["karma"], 10, 64)
	u.TotalComments, _ = strconv.ParseInt(raw["total_comments"], 10, 64)
	u.EmailVerified, _ = strconv.ParseBool(raw["email_verified"])
	u.PhoneVerified, _ = strconv.ParseBool(raw["phone_verified"])
	u.ShadowBanned, _ = strconv.ParseBool(raw["shadow_banned"])
	if ts, err := strconv.ParseInt(raw["created_at"], 10, 64); err == nil {
		u.CreatedAt = time.Unix(ts, 0)
	}
	if raw["social_links"] != "" {
		_ = json.Unmarshal([]byte(raw["social_links"]), &u.SocialLinks)
	}
	return u
}
