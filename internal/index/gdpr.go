package index

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
)

// TreeMutator is the narrow slice of pagetree.Engine the GDPR delete needs:
// tombstoning a user's authored comments and reversing their votes, each
// under that page's own lock. Defined here to avoid index importing
// pagetree solely for this one call shape.
type TreeMutator interface {
	TombstoneAuthor(ctx context.Context, pageID uuid.UUID, commentID, deletedBy uuid.UUID) error
	ReverseVote(ctx context.Context, pageID uuid.UUID, commentID, voterID uuid.UUID) error
}

// PageResolver derives the page id backing one of a user's comment ids.
// Account erasure only has comment ids in user:{id}:comments, not page
// ids, so it needs a lookup back to the owning page.
type PageResolver interface {
	PageForComment(ctx context.Context, commentID uuid.UUID) (uuid.UUID, bool, error)
}

// GDPRResult reports what the erasure touched, for the HTTP response shape
// {comments_deleted, votes_deleted}.
type GDPRResult struct {
	CommentsDeleted int
	VotesDeleted    int
}

// DeleteUser implements the full account-erasure procedure: tombstone every
// comment the user authored, reverse every vote they cast, drop every index
// that resolves an identity credential to them, and remove them from
// siteID's role sets (admins, moderators, blocked, shadowbanned).
func (k *Keeper) DeleteUser(
	ctx context.Context, siteID, userID uuid.UUID, user *models.User, mutator TreeMutator, resolver PageResolver,
) (GDPRResult, error) {
	var result GDPRResult

	commentIDs, err := k.rdb.SMembers(ctx, cache.UserCommentsKey(userID)).Result()
	if err != nil {
		return result, apperr.Internal(err)
	}
	for _, raw := range commentIDs {
		commentID, perr := uuid.Parse(raw)
		if perr != nil {
			continue
		}
		pageID, ok, rerr := resolver.PageForComment(ctx, commentID)
		if rerr != nil {
			return result, rerr
		}
		if !ok {
			continue
		}
		if err := mutator.TombstoneAuthor(ctx, pageID, commentID, userID); err != nil {
			return result, err
		}
		result.CommentsDeleted++
	}

	voteEntries, err := k.rdb.SMembers(ctx, cache.UserVotesKey(userID)).Result()
	if err != nil {
		return result, apperr.Internal(err)
	}
	for _, raw := range voteEntries {
		commentID, perr := uuid.Parse(raw)
		if perr != nil {
			continue
		}
		pageID, ok, rerr := resolver.PageForComment(ctx, commentID)
		if rerr != nil {
			return result, rerr
		}
		if !ok {
			continue
		}
		if err := mutator.ReverseVote(ctx, pageID, commentID, userID); err != nil {
			return result, err
		}
		result.VotesDeleted++
		k.rdb.Del(ctx, cache.VoteKey(userID, commentID))
	}

	identities, err := k.rdb.SMembers(ctx, cache.UserIdentitiesKey(userID)).Result()
	if err != nil {
		return result, apperr.Internal(err)
	}
	wallets, err := k.rdb.SMembers(ctx, cache.UserWalletsKey(userID)).Result()
	if err != nil {
		return result, apperr.Internal(err)
	}

	pipe := k.rdb.TxPipeline()
	pipe.Del(ctx, cache.UserCommentsKey(userID))
	pipe.Del(ctx, cache.UserVotesKey(userID))
	pipe.Del(ctx, cache.UserHashKey(userID))
	pipe.Del(ctx, cache.UserPasswordKey(userID))
	pipe.Del(ctx, cache.UserBlockedKey(userID))
	pipe.Del(ctx, cache.UserBlockedByKey(userID))
	pipe.Del(ctx, cache.UserIdentitiesKey(userID))
	pipe.Del(ctx, cache.UserWalletsKey(userID))
	if user.Email != "" {
		pipe.Del(ctx, cache.EmailIndexKey(user.Email))
	}
	if user.Phone != "" {
		pipe.Del(ctx, cache.PhoneIndexKey(user.Phone))
	}
	pipe.Del(ctx, cache.UsernameIndexKey(user.Name))
	for _, identity := range identities {
		provider, subject, ok := splitIdentity(identity)
		if ok {
			pipe.Del(ctx, cache.ProviderIndexKey(provider, subject))
		}
	}
	for _, wallet := range wallets {
		chain, addr, ok := splitIdentity(wallet)
		if ok {
			pipe.Del(ctx, cache.WalletIndexKey(chain, addr))
		}
	}
	pipe.SRem(ctx, cache.SiteAdminsKey(siteID), userID.String())
	pipe.SRem(ctx, cache.SiteModeratorsKey(siteID), userID.String())
	pipe.SRem(ctx, cache.SiteBlockedKey(siteID), userID.String())
	pipe.SRem(ctx, cache.SiteShadowbannedKey(siteID), userID.String())
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return result, apperr.Internal(err)
	}

	return result, nil
}

// splitIdentity reverses the "key:value" member format BindProvider/
// BindWallet write into user:{id}:identities and user:{id}:wallets. Provider
// names and chain names never contain ':', so splitting on the first
// occurrence is unambiguous.
func splitIdentity(member string) (string, string, bool) {
	for i := 0; i < len(member); i++ {
		if member[i] == ':' {
			return member[:i], member[i+1:], true
		}
	}
	return "", "", false
}
