// Package index dispatches the secondary-structure updates that accompany
// every page-tree mutation: per-user comment/vote lists, the moderation
// queue, reports, the block graph, karma, and account erasure.
package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
)

// Keeper implements pagetree.Hooks and the standalone index operations:
// the block graph and account erasure.
type Keeper struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Keeper {
	return &Keeper{rdb: rdb}
}

// CommentCreated adds the comment to the author's comment set and bumps
// their total_comments counter. Anonymous/deleted-sentinel authors are
// skipped — there is no user record to index against.
func (k *Keeper) CommentCreated(ctx context.Context, siteID, pageID uuid.UUID, c *models.TreeComment) error {
	// Recorded regardless of author so GDPR delete can always resolve a
	// comment id back to its page, even for anonymous/deleted authors.
	if err := k.rdb.Set(ctx, commentPageKey(c.ID), pageID.String(), 0).Err(); err != nil {
		return apperr.Internal(err)
	}

	if c.AuthorID == models.AnonymousUserSentinel || c.AuthorID == models.DeletedUserSentinel {
		return nil
	}
	pipe := k.rdb.TxPipeline()
	pipe.SAdd(ctx, cache.UserCommentsKey(c.AuthorID), c.ID.String())
	pipe.HIncrBy(ctx, cache.UserHashKey(c.AuthorID), "total_comments", 1)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func commentPageKey(commentID uuid.UUID) string {
	return "comment:" + commentID.String() + ":page"
}

// PageForComment implements index.PageResolver.
func (k *Keeper) PageForComment(ctx context.Context, commentID uuid.UUID) (uuid.UUID, bool, error) {
	raw, err := k.rdb.Get(ctx, commentPageKey(commentID)).Result()
	if err == redis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, apperr.Internal(err)
	}
	pageID, perr := uuid.Parse(raw)
	if perr != nil {
		return uuid.Nil, false, nil
	}
	return pageID, true, nil
}

// CommentDeleted intentionally leaves user:{author}:comments and
// total_comments untouched: the tombstone remains reachable by id and
// deletion history is preserved.
func (k *Keeper) CommentDeleted(context.Context, uuid.UUID, *models.TreeComment) error {
	return nil
}

// VoteApplied adjusts the author's karma. A zero delta (self-vote) and the
// anonymous/deleted sentinel authors return early without touching Redis.
func (k *Keeper) VoteApplied(ctx context.Context, siteID uuid.UUID, authorID, commentID uuid.UUID, deltaKarma int64) error {
	if authorID == models.AnonymousUserSentinel || authorID == models.DeletedUserSentinel || deltaKarma == 0 {
		return nil
	}
	if err := k.rdb.HIncrBy(ctx, cache.UserHashKey(authorID), "karma", deltaKarma).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Reported appends to the site's report zset, scored by the report's
// CreatedAt in Unix milliseconds, rejecting a duplicate open report from the
// same reporter against the same comment/reason (SPEC_FULL.md supplement).
func (k *Keeper) Reported(ctx context.Context, siteID uuid.UUID, report models.Report) error {
	dedupeKey := fmt.Sprintf("report-dedupe:%s", report.DedupeKey())
	set, err := k.rdb.SetNX(ctx, dedupeKey, "1", 0).Result()
	if err != nil {
		return apperr.Internal(err)
	}
	if !set {
		return apperr.Conflict("you have already reported this comment for this reason")
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return apperr.Internal(err)
	}
	score := float64(report.CreatedAt.UnixMilli())
	if err := k.rdb.ZAdd(ctx, cache.SiteReportsKey(siteID), redis.Z{Score: score, Member: raw}).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ModerationQueued adds a pending comment to the site's modqueue, scored by
// creation time.
func (k *Keeper) ModerationQueued(ctx context.Context, siteID, pageID uuid.UUID, c *models.TreeComment) error {
	member := fmt.Sprintf("%s:%s", pageID, c.ID)
	if err := k.rdb.ZAdd(ctx, cache.SiteModQueueKey(siteID), redis.Z{
		Score:  float64(c.CreatedAtMs),
		Member: member,
	}).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ModerationResolved removes a comment from the modqueue once a moderator
// has approved or rejected it.
func (k *Keeper) ModerationResolved(ctx context.Context, siteID, commentID uuid.UUID) error {
	members, err := k.rdb.ZRange(ctx, cache.SiteModQueueKey(siteID), 0, -1).Result()
	if err != nil {
		return apperr.Internal(err)
	}
	for _, m := range members {
		if len(m) >= len(commentID.String()) && m[len(m)-len(commentID.String()):] == commentID.String() {
			k.rdb.ZRem(ctx, cache.SiteModQueueKey(siteID), m)
		}
	}
	return nil
}

// Block records userID blocking targetID symmetrically across both sets.
func (k *Keeper) Block(ctx context.Context, userID, targetID uuid.UUID) error {
	pipe := k.rdb.TxPipeline()
	pipe.SAdd(ctx, cache.UserBlockedKey(userID), targetID.String())
	pipe.SAdd(ctx, cache.UserBlockedByKey(targetID), userID.String())
	_, err := pipe.Exec(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Unblock reverses Block.
func (k *Keeper) Unblock(ctx context.Context, userID, targetID uuid.UUID) error {
	pipe := k.rdb.TxPipeline()
	pipe.SRem(ctx, cache.UserBlockedKey(userID), targetID.String())
	pipe.SRem(ctx, cache.UserBlockedByKey(targetID), userID.String())
	_, err := pipe.Exec(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// BlockedSet returns the set of user ids userID has blocked, for use by
// pagetree.Viewer.Blocked.
func (k *Keeper) BlockedSet(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	members, err := k.rdb.SMembers(ctx, cache.UserBlockedKey(userID)).Result()
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
