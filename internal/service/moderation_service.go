package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/index"
	"github.com/usethreadkit/threadkit/internal/models"
	"github.com/usethreadkit/threadkit/internal/pagetree"
)

// ModerationService implements the moderation queue, reports, and the
// ban/shadowban/role actions a moderator or admin can take.
type ModerationService struct {
	rdb    *redis.Client
	engine *pagetree.Engine
	keeper *index.Keeper
}

func NewModerationService(rdb *redis.Client, engine *pagetree.Engine, keeper *index.Keeper) *ModerationService {
	return &ModerationService{rdb: rdb, engine: engine, keeper: keeper}
}

// QueueEntry is one item in the site's moderation queue response.
type QueueEntry struct {
	PageID    uuid.UUID
	CommentID uuid.UUID
}

// Queue returns the pending comments awaiting moderation, oldest first.
func (s *ModerationService) Queue(ctx context.Context, siteID uuid.UUID, offset, limit int) ([]QueueEntry, error) {
	members, err := s.rdb.ZRange(ctx, cache.SiteModQueueKey(siteID), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	entries := make([]QueueEntry, 0, len(members))
	for _, m := range members {
		pageID, commentID, ok := splitQueueMember(m)
		if !ok {
			continue
		}
		entries = append(entries, QueueEntry{PageID: pageID, CommentID: commentID})
	}
	return entries, nil
}

// Approve/Reject resolve a pending comment.
func (s *ModerationService) Approve(ctx context.Context, siteID, pageID uuid.UUID, path models.Path, moderator Actor) error {
	_, err := s.engine.Moderate(ctx, siteID, pageID, path, true, moderator.editor())
	return err
}

func (s *ModerationService) Reject(ctx context.Context, siteID, pageID uuid.UUID, path models.Path, moderator Actor) error {
	_, err := s.engine.Moderate(ctx, siteID, pageID, path, false, moderator.editor())
	return err
}

// Ban/Unban toggles a site-wide block.
func (s *ModerationService) Ban(ctx context.Context, siteID, userID uuid.UUID) error {
	return s.keeper.SetBlocked(ctx, siteID, userID, true)
}

func (s *ModerationService) Unban(ctx context.Context, siteID, userID uuid.UUID) error {
	return s.keeper.SetBlocked(ctx, siteID, userID, false)
}

// Shadowban/Unshadowban toggles the shadowban flag.
func (s *ModerationService) Shadowban(ctx context.Context, siteID, userID uuid.UUID) error {
	return s.keeper.SetShadowBanned(ctx, siteID, userID, true)
}

func (s *ModerationService) Unshadowban(ctx context.Context, siteID, userID uuid.UUID) error {
	return s.keeper.SetShadowBanned(ctx, siteID, userID, false)
}

// GrantRole/RevokeRole manage admin/moderator membership.
func (s *ModerationService) GrantRole(ctx context.Context, siteID, userID uuid.UUID, role models.Role) error {
	return s.keeper.SetRole(ctx, siteID, userID, role, true)
}

func (s *ModerationService) RevokeRole(ctx context.Context, siteID, userID uuid.UUID, role models.Role) error {
	return s.keeper.SetRole(ctx, siteID, userID, role, false)
}

// splitQueueMember parses the "{pageID}:{commentID}" member format written
// by index.Keeper.ModerationQueued.
func splitQueueMember(member string) (uuid.UUID, uuid.UUID, bool) {
	const idLen = 36
	if len(member) != idLen*2+1 {
		return uuid.Nil, uuid.Nil, false
	}
	pageID, err := uuid.Parse(member[:idLen])
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	commentID, err := uuid.Parse(member[idLen+1:])
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return pageID, commentID, true
}
