// Package service wires the page-tree engine, index keeper, and auth
// packages together into the operations the HTTP and WebSocket handlers
// call: comment CRUD and voting, moderation actions, and user/account
// management.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/auth"
	"github.com/usethreadkit/threadkit/internal/index"
	"github.com/usethreadkit/threadkit/internal/models"
	"github.com/usethreadkit/threadkit/internal/pagetree"
)

// Actor is the resolved identity behind a comment request: either a
// verified user, or an anonymous poster when the site allows it.
type Actor struct {
	UserID    uuid.UUID
	Name      string
	Avatar    string
	Karma     int64
	Role      models.Role
	HasUser   bool
	Anonymous bool
}

func (a Actor) editor() pagetree.Editor {
	return pagetree.Editor{UserID: a.UserID, Role: a.Role}
}

// CommentService implements comment listing, posting, editing, deleting,
// voting, and reporting.
type CommentService struct {
	engine *pagetree.Engine
	keeper *index.Keeper
	roles  *auth.Roles
}

func NewCommentService(engine *pagetree.Engine, keeper *index.Keeper, roles *auth.Roles) *CommentService {
	return &CommentService{engine: engine, keeper: keeper, roles: roles}
}

// ListParams carries the query parameters of GET /comments.
type ListParams struct {
	PageID uuid.UUID
	Sort   models.SortOrder
	Offset int
	Limit  int
}

// ListResult is the response shape of GET /comments.
type ListResult struct {
	Comments []*pagetree.PublicComment
	Total    int
	Views    int64
}

// List returns the public, viewer-filtered comment tree for a page. It also
// bumps the page's view counter — the only Page state besides the tree
// document — on a best-effort basis: a counter failure never fails the
// read.
func (s *CommentService) List(ctx context.Context, siteID uuid.UUID, params ListParams, viewer Actor) (ListResult, error) {
	tree, err := s.engine.Load(ctx, params.PageID)
	if err != nil {
		return ListResult{}, err
	}

	if err := s.keeper.IncrementPageViews(ctx, params.PageID); err != nil {
		slog.Default().Warn("page view counter increment failed", "page_id", params.PageID, "error", err)
	}
	views, err := s.keeper.PageViews(ctx, params.PageID)
	if err != nil {
		return ListResult{}, err
	}

	blocked := map[uuid.UUID]bool{}
	if viewer.HasUser {
		blocked, err = s.keeper.BlockedSet(ctx, viewer.UserID)
		if err != nil {
			return ListResult{}, err
		}
	}
	shadowbanned, err := s.keeper.ShadowbannedSet(ctx, siteID)
	if err != nil {
		return ListResult{}, err
	}

	pv := pagetree.Viewer{
		UserID:      viewer.UserID,
		HasUser:     viewer.HasUser,
		Blocked:     blocked,
		IsModerator: viewer.Role.IsAtLeast(models.RoleModerator),
	}

	comments, total := pagetree.SortAndSlice(tree, params.Sort, params.Offset, params.Limit, pv, shadowbanned, time.Now())
	return ListResult{Comments: comments, Total: total, Views: views}, nil
}

// Create posts a new comment under parentPath (nil/empty for a root-level
// comment). Anonymous posting requires the site to allow it.
func (s *CommentService) Create(
	ctx context.Context, siteID uuid.UUID, site *models.Site, pageID uuid.UUID,
	parentPath models.Path, text, html string, actor Actor,
) (*models.TreeComment, error) {
	if site.Settings.PostingDisabled {
		return nil, apperr.Forbidden("posting is disabled for this site")
	}
	locked, err := s.keeper.IsPageLocked(ctx, siteID, pageID)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, apperr.Forbidden("posting is disabled for this page")
	}
	if actor.Anonymous && !site.Settings.AnonymousPosting {
		return nil, apperr.Unauthorized("anonymous posting is not enabled for this site")
	}
	if len(text) > site.Settings.MaxCommentLength {
		return nil, apperr.BadRequest("comment exceeds the maximum length for this site")
	}

	authorID := actor.UserID
	authorName := actor.Name
	authorAvatar := actor.Avatar
	authorKarma := actor.Karma
	if actor.Anonymous {
		authorID = models.AnonymousUserSentinel
		authorName = "Anonymous"
		authorAvatar = ""
		authorKarma = 0
	}

	comment := &models.TreeComment{
		ID:           models.NewCommentID(),
		AuthorID:     authorID,
		AuthorName:   authorName,
		AuthorAvatar: authorAvatar,
		AuthorKarma:  authorKarma,
		Text:         text,
		HTML:         html,
		Upvotes:      0,
		Downvotes:    0,
		Upvoters:     []uuid.UUID{},
		Downvoters:   []uuid.UUID{},
		CreatedAtMs:  time.Now().UnixMilli(),
		Children:     []*models.TreeComment{},
	}

	if _, err := s.engine.Create(ctx, siteID, pageID, parentPath, comment, site.Settings.ModerationMode); err != nil {
		return nil, err
	}
	return comment, nil
}

// Edit updates a comment's text. Only the author, or a moderator-or-above,
// may edit.
func (s *CommentService) Edit(ctx context.Context, pageID uuid.UUID, path models.Path, text, html string, actor Actor) (*models.TreeComment, error) {
	tree, err := s.engine.Edit(ctx, pageID, path, text, html, actor.editor())
	if err != nil {
		return nil, err
	}
	node, err := pagetree.Locate(tree, path)
	if err != nil {
		return nil, err
	}
	return node, nil
}

// Delete tombstones a comment. Only the author, or a moderator-or-above, may
// delete.
func (s *CommentService) Delete(ctx context.Context, pageID uuid.UUID, path models.Path, actor Actor) error {
	_, err := s.engine.Delete(ctx, pageID, path, actor.editor())
	return err
}

// Vote applies a vote transition and returns the resulting counters.
func (s *CommentService) Vote(
	ctx context.Context, siteID, pageID uuid.UUID, path models.Path, direction models.VoteDirection, actor Actor,
) (pagetree.VoteResult, error) {
	if !actor.HasUser {
		return pagetree.VoteResult{}, apperr.Unauthorized("voting requires an account")
	}
	if direction != models.VoteUp && direction != models.VoteDown {
		return pagetree.VoteResult{}, apperr.BadRequest("direction must be \"up\" or \"down\"")
	}
	return s.engine.Vote(ctx, siteID, actor.UserID, pageID, path, direction)
}

// Report files a report against a comment.
func (s *CommentService) Report(ctx context.Context, siteID, pageID uuid.UUID, path models.Path, reason, details string, actor Actor) error {
	if !actor.HasUser {
		return apperr.Unauthorized("reporting requires an account")
	}
	return s.engine.Report(ctx, siteID, actor.UserID, pageID, path, reason, details)
}
