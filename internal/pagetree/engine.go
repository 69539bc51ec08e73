package pagetree

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/locking"
	"github.com/usethreadkit/threadkit/internal/models"
)

// Engine is the single source of truth for comment thread structure and
// contents. One Engine is shared by every handler in a process; it carries
// no per-request state.
type Engine struct {
	rdb       *redis.Client
	hooks     Hooks
	publisher EventPublisher
}

// New constructs an Engine. hooks/publisher may be nil, in which case the
// engine runs with no-op index updates and event emission (used in tests
// that only exercise tree mechanics).
func New(rdb *redis.Client, hooks Hooks, publisher EventPublisher) *Engine {
	if hooks == nil {
		hooks = noopHooks{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Engine{rdb: rdb, hooks: hooks, publisher: publisher}
}

// Load fetches the tree document for a page. A missing page returns
// (nil, nil) rather than an error.
func (e *Engine) Load(ctx context.Context, pageID uuid.UUID) (*models.PageTree, error) {
	raw, err := e.rdb.Get(ctx, cache.PageTreeKey(pageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	var tree models.PageTree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, apperr.Internal(err)
	}
	return &tree, nil
}

func (e *Engine) save(ctx context.Context, pageID uuid.UUID, tree *models.PageTree) error {
	tree.UpdatedAt = time.Now().UnixMilli()
	raw, err := json.Marshal(tree)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := e.rdb.Set(ctx, cache.PageTreeKey(pageID), raw, 0).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// withLock loads the tree, runs fn against a mutable clone, saves the result
// if fn succeeds, and always releases the per-page lock.
func (e *Engine) withLock(ctx context.Context, pageID uuid.UUID, fn func(tree *models.PageTree) error) (*models.PageTree, error) {
	lock, err := locking.Acquire(ctx, e.rdb, pageID)
	if err != nil {
		return nil, err
	}
	defer lock.Release(ctx)

	tree, err := e.Load(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		tree = models.NewPageTree()
	}
	working := tree.Clone()

	if err := fn(working); err != nil {
		return nil, err
	}
	if err := e.save(ctx, pageID, working); err != nil {
		return nil, err
	}
	return working, nil
}

// Create appends a new comment to the addressed parent's children (or to
// the tree root when parentPath is empty) and returns the updated tree.
func (e *Engine) Create(
	ctx context.Context,
	siteID, pageID uuid.UUID,
	parentPath models.Path,
	comment *models.TreeComment,
	mode models.ModerationMode,
) (*models.PageTree, error) {
	if err := validatePath(parentPath); err != nil {
		return nil, err
	}

	if mode == models.ModerationPre {
		comment.Status = models.StatusPending
	}

	tree, err := e.withLock(ctx, pageID, func(tree *models.PageTree) error {
		owner, err := childrenSliceFor(tree, parentPath)
		if err != nil {
			return err
		}
		*owner = append(*owner, comment)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.hooks.CommentCreated(ctx, siteID, pageID, comment); err != nil {
		return nil, err
	}
	if comment.Status == models.StatusPending {
		if err := e.hooks.ModerationQueued(ctx, siteID, pageID, comment); err != nil {
			return nil, err
		}
	}

	fullPath := append(append(models.Path{}, parentPath...), comment.ID)
	e.publishComment(ctx, pageID, models.EventTypeNewComment, comment, fullPath)
	return tree, nil
}

// Edit updates a comment's text/html. Only the author or a moderator-or-
// above may edit; a moderator edit is flagged EditedByMod.
func (e *Engine) Edit(
	ctx context.Context, pageID uuid.UUID, path models.Path, newText, newHTML string, editor Editor,
) (*models.PageTree, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	var edited *models.TreeComment
	tree, err := e.withLock(ctx, pageID, func(tree *models.PageTree) error {
		node, err := Locate(tree, path)
		if err != nil {
			return err
		}
		if node.AuthorID != editor.UserID && !editor.Role.IsAtLeast(models.RoleModerator) {
			return apperr.Forbidden("only the author or a moderator may edit this comment")
		}

		node.Text = newText
		node.HTML = newHTML
		node.ModifiedAtMs = time.Now().UnixMilli()
		if node.AuthorID != editor.UserID {
			node.EditedByMod = true
		}
		edited = node
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publishComment(ctx, pageID, models.EventTypeEditComment, edited, path)
	return tree, nil
}

// Delete tombstones a comment in place, preserving replies and counters —
// a tombstone, not a removal.
func (e *Engine) Delete(
	ctx context.Context, pageID uuid.UUID, path models.Path, deleter Editor,
) (*models.PageTree, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	var deleted *models.TreeComment
	tree, err := e.withLock(ctx, pageID, func(tree *models.PageTree) error {
		node, err := Locate(tree, path)
		if err != nil {
			return err
		}
		if node.AuthorID != deleter.UserID && !deleter.Role.IsAtLeast(models.RoleModerator) {
			return apperr.Forbidden("only the author or a moderator may delete this comment")
		}
		node.Tombstone()
		deleted = node
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.hooks.CommentDeleted(ctx, pageID, deleted); err != nil {
		return nil, err
	}

	e.publishComment(ctx, pageID, models.EventTypeDeleteComment, deleted, path)
	return tree, nil
}

// Moderate applies an approve/reject transition to a pending comment.
func (e *Engine) Moderate(
	ctx context.Context, siteID, pageID uuid.UUID, path models.Path, approve bool, moderator Editor,
) (*models.PageTree, error) {
	if !moderator.Role.IsAtLeast(models.RoleModerator) {
		return nil, apperr.Forbidden("moderator role required")
	}

	var target *models.TreeComment
	tree, err := e.withLock(ctx, pageID, func(tree *models.PageTree) error {
		node, err := Locate(tree, path)
		if err != nil {
			return err
		}
		if approve {
			node.Status = models.StatusApproved
		} else {
			node.Status = models.StatusRejected
			node.Tombstone()
		}
		target = node
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.hooks.ModerationResolved(ctx, siteID, target.ID); err != nil {
		return nil, err
	}
	e.publishComment(ctx, pageID, models.EventTypeModerationChange, target, path)
	return tree, nil
}

// VoteResult is the outcome returned to callers so they can publish a
// vote_update event with the final counters and deltas.
type VoteResult struct {
	Final     models.VoteDirection
	Upvotes   int
	Downvotes int
	DeltaUp   int
	DeltaDown int
}

// Vote performs the atomic vote transition, all under the page lock: reads
// the current vote, computes the transition,
// writes the new vote state, updates u/d/v/w, and adjusts the author's
// karma. Self-votes flip the counters but never move karma.
func (e *Engine) Vote(
	ctx context.Context, siteID, userID, pageID uuid.UUID, path models.Path, direction models.VoteDirection,
) (VoteResult, error) {
	if err := validatePath(path); err != nil {
		return VoteResult{}, err
	}

	var result VoteResult
	var authorID uuid.UUID
	var deltaKarma int64

	tree, err := e.withLock(ctx, pageID, func(tree *models.PageTree) error {
		node, err := Locate(tree, path)
		if err != nil {
			return err
		}
		if node.Status == models.StatusRejected {
			return apperr.NotFound("comment", path[len(path)-1])
		}

		outcome := applyVoteTransition(node, userID, direction)
		result = VoteResult{
			Final:     outcome.final,
			Upvotes:   node.Upvotes,
			Downvotes: node.Downvotes,
			DeltaUp:   outcome.deltaUpvotes,
			DeltaDown: outcome.deltaDownvotes,
		}
		authorID = node.AuthorID
		if authorID != userID {
			deltaKarma = outcome.deltaKarma
			node.AuthorKarma += deltaKarma
		}
		return nil
	})
	if err != nil {
		return VoteResult{}, err
	}
	_ = tree

	voteKey := cache.VoteKey(userID, path[len(path)-1])
	if result.Final == models.VoteNone {
		e.rdb.Del(ctx, voteKey)
		e.rdb.SRem(ctx, cache.UserVotesKey(userID), path[len(path)-1].String())
	} else {
		e.rdb.Set(ctx, voteKey, string(result.Final), 0)
		e.rdb.SAdd(ctx, cache.UserVotesKey(userID), path[len(path)-1].String())
	}

	if err := e.hooks.VoteApplied(ctx, siteID, authorID, path[len(path)-1], deltaKarma); err != nil {
		return VoteResult{}, err
	}

	e.publishVote(ctx, pageID, path, result)
	return result, nil
}

// TombstoneAuthor tombstones one comment by id, without requiring its full
// path or an editor permission check — used by account erasure, which only
// has a bare comment id recovered from the author's comment set. deletedBy
// is the erased user's own id, used only to locate the comment; the node's
// AuthorID always ends up as the DELETED_USER sentinel, never deletedBy.
func (e *Engine) TombstoneAuthor(ctx context.Context, pageID uuid.UUID, commentID, deletedBy uuid.UUID) error {
	var deleted *models.TreeComment
	var path models.Path
	_, err := e.withLock(ctx, pageID, func(tree *models.PageTree) error {
		p, node, ok := findByID(tree.Comments, commentID, nil)
		if !ok {
			return apperr.NotFound("comment", commentID)
		}
		node.Tombstone()
		deleted = node
		path = p
		return nil
	})
	if err != nil {
		return err
	}
	if err := e.hooks.CommentDeleted(ctx, pageID, deleted); err != nil {
		return err
	}
	e.publishComment(ctx, pageID, models.EventTypeDeleteComment, deleted, path)
	return nil
}

// ReverseVote cancels a user's existing vote on a comment, mirroring the
// same-direction-cancels transition a normal re-vote would take. Used by
// account erasure to unwind a user's cast votes site-wide.
func (e *Engine) ReverseVote(ctx context.Context, pageID uuid.UUID, commentID, voterID uuid.UUID) error {
	var authorID uuid.UUID
	var deltaKarma int64
	var path models.Path
	var result *VoteResult
	_, err := e.withLock(ctx, pageID, func(tree *models.PageTree) error {
		p, node, ok := findByID(tree.Comments, commentID, nil)
		if !ok {
			return apperr.NotFound("comment", commentID)
		}
		current := node.HasVoted(voterID)
		if current == models.VoteNone {
			authorID = node.AuthorID
			return nil
		}
		outcome := applyVoteTransition(node, voterID, current)
		authorID = node.AuthorID
		path = p
		result = &VoteResult{Final: outcome.final, Upvotes: node.Upvotes, Downvotes: node.Downvotes,
			DeltaUp: outcome.deltaUpvotes, DeltaDown: outcome.deltaDownvotes}
		if authorID != voterID {
			deltaKarma = outcome.deltaKarma
			node.AuthorKarma += deltaKarma
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := e.hooks.VoteApplied(ctx, uuid.Nil, authorID, commentID, deltaKarma); err != nil {
		return err
	}
	if result != nil {
		e.publishVote(ctx, pageID, path, *result)
	}
	return nil
}

// Report appends a report to the site's report queue.
func (e *Engine) Report(
	ctx context.Context, siteID, reporterID, pageID uuid.UUID, path models.Path, reason, details string,
) error {
	if err := validatePath(path); err != nil {
		return err
	}
	tree, err := e.Load(ctx, pageID)
	if err != nil {
		return err
	}
	if tree == nil {
		return apperr.NotFound("page", pageID)
	}
	if _, err := Locate(tree, path); err != nil {
		return err
	}

	report := models.Report{
		ReporterID: reporterID,
		PageID:     pageID,
		CommentID:  path[len(path)-1],
		Reason:     reason,
		Details:    details,
		CreatedAt:  time.Now(),
	}
	return e.hooks.Reported(ctx, siteID, report)
}
