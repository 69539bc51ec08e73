package pagetree

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/models"
)

// PublicComment is the wire shape returned to API clients: votes are
// summarized as counts (the internal v/w voter-id arrays are stripped),
// and viewer-relative fields (whether the viewer blocked the author, the
// viewer's own vote) are attached.
type PublicComment struct {
	ID          uuid.UUID        `json:"id"`
	AuthorID    uuid.UUID        `json:"author_id"`
	AuthorName  string           `json:"author_name"`
	Avatar      string           `json:"avatar_url,omitempty"`
	AuthorKarma int64            `json:"author_karma"`
	Text        string           `json:"text"`
	HTML        string           `json:"html"`
	Upvotes     int              `json:"upvotes"`
	Downvotes   int              `json:"downvotes"`
	CreatedAtMs int64            `json:"created_at_ms"`
	ModifiedMs  int64            `json:"modified_at_ms,omitempty"`
	Status      models.CommentStatus `json:"status,omitempty"`
	EditedByMod bool             `json:"edited_by_mod,omitempty"`
	Hidden      bool             `json:"hidden,omitempty"`
	ViewerVote  models.VoteDirection `json:"viewer_vote,omitempty"`
	Replies     []*PublicComment `json:"replies"`
}

// Viewer carries the identity and relationships needed to filter/annotate
// the public view.
type Viewer struct {
	UserID        uuid.UUID
	HasUser       bool
	Blocked       map[uuid.UUID]bool
	IsModerator   bool
}

// SortAndSlice materializes the public view for a page: filters blocked
// authors (replaced with a hidden marker preserving threading), hides
// rejected comments entirely, shows shadowbanned authors' comments only to
// themselves, sorts by the requested order, then paginates the *top-level*
// comment list (replies always nest under their parent, per SPEC_FULL.md's
// resolution of Open Question #2).
func SortAndSlice(
	tree *models.PageTree, order models.SortOrder, offset, limit int, viewer Viewer, shadowbanned map[uuid.UUID]bool, now time.Time,
) ([]*PublicComment, int) {
	if tree == nil {
		return []*PublicComment{}, 0
	}

	roots := make([]*PublicComment, 0, len(tree.Comments))
	for _, c := range tree.Comments {
		pc := materialize(c, viewer, shadowbanned, now)
		if pc == nil {
			continue
		}
		roots = append(roots, pc)
	}

	sortComments(roots, order, now)
	total := len(roots)

	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*PublicComment{}, total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return roots[offset:end], total
}

// materialize converts one TreeComment (and its subtree) into the public
// view, or nil if it should be omitted entirely (rejected comments, a
// pending comment viewed by anyone but its author or a moderator, or a
// shadowbanned author's comment viewed by anyone but themselves).
func materialize(c *models.TreeComment, viewer Viewer, shadowbanned map[uuid.UUID]bool, now time.Time) *PublicComment {
	if c.Status == models.StatusRejected {
		return nil
	}

	isSelf := viewer.HasUser && viewer.UserID == c.AuthorID

	if c.Status == models.StatusPending && !isSelf && !viewer.IsModerator {
		return nil
	}

	if shadowbanned[c.AuthorID] && !isSelf {
		return nil
	}

	replies := make([]*PublicComment, 0, len(c.Children))
	for _, child := range c.Children {
		pc := materialize(child, viewer, shadowbanned, now)
		if pc != nil {
			replies = append(replies, pc)
		}
	}
	sortComments(replies, models.SortNew, now)

	if viewer.Blocked[c.AuthorID] {
		return &PublicComment{
			ID:          c.ID,
			Hidden:      true,
			CreatedAtMs: c.CreatedAtMs,
			Replies:     replies,
		}
	}

	pc := &PublicComment{
		ID:          c.ID,
		AuthorID:    c.AuthorID,
		AuthorName:  c.AuthorName,
		Avatar:      c.AuthorAvatar,
		AuthorKarma: c.AuthorKarma,
		Text:        c.Text,
		HTML:        c.HTML,
		Upvotes:     c.Upvotes,
		Downvotes:   c.Downvotes,
		CreatedAtMs: c.CreatedAtMs,
		ModifiedMs:  c.ModifiedAtMs,
		Status:      c.Status,
		EditedByMod: c.EditedByMod,
		Replies:     replies,
	}
	if viewer.HasUser {
		pc.ViewerVote = c.HasVoted(viewer.UserID)
	}
	return pc
}

func sortComments(list []*PublicComment, order models.SortOrder, now time.Time) {
	switch order {
	case models.SortTop:
		sort.SliceStable(list, func(i, j int) bool {
			return score(list[i]) > score(list[j])
		})
	case models.SortHot:
		sort.SliceStable(list, func(i, j int) bool {
			return hotScore(list[i], now) > hotScore(list[j], now)
		})
	default: // SortNew
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].CreatedAtMs > list[j].CreatedAtMs
		})
	}
}

func score(c *PublicComment) int {
	return c.Upvotes - c.Downvotes
}

// hotScore ranks by `(u − d) / max(1, age_hours)^1.8`.
func hotScore(c *PublicComment, now time.Time) float64 {
	ageHours := now.Sub(time.UnixMilli(c.CreatedAtMs)).Hours()
	if ageHours < 1 {
		ageHours = 1
	}
	return float64(score(c)) / math.Pow(ageHours, 1.8)
}
