package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CommentStatus mirrors TreeComment's "s" key. Absent == approved.
type CommentStatus string

const (
	StatusPending  CommentStatus = "pending"
	StatusApproved CommentStatus = "approved"
	StatusRejected CommentStatus = "rejected"
)

// SortOrder is a tagged sum type for the public listing sort.
type SortOrder string

const (
	SortNew SortOrder = "new"
	SortTop SortOrder = "top"
	SortHot SortOrder = "hot"
)

// VoteDirection is a tagged sum type for vote requests.
type VoteDirection string

const (
	VoteNone VoteDirection = "none"
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// TreeComment uses compact single-letter JSON keys to keep the per-page
// document small. The Go field names stay descriptive; only the wire tags
// are abbreviated.
type TreeComment struct {
	ID           uuid.UUID      `json:"i"`
	AuthorID     uuid.UUID      `json:"a"`
	AuthorName   string         `json:"n"`
	AuthorAvatar string         `json:"p,omitempty"`
	AuthorKarma  int64          `json:"k"`
	Text         string         `json:"t"`
	HTML         string         `json:"h"`
	Upvotes      int            `json:"u"`
	Downvotes    int            `json:"d"`
	Upvoters     []uuid.UUID    `json:"v"`
	Downvoters   []uuid.UUID    `json:"w"`
	CreatedAtMs  int64          `json:"x"`
	ModifiedAtMs int64          `json:"m"`
	Status       CommentStatus  `json:"s,omitempty"`
	EditedByMod  bool           `json:"em,omitempty"`
	Children     []*TreeComment `json:"r"`
}

// PageTree is the single JSON document at page:{page_id}:tree.
type PageTree struct {
	Comments  []*TreeComment `json:"c"`
	UpdatedAt int64          `json:"u"`
}

// Path addresses a node as the ordered list of ancestor ids from root to
// target, inclusive.
type Path []uuid.UUID

// Clone deep-copies the tree so callers can mutate the copy under the page
// lock and discard it on failure without touching the cached original.
func (t *PageTree) Clone() *PageTree {
	raw, err := json.Marshal(t)
	if err != nil {
		return &PageTree{Comments: []*TreeComment{}}
	}
	var out PageTree
	if err := json.Unmarshal(raw, &out); err != nil {
		return &PageTree{Comments: []*TreeComment{}}
	}
	return &out
}

// NewPageTree returns an empty tree for a page with no comments yet.
func NewPageTree() *PageTree {
	return &PageTree{Comments: []*TreeComment{}, UpdatedAt: time.Now().UnixMilli()}
}

// IsDeleted reports whether a comment has been tombstoned.
func (c *TreeComment) IsDeleted() bool {
	return c.AuthorID == DeletedUserSentinel
}

// IsAnonymous reports whether a comment was posted anonymously.
func (c *TreeComment) IsAnonymous() bool {
	return c.AuthorID == AnonymousUserSentinel
}

// Tombstone replaces author-identifying fields, preserving Children, vote
// counters, and timestamps.
func (c *TreeComment) Tombstone() {
	c.AuthorID = DeletedUserSentinel
	c.AuthorName = "[deleted]"
	c.AuthorAvatar = ""
	c.Text = ""
	c.HTML = ""
}

// HasVoted reports which direction userID has on this comment, if any.
func (c *TreeComment) HasVoted(userID uuid.UUID) VoteDirection {
	for _, u := range c.Upvoters {
		if u == userID {
			return VoteUp
		}
	}
	for _, u := range c.Downvoters {
		if u == userID {
			return VoteDown
		}
	}
	return VoteNone
}
