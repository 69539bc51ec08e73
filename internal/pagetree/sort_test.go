package pagetree

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/usethreadkit/threadkit/internal/models"
)

func treeWith(comments ...*models.TreeComment) *models.PageTree {
	return &models.PageTree{Comments: comments}
}

func TestSortAndSlice_NilTree(t *testing.T) {
	list, total := SortAndSlice(nil, models.SortNew, 0, 10, Viewer{}, nil, time.Now())
	require.Empty(t, list)
	require.Equal(t, 0, total)
}

func TestSortAndSlice_RejectedOmitted(t *testing.T) {
	c := newComment(uuid.New(), "spam")
	c.Status = models.StatusRejected
	tree := treeWith(c)

	list, total := SortAndSlice(tree, models.SortNew, 0, 10, Viewer{}, nil, time.Now())
	require.Empty(t, list)
	require.Equal(t, 0, total)
}

func TestSortAndSlice_PendingHiddenFromOtherViewers(t *testing.T) {
	author := uuid.New()
	c := newComment(author, "awaiting approval")
	c.Status = models.StatusPending
	tree := treeWith(c)

	list, total := SortAndSlice(tree, models.SortNew, 0, 10, Viewer{}, nil, time.Now())
	require.Empty(t, list)
	require.Equal(t, 0, total)

	other := Viewer{UserID: uuid.New(), HasUser: true}
	list, total = SortAndSlice(tree, models.SortNew, 0, 10, other, nil, time.Now())
	require.Empty(t, list)
	require.Equal(t, 0, total)
}

func TestSortAndSlice_PendingVisibleToAuthorAndModerator(t *testing.T) {
	author := uuid.New()
	c := newComment(author, "awaiting approval")
	c.Status = models.StatusPending
	tree := treeWith(c)

	authorViewer := Viewer{UserID: author, HasUser: true}
	list, total := SortAndSlice(tree, models.SortNew, 0, 10, authorViewer, nil, time.Now())
	require.Len(t, list, 1)
	require.Equal(t, 1, total)

	modViewer := Viewer{UserID: uuid.New(), HasUser: true, IsModerator: true}
	list, total = SortAndSlice(tree, models.SortNew, 0, 10, modViewer, nil, time.Now())
	require.Len(t, list, 1)
	require.Equal(t, 1, total)
}

func TestSortAndSlice_ShadowbannedHiddenFromOthers(t *testing.T) {
	author := uuid.New()
	c := newComment(author, "hi")
	tree := treeWith(c)
	shadow := map[uuid.UUID]bool{author: true}

	list, total := SortAndSlice(tree, models.SortNew, 0, 10, Viewer{}, shadow, time.Now())
	require.Empty(t, list)
	require.Equal(t, 0, total)
}

func TestSortAndSlice_ShadowbannedVisibleToSelf(t *testing.T) {
	author := uuid.New()
	c := newComment(author, "hi")
	tree := treeWith(c)
	shadow := map[uuid.UUID]bool{author: true}

	viewer := Viewer{UserID: author, HasUser: true}
	list, total := SortAndSlice(tree, models.SortNew, 0, 10, viewer, shadow, time.Now())
	require.Len(t, list, 1)
	require.Equal(t, 1, total)
}

func TestSortAndSlice_BlockedAuthorHiddenButRepliesKept(t *testing.T) {
	author := uuid.New()
	c := newComment(author, "rude")
	reply := newComment(uuid.New(), "response")
	c.Children = append(c.Children, reply)
	tree := treeWith(c)

	viewer := Viewer{UserID: uuid.New(), HasUser: true, Blocked: map[uuid.UUID]bool{author: true}}
	list, _ := SortAndSlice(tree, models.SortNew, 0, 10, viewer, nil, time.Now())
	require.Len(t, list, 1)
	require.True(t, list[0].Hidden)
	require.Empty(t, list[0].Text)
	require.Len(t, list[0].Replies, 1)
	require.Equal(t, reply.ID, list[0].Replies[0].ID)
}

func TestSortAndSlice_NewOrdersByRecency(t *testing.T) {
	older := newComment(uuid.New(), "older")
	older.CreatedAtMs = 1000
	newer := newComment(uuid.New(), "newer")
	newer.CreatedAtMs = 2000
	tree := treeWith(older, newer)

	list, _ := SortAndSlice(tree, models.SortNew, 0, 10, Viewer{}, nil, time.Now())
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)
	require.Equal(t, older.ID, list[1].ID)
}

func TestSortAndSlice_TopOrdersByScore(t *testing.T) {
	low := newComment(uuid.New(), "low")
	low.Upvotes = 1
	high := newComment(uuid.New(), "high")
	high.Upvotes = 10
	tree := treeWith(low, high)

	list, _ := SortAndSlice(tree, models.SortTop, 0, 10, Viewer{}, nil, time.Now())
	require.Equal(t, high.ID, list[0].ID)
	require.Equal(t, low.ID, list[1].ID)
}

func TestSortAndSlice_Pagination(t *testing.T) {
	a := newComment(uuid.New(), "a")
	a.CreatedAtMs = 1
	b := newComment(uuid.New(), "b")
	b.CreatedAtMs = 2
	c := newComment(uuid.New(), "c")
	c.CreatedAtMs = 3
	tree := treeWith(a, b, c)

	list, total := SortAndSlice(tree, models.SortNew, 1, 1, Viewer{}, nil, time.Now())
	require.Equal(t, 3, total)
	require.Len(t, list, 1)
	require.Equal(t, b.ID, list[0].ID)
}

func TestSortAndSlice_OffsetPastEndReturnsEmpty(t *testing.T) {
	c := newComment(uuid.New(), "only")
	tree := treeWith(c)

	list, total := SortAndSlice(tree, models.SortNew, 5, 10, Viewer{}, nil, time.Now())
	require.Empty(t, list)
	require.Equal(t, 1, total)
}
