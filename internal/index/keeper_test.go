package index

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
)

func newTestKeeper(t *testing.T) (*Keeper, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), rdb
}

func TestCreateUser_ClaimsIdentityIndexes(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()

	u := &models.User{ID: uuid.New(), Name: "alice", Email: "alice@example.com", CreatedAt: time.Now()}
	require.NoError(t, k.CreateUser(ctx, u))

	found, ok, err := k.LookupByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, u.ID, found)

	found, ok, err = k.LookupByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, u.ID, found)
}

func TestGetUser_NotFoundForMissingUser(t *testing.T) {
	k, _ := newTestKeeper(t)
	_, err := k.GetUser(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestGetUser_RoundTripsFields(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()

	u := &models.User{ID: uuid.New(), Name: "bob", Karma: 5, CreatedAt: time.Now()}
	require.NoError(t, k.CreateUser(ctx, u))

	loaded, err := k.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "bob", loaded.Name)
	require.Equal(t, int64(5), loaded.Karma)
}

func TestCommentCreated_SkipsIndexingForAnonymousAuthor(t *testing.T) {
	k, rdb := newTestKeeper(t)
	ctx := context.Background()
	pageID := uuid.New()

	c := &models.TreeComment{ID: models.NewCommentID(), AuthorID: models.AnonymousUserSentinel}
	require.NoError(t, k.CommentCreated(ctx, uuid.New(), pageID, c))

	exists, err := rdb.Exists(ctx, cache.UserCommentsKey(models.AnonymousUserSentinel)).Result()
	require.NoError(t, err)
	require.Equal(t, int64(0), exists)

	resolvedPage, ok, err := k.PageForComment(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pageID, resolvedPage)
}

func TestVoteApplied_AdjustsKarma(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()

	author := uuid.New()
	require.NoError(t, k.CreateUser(ctx, &models.User{ID: author, Name: "author", CreatedAt: time.Now()}))
	require.NoError(t, k.VoteApplied(ctx, uuid.New(), author, uuid.New(), 3))

	loaded, err := k.GetUser(ctx, author)
	require.NoError(t, err)
	require.Equal(t, int64(3), loaded.Karma)
}

func TestVoteApplied_ZeroDeltaIsNoop(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()
	author := uuid.New()
	require.NoError(t, k.CreateUser(ctx, &models.User{ID: author, Name: "author", CreatedAt: time.Now()}))
	require.NoError(t, k.VoteApplied(ctx, uuid.New(), author, uuid.New(), 0))

	loaded, err := k.GetUser(ctx, author)
	require.NoError(t, err)
	require.Equal(t, int64(0), loaded.Karma)
}

func TestReported_DuplicateRejected(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()

	report := models.Report{
		ReporterID: uuid.New(),
		PageID:     uuid.New(),
		CommentID:  uuid.New(),
		Reason:     "spam",
		CreatedAt:  time.Now(),
	}
	require.NoError(t, k.Reported(ctx, uuid.New(), report))

	err := k.Reported(ctx, uuid.New(), report)
	require.Error(t, err)
}

func TestBlockUnblock_Symmetric(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	require.NoError(t, k.Block(ctx, alice, bob))

	blocked, err := k.BlockedSet(ctx, alice)
	require.NoError(t, err)
	require.True(t, blocked[bob])

	require.NoError(t, k.Unblock(ctx, alice, bob))
	blocked, err = k.BlockedSet(ctx, alice)
	require.NoError(t, err)
	require.False(t, blocked[bob])
}

func TestSetShadowBanned_TogglesSiteSet(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()
	siteID := uuid.New()
	userID := uuid.New()

	require.NoError(t, k.SetShadowBanned(ctx, siteID, userID, true))
	set, err := k.ShadowbannedSet(ctx, siteID)
	require.NoError(t, err)
	require.True(t, set[userID])

	require.NoError(t, k.SetShadowBanned(ctx, siteID, userID, false))
	set, err = k.ShadowbannedSet(ctx, siteID)
	require.NoError(t, err)
	require.False(t, set[userID])
}

func TestSetPageLocked_TogglesSiteSet(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()
	siteID := uuid.New()
	pageID := uuid.New()

	locked, err := k.IsPageLocked(ctx, siteID, pageID)
	require.NoError(t, err)
	require.False(t, locked)

	require.NoError(t, k.SetPageLocked(ctx, siteID, pageID, true))
	locked, err = k.IsPageLocked(ctx, siteID, pageID)
	require.NoError(t, err)
	require.True(t, locked)

	require.NoError(t, k.SetPageLocked(ctx, siteID, pageID, false))
	locked, err = k.IsPageLocked(ctx, siteID, pageID)
	require.NoError(t, err)
	require.False(t, locked)
}

func TestIncrementPageViews_Accumulates(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()
	pageID := uuid.New()

	views, err := k.PageViews(ctx, pageID)
	require.NoError(t, err)
	require.Equal(t, int64(0), views)

	require.NoError(t, k.IncrementPageViews(ctx, pageID))
	require.NoError(t, k.IncrementPageViews(ctx, pageID))
	views, err = k.PageViews(ctx, pageID)
	require.NoError(t, err)
	require.Equal(t, int64(2), views)
}

func TestModerationQueued_ResolvedRemovesEntry(t *testing.T) {
	k, rdb := newTestKeeper(t)
	ctx := context.Background()
	siteID := uuid.New()
	pageID := uuid.New()

	c := &models.TreeComment{ID: models.NewCommentID(), CreatedAtMs: time.Now().UnixMilli()}
	require.NoError(t, k.ModerationQueued(ctx, siteID, pageID, c))

	count, err := rdb.ZCard(ctx, cache.SiteModQueueKey(siteID)).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	require.NoError(t, k.ModerationResolved(ctx, siteID, c.ID))
	count, err = rdb.ZCard(ctx, cache.SiteModQueueKey(siteID)).Result()
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}
