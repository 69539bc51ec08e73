package index

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
)

type fakeMutator struct {
	tombstoned []uuid.UUID
	reversed   []uuid.UUID
}

func (m *fakeMutator) TombstoneAuthor(_ context.Context, _ uuid.UUID, commentID, _ uuid.UUID) error {
	m.tombstoned = append(m.tombstoned, commentID)
	return nil
}

func (m *fakeMutator) ReverseVote(_ context.Context, _ uuid.UUID, commentID, _ uuid.UUID) error {
	m.reversed = append(m.reversed, commentID)
	return nil
}

type fakeResolver struct {
	pages map[uuid.UUID]uuid.UUID
}

func (r *fakeResolver) PageForComment(_ context.Context, commentID uuid.UUID) (uuid.UUID, bool, error) {
	page, ok := r.pages[commentID]
	return page, ok, nil
}

func TestDeleteUser_TombstonesCommentsAndReversesVotes(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()

	siteID := uuid.New()
	userID := uuid.New()
	email := "erase-me@example.com"
	user := &models.User{ID: userID, Name: "erase-me", Email: email, CreatedAt: time.Now()}
	require.NoError(t, k.CreateUser(ctx, user))

	comment := &models.TreeComment{ID: models.NewCommentID(), AuthorID: userID, CreatedAtMs: time.Now().UnixMilli()}
	pageID := uuid.New()
	require.NoError(t, k.CommentCreated(ctx, uuid.New(), pageID, comment))

	votedComment := models.NewCommentID()
	votedPage := uuid.New()
	require.NoError(t, k.rdb.SAdd(ctx, "user:"+userID.String()+":votes", votedComment.String()).Err())

	mutator := &fakeMutator{}
	resolver := &fakeResolver{pages: map[uuid.UUID]uuid.UUID{
		comment.ID:   pageID,
		votedComment: votedPage,
	}}

	result, err := k.DeleteUser(ctx, siteID, userID, user, mutator, resolver)
	require.NoError(t, err)
	require.Equal(t, 1, result.CommentsDeleted)
	require.Equal(t, 1, result.VotesDeleted)
	require.Contains(t, mutator.tombstoned, comment.ID)
	require.Contains(t, mutator.reversed, votedComment)

	_, err = k.GetUser(ctx, userID)
	require.Error(t, err)

	found, ok, err := k.LookupByEmail(ctx, email)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, uuid.Nil, found)
}

func TestDeleteUser_RemovesSiteRoleMembership(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()

	siteID := uuid.New()
	userID := uuid.New()
	user := &models.User{ID: userID, Name: "mod-to-erase", CreatedAt: time.Now()}
	require.NoError(t, k.CreateUser(ctx, user))
	require.NoError(t, k.SetRole(ctx, siteID, userID, models.RoleModerator, true))
	require.NoError(t, k.SetBlocked(ctx, siteID, userID, true))
	require.NoError(t, k.SetShadowBanned(ctx, siteID, userID, true))

	mutator := &fakeMutator{}
	resolver := &fakeResolver{pages: map[uuid.UUID]uuid.UUID{}}

	_, err := k.DeleteUser(ctx, siteID, userID, user, mutator, resolver)
	require.NoError(t, err)

	isAdmin, err := k.rdb.SIsMember(ctx, cache.SiteAdminsKey(siteID), userID.String()).Result()
	require.NoError(t, err)
	require.False(t, isAdmin)

	isMod, err := k.rdb.SIsMember(ctx, cache.SiteModeratorsKey(siteID), userID.String()).Result()
	require.NoError(t, err)
	require.False(t, isMod)

	isBlocked, err := k.rdb.SIsMember(ctx, cache.SiteBlockedKey(siteID), userID.String()).Result()
	require.NoError(t, err)
	require.False(t, isBlocked)

	isShadowbanned, err := k.rdb.SIsMember(ctx, cache.SiteShadowbannedKey(siteID), userID.String()).Result()
	require.NoError(t, err)
	require.False(t, isShadowbanned)
}

func TestDeleteUser_ScrubsProviderAndWalletIndexes(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()

	siteID := uuid.New()
	userID := uuid.New()
	user := &models.User{ID: userID, Name: "oauth-user", CreatedAt: time.Now()}
	require.NoError(t, k.CreateUser(ctx, user))
	require.NoError(t, k.BindProvider(ctx, "google", "subject-123", userID))
	require.NoError(t, k.BindWallet(ctx, "ethereum", "0xabc", userID))

	mutator := &fakeMutator{}
	resolver := &fakeResolver{pages: map[uuid.UUID]uuid.UUID{}}

	_, err := k.DeleteUser(ctx, siteID, userID, user, mutator, resolver)
	require.NoError(t, err)

	found, ok, err := k.LookupByProvider(ctx, "google", "subject-123")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, uuid.Nil, found)

	found, ok, err = k.LookupByWallet(ctx, "ethereum", "0xabc")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, uuid.Nil, found)
}

func TestDeleteUser_SkipsUnresolvableComments(t *testing.T) {
	k, _ := newTestKeeper(t)
	ctx := context.Background()

	siteID := uuid.New()
	userID := uuid.New()
	user := &models.User{ID: userID, Name: "ghost", CreatedAt: time.Now()}
	require.NoError(t, k.CreateUser(ctx, user))

	orphanComment := models.NewCommentID()
	require.NoError(t, k.rdb.SAdd(ctx, "user:"+userID.String()+":comments", orphanComment.String()).Err())

	mutator := &fakeMutator{}
	resolver := &fakeResolver{pages: map[uuid.UUID]uuid.UUID{}}

	result, err := k.DeleteUser(ctx, siteID, userID, user, mutator, resolver)
	require.NoError(t, err)
	require.Equal(t, 0, result.CommentsDeleted)
	require.Empty(t, mutator.tombstoned)
}
