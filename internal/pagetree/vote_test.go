package pagetree

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/usethreadkit/threadkit/internal/models"
)

func TestApplyVoteTransition_NoneToUp(t *testing.T) {
	c := newComment(uuid.New(), "x")
	voter := uuid.New()

	outcome := applyVoteTransition(c, voter, models.VoteUp)
	require.Equal(t, models.VoteUp, outcome.final)
	require.Equal(t, int64(1), outcome.deltaKarma)
	require.Equal(t, 1, c.Upvotes)
	require.Equal(t, 0, c.Downvotes)
	require.Contains(t, c.Upvoters, voter)
}

func TestApplyVoteTransition_UpToUpCancels(t *testing.T) {
	c := newComment(uuid.New(), "x")
	voter := uuid.New()

	applyVoteTransition(c, voter, models.VoteUp)
	outcome := applyVoteTransition(c, voter, models.VoteUp)

	require.Equal(t, models.VoteNone, outcome.final)
	require.Equal(t, int64(-1), outcome.deltaKarma)
	require.Equal(t, 0, c.Upvotes)
	require.NotContains(t, c.Upvoters, voter)
}

func TestApplyVoteTransition_UpToDownFlips(t *testing.T) {
	c := newComment(uuid.New(), "x")
	voter := uuid.New()

	applyVoteTransition(c, voter, models.VoteUp)
	outcome := applyVoteTransition(c, voter, models.VoteDown)

	require.Equal(t, models.VoteDown, outcome.final)
	require.Equal(t, int64(-2), outcome.deltaKarma)
	require.Equal(t, 0, c.Upvotes)
	require.Equal(t, 1, c.Downvotes)
	require.Contains(t, c.Downvoters, voter)
	require.NotContains(t, c.Upvoters, voter)
}

func TestApplyVoteTransition_DownToDownCancels(t *testing.T) {
	c := newComment(uuid.New(), "x")
	voter := uuid.New()

	applyVoteTransition(c, voter, models.VoteDown)
	outcome := applyVoteTransition(c, voter, models.VoteDown)

	require.Equal(t, models.VoteNone, outcome.final)
	require.Equal(t, int64(1), outcome.deltaKarma)
	require.Equal(t, 0, c.Downvotes)
}

func TestApplyVoteTransition_DownToUpFlips(t *testing.T) {
	c := newComment(uuid.New(), "x")
	voter := uuid.New()

	applyVoteTransition(c, voter, models.VoteDown)
	outcome := applyVoteTransition(c, voter, models.VoteUp)

	require.Equal(t, models.VoteUp, outcome.final)
	require.Equal(t, int64(2), outcome.deltaKarma)
	require.Equal(t, 1, c.Upvotes)
	require.Equal(t, 0, c.Downvotes)
}

func TestApplyVoteTransition_DistinctVotersIndependent(t *testing.T) {
	c := newComment(uuid.New(), "x")
	alice := uuid.New()
	bob := uuid.New()

	applyVoteTransition(c, alice, models.VoteUp)
	applyVoteTransition(c, bob, models.VoteDown)

	require.Equal(t, 1, c.Upvotes)
	require.Equal(t, 1, c.Downvotes)
	require.Contains(t, c.Upvoters, alice)
	require.Contains(t, c.Downvoters, bob)
}
