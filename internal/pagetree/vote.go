package pagetree

import (
	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/models"
)

// voteTransition is one row of the 3×3 vote state machine.
type voteTransition struct {
	final           models.VoteDirection
	deltaUpvotes    int
	deltaDownvotes  int
	deltaKarma      int64
}

// transitions maps (current, requested) -> outcome.
var transitions = map[models.VoteDirection]map[models.VoteDirection]voteTransition{
	models.VoteNone: {
		models.VoteUp:   {models.VoteUp, 1, 0, 1},
		models.VoteDown: {models.VoteDown, 0, 1, -1},
	},
	models.VoteUp: {
		models.VoteUp:   {models.VoteNone, -1, 0, -1},
		models.VoteDown: {models.VoteDown, -1, 1, -2},
	},
	models.VoteDown: {
		models.VoteDown: {models.VoteNone, 0, -1, 1},
		models.VoteUp:   {models.VoteUp, 1, -1, 2},
	},
}

// applyVoteTransition mutates the comment's u/d/v/w fields in place per the
// resolved transition and returns that transition row, including its karma
// delta. It does not check for self-votes; callers skip the karma delta
// when voter == author.
func applyVoteTransition(c *models.TreeComment, voterID uuid.UUID, requested models.VoteDirection) (outcome voteTransition) {
	current := c.HasVoted(voterID)
	outcome = transitions[current][requested]

	c.Upvoters = removeID(c.Upvoters, voterID)
	c.Downvoters = removeID(c.Downvoters, voterID)

	switch outcome.final {
	case models.VoteUp:
		c.Upvoters = append(c.Upvoters, voterID)
	case models.VoteDown:
		c.Downvoters = append(c.Downvoters, voterID)
	}

	c.Upvotes = len(c.Upvoters)
	c.Downvotes = len(c.Downvoters)
	return outcome
}

func removeID(ids []uuid.UUID, target uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return ids
	}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
