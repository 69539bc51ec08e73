package pagetree

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/models"
)

// commentEventData is the `data` payload for new/edit/delete/moderation
// events — enough for a client to patch its local view.
type commentEventData struct {
	CommentID string         `json:"comment_id"`
	Path      []string       `json:"path"`
	Comment   *models.TreeComment `json:"comment,omitempty"`
}

// voteEventData is the `data` payload for vote_update events.
type voteEventData struct {
	CommentID string `json:"comment_id"`
	Path      []string `json:"path"`
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
}

func pathStrings(path models.Path) []string {
	out := make([]string, len(path))
	for i, id := range path {
		out[i] = id.String()
	}
	return out
}

// publishComment emits a structural-mutation event. fullPath must already
// include the comment's own id as its last element.
func (e *Engine) publishComment(ctx context.Context, pageID uuid.UUID, eventType models.DomainEventType, c *models.TreeComment, fullPath models.Path) {
	data, err := json.Marshal(commentEventData{
		CommentID: c.ID.String(),
		Path:      pathStrings(fullPath),
		Comment:   c,
	})
	if err != nil {
		log.Printf("pagetree: failed to marshal event data: %v", err)
		return
	}
	e.publish(ctx, pageID, eventType, data)
}

func (e *Engine) publishVote(ctx context.Context, pageID uuid.UUID, path models.Path, result VoteResult) {
	commentID := path[len(path)-1]
	data, err := json.Marshal(voteEventData{
		CommentID: commentID.String(),
		Path:      pathStrings(path),
		Upvotes:   result.Upvotes,
		Downvotes: result.Downvotes,
	})
	if err != nil {
		log.Printf("pagetree: failed to marshal vote event data: %v", err)
		return
	}
	e.publish(ctx, pageID, models.EventTypeVoteUpdate, data)
}

func (e *Engine) publish(ctx context.Context, pageID uuid.UUID, eventType models.DomainEventType, data json.RawMessage) {
	event := models.DomainEvent{Type: eventType, PageID: pageID.String(), Data: data}
	if err := e.publisher.Publish(ctx, pageID, event); err != nil {
		log.Printf("pagetree: failed to publish %s event for page %s: %v", eventType, pageID, err)
	}
}
