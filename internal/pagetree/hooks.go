package pagetree

import (
	"context"

	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/models"
)

// Editor identifies the actor performing an edit/delete/vote, carrying just
// enough to resolve the author-or-moderator permission checks.
type Editor struct {
	UserID uuid.UUID
	Role   models.Role
}

// Hooks is implemented by the index keeper: the engine calls back into it
// after a successful structural mutation so the secondary indexes stay
// consistent with the tree document. Defined here (not in the index
// package) so pagetree has no import on index and the two can be wired
// together by internal/bootstrap without a cycle.
type Hooks interface {
	CommentCreated(ctx context.Context, siteID, pageID uuid.UUID, c *models.TreeComment) error
	CommentDeleted(ctx context.Context, pageID uuid.UUID, c *models.TreeComment) error
	VoteApplied(ctx context.Context, siteID uuid.UUID, authorID uuid.UUID, commentID uuid.UUID, deltaKarma int64) error
	Reported(ctx context.Context, siteID uuid.UUID, report models.Report) error
	ModerationQueued(ctx context.Context, siteID, pageID uuid.UUID, c *models.TreeComment) error
	ModerationResolved(ctx context.Context, siteID, commentID uuid.UUID) error
}

// EventPublisher is implemented by internal/events.Publisher: the engine
// emits exactly one domain event per structural mutation.
type EventPublisher interface {
	Publish(ctx context.Context, pageID uuid.UUID, event models.DomainEvent) error
}

// noopHooks/noopPublisher let tests exercise the engine without wiring a
// full index keeper or publisher.
type noopHooks struct{}

func (noopHooks) CommentCreated(context.Context, uuid.UUID, uuid.UUID, *models.TreeComment) error {
	return nil
}
func (noopHooks) CommentDeleted(context.Context, uuid.UUID, *models.TreeComment) error { return nil }
func (noopHooks) VoteApplied(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, int64) error {
	return nil
}
func (noopHooks) Reported(context.Context, uuid.UUID, models.Report) error { return nil }
func (noopHooks) ModerationQueued(context.Context, uuid.UUID, uuid.UUID, *models.TreeComment) error {
	return nil
}
func (noopHooks) ModerationResolved(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, uuid.UUID, models.DomainEvent) error { return nil }
