// Package events publishes domain events onto the per-page Redis pub/sub
// channel the fanout nodes subscribe to.
package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
)

// Publisher implements pagetree.EventPublisher over a Redis PUBLISH.
type Publisher struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) Publish(ctx context.Context, pageID uuid.UUID, event models.DomainEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := p.rdb.Publish(ctx, cache.PageEventsChannel(pageID), raw).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
