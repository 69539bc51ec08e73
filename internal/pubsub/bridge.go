// Package pubsub bridges Redis PUBLISH traffic on the per-page event
// channels into a fanout hub's broadcast channels, so every fanout node
// behind the load balancer relays structural mutations regardless of which
// node the HTTP write landed on.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/models"
	"github.com/usethreadkit/threadkit/internal/observability"
)

// pagePattern matches every page events channel; see cache.PageEventsChannel.
const pagePattern = "threadkit:page:*:events"

var (
	errUnknownEventType = errors.New("unknown domain event type")
	errMalformedChannel = errors.New("malformed page events channel name")
)

// Broadcaster is the subset of fanout.Hub the bridge needs to relay frames.
type Broadcaster interface {
	Broadcast(pageID uuid.UUID, message []byte)
}

// Bridge owns a dedicated Redis connection subscribed to the page events
// pattern and forwards decoded domain events to a Broadcaster.
type Bridge struct {
	rdb    *redis.Client
	hub    Broadcaster
	logger *observability.FanoutLogger
}

func New(rdb *redis.Client, hub Broadcaster) *Bridge {
	return &Bridge{rdb: rdb, hub: hub, logger: observability.NewFanoutLogger()}
}

// Start subscribes and runs the forwarding loop until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) {
	sub := b.rdb.PSubscribe(ctx, pagePattern)
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.forward(ctx, msg.Channel, msg.Payload)
			}
		}
	}()
}

func (b *Bridge) forward(ctx context.Context, channel, payload string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.LogError(ctx, "bridge", "panic", panicErr(r, debug.Stack()))
		}
	}()

	pageID, err := pageIDFromChannel(channel)
	if err != nil {
		return
	}

	var event models.DomainEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		b.logger.LogError(ctx, "bridge", "decode", err)
		return
	}

	method, params, err := translate(event)
	if err != nil {
		return
	}
	raw, err := json.Marshal(models.NewMessage(method, params))
	if err != nil {
		return
	}
	b.hub.Broadcast(pageID, raw)
}

// translate maps a domain event onto its wire RPCMethod and passes the
// event's data through unchanged as the frame's params. Event types with no
// case here, moderation_change among them, return errUnknownEventType.
func translate(event models.DomainEvent) (models.RPCMethod, json.RawMessage, error) {
	switch event.Type {
	case models.EventTypeNewComment:
		return models.EventNewComment, event.Data, nil
	case models.EventTypeEditComment:
		return models.EventEditComment, event.Data, nil
	case models.EventTypeDeleteComment:
		return models.EventDeleteComment, event.Data, nil
	case models.EventTypeVoteUpdate:
		return models.EventVoteUpdate, event.Data, nil
	default:
		return "", nil, errUnknownEventType
	}
}

func pageIDFromChannel(channel string) (uuid.UUID, error) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 {
		return uuid.Nil, errMalformedChannel
	}
	return uuid.Parse(parts[2])
}

func panicErr(r any, stack []byte) error {
	return &panicValue{r: r, stack: stack}
}

type panicValue struct {
	r     any
	stack []byte
}

func (p *panicValue) Error() string {
	return fmt.Sprintf("panic in pubsub bridge: %v\n%s", p.r, p.stack)
}
