package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
)

type fakeBroadcaster struct {
	pageID  uuid.UUID
	message []byte
	calls   int
}

func (f *fakeBroadcaster) Broadcast(pageID uuid.UUID, message []byte) {
	f.pageID = pageID
	f.message = message
	f.calls++
}

func newTestBridge(t *testing.T, hub Broadcaster) *Bridge {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, hub)
}

func TestForward_NewCommentRelaysToHub(t *testing.T) {
	hub := &fakeBroadcaster{}
	b := newTestBridge(t, hub)
	pageID := uuid.New()

	data, _ := json.Marshal(map[string]string{"id": "c1"})
	event := models.DomainEvent{Type: models.EventTypeNewComment, PageID: pageID.String(), Data: data}
	payload, _ := json.Marshal(event)

	b.forward(context.Background(), cache.PageEventsChannel(pageID), string(payload))

	require.Equal(t, 1, hub.calls)
	require.Equal(t, pageID, hub.pageID)
	require.Contains(t, string(hub.message), `"new_comment"`)
}

func TestForward_UnknownEventTypeIgnored(t *testing.T) {
	hub := &fakeBroadcaster{}
	b := newTestBridge(t, hub)
	pageID := uuid.New()

	event := models.DomainEvent{Type: "something_unexpected", PageID: pageID.String()}
	payload, _ := json.Marshal(event)

	b.forward(context.Background(), cache.PageEventsChannel(pageID), string(payload))
	require.Equal(t, 0, hub.calls)
}

func TestForward_MalformedChannelIgnored(t *testing.T) {
	hub := &fakeBroadcaster{}
	b := newTestBridge(t, hub)

	b.forward(context.Background(), "not:a:valid", `{}`)
	require.Equal(t, 0, hub.calls)
}

func TestForward_MalformedPayloadDoesNotPanic(t *testing.T) {
	hub := &fakeBroadcaster{}
	b := newTestBridge(t, hub)
	pageID := uuid.New()

	require.NotPanics(t, func() {
		b.forward(context.Background(), cache.PageEventsChannel(pageID), "not json")
	})
	require.Equal(t, 0, hub.calls)
}

func TestPageIDFromChannel_ParsesValidChannel(t *testing.T) {
	pageID := uuid.New()
	parsed, err := pageIDFromChannel(cache.PageEventsChannel(pageID))
	require.NoError(t, err)
	require.Equal(t, pageID, parsed)
}

func TestPageIDFromChannel_RejectsMalformed(t *testing.T) {
	_, err := pageIDFromChannel("garbage")
	require.Error(t, err)
}
