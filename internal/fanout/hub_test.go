package fanout

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/usethreadkit/threadkit/internal/observability"
)

func newTestHub(t *testing.T) (*Hub, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewHub(rdb, nil, 0), rdb
}

func drainOne(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHub_SubscribeThenBroadcastReachesClient(t *testing.T) {
	h, _ := newTestHub(t)
	pageID := uuid.New()

	c := newClient(h, nil, uuid.New(), false)
	h.Register(c)
	require.NoError(t, h.subscribe(c, pageID))
	require.Contains(t, string(drainOne(t, c.Send)), "user_joined")

	h.Broadcast(pageID, []byte("hello"))
	require.Equal(t, []byte("hello"), drainOne(t, c.Send))
}

func TestHub_UnsubscribedClientDoesNotReceiveBroadcast(t *testing.T) {
	h, _ := newTestHub(t)
	pageID := uuid.New()

	c := newClient(h, nil, uuid.New(), false)
	h.Register(c)

	h.Broadcast(pageID, []byte("hello"))
	select {
	case <-c.Send:
		t.Fatal("unsubscribed client should not receive page broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h, _ := newTestHub(t)
	pageID := uuid.New()

	c := newClient(h, nil, uuid.New(), false)
	h.Register(c)
	require.NoError(t, h.subscribe(c, pageID))
	require.Contains(t, string(drainOne(t, c.Send)), "user_joined")
	h.unsubscribe(c, pageID)

	h.Broadcast(pageID, []byte("hello"))
	select {
	case <-c.Send:
		t.Fatal("unsubscribed client should not receive page broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SubscriptionCapEnforced(t *testing.T) {
	h, _ := newTestHub(t)
	c := newClient(h, nil, uuid.New(), false)
	h.Register(c)

	for i := 0; i < maxSubscriptions; i++ {
		require.NoError(t, h.subscribe(c, uuid.New()))
	}

	err := h.subscribe(c, uuid.New())
	require.ErrorIs(t, err, errSubscriptionLimit)
}

func TestHub_BroadcastAllReachesEveryClient(t *testing.T) {
	h, _ := newTestHub(t)
	c1 := newClient(h, nil, uuid.New(), false)
	c2 := newClient(h, nil, uuid.New(), false)
	h.Register(c1)
	h.Register(c2)

	h.BroadcastAll([]byte("notice"))
	require.Equal(t, []byte("notice"), drainOne(t, c1.Send))
	require.Equal(t, []byte("notice"), drainOne(t, c2.Send))
}

func TestHub_DispatchPingRepliesWithPong(t *testing.T) {
	h, _ := newTestHub(t)
	c := newClient(h, nil, uuid.New(), false)
	h.Register(c)

	h.dispatch(c, []byte(`{"jsonrpc":"2.0","method":"ping"}`), observability.NewFanoutLogger())

	msg := drainOne(t, c.Send)
	require.Contains(t, string(msg), `"pong"`)
}

func TestHub_DispatchUnknownMethodSendsError(t *testing.T) {
	h, _ := newTestHub(t)
	c := newClient(h, nil, uuid.New(), false)
	h.Register(c)

	h.dispatch(c, []byte(`{"jsonrpc":"2.0","method":"not_a_real_method"}`), observability.NewFanoutLogger())

	msg := drainOne(t, c.Send)
	require.Contains(t, string(msg), `"unknown_method"`)
}

func TestHub_DispatchMalformedFrameSendsError(t *testing.T) {
	h, _ := newTestHub(t)
	c := newClient(h, nil, uuid.New(), false)
	h.Register(c)

	h.dispatch(c, []byte(`not json`), observability.NewFanoutLogger())

	msg := drainOne(t, c.Send)
	require.Contains(t, string(msg), `"invalid_params"`)
}
