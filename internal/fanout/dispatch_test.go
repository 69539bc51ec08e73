package fanout

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/usethreadkit/threadkit/internal/observability"
)

func typingFrame(pageID uuid.UUID) []byte {
	raw, _ := json.Marshal(struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  any    `json:"params"`
	}{
		JSONRPC: "2.0",
		Method:  "typing",
		Params:  map[string]string{"page_id": pageID.String()},
	})
	return raw
}

func TestHandleTyping_AnonymousDiscardedSilently(t *testing.T) {
	h, _ := newTestHub(t)
	pageID := uuid.New()

	typer := newClient(h, nil, uuid.New(), true)
	h.Register(typer)
	require.NoError(t, h.subscribe(typer, pageID))

	observer := newClient(h, nil, uuid.New(), false)
	h.Register(observer)
	require.NoError(t, h.subscribe(observer, pageID))
	require.Contains(t, string(drainOne(t, observer.Send)), "user_joined")

	h.dispatch(typer, typingFrame(pageID), observability.NewFanoutLogger())

	select {
	case <-observer.Send:
		t.Fatal("anonymous typing notice should never be broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleTyping_UnsubscribedDiscardedSilently(t *testing.T) {
	h, _ := newTestHub(t)
	pageID := uuid.New()

	typer := newClient(h, nil, uuid.New(), false)
	h.Register(typer)
	// Deliberately not subscribed to pageID.

	observer := newClient(h, nil, uuid.New(), false)
	h.Register(observer)
	require.NoError(t, h.subscribe(observer, pageID))
	require.Contains(t, string(drainOne(t, observer.Send)), "user_joined")

	h.dispatch(typer, typingFrame(pageID), observability.NewFanoutLogger())

	select {
	case <-observer.Send:
		t.Fatal("typing from an unsubscribed connection should never be broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleTyping_SubscribedBroadcastsToOthers(t *testing.T) {
	h, _ := newTestHub(t)
	pageID := uuid.New()

	typer := newClient(h, nil, uuid.New(), false)
	h.Register(typer)
	require.NoError(t, h.subscribe(typer, pageID))

	observer := newClient(h, nil, uuid.New(), false)
	h.Register(observer)
	require.NoError(t, h.subscribe(observer, pageID))
	require.Contains(t, string(drainOne(t, observer.Send)), "user_joined")

	h.dispatch(typer, typingFrame(pageID), observability.NewFanoutLogger())

	msg := drainOne(t, observer.Send)
	require.Contains(t, string(msg), `"typing"`)
}

func TestHandleTyping_DebouncedWithinWindow(t *testing.T) {
	h, _ := newTestHub(t)
	pageID := uuid.New()

	typer := newClient(h, nil, uuid.New(), false)
	h.Register(typer)
	require.NoError(t, h.subscribe(typer, pageID))

	observer := newClient(h, nil, uuid.New(), false)
	h.Register(observer)
	require.NoError(t, h.subscribe(observer, pageID))
	require.Contains(t, string(drainOne(t, observer.Send)), "user_joined")

	logger := observability.NewFanoutLogger()
	h.dispatch(typer, typingFrame(pageID), logger)
	drainOne(t, observer.Send)

	h.dispatch(typer, typingFrame(pageID), logger)

	select {
	case <-observer.Send:
		t.Fatal("second typing notice within the debounce window should be suppressed")
	case <-time.After(50 * time.Millisecond):
	}
}
