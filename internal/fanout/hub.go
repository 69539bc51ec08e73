package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/batcher"
	"github.com/usethreadkit/threadkit/internal/models"
	"github.com/usethreadkit/threadkit/internal/observability"
)

// Hub owns every live connection on one fanout node, grouped by the page
// they've subscribed to, and bridges page membership into Redis presence.
type Hub struct {
	mu       sync.RWMutex
	byPage   map[uuid.UUID]map[*Client]struct{}
	clients  map[string]*Client
	presence *Presence
	batcher  *batcher.Batcher
	logger   *observability.FanoutLogger
}

// NewHub wires the hub's presence bookkeeping through b, the shared fanout
// batcher (see SPEC_FULL.md §4.5): HTTP-side mutations stay synchronous, but
// the WebSocket node's per-connection presence/typing writes coalesce here
// instead of issuing one Redis round-trip per event. b may be nil.
func NewHub(rdb *redis.Client, b *batcher.Batcher, offlineGrace time.Duration) *Hub {
	h := &Hub{
		byPage:  make(map[uuid.UUID]map[*Client]struct{}),
		clients: make(map[string]*Client),
		batcher: b,
		logger:  observability.NewFanoutLogger(),
	}
	h.presence = newPresence(rdb, b, offlineGrace, h.broadcastPresenceChange)
	return h
}

// Register adds a freshly connected client to the hub and counts it in the
// active-connections gauge. It does not subscribe the client to any page.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	observability.WebSocketConnectionsActive.Inc()
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	pages := make([]uuid.UUID, 0, len(c.pages))
	for pageID := range c.pages {
		pages = append(pages, pageID)
		if set, ok := h.byPage[pageID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.byPage, pageID)
			}
		}
	}
	delete(h.clients, c.ID)
	h.mu.Unlock()

	close(c.Send)
	observability.WebSocketConnectionsActive.Dec()

	for _, pageID := range pages {
		h.presence.leave(context.Background(), pageID, c.UserID, c.Anonymous)
	}
}

// subscribe adds a client to a page's broadcast set, enforcing the per
// connection subscription cap.
func (h *Hub) subscribe(c *Client, pageID uuid.UUID) error {
	h.mu.Lock()
	if _, already := c.pages[pageID]; already {
		h.mu.Unlock()
		return nil
	}
	if len(c.pages) >= maxSubscriptions {
		h.mu.Unlock()
		return errSubscriptionLimit
	}
	c.pages[pageID] = struct{}{}
	set, ok := h.byPage[pageID]
	if !ok {
		set = make(map[*Client]struct{})
		h.byPage[pageID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.presence.join(context.Background(), pageID, c.UserID, c.Anonymous)
	return nil
}

func (h *Hub) unsubscribe(c *Client, pageID uuid.UUID) {
	h.mu.Lock()
	if _, ok := c.pages[pageID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(c.pages, pageID)
	if set, ok := h.byPage[pageID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byPage, pageID)
		}
	}
	h.mu.Unlock()

	h.presence.leave(context.Background(), pageID, c.UserID, c.Anonymous)
}

// Broadcast fans a raw frame out to every client subscribed to pageID.
func (h *Hub) Broadcast(pageID uuid.UUID, message []byte) {
	h.mu.RLock()
	set := h.byPage[pageID]
	recipients := make([]*Client, 0, len(set))
	for c := range set {
		recipients = append(recipients, c)
	}
	h.mu.RUnlock()

	for _, c := range recipients {
		c.trySend(message)
	}
}

// BroadcastAll fans a raw frame out to every connected client, regardless
// of subscription — used for site-wide moderation/shutdown notices.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		recipients = append(recipients, c)
	}
	h.mu.RUnlock()

	for _, c := range recipients {
		c.trySend(message)
	}
}

func (h *Hub) broadcastPresenceChange(pageID uuid.UUID, method models.RPCMethod, userID uuid.UUID) {
	payload, err := json.Marshal(models.NewMessage(method, models.UserEventParams{
		PageID: pageID.String(),
		UserID: userID.String(),
	}))
	if err != nil {
		return
	}
	h.Broadcast(pageID, payload)
}

// Shutdown sends every connection a close frame, then sleeps for the full
// gracePeriod so write pumps can drain before returning.
func (h *Hub) Shutdown(gracePeriod time.Duration) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		_ = c.Conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
	}
	time.Sleep(gracePeriod)
}
