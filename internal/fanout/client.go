// Package fanout terminates WebSocket connections, dispatches the JSON-RPC
// wire protocol, and maintains per-page in-memory broadcast channels fed by
// the Redis pub/sub bridge.
package fanout

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds one inbound frame (subscribe/typing/ping params).
	maxMessageSize = 4096

	// maxSubscriptions is the per-connection page subscription cap; the
	// 11th subscribe attempt gets a subscription_limit error instead.
	maxSubscriptions = 10

	// typingDebounce is the minimum interval between typing broadcasts for
	// one connection on one page.
	typingDebounce = 500 * time.Millisecond
)

// Client is one WebSocket connection. It is registered with the Hub and
// reachable by every page it has subscribed to.
type Client struct {
	ID        string
	UserID    uuid.UUID
	Anonymous bool
	Conn      *websocket.Conn
	Send      chan []byte

	hub *Hub

	pages       map[uuid.UUID]struct{}
	lastTypedAt map[uuid.UUID]time.Time
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, anonymous bool) *Client {
	return &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		Anonymous:   anonymous,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		hub:         hub,
		pages:       make(map[uuid.UUID]struct{}),
		lastTypedAt: make(map[uuid.UUID]time.Time),
	}
}

// ReadPump pumps inbound frames to the dispatcher until the connection
// closes, then unregisters the client from every page it subscribed to.
func (c *Client) ReadPump(logger *observability.FanoutLogger) {
	defer func() {
		c.hub.unregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		c.hub.dispatch(c, message, logger)
	}
}

// WritePump pumps outbound frames from Send to the socket and keeps the
// connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend drops the message and queues a best-effort drop notice when the
// client's buffer is full, rather than blocking the hub on a slow reader.
func (c *Client) trySend(message []byte) {
	select {
	case c.Send <- message:
		return
	default:
	}
	observability.WebSocketBackpressureDropsTotal.WithLabelValues("").Inc()
	dropNotice := []byte(`{"jsonrpc":"2.0","method":"error","params":{"code":"backpressure","message":"messages dropped, resubscribe to resync"}}`)
	select {
	case c.Send <- dropNotice:
	default:
	}
}
