package fanout

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/auth"
	"github.com/usethreadkit/threadkit/internal/batcher"
	"github.com/usethreadkit/threadkit/internal/cache"
	"github.com/usethreadkit/threadkit/internal/models"
	"github.com/usethreadkit/threadkit/internal/observability"
)

// Server wires an upgraded WebSocket connection into a Hub: it resolves the
// connecting identity, registers the client, and runs its read/write pumps
// until the connection closes.
type Server struct {
	hub     *Hub
	tokens  *auth.Service
	batcher *batcher.Batcher
	rdb     *redis.Client
	logger  *observability.FanoutLogger
}

func NewServer(hub *Hub, tokens *auth.Service, b *batcher.Batcher, rdb *redis.Client) *Server {
	return &Server{hub: hub, tokens: tokens, batcher: b, rdb: rdb, logger: observability.NewFanoutLogger()}
}

// HandleConnection takes ownership of conn for its lifetime. The project_id
// query parameter is validated against the api-key-to-site cache before
// anything is sent — an unrecognized project_id closes the socket without a
// single frame, the same silent-reject the HTTP side never does (it always
// answers with a JSON error instead). Token verification failure does not
// close the socket — it falls back to an anonymous connection, matching
// OptionalAuth's HTTP-side behavior, since comment viewing and typing
// indicators are available to anonymous viewers.
func (s *Server) HandleConnection(conn *websocket.Conn) {
	ctx := context.Background()

	projectID := conn.Query("project_id")
	if projectID == "" || !s.validProject(ctx, projectID) {
		return
	}

	userID := models.AnonymousUserSentinel
	anonymous := true

	if token := conn.Query("token"); token != "" {
		if principal, err := s.tokens.Verify(ctx, token); err == nil {
			userID = principal.UserID
			anonymous = false
		}
	}

	c := newClient(s.hub, conn, userID, anonymous)
	s.hub.Register(c)
	s.logger.LogConnect(ctx, c.ID, userID, anonymous)

	connectedParams := models.ConnectedParams{}
	if !anonymous {
		connectedParams.UserID = userID.String()
	}
	c.send(models.NewMessage(models.EventConnected, connectedParams))

	done := make(chan struct{})
	go func() {
		c.WritePump()
		close(done)
	}()

	c.ReadPump(s.logger)
	s.logger.LogDisconnect(ctx, c.ID, "read pump closed")

	select {
	case <-done:
	case <-time.After(writeWait):
	}
}

// validProject checks project_id (an api key) against the cache through the
// batcher's deduplicated read queue when one is wired, falling back to a
// direct GET otherwise.
func (s *Server) validProject(ctx context.Context, projectID string) bool {
	key := cache.APIKeySiteKey(projectID)
	if s.batcher != nil {
		_, found, err := s.batcher.Read(ctx, key)
		return err == nil && found
	}
	_, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	return err == nil
}
