package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/models"
	"github.com/usethreadkit/threadkit/internal/observability"
)

var errSubscriptionLimit = errors.New("subscription limit reached")

// dispatch decodes one inbound JSON-RPC frame and routes it to the matching
// handler, writing an `error` event back to the client on any failure
// instead of closing the connection.
func (h *Hub) dispatch(c *Client, raw []byte, logger *observability.FanoutLogger) {
	var req models.RPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.sendError(models.ErrCodeInvalidParams, "malformed request frame")
		return
	}

	switch req.Method {
	case models.MethodSubscribe:
		h.handleSubscribe(c, req, logger)
	case models.MethodUnsubscribe:
		h.handleUnsubscribe(c, req)
	case models.MethodTyping:
		h.handleTyping(c, req, logger)
	case models.MethodPing:
		c.send(models.NewMessage(models.EventPong, nil))
	default:
		c.sendError(models.ErrCodeUnknownMethod, string(req.Method)+" is not a recognized method")
	}
}

func (h *Hub) handleSubscribe(c *Client, req models.RPCRequest, logger *observability.FanoutLogger) {
	var params models.SubscribeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		c.sendError(models.ErrCodeInvalidParams, "page_id required")
		return
	}
	pageID, err := uuid.Parse(params.PageID)
	if err != nil {
		c.sendError(models.ErrCodeInvalidParams, "page_id must be a uuid")
		return
	}
	if err := h.subscribe(c, pageID); err != nil {
		if errors.Is(err, errSubscriptionLimit) {
			c.sendError(models.ErrCodeSubscriptionLimit, "maximum of 10 page subscriptions per connection")
			return
		}
		c.sendError(models.ErrCodeInternal, "could not subscribe")
		return
	}

	logger.LogSubscribe(context.Background(), c.ID, pageID)
	c.send(models.NewMessage(models.EventPresence, models.PresenceParams{
		PageID: pageID.String(),
		Users:  h.presence.Viewers(context.Background(), pageID),
	}))
}

func (h *Hub) handleUnsubscribe(c *Client, req models.RPCRequest) {
	var params models.SubscribeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		c.sendError(models.ErrCodeInvalidParams, "page_id required")
		return
	}
	pageID, err := uuid.Parse(params.PageID)
	if err != nil {
		c.sendError(models.ErrCodeInvalidParams, "page_id must be a uuid")
		return
	}
	h.unsubscribe(c, pageID)
}

func (h *Hub) handleTyping(c *Client, req models.RPCRequest, logger *observability.FanoutLogger) {
	if c.Anonymous {
		return
	}

	var params models.TypingParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		c.sendError(models.ErrCodeInvalidParams, "page_id required")
		return
	}
	pageID, err := uuid.Parse(params.PageID)
	if err != nil {
		c.sendError(models.ErrCodeInvalidParams, "page_id must be a uuid")
		return
	}
	if _, subscribed := c.pages[pageID]; !subscribed {
		return
	}

	now := time.Now()
	if last, ok := c.lastTypedAt[pageID]; ok && now.Sub(last) < typingDebounce {
		return
	}
	c.lastTypedAt[pageID] = now

	if h.batcher != nil {
		h.batcher.QueueTyping(pageID.String(), c.UserID.String(), params.ReplyTo, now.UnixMilli())
	}

	payload := models.TypingEventParams{
		PageID:  pageID.String(),
		UserID:  c.UserID.String(),
		ReplyTo: params.ReplyTo,
	}
	msg, err := json.Marshal(models.NewMessage(models.EventTyping, payload))
	if err != nil {
		logger.LogError(context.Background(), c.ID, "typing", err)
		return
	}
	h.Broadcast(pageID, msg)
}

func (c *Client) send(msg models.RPCMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(raw)
}

func (c *Client) sendError(code models.ErrorCode, message string) {
	c.send(models.NewMessage(models.EventError, models.RPCError{Code: code, Message: message}))
}
