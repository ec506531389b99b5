package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukerupert/larder/internal/model"
)

// Hub tracks connected clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger

	// initial delivers the frame sent right after a subscribe.
	initial func(ctx context.Context, t Topic, deliver func([]byte))
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client, drops its subscriptions and closes its send
// channel. It is safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.clearTopics()
		close(c.send)
	}
	h.mu.Unlock()
}

// Publish queues data for every client subscribed to t. Clients with a full
// buffer miss the frame; the next snapshot replaces it anyway.
func (h *Hub) Publish(t Topic, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients {
		if !c.subscribed(t) {
			continue
		}
		select {
		case c.send <- data:
			delivered++
		default:
			h.logger.Warn("client buffer full, dropping frame", "topic", t.String())
		}
	}
	return delivered
}

// Subscribers counts clients subscribed to t.
func (h *Hub) Subscribers(t Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.clients {
		if c.subscribed(t) {
			n++
		}
	}
	return n
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) sendInitial(ctx context.Context, t Topic, deliver func([]byte)) {
	if h.initial == nil {
		deliver(snapshotFrameOrError(t.Collection, nil))
		return
	}
	h.initial(ctx, t, deliver)
}

func snapshotFrameOrError(c model.Collection, records []model.Record) []byte {
	data, err := snapshotFrame(c, records)
	if err != nil {
		return errorFrame(c, err.Error())
	}
	return data
}
