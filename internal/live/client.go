package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/dukerupert/larder/internal/model"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Client is one websocket connection owned by a single user.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	send   chan []byte

	mu     sync.Mutex
	topics map[model.Collection]struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
		topics: make(map[model.Collection]struct{}),
	}
}

// Run registers the client, starts the write pump and reads requests until the
// connection closes. All subscriptions end with the connection.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		c.handle(ctx, data)
	}
}

// handle applies one request. Replies go through the send channel so they stay
// ordered with published snapshots.
func (c *Client) handle(ctx context.Context, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		c.enqueue(ctx, errorFrame("", "invalid request"))
		return
	}
	coll, err := model.ParseCollection(string(req.Collection))
	if err != nil {
		c.enqueue(ctx, errorFrame(req.Collection, err.Error()))
		return
	}

	switch req.Op {
	case OpSubscribe:
		c.mu.Lock()
		c.topics[coll] = struct{}{}
		c.mu.Unlock()
		c.hub.logger.Debug("subscribed", "user_id", c.userID, "collection", coll)
		c.hub.sendInitial(ctx, Topic{UserID: c.userID, Collection: coll}, func(data []byte) {
			c.enqueue(ctx, data)
		})
	case OpUnsubscribe:
		c.mu.Lock()
		delete(c.topics, coll)
		c.mu.Unlock()
	default:
		c.enqueue(ctx, errorFrame(coll, "unknown op "+req.Op))
	}
}

func (c *Client) enqueue(ctx context.Context, data []byte) {
	select {
	case c.send <- data:
	case <-ctx.Done():
	}
}

func (c *Client) subscribed(t Topic) bool {
	if t.UserID != c.userID {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.topics[t.Collection]
	return ok
}

func (c *Client) clearTopics() {
	c.mu.Lock()
	clear(c.topics)
	c.mu.Unlock()
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
