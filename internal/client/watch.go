package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dukerupert/larder/internal/live"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/projection"
)

func (c *Client) wsURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws"
	}
	return c.baseURL + "/ws"
}

// Subscribe streams frames for one collection to fn, in delivery order, until
// ctx is cancelled or the connection drops. A cancelled ctx returns nil.
func (c *Client) Subscribe(ctx context.Context, collection model.Collection, fn func(live.Frame)) error {
	conn, _, err := websocket.Dial(ctx, c.wsURL(), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + c.token}},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, live.Request{Op: live.OpSubscribe, Collection: collection}); err != nil {
		return fmt.Errorf("subscribe %s: %w", collection, err)
	}

	for {
		var f live.Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}
		if f.Collection != "" && f.Collection != collection {
			continue
		}
		fn(f)
	}
}

// ErrFeed wraps an error frame sent by the server.
var ErrFeed = errors.New("feed error")

// Watch drives p from the live feed. Snapshots are decoded and applied in
// order; error frames and a dropped connection mark the state failed while
// keeping the last views. It returns when ctx is cancelled or the connection
// ends.
func Watch[T model.Record](ctx context.Context, c *Client, p *projection.Projector[T]) error {
	lens := p.Lens()
	err := c.Subscribe(ctx, lens.Collection, func(f live.Frame) {
		p.Apply(eventFor[T](f))
	})
	if err != nil {
		p.Apply(projection.SubscriptionFailed{Err: err})
	}
	return err
}

func eventFor[T model.Record](f live.Frame) projection.Event {
	switch f.Type {
	case live.FrameSnapshot:
		snap := projection.Snapshot[T]{}
		if len(f.Records) > 0 {
			if err := json.Unmarshal(f.Records, &snap); err != nil {
				return projection.SubscriptionFailed{Err: fmt.Errorf("decode snapshot: %w", err)}
			}
		}
		return projection.SnapshotReceived[T]{Snapshot: snap}
	case live.FrameError:
		return projection.SubscriptionFailed{Err: fmt.Errorf("%w: %s", ErrFeed, f.Error)}
	default:
		return projection.SubscriptionFailed{Err: fmt.Errorf("%w: unexpected frame %q", ErrFeed, f.Type)}
	}
}
