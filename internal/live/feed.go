package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/larder/internal/model"
)

// Source loads every record of one collection for a user.
type Source func(userID int64) ([]model.Record, error)

// ListSource adapts a typed store List method to a Source.
func ListSource[T model.Record](list func(userID int64) ([]T, error)) Source {
	return func(userID int64) ([]model.Record, error) {
		items, err := list(userID)
		if err != nil {
			return nil, err
		}
		out := make([]model.Record, len(items))
		for i, it := range items {
			out[i] = it
		}
		return out, nil
	}
}

// Listener runs in-process after every snapshot of a collection it listens to.
type Listener interface {
	SnapshotLoaded(ctx context.Context, userID int64, collection model.Collection, records []model.Record)
}

// Feed loads snapshots after writes and fans them out to the hub and to
// in-process listeners.
type Feed struct {
	hub    *Hub
	logger *slog.Logger

	mu        sync.RWMutex
	sources   map[model.Collection]Source
	listeners map[model.Collection][]Listener

	// topicMu holds one lock per topic. A snapshot is loaded and queued under
	// it, so frames reach subscribers in load order.
	topicMu sync.Mutex
	topics  map[Topic]*sync.Mutex
}

func NewFeed(hub *Hub, logger *slog.Logger) *Feed {
	f := &Feed{
		hub:       hub,
		logger:    logger.With("component", "feed"),
		sources:   make(map[model.Collection]Source),
		listeners: make(map[model.Collection][]Listener),
		topics:    make(map[Topic]*sync.Mutex),
	}
	hub.initial = f.sendInitial
	return f
}

func (f *Feed) Register(c model.Collection, src Source) {
	f.mu.Lock()
	f.sources[c] = src
	f.mu.Unlock()
}

func (f *Feed) Listen(c model.Collection, l Listener) {
	f.mu.Lock()
	f.listeners[c] = append(f.listeners[c], l)
	f.mu.Unlock()
}

// Load returns the current snapshot of a collection.
func (f *Feed) Load(userID int64, c model.Collection) ([]model.Record, error) {
	f.mu.RLock()
	src, ok := f.sources[c]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no source for collection %q", c)
	}
	records, err := src(userID)
	if err != nil {
		return nil, fmt.Errorf("load %s snapshot: %w", c, err)
	}
	return records, nil
}

func (f *Feed) topicLock(t Topic) *sync.Mutex {
	f.topicMu.Lock()
	defer f.topicMu.Unlock()
	l, ok := f.topics[t]
	if !ok {
		l = &sync.Mutex{}
		f.topics[t] = l
	}
	return l
}

// Notify publishes a fresh snapshot of c to the user's subscribers and then
// hands it to listeners. A load failure is sent to subscribers as an error
// frame and listeners are skipped.
//
// Listeners run after the topic lock is released; the purchase saga notifies
// the same topic from inside its listener.
func (f *Feed) Notify(ctx context.Context, userID int64, c model.Collection) {
	topic := Topic{UserID: userID, Collection: c}

	records, ok := f.publish(topic)
	if !ok {
		return
	}

	f.mu.RLock()
	listeners := append([]Listener(nil), f.listeners[c]...)
	f.mu.RUnlock()
	for _, l := range listeners {
		l.SnapshotLoaded(ctx, userID, c, records)
	}
}

func (f *Feed) publish(t Topic) ([]model.Record, bool) {
	l := f.topicLock(t)
	l.Lock()
	defer l.Unlock()

	records, err := f.Load(t.UserID, t.Collection)
	if err != nil {
		f.logger.Error("snapshot failed", "topic", t.String(), "error", err)
		f.hub.Publish(t, errorFrame(t.Collection, "snapshot unavailable"))
		return nil, false
	}
	if f.hub.Subscribers(t) > 0 {
		f.hub.Publish(t, snapshotFrameOrError(t.Collection, records))
	}
	return records, true
}

// sendInitial loads the snapshot for a new subscriber and hands it to deliver
// under the topic lock, so a concurrent Notify cannot overtake it with an
// older snapshot or be overtaken by this one.
func (f *Feed) sendInitial(_ context.Context, t Topic, deliver func([]byte)) {
	l := f.topicLock(t)
	l.Lock()
	defer l.Unlock()

	records, err := f.Load(t.UserID, t.Collection)
	if err != nil {
		f.logger.Error("initial snapshot failed", "topic", t.String(), "error", err)
		deliver(errorFrame(t.Collection, "snapshot unavailable"))
		return
	}
	deliver(snapshotFrameOrError(t.Collection, records))
}
