// Package live pushes full collection snapshots to websocket subscribers.
package live

import (
	"encoding/json"
	"fmt"

	"github.com/dukerupert/larder/internal/model"
)

// Client requests.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

// Server frame types.
const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

type Request struct {
	Op         string           `json:"op"`
	Collection model.Collection `json:"collection"`
}

// Frame is a server message. Records is a JSON object keyed by record id and
// is present on every snapshot frame, even when the collection is empty.
type Frame struct {
	Type       string           `json:"type"`
	Collection model.Collection `json:"collection"`
	Records    json.RawMessage  `json:"records,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Topic is one user's view of one collection.
type Topic struct {
	UserID     int64
	Collection model.Collection
}

func (t Topic) String() string {
	return fmt.Sprintf("%d/%s", t.UserID, t.Collection)
}

func snapshotFrame(c model.Collection, records []model.Record) ([]byte, error) {
	byID := make(map[string]model.Record, len(records))
	for _, r := range records {
		byID[r.RecordID()] = r
	}
	raw, err := json.Marshal(byID)
	if err != nil {
		return nil, fmt.Errorf("marshal %s records: %w", c, err)
	}
	return json.Marshal(Frame{Type: FrameSnapshot, Collection: c, Records: raw})
}

func errorFrame(c model.Collection, msg string) []byte {
	data, _ := json.Marshal(Frame{Type: FrameError, Collection: c, Error: msg})
	return data
}
