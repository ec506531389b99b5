package model

import (
	"fmt"
	"time"
)

// Collection names a per-user record set exposed over the API and the live feed.
type Collection string

const (
	CollectionShopping  Collection = "shopping"
	CollectionInventory Collection = "inventory"
	CollectionBudget    Collection = "budget"
	CollectionPrices    Collection = "prices"
)

var collections = []Collection{CollectionShopping, CollectionInventory, CollectionBudget, CollectionPrices}

// Collections returns every known collection in a fixed order.
func Collections() []Collection {
	out := make([]Collection, len(collections))
	copy(out, collections)
	return out
}

// ParseCollection validates a collection name from a path or wire frame.
func ParseCollection(s string) (Collection, error) {
	for _, c := range collections {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown collection %q", s)
}

// Record is implemented by every collection entity.
type Record interface {
	RecordID() string
	// Stamp is the time used to rank recent activity.
	Stamp() time.Time
}

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
