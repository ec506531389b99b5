// Package projection turns collection snapshots into presentation-ready views.
//
// Everything here is a pure function of (snapshot, settings). Reduce folds one
// Event into a State and recomputes every view from scratch, so replaying the
// same snapshot always produces the same result. Projector wraps Reduce with a
// mutex for callers that receive snapshots on a live feed.
package projection

import (
	"errors"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/larder/internal/model"
	"github.com/shopspring/decimal"
)

// RecentLimit is the size of the recent-activity view.
const RecentLimit = 5

// Snapshot is a full copy of a collection keyed by record id.
type Snapshot[T model.Record] map[string]T

// SnapshotOf keys records by their id.
func SnapshotOf[T model.Record](records []T) Snapshot[T] {
	s := make(Snapshot[T], len(records))
	for _, r := range records {
		s[r.RecordID()] = r
	}
	return s
}

// Settings are the user-controlled inputs to a projection.
type Settings struct {
	Filter            string          `json:"filter"`
	SortKey           string          `json:"sort"`
	LowStockThreshold decimal.Decimal `json:"low_stock_threshold"`
	ExpiringDays      int             `json:"expiring_days"`
	// Today anchors the expiring-soon window. Only its calendar date is used.
	Today time.Time `json:"today"`
}

// DefaultSettings returns a low-stock threshold of 1 and a 3-day expiring window.
func DefaultSettings(today time.Time) Settings {
	return Settings{
		LowStockThreshold: decimal.NewFromInt(1),
		ExpiringDays:      3,
		Today:             today,
	}
}

// Bucket is one slice of a category chart.
type Bucket struct {
	Key   string          `json:"key"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Views holds everything derived from a snapshot.
type Views[T model.Record] struct {
	// Items is the filtered and sorted list.
	Items []T `json:"items"`
	// Total sums the lens total over Items only.
	Total   decimal.Decimal `json:"total"`
	Buckets []Bucket        `json:"buckets"`
	// LowStock and ExpiringSoon look at the whole snapshot, not just Items.
	LowStock     []T `json:"low_stock"`
	ExpiringSoon []T `json:"expiring_soon"`
	Recent       []T `json:"recent"`
}

// State is the full projection state for one collection.
type State[T model.Record] struct {
	Snapshot Snapshot[T]
	// Received is false until the first snapshot arrives.
	Received bool
	Settings Settings
	Views    Views[T]
	// Err is set while the subscription is failing. Snapshot and Views then
	// hold the last known good data.
	Err error
}

// Degraded reports whether the view is stale because the feed failed.
func (s State[T]) Degraded() bool {
	return s.Err != nil
}

// NewState returns an empty state with computed (empty) views.
func NewState[T model.Record](lens Lens[T], settings Settings) State[T] {
	s := State[T]{Settings: settings}
	s.Views = Compute(lens, nil, settings)
	return s
}

// Event is an input to Reduce.
type Event interface {
	event()
}

// SnapshotReceived delivers a new full snapshot.
type SnapshotReceived[T model.Record] struct {
	Snapshot Snapshot[T]
}

// SubscriptionFailed marks the feed as broken without discarding data.
type SubscriptionFailed struct {
	Err error
}

type FilterChanged struct {
	Filter string
}

type SortChanged struct {
	Key string
}

type ThresholdChanged struct {
	Threshold decimal.Decimal
}

type ExpiringWindowChanged struct {
	Days int
}

type TodayChanged struct {
	Today time.Time
}

func (SnapshotReceived[T]) event() {}
func (SubscriptionFailed) event() {}
func (FilterChanged) event() {}
func (SortChanged) event() {}
func (ThresholdChanged) event() {}
func (ExpiringWindowChanged) event() {}
func (TodayChanged) event() {}

// ErrSubscription is used when a failure event carries no error of its own.
var ErrSubscription = errors.New("subscription failed")

// Reduce applies ev to s and returns the new state. s is never modified.
func Reduce[T model.Record](lens Lens[T], s State[T], ev Event) State[T] {
	next := s
	switch e := ev.(type) {
	case SnapshotReceived[T]:
		next.Snapshot = maps.Clone(e.Snapshot)
		next.Received = true
		next.Err = nil
	case SubscriptionFailed:
		next.Err = e.Err
		if next.Err == nil {
			next.Err = ErrSubscription
		}
		return next
	case FilterChanged:
		next.Settings.Filter = e.Filter
	case SortChanged:
		next.Settings.SortKey = e.Key
	case ThresholdChanged:
		next.Settings.LowStockThreshold = e.Threshold
	case ExpiringWindowChanged:
		next.Settings.ExpiringDays = e.Days
	case TodayChanged:
		next.Settings.Today = e.Today
	default:
		return s
	}
	next.Views = Compute(lens, next.Snapshot, next.Settings)
	return next
}

// Compute derives all views from a snapshot. Steps run in a fixed order:
// flatten, filter and sort, total, buckets, thresholds, recent.
func Compute[T model.Record](lens Lens[T], snap Snapshot[T], set Settings) Views[T] {
	all := Flatten(snap)

	items := lens.Filter(all, set.Filter)
	lens.Sort(items, set.SortKey)

	v := Views[T]{
		Items:        items,
		Total:        decimal.Zero,
		Buckets:      []Bucket{},
		LowStock:     []T{},
		ExpiringSoon: []T{},
	}

	if lens.Total != nil {
		for _, r := range items {
			v.Total = v.Total.Add(lens.Total(r))
		}
	}

	if lens.Bucket != nil {
		v.Buckets = buckets(lens, items)
	}

	if lens.Quantity != nil {
		for _, r := range all {
			if lens.Quantity(r).LessThanOrEqual(set.LowStockThreshold) {
				v.LowStock = append(v.LowStock, r)
			}
		}
	}

	if lens.Expires != nil && !set.Today.IsZero() {
		v.ExpiringSoon = expiringSoon(lens, all, set.Today, set.ExpiringDays)
	}

	v.Recent = Recent(all, RecentLimit)
	return v
}

// Flatten lists the snapshot in ascending id order, so the result does not
// depend on map iteration.
func Flatten[T model.Record](snap Snapshot[T]) []T {
	ids := slices.Sorted(maps.Keys(snap))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, snap[id])
	}
	return out
}

// Recent returns up to n records with the newest Stamp first.
func Recent[T model.Record](records []T, n int) []T {
	out := slices.Clone(records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Stamp().After(out[j].Stamp())
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// DaysUntil is the whole number of days from today's calendar date to date.
// Past dates are negative.
func DaysUntil(date, today time.Time) int {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	y, m, d = date.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

func buckets[T model.Record](lens Lens[T], items []T) []Bucket {
	index := map[string]int{}
	var out []Bucket
	for _, r := range items {
		key := lens.Bucket(r)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Bucket{Key: key, Total: decimal.Zero})
		}
		if lens.Total != nil {
			out[i].Total = out[i].Total.Add(lens.Total(r))
		}
		out[i].Count++
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if out == nil {
		out = []Bucket{}
	}
	return out
}

func expiringSoon[T model.Record](lens Lens[T], all []T, today time.Time, window int) []T {
	type hit struct {
		rec  T
		days int
	}
	var hits []hit
	for _, r := range all {
		raw := strings.TrimSpace(lens.Expires(r))
		if raw == "" {
			continue
		}
		date, err := model.ParseDate(raw)
		if err != nil {
			continue
		}
		days := DaysUntil(date, today)
		if days >= 0 && days <= window {
			hits = append(hits, hit{rec: r, days: days})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].days < hits[j].days })

	out := make([]T, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.rec)
	}
	return out
}
