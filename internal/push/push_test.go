package push

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/larder/internal/model"
	"github.com/shopspring/decimal"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Uncompressed P-256 point.
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}
	if priv == "" {
		t.Error("expected non-empty private key")
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func TestConfigEnabled(t *testing.T) {
	if (Config{VAPIDPublicKey: "a"}).Enabled() {
		t.Error("config without private key should be disabled")
	}
	if !(Config{VAPIDPublicKey: "a", VAPIDPrivateKey: "b"}).Enabled() {
		t.Error("config with both keys should be enabled")
	}
}

type sentKey struct {
	user int64
	typ  string
	ref  string
}

type fakeStore struct {
	subs     map[int64][]model.PushSubscription
	disabled map[string]bool
	sent     map[sentKey]bool
	deleted  []string
	delErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:     map[int64][]model.PushSubscription{},
		disabled: map[string]bool{},
		sent:     map[sentKey]bool{},
	}
}

func (f *fakeStore) ListUserIDs() ([]int64, error) {
	var ids []int64
	for id := range f.subs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) ListByUser(userID int64) ([]model.PushSubscription, error) {
	return f.subs[userID], nil
}

func (f *fakeStore) IsPreferenceEnabled(_ int64, notifType string) (bool, error) {
	return !f.disabled[notifType], nil
}

func (f *fakeStore) WasSent(userID int64, notifType, refID string) (bool, error) {
	return f.sent[sentKey{userID, notifType, refID}], nil
}

func (f *fakeStore) RecordSent(userID int64, notifType, refID string) error {
	f.sent[sentKey{userID, notifType, refID}] = true
	return nil
}

func (f *fakeStore) DeleteByEndpoint(endpoint string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func (f *fakeStore) CleanupSent(time.Time) error { return nil }

type fakeSender struct {
	sent    []Payload
	expired map[string]bool
	down    bool
}

func (f *fakeSender) Send(sub *model.PushSubscription, p Payload) error {
	if f.expired[sub.Endpoint] {
		return ErrExpired
	}
	if f.down {
		return errors.New("push service unavailable")
	}
	f.sent = append(f.sent, p)
	return nil
}

var today = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestScheduler(st *fakeStore, sender *fakeSender, items []model.InventoryItem) *Scheduler {
	s := NewScheduler(sender, st, func(int64) ([]model.InventoryItem, error) {
		return items, nil
	}, SchedulerConfig{ExpiringDays: 3, LowStockThreshold: decimal.NewFromInt(1)}, slog.Default())
	s.now = func() time.Time { return today }
	return s
}

func TestSchedulerSendsOncePerDay(t *testing.T) {
	st := newFakeStore()
	st.subs[1] = []model.PushSubscription{{ID: 1, UserID: 1, Endpoint: "https://push.example.com/1"}}
	sender := &fakeSender{}
	items := []model.InventoryItem{
		{ID: "a", Name: "Milk", Quantity: decimal.NewFromInt(1), ExpirationDate: "2026-03-11"},
		{ID: "b", Name: "Rice", Quantity: decimal.NewFromInt(5)},
	}
	s := newTestScheduler(st, sender, items)

	s.tick()
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d alerts, want 2", len(sender.sent))
	}
	if sender.sent[0].Tag != "expiring-soon" || sender.sent[0].Body != "Milk expires soon" {
		t.Errorf("first alert = %+v", sender.sent[0])
	}
	if sender.sent[1].Tag != "low-stock" {
		t.Errorf("second alert = %+v", sender.sent[1])
	}

	s.tick()
	if len(sender.sent) != 2 {
		t.Errorf("sent %d alerts after second tick, want still 2", len(sender.sent))
	}

	s.now = func() time.Time { return today.AddDate(0, 0, 1) }
	s.tick()
	if len(sender.sent) != 4 {
		t.Errorf("sent %d alerts the next day, want 4", len(sender.sent))
	}
}

func TestSchedulerRespectsPreference(t *testing.T) {
	st := newFakeStore()
	st.subs[1] = []model.PushSubscription{{ID: 1, UserID: 1, Endpoint: "https://push.example.com/1"}}
	st.disabled[model.NotifTypeLowStock] = true
	sender := &fakeSender{}
	s := newTestScheduler(st, sender, []model.InventoryItem{
		{ID: "a", Name: "Salt", Quantity: decimal.Zero},
	})

	s.tick()
	if len(sender.sent) != 0 {
		t.Errorf("sent %d alerts with preference off, want 0", len(sender.sent))
	}
}

func TestSchedulerRemovesExpired(t *testing.T) {
	st := newFakeStore()
	st.subs[1] = []model.PushSubscription{
		{ID: 1, UserID: 1, Endpoint: "https://push.example.com/gone"},
		{ID: 2, UserID: 1, Endpoint: "https://push.example.com/live"},
	}
	sender := &fakeSender{expired: map[string]bool{"https://push.example.com/gone": true}}
	s := newTestScheduler(st, sender, []model.InventoryItem{
		{ID: "a", Name: "Salt", Quantity: decimal.Zero},
	})

	s.tick()
	if len(st.deleted) != 1 || st.deleted[0] != "https://push.example.com/gone" {
		t.Errorf("deleted = %v", st.deleted)
	}
	if len(sender.sent) != 1 {
		t.Errorf("sent %d, want 1 to the live device", len(sender.sent))
	}
}

func TestSchedulerRetriesWhenNothingDelivered(t *testing.T) {
	st := newFakeStore()
	st.subs[1] = []model.PushSubscription{{ID: 1, UserID: 1, Endpoint: "https://push.example.com/1"}}
	sender := &fakeSender{down: true}
	s := newTestScheduler(st, sender, []model.InventoryItem{
		{ID: "a", Name: "Salt", Quantity: decimal.Zero},
	})

	s.tick()
	if st.sent[sentKey{1, model.NotifTypeLowStock, "2026-03-10"}] {
		t.Fatal("alert recorded as sent although no device got it")
	}

	sender.down = false
	s.tick()
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d alerts after recovery, want 1", len(sender.sent))
	}
	if !st.sent[sentKey{1, model.NotifTypeLowStock, "2026-03-10"}] {
		t.Error("delivered alert not recorded")
	}
}

func TestSchedulerExpiredDeleteFails(t *testing.T) {
	st := newFakeStore()
	st.subs[1] = []model.PushSubscription{{ID: 1, UserID: 1, Endpoint: "https://push.example.com/gone"}}
	st.delErr = errors.New("database is locked")
	sender := &fakeSender{expired: map[string]bool{"https://push.example.com/gone": true}}
	s := newTestScheduler(st, sender, []model.InventoryItem{
		{ID: "a", Name: "Salt", Quantity: decimal.Zero},
	})

	s.tick()
	if len(st.deleted) != 0 {
		t.Errorf("deleted = %v, want none", st.deleted)
	}
	if st.sent[sentKey{1, model.NotifTypeLowStock, "2026-03-10"}] {
		t.Error("alert recorded as sent with no live device")
	}
}

func TestSchedulerQuietWhenNothingToReport(t *testing.T) {
	st := newFakeStore()
	st.subs[1] = []model.PushSubscription{{ID: 1, UserID: 1, Endpoint: "https://push.example.com/1"}}
	sender := &fakeSender{}
	s := NewScheduler(sender, st, func(int64) ([]model.InventoryItem, error) {
		return nil, errors.New("db closed")
	}, SchedulerConfig{ExpiringDays: 3, LowStockThreshold: decimal.NewFromInt(1)}, slog.Default())
	s.tick()

	s = newTestScheduler(st, sender, []model.InventoryItem{
		{ID: "a", Name: "Rice", Quantity: decimal.NewFromInt(5)},
	})
	s.tick()
	if len(sender.sent) != 0 {
		t.Errorf("sent %d alerts, want 0", len(sender.sent))
	}
}

func TestSummary(t *testing.T) {
	items := []model.InventoryItem{{Name: "Milk"}, {Name: "Eggs"}, {Name: "Bread"}, {Name: "Jam"}}
	tests := []struct {
		n    int
		want string
	}{
		{1, "Milk is low"},
		{2, "Milk and Eggs are low"},
		{4, "Milk, Eggs and 2 more are low"},
	}
	for _, tt := range tests {
		if got := summary(items[:tt.n], "is low", "are low"); got != tt.want {
			t.Errorf("summary(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
