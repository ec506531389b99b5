package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/larder/internal/database"
	"github.com/dukerupert/larder/internal/dispatch"
	"github.com/dukerupert/larder/internal/live"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/projection"
	"github.com/dukerupert/larder/internal/server"
	"github.com/dukerupert/larder/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, token, err := store.NewUserStore(db).Create("alice")
	require.NoError(t, err)

	srv, err := server.New(db, server.Options{ExpiringDays: 3, LowStockThreshold: decimal.NewFromInt(1)}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return New(ts.URL, token)
}

func TestDispatchThroughClient(t *testing.T) {
	cl := newTestClient(t)
	ctx := context.Background()

	d, err := dispatch.New(model.CollectionShopping, cl)
	require.NoError(t, err)

	id, err := d.Create(ctx, dispatch.Form{"name": "Eggs", "quantity": "12", "price": "0.25"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, d.Update(ctx, id, dispatch.Form{"quantity": "6"}))

	items, err := List[model.ShoppingItem](ctx, cl, model.CollectionShopping)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "dairy", items[0].Category)
	assert.True(t, items[0].Quantity.Equal(decimal.NewFromInt(6)))

	conf := d.Confirmation()
	conf.RequestDelete(id)
	require.NoError(t, conf.Confirm(ctx))

	items, err = List[model.ShoppingItem](ctx, cl, model.CollectionShopping)
	require.NoError(t, err)
	assert.Empty(t, items)

	err = cl.Remove(ctx, model.CollectionShopping, id)
	assert.True(t, IsNotFound(err))
}

func TestServerValidationError(t *testing.T) {
	cl := newTestClient(t)

	_, err := cl.Push(context.Background(), model.CollectionBudget, map[string]any{
		"name":     "Bus",
		"amount":   "2.00",
		"category": "travel",
		"date":     "2026-03-01",
	})

	var ve *dispatch.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "category", ve.Field)
}

func TestPurchase(t *testing.T) {
	cl := newTestClient(t)
	ctx := context.Background()

	id, err := cl.Push(ctx, model.CollectionShopping, map[string]any{"name": "Eggs", "quantity": decimal.NewFromInt(12)})
	require.NoError(t, err)

	item, err := cl.Purchase(ctx, id)
	require.NoError(t, err)
	assert.True(t, item.Purchased)
	assert.True(t, item.AddedToInventory)

	inv, err := List[model.InventoryItem](ctx, cl, model.CollectionInventory)
	require.NoError(t, err)
	require.Len(t, inv, 1)
	assert.Equal(t, id, inv[0].SourceItemID)

	_, err = cl.Purchase(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestRecipesUnavailable(t *testing.T) {
	cl := newTestClient(t)

	_, err := cl.Recipes(context.Background(), "omelette")
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusServiceUnavailable, ae.Status)
}

func waitFor[T model.Record](t *testing.T, states <-chan projection.State[T], ok func(projection.State[T]) bool) projection.State[T] {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s := <-states:
			if ok(s) {
				return s
			}
		case <-timeout:
			t.Fatal("timed out waiting for projection state")
		}
	}
}

func TestWatchMilkExpense(t *testing.T) {
	cl := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := make(chan projection.State[model.BudgetExpense], 32)
	p := projection.NewProjector(projection.Budget(), projection.DefaultSettings(time.Now()), func(s projection.State[model.BudgetExpense]) {
		states <- s
	})

	done := make(chan error, 1)
	go func() { done <- Watch(ctx, cl, p) }()

	waitFor(t, states, func(s projection.State[model.BudgetExpense]) bool { return s.Received })

	_, err := cl.Push(ctx, model.CollectionBudget, map[string]any{"name": "Groceries", "amount": "10.00", "category": "food", "date": "2026-03-01"})
	require.NoError(t, err)
	waitFor(t, states, func(s projection.State[model.BudgetExpense]) bool {
		return s.Views.Total.Equal(decimal.RequireFromString("10.00"))
	})

	_, err = cl.Push(ctx, model.CollectionBudget, map[string]any{"name": "Milk", "amount": "3.50", "category": "food", "date": "2026-03-02"})
	require.NoError(t, err)
	s := waitFor(t, states, func(s projection.State[model.BudgetExpense]) bool {
		return s.Views.Total.Equal(decimal.RequireFromString("13.50"))
	})

	require.Len(t, s.Views.Buckets, 1)
	assert.Equal(t, "food", s.Views.Buckets[0].Key)
	assert.True(t, s.Views.Buckets[0].Total.GreaterThanOrEqual(decimal.RequireFromString("3.50")))
	assert.Equal(t, "Milk", s.Views.Recent[0].Name)
	assert.False(t, s.Degraded())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchDialFailureKeepsState(t *testing.T) {
	cl := New("http://127.0.0.1:1", "1.token")
	p := projection.NewProjector(projection.Shopping(), projection.DefaultSettings(time.Now()), nil)
	p.Apply(projection.SnapshotReceived[model.ShoppingItem]{Snapshot: projection.Snapshot[model.ShoppingItem]{
		"a": {ID: "a", Name: "Eggs"},
	}})

	err := Watch(context.Background(), cl, p)
	require.Error(t, err)

	st := p.State()
	assert.True(t, st.Degraded())
	assert.Len(t, st.Views.Items, 1)
}

func TestEventFor(t *testing.T) {
	ev := eventFor[model.ShoppingItem](live.Frame{Type: live.FrameSnapshot, Records: []byte(`{"a":{"id":"a","name":"Eggs","quantity":"12"}}`)})
	snap, ok := ev.(projection.SnapshotReceived[model.ShoppingItem])
	require.True(t, ok)
	assert.Equal(t, "Eggs", snap.Snapshot["a"].Name)

	ev = eventFor[model.ShoppingItem](live.Frame{Type: live.FrameError, Error: "snapshot unavailable"})
	failed, ok := ev.(projection.SubscriptionFailed)
	require.True(t, ok)
	assert.True(t, errors.Is(failed.Err, ErrFeed))

	ev = eventFor[model.ShoppingItem](live.Frame{Type: live.FrameSnapshot, Records: []byte(`[1,2]`)})
	_, ok = ev.(projection.SubscriptionFailed)
	assert.True(t, ok)
}

func TestWSURL(t *testing.T) {
	assert.Equal(t, "wss://larder.example.com/ws", New("https://larder.example.com/", "t").wsURL())
	assert.Equal(t, "ws://localhost:8080/ws", New("http://localhost:8080", "t").wsURL())
}
