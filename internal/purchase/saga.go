// Package purchase moves purchased shopping items into the inventory.
//
// The move is a two-step saga. Step one creates the inventory record, step two
// flips the shopping item's added_to_inventory flag. The saga can be fed the
// same snapshot any number of times, in any order, and still creates at most
// one inventory record per shopping item.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/larder/internal/model"
)

// Shopping is the shopping side of the saga.
type Shopping interface {
	GetByID(userID int64, id string) (*model.ShoppingItem, error)
	MarkAddedToInventory(userID int64, id string) (bool, error)
}

// Inventory is the inventory side of the saga.
type Inventory interface {
	Create(userID int64, item model.InventoryItem) (*model.InventoryItem, error)
	GetBySource(userID int64, sourceItemID string) (*model.InventoryItem, error)
}

// Notifier is told which collections changed after a reconcile.
type Notifier interface {
	Notify(ctx context.Context, userID int64, collection model.Collection)
}

// Result counts what one Reconcile call did.
type Result struct {
	Created int
	Flagged int
	Skipped int
}

type Saga struct {
	shopping  Shopping
	inventory Inventory
	notifier  Notifier
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(shopping Shopping, inventory Inventory, logger *slog.Logger) *Saga {
	return &Saga{
		shopping:  shopping,
		inventory: inventory,
		logger:    logger.With("component", "purchase"),
		inflight:  make(map[string]struct{}),
	}
}

// SetNotifier registers who hears about inventory and shopping changes.
func (s *Saga) SetNotifier(n Notifier) {
	s.notifier = n
}

// Pending reports whether item still needs to be moved into the inventory.
func Pending(item model.ShoppingItem) bool {
	return item.Purchased && !item.AddedToInventory
}

// Reconcile runs the saga for every pending item in a shopping snapshot.
// Failures on one item do not stop the others; they are joined into the
// returned error and the item is retried on the next snapshot.
func (s *Saga) Reconcile(ctx context.Context, userID int64, items []model.ShoppingItem) (Result, error) {
	var res Result
	var errs []error

	for _, item := range items {
		if !Pending(item) {
			continue
		}
		if !s.claim(item.ID) {
			res.Skipped++
			continue
		}
		created, flagged, err := s.move(userID, item.ID)
		s.release(item.ID)

		if created {
			res.Created++
		}
		if flagged {
			res.Flagged++
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if s.notifier != nil {
		if res.Created > 0 {
			s.notifier.Notify(ctx, userID, model.CollectionInventory)
		}
		if res.Flagged > 0 {
			s.notifier.Notify(ctx, userID, model.CollectionShopping)
		}
	}
	return res, errors.Join(errs...)
}

// move runs both steps for one item. It re-reads the item so a stale snapshot
// cannot trigger a second projection, and it looks for an existing inventory
// record before creating one, so a failed flag write is retried on its own.
func (s *Saga) move(userID int64, id string) (created, flagged bool, err error) {
	item, err := s.shopping.GetByID(userID, id)
	if err != nil {
		return false, false, fmt.Errorf("reload shopping item %s: %w", id, err)
	}
	if item == nil || !Pending(*item) {
		return false, false, nil
	}

	existing, err := s.inventory.GetBySource(userID, id)
	if err != nil {
		return false, false, fmt.Errorf("look up projection of %s: %w", id, err)
	}
	if existing == nil {
		rec, err := s.inventory.Create(userID, Project(*item))
		if err != nil {
			return false, false, fmt.Errorf("create inventory record for %s: %w", id, err)
		}
		created = true
		s.logger.Info("item moved to inventory", "user_id", userID, "shopping_id", id, "inventory_id", rec.ID, "name", rec.Name)
	} else {
		s.logger.Debug("inventory record exists, retrying flag", "shopping_id", id, "inventory_id", existing.ID)
	}

	ok, err := s.shopping.MarkAddedToInventory(userID, id)
	if err != nil {
		return created, false, fmt.Errorf("flag shopping item %s: %w", id, err)
	}
	if !ok {
		s.logger.Debug("flag already set", "shopping_id", id)
	}
	return created, ok, nil
}

// Project builds the inventory record for a purchased item.
func Project(item model.ShoppingItem) model.InventoryItem {
	return model.InventoryItem{
		Name:           item.Name,
		Quantity:       item.Quantity,
		Category:       item.Category,
		EstimatedValue: item.LineTotal(),
		SourceItemID:   item.ID,
	}
}

func (s *Saga) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Saga) release(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// SnapshotLoaded reconciles every shopping snapshot it is handed. It satisfies
// live.Listener.
func (s *Saga) SnapshotLoaded(ctx context.Context, userID int64, collection model.Collection, records []model.Record) {
	if collection != model.CollectionShopping {
		return
	}
	items := make([]model.ShoppingItem, 0, len(records))
	for _, r := range records {
		if item, ok := r.(model.ShoppingItem); ok {
			items = append(items, item)
		}
	}

	res, err := s.Reconcile(ctx, userID, items)
	if err != nil {
		s.logger.Error("reconcile purchases", "user_id", userID, "error", err)
	}
	if res.Created > 0 || res.Flagged > 0 {
		s.logger.Debug("reconciled purchases", "user_id", userID, "created", res.Created, "flagged", res.Flagged, "skipped", res.Skipped)
	}
}
