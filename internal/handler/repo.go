package handler

import (
	"context"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/store"
	"github.com/shopspring/decimal"
)

// Repo is the storage surface shared by every collection. Field maps come
// from dispatch.Schema.Parse, so values are already typed and validated.
// Get and Update return a nil record when it does not exist.
type Repo interface {
	List(userID int64) ([]model.Record, error)
	Get(userID int64, id string) (model.Record, error)
	Create(userID int64, fields map[string]any) (model.Record, error)
	Update(userID int64, id string, fields map[string]any) (model.Record, error)
	Delete(userID int64, id string) (bool, error)
}

func str(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func dec(fields map[string]any, key string) decimal.Decimal {
	d, _ := fields[key].(decimal.Decimal)
	return d
}

func strPtr(fields map[string]any, key string) *string {
	if s, ok := fields[key].(string); ok {
		return &s
	}
	return nil
}

func decPtr(fields map[string]any, key string) *decimal.Decimal {
	if d, ok := fields[key].(decimal.Decimal); ok {
		return &d
	}
	return nil
}

func boolPtr(fields map[string]any, key string) *bool {
	if b, ok := fields[key].(bool); ok {
		return &b
	}
	return nil
}

// record converts a store result to a Record without producing a typed nil.
func record[T model.Record](v *T, err error) (model.Record, error) {
	if err != nil || v == nil {
		return nil, err
	}
	return *v, nil
}

func records[T model.Record](list []T, err error) ([]model.Record, error) {
	if err != nil {
		return nil, err
	}
	out := make([]model.Record, len(list))
	for i, v := range list {
		out[i] = v
	}
	return out, nil
}

type shoppingRepo struct {
	s      *store.ShoppingStore
	images Images
}

// ShoppingRepo adapts the shopping store. Stored image handles are resolved
// to URLs on every read.
func ShoppingRepo(s *store.ShoppingStore, images Images) Repo { return shoppingRepo{s, images} }

func (r shoppingRepo) resolved(item *model.ShoppingItem, err error) (model.Record, error) {
	if err != nil || item == nil {
		return nil, err
	}
	return resolveImage(context.Background(), r.images, *item), nil
}

func (r shoppingRepo) List(userID int64) ([]model.Record, error) {
	return records(ResolveImages(r.images, r.s.List)(userID))
}

func (r shoppingRepo) Get(userID int64, id string) (model.Record, error) {
	return r.resolved(r.s.GetByID(userID, id))
}

func (r shoppingRepo) Create(userID int64, f map[string]any) (model.Record, error) {
	item := model.ShoppingItem{
		Name:     str(f, "name"),
		Quantity: dec(f, "quantity"),
		Category: str(f, "category"),
		Price:    dec(f, "price"),
		Image:    str(f, "image"),
	}
	if b := boolPtr(f, "purchased"); b != nil {
		item.Purchased = *b
	}
	return r.resolved(r.s.Create(userID, item))
}

func (r shoppingRepo) Update(userID int64, id string, f map[string]any) (model.Record, error) {
	return r.resolved(r.s.Update(userID, id, model.ShoppingPatch{
		Name:      strPtr(f, "name"),
		Quantity:  decPtr(f, "quantity"),
		Category:  strPtr(f, "category"),
		Price:     decPtr(f, "price"),
		Image:     strPtr(f, "image"),
		Purchased: boolPtr(f, "purchased"),
	}))
}

func (r shoppingRepo) Delete(userID int64, id string) (bool, error) {
	return r.s.Delete(userID, id)
}

type inventoryRepo struct{ s *store.InventoryStore }

// InventoryRepo adapts the inventory store.
func InventoryRepo(s *store.InventoryStore) Repo { return inventoryRepo{s} }

func (r inventoryRepo) List(userID int64) ([]model.Record, error) {
	return records(r.s.List(userID))
}

func (r inventoryRepo) Get(userID int64, id string) (model.Record, error) {
	return record(r.s.GetByID(userID, id))
}

func (r inventoryRepo) Create(userID int64, f map[string]any) (model.Record, error) {
	return record(r.s.Create(userID, model.InventoryItem{
		Name:           str(f, "name"),
		Quantity:       dec(f, "quantity"),
		Category:       str(f, "category"),
		ExpirationDate: str(f, "expiration_date"),
		DietaryInfo:    str(f, "dietary_info"),
		EstimatedValue: dec(f, "estimated_value"),
	}))
}

func (r inventoryRepo) Update(userID int64, id string, f map[string]any) (model.Record, error) {
	return record(r.s.Update(userID, id, model.InventoryPatch{
		Name:           strPtr(f, "name"),
		Quantity:       decPtr(f, "quantity"),
		Category:       strPtr(f, "category"),
		ExpirationDate: strPtr(f, "expiration_date"),
		DietaryInfo:    strPtr(f, "dietary_info"),
		EstimatedValue: decPtr(f, "estimated_value"),
	}))
}

func (r inventoryRepo) Delete(userID int64, id string) (bool, error) {
	return r.s.Delete(userID, id)
}

type budgetRepo struct{ s *store.BudgetStore }

// BudgetRepo adapts the budget store.
func BudgetRepo(s *store.BudgetStore) Repo { return budgetRepo{s} }

func (r budgetRepo) List(userID int64) ([]model.Record, error) {
	return records(r.s.List(userID))
}

func (r budgetRepo) Get(userID int64, id string) (model.Record, error) {
	return record(r.s.GetByID(userID, id))
}

func (r budgetRepo) Create(userID int64, f map[string]any) (model.Record, error) {
	return record(r.s.Create(userID, model.BudgetExpense{
		Name:     str(f, "name"),
		Amount:   dec(f, "amount"),
		Category: str(f, "category"),
		Date:     str(f, "date"),
	}))
}

func (r budgetRepo) Update(userID int64, id string, f map[string]any) (model.Record, error) {
	return record(r.s.Update(userID, id, model.BudgetPatch{
		Name:     strPtr(f, "name"),
		Amount:   decPtr(f, "amount"),
		Category: strPtr(f, "category"),
		Date:     strPtr(f, "date"),
	}))
}

func (r budgetRepo) Delete(userID int64, id string) (bool, error) {
	return r.s.Delete(userID, id)
}

type priceRepo struct{ s *store.PriceStore }

// PriceRepo adapts the price comparison store.
func PriceRepo(s *store.PriceStore) Repo { return priceRepo{s} }

func (r priceRepo) List(userID int64) ([]model.Record, error) {
	return records(r.s.List(userID))
}

func (r priceRepo) Get(userID int64, id string) (model.Record, error) {
	return record(r.s.GetByID(userID, id))
}

func (r priceRepo) Create(userID int64, f map[string]any) (model.Record, error) {
	return record(r.s.Create(userID, model.PriceEntry{
		Item:  str(f, "item"),
		Price: dec(f, "price"),
		Store: str(f, "store"),
	}))
}

func (r priceRepo) Update(userID int64, id string, f map[string]any) (model.Record, error) {
	return record(r.s.Update(userID, id, model.PricePatch{
		Item:  strPtr(f, "item"),
		Price: decPtr(f, "price"),
		Store: strPtr(f, "store"),
	}))
}

func (r priceRepo) Delete(userID int64, id string) (bool, error) {
	return r.s.Delete(userID, id)
}
