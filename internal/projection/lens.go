package projection

import (
	"sort"
	"strings"

	"github.com/dukerupert/larder/internal/model"
	"github.com/shopspring/decimal"
)

// Field is a sortable column. Exactly one of Text or Number is set.
type Field[T any] struct {
	Text   func(T) string
	Number func(T) decimal.Decimal
}

// Lens describes how a collection is searched, sorted and summed.
type Lens[T model.Record] struct {
	Collection model.Collection
	// Search lists the text fields a filter query is matched against.
	Search []func(T) string
	Fields map[string]Field[T]
	Total  func(T) decimal.Decimal
	Bucket func(T) string
	// Quantity enables the low-stock view when set.
	Quantity func(T) decimal.Decimal
	// Expires enables the expiring-soon view when set. It returns a YYYY-MM-DD
	// date or "".
	Expires func(T) string
}

// SortKeys lists the field names accepted by Sort.
func (l Lens[T]) SortKeys() []string {
	keys := make([]string, 0, len(l.Fields))
	for k := range l.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasSortKey reports whether key names a sortable field.
func (l Lens[T]) HasSortKey(key string) bool {
	_, ok := l.Fields[key]
	return ok
}

// Filter keeps records where any search field contains query, ignoring case.
// An empty query keeps everything. The input slice is not modified.
func (l Lens[T]) Filter(records []T, query string) []T {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]T, 0, len(records))
	for _, r := range records {
		if q == "" || l.matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func (l Lens[T]) matches(r T, q string) bool {
	for _, f := range l.Search {
		if strings.Contains(strings.ToLower(f(r)), q) {
			return true
		}
	}
	return false
}

// Sort orders records in place by a single field, ascending and stable.
// Unknown keys leave the order alone.
func (l Lens[T]) Sort(records []T, key string) {
	f, ok := l.Fields[key]
	if !ok {
		return
	}
	switch {
	case f.Number != nil:
		sort.SliceStable(records, func(i, j int) bool {
			return f.Number(records[i]).LessThan(f.Number(records[j]))
		})
	case f.Text != nil:
		sort.SliceStable(records, func(i, j int) bool {
			return f.Text(records[i]) < f.Text(records[j])
		})
	}
}

func text[T any](fn func(T) string) Field[T] { return Field[T]{Text: fn} }
func number[T any](fn func(T) decimal.Decimal) Field[T] { return Field[T]{Number: fn} }

// Shopping sums price × quantity and buckets by category.
func Shopping() Lens[model.ShoppingItem] {
	name := func(i model.ShoppingItem) string { return i.Name }
	category := func(i model.ShoppingItem) string { return i.Category }
	return Lens[model.ShoppingItem]{
		Collection: model.CollectionShopping,
		Search:     []func(model.ShoppingItem) string{name, category},
		Fields: map[string]Field[model.ShoppingItem]{
			"name":     text(name),
			"category": text(category),
			"quantity": number(func(i model.ShoppingItem) decimal.Decimal { return i.Quantity }),
			"price":    number(func(i model.ShoppingItem) decimal.Decimal { return i.Price }),
		},
		Total:  model.ShoppingItem.LineTotal,
		Bucket: category,
	}
}

// Inventory sums estimated value and drives the low-stock and expiring views.
func Inventory() Lens[model.InventoryItem] {
	name := func(i model.InventoryItem) string { return i.Name }
	category := func(i model.InventoryItem) string { return i.Category }
	quantity := func(i model.InventoryItem) decimal.Decimal { return i.Quantity }
	expires := func(i model.InventoryItem) string { return i.ExpirationDate }
	return Lens[model.InventoryItem]{
		Collection: model.CollectionInventory,
		Search: []func(model.InventoryItem) string{
			name, category,
			func(i model.InventoryItem) string { return i.DietaryInfo },
		},
		Fields: map[string]Field[model.InventoryItem]{
			"name":            text(name),
			"category":        text(category),
			"expiration_date": text(expires),
			"quantity":        number(quantity),
			"estimated_value": number(func(i model.InventoryItem) decimal.Decimal { return i.EstimatedValue }),
		},
		Total:    func(i model.InventoryItem) decimal.Decimal { return i.EstimatedValue },
		Bucket:   category,
		Quantity: quantity,
		Expires:  expires,
	}
}

// Budget sums expense amounts per category.
func Budget() Lens[model.BudgetExpense] {
	name := func(e model.BudgetExpense) string { return e.Name }
	category := func(e model.BudgetExpense) string { return e.Category }
	amount := func(e model.BudgetExpense) decimal.Decimal { return e.Amount }
	return Lens[model.BudgetExpense]{
		Collection: model.CollectionBudget,
		Search:     []func(model.BudgetExpense) string{name, category},
		Fields: map[string]Field[model.BudgetExpense]{
			"name":     text(name),
			"category": text(category),
			"date":     text(func(e model.BudgetExpense) string { return e.Date }),
			"amount":   number(amount),
		},
		Total:  amount,
		Bucket: category,
	}
}

// Prices buckets observed prices by store.
func Prices() Lens[model.PriceEntry] {
	item := func(p model.PriceEntry) string { return p.Item }
	store := func(p model.PriceEntry) string { return p.Store }
	price := func(p model.PriceEntry) decimal.Decimal { return p.Price }
	return Lens[model.PriceEntry]{
		Collection: model.CollectionPrices,
		Search:     []func(model.PriceEntry) string{item, store},
		Fields: map[string]Field[model.PriceEntry]{
			"item":  text(item),
			"store": text(store),
			"price": number(price),
		},
		Total:  price,
		Bucket: store,
	}
}

// Cheapest picks the lowest price for each distinct item name, in order of
// first appearance. On a tie the earlier entry wins.
func Cheapest(entries []model.PriceEntry) []model.PriceEntry {
	index := map[string]int{}
	var out []model.PriceEntry
	for _, e := range entries {
		i, ok := index[e.Item]
		if !ok {
			index[e.Item] = len(out)
			out = append(out, e)
			continue
		}
		if e.Price.LessThan(out[i].Price) {
			out[i] = e
		}
	}
	return out
}
