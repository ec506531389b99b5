package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/larder/internal/model"
	"github.com/google/uuid"
)

type ShoppingStore struct {
	db *sql.DB
}

func NewShoppingStore(db *sql.DB) *ShoppingStore {
	return &ShoppingStore{db: db}
}

func scanShoppingItem(scanner interface{ Scan(...any) error }) (*model.ShoppingItem, error) {
	var item model.ShoppingItem
	var purchased, added int

	err := scanner.Scan(
		&item.ID, &item.UserID, &item.Name, &item.Quantity, &item.Category,
		&item.Price, &item.Image, &purchased, &added, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Purchased = purchased != 0
	item.AddedToInventory = added != 0
	return &item, nil
}

const shoppingCols = `id, user_id, name, quantity, category, price, image, purchased, added_to_inventory, created_at, updated_at`

func (s *ShoppingStore) Create(userID int64, item model.ShoppingItem) (*model.ShoppingItem, error) {
	id := uuid.NewString()
	ts := now()

	_, err := s.db.Exec(
		`INSERT INTO shopping_items (id, user_id, name, quantity, category, price, image, purchased, added_to_inventory, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, item.Name, item.Quantity, item.Category, item.Price, item.Image,
		boolInt(item.Purchased), boolInt(item.AddedToInventory), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert shopping item: %w", err)
	}
	return s.GetByID(userID, id)
}

func (s *ShoppingStore) GetByID(userID int64, id string) (*model.ShoppingItem, error) {
	row := s.db.QueryRow(`SELECT `+shoppingCols+` FROM shopping_items WHERE id = ? AND user_id = ?`, id, userID)
	item, err := scanShoppingItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopping item: %w", err)
	}
	return item, nil
}

// List returns every shopping item owned by the user. It is the snapshot source
// for the shopping collection.
func (s *ShoppingStore) List(userID int64) ([]model.ShoppingItem, error) {
	rows, err := s.db.Query(`SELECT `+shoppingCols+` FROM shopping_items WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list shopping items: %w", err)
	}
	defer rows.Close()

	var items []model.ShoppingItem
	for rows.Next() {
		item, err := scanShoppingItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Update overwrites only the fields present in the patch.
// Returns nil when the item does not exist.
func (s *ShoppingStore) Update(userID int64, id string, p model.ShoppingPatch) (*model.ShoppingItem, error) {
	var a assignments
	if p.Name != nil {
		a.set("name", *p.Name)
	}
	if p.Quantity != nil {
		a.set("quantity", *p.Quantity)
	}
	if p.Category != nil {
		a.set("category", *p.Category)
	}
	if p.Price != nil {
		a.set("price", *p.Price)
	}
	if p.Image != nil {
		a.set("image", *p.Image)
	}
	if p.Purchased != nil {
		a.set("purchased", boolInt(*p.Purchased))
	}
	a.set("updated_at", now())

	result, err := s.db.Exec(
		`UPDATE shopping_items SET `+a.sql()+` WHERE id = ? AND user_id = ?`,
		append(a.args, id, userID)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update shopping item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(userID, id)
}

func (s *ShoppingStore) Delete(userID int64, id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM shopping_items WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete shopping item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkAddedToInventory flips added_to_inventory from false to true. It reports
// false when the flag was already set or the item is gone, so concurrent
// callers cannot both succeed.
func (s *ShoppingStore) MarkAddedToInventory(userID int64, id string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE shopping_items SET added_to_inventory = 1, updated_at = ?
		 WHERE id = ? AND user_id = ? AND added_to_inventory = 0`,
		now(), id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("mark added to inventory: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
