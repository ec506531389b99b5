package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/larder/internal/model"
	"github.com/google/uuid"
)

type InventoryStore struct {
	db *sql.DB
}

func NewInventoryStore(db *sql.DB) *InventoryStore {
	return &InventoryStore{db: db}
}

func scanInventoryItem(scanner interface{ Scan(...any) error }) (*model.InventoryItem, error) {
	var item model.InventoryItem
	err := scanner.Scan(
		&item.ID, &item.UserID, &item.Name, &item.Quantity, &item.Category,
		&item.ExpirationDate, &item.DietaryInfo, &item.EstimatedValue, &item.SourceItemID,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

const inventoryCols = `id, user_id, name, quantity, category, expiration_date, dietary_info, estimated_value, source_item_id, created_at, updated_at`

func (s *InventoryStore) Create(userID int64, item model.InventoryItem) (*model.InventoryItem, error) {
	id := uuid.NewString()
	ts := now()

	_, err := s.db.Exec(
		`INSERT INTO inventory_items (id, user_id, name, quantity, category, expiration_date, dietary_info, estimated_value, source_item_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, item.Name, item.Quantity, item.Category, item.ExpirationDate,
		item.DietaryInfo, item.EstimatedValue, item.SourceItemID, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert inventory item: %w", err)
	}
	return s.GetByID(userID, id)
}

func (s *InventoryStore) GetByID(userID int64, id string) (*model.InventoryItem, error) {
	row := s.db.QueryRow(`SELECT `+inventoryCols+` FROM inventory_items WHERE id = ? AND user_id = ?`, id, userID)
	item, err := scanInventoryItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get inventory item: %w", err)
	}
	return item, nil
}

// GetBySource returns the inventory record projected from a shopping item, or
// nil if the item was never projected.
func (s *InventoryStore) GetBySource(userID int64, sourceItemID string) (*model.InventoryItem, error) {
	row := s.db.QueryRow(
		`SELECT `+inventoryCols+` FROM inventory_items WHERE user_id = ? AND source_item_id = ? ORDER BY created_at ASC LIMIT 1`,
		userID, sourceItemID,
	)
	item, err := scanInventoryItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get inventory item by source: %w", err)
	}
	return item, nil
}

func (s *InventoryStore) List(userID int64) ([]model.InventoryItem, error) {
	rows, err := s.db.Query(`SELECT `+inventoryCols+` FROM inventory_items WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}
	defer rows.Close()

	var items []model.InventoryItem
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ListUserIDs returns the distinct owners of inventory records.
func (s *InventoryStore) ListUserIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT DISTINCT user_id FROM inventory_items ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list inventory user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *InventoryStore) Update(userID int64, id string, p model.InventoryPatch) (*model.InventoryItem, error) {
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
	if p.ExpirationDate != nil {
		a.set("expiration_date", *p.ExpirationDate)
	}
	if p.DietaryInfo != nil {
		a.set("dietary_info", *p.DietaryInfo)
	}
	if p.EstimatedValue != nil {
		a.set("estimated_value", *p.EstimatedValue)
	}
	a.set("updated_at", now())

	result, err := s.db.Exec(
		`UPDATE inventory_items SET `+a.sql()+` WHERE id = ? AND user_id = ?`,
		append(a.args, id, userID)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update inventory item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(userID, id)
}

func (s *InventoryStore) Delete(userID int64, id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM inventory_items WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete inventory item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
