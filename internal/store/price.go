package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/larder/internal/model"
	"github.com/google/uuid"
)

type PriceStore struct {
	db *sql.DB
}

func NewPriceStore(db *sql.DB) *PriceStore {
	return &PriceStore{db: db}
}

func scanPrice(scanner interface{ Scan(...any) error }) (*model.PriceEntry, error) {
	var p model.PriceEntry
	err := scanner.Scan(&p.ID, &p.UserID, &p.Item, &p.Price, &p.Store, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const priceCols = `id, user_id, item, price, store, created_at, updated_at`

// Create stores a price observation. The same item and store may be recorded
// any number of times.
func (s *PriceStore) Create(userID int64, p model.PriceEntry) (*model.PriceEntry, error) {
	id := uuid.NewString()
	ts := now()

	_, err := s.db.Exec(
		`INSERT INTO price_entries (id, user_id, item, price, store, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, userID, p.Item, p.Price, p.Store, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert price: %w", err)
	}
	return s.GetByID(userID, id)
}

func (s *PriceStore) GetByID(userID int64, id string) (*model.PriceEntry, error) {
	row := s.db.QueryRow(`SELECT `+priceCols+` FROM price_entries WHERE id = ? AND user_id = ?`, id, userID)
	p, err := scanPrice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get price: %w", err)
	}
	return p, nil
}

func (s *PriceStore) List(userID int64) ([]model.PriceEntry, error) {
	rows, err := s.db.Query(`SELECT `+priceCols+` FROM price_entries WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	defer rows.Close()

	var prices []model.PriceEntry
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		prices = append(prices, *p)
	}
	return prices, rows.Err()
}

func (s *PriceStore) Update(userID int64, id string, p model.PricePatch) (*model.PriceEntry, error) {
	var a assignments
	if p.Item != nil {
		a.set("item", *p.Item)
	}
	if p.Price != nil {
		a.set("price", *p.Price)
	}
	if p.Store != nil {
		a.set("store", *p.Store)
	}
	a.set("updated_at", now())

	result, err := s.db.Exec(
		`UPDATE price_entries SET `+a.sql()+` WHERE id = ? AND user_id = ?`,
		append(a.args, id, userID)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update price: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(userID, id)
}

func (s *PriceStore) Delete(userID int64, id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM price_entries WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete price: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
