package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type InventoryItem struct {
	ID             string          `json:"id"`
	UserID         int64           `json:"user_id"`
	Name           string          `json:"name"`
	Quantity       decimal.Decimal `json:"quantity"`
	Category       string          `json:"category"`
	ExpirationDate string          `json:"expiration_date,omitempty"`
	DietaryInfo    string          `json:"dietary_info,omitempty"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	// SourceItemID is the shopping item this record was projected from, if any.
	SourceItemID string    `json:"source_item_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (i InventoryItem) RecordID() string { return i.ID }
func (i InventoryItem) Stamp() time.Time { return i.UpdatedAt }

type InventoryPatch struct {
	Name           *string          `json:"name,omitempty"`
	Quantity       *decimal.Decimal `json:"quantity,omitempty"`
	Category       *string          `json:"category,omitempty"`
	ExpirationDate *string          `json:"expiration_date,omitempty"`
	DietaryInfo    *string          `json:"dietary_info,omitempty"`
	EstimatedValue *decimal.Decimal `json:"estimated_value,omitempty"`
}
