package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShoppingItem struct {
	ID               string          `json:"id"`
	UserID           int64           `json:"user_id"`
	Name             string          `json:"name"`
	Quantity         decimal.Decimal `json:"quantity"`
	Category         string          `json:"category"`
	Price            decimal.Decimal `json:"price"`
	Image            string          `json:"image,omitempty"`
	Purchased        bool            `json:"purchased"`
	AddedToInventory bool            `json:"added_to_inventory"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (i ShoppingItem) RecordID() string { return i.ID }
func (i ShoppingItem) Stamp() time.Time { return i.UpdatedAt }

// LineTotal is price × quantity.
func (i ShoppingItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(i.Quantity)
}

// ShoppingPatch carries a partial update; nil fields are left untouched.
type ShoppingPatch struct {
	Name      *string          `json:"name,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	Category  *string          `json:"category,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Image     *string          `json:"image,omitempty"`
	Purchased *bool            `json:"purchased,omitempty"`
}
