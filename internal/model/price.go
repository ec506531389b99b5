package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriceEntry struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"user_id"`
	Item      string          `json:"item"`
	Price     decimal.Decimal `json:"price"`
	Store     string          `json:"store"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (p PriceEntry) RecordID() string { return p.ID }
func (p PriceEntry) Stamp() time.Time { return p.UpdatedAt }

type PricePatch struct {
	Item  *string          `json:"item,omitempty"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Store *string          `json:"store,omitempty"`
}
