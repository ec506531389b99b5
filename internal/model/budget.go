package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget expense categories.
const (
	ExpenseFood          = "food"
	ExpenseTransport     = "transport"
	ExpenseEntertainment = "entertainment"
	ExpenseUtilities     = "utilities"
)

// ExpenseCategories lists the accepted expense categories.
var ExpenseCategories = []string{ExpenseFood, ExpenseTransport, ExpenseEntertainment, ExpenseUtilities}

// ValidExpenseCategory reports whether c is one of ExpenseCategories.
func ValidExpenseCategory(c string) bool {
	for _, v := range ExpenseCategories {
		if v == c {
			return true
		}
	}
	return false
}

type BudgetExpense struct {
	ID       string          `json:"id"`
	UserID   int64           `json:"user_id"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
	Date     string          `json:"date"`
	// Timestamp is assigned by the server on every write.
	Timestamp time.Time `json:"timestamp"`
}

func (e BudgetExpense) RecordID() string { return e.ID }
func (e BudgetExpense) Stamp() time.Time { return e.Timestamp }

type BudgetPatch struct {
	Name     *string          `json:"name,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Category *string          `json:"category,omitempty"`
	Date     *string          `json:"date,omitempty"`
}
