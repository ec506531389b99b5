package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/larder/internal/model"
	"github.com/google/uuid"
)

type BudgetStore struct {
	db *sql.DB
}

func NewBudgetStore(db *sql.DB) *BudgetStore {
	return &BudgetStore{db: db}
}

func scanExpense(scanner interface{ Scan(...any) error }) (*model.BudgetExpense, error) {
	var e model.BudgetExpense
	err := scanner.Scan(&e.ID, &e.UserID, &e.Name, &e.Amount, &e.Category, &e.Date, &e.Timestamp)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const expenseCols = `id, user_id, name, amount, category, date, timestamp`

// Create stores the expense and assigns its timestamp.
func (s *BudgetStore) Create(userID int64, e model.BudgetExpense) (*model.BudgetExpense, error) {
	id := uuid.NewString()

	_, err := s.db.Exec(
		`INSERT INTO budget_expenses (id, user_id, name, amount, category, date, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, userID, e.Name, e.Amount, e.Category, e.Date, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	return s.GetByID(userID, id)
}

func (s *BudgetStore) GetByID(userID int64, id string) (*model.BudgetExpense, error) {
	row := s.db.QueryRow(`SELECT `+expenseCols+` FROM budget_expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (s *BudgetStore) List(userID int64) ([]model.BudgetExpense, error) {
	rows, err := s.db.Query(`SELECT `+expenseCols+` FROM budget_expenses WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []model.BudgetExpense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// Update applies the patch and moves the timestamp forward.
func (s *BudgetStore) Update(userID int64, id string, p model.BudgetPatch) (*model.BudgetExpense, error) {
	var a assignments
	if p.Name != nil {
		a.set("name", *p.Name)
	}
	if p.Amount != nil {
		a.set("amount", *p.Amount)
	}
	if p.Category != nil {
		a.set("category", *p.Category)
	}
	if p.Date != nil {
		a.set("date", *p.Date)
	}
	a.set("timestamp", now())

	result, err := s.db.Exec(
		`UPDATE budget_expenses SET `+a.sql()+` WHERE id = ? AND user_id = ?`,
		append(a.args, id, userID)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(userID, id)
}

func (s *BudgetStore) Delete(userID int64, id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM budget_expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete expense: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
