package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/dukerupert/larder/internal/model"
	"golang.org/x/crypto/bcrypt"
)

type UserStore struct {
	db   *sql.DB
	cost int
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, cost: bcrypt.DefaultCost}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, name, created_at`

// Create adds a user and returns the API token for it. The token is shown
// once; only its bcrypt hash is stored.
func (s *UserStore) Create(name string) (*model.User, string, error) {
	secret, err := newSecret()
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("hash token: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO users (name, token_hash, created_at) VALUES (?, ?, ?)`,
		name, string(hash), now(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, "", fmt.Errorf("last insert id: %w", err)
	}

	u, err := s.GetByID(id)
	if err != nil {
		return nil, "", err
	}
	return u, fmt.Sprintf("%d.%s", id, secret), nil
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Authenticate resolves a "<id>.<secret>" token to its user. It returns nil
// for malformed, unknown, or mismatched tokens.
func (s *UserStore) Authenticate(token string) (*model.User, error) {
	idStr, secret, ok := strings.Cut(token, ".")
	if !ok || secret == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, nil
	}

	var hash string
	err = s.db.QueryRow(`SELECT token_hash FROM users WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token hash: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		return nil, nil
	}
	return s.GetByID(id)
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func newSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
