package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a registered player.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserRepository stores players.
type UserRepository struct {
	db *sql.DB
}

// Users returns the user repository.
func (s *Store) Users() *UserRepository {
	return &UserRepository{db: s.db}
}

// Create registers name. Names are unique ignoring case.
func (r *UserRepository) Create(name string) (*User, error) {
	u := &User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now().UTC(),
	}
	if u.Name == "" {
		return nil, errors.New("user name is empty")
	}

	_, err := r.db.Exec(`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		u.ID, u.Name, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// GetByID returns the user with id.
func (r *UserRepository) GetByID(id string) (*User, error) {
	return r.get(`SELECT id, name, created_at FROM users WHERE id = ?`, id)
}

// GetByName looks a user up by name, ignoring case.
func (r *UserRepository) GetByName(name string) (*User, error) {
	return r.get(`SELECT id, name, created_at FROM users WHERE name = ?`, strings.TrimSpace(name))
}

func (r *UserRepository) get(query string, arg string) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(query, arg).Scan(&u.ID, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// List returns all users sorted by name.
func (r *UserRepository) List() ([]*User, error) {
	rows, err := r.db.Query(`SELECT id, name, created_at FROM users ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u := &User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Delete removes a user and, by cascade, their analyses.
func (r *UserRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}
