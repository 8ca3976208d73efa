package store

import (
	"context"

	"github.com/existflow/postboard/internal/model"
	"github.com/jmoiron/sqlx"
)

const userColumns = "id, username, email, password_hash, created"

// UserRepository reads and writes the users table
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u. Duplicate usernames or emails return ErrConflict.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO users (id, username, email, password_hash, created)
		VALUES (?, ?, ?, ?, ?)`),
		u.ID, u.Username, u.Email, u.PasswordHash, u.Created,
	)
	return translate(err)
}

// GetByID returns ErrNotFound when no user has the id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, r.db, &u, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// GetByUsername returns ErrNotFound when no user has the username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, r.db, &u, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ?`), username)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// UpdatePassword replaces the stored hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET password_hash = ? WHERE id = ?`), hash, id)
	if err != nil {
		return translate(err)
	}
	return expectRows(res)
}
