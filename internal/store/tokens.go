package store

import (
	"context"

	"github.com/existflow/postboard/internal/model"
	"github.com/jmoiron/sqlx"
)

const tokenColumns = "id, user_id, username, expires"

// TokenRepository reads and writes the tokens table
type TokenRepository struct {
	db DBTX
}

func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, t *model.Token) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO tokens (id, user_id, username, expires)
		VALUES (?, ?, ?, ?)`),
		t.ID, t.UserID, t.Username, t.Expires,
	)
	return translate(err)
}

// GetByID returns ErrNotFound when the token does not exist. Expiry is not checked.
func (r *TokenRepository) GetByID(ctx context.Context, id string) (*model.Token, error) {
	var t model.Token
	err := sqlx.GetContext(ctx, r.db, &t, r.db.Rebind(`SELECT `+tokenColumns+` FROM tokens WHERE id = ?`), id)
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// GetByIDAndUsername matches on both columns
func (r *TokenRepository) GetByIDAndUsername(ctx context.Context, id, username string) (*model.Token, error) {
	var t model.Token
	err := sqlx.GetContext(ctx, r.db, &t,
		r.db.Rebind(`SELECT `+tokenColumns+` FROM tokens WHERE id = ? AND username = ?`), id, username)
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// ExtendIfLive sets expires only while the stored expiry is still after now.
// It reports whether a row was updated.
func (r *TokenRepository) ExtendIfLive(ctx context.Context, id string, expires, now int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE tokens SET expires = ? WHERE id = ? AND expires > ?`), expires, id, now)
	if err != nil {
		return false, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete returns ErrNotFound when nothing was removed
func (r *TokenRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tokens WHERE id = ?`), id)
	if err != nil {
		return translate(err)
	}
	return expectRows(res)
}
