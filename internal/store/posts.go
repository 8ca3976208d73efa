package store

import (
	"context"

	"github.com/existflow/postboard/internal/model"
	"github.com/jmoiron/sqlx"
)

const postColumns = "id, author, parent, title, content, created, modified"

// PostRecords are always returned oldest first, ties broken by id, so
// fan-out truncation keeps a reproducible prefix.
const postOrder = " ORDER BY created ASC, id ASC"

// PostRepository reads and writes the posts table
type PostRepository struct {
	db DBTX
}

func NewPostRepository(db DBTX) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts p. A parent that does not exist returns ErrForeignKey.
func (r *PostRepository) Create(ctx context.Context, p *model.PostRecord) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO posts (id, author, parent, title, content, created, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.Author, p.Parent, p.Title, p.Content, p.Created, p.Modified,
	)
	return translate(err)
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*model.PostRecord, error) {
	var p model.PostRecord
	err := sqlx.GetContext(ctx, r.db, &p, r.db.Rebind(`SELECT `+postColumns+` FROM posts WHERE id = ?`), id)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ListChildren returns at most limit direct replies of parentID
func (r *PostRepository) ListChildren(ctx context.Context, parentID string, limit int) ([]*model.PostRecord, error) {
	posts := []*model.PostRecord{}
	err := sqlx.SelectContext(ctx, r.db, &posts,
		r.db.Rebind(`SELECT `+postColumns+` FROM posts WHERE parent = ?`+postOrder+` LIMIT ?`), parentID, limit)
	if err != nil {
		return nil, translate(err)
	}
	return posts, nil
}

// ListRoots returns every post by authorID that has no parent
func (r *PostRepository) ListRoots(ctx context.Context, authorID string) ([]*model.PostRecord, error) {
	posts := []*model.PostRecord{}
	err := sqlx.SelectContext(ctx, r.db, &posts,
		r.db.Rebind(`SELECT `+postColumns+` FROM posts WHERE author = ? AND parent IS NULL`+postOrder), authorID)
	if err != nil {
		return nil, translate(err)
	}
	return posts, nil
}

// Update sets the non-nil fields and modified. created is never touched.
func (r *PostRepository) Update(ctx context.Context, id string, title, content *string, modified int64) error {
	set := make([]assignment, 0, 3)
	if title != nil {
		set = append(set, assignment{"title", *title})
	}
	if content != nil {
		set = append(set, assignment{"content", *content})
	}
	set = append(set, assignment{"modified", modified})

	query, args := buildUpdate("posts", set, id)
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return translate(err)
	}
	return expectRows(res)
}

// Delete removes a single row. Existing replies make it fail with ErrForeignKey.
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM posts WHERE id = ?`), id)
	if err != nil {
		return translate(err)
	}
	return expectRows(res)
}

// CountChildren returns the number of direct replies
func (r *PostRepository) CountChildren(ctx context.Context, id string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(`SELECT COUNT(*) FROM posts WHERE parent = ?`), id)
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// ChildIDs returns the ids of all direct replies
func (r *PostRepository) ChildIDs(ctx context.Context, id string) ([]string, error) {
	ids := []string{}
	err := sqlx.SelectContext(ctx, r.db, &ids, r.db.Rebind(`SELECT id FROM posts WHERE parent = ?`), id)
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}

// DetachChildren turns the direct replies of id into root posts
func (r *PostRepository) DetachChildren(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE posts SET parent = NULL WHERE parent = ?`), id)
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}
