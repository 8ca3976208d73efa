// Package post stores posts and assembles bounded reply trees with the
// author identity resolved at every node.
package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/existflow/postboard/internal/apperr"
	"github.com/existflow/postboard/internal/model"
	"github.com/existflow/postboard/internal/store"
	"github.com/google/uuid"
)

// Repository is the storage the engine needs
type Repository interface {
	Create(ctx context.Context, p *model.PostRecord) error
	GetByID(ctx context.Context, id string) (*model.PostRecord, error)
	ListChildren(ctx context.Context, parentID string, limit int) ([]*model.PostRecord, error)
	ListRoots(ctx context.Context, authorID string) ([]*model.PostRecord, error)
	Update(ctx context.Context, id string, title, content *string, modified int64) error
	Delete(ctx context.Context, id string) error
	CountChildren(ctx context.Context, id string) (int, error)
	ChildIDs(ctx context.Context, id string) ([]string, error)
	DetachChildren(ctx context.Context, id string) (int64, error)
}

// TxFunc runs fn with a repository bound to a single transaction
type TxFunc func(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error

// StoreTx adapts store transactions to TxFunc
func StoreTx(st *store.Store) TxFunc {
	return func(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
		return st.WithTx(ctx, func(ctx context.Context, tx store.DBTX) error {
			return fn(ctx, store.NewPostRepository(tx))
		})
	}
}

// IdentityLookup resolves user ids
type IdentityLookup interface {
	Lookup(ctx context.Context, id string) (model.Author, error)
}

// Engine implements post operations
type Engine struct {
	repo     Repository
	inTx     TxFunc
	users    IdentityLookup
	policy   Policy
	maxDepth int
	maxLimit int
	now      func() time.Time
	observe  func(nodes int)
}

// Option configures an Engine
type Option func(*Engine)

// WithPolicy sets how Delete treats replies
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithMaxBounds sets the largest depth and limit a tree read may ask for
func WithMaxBounds(depth, limit int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
		e.maxLimit = limit
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTreeObserver is called with the node count of every assembled tree
func WithTreeObserver(fn func(nodes int)) Option {
	return func(e *Engine) { e.observe = fn }
}

func NewEngine(repo Repository, inTx TxFunc, users IdentityLookup, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		inTx:     inTx,
		users:    users,
		policy:   PolicyReject,
		maxDepth: 5,
		maxLimit: 10,
		now:      time.Now,
		observe:  func(int) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateInput holds the fields of a new post. A nil or empty Parent makes a root post.
type CreateInput struct {
	Title   string
	Content string
	Parent  *string
}

// UpdateInput holds the fields to change. Nil fields keep their value.
type UpdateInput struct {
	Title   *string
	Content *string
}

// Create stores a new post by authorID and returns it with the author resolved
func (e *Engine) Create(ctx context.Context, authorID string, in CreateInput) (*model.Post, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, apperr.InvalidInput("title and content required")
	}
	if in.Parent != nil && *in.Parent == "" {
		in.Parent = nil
	}

	if in.Parent != nil {
		if _, err := e.repo.GetByID(ctx, *in.Parent); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.InvalidInput("parent post not found")
			}
			return nil, apperr.Storage("read parent post", err)
		}
	}

	now := e.now().UnixMilli()
	rec := &model.PostRecord{
		ID:       uuid.NewString(),
		Author:   authorID,
		Parent:   in.Parent,
		Title:    in.Title,
		Content:  in.Content,
		Created:  now,
		Modified: now,
	}
	if err := e.repo.Create(ctx, rec); err != nil {
		if errors.Is(err, store.ErrForeignKey) {
			return nil, apperr.InvalidInput("parent post or author not found")
		}
		return nil, apperr.Storage("create post", err)
	}

	p, err := e.GetByID(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.Storage("read created post", fmt.Errorf("post %s missing after insert", rec.ID))
	}
	return p, nil
}

// GetByID returns the post, or nil when it does not exist
func (e *Engine) GetByID(ctx context.Context, id string) (*model.Post, error) {
	rec, err := e.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Storage("read post", err)
	}
	return e.resolve(ctx, rec)
}

// resolve joins rec with its author. A missing author is a consistency
// failure, not a not-found.
func (e *Engine) resolve(ctx context.Context, rec *model.PostRecord) (*model.Post, error) {
	author, err := e.users.Lookup(ctx, rec.Author)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, &apperr.Error{Kind: apperr.KindStorage, Message: "post author missing", Cause: err}
		}
		return nil, err
	}
	return model.NewPost(rec, author), nil
}

// Update changes title and/or content and refreshes modified
func (e *Engine) Update(ctx context.Context, id string, in UpdateInput) (*model.Post, error) {
	if in.Title == nil && in.Content == nil {
		return nil, apperr.InvalidInput("title or content required")
	}
	if (in.Title != nil && strings.TrimSpace(*in.Title) == "") ||
		(in.Content != nil && strings.TrimSpace(*in.Content) == "") {
		return nil, apperr.InvalidInput("title and content cannot be empty")
	}

	rec, err := e.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("post not found")
		}
		return nil, apperr.Storage("read post", err)
	}

	modified := e.now().UnixMilli()
	if modified < rec.Created {
		modified = rec.Created
	}

	if err := e.repo.Update(ctx, id, in.Title, in.Content, modified); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("post not found")
		}
		return nil, apperr.Storage("update post", err)
	}

	p, err := e.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("post not found")
	}
	return p, nil
}

// Delete removes the post, handling replies according to the engine policy
func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.inTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.GetByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound("post not found")
			}
			return apperr.Storage("read post", err)
		}

		ids := []string{id}
		switch e.policy {
		case PolicyDetach:
			if _, err := repo.DetachChildren(ctx, id); err != nil {
				return apperr.Storage("detach replies", err)
			}
		case PolicyCascade:
			subtree, err := collectSubtree(ctx, repo, id)
			if err != nil {
				return apperr.Storage("collect replies", err)
			}
			ids = subtree
		default:
			n, err := repo.CountChildren(ctx, id)
			if err != nil {
				return apperr.Storage("count replies", err)
			}
			if n > 0 {
				return apperr.Newf(apperr.KindConflict, "post has %d replies", n)
			}
		}

		// children come after their parent in ids, so delete back to front
		for i := len(ids) - 1; i >= 0; i-- {
			if err := repo.Delete(ctx, ids[i]); err != nil {
				if errors.Is(err, store.ErrForeignKey) {
					return apperr.Conflict("post has replies")
				}
				return apperr.Storage("delete post", err)
			}
		}
		return nil
	})
}

// collectSubtree returns id and all of its descendants in breadth-first order
func collectSubtree(ctx context.Context, repo Repository, id string) ([]string, error) {
	ids := []string{id}
	for i := 0; i < len(ids); i++ {
		children, err := repo.ChildIDs(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		ids = append(ids, children...)
	}
	return ids, nil
}
