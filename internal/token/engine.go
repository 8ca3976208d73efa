// Package token issues and validates the bearer credentials that guard
// every protected route.
//
// A token is valid while its expiry is in the future and its stored
// username matches the one claimed. Extension is a single conditional
// UPDATE, so a token that has already expired can never be revived. Verify
// and Revoke are not serialized against each other: a verify that reads a
// row just before a concurrent revoke deletes it still reports success.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/existflow/postboard/internal/apperr"
	"github.com/existflow/postboard/internal/model"
	"github.com/existflow/postboard/internal/store"
)

// DefaultWindow is how long an issued or extended token stays valid
const DefaultWindow = 3_600_000 * time.Millisecond

// Repository is the storage the engine needs
type Repository interface {
	Create(ctx context.Context, t *model.Token) error
	GetByID(ctx context.Context, id string) (*model.Token, error)
	GetByIDAndUsername(ctx context.Context, id, username string) (*model.Token, error)
	ExtendIfLive(ctx context.Context, id string, expires, now int64) (bool, error)
	Delete(ctx context.Context, id string) error
}

// IdentityLookup resolves user ids
type IdentityLookup interface {
	Lookup(ctx context.Context, id string) (model.Author, error)
}

// Engine manages the token lifecycle
type Engine struct {
	repo   Repository
	users  IdentityLookup
	window time.Duration
	now    func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithWindow overrides DefaultWindow
func WithWindow(d time.Duration) Option {
	return func(e *Engine) { e.window = d }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(repo Repository, users IdentityLookup, opts ...Option) *Engine {
	e := &Engine{repo: repo, users: users, window: DefaultWindow, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Window returns the configured validity window
func (e *Engine) Window() time.Duration {
	return e.window
}

// Issue creates a token for userID that expires one window from now
func (e *Engine) Issue(ctx context.Context, userID string) (*model.Token, error) {
	author, err := e.users.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, apperr.Storage("generate token", err)
	}

	t := &model.Token{
		ID:       id,
		UserID:   author.ID,
		Username: author.Username,
		Expires:  e.now().Add(e.window).UnixMilli(),
	}
	if err := e.repo.Create(ctx, t); err != nil {
		return nil, apperr.Storage("create token", err)
	}
	return t, nil
}

// GetByID returns the token, or nil when it does not exist. Expiry is not
// checked.
func (e *Engine) GetByID(ctx context.Context, id string) (*model.Token, error) {
	if id == "" {
		return nil, nil
	}
	t, err := e.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Storage("read token", err)
	}
	return t, nil
}

// Extend pushes expiry to now+window (the engine window when window <= 0).
// Expired tokens fail with KindExpired and are left untouched.
func (e *Engine) Extend(ctx context.Context, id string, window time.Duration) (*model.Token, error) {
	if window <= 0 {
		window = e.window
	}
	now := e.now()

	ok, err := e.repo.ExtendIfLive(ctx, id, now.Add(window).UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, apperr.Storage("extend token", err)
	}

	t, err := e.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("token not found")
	}
	if !ok {
		return nil, apperr.Expired("token already expired")
	}
	return t, nil
}

// Revoke deletes the token. Unknown ids fail with KindNotFound.
func (e *Engine) Revoke(ctx context.Context, id string) error {
	if err := e.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("token not found")
		}
		return apperr.Storage("delete token", err)
	}
	return nil
}

// Verify succeeds only when a token with both id and username exists and
// has not expired
func (e *Engine) Verify(ctx context.Context, id, username string) error {
	if id == "" || username == "" {
		return apperr.InvalidInput("token and username required")
	}

	t, err := e.repo.GetByIDAndUsername(ctx, id, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("token not found")
		}
		return apperr.Storage("read token", err)
	}
	if t.IsExpired(e.now()) {
		return apperr.Expired("token expired")
	}
	return nil
}

// newID returns 32 random bytes, hex encoded
func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
