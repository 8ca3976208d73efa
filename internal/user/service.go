// Package user handles registration, credentials and identity lookup.
package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/existflow/postboard/internal/apperr"
	"github.com/existflow/postboard/internal/model"
	"github.com/existflow/postboard/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinFieldLength applies to username, email and password
const MinFieldLength = 6

// Repository is the storage the service needs
type Repository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

// Service implements user operations
type Service struct {
	repo Repository
	now  func() time.Time
	cost int
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost overrides bcrypt.DefaultCost, mostly to keep tests fast
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account. Fields are trimmed and must be at least
// MinFieldLength long; the password is kept as given.
func (s *Service) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" || email == "" || password == "" {
		return nil, apperr.InvalidInput("username, email, and password required")
	}
	if len(username) < MinFieldLength || len(email) < MinFieldLength || len(password) < MinFieldLength {
		return nil, apperr.Newf(apperr.KindInvalidInput, "username, email, and password must be at least %d characters", MinFieldLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, apperr.Storage("hash password", err)
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Created:      s.now().UnixMilli(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict("username or email already exists")
		}
		return nil, apperr.Storage("create user", err)
	}
	return u, nil
}

// Get returns the user or a NotFound error
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Storage("read user", err)
	}
	return u, nil
}

// Lookup resolves a user id to its public identity
func (s *Service) Lookup(ctx context.Context, id string) (model.Author, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return model.Author{}, err
	}
	return u.Author(), nil
}

// Authenticate checks credentials. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, apperr.InvalidInput("username and password required")
	}

	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, apperr.Storage("read user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return u, nil
}

// ChangePassword validates oldPassword before storing a fresh hash of newPassword
func (s *Service) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return apperr.InvalidInput("password and newPassword required")
	}
	if len(newPassword) < MinFieldLength {
		return apperr.Newf(apperr.KindInvalidInput, "newPassword must be at least %d characters", MinFieldLength)
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return apperr.Unauthorized("wrong password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return apperr.Storage("hash password", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Storage("update password", err)
	}
	return nil
}
