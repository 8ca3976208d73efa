// Package store is the persistence gateway: it opens the database, applies
// the embedded migrations and vends repositories for users, tokens and posts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/existflow/postboard/internal/config"
	"github.com/existflow/postboard/internal/logger"
	"github.com/existflow/postboard/internal/store/migrations"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store wraps the database connection
type Store struct {
	db     *sqlx.DB
	driver string
}

// New wraps an already opened connection
func New(db *sqlx.DB) *Store {
	return &Store{db: db, driver: db.DriverName()}
}

// Open connects to the configured database
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	if cfg.Driver == "sqlite" && isFilePath(cfg.DSN) {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// one connection keeps :memory: databases alive and serializes writers
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	return &Store{db: db, driver: cfg.Driver}, nil
}

func isFilePath(dsn string) bool {
	return !strings.Contains(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:")
}

// DB returns the underlying connection
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Users returns a users repository bound to the connection
func (s *Store) Users() *UserRepository {
	return NewUserRepository(s.db)
}

// Tokens returns a tokens repository bound to the connection
func (s *Store) Tokens() *TokenRepository {
	return NewTokenRepository(s.db)
}

// Posts returns a posts repository bound to the connection
func (s *Store) Posts() *PostRepository {
	return NewPostRepository(s.db)
}

// WithTx runs fn inside a transaction
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	return WithTx(ctx, s.db, nil, fn)
}

// goose keeps its dialect and filesystem in package globals
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations
func (s *Store) Migrate(ctx context.Context) error {
	dialect := "postgres"
	if s.driver == "sqlite" {
		dialect = "sqlite3"
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, s.db.DB, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through the application logger
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), logger.F("component", "migrate"))
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), logger.F("component", "migrate"))
	os.Exit(1)
}
