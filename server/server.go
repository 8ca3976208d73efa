package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/existflow/postboard/internal/config"
	"github.com/existflow/postboard/internal/logger"
	"github.com/existflow/postboard/internal/post"
	"github.com/existflow/postboard/internal/store"
	"github.com/existflow/postboard/internal/token"
	"github.com/existflow/postboard/internal/user"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"
)

// Server is the postboard API server
type Server struct {
	cfg     *config.Config
	store   *store.Store
	users   *user.Service
	tokens  *token.Engine
	posts   *post.Engine
	metrics *metrics
	echo    *echo.Echo
}

// Option tweaks server construction
type Option func(*options)

type options struct {
	now        func() time.Time
	bcryptCost int
}

// WithClock overrides time.Now in every engine
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithBcryptCost overrides the password hashing cost
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

// New opens and migrates the configured database, then builds the server
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	s, err := NewWithStore(cfg, st, opts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStore builds the server on an already migrated store
func NewWithStore(cfg *config.Config, st *store.Store, opts ...Option) (*Server, error) {
	o := options{now: time.Now, bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(&o)
	}

	policy, err := post.ParsePolicy(cfg.Posts.DeletePolicy)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		store:   st,
		metrics: newMetrics(),
	}

	s.users = user.NewService(st.Users(),
		user.WithClock(o.now),
		user.WithBcryptCost(o.bcryptCost))
	s.tokens = token.NewEngine(st.Tokens(), s.users,
		token.WithWindow(cfg.Tokens.Window),
		token.WithClock(o.now))
	s.posts = post.NewEngine(st.Posts(), post.StoreTx(st), s.users,
		post.WithPolicy(policy),
		post.WithMaxBounds(cfg.Posts.MaxDepth, cfg.Posts.MaxLimit),
		post.WithClock(o.now),
		post.WithTreeObserver(s.metrics.observeTree))

	s.setupEcho()

	logger.Info("Server configured",
		logger.F("driver", cfg.Database.Driver),
		logger.F("delete_policy", string(policy)),
		logger.F("max_depth", cfg.Posts.MaxDepth),
		logger.F("max_limit", cfg.Posts.MaxLimit))

	return s, nil
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)
	e.Use(s.metrics.middleware)
	if s.cfg.Server.BodyLimit != "" {
		e.Use(middleware.BodyLimit(s.cfg.Server.BodyLimit))
	}
	e.Use(middleware.CORS())

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	// Public endpoints
	e.POST("/user", s.handleCreateUser)
	e.POST("/token", s.handleCreateToken)

	// Protected endpoints
	protected := e.Group("")
	protected.Use(s.authMiddleware)
	protected.GET("/user/:id", s.handleGetUser)
	protected.POST("/user/:id/password", s.handleChangePassword)
	protected.GET("/token/:id", s.handleGetToken)
	protected.PUT("/token/:id", s.handleExtendToken)
	protected.DELETE("/token/:id", s.handleRevokeToken)
	protected.POST("/post", s.handleCreatePost)
	protected.GET("/post/:id", s.handleGetPost)
	protected.PUT("/post/:id", s.handleUpdatePost)
	protected.DELETE("/post/:id", s.handleDeletePost)
	protected.GET("/posts", s.handleListPosts)

	s.echo = e
}

// Close closes the database connection
func (s *Server) Close() error {
	return s.store.Close()
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server and blocks until it stops
func (s *Server) Start(addr string) error {
	logger.Info("Server listening", logger.F("addr", addr))
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Run serves on addr until ctx is done, then drains in-flight requests for
// at most timeout.
func (s *Server) Run(ctx context.Context, addr string, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down", logger.F("timeout", timeout.String()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		logger.Error("Health check failed", logger.F("error", err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
