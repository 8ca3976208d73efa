package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. POSTBOARD_DATABASE_DSN
const EnvPrefix = "POSTBOARD"

// Config holds server and client settings
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	Tokens   TokenConfig    `yaml:"tokens" envconfig:"TOKENS"`
	Posts    PostConfig     `yaml:"posts" envconfig:"POSTS"`
	Log      LogConfig      `yaml:"log" envconfig:"LOG"`
	Client   ClientConfig   `yaml:"client" envconfig:"CLIENT"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	BodyLimit       string        `yaml:"body_limit" envconfig:"BODY_LIMIT"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver" envconfig:"DRIVER"` // postgres or sqlite
	DSN          string `yaml:"dsn" envconfig:"DSN"`
	MaxOpenConns int    `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
}

type TokenConfig struct {
	Window time.Duration `yaml:"window" envconfig:"WINDOW"`
}

type PostConfig struct {
	DefaultDepth int    `yaml:"default_depth" envconfig:"DEFAULT_DEPTH"`
	DefaultLimit int    `yaml:"default_limit" envconfig:"DEFAULT_LIMIT"`
	MaxDepth     int    `yaml:"max_depth" envconfig:"MAX_DEPTH"`
	MaxLimit     int    `yaml:"max_limit" envconfig:"MAX_LIMIT"`
	DeletePolicy string `yaml:"delete_policy" envconfig:"DELETE_POLICY"` // reject, detach or cascade
}

type LogConfig struct {
	Level   string `yaml:"level" envconfig:"LEVEL"` // DEBUG, INFO, WARN, ERROR
	File    string `yaml:"file" envconfig:"FILE"`
	Console bool   `yaml:"console" envconfig:"CONSOLE"`
	Format  string `yaml:"format" envconfig:"FORMAT"` // text or json
}

type ClientConfig struct {
	ServerURL string        `yaml:"server_url" envconfig:"SERVER_URL"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	dsn := "postboard.db"
	if dir, err := Dir(); err == nil {
		dsn = filepath.Join(dir, "postboard.db")
	}

	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			BodyLimit:       "1M",
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          dsn,
			MaxOpenConns: 10,
		},
		Tokens: TokenConfig{
			Window: time.Hour,
		},
		Posts: PostConfig{
			DefaultDepth: 0,
			DefaultLimit: 3,
			MaxDepth:     5,
			MaxLimit:     10,
			DeletePolicy: "reject",
		},
		Log: LogConfig{
			Level:   "INFO",
			Console: true,
			Format:  "text",
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8080",
			Timeout:   30 * time.Second,
		},
	}
}

// Dir returns ~/.postboard
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".postboard"), nil
}

// DefaultPath returns ~/.postboard/config.yaml
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads config from path (or the default path when empty), then
// applies POSTBOARD_* environment overrides. A missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at first use
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}

	switch c.Posts.DeletePolicy {
	case "reject", "detach", "cascade":
	default:
		return fmt.Errorf("unknown post delete policy %q", c.Posts.DeletePolicy)
	}

	if c.Posts.MaxDepth < 0 || c.Posts.MaxLimit < 1 {
		return fmt.Errorf("invalid post bounds: max_depth=%d max_limit=%d", c.Posts.MaxDepth, c.Posts.MaxLimit)
	}
	if c.Posts.DefaultDepth < 0 || c.Posts.DefaultDepth > c.Posts.MaxDepth {
		return fmt.Errorf("default_depth %d outside [0, %d]", c.Posts.DefaultDepth, c.Posts.MaxDepth)
	}
	if c.Posts.DefaultLimit < 0 || c.Posts.DefaultLimit > c.Posts.MaxLimit {
		return fmt.Errorf("default_limit %d outside [0, %d]", c.Posts.DefaultLimit, c.Posts.MaxLimit)
	}

	if c.Tokens.Window <= 0 {
		return errors.New("token window must be positive")
	}
	return nil
}

// Save writes config to path (or the default path when empty)
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
