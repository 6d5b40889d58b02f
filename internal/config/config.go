package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/evanschultz/reeldesk/internal/domain"
)

const (
	defaultMaxConcurrency = 8
	defaultCacheTTL       = 300
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Board    BoardConfig    `toml:"board"`
	Reorder  ReorderConfig  `toml:"reorder"`
	Storage  StorageConfig  `toml:"storage"`
	Cache    CacheConfig    `toml:"cache"`
	Server   ServerConfig   `toml:"server"`
	Remote   RemoteConfig   `toml:"remote"`
	Keys     KeyConfig      `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level string `toml:"level"` // debug | info | warn | error
}

type BoardConfig struct {
	Categories []CategoryConfig `toml:"categories"`
}

type CategoryConfig struct {
	ID    string `toml:"id"`
	Title string `toml:"title"`
}

type ReorderConfig struct {
	MaxConcurrency int  `toml:"max_concurrency"`
	Transactional  bool `toml:"transactional"`
}

type StorageConfig struct {
	PublicBaseURL string `toml:"public_base_url"`
}

// CacheConfig enables the Redis list cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr  string `toml:"redis_addr"`
	RedisDB    int    `toml:"redis_db"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// RemoteConfig points the TUI and CLI at a running reeldesk API instead of the local database.
type RemoteConfig struct {
	BaseURL string `toml:"base_url"`
}

// KeyConfig rebinds the configurable TUI keys. Blank values keep the defaults.
type KeyConfig struct {
	Pick    string `toml:"pick"`
	Reorder string `toml:"reorder"`
	Details string `toml:"details"`
	CopyURL string `toml:"copy_url"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Reorder: ReorderConfig{
			MaxConcurrency: defaultMaxConcurrency,
		},
		Cache: CacheConfig{
			TTLSeconds: defaultCacheTTL,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Keys: KeyConfig{
			Pick:    "space",
			Reorder: "r",
			Details: "i",
			CopyURL: "y",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" && strings.TrimSpace(c.Remote.BaseURL) == "" {
		return errors.New("database path is required")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if len(c.Board.Categories) > 0 {
		if _, err := c.Pipeline(); err != nil {
			return fmt.Errorf("board.categories: %w", err)
		}
	}

	if c.Reorder.MaxConcurrency < 0 {
		return fmt.Errorf("reorder.max_concurrency must be >= 0")
	}

	if raw := strings.TrimSpace(c.Storage.PublicBaseURL); raw != "" {
		if err := validateHTTPURL(raw); err != nil {
			return fmt.Errorf("storage.public_base_url: %w", err)
		}
	}

	if c.Cache.RedisDB < 0 {
		return fmt.Errorf("cache.redis_db must be >= 0")
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must be >= 0")
	}

	if raw := strings.TrimSpace(c.Remote.BaseURL); raw != "" {
		if err := validateHTTPURL(raw); err != nil {
			return fmt.Errorf("remote.base_url: %w", err)
		}
	}

	if err := c.Keys.validate(); err != nil {
		return fmt.Errorf("keys: %w", err)
	}
	return nil
}

// validate rejects keys bound to more than one action.
func (k KeyConfig) validate() error {
	seen := map[string]string{}
	for _, binding := range []struct{ name, key string }{
		{"pick", k.Pick},
		{"reorder", k.Reorder},
		{"details", k.Details},
		{"copy_url", k.CopyURL},
	} {
		key := strings.TrimSpace(binding.key)
		if key == "" {
			continue
		}
		if key == " " {
			key = "space"
		}
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%s and %s are both bound to %q", prev, binding.name, key)
		}
		seen[key] = binding.name
	}
	return nil
}

// Pipeline returns the configured board categories, or the default pipeline.
func (c Config) Pipeline() (domain.Pipeline, error) {
	if len(c.Board.Categories) == 0 {
		return domain.DefaultPipeline(), nil
	}
	categories := make([]domain.Category, 0, len(c.Board.Categories))
	for _, category := range c.Board.Categories {
		categories = append(categories, domain.Category{ID: category.ID, Title: category.Title})
	}
	return domain.NewPipeline(categories)
}

// CacheEnabled reports whether a Redis list cache is configured.
func (c Config) CacheEnabled() bool {
	return strings.TrimSpace(c.Cache.RedisAddr) != ""
}

// CacheTTL returns the list cache entry lifetime.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// UsesRemote reports whether collections come from a remote API.
func (c Config) UsesRemote() bool {
	return strings.TrimSpace(c.Remote.BaseURL) != ""
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
