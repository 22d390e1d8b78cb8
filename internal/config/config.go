package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/pders01/devportal/internal/preview"
	"github.com/pders01/devportal/internal/validation"
)

// Search backends.
const (
	BackendBleve       = "bleve"
	BackendMemory      = "memory"
	BackendMeilisearch = "meilisearch"
)

// Cache backends.
const (
	CacheNone  = "none"
	CacheBolt  = "bolt"
	CacheRedis = "redis"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Content  ContentConfig  `mapstructure:"content"`
	Search   SearchConfig   `mapstructure:"search"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Feeds    FeedConfig     `mapstructure:"feeds"`
	UI       UIConfig       `mapstructure:"ui"`
	Keys     KeyConfig      `mapstructure:"keys"`
	Log      LogConfig      `mapstructure:"log"`
}

type ContentConfig struct {
	Dir        string        `mapstructure:"dir"`
	WatchDelay time.Duration `mapstructure:"watch_delay"`
}

type SearchConfig struct {
	Backend         string                   `mapstructure:"backend"`
	IndexPath       string                   `mapstructure:"index_path"`
	ItemsPerPage    int                      `mapstructure:"items_per_page"`
	Debounce        time.Duration            `mapstructure:"debounce"`
	FilterAttribute string                   `mapstructure:"filter_attribute"`
	Suggestions     []preview.SuggestionSpec `mapstructure:"suggestions"`
	Meilisearch     MeilisearchConfig        `mapstructure:"meilisearch"`
}

type MeilisearchConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"api_key"`
	Index  string `mapstructure:"index"`
}

type CacheConfig struct {
	Backend     string        `mapstructure:"backend"`
	TTL         time.Duration `mapstructure:"ttl"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
}

type DatabaseConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type FeedConfig struct {
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	DefaultRetryAfter time.Duration `mapstructure:"default_retry_after"`
	UserAgent         string        `mapstructure:"user_agent"`
	RatePerSecond     float64       `mapstructure:"rate_per_second"`
	MaxItems          int           `mapstructure:"max_items"`
	Workers           int           `mapstructure:"workers"`
	AllowPrivateHosts bool          `mapstructure:"allow_private_hosts"`
}

type UIConfig struct {
	Colors           UIColors `mapstructure:"colors"`
	DescriptionLimit int      `mapstructure:"description_limit"`
	WordWrapMaxWidth int      `mapstructure:"word_wrap_max_width"`
	WordWrapMinWidth int      `mapstructure:"word_wrap_min_width"`
	MarkdownStyle    string   `mapstructure:"markdown_style"`
	Opener           string   `mapstructure:"opener"`
}

type UIColors struct {
	Primary    string `mapstructure:"primary"`
	Secondary  string `mapstructure:"secondary"`
	Accent     string `mapstructure:"accent"`
	Background string `mapstructure:"background"`
	Surface    string `mapstructure:"surface"`
	Text       string `mapstructure:"text"`
	Muted      string `mapstructure:"muted"`
	Error      string `mapstructure:"error"`
	Success    string `mapstructure:"success"`
}

type KeyConfig struct {
	Modifier string      `mapstructure:"modifier"`
	Bindings KeyBindings `mapstructure:"bindings"`
}

type KeyBindings struct {
	Quit      string `mapstructure:"quit"`
	Search    string `mapstructure:"search"`
	Solutions string `mapstructure:"solutions"`
	Community string `mapstructure:"community"`
	Refresh   string `mapstructure:"refresh"`
	Open      string `mapstructure:"open"`
	Back      string `mapstructure:"back"`
	Help      string `mapstructure:"help"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".devportal")

	return &Config{
		Content: ContentConfig{
			Dir:        "content",
			WatchDelay: 300 * time.Millisecond,
		},
		Search: SearchConfig{
			Backend:         BackendBleve,
			IndexPath:       filepath.Join(dataDir, "index.bleve"),
			ItemsPerPage:    preview.DefaultItemsPerPage,
			Debounce:        150 * time.Millisecond,
			FilterAttribute: "name",
			Suggestions:     preview.DefaultSuggestions(),
			Meilisearch: MeilisearchConfig{
				Host:  "http://localhost:7700",
				Index: "devportal",
			},
		},
		Cache: CacheConfig{
			Backend:     CacheBolt,
			TTL:         10 * time.Minute,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "devportal:",
		},
		Database: DatabaseConfig{
			Path:    filepath.Join(dataDir, "devportal.db"),
			Timeout: 1 * time.Second,
		},
		Feeds: FeedConfig{
			HTTPTimeout:       30 * time.Second,
			RefreshInterval:   15 * time.Minute,
			DefaultRetryAfter: 15 * time.Minute,
			UserAgent:         "devportal/1.0 (+https://github.com/pders01/devportal)",
			RatePerSecond:     1,
			MaxItems:          10,
			Workers:           4,
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary:    "#EB1F1F",
				Secondary:  "#4ECDC4",
				Accent:     "#95E1D3",
				Background: "#1A1A2E",
				Surface:    "#16213E",
				Text:       "#EAEAEA",
				Muted:      "#94A3B8",
				Error:      "#F87171",
				Success:    "#4ADE80",
			},
			DescriptionLimit: preview.DescriptionLimit,
			WordWrapMaxWidth: 120,
			WordWrapMinWidth: 40,
			MarkdownStyle:    "dark",
			Opener:           getDefaultOpener(),
		},
		Keys: KeyConfig{
			Modifier: "ctrl",
			Bindings: KeyBindings{
				Quit:      "q",
				Search:    "/",
				Solutions: "s",
				Community: "c",
				Refresh:   "r",
				Open:      "o",
				Back:      "esc",
				Help:      "?",
			},
		},
		Log: LogConfig{
			Level: "off",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func getDefaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "linux":
		return "xdg-open"
	case "windows":
		return "start"
	default:
		return "open"
	}
}

// DefaultPath returns ~/.config/devportal/config.toml.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "devportal", "config.toml")
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, defaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Dir(DefaultPath()))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DEVPORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	for key, value := range flatten("", cfg.settings()) {
		v.SetDefault(key, value)
	}
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			for fk, fv := range flatten(key, sub) {
				out[fk] = fv
			}
			continue
		}
		out[key] = val
	}
	return out
}

// normalize fills zero values and expands paths.
func (c *Config) normalize() error {
	def := defaultConfig()

	switch c.Search.Backend {
	case BackendBleve, BackendMemory, BackendMeilisearch:
	case "":
		c.Search.Backend = def.Search.Backend
	default:
		return fmt.Errorf("%w: unknown search backend %q", ErrInvalidConfig, c.Search.Backend)
	}
	switch c.Cache.Backend {
	case CacheNone, CacheBolt, CacheRedis:
	case "":
		c.Cache.Backend = def.Cache.Backend
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.Cache.Backend)
	}

	if c.Search.ItemsPerPage <= 0 {
		c.Search.ItemsPerPage = def.Search.ItemsPerPage
	}
	if c.Search.Debounce < 0 {
		c.Search.Debounce = 0
	}
	if len(c.Search.Suggestions) == 0 {
		c.Search.Suggestions = def.Search.Suggestions
	}
	for i, s := range c.Search.Suggestions {
		if s.Name == "" {
			return fmt.Errorf("%w: search.suggestions[%d] has no name", ErrInvalidConfig, i)
		}
		if s.Max <= 0 {
			c.Search.Suggestions[i].Max = preview.DefaultSuggestionLimit
		}
	}
	if c.UI.DescriptionLimit <= 0 {
		c.UI.DescriptionLimit = def.UI.DescriptionLimit
	}
	if c.Feeds.Workers <= 0 {
		c.Feeds.Workers = def.Feeds.Workers
	}
	if c.Feeds.MaxItems <= 0 {
		c.Feeds.MaxItems = def.Feeds.MaxItems
	}

	for _, p := range []*string{&c.Content.Dir, &c.Search.IndexPath, &c.Database.Path, &c.Log.File} {
		if *p == "" {
			continue
		}
		expanded, err := validation.ExpandPath(*p)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		*p = expanded
	}
	return nil
}

// settings renders the config as nested maps with durations as strings,
// the shape written to TOML.
func (c *Config) settings() map[string]any {
	suggestions := make([]map[string]any, 0, len(c.Search.Suggestions))
	for _, s := range c.Search.Suggestions {
		suggestions = append(suggestions, map[string]any{"name": s.Name, "max": s.Max})
	}

	return map[string]any{
		"content": map[string]any{
			"dir":         c.Content.Dir,
			"watch_delay": c.Content.WatchDelay.String(),
		},
		"search": map[string]any{
			"backend":          c.Search.Backend,
			"index_path":       c.Search.IndexPath,
			"items_per_page":   c.Search.ItemsPerPage,
			"debounce":         c.Search.Debounce.String(),
			"filter_attribute": c.Search.FilterAttribute,
			"suggestions":      suggestions,
			"meilisearch": map[string]any{
				"host":    c.Search.Meilisearch.Host,
				"api_key": c.Search.Meilisearch.APIKey,
				"index":   c.Search.Meilisearch.Index,
			},
		},
		"cache": map[string]any{
			"backend":      c.Cache.Backend,
			"ttl":          c.Cache.TTL.String(),
			"redis_addr":   c.Cache.RedisAddr,
			"redis_prefix": c.Cache.RedisPrefix,
		},
		"database": map[string]any{
			"path":    c.Database.Path,
			"timeout": c.Database.Timeout.String(),
		},
		"feeds": map[string]any{
			"http_timeout":        c.Feeds.HTTPTimeout.String(),
			"refresh_interval":    c.Feeds.RefreshInterval.String(),
			"default_retry_after": c.Feeds.DefaultRetryAfter.String(),
			"user_agent":          c.Feeds.UserAgent,
			"rate_per_second":     c.Feeds.RatePerSecond,
			"max_items":           c.Feeds.MaxItems,
			"workers":             c.Feeds.Workers,
			"allow_private_hosts": c.Feeds.AllowPrivateHosts,
		},
		"ui": map[string]any{
			"colors": map[string]any{
				"primary":    c.UI.Colors.Primary,
				"secondary":  c.UI.Colors.Secondary,
				"accent":     c.UI.Colors.Accent,
				"background": c.UI.Colors.Background,
				"surface":    c.UI.Colors.Surface,
				"text":       c.UI.Colors.Text,
				"muted":      c.UI.Colors.Muted,
				"error":      c.UI.Colors.Error,
				"success":    c.UI.Colors.Success,
			},
			"description_limit":   c.UI.DescriptionLimit,
			"word_wrap_max_width": c.UI.WordWrapMaxWidth,
			"word_wrap_min_width": c.UI.WordWrapMinWidth,
			"markdown_style":      c.UI.MarkdownStyle,
			"opener":              c.UI.Opener,
		},
		"keys": map[string]any{
			"modifier": c.Keys.Modifier,
			"bindings": map[string]any{
				"quit":      c.Keys.Bindings.Quit,
				"search":    c.Keys.Bindings.Search,
				"solutions": c.Keys.Bindings.Solutions,
				"community": c.Keys.Bindings.Community,
				"refresh":   c.Keys.Bindings.Refresh,
				"open":      c.Keys.Bindings.Open,
				"back":      c.Keys.Bindings.Back,
				"help":      c.Keys.Bindings.Help,
			},
		},
		"log": map[string]any{
			"level": c.Log.Level,
			"file":  c.Log.File,
		},
	}
}

// TOML renders the effective configuration. The meilisearch API key is
// masked.
func (c *Config) TOML() ([]byte, error) {
	s := c.settings()
	if c.Search.Meilisearch.APIKey != "" {
		s["search"].(map[string]any)["meilisearch"].(map[string]any)["api_key"] = "********"
	}
	out, err := toml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return out, nil
}

func Save(config *Config, path string) error {
	v := viper.New()
	for section, values := range config.settings() {
		v.Set(section, values)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
