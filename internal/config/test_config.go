package config

import "time"

// TestConfig returns a config suitable for testing: in-memory search, no
// query cache, no debounce and short feed timeouts. Paths are left for the
// caller to point at a temp dir.
func TestConfig() *Config {
	cfg := defaultConfig()
	cfg.Content.Dir = ""
	cfg.Search.Backend = BackendMemory
	cfg.Search.IndexPath = ""
	cfg.Search.Debounce = 0
	cfg.Cache.Backend = CacheNone
	cfg.Database.Path = ""
	cfg.Feeds.HTTPTimeout = 5 * time.Second
	cfg.Feeds.RefreshInterval = time.Minute
	cfg.Feeds.DefaultRetryAfter = 5 * time.Minute
	cfg.Feeds.UserAgent = "devportal-test/1.0"
	cfg.Feeds.RatePerSecond = 0
	cfg.Feeds.AllowPrivateHosts = true
	cfg.UI.MarkdownStyle = "notty"
	return cfg
}
