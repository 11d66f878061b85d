package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be > 0")
	}
	if cfg.Browser.LoginWait < 0 {
		return fmt.Errorf("browser.login_wait must be >= 0")
	}
	if cfg.Browser.ControlURL != "" {
		if _, err := url.Parse(cfg.Browser.ControlURL); err != nil {
			return fmt.Errorf("invalid browser.control_url %q: %w", cfg.Browser.ControlURL, err)
		}
	}

	if err := ValidateURL(cfg.Feed.StartURL); err != nil {
		return fmt.Errorf("feed.start_url: %w", err)
	}
	if err := ValidateURL(cfg.Feed.Origin); err != nil {
		return fmt.Errorf("feed.origin: %w", err)
	}
	if strings.HasSuffix(cfg.Feed.Origin, "/") {
		return fmt.Errorf("feed.origin must not end with '/', got %q", cfg.Feed.Origin)
	}
	if cfg.Feed.MediaHost == "" {
		return fmt.Errorf("feed.media_host must not be empty")
	}
	if len(cfg.Feed.URLPatterns) == 0 {
		return fmt.Errorf("feed.url_patterns must list at least one pattern")
	}

	if cfg.Scroll.ViewportFraction <= 0 || cfg.Scroll.ViewportFraction > 1 {
		return fmt.Errorf("scroll.viewport_fraction must be in (0, 1], got %v", cfg.Scroll.ViewportFraction)
	}
	if cfg.Scroll.Delay < 0 {
		return fmt.Errorf("scroll.delay must be >= 0")
	}
	if cfg.Scroll.StallLimit < 1 {
		return fmt.Errorf("scroll.stall_limit must be >= 1, got %d", cfg.Scroll.StallLimit)
	}
	if cfg.Scroll.MaxIterations < 0 {
		return fmt.Errorf("scroll.max_iterations must be >= 0, got %d", cfg.Scroll.MaxIterations)
	}

	if cfg.Export.Format != "json" && cfg.Export.Format != "csv" {
		return fmt.Errorf("export.format must be 'json' or 'csv', got %q", cfg.Export.Format)
	}
	if cfg.Export.FilenamePrefix == "" {
		return fmt.Errorf("export.filename_prefix must not be empty")
	}

	if cfg.Media.Enabled {
		if cfg.Media.Dir == "" {
			return fmt.Errorf("media.dir must not be empty when media download is enabled")
		}
		if cfg.Media.Concurrency < 1 {
			return fmt.Errorf("media.concurrency must be >= 1, got %d", cfg.Media.Concurrency)
		}
		if cfg.Media.MaxSizeMB < 0 {
			return fmt.Errorf("media.max_size_mb must be >= 0, got %d", cfg.Media.MaxSizeMB)
		}
		if cfg.Media.Timeout <= 0 {
			return fmt.Errorf("media.timeout must be > 0")
		}
		if cfg.Media.RateLimit < 0 {
			return fmt.Errorf("media.rate_limit must be >= 0, got %g", cfg.Media.RateLimit)
		}
		if cfg.Media.RateLimit > 0 && cfg.Media.RateBurst < 1 {
			return fmt.Errorf("media.rate_burst must be >= 1 when rate_limit is set, got %d", cfg.Media.RateBurst)
		}
	}

	if cfg.Storage.Mongo.Enabled {
		if cfg.Storage.Mongo.URI == "" || cfg.Storage.Mongo.Database == "" || cfg.Storage.Mongo.Collection == "" {
			return fmt.Errorf("storage.mongo requires uri, database and collection when enabled")
		}
		if cfg.Storage.Mongo.Timeout <= 0 {
			return fmt.Errorf("storage.mongo.timeout must be > 0")
		}
	}

	if cfg.Storage.SQLite.Enabled && cfg.Storage.SQLite.Path == "" {
		return fmt.Errorf("storage.sqlite.path must not be empty when enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port must be 1-65535, got %d", cfg.API.Port)
	}

	return nil
}

// ValidateURL checks that a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// IsFeedURL reports whether rawURL points at the bookmarks feed.
func (f FeedConfig) IsFeedURL(rawURL string) bool {
	for _, pattern := range f.URLPatterns {
		if pattern != "" && strings.Contains(rawURL, pattern) {
			return true
		}
	}
	return false
}
