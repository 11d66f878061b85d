package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for xmarks.
type Config struct {
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Feed    FeedConfig    `mapstructure:"feed"    yaml:"feed"`
	Scroll  ScrollConfig  `mapstructure:"scroll"  yaml:"scroll"`
	Export  ExportConfig  `mapstructure:"export"  yaml:"export"`
	Media   MediaConfig   `mapstructure:"media"   yaml:"media"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
}

// BrowserConfig controls how the Chromium page is obtained.
type BrowserConfig struct {
	// ControlURL attaches to an already running browser instead of launching one.
	ControlURL        string        `mapstructure:"control_url"        yaml:"control_url"`
	Headless          bool          `mapstructure:"headless"           yaml:"headless"`
	UserDataDir       string        `mapstructure:"user_data_dir"      yaml:"user_data_dir"`
	Stealth           bool          `mapstructure:"stealth"            yaml:"stealth"`
	WindowSize        string        `mapstructure:"window_size"        yaml:"window_size"`
	AuthToken         string        `mapstructure:"auth_token"         yaml:"auth_token"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// LoginWait is how long to wait for a manual sign-in; 0 disables waiting.
	LoginWait         time.Duration `mapstructure:"login_wait"         yaml:"login_wait"`
}

// FeedConfig describes the feed being scraped.
type FeedConfig struct {
	StartURL    string   `mapstructure:"start_url"    yaml:"start_url"`
	Origin      string   `mapstructure:"origin"       yaml:"origin"`
	MediaHost   string   `mapstructure:"media_host"   yaml:"media_host"`
	URLPatterns []string `mapstructure:"url_patterns" yaml:"url_patterns"`

	// ExcludeHandles lists accounts whose posts are never collected.
	ExcludeHandles []string `mapstructure:"exclude_handles" yaml:"exclude_handles"`
}

// ScrollConfig controls the auto-scroll loop.
type ScrollConfig struct {
	ViewportFraction float64       `mapstructure:"viewport_fraction" yaml:"viewport_fraction"`
	Delay            time.Duration `mapstructure:"delay"             yaml:"delay"`
	StallLimit       int           `mapstructure:"stall_limit"       yaml:"stall_limit"`
	MaxIterations    int           `mapstructure:"max_iterations"    yaml:"max_iterations"`
}

// ExportConfig controls export file generation.
type ExportConfig struct {
	Format         string `mapstructure:"format"          yaml:"format"`
	OutputDir      string `mapstructure:"output_dir"      yaml:"output_dir"`
	FilenamePrefix string `mapstructure:"filename_prefix" yaml:"filename_prefix"`
}

// MediaConfig controls downloading bookmark images next to the export.
type MediaConfig struct {
	Enabled     bool          `mapstructure:"enabled"     yaml:"enabled"`
	Dir         string        `mapstructure:"dir"         yaml:"dir"`
	MaxSizeMB   int64         `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"     yaml:"timeout"`
	// RateLimit caps requests per second to the media host; 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// StorageConfig controls optional export sinks besides the output file.
type StorageConfig struct {
	Mongo  MongoConfig  `mapstructure:"mongo"  yaml:"mongo"`
	SQLite SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
}

// SQLiteConfig controls the local SQLite sink.
type SQLiteConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// MongoConfig controls the MongoDB sink.
type MongoConfig struct {
	Enabled    bool          `mapstructure:"enabled"    yaml:"enabled"`
	URI        string        `mapstructure:"uri"        yaml:"uri"`
	Database   string        `mapstructure:"database"   yaml:"database"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"    yaml:"timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// APIConfig controls the HTTP control API of "xmarks serve".
type APIConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:          false,
			Stealth:           true,
			WindowSize:        "1280,900",
			NavigationTimeout: 30 * time.Second,
			LoginWait:         2 * time.Minute,
		},
		Feed: FeedConfig{
			StartURL:  "https://x.com/i/bookmarks",
			Origin:    "https://x.com",
			MediaHost: "pbs.twimg.com/media",
			URLPatterns: []string{
				"x.com/i/bookmarks",
				"twitter.com/i/bookmarks",
			},
		},
		Scroll: ScrollConfig{
			ViewportFraction: 0.8,
			Delay:            1500 * time.Millisecond,
			StallLimit:       5,
			MaxIterations:    0,
		},
		Export: ExportConfig{
			Format:         "json",
			OutputDir:      "./output",
			FilenamePrefix: "x-bookmarks",
		},
		Media: MediaConfig{
			Enabled:     false,
			Dir:         "./output/media",
			MaxSizeMB:   50,
			Concurrency: 4,
			Timeout:     60 * time.Second,
			RateLimit:   4,
			RateBurst:   2,
		},
		Storage: StorageConfig{
			Mongo: MongoConfig{
				Enabled:    false,
				URI:        "mongodb://localhost:27017",
				Database:   "xmarks",
				Collection: "bookmarks",
				Timeout:    10 * time.Second,
			},
			SQLite: SQLiteConfig{
				Enabled: false,
				Path:    "./output/xmarks.db",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		API: APIConfig{
			Port: 8080,
		},
	}
}
