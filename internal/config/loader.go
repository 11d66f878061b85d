package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > .env files > config file > defaults.
// CLI flags are applied on top by the caller.
func Load(configPath string) (*Config, error) {
	// .env files only fill variables that are not already set.
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".xmarks.env"))
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("XMARKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("xmarks")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".xmarks"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine unless one was named explicitly.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("browser.control_url", cfg.Browser.ControlURL)
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.user_data_dir", cfg.Browser.UserDataDir)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.window_size", cfg.Browser.WindowSize)
	v.SetDefault("browser.auth_token", cfg.Browser.AuthToken)
	v.SetDefault("browser.navigation_timeout", cfg.Browser.NavigationTimeout)
	v.SetDefault("browser.login_wait", cfg.Browser.LoginWait)

	v.SetDefault("feed.start_url", cfg.Feed.StartURL)
	v.SetDefault("feed.origin", cfg.Feed.Origin)
	v.SetDefault("feed.media_host", cfg.Feed.MediaHost)
	v.SetDefault("feed.url_patterns", cfg.Feed.URLPatterns)
	v.SetDefault("feed.exclude_handles", cfg.Feed.ExcludeHandles)

	v.SetDefault("scroll.viewport_fraction", cfg.Scroll.ViewportFraction)
	v.SetDefault("scroll.delay", cfg.Scroll.Delay)
	v.SetDefault("scroll.stall_limit", cfg.Scroll.StallLimit)
	v.SetDefault("scroll.max_iterations", cfg.Scroll.MaxIterations)

	v.SetDefault("export.format", cfg.Export.Format)
	v.SetDefault("export.output_dir", cfg.Export.OutputDir)
	v.SetDefault("export.filename_prefix", cfg.Export.FilenamePrefix)

	v.SetDefault("media.enabled", cfg.Media.Enabled)
	v.SetDefault("media.dir", cfg.Media.Dir)
	v.SetDefault("media.max_size_mb", cfg.Media.MaxSizeMB)
	v.SetDefault("media.concurrency", cfg.Media.Concurrency)
	v.SetDefault("media.timeout", cfg.Media.Timeout)
	v.SetDefault("media.rate_limit", cfg.Media.RateLimit)
	v.SetDefault("media.rate_burst", cfg.Media.RateBurst)

	v.SetDefault("storage.mongo.enabled", cfg.Storage.Mongo.Enabled)
	v.SetDefault("storage.mongo.uri", cfg.Storage.Mongo.URI)
	v.SetDefault("storage.mongo.database", cfg.Storage.Mongo.Database)
	v.SetDefault("storage.mongo.collection", cfg.Storage.Mongo.Collection)
	v.SetDefault("storage.mongo.timeout", cfg.Storage.Mongo.Timeout)

	v.SetDefault("storage.sqlite.enabled", cfg.Storage.SQLite.Enabled)
	v.SetDefault("storage.sqlite.path", cfg.Storage.SQLite.Path)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("api.port", cfg.API.Port)
}
