package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/xmarks/internal/config"
	"github.com/IshaanNene/xmarks/internal/storage"
)

var (
	cfgFile      string
	verbose      bool
	outputPath   string
	outputFormat string
	controlURL   string
	headless     bool
	maxScrolls   int
	withMedia    bool
	apiPort      int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "xmarks",
		Short: "xmarks: export your X bookmarks",
		Long: `xmarks drives a Chromium page on your X bookmarks feed, scrolls it to the end,
and exports every bookmark it finds as JSON or CSV.

Log in once in the browser profile (browser.user_data_dir), attach to a running
browser with --control-url, or provide browser.auth_token.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(scrollCmd())
	rootCmd.AddCommand(shellCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addBrowserFlags registers the flags shared by commands that open the feed.
func addBrowserFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output directory")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "", "export format: json, csv")
	cmd.Flags().StringVar(&controlURL, "control-url", "", "DevTools URL of an already running browser")
	cmd.Flags().BoolVar(&headless, "headless", false, "run the launched browser headless")
	cmd.Flags().BoolVar(&withMedia, "media", false, "also download bookmark images into media.dir")
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("xmarks %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Browser:\n")
			fmt.Printf("  Control URL:       %s\n", orNone(cfg.Browser.ControlURL))
			fmt.Printf("  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Printf("  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Printf("  User Data Dir:     %s\n", orNone(cfg.Browser.UserDataDir))
			fmt.Printf("  Auth Token:        %v\n", cfg.Browser.AuthToken != "")
			fmt.Printf("\nFeed:\n")
			fmt.Printf("  Start URL:         %s\n", cfg.Feed.StartURL)
			fmt.Printf("  Origin:            %s\n", cfg.Feed.Origin)
			fmt.Printf("  Excluded Handles:  %s\n", orNone(strings.Join(cfg.Feed.ExcludeHandles, ", ")))
			fmt.Printf("\nScroll:\n")
			fmt.Printf("  Viewport Fraction: %.2f\n", cfg.Scroll.ViewportFraction)
			fmt.Printf("  Delay:             %s\n", cfg.Scroll.Delay)
			fmt.Printf("  Stall Limit:       %d\n", cfg.Scroll.StallLimit)
			fmt.Printf("  Max Iterations:    %d\n", cfg.Scroll.MaxIterations)
			fmt.Printf("\nExport:\n")
			fmt.Printf("  Format:            %s\n", cfg.Export.Format)
			fmt.Printf("  Output Dir:        %s\n", cfg.Export.OutputDir)
			fmt.Printf("  Filename Prefix:   %s\n", cfg.Export.FilenamePrefix)
			fmt.Printf("\nMedia:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Media.Enabled)
			fmt.Printf("  Dir:               %s\n", cfg.Media.Dir)
			fmt.Printf("  Concurrency:       %d\n", cfg.Media.Concurrency)
			fmt.Printf("  Rate limit:        %g/s (burst %d)\n", cfg.Media.RateLimit, cfg.Media.RateBurst)
			fmt.Printf("\nSQLite:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Storage.SQLite.Enabled)
			fmt.Printf("  Path:              %s\n", cfg.Storage.SQLite.Path)
			fmt.Printf("\nMongoDB:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Storage.Mongo.Enabled)
			fmt.Printf("  Database:          %s.%s\n", cfg.Storage.Mongo.Database, cfg.Storage.Mongo.Collection)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			fmt.Printf("\nAPI:\n")
			fmt.Printf("  Port:              %d\n", cfg.API.Port)
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger creates a structured logger from the logging section.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if outputPath != "" {
		cfg.Export.OutputDir = outputPath
	}
	if outputFormat != "" {
		cfg.Export.Format = strings.ToLower(outputFormat)
	}
	if controlURL != "" {
		cfg.Browser.ControlURL = controlURL
	}
	if headless {
		cfg.Browser.Headless = true
	}
	if withMedia {
		cfg.Media.Enabled = true
	}
	if apiPort > 0 {
		cfg.API.Port = apiPort
	}
	if maxScrolls > 0 {
		cfg.Scroll.MaxIterations = maxScrolls
	}
}

// buildSink creates the export destination: the output directory, plus
// SQLite and MongoDB when enabled.
func buildSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Sink, error) {
	fileSink, err := storage.NewFileSink(cfg.Export.OutputDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create file sink: %w", err)
	}
	sinks := []storage.Sink{fileSink}

	if cfg.Storage.SQLite.Enabled {
		sqliteSink, err := storage.NewSQLiteSink(ctx, cfg.Storage.SQLite, logger)
		if err != nil {
			return nil, fmt.Errorf("create sqlite sink: %w", err)
		}
		sinks = append(sinks, sqliteSink)
	}

	if cfg.Storage.Mongo.Enabled {
		mongoSink, err := storage.NewMongoSink(ctx, cfg.Storage.Mongo, logger)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close(ctx)
			}
			return nil, fmt.Errorf("create mongo sink: %w", err)
		}
		sinks = append(sinks, mongoSink)
	}

	if len(sinks) == 1 {
		return fileSink, nil
	}
	return storage.NewMultiSink(sinks, logger), nil
}
