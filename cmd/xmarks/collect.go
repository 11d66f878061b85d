package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/xmarks/internal/api"
	"github.com/IshaanNene/xmarks/internal/auth"
	"github.com/IshaanNene/xmarks/internal/browser"
	"github.com/IshaanNene/xmarks/internal/config"
	"github.com/IshaanNene/xmarks/internal/export"
	"github.com/IshaanNene/xmarks/internal/media"
	"github.com/IshaanNene/xmarks/internal/observability"
	"github.com/IshaanNene/xmarks/internal/session"
	"github.com/IshaanNene/xmarks/internal/shell"
	"github.com/IshaanNene/xmarks/internal/types"
)

// scanCmd creates the "scan" subcommand.
func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Export the bookmarks currently rendered on the page",
		Long:  "Open the bookmarks feed, scrape the posts currently rendered without scrolling, and export them.",
		RunE:  runScan,
	}
	addBrowserFlags(cmd)
	return cmd
}

// scrollCmd creates the "scroll" subcommand.
func scrollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scroll",
		Short: "Scroll the whole bookmarks feed and export it",
		Long: `Open the bookmarks feed and scroll it until the page stops growing, collecting
every bookmark on the way. Press Ctrl+C once to stop early and still export,
twice to abort.`,
		RunE: runScroll,
	}
	addBrowserFlags(cmd)
	cmd.Flags().IntVar(&maxScrolls, "max-scrolls", 0, "maximum scroll iterations (0 = until the feed ends)")
	return cmd
}

// shellCmd creates the "shell" subcommand.
func shellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Control a bookmarks session interactively",
		Long:  "Open the bookmarks feed and read scan/scroll/stop/export commands from the terminal.",
		RunE:  runShell,
	}
	addBrowserFlags(cmd)
	return cmd
}

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Control a bookmarks session over HTTP",
		Long: `Open the bookmarks feed and expose scan, scroll, stop, export and clear as a
REST API under /api. POST /api/export returns the export file as a download.`,
		RunE: runServe,
	}
	addBrowserFlags(cmd)
	cmd.Flags().IntVarP(&apiPort, "port", "p", 0, "API port (default api.port)")
	return cmd
}

// app is everything a command needs around a session.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	session *session.Session
	close   func()
}

// openApp loads config, starts metrics, opens the browser and builds the session.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg)

	metrics := observability.NewMetrics(logger)
	var closers []func()
	if cfg.Metrics.Enabled {
		srv := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		closers = append(closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	sink, err := buildSink(ctx, cfg, logger)
	if err != nil {
		closeAll()
		return nil, err
	}
	closers = append(closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Storage.Mongo.Timeout)
		defer cancel()
		if err := sink.Close(closeCtx); err != nil {
			logger.Warn("failed to close sink", "error", err)
		}
	})

	if token, source, err := auth.NewTokenStore().Resolve(cfg.Browser.AuthToken); err == nil {
		cfg.Browser.AuthToken = token
		logger.Debug("using auth token", "source", source)
	} else if !errors.Is(err, auth.ErrTokenNotFound) {
		logger.Warn("keychain unavailable, continuing without stored token", "error", err)
	}

	logger.Info("opening browser",
		"start_url", cfg.Feed.StartURL,
		"attach", cfg.Browser.ControlURL != "",
		"headless", cfg.Browser.Headless,
	)
	b, err := browser.Open(ctx, cfg, logger)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open browser: %w", err)
	}
	closers = append(closers, func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	})

	if cfg.Browser.LoginWait > 0 {
		err := browser.WaitForFeed(ctx, b.Page(), cfg.Feed, cfg.Browser.NavigationTimeout, cfg.Browser.LoginWait, 2*time.Second, logger)
		switch {
		case errors.Is(err, types.ErrWrongPage):
			logger.Warn("bookmarks feed not reached", "error", err)
		case err != nil:
			closeAll()
			return nil, fmt.Errorf("wait for sign-in: %w", err)
		}
	}

	sess := session.New(cfg, b.Page(), sink, logger,
		session.WithMetrics(metrics),
		session.WithFormatter(export.NewFormatter(cfg.Export.FilenamePrefix)),
	)

	return &app{cfg: cfg, logger: logger, metrics: metrics, session: sess, close: closeAll}, nil
}

// runScan executes the scan command.
func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	added, err := a.session.Scan(ctx)
	if err != nil {
		return explain(err)
	}
	fmt.Printf("\nFound %d bookmarks on screen\n", added)

	return exportAndReport(ctx, a)
}

// runScroll executes the scroll command.
func runScroll(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// First signal stops the run cooperatively, the second aborts it.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		a.logger.Info("received signal, finishing current pass...", "signal", sig)
		if err := a.session.Stop(); err != nil {
			cancel()
			return
		}
		select {
		case sig = <-sigCh:
			a.logger.Warn("received second signal, aborting", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Collecting bookmarks"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	)

	start := time.Now()
	res, err := a.session.AutoScroll(ctx, func(count int) {
		_ = bar.Set(count)
	})
	_ = bar.Finish()
	if err != nil {
		return explain(err)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("aborted after %d iterations", res.Iterations)
	}

	fmt.Printf("\nScroll %s in %s\n", res.Reason, time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Iterations: %d\n", res.Iterations)
	fmt.Printf("   Bookmarks:  %d collected\n", res.Collected)

	return exportAndReport(ctx, a)
}

// runShell executes the shell command.
func runShell(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return shell.New(a.session, os.Stdin, os.Stdout, a.logger).Run(ctx)
}

// runServe executes the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	srv := api.NewServer(a.cfg.API.Port, a.session, a.logger)
	srv.Start()

	<-ctx.Done()
	a.logger.Info("shutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), a.cfg.Scroll.Delay+30*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

// exportAndReport writes the collection in the configured format.
func exportAndReport(ctx context.Context, a *app) error {
	payload, location, err := a.session.Export(context.WithoutCancel(ctx), "")
	if err != nil {
		return explain(err)
	}
	fmt.Printf("   Output:     %s (%d bookmarks, %s)\n", location, payload.Count, payload.Format)

	if a.cfg.Media.Enabled {
		return downloadMedia(ctx, a)
	}
	return nil
}

// downloadMedia saves the images of every collected bookmark.
func downloadMedia(ctx context.Context, a *app) error {
	posts := a.session.Posts()
	total := media.CountMedia(posts)
	if total == 0 {
		return nil
	}

	d, err := media.NewDownloader(a.cfg.Media, a.logger, media.WithMetrics(a.metrics))
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Downloading media"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionFullWidth(),
	)
	sum, err := d.DownloadPosts(ctx, posts, func() { _ = bar.Add(1) })
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}

	fmt.Printf("   Media:      %d downloaded, %d already saved, %d failed (%s)\n",
		sum.Downloaded, sum.Skipped, sum.Failed, a.cfg.Media.Dir)
	return nil
}

// explain turns user-facing sentinel errors into readable messages.
func explain(err error) error {
	switch {
	case errors.Is(err, types.ErrWrongPage):
		return errors.New(session.WrongPageMessage)
	case errors.Is(err, types.ErrEmptyCollection):
		return errors.New("no bookmarks found; is the browser logged in?")
	default:
		return err
	}
}
