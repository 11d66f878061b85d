package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/xmarks/internal/config"
	"github.com/IshaanNene/xmarks/internal/observability"
	"github.com/IshaanNene/xmarks/internal/scraper"
	"github.com/IshaanNene/xmarks/internal/types"
)

// Viewport is the live feed page the driver scrolls and snapshots.
type Viewport interface {
	// HTML returns the current rendered DOM.
	HTML(ctx context.Context) (string, error)

	// ScrollBy scrolls down by fraction of the viewport height.
	ScrollBy(ctx context.Context, fraction float64) error

	// ScrollHeight returns the total scrollable height of the document.
	ScrollHeight(ctx context.Context) (int, error)

	// ShowStatus displays a transient progress overlay on the page.
	ShowStatus(ctx context.Context, msg string) error

	// ClearStatus removes the progress overlay.
	ClearStatus(ctx context.Context) error
}

// Scraper turns a DOM snapshot into posts.
type Scraper interface {
	Scrape(snapshot string) (*scraper.Pass, error)
}

// Pipeline post-processes each scraped post before it is merged.
type Pipeline interface {
	Process(post *types.Post) (*types.Post, error)
}

// StopReason explains why a Run ended.
type StopReason int

const (
	StopConverged StopReason = iota
	StopCancelled
	StopLimit
)

func (r StopReason) String() string {
	switch r {
	case StopConverged:
		return "converged"
	case StopCancelled:
		return "cancelled"
	case StopLimit:
		return "limit"
	default:
		return "unknown"
	}
}

// Result summarizes a finished Run.
type Result struct {
	Reason     StopReason
	Iterations int
	Collected  int
	Added      int
}

// ProgressFunc receives the collection size after each iteration.
type ProgressFunc func(count int)

// Driver scrolls the feed, scraping and merging into a Collection until the
// page stops growing or a stop is requested.
type Driver struct {
	viewport   Viewport
	scraper    Scraper
	pipeline   Pipeline
	collection *Collection
	metrics    *observability.Metrics
	cfg        config.ScrollConfig
	logger     *slog.Logger

	// wait blocks for the inter-iteration delay.
	wait func(ctx context.Context, d time.Duration) error
}

// DriverOption configures the Driver.
type DriverOption func(*Driver)

// WithPipeline runs every scraped post through p before merging.
func WithPipeline(p Pipeline) DriverOption {
	return func(d *Driver) { d.pipeline = p }
}

// WithMetrics records scrape and scroll counters.
func WithMetrics(m *observability.Metrics) DriverOption {
	return func(d *Driver) { d.metrics = m }
}

// WithWaiter replaces the delay function.
func WithWaiter(wait func(ctx context.Context, d time.Duration) error) DriverOption {
	return func(d *Driver) { d.wait = wait }
}

// NewDriver creates a Driver that merges into collection.
func NewDriver(vp Viewport, s Scraper, collection *Collection, cfg config.ScrollConfig, logger *slog.Logger, opts ...DriverOption) *Driver {
	d := &Driver{
		viewport:   vp,
		scraper:    s,
		collection: collection,
		cfg:        cfg,
		logger:     logger.With("component", "scroll_driver"),
		wait:       sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = observability.NewMetrics(logger)
	}
	return d
}

// Scan scrapes the current view once and merges the result.
// It returns the number of posts that were new to the collection.
func (d *Driver) Scan(ctx context.Context) (int, error) {
	snapshot, err := d.viewport.HTML(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot: %w", err)
	}

	pass, err := d.scraper.Scrape(snapshot)
	if err != nil {
		return 0, err
	}
	d.metrics.ItemsSeen.Add(int64(pass.Items))
	d.metrics.ItemsSkipped.Add(int64(pass.Skipped))

	posts := pass.Posts
	if d.pipeline != nil {
		kept := make([]types.Post, 0, len(posts))
		for i := range posts {
			out, err := d.pipeline.Process(&posts[i])
			if err != nil {
				d.logger.Warn("post rejected", "id", posts[i].ID, "error", err)
				continue
			}
			if out != nil {
				kept = append(kept, *out)
			}
		}
		posts = kept
	}

	added := d.collection.Merge(posts)
	d.metrics.PostsScraped.Add(int64(len(posts)))
	d.metrics.PostsAdded.Add(int64(added))

	d.logger.Debug("scan merged", "posts", len(posts), "added", added, "total", d.collection.Len())
	return added, nil
}

// Run scrolls until the scroll height stays unchanged for StallLimit
// consecutive readings, the stop signal is observed, or ctx is done.
// The stop signal is polled only at the top of each iteration.
func (d *Driver) Run(ctx context.Context, stop *StopSignal, onProgress ProgressFunc) (*Result, error) {
	res := &Result{}
	start := d.collection.Len()
	lastHeight := 0
	stalls := 0

	defer func() {
		res.Collected = d.collection.Len()
		res.Added = res.Collected - start
		// Overlay is advisory; the page may already be gone.
		_ = d.viewport.ClearStatus(context.WithoutCancel(ctx))
	}()

	for {
		if stop != nil && stop.consume() {
			res.Reason = StopCancelled
			d.logger.Info("auto-scroll stopped", "iterations", res.Iterations)
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			res.Reason = StopCancelled
			return res, err
		}
		if d.cfg.MaxIterations > 0 && res.Iterations >= d.cfg.MaxIterations {
			res.Reason = StopLimit
			d.logger.Info("auto-scroll iteration limit reached", "iterations", res.Iterations)
			return res, nil
		}

		res.Iterations++
		d.metrics.ScrollIterations.Add(1)

		if _, err := d.Scan(ctx); err != nil {
			return res, err
		}

		count := d.collection.Len()
		if onProgress != nil {
			onProgress(count)
		}
		if err := d.viewport.ShowStatus(ctx, fmt.Sprintf("Collected: %d bookmarks", count)); err != nil {
			d.logger.Debug("status overlay failed", "error", err)
		}

		if err := d.viewport.ScrollBy(ctx, d.cfg.ViewportFraction); err != nil {
			return res, fmt.Errorf("scroll: %w", err)
		}

		if err := d.wait(ctx, d.cfg.Delay); err != nil {
			res.Reason = StopCancelled
			return res, err
		}

		height, err := d.viewport.ScrollHeight(ctx)
		if err != nil {
			return res, fmt.Errorf("measure height: %w", err)
		}

		if height == lastHeight {
			stalls++
			d.metrics.StallReadings.Add(1)
			if stalls >= d.cfg.StallLimit {
				res.Reason = StopConverged
				d.logger.Info("feed end reached", "iterations", res.Iterations, "height", height)
				return res, nil
			}
		} else {
			stalls = 0
		}
		lastHeight = height
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
