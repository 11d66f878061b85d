package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/IshaanNene/xmarks/internal/collector"
	"github.com/IshaanNene/xmarks/internal/config"
	"github.com/IshaanNene/xmarks/internal/export"
	"github.com/IshaanNene/xmarks/internal/observability"
	"github.com/IshaanNene/xmarks/internal/pipeline"
	"github.com/IshaanNene/xmarks/internal/scraper"
	"github.com/IshaanNene/xmarks/internal/storage"
	"github.com/IshaanNene/xmarks/internal/types"
)

// WrongPageMessage is shown when a command needs the bookmarks feed.
const WrongPageMessage = "Please navigate to x.com/i/bookmarks first!"

// Viewport is a feed page that also reports its current address.
type Viewport interface {
	collector.Viewport
	URL(ctx context.Context) (string, error)
}

// State is the session's auto-scroll state.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Session holds the collection and exposes the user-facing operations:
// scan, auto-scroll, stop, export and clear.
type Session struct {
	cfg        *config.Config
	viewport   Viewport
	collection *collector.Collection
	driver     *collector.Driver
	stop       collector.StopSignal
	formatter  *export.Formatter
	sink       storage.Sink
	metrics    *observability.Metrics
	driverOpts []collector.DriverOption
	state      atomic.Int32
	logger     *slog.Logger
}

// Option configures the Session.
type Option func(*Session)

// WithMetrics shares a metrics instance with the session.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithFormatter replaces the export formatter.
func WithFormatter(f *export.Formatter) Option {
	return func(s *Session) { s.formatter = f }
}

// WithDriverOptions passes extra options to the scroll driver.
func WithDriverOptions(opts ...collector.DriverOption) Option {
	return func(s *Session) { s.driverOpts = append(s.driverOpts, opts...) }
}

// New wires a session over a viewport and export sink.
func New(cfg *config.Config, vp Viewport, sink storage.Sink, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		cfg:        cfg,
		viewport:   vp,
		collection: collector.NewCollection(),
		formatter:  export.NewFormatter(cfg.Export.FilenamePrefix),
		sink:       sink,
		logger:     logger.With("component", "session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics(logger)
	}

	sc := scraper.New(logger,
		scraper.WithOrigin(cfg.Feed.Origin),
		scraper.WithMediaHost(cfg.Feed.MediaHost),
	)
	driverOpts := append([]collector.DriverOption{
		collector.WithPipeline(pipeline.Default(logger, cfg.Feed.ExcludeHandles)),
		collector.WithMetrics(s.metrics),
	}, s.driverOpts...)
	s.driver = collector.NewDriver(vp, sc, s.collection, cfg.Scroll, logger, driverOpts...)

	return s
}

// State returns the current auto-scroll state.
func (s *Session) State() State { return State(s.state.Load()) }

// Count returns the number of collected bookmarks.
func (s *Session) Count() int { return s.collection.Len() }

// Posts returns the collected posts in insertion order.
func (s *Session) Posts() []types.Post { return s.collection.Values() }

// Metrics returns the session counters.
func (s *Session) Metrics() *observability.Metrics { return s.metrics }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() map[string]int64 { return s.metrics.Snapshot() }

// Status returns a one-line summary for display.
func (s *Session) Status() string {
	return fmt.Sprintf("%s, %d bookmarks collected", s.State(), s.Count())
}

// Scan scrapes the visible feed once and merges it into the collection.
func (s *Session) Scan(ctx context.Context) (int, error) {
	if s.State() == StateRunning {
		return 0, types.ErrBusy
	}
	if err := s.checkPage(ctx); err != nil {
		return 0, err
	}

	added, err := s.driver.Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan: %w", err)
	}
	s.logger.Info("scan complete", "added", added, "total", s.Count())
	return added, nil
}

// AutoScroll scrolls the feed until it converges or Stop is called.
// The collection is kept across runs.
func (s *Session) AutoScroll(ctx context.Context, onProgress collector.ProgressFunc) (*collector.Result, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, types.ErrBusy
	}
	defer s.state.Store(int32(StateIdle))

	if err := s.checkPage(ctx); err != nil {
		return nil, err
	}

	// A stop requested before this run started must not end it.
	s.stop.Reset()

	s.logger.Info("auto-scroll started", "collected", s.Count())
	res, err := s.driver.Run(ctx, &s.stop, onProgress)
	if err != nil && !errors.Is(err, context.Canceled) {
		return res, fmt.Errorf("auto-scroll: %w", err)
	}
	s.logger.Info("auto-scroll complete",
		"reason", res.Reason,
		"iterations", res.Iterations,
		"added", res.Added,
		"total", res.Collected,
	)
	return res, nil
}

// Stop asks a running auto-scroll to finish at its next iteration.
func (s *Session) Stop() error {
	if s.State() != StateRunning {
		return types.ErrNotRunning
	}
	s.stop.Request()
	s.logger.Info("stop requested")
	return nil
}

// Export formats the collection and hands it to the sink.
// It returns the payload and where it was stored.
func (s *Session) Export(ctx context.Context, format string) (*export.Payload, string, error) {
	if format == "" {
		format = s.cfg.Export.Format
	}

	posts := s.collection.Values()
	if len(posts) == 0 {
		return nil, "", types.ErrEmptyCollection
	}

	payload, err := s.formatter.Format(posts, format)
	if err != nil {
		return nil, "", err
	}

	location, err := s.sink.Store(ctx, storage.Batch{Payload: payload, Posts: posts})
	if err != nil {
		s.metrics.ExportErrors.Add(1)
		return payload, location, fmt.Errorf("export: %w", err)
	}
	s.metrics.ExportsWritten.Add(1)
	return payload, location, nil
}

// Clear empties the collection.
func (s *Session) Clear() error {
	if s.State() == StateRunning {
		return types.ErrBusy
	}
	s.collection.Clear()
	s.logger.Info("collection cleared")
	return nil
}

// checkPage verifies the viewport is on the bookmarks feed.
func (s *Session) checkPage(ctx context.Context) error {
	u, err := s.viewport.URL(ctx)
	if err != nil {
		return err
	}
	if !s.cfg.Feed.IsFeedURL(u) {
		s.logger.Warn("not on bookmarks page", "url", u)
		return fmt.Errorf("%w: %s", types.ErrWrongPage, u)
	}
	return nil
}
