package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters for a collection session.
type Metrics struct {
	// Scrape metrics
	ItemsSeen    atomic.Int64
	ItemsSkipped atomic.Int64
	PostsScraped atomic.Int64
	PostsAdded   atomic.Int64

	// Scroll metrics
	ScrollIterations atomic.Int64
	StallReadings    atomic.Int64

	// Export metrics
	ExportsWritten atomic.Int64
	ExportErrors   atomic.Int64

	// Media metrics
	MediaDownloaded atomic.Int64
	MediaSkipped    atomic.Int64
	MediaFailed     atomic.Int64
	MediaBytes      atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"xmarks_items_seen_total", "Feed items found in snapshots", m.ItemsSeen.Load()},
		{"xmarks_items_skipped_total", "Feed items skipped without a post", m.ItemsSkipped.Load()},
		{"xmarks_posts_scraped_total", "Posts scraped across all passes", m.PostsScraped.Load()},
		{"xmarks_posts_added_total", "Posts new to the collection", m.PostsAdded.Load()},
		{"xmarks_scroll_iterations_total", "Auto-scroll iterations", m.ScrollIterations.Load()},
		{"xmarks_stall_readings_total", "Scroll height readings without growth", m.StallReadings.Load()},
		{"xmarks_exports_written_total", "Exports written", m.ExportsWritten.Load()},
		{"xmarks_export_errors_total", "Exports that failed", m.ExportErrors.Load()},
		{"xmarks_media_downloaded_total", "Media files downloaded", m.MediaDownloaded.Load()},
		{"xmarks_media_skipped_total", "Media files already on disk", m.MediaSkipped.Load()},
		{"xmarks_media_failed_total", "Media downloads that failed", m.MediaFailed.Load()},
		{"xmarks_media_bytes_total", "Bytes of media downloaded", m.MediaBytes.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server in the background.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return srv
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"items_seen":        m.ItemsSeen.Load(),
		"items_skipped":     m.ItemsSkipped.Load(),
		"posts_scraped":     m.PostsScraped.Load(),
		"posts_added":       m.PostsAdded.Load(),
		"scroll_iterations": m.ScrollIterations.Load(),
		"stall_readings":    m.StallReadings.Load(),
		"exports_written":   m.ExportsWritten.Load(),
		"export_errors":     m.ExportErrors.Load(),
		"media_downloaded":  m.MediaDownloaded.Load(),
		"media_skipped":     m.MediaSkipped.Load(),
		"media_failed":      m.MediaFailed.Load(),
		"media_bytes":       m.MediaBytes.Load(),
	}
}
