package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/xmarks/internal/config"
	"github.com/IshaanNene/xmarks/internal/observability"
	"github.com/IshaanNene/xmarks/internal/types"
)

// Result describes one media file of a post.
type Result struct {
	PostID    string        `json:"post_id"`
	URL       string        `json:"url"`
	LocalPath string        `json:"local_path"`
	Size      int64         `json:"size"`
	Hash      string        `json:"hash,omitempty"`
	Skipped   bool          `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Summary totals a batch download.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
}

// Downloader saves post media under <dir>/<post id>/.
type Downloader struct {
	dir        string
	client     *http.Client
	maxSize    int64
	concurrent int
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option configures the Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithMetrics records download counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Downloader) { d.metrics = m }
}

// NewDownloader creates a media downloader rooted at cfg.Dir.
func NewDownloader(cfg config.MediaConfig, logger *slog.Logger, opts ...Option) (*Downloader, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	d := &Downloader{
		dir:        cfg.Dir,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxSize:    cfg.MaxSizeMB * 1024 * 1024,
		concurrent: max(cfg.Concurrency, 1),
		logger:     logger.With("component", "media_downloader"),
	}
	if cfg.RateLimit > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = observability.NewMetrics(logger)
	}
	return d, nil
}

// Download fetches one media item of a post. Files already on disk are
// not fetched again.
func (d *Downloader) Download(ctx context.Context, postID string, index int, m types.Media) (*Result, error) {
	localPath := filepath.Join(d.dir, postID, fileName(index, m.URL))
	res := &Result{PostID: postID, URL: m.URL, LocalPath: localPath}

	if st, err := os.Stat(localPath); err == nil {
		res.Skipped = true
		res.Size = st.Size()
		return res, nil
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", m.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", m.URL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return nil, fmt.Errorf("download %s: unexpected content type %q", m.URL, ct)
	}
	if d.maxSize > 0 && resp.ContentLength > d.maxSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", resp.ContentLength, d.maxSize)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return nil, fmt.Errorf("create post dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".download-*")
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	var body io.Reader = resp.Body
	if d.maxSize > 0 {
		body = io.LimitReader(resp.Body, d.maxSize+1)
	}

	size, err := io.Copy(io.MultiWriter(tmp, hasher), body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	if d.maxSize > 0 && size > d.maxSize {
		return nil, fmt.Errorf("file too large: more than %d bytes", d.maxSize)
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return nil, fmt.Errorf("rename file: %w", err)
	}

	res.Size = size
	res.Hash = hex.EncodeToString(hasher.Sum(nil))
	res.Duration = time.Since(start)

	d.logger.Debug("file downloaded",
		"post", postID,
		"url", m.URL,
		"size", size,
		"hash", res.Hash[:16],
		"duration", res.Duration,
	)
	return res, nil
}

// DownloadPosts downloads the media of every post with a bounded number of
// workers. Individual failures are logged and counted; only cancellation is
// returned as an error. onDone, if set, is called after each file.
func (d *Downloader) DownloadPosts(ctx context.Context, posts []types.Post, onDone func()) (*Summary, error) {
	var (
		sum Summary
		mu  sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrent)

	for _, p := range posts {
		for i, m := range p.Media {
			if gctx.Err() != nil {
				break
			}
			postID, index := p.ID, i
			g.Go(func() error {
				res, err := d.Download(gctx, postID, index, m)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					sum.Failed++
					d.metrics.MediaFailed.Add(1)
					d.logger.Warn("download failed", "post", postID, "url", m.URL, "error", err)
				case res.Skipped:
					sum.Skipped++
					d.metrics.MediaSkipped.Add(1)
				default:
					sum.Downloaded++
					sum.Bytes += res.Size
					d.metrics.MediaDownloaded.Add(1)
					d.metrics.MediaBytes.Add(res.Size)
				}
				if onDone != nil {
					onDone()
				}
				return nil
			})
		}
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return &sum, err
	}

	d.logger.Info("media download complete",
		"downloaded", sum.Downloaded,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"bytes", humanSize(sum.Bytes),
	)
	return &sum, nil
}

// CountMedia returns the number of media items across posts.
func CountMedia(posts []types.Post) int {
	n := 0
	for i := range posts {
		n += len(posts[i].Media)
	}
	return n
}

// fileName derives a stable local name: "<index>-<base><ext>". The
// extension comes from the URL path, else from its format parameter.
func fileName(index int, rawURL string) string {
	var base, ext string
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "" && b != "." && b != "/" {
			ext = path.Ext(b)
			base = strings.TrimSuffix(b, ext)
		}
		if ext == "" {
			if f := u.Query().Get("format"); f != "" {
				ext = "." + f
			}
		}
	}
	if base == "" {
		sum := sha256.Sum256([]byte(rawURL))
		base = hex.EncodeToString(sum[:8])
	}
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%d-%s%s", index, base, ext)
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
