package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"

	"github.com/IshaanNene/xmarks/internal/types"
)

// statusOverlayID is the DOM id of the advisory progress overlay.
const statusOverlayID = "_bookmark_status"

const showStatusJS = `(id, msg) => {
	const existing = document.getElementById(id);
	if (existing) existing.remove();
	const el = document.createElement('div');
	el.id = id;
	el.style.cssText = 'position:fixed;top:10px;right:10px;background:#1da1f2;color:white;padding:10px 15px;border-radius:8px;z-index:99999;font-family:sans-serif;';
	el.textContent = msg;
	document.body.appendChild(el);
}`

const clearStatusJS = `(id) => {
	const el = document.getElementById(id);
	if (el) el.remove();
}`

// Page is a feed page driven through Rod. It satisfies collector.Viewport.
type Page struct {
	page   *rod.Page
	logger *slog.Logger
}

func newPage(p *rod.Page, logger *slog.Logger) *Page {
	return &Page{
		page:   p,
		logger: logger.With("component", "feed_page"),
	}
}

// Navigate loads rawURL and waits for the page to settle.
func (p *Page) Navigate(ctx context.Context, rawURL string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(rawURL); err != nil {
		return &types.BrowserError{Op: "navigate", Err: err}
	}
	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		p.logger.Warn("page stability timeout, continuing", "url", rawURL, "error", err)
	}
	return nil
}

// URL returns the address currently shown by the page.
func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", &types.BrowserError{Op: "page info", Err: err}
	}
	return info.URL, nil
}

// HTML returns the current rendered DOM.
func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", &types.BrowserError{Op: "snapshot", Err: err}
	}
	return html, nil
}

// ScrollBy scrolls down by fraction of the window height.
func (p *Page) ScrollBy(ctx context.Context, fraction float64) error {
	_, err := p.page.Context(ctx).Eval(`(f) => window.scrollBy(0, window.innerHeight * f)`, fraction)
	if err != nil {
		return &types.BrowserError{Op: "scroll", Err: err}
	}
	return nil
}

// ScrollHeight returns document.documentElement.scrollHeight.
func (p *Page) ScrollHeight(ctx context.Context) (int, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.documentElement.scrollHeight`)
	if err != nil {
		return 0, &types.BrowserError{Op: "scroll height", Err: err}
	}
	return res.Value.Int(), nil
}

// ShowStatus replaces the progress overlay with msg.
func (p *Page) ShowStatus(ctx context.Context, msg string) error {
	_, err := p.page.Context(ctx).Eval(showStatusJS, statusOverlayID, msg)
	return err
}

// ClearStatus removes the progress overlay if present.
func (p *Page) ClearStatus(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(clearStatusJS, statusOverlayID)
	return err
}
