package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/xmarks/internal/config"
	"github.com/IshaanNene/xmarks/internal/types"
)

// Browser owns the Chromium connection and the single feed page.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *Page
	cfg      config.BrowserConfig
	feed     config.FeedConfig
	attached bool
	logger   *slog.Logger
}

// Open launches Chromium (or attaches to browser.control_url), opens a page
// and navigates it to the feed start URL.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Browser, error) {
	b := &Browser{
		cfg:    cfg.Browser,
		feed:   cfg.Feed,
		logger: logger.With("component", "browser"),
	}

	controlURL := cfg.Browser.ControlURL
	if controlURL == "" {
		l := b.newLauncher()
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, &types.BrowserError{Op: "launch", Err: err}
		}
		b.launcher = l
		controlURL = u
	} else {
		b.attached = true
	}

	rb := rod.New().Context(ctx).ControlURL(controlURL)
	if err := rb.Connect(); err != nil {
		b.cleanupLauncher()
		return nil, &types.BrowserError{Op: "connect", Err: err}
	}
	b.browser = rb

	page, err := b.openPage()
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.page = page

	if err := b.authenticate(); err != nil {
		_ = b.Close()
		return nil, err
	}

	if err := b.page.Navigate(ctx, cfg.Feed.StartURL, cfg.Browser.NavigationTimeout); err != nil {
		_ = b.Close()
		return nil, err
	}

	b.logger.Info("browser ready",
		"attached", b.attached,
		"headless", cfg.Browser.Headless && !b.attached,
		"stealth", cfg.Browser.Stealth,
		"url", cfg.Feed.StartURL,
	)
	return b, nil
}

// Page returns the feed page.
func (b *Browser) Page() *Page { return b.page }

// Close closes the page and, unless attached to an existing browser, the
// browser process too.
func (b *Browser) Close() error {
	var firstErr error
	if b.page != nil {
		if err := b.page.page.Close(); err != nil {
			firstErr = err
		}
	}
	if b.browser != nil && !b.attached {
		if err := b.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.cleanupLauncher()
	return firstErr
}

// newLauncher builds a Chromium launcher with the configured flags.
func (b *Browser) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(b.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")

	if b.cfg.WindowSize != "" {
		l = l.Set("window-size", b.cfg.WindowSize)
	}
	if b.cfg.UserDataDir != "" {
		// A persistent profile keeps the X login between runs.
		l = l.UserDataDir(b.cfg.UserDataDir)
	}
	return l
}

func (b *Browser) cleanupLauncher() {
	if b.launcher != nil {
		b.launcher.Kill()
		if b.cfg.UserDataDir == "" {
			b.launcher.Cleanup()
		}
		b.launcher = nil
	}
}

func (b *Browser) openPage() (*Page, error) {
	var (
		rp  *rod.Page
		err error
	)
	if b.cfg.Stealth {
		rp, err = stealth.Page(b.browser)
	} else {
		rp, err = b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, &types.BrowserError{Op: "open page", Err: err}
	}
	return newPage(rp, b.logger), nil
}

// authenticate installs the auth_token session cookie when one is configured.
func (b *Browser) authenticate() error {
	if b.cfg.AuthToken == "" {
		return nil
	}

	u, err := url.Parse(b.feed.Origin)
	if err != nil {
		return fmt.Errorf("parse feed origin: %w", err)
	}

	cookie := &proto.NetworkCookieParam{
		Name:     "auth_token",
		Value:    b.cfg.AuthToken,
		Domain:   "." + u.Hostname(),
		Path:     "/",
		Secure:   true,
		HTTPOnly: true,
		Expires:  proto.TimeSinceEpoch(time.Now().Add(24 * time.Hour).Unix()),
	}
	if err := b.page.page.SetCookies([]*proto.NetworkCookieParam{cookie}); err != nil {
		return &types.BrowserError{Op: "set auth cookie", Err: err}
	}
	b.logger.Debug("auth cookie installed", "domain", cookie.Domain)
	return nil
}
