package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/xmarks/internal/config"
	"github.com/IshaanNene/xmarks/internal/types"
)

// loginMarkers identify the sign-in flow in a page address.
var loginMarkers = []string{"/login", "/i/flow/"}

// Navigator is a page that can report and change its address.
type Navigator interface {
	URL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, rawURL string, timeout time.Duration) error
}

// WaitForFeed gives the user up to timeout to sign in by hand. Whenever the
// page leaves the sign-in flow without being on the feed it is sent back to
// feed.StartURL.
func WaitForFeed(ctx context.Context, p Navigator, feed config.FeedConfig, navTimeout, timeout, poll time.Duration, logger *slog.Logger) error {
	logger = logger.With("component", "login")
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	lastNav := ""
	prompted := false
	for {
		u, err := p.URL(ctx)
		if err != nil {
			return err
		}
		if feed.IsFeedURL(u) {
			if prompted {
				logger.Info("bookmarks feed reached", "url", u)
			}
			return nil
		}

		switch {
		case isLoginFlow(u):
			if !prompted {
				logger.Info("waiting for sign-in in the browser window", "timeout", timeout)
				prompted = true
			}
		case u != lastNav:
			logger.Debug("returning to bookmarks", "from", u)
			lastNav = u
			if err := p.Navigate(ctx, feed.StartURL, navTimeout); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: still on %s after %s", types.ErrWrongPage, u, timeout)
		case <-ticker.C:
		}
	}
}

func isLoginFlow(rawURL string) bool {
	for _, m := range loginMarkers {
		if strings.Contains(rawURL, m) {
			return true
		}
	}
	return false
}
